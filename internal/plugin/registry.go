package plugin

import (
	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
)

// ScheduleRegistry resolves billing schedule plugins by the id stored on a
// subscription. It is built once at construction time and injected into the
// services that need it; there is no process-wide mutable registry.
type ScheduleRegistry struct {
	schedules map[string]BillingSchedule
}

func NewScheduleRegistry(schedules ...BillingSchedule) *ScheduleRegistry {
	r := &ScheduleRegistry{schedules: make(map[string]BillingSchedule)}
	for _, schedule := range schedules {
		r.schedules[schedule.ID()] = schedule
	}
	return r
}

// NewScheduleRegistryFromConfig builds interval schedules for every declared
// configuration entry.
func NewScheduleRegistryFromConfig(cfg *config.Configuration) (*ScheduleRegistry, error) {
	r := &ScheduleRegistry{schedules: make(map[string]BillingSchedule)}
	for _, scheduleCfg := range cfg.BillingSchedules {
		schedule, err := NewIntervalSchedule(scheduleCfg)
		if err != nil {
			return nil, err
		}
		r.schedules[schedule.ID()] = schedule
	}
	return r, nil
}

func (r *ScheduleRegistry) Resolve(id string) (BillingSchedule, error) {
	schedule, ok := r.schedules[id]
	if !ok {
		return nil, ierr.NewError("unknown billing schedule").
			WithHintf("no billing schedule registered with id %q", id).
			Mark(ierr.ErrNotFound)
	}
	return schedule, nil
}

// TypeRegistry resolves subscription type handlers by the type id stored on
// a subscription.
type TypeRegistry struct {
	handlers map[string]SubscriptionTypeHandler
}

func NewTypeRegistry(handlers ...SubscriptionTypeHandler) *TypeRegistry {
	r := &TypeRegistry{handlers: make(map[string]SubscriptionTypeHandler)}
	for _, handler := range handlers {
		r.handlers[handler.ID()] = handler
	}
	return r
}

func (r *TypeRegistry) Resolve(id string) (SubscriptionTypeHandler, error) {
	if id == "" {
		id = DefaultSubscriptionType
	}
	handler, ok := r.handlers[id]
	if !ok {
		return nil, ierr.NewError("unknown subscription type").
			WithHintf("no subscription type handler registered with id %q", id).
			Mark(ierr.ErrNotFound)
	}
	return handler, nil
}
