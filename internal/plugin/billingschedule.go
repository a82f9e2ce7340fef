package plugin

import (
	"time"

	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// BillingSchedule defines a billing cadence: how periods are generated, the
// trial policy, the billing type and whether subscriptions sharing it may be
// combined onto one recurring order.
type BillingSchedule interface {
	// ID is the identifier subscriptions reference the schedule by
	ID() string

	// AllowTrials reports whether the schedule permits a trial phase
	AllowTrials() bool

	// GenerateFirstBillingPeriod returns the first period for a subscription
	// starting at startTime
	GenerateFirstBillingPeriod(startTime time.Time) (types.BillingPeriod, error)

	// GenerateNextBillingPeriod returns the period following current
	GenerateNextBillingPeriod(startTime time.Time, current types.BillingPeriod) (types.BillingPeriod, error)

	// BillingType reports whether periods are charged when they open
	// (prepaid) or when they close (postpaid)
	BillingType() types.BillingType

	// AllowCombiningSubscriptions reports whether multiple subscriptions may
	// share one recurring order
	AllowCombiningSubscriptions() bool
}

// IntervalSchedule is a BillingSchedule over a fixed interval cadence.
//
// A fixed schedule aligns periods to calendar boundaries: the first period is
// the interval window containing the start instant, so a subscription started
// mid-cycle gets a partial, prorated first charge. A rolling schedule anchors
// periods to the start instant itself and never produces a partial first
// period.
type IntervalSchedule struct {
	id           string
	interval     types.BillingInterval
	intervalUnit int
	billingType  types.BillingType
	allowTrials  bool
	trialDays    int
	combine      bool
	fixed        bool
}

// NewIntervalSchedule builds a schedule from its configuration.
func NewIntervalSchedule(cfg config.BillingScheduleConfig) (*IntervalSchedule, error) {
	if err := cfg.Interval.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("billing schedule %q has an invalid interval", cfg.ID).
			Mark(ierr.ErrValidation)
	}
	if err := cfg.BillingType.Validate(); err != nil {
		return nil, ierr.WithError(err).
			WithHintf("billing schedule %q has an invalid billing type", cfg.ID).
			Mark(ierr.ErrValidation)
	}
	if cfg.IntervalUnit <= 0 {
		return nil, ierr.NewError("billing schedule interval unit must be positive").
			WithHintf("billing schedule %q has interval unit %d", cfg.ID, cfg.IntervalUnit).
			Mark(ierr.ErrValidation)
	}
	return &IntervalSchedule{
		id:           cfg.ID,
		interval:     cfg.Interval,
		intervalUnit: cfg.IntervalUnit,
		billingType:  cfg.BillingType,
		allowTrials:  cfg.AllowTrials,
		trialDays:    cfg.TrialDays,
		combine:      cfg.Combine,
		fixed:        cfg.Fixed,
	}, nil
}

func (s *IntervalSchedule) ID() string {
	return s.id
}

func (s *IntervalSchedule) AllowTrials() bool {
	return s.allowTrials
}

// TrialDays is the length of the trial window offered at checkout.
func (s *IntervalSchedule) TrialDays() int {
	return s.trialDays
}

func (s *IntervalSchedule) BillingType() types.BillingType {
	return s.billingType
}

func (s *IntervalSchedule) AllowCombiningSubscriptions() bool {
	return s.combine
}

func (s *IntervalSchedule) GenerateFirstBillingPeriod(startTime time.Time) (types.BillingPeriod, error) {
	periodStart := startTime.UTC()
	if s.fixed {
		aligned, err := types.StartOfInterval(periodStart, s.interval)
		if err != nil {
			return types.BillingPeriod{}, ierr.WithError(err).
				WithHintf("billing schedule %q failed to align the first period", s.id).
				Mark(ierr.ErrSystem)
		}
		periodStart = aligned
	}
	return s.periodFrom(periodStart)
}

func (s *IntervalSchedule) GenerateNextBillingPeriod(startTime time.Time, current types.BillingPeriod) (types.BillingPeriod, error) {
	// Next period opens exactly where the current one ends; periods are
	// contiguous and non-overlapping by construction.
	return s.periodFrom(current.End)
}

func (s *IntervalSchedule) periodFrom(start time.Time) (types.BillingPeriod, error) {
	end, err := types.NextBillingDate(start, s.intervalUnit, s.interval)
	if err != nil {
		return types.BillingPeriod{}, ierr.WithError(err).
			WithHintf("billing schedule %q failed to compute a period end", s.id).
			Mark(ierr.ErrSystem)
	}
	return types.NewBillingPeriod(start, end)
}
