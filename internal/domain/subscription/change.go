package subscription

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// Field names a scheduled change may target.
const (
	ChangeFieldStatus = "status"
)

// ScheduledChange is a deferred mutation applied to a subscription at the
// moment its current recurring order closes, before the next one opens.
type ScheduledChange struct {
	FieldName string    `json:"field_name"`
	Value     string    `json:"value"`
	CreatedAt time.Time `json:"created_at"`
}

// HasScheduledChanges reports whether any deferred mutation is pending.
func (s *Subscription) HasScheduledChanges() bool {
	return len(s.ScheduledChanges) > 0
}

// ScheduleCancellation defers cancellation to the end of the current billing
// period instead of cancelling immediately.
func (s *Subscription) ScheduleCancellation(now time.Time) error {
	if s.Status == types.SubscriptionStatusCancelled {
		return ierr.NewError("subscription is already cancelled").
			WithHintf("subscription %s cannot schedule a cancellation", s.ID).
			Mark(ierr.ErrInvalidOperation)
	}
	s.ScheduledChanges = append(s.ScheduledChanges, ScheduledChange{
		FieldName: ChangeFieldStatus,
		Value:     types.SubscriptionStatusCancelled.String(),
		CreatedAt: now,
	})
	return nil
}

// ApplyScheduledChanges applies and clears all pending deferred mutations.
// Unknown field names fail; a change to an already-reached state is a no-op.
func (s *Subscription) ApplyScheduledChanges() error {
	for _, change := range s.ScheduledChanges {
		switch change.FieldName {
		case ChangeFieldStatus:
			target := types.SubscriptionStatus(change.Value)
			if err := target.Validate(); err != nil {
				return ierr.WithError(err).
					WithHintf("subscription %s has a scheduled change with an invalid status", s.ID).
					Mark(ierr.ErrValidation)
			}
			if s.Status == target {
				continue
			}
			if err := s.TransitionTo(target); err != nil {
				return err
			}
		default:
			return ierr.NewError("unknown scheduled change field").
				WithHintf("subscription %s has a scheduled change for unknown field %q", s.ID, change.FieldName).
				Mark(ierr.ErrValidation)
		}
	}
	s.ScheduledChanges = nil
	return nil
}
