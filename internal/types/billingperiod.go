package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// BillingPeriod is a half-open time interval [Start, End) over which a charge
// applies. End itself is never contained, which is what keeps consecutive
// periods non-overlapping at the boundary instant.
type BillingPeriod struct {
	Start time.Time `db:"period_start" json:"start"`
	End   time.Time `db:"period_end" json:"end"`
}

// NewBillingPeriod validates and returns a billing period.
func NewBillingPeriod(start, end time.Time) (BillingPeriod, error) {
	if !end.After(start) {
		return BillingPeriod{}, fmt.Errorf("billing period end %s must be after start %s", end, start)
	}
	return BillingPeriod{Start: start.UTC(), End: end.UTC()}, nil
}

// Duration returns the length of the period.
func (p BillingPeriod) Duration() time.Duration {
	return p.End.Sub(p.Start)
}

// DurationSeconds returns the length of the period in seconds as an exact
// decimal, for proration arithmetic.
func (p BillingPeriod) DurationSeconds() decimal.Decimal {
	return decimal.NewFromInt(int64(p.End.Sub(p.Start) / time.Second))
}

// Contains reports whether t falls inside the period. Half-open: the start
// instant is contained, the end instant is not.
func (p BillingPeriod) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Equal reports whether both bounds match exactly.
func (p BillingPeriod) Equal(other BillingPeriod) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

// IsZero reports whether the period is unset.
func (p BillingPeriod) IsZero() bool {
	return p.Start.IsZero() && p.End.IsZero()
}

func (p BillingPeriod) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}
