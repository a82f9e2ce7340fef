package types

import (
	"fmt"
	"time"
)

// BillingInterval is the cadence of a billing schedule.
type BillingInterval string

const (
	BILLING_INTERVAL_HOURLY  BillingInterval = "HOURLY"
	BILLING_INTERVAL_DAILY   BillingInterval = "DAILY"
	BILLING_INTERVAL_WEEKLY  BillingInterval = "WEEKLY"
	BILLING_INTERVAL_MONTHLY BillingInterval = "MONTHLY"
	BILLING_INTERVAL_ANNUAL  BillingInterval = "ANNUAL"
)

func (b BillingInterval) String() string {
	return string(b)
}

func (b BillingInterval) Validate() error {
	allowed := []BillingInterval{
		BILLING_INTERVAL_HOURLY,
		BILLING_INTERVAL_DAILY,
		BILLING_INTERVAL_WEEKLY,
		BILLING_INTERVAL_MONTHLY,
		BILLING_INTERVAL_ANNUAL,
	}
	for _, interval := range allowed {
		if b == interval {
			return nil
		}
	}
	return fmt.Errorf("invalid billing interval: %s", b)
}

// BillingType determines when a billing period is charged: prepaid periods
// are charged when they open, postpaid periods when they close.
type BillingType string

const (
	BillingTypePrepaid  BillingType = "prepaid"
	BillingTypePostpaid BillingType = "postpaid"
)

func (b BillingType) String() string {
	return string(b)
}

func (b BillingType) Validate() error {
	switch b {
	case BillingTypePrepaid, BillingTypePostpaid:
		return nil
	}
	return fmt.Errorf("invalid billing type: %s", b)
}

// NextBillingDate calculates the next billing date based on the given start
// time, billing interval, and the frequency multiplier unit.
// For example:
// - If the interval is MONTHLY and unit is 2, we add two months.
// - If the interval is ANNUAL and unit is 1, we add one year.
// - If the interval is WEEKLY and unit is 3, we add 21 days (3 weeks).
// - If the interval is DAILY and unit is 10, we add 10 days.
// Month and year arithmetic clamps to the last valid day of the target month
// so Jan 31 + 1 month lands on Feb 28/29 rather than overflowing into March.
func NextBillingDate(start time.Time, unit int, interval BillingInterval) (time.Time, error) {
	if unit <= 0 {
		return start, fmt.Errorf("billing interval unit must be a positive integer, got %d", unit)
	}

	switch interval {
	case BILLING_INTERVAL_HOURLY:
		return start.Add(time.Duration(unit) * time.Hour), nil
	case BILLING_INTERVAL_DAILY:
		return AddClampedDate(start, 0, 0, unit), nil
	case BILLING_INTERVAL_WEEKLY:
		return AddClampedDate(start, 0, 0, 7*unit), nil
	case BILLING_INTERVAL_MONTHLY:
		return AddClampedDate(start, 0, unit, 0), nil
	case BILLING_INTERVAL_ANNUAL:
		return AddClampedDate(start, unit, 0, 0), nil
	default:
		return start, fmt.Errorf("invalid billing interval: %s", interval)
	}
}

// StartOfInterval truncates t down to the opening instant of the interval
// window containing it: top of the hour, midnight, start of ISO week (Monday),
// first of the month, or first of January respectively.
func StartOfInterval(t time.Time, interval BillingInterval) (time.Time, error) {
	t = t.UTC()
	switch interval {
	case BILLING_INTERVAL_HOURLY:
		return t.Truncate(time.Hour), nil
	case BILLING_INTERVAL_DAILY:
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
	case BILLING_INTERVAL_WEEKLY:
		midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		offset := (int(midnight.Weekday()) + 6) % 7
		return midnight.AddDate(0, 0, -offset), nil
	case BILLING_INTERVAL_MONTHLY:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC), nil
	case BILLING_INTERVAL_ANNUAL:
		return time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, time.UTC), nil
	default:
		return t, fmt.Errorf("invalid billing interval: %s", interval)
	}
}

// AddClampedDate adds the given years, months and days to t, clamping the day
// of month to the last valid day instead of letting time.AddDate normalize
// past the month boundary.
func AddClampedDate(t time.Time, years, months, days int) time.Time {
	y, m, d := t.Date()
	h, min, sec := t.Clock()

	newY := y + years
	newM := time.Month(int(m) + months)

	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	// Find the last valid day of the target month
	firstOfNextMonth := time.Date(newY, newM+1, 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfNextMonth.Add(-24 * time.Hour).Day()

	newD := d
	if newD > lastDay {
		newD = lastDay
	}

	return time.Date(newY, newM, newD, h, min, sec, t.Nanosecond(), t.Location()).AddDate(0, 0, days)
}
