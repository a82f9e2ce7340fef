package charge

import (
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Charge is one line of billing for a subscription within a cycle. Charges
// are produced fresh each cycle by the subscription type handler and
// projected onto recurring order line items; they are never persisted
// themselves.
type Charge struct {
	// PurchasedItemID references the purchased product variation, if any
	PurchasedItemID string

	// Title is the human readable label for the charge
	Title string

	// Quantity being charged
	Quantity decimal.Decimal

	// UnitPrice is the price for a full billing period
	UnitPrice decimal.Decimal

	// Currency is the lowercase 3 letter ISO code of the unit price
	Currency string

	// BillingPeriod is the actual, possibly partial, period being charged
	BillingPeriod types.BillingPeriod

	// FullBillingPeriod is the canonical period the unit price was defined
	// for. When it differs in duration from BillingPeriod the charge needs
	// proration.
	FullBillingPeriod types.BillingPeriod
}

// New validates and returns a charge. The unit price, currency and both
// periods are required; a zero quantity defaults to 1.
func New(c Charge) (Charge, error) {
	if c.Title == "" {
		return Charge{}, ierr.NewError("charge is missing a title").
			Mark(ierr.ErrValidation)
	}
	if c.Currency == "" {
		return Charge{}, ierr.NewError("charge is missing a currency").
			WithHintf("charge %q has no currency", c.Title).
			Mark(ierr.ErrValidation)
	}
	if c.UnitPrice.IsNegative() {
		return Charge{}, ierr.NewError("charge unit price cannot be negative").
			WithReportableDetails(map[string]any{
				"title":      c.Title,
				"unit_price": c.UnitPrice.String(),
			}).
			Mark(ierr.ErrValidation)
	}
	if c.BillingPeriod.IsZero() || c.FullBillingPeriod.IsZero() {
		return Charge{}, ierr.NewError("charge is missing a billing period").
			WithHintf("charge %q must carry both its billing period and the full billing period", c.Title).
			Mark(ierr.ErrValidation)
	}
	if c.Quantity.IsZero() {
		c.Quantity = decimal.NewFromInt(1)
	}
	return c, nil
}

// NeedsProration reports whether the charged period is shorter or longer
// than the period its unit price was defined for.
func (c Charge) NeedsProration() bool {
	return c.FullBillingPeriod.Duration() != c.BillingPeriod.Duration()
}

// Total returns quantity * unit price, unrounded.
func (c Charge) Total() decimal.Decimal {
	return c.UnitPrice.Mul(c.Quantity)
}
