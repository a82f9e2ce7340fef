package proration

import (
	"context"

	"github.com/billforge/billforge/internal/domain/order"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// timeBasedProrater implements linear time proration: the prorated price is
// fullPrice * (period.Duration() / fullPeriod.Duration()), evaluated as an
// exact decimal computation and rounded once to the currency's precision.
type timeBasedProrater struct{}

// NewTimeBasedProrater returns the default proration implementation.
func NewTimeBasedProrater() Prorater {
	return &timeBasedProrater{}
}

func (p *timeBasedProrater) ProrateOrderItem(ctx context.Context, item *order.LineItem, period, fullPeriod types.BillingPeriod) (decimal.Decimal, error) {
	fullSeconds := fullPeriod.DurationSeconds()
	if !fullSeconds.IsPositive() {
		return decimal.Zero, ierr.NewError("full billing period has no duration").
			WithHintf("cannot prorate order item %s over %s", item.ID, fullPeriod).
			Mark(ierr.ErrValidation)
	}

	periodSeconds := period.DurationSeconds()
	if periodSeconds.GreaterThan(fullSeconds) {
		return decimal.Zero, ierr.NewError("billing period exceeds its full billing period").
			WithReportableDetails(map[string]any{
				"order_item_id": item.ID,
				"period":        period.String(),
				"full_period":   fullPeriod.String(),
			}).
			Mark(ierr.ErrValidation)
	}

	prorated := item.UnitPrice.Mul(periodSeconds).Div(fullSeconds)
	return types.RoundToCurrencyPrecision(prorated, item.Currency), nil
}
