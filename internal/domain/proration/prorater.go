package proration

import (
	"context"

	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// Prorater computes an adjusted unit price for a partial billing period
// given the full period the price was defined for. The order manager calls
// it whenever a charge's billing period differs in duration from its full
// period, and otherwise uses the charge's unit price unmodified.
type Prorater interface {
	ProrateOrderItem(ctx context.Context, item *order.LineItem, period, fullPeriod types.BillingPeriod) (decimal.Decimal, error)
}
