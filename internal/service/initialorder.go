package service

import (
	"context"

	"github.com/billforge/billforge/internal/domain/order"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// InitialOrderProcessor adjusts the initial, non-recurring checkout order so
// the customer pays only the correct initial amount for lines that start a
// subscription:
//
//   - prepaid without trial: the line is reduced to the prorated price for
//     the remainder of the current cycle; the full-cycle price is billed by
//     the first recurring order
//   - any schedule with trials: the line becomes free ("free trial")
//   - postpaid without trial: the line becomes free ("pay later"), charged
//     when the first recurring order closes
//
// Adjustments are additive and never touch the base unit price, so the
// original price stays visible and seeds the subscription's stored price.
type InitialOrderProcessor struct {
	ServiceParams
}

func NewInitialOrderProcessor(params ServiceParams) *InitialOrderProcessor {
	return &InitialOrderProcessor{
		ServiceParams: params,
	}
}

// Process runs once per initial order at price-calculation time.
func (p *InitialOrderProcessor) Process(ctx context.Context, ord *order.Order) error {
	if ord.OrderType != types.OrderTypeDefault {
		return ierr.NewError("order is not an initial order").
			WithHintf("order %s of type %s cannot be processed as an initial order", ord.ID, ord.OrderType).
			Mark(ierr.ErrInvalidOperation)
	}

	for _, item := range ord.LineItems {
		if item.BillingScheduleID == "" {
			continue
		}
		if err := p.processItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

func (p *InitialOrderProcessor) processItem(ctx context.Context, item *order.LineItem) error {
	schedule, err := p.Schedules.Resolve(item.BillingScheduleID)
	if err != nil {
		return err
	}

	if schedule.AllowTrials() {
		item.AddAdjustment(order.AdjustmentTypeFreeTrial, "Free trial", item.BaseTotal().Neg())
		return nil
	}

	if schedule.BillingType() == types.BillingTypePostpaid {
		// Postpaid lines are never charged until the first recurring order
		// closes.
		item.AddAdjustment(order.AdjustmentTypePayLater, "Pay later", item.BaseTotal().Neg())
		return nil
	}

	// Prepaid without trial: charge only the remainder of the cycle now.
	now := p.Clock.Now()
	fullPeriod, err := schedule.GenerateFirstBillingPeriod(now)
	if err != nil {
		return err
	}
	partialPeriod, err := types.NewBillingPeriod(now, fullPeriod.End)
	if err != nil {
		return err
	}

	prorated, err := p.Prorater.ProrateOrderItem(ctx, item, partialPeriod, fullPeriod)
	if err != nil {
		return err
	}

	difference := prorated.Sub(item.UnitPrice).Mul(item.Quantity)
	if difference.IsZero() {
		return nil
	}
	item.AddAdjustment(order.AdjustmentTypeProration, "Prorated first period", difference)

	p.Logger.Debugw("prorated initial order item",
		"order_item_id", item.ID,
		"unit_price", item.UnitPrice.String(),
		"prorated", prorated.String(),
		"period", partialPeriod.String(),
	)
	return nil
}
