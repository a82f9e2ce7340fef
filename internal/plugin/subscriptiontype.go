package plugin

import (
	"context"

	"github.com/billforge/billforge/internal/domain/charge"
	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// SubscriptionTypeHandler produces the charges for a subscription each cycle
// and gets lifecycle callbacks before the engine persists state changes. The
// callbacks may adjust both the subscription and the order passed in.
type SubscriptionTypeHandler interface {
	// ID is the identifier subscriptions reference the handler by
	ID() string

	// CollectCharges returns the charges for one billing cycle
	CollectCharges(ctx context.Context, sub *subscription.Subscription, period types.BillingPeriod) ([]charge.Charge, error)

	// CollectTrialCharges returns the charges for the trial period
	CollectTrialCharges(ctx context.Context, sub *subscription.Subscription, period types.BillingPeriod) ([]charge.Charge, error)

	// OnSubscriptionCreate runs when a subscription is first created
	OnSubscriptionCreate(ctx context.Context, sub *subscription.Subscription) error

	// OnSubscriptionTrialStart runs before the trial order and subscription
	// are persisted
	OnSubscriptionTrialStart(ctx context.Context, sub *subscription.Subscription, ord *order.Order) error

	// OnSubscriptionActivate runs before the first recurring order and
	// subscription are persisted
	OnSubscriptionActivate(ctx context.Context, sub *subscription.Subscription, ord *order.Order) error

	// OnSubscriptionRenew runs before a renewal is persisted; ord is the
	// closing order and nextOrder the one just opened
	OnSubscriptionRenew(ctx context.Context, sub *subscription.Subscription, ord *order.Order, nextOrder *order.Order) error
}

// ProductHandler is the default subscription type: one charge per cycle for
// the subscription's purchased item, prorated automatically when the
// subscription starts partway through the cycle. Trials are free.
type ProductHandler struct {
	id string
}

const DefaultSubscriptionType = "product"

func NewProductHandler() *ProductHandler {
	return &ProductHandler{id: DefaultSubscriptionType}
}

func (h *ProductHandler) ID() string {
	return h.id
}

func (h *ProductHandler) CollectCharges(ctx context.Context, sub *subscription.Subscription, period types.BillingPeriod) ([]charge.Charge, error) {
	// A subscription that starts partway through the cycle is only charged
	// from its start date; the narrower item period drives proration.
	itemPeriod := period
	if period.Contains(sub.StartDate) && sub.StartDate.After(period.Start) {
		narrowed, err := types.NewBillingPeriod(sub.StartDate, period.End)
		if err != nil {
			return nil, err
		}
		itemPeriod = narrowed
	}

	c, err := charge.New(charge.Charge{
		PurchasedItemID:   sub.PurchasedItemID,
		Title:             sub.Title,
		Quantity:          sub.Quantity,
		UnitPrice:         sub.UnitPrice,
		Currency:          sub.Currency,
		BillingPeriod:     itemPeriod,
		FullBillingPeriod: period,
	})
	if err != nil {
		return nil, err
	}
	return []charge.Charge{c}, nil
}

func (h *ProductHandler) CollectTrialCharges(ctx context.Context, sub *subscription.Subscription, period types.BillingPeriod) ([]charge.Charge, error) {
	// Free trial: the charge exists so the trial shows up on the recurring
	// order, but at a zero price.
	c, err := charge.New(charge.Charge{
		PurchasedItemID:   sub.PurchasedItemID,
		Title:             sub.Title,
		Quantity:          sub.Quantity,
		UnitPrice:         decimal.Zero,
		Currency:          sub.Currency,
		BillingPeriod:     period,
		FullBillingPeriod: period,
	})
	if err != nil {
		return nil, err
	}
	return []charge.Charge{c}, nil
}

func (h *ProductHandler) OnSubscriptionCreate(ctx context.Context, sub *subscription.Subscription) error {
	return nil
}

func (h *ProductHandler) OnSubscriptionTrialStart(ctx context.Context, sub *subscription.Subscription, ord *order.Order) error {
	return nil
}

func (h *ProductHandler) OnSubscriptionActivate(ctx context.Context, sub *subscription.Subscription, ord *order.Order) error {
	return nil
}

func (h *ProductHandler) OnSubscriptionRenew(ctx context.Context, sub *subscription.Subscription, ord *order.Order, nextOrder *order.Order) error {
	return nil
}
