package order

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Order is a billing cycle's worth of charges. Recurring orders carry the
// cycle's billing period and stay in draft while the period runs; the initial
// checkout order has OrderTypeDefault and no period.
type Order struct {
	// ID is the unique identifier for the order
	ID string `db:"id" json:"id"`

	// OrderNumber is the short human facing reference
	OrderNumber string `db:"order_number" json:"order_number"`

	// OrderType marks recurring orders apart from the initial checkout order
	OrderType types.OrderType `db:"order_type" json:"order_type"`

	// StoreID is the store the order belongs to
	StoreID string `db:"store_id" json:"store_id"`

	// CustomerID is the customer being billed
	CustomerID string `db:"customer_id" json:"customer_id"`

	// BillingScheduleID is the schedule the order's period was generated by
	BillingScheduleID string `db:"billing_schedule_id" json:"billing_schedule_id"`

	// BillingPeriod is the union envelope under which all the order's
	// subscription charges are computed for this cycle
	BillingPeriod types.BillingPeriod `json:"billing_period"`

	// BillingProfileID is the billing profile used at payment time
	BillingProfileID string `db:"billing_profile_id" json:"billing_profile_id"`

	// PaymentMethodID is the payment method charged when the order closes
	PaymentMethodID string `db:"payment_method_id" json:"payment_method_id"`

	// PaymentGatewayID is the gateway the payment method belongs to
	PaymentGatewayID string `db:"payment_gateway_id" json:"payment_gateway_id"`

	// Currency is the lowercase 3 letter ISO code shared by all line items
	Currency string `db:"currency" json:"currency"`

	// Status is the lifecycle state of the order
	Status types.OrderStatus `db:"status" json:"status"`

	// LineItems are owned by the order and persisted atomically with it
	LineItems []*LineItem `json:"line_items"`

	// CompletedAt is when the order was paid
	CompletedAt *time.Time `db:"completed_at" json:"completed_at"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewRecurringOrder returns an unsaved draft recurring order for the period.
func NewRecurringOrder(storeID, customerID, scheduleID, currency string, period types.BillingPeriod, now time.Time) *Order {
	return &Order{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER),
		OrderNumber:       types.GenerateShortIDWithPrefix(types.SHORT_ID_PREFIX_ORDER),
		OrderType:         types.OrderTypeRecurring,
		StoreID:           storeID,
		CustomerID:        customerID,
		BillingScheduleID: scheduleID,
		BillingPeriod:     period,
		Currency:          currency,
		Status:            types.OrderStatusDraft,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// orderTransitions is the legal state transition table. Completed and
// cancelled are terminal.
var orderTransitions = map[types.OrderStatus][]types.OrderStatus{
	types.OrderStatusDraft:  {types.OrderStatusPlaced, types.OrderStatusCancelled},
	types.OrderStatusPlaced: {types.OrderStatusCompleted, types.OrderStatusCancelled},
}

// CanTransitionTo reports whether the order may move to target.
func (o *Order) CanTransitionTo(target types.OrderStatus) bool {
	return lo.Contains(orderTransitions[o.Status], target)
}

// TransitionTo moves the order to target or fails with an invalid operation
// error.
func (o *Order) TransitionTo(target types.OrderStatus) error {
	if !o.CanTransitionTo(target) {
		return ierr.NewError("invalid order state transition").
			WithHintf("order %s cannot move from %s to %s", o.ID, o.Status, target).
			WithReportableDetails(map[string]any{
				"order_id": o.ID,
				"from":     o.Status.String(),
				"to":       target.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	o.Status = target
	return nil
}

// Total sums all line item totals including adjustments, rounded to the
// order currency's precision.
func (o *Order) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.LineItems {
		total = total.Add(item.Total())
	}
	return types.RoundToCurrencyPrecision(total, o.Currency)
}

// ItemsForSubscription returns the order's line items belonging to the given
// subscription, oldest first.
func (o *Order) ItemsForSubscription(subscriptionID string) []*LineItem {
	return lo.Filter(o.LineItems, func(item *LineItem, _ int) bool {
		return item.SubscriptionID == subscriptionID
	})
}

// ItemsForSubscriptionsNotIn returns line items whose subscription reference
// is empty or outside the given set, oldest first.
func (o *Order) ItemsForSubscriptionsNotIn(subscriptionIDs []string) []*LineItem {
	return lo.Filter(o.LineItems, func(item *LineItem, _ int) bool {
		return !lo.Contains(subscriptionIDs, item.SubscriptionID)
	})
}

// RemoveLineItem drops the line item with the given id from the order.
func (o *Order) RemoveLineItem(itemID string) {
	o.LineItems = lo.Reject(o.LineItems, func(item *LineItem, _ int) bool {
		return item.ID == itemID
	})
}
