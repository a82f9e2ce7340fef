package order

import (
	"time"

	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
)

// AdjustmentType classifies a price adjustment on a line item.
type AdjustmentType string

const (
	// AdjustmentTypeProration offsets a full-period price down to the
	// prorated amount for a partial first period.
	AdjustmentTypeProration AdjustmentType = "proration"
	// AdjustmentTypeFreeTrial zeroes out a line covered by a free trial.
	AdjustmentTypeFreeTrial AdjustmentType = "free_trial"
	// AdjustmentTypePayLater zeroes out a postpaid line that is charged by
	// the first recurring order instead of at checkout.
	AdjustmentTypePayLater AdjustmentType = "pay_later"
)

// Adjustment is an additive price modification. It never mutates the item's
// base unit price, so the original price stays visible for display and for
// seeding the subscription's stored unit price.
type Adjustment struct {
	Type   AdjustmentType  `json:"type"`
	Label  string          `json:"label"`
	Amount decimal.Decimal `json:"amount"`
}

// LineItem is one purchased item on an order. On recurring orders each item
// carries its own billing period, possibly narrower than the order's.
type LineItem struct {
	// ID is the unique identifier for the line item
	ID string `db:"id" json:"id"`

	// OrderID is the owning order
	OrderID string `db:"order_id" json:"order_id"`

	// SubscriptionID links a recurring order item back to its subscription.
	// Empty on initial checkout items.
	SubscriptionID string `db:"subscription_id" json:"subscription_id"`

	// PurchasedItemID references the product variation
	PurchasedItemID string `db:"purchased_item_id" json:"purchased_item_id"`

	// BillingScheduleID is set on initial checkout items whose purchased
	// item starts a subscription; it selects the schedule plugin the
	// initial order processor consults.
	BillingScheduleID string `db:"billing_schedule_id" json:"billing_schedule_id"`

	// Title is the human readable label
	Title string `db:"title" json:"title"`

	// Quantity purchased
	Quantity decimal.Decimal `db:"quantity" json:"quantity"`

	// UnitPrice for the item's billing period
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`

	// Currency is the lowercase 3 letter ISO code of the unit price
	Currency string `db:"currency" json:"currency"`

	// BillingPeriod is the window this item's charge covers
	BillingPeriod types.BillingPeriod `json:"billing_period"`

	// Adjustments are additive modifications applied on top of the base
	// unit price
	Adjustments []Adjustment `json:"adjustments"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// NewLineItem returns a line item with a fresh id bound to the order.
func NewLineItem(orderID string, now time.Time) *LineItem {
	return &LineItem{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_ORDER_LINE_ITEM),
		OrderID:   orderID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// BaseTotal returns quantity * unit price without adjustments.
func (i *LineItem) BaseTotal() decimal.Decimal {
	return i.UnitPrice.Mul(i.Quantity)
}

// Total returns the base total plus all adjustments.
func (i *LineItem) Total() decimal.Decimal {
	total := i.BaseTotal()
	for _, adjustment := range i.Adjustments {
		total = total.Add(adjustment.Amount)
	}
	return total
}

// AddAdjustment appends an additive price modification.
func (i *LineItem) AddAdjustment(adjustmentType AdjustmentType, label string, amount decimal.Decimal) {
	i.Adjustments = append(i.Adjustments, Adjustment{
		Type:   adjustmentType,
		Label:  label,
		Amount: amount,
	})
}
