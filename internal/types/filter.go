package types

import "time"

// SubscriptionFilter narrows subscription queries.
type SubscriptionFilter struct {
	// CustomerID filters by customer
	CustomerID string `json:"customer_id,omitempty"`

	// Statuses filters by subscription status
	Statuses []SubscriptionStatus `json:"statuses,omitempty"`

	// StartsBefore keeps subscriptions whose start date is <= the instant
	StartsBefore *time.Time `json:"starts_before,omitempty"`

	// Limit caps the result size; zero means no cap
	Limit int `json:"limit,omitempty"`
}

// OrderFilter narrows order queries.
type OrderFilter struct {
	// OrderType filters by order type
	OrderType OrderType `json:"order_type,omitempty"`

	// Statuses filters by order status
	Statuses []OrderStatus `json:"statuses,omitempty"`

	// StoreID filters by store
	StoreID string `json:"store_id,omitempty"`

	// CustomerID filters by customer
	CustomerID string `json:"customer_id,omitempty"`

	// BillingScheduleID filters by the billing schedule stamped on the order
	BillingScheduleID string `json:"billing_schedule_id,omitempty"`

	// PaymentMethodID filters by payment method
	PaymentMethodID string `json:"payment_method_id,omitempty"`

	// Period keeps orders whose billing period matches both bounds exactly
	Period *BillingPeriod `json:"period,omitempty"`

	// PeriodEndBefore keeps orders whose billing period end is <= the instant
	PeriodEndBefore *time.Time `json:"period_end_before,omitempty"`

	// Limit caps the result size; zero means no cap
	Limit int `json:"limit,omitempty"`
}
