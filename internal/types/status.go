package types

import "fmt"

// SubscriptionStatus is the lifecycle state of a subscription.
type SubscriptionStatus string

const (
	// SubscriptionStatusPending means the subscription has been created but
	// its start time has not arrived yet.
	SubscriptionStatusPending SubscriptionStatus = "pending"
	// SubscriptionStatusTrialing means the subscription is inside its trial
	// window and has not started recurring billing.
	SubscriptionStatusTrialing SubscriptionStatus = "trialing"
	// SubscriptionStatusActive means the subscription is generating recurring
	// orders each cycle.
	SubscriptionStatusActive SubscriptionStatus = "active"
	// SubscriptionStatusCancelled is terminal.
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
)

func (s SubscriptionStatus) String() string {
	return string(s)
}

func (s SubscriptionStatus) Validate() error {
	allowed := []SubscriptionStatus{
		SubscriptionStatusPending,
		SubscriptionStatusTrialing,
		SubscriptionStatusActive,
		SubscriptionStatusCancelled,
	}
	for _, status := range allowed {
		if s == status {
			return nil
		}
	}
	return fmt.Errorf("invalid subscription status: %s", s)
}

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	// OrderStatusDraft is the open state a recurring order stays in while its
	// billing period is still running and charges may be refreshed.
	OrderStatusDraft OrderStatus = "draft"
	// OrderStatusPlaced means the order has been finalized but not yet paid.
	OrderStatusPlaced OrderStatus = "placed"
	// OrderStatusCompleted means the order has been paid.
	OrderStatusCompleted OrderStatus = "completed"
	// OrderStatusCancelled is terminal and unpaid.
	OrderStatusCancelled OrderStatus = "cancelled"
)

func (s OrderStatus) String() string {
	return string(s)
}

func (s OrderStatus) Validate() error {
	allowed := []OrderStatus{
		OrderStatusDraft,
		OrderStatusPlaced,
		OrderStatusCompleted,
		OrderStatusCancelled,
	}
	for _, status := range allowed {
		if s == status {
			return nil
		}
	}
	return fmt.Errorf("invalid order status: %s", s)
}

// IsFinal reports whether the order can no longer be closed or refreshed.
func (s OrderStatus) IsFinal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// OrderType distinguishes the initial checkout order from the recurring
// orders the engine generates per billing cycle.
type OrderType string

const (
	OrderTypeDefault   OrderType = "default"
	OrderTypeRecurring OrderType = "recurring"
)

func (t OrderType) String() string {
	return string(t)
}

// PaymentStatus is the state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

func (s PaymentStatus) String() string {
	return string(s)
}

func (s PaymentStatus) Validate() error {
	switch s {
	case PaymentStatusPending, PaymentStatusSucceeded, PaymentStatusFailed:
		return nil
	}
	return fmt.Errorf("invalid payment status: %s", s)
}
