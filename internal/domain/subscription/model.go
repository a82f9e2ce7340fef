package subscription

import (
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
)

// Subscription is the standing agreement that generates recurring orders
// across its lifetime.
type Subscription struct {
	// ID is the unique identifier for the subscription
	ID string `db:"id" json:"id"`

	// CustomerID is the identifier for the customer in our system
	CustomerID string `db:"customer_id" json:"customer_id"`

	// StoreID is the store the subscription was purchased from
	StoreID string `db:"store_id" json:"store_id"`

	// BillingScheduleID selects the billing schedule plugin instance
	BillingScheduleID string `db:"billing_schedule_id" json:"billing_schedule_id"`

	// SubscriptionTypeID selects the subscription type handler
	SubscriptionTypeID string `db:"subscription_type_id" json:"subscription_type_id"`

	// PaymentMethodID is the stored payment method billed each cycle, if any
	PaymentMethodID string `db:"payment_method_id" json:"payment_method_id"`

	// PaymentGatewayID is the gateway the payment method belongs to
	PaymentGatewayID string `db:"payment_gateway_id" json:"payment_gateway_id"`

	// BillingProfileID is the billing profile attached to the payment method
	BillingProfileID string `db:"billing_profile_id" json:"billing_profile_id"`

	// PurchasedItemID references the product variation being billed
	PurchasedItemID string `db:"purchased_item_id" json:"purchased_item_id"`

	// Title is the human readable label carried onto order items
	Title string `db:"title" json:"title"`

	// Quantity billed each cycle
	Quantity decimal.Decimal `db:"quantity" json:"quantity"`

	// UnitPrice is the full-period price for a single unit
	UnitPrice decimal.Decimal `db:"unit_price" json:"unit_price"`

	// Currency is the lowercase 3 letter ISO code of the unit price
	Currency string `db:"currency" json:"currency"`

	// Status is the lifecycle state of the subscription
	Status types.SubscriptionStatus `db:"status" json:"status"`

	// StartDate is when recurring billing begins. For subscriptions created
	// with a trial this is the trial end; the cron sweep activates the
	// subscription once this instant arrives.
	StartDate time.Time `db:"start_date" json:"start_date"`

	// TrialStart is the start of the trial window, if the schedule allows one
	TrialStart *time.Time `db:"trial_start" json:"trial_start"`

	// TrialEnd is the end of the trial window
	TrialEnd *time.Time `db:"trial_end" json:"trial_end"`

	// NextRenewalAt is the end of the period the subscription has been
	// billed through; the next recurring order opens at this instant
	NextRenewalAt *time.Time `db:"next_renewal_at" json:"next_renewal_at"`

	// RenewedAt is when the subscription last rolled into a new period
	RenewedAt *time.Time `db:"renewed_at" json:"renewed_at"`

	// OrderIDs are the recurring orders generated for this subscription
	OrderIDs []string `json:"order_ids"`

	// ScheduledChanges are deferred mutations applied at the next period
	// boundary, before the next order opens
	ScheduledChanges []ScheduledChange `json:"scheduled_changes"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// subscriptionTransitions is the legal state transition table. Cancelled is
// terminal.
var subscriptionTransitions = map[types.SubscriptionStatus][]types.SubscriptionStatus{
	types.SubscriptionStatusPending:  {types.SubscriptionStatusTrialing, types.SubscriptionStatusActive, types.SubscriptionStatusCancelled},
	types.SubscriptionStatusTrialing: {types.SubscriptionStatusActive, types.SubscriptionStatusCancelled},
	types.SubscriptionStatusActive:   {types.SubscriptionStatusCancelled},
}

// CanTransitionTo reports whether the subscription may move to target.
func (s *Subscription) CanTransitionTo(target types.SubscriptionStatus) bool {
	return lo.Contains(subscriptionTransitions[s.Status], target)
}

// TransitionTo moves the subscription to target or fails with an invalid
// operation error.
func (s *Subscription) TransitionTo(target types.SubscriptionStatus) error {
	if !s.CanTransitionTo(target) {
		return ierr.NewError("invalid subscription state transition").
			WithHintf("subscription %s cannot move from %s to %s", s.ID, s.Status, target).
			WithReportableDetails(map[string]any{
				"subscription_id": s.ID,
				"from":            s.Status.String(),
				"to":              target.String(),
			}).
			Mark(ierr.ErrInvalidOperation)
	}
	s.Status = target
	return nil
}

// IsActive reports whether the subscription should keep generating charges.
func (s *Subscription) IsActive() bool {
	return s.Status == types.SubscriptionStatusActive
}

// TrialPeriod returns the billing period spanning the trial window.
func (s *Subscription) TrialPeriod() (types.BillingPeriod, error) {
	if s.TrialStart == nil || s.TrialEnd == nil {
		return types.BillingPeriod{}, ierr.NewError("subscription has no trial window").
			WithHintf("subscription %s is missing trial start or trial end", s.ID).
			Mark(ierr.ErrInvalidOperation)
	}
	period, err := types.NewBillingPeriod(*s.TrialStart, *s.TrialEnd)
	if err != nil {
		return types.BillingPeriod{}, ierr.WithError(err).
			WithHintf("subscription %s has an invalid trial window", s.ID).
			Mark(ierr.ErrValidation)
	}
	return period, nil
}

// AddOrderID records a recurring order against the subscription, once.
func (s *Subscription) AddOrderID(orderID string) {
	if !lo.Contains(s.OrderIDs, orderID) {
		s.OrderIDs = append(s.OrderIDs, orderID)
	}
}
