package service

import (
	"context"
	"time"

	"github.com/billforge/billforge/internal/domain/charge"
	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/plugin"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
)

// RecurringOrderManager drives subscriptions and their recurring orders
// through the billing lifecycle.
type RecurringOrderManager interface {
	// StartTrial creates the recurring order covering the subscription's
	// trial window. The subscription must be trialing and its schedule must
	// allow trials.
	StartTrial(ctx context.Context, sub *subscription.Subscription) (*order.Order, error)

	// StartRecurring creates the first recurring order for an active
	// subscription and sets its renewal bookkeeping.
	StartRecurring(ctx context.Context, sub *subscription.Subscription) (*order.Order, error)

	// RefreshOrder recomputes all order items for the order's current
	// billing period. An order left with no charges is cancelled.
	RefreshOrder(ctx context.Context, ord *order.Order) error

	// CloseOrder collects payment for the order. Idempotent: closed orders
	// are left untouched and an already-paid order is only marked completed.
	CloseOrder(ctx context.Context, ord *order.Order) error

	// RenewOrder opens the next recurring order for every subscription
	// still active on ord. Returns nil when nothing was renewed.
	RenewOrder(ctx context.Context, ord *order.Order) (*order.Order, error)

	// CollectSubscriptions returns the distinct, still existing
	// subscriptions referenced by the order's items.
	CollectSubscriptions(ctx context.Context, ord *order.Order) ([]*subscription.Subscription, error)
}

type recurringOrderManager struct {
	ServiceParams
}

func NewRecurringOrderManager(params ServiceParams) RecurringOrderManager {
	return &recurringOrderManager{
		ServiceParams: params,
	}
}

func (m *recurringOrderManager) StartTrial(ctx context.Context, sub *subscription.Subscription) (*order.Order, error) {
	if sub.Status != types.SubscriptionStatusTrialing {
		return nil, ierr.NewError("subscription is not trialing").
			WithHintf("cannot start a trial for subscription %s in state %s", sub.ID, sub.Status).
			Mark(ierr.ErrInvalidOperation)
	}

	schedule, err := m.Schedules.Resolve(sub.BillingScheduleID)
	if err != nil {
		return nil, err
	}
	if !schedule.AllowTrials() {
		return nil, ierr.NewError("billing schedule does not allow trials").
			WithHintf("subscription %s uses schedule %s which has trials disabled", sub.ID, sub.BillingScheduleID).
			Mark(ierr.ErrInvalidOperation)
	}

	trialPeriod, err := sub.TrialPeriod()
	if err != nil {
		return nil, err
	}

	handler, err := m.SubscriptionTypes.Resolve(sub.SubscriptionTypeID)
	if err != nil {
		return nil, err
	}

	ord, isNew, err := m.findOrCreateOrder(ctx, sub, schedule, trialPeriod)
	if err != nil {
		return nil, err
	}

	charges, err := handler.CollectTrialCharges(ctx, sub, trialPeriod)
	if err != nil {
		return nil, err
	}
	if err := m.applyCharges(ctx, ord, sub, charges); err != nil {
		return nil, err
	}

	if err := handler.OnSubscriptionTrialStart(ctx, sub, ord); err != nil {
		return nil, err
	}

	if err := m.persistOrder(ctx, ord, isNew); err != nil {
		return nil, err
	}
	sub.AddOrderID(ord.ID)
	if err := m.persistSubscription(ctx, sub); err != nil {
		return nil, err
	}

	m.Logger.Infow("started trial",
		"subscription_id", sub.ID,
		"order_id", ord.ID,
		"period", trialPeriod.String(),
	)
	return ord, nil
}

func (m *recurringOrderManager) StartRecurring(ctx context.Context, sub *subscription.Subscription) (*order.Order, error) {
	if sub.Status != types.SubscriptionStatusActive {
		return nil, ierr.NewError("subscription is not active").
			WithHintf("cannot start recurring billing for subscription %s in state %s", sub.ID, sub.Status).
			Mark(ierr.ErrInvalidOperation)
	}

	schedule, err := m.Schedules.Resolve(sub.BillingScheduleID)
	if err != nil {
		return nil, err
	}
	handler, err := m.SubscriptionTypes.Resolve(sub.SubscriptionTypeID)
	if err != nil {
		return nil, err
	}

	period, err := schedule.GenerateFirstBillingPeriod(sub.StartDate)
	if err != nil {
		return nil, err
	}
	sub.NextRenewalAt = lo.ToPtr(period.End)

	ord, isNew, err := m.findOrCreateOrder(ctx, sub, schedule, period)
	if err != nil {
		return nil, err
	}

	charges, err := handler.CollectCharges(ctx, sub, period)
	if err != nil {
		return nil, err
	}
	if err := m.applyCharges(ctx, ord, sub, charges); err != nil {
		return nil, err
	}

	if err := handler.OnSubscriptionActivate(ctx, sub, ord); err != nil {
		return nil, err
	}

	if err := m.persistOrder(ctx, ord, isNew); err != nil {
		return nil, err
	}
	sub.AddOrderID(ord.ID)
	if err := m.persistSubscription(ctx, sub); err != nil {
		return nil, err
	}

	m.Logger.Infow("started recurring billing",
		"subscription_id", sub.ID,
		"order_id", ord.ID,
		"period", period.String(),
	)
	return ord, nil
}

func (m *recurringOrderManager) RefreshOrder(ctx context.Context, ord *order.Order) error {
	if ord.Status.IsFinal() {
		return nil
	}

	subs, err := m.CollectSubscriptions(ctx, ord)
	if err != nil {
		return err
	}

	for _, sub := range subs {
		charges, err := m.collectChargesFor(ctx, sub, ord.BillingPeriod)
		if err != nil {
			return err
		}
		if err := m.applyCharges(ctx, ord, sub, charges); err != nil {
			return err
		}
	}

	// Items whose subscription vanished are orphans; drop them so a fully
	// orphaned order ends up empty and gets cancelled below.
	validSubIDs := lo.Map(subs, func(sub *subscription.Subscription, _ int) string {
		return sub.ID
	})
	for _, item := range ord.ItemsForSubscriptionsNotIn(validSubIDs) {
		ord.RemoveLineItem(item.ID)
	}

	m.syncPaymentMethod(ord, subs)

	if len(ord.LineItems) == 0 {
		if err := ord.TransitionTo(types.OrderStatusCancelled); err != nil {
			return err
		}
		m.Logger.Infow("cancelled recurring order with no remaining charges",
			"order_id", ord.ID,
		)
	}

	return m.persistOrder(ctx, ord, false)
}

func (m *recurringOrderManager) CloseOrder(ctx context.Context, ord *order.Order) error {
	if ord.Status.IsFinal() {
		return nil
	}

	now := m.Clock.Now()

	// A retried close after a gateway timeout must not charge twice.
	paid, err := m.PaymentRepo.IsOrderPaid(ctx, ord.ID)
	if err != nil {
		return err
	}
	if paid {
		return m.completeOrder(ctx, ord, now)
	}

	if ord.Status == types.OrderStatusDraft {
		if err := ord.TransitionTo(types.OrderStatusPlaced); err != nil {
			return err
		}
		if err := m.persistOrder(ctx, ord, false); err != nil {
			return err
		}
	}

	subs, err := m.CollectSubscriptions(ctx, ord)
	if err != nil {
		return err
	}
	paySub := selectPaymentMethod(subs)
	if paySub == nil {
		return ierr.NewError("no payment method on any subscription").
			WithHintf("order %s cannot be closed without a payment method", ord.ID).
			WithReportableDetails(map[string]any{
				"order_id": ord.ID,
			}).
			Mark(ierr.ErrPaymentHardDeclined)
	}
	m.syncPaymentMethod(ord, subs)

	pay := payment.New(ord.ID, ord.PaymentMethodID, ord.PaymentGatewayID, ord.Total(), ord.Currency, now)
	if err := m.PaymentRepo.Create(ctx, pay); err != nil {
		return err
	}

	if err := m.PaymentGateway.CreatePayment(ctx, pay); err != nil {
		pay.Status = types.PaymentStatusFailed
		pay.ErrorMessage = lo.ToPtr(err.Error())
		pay.FailedAt = lo.ToPtr(m.Clock.Now())
		pay.UpdatedAt = m.Clock.Now()
		if updateErr := m.PaymentRepo.Update(ctx, pay); updateErr != nil {
			m.Logger.Errorw("failed to record payment failure",
				"payment_id", pay.ID,
				"error", updateErr,
			)
		}
		// The order stays in its pre-close state so a retry is safe;
		// decline handling (dunning) is the caller's concern.
		return err
	}

	pay.Status = types.PaymentStatusSucceeded
	pay.SucceededAt = lo.ToPtr(m.Clock.Now())
	pay.UpdatedAt = m.Clock.Now()
	if err := m.PaymentRepo.Update(ctx, pay); err != nil {
		return err
	}

	return m.completeOrder(ctx, ord, m.Clock.Now())
}

func (m *recurringOrderManager) RenewOrder(ctx context.Context, ord *order.Order) (*order.Order, error) {
	subs, err := m.CollectSubscriptions(ctx, ord)
	if err != nil {
		return nil, err
	}

	now := m.Clock.Now()
	var lastNext *order.Order
	for _, sub := range subs {
		// Deleted or deactivated subscriptions simply stop renewing.
		if !sub.IsActive() {
			continue
		}

		schedule, err := m.Schedules.Resolve(sub.BillingScheduleID)
		if err != nil {
			return nil, err
		}
		handler, err := m.SubscriptionTypes.Resolve(sub.SubscriptionTypeID)
		if err != nil {
			return nil, err
		}

		nextPeriod, err := schedule.GenerateNextBillingPeriod(sub.StartDate, ord.BillingPeriod)
		if err != nil {
			return nil, err
		}

		nextOrder, isNew, err := m.findOrCreateOrder(ctx, sub, schedule, nextPeriod)
		if err != nil {
			return nil, err
		}

		charges, err := handler.CollectCharges(ctx, sub, nextPeriod)
		if err != nil {
			return nil, err
		}
		if err := m.applyCharges(ctx, nextOrder, sub, charges); err != nil {
			return nil, err
		}

		if err := handler.OnSubscriptionRenew(ctx, sub, ord, nextOrder); err != nil {
			return nil, err
		}

		if err := m.persistOrder(ctx, nextOrder, isNew); err != nil {
			return nil, err
		}

		sub.RenewedAt = lo.ToPtr(now)
		sub.NextRenewalAt = lo.ToPtr(nextPeriod.End)
		sub.AddOrderID(nextOrder.ID)
		if err := m.persistSubscription(ctx, sub); err != nil {
			return nil, err
		}

		m.Logger.Infow("renewed subscription",
			"subscription_id", sub.ID,
			"order_id", ord.ID,
			"next_order_id", nextOrder.ID,
			"next_period", nextPeriod.String(),
		)
		lastNext = nextOrder
	}

	return lastNext, nil
}

func (m *recurringOrderManager) CollectSubscriptions(ctx context.Context, ord *order.Order) ([]*subscription.Subscription, error) {
	seen := make(map[string]bool)
	subs := make([]*subscription.Subscription, 0, len(ord.LineItems))
	for _, item := range ord.LineItems {
		// Tolerate orphaned data from manual subscription deletion.
		if item.SubscriptionID == "" || seen[item.SubscriptionID] {
			continue
		}
		seen[item.SubscriptionID] = true

		sub, err := m.SubscriptionRepo.Get(ctx, item.SubscriptionID)
		if err != nil {
			if ierr.IsNotFound(err) {
				m.Logger.Warnw("skipping dangling subscription reference",
					"order_id", ord.ID,
					"subscription_id", item.SubscriptionID,
				)
				continue
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// findOrCreateOrder reuses an existing draft recurring order for the same
// store, customer, schedule, exact period bounds and (when the subscription
// has one) payment method, provided the schedule allows combining. This is
// how multiple subscriptions land on a single invoice; subscriptions with
// different payment methods are deliberately never combined.
func (m *recurringOrderManager) findOrCreateOrder(ctx context.Context, sub *subscription.Subscription, schedule plugin.BillingSchedule, period types.BillingPeriod) (*order.Order, bool, error) {
	if schedule.AllowCombiningSubscriptions() {
		filter := &types.OrderFilter{
			OrderType:         types.OrderTypeRecurring,
			Statuses:          []types.OrderStatus{types.OrderStatusDraft},
			StoreID:           sub.StoreID,
			CustomerID:        sub.CustomerID,
			BillingScheduleID: sub.BillingScheduleID,
			Period:            &period,
		}
		if sub.PaymentMethodID != "" {
			filter.PaymentMethodID = sub.PaymentMethodID
		}
		existing, err := m.OrderRepo.List(ctx, filter)
		if err != nil {
			return nil, false, err
		}
		if len(existing) > 0 {
			return existing[0], false, nil
		}
	}

	ord := order.NewRecurringOrder(sub.StoreID, sub.CustomerID, sub.BillingScheduleID, sub.Currency, period, m.Clock.Now())
	ord.PaymentMethodID = sub.PaymentMethodID
	ord.PaymentGatewayID = sub.PaymentGatewayID
	ord.BillingProfileID = sub.BillingProfileID
	return ord, true, nil
}

// applyCharges diffs the order's existing items for the subscription against
// the fresh charges: existing items are reused positionally oldest first,
// surplus charges become new items and surplus items are deleted.
func (m *recurringOrderManager) applyCharges(ctx context.Context, ord *order.Order, sub *subscription.Subscription, charges []charge.Charge) error {
	now := m.Clock.Now()
	existing := ord.ItemsForSubscription(sub.ID)

	for i, c := range charges {
		var item *order.LineItem
		if i < len(existing) {
			item = existing[i]
		} else {
			item = order.NewLineItem(ord.ID, now)
			ord.LineItems = append(ord.LineItems, item)
		}

		item.SubscriptionID = sub.ID
		item.PurchasedItemID = c.PurchasedItemID
		item.Title = c.Title
		item.Quantity = c.Quantity
		item.Currency = c.Currency
		item.BillingPeriod = c.BillingPeriod
		item.UnitPrice = c.UnitPrice
		item.UpdatedAt = now

		if c.NeedsProration() {
			prorated, err := m.Prorater.ProrateOrderItem(ctx, item, c.BillingPeriod, c.FullBillingPeriod)
			if err != nil {
				return err
			}
			item.UnitPrice = prorated
		}
	}

	// Orphaned items left over from a shrinking charge list
	for _, item := range existing[min(len(charges), len(existing)):] {
		ord.RemoveLineItem(item.ID)
	}

	return nil
}

// selectPaymentMethod picks, among the subscriptions carrying a payment
// method, the one with the numerically highest id, i.e. the most recently
// created. Returns nil if no subscription has one. The tie-break is crude
// but deliberate; changing it silently changes which profile gets billed.
func selectPaymentMethod(subs []*subscription.Subscription) *subscription.Subscription {
	var selected *subscription.Subscription
	for _, sub := range subs {
		if sub.PaymentMethodID == "" {
			continue
		}
		if selected == nil || sub.PaymentMethodID > selected.PaymentMethodID {
			selected = sub
		}
	}
	return selected
}

// syncPaymentMethod keeps the order's billing profile, payment method and
// gateway aligned with the payment method deduced across its subscriptions.
func (m *recurringOrderManager) syncPaymentMethod(ord *order.Order, subs []*subscription.Subscription) {
	paySub := selectPaymentMethod(subs)
	if paySub == nil {
		return
	}
	ord.PaymentMethodID = paySub.PaymentMethodID
	ord.PaymentGatewayID = paySub.PaymentGatewayID
	ord.BillingProfileID = paySub.BillingProfileID
}

func (m *recurringOrderManager) completeOrder(ctx context.Context, ord *order.Order, now time.Time) error {
	if ord.Status == types.OrderStatusDraft {
		if err := ord.TransitionTo(types.OrderStatusPlaced); err != nil {
			return err
		}
	}
	if err := ord.TransitionTo(types.OrderStatusCompleted); err != nil {
		return err
	}
	ord.CompletedAt = lo.ToPtr(now)
	if err := m.persistOrder(ctx, ord, false); err != nil {
		return err
	}
	m.Logger.Infow("closed recurring order",
		"order_id", ord.ID,
		"total", ord.Total().String(),
		"currency", ord.Currency,
	)
	return nil
}

func (m *recurringOrderManager) persistOrder(ctx context.Context, ord *order.Order, isNew bool) error {
	ord.UpdatedAt = m.Clock.Now()
	if isNew {
		return m.OrderRepo.Create(ctx, ord)
	}
	return m.OrderRepo.Update(ctx, ord)
}

func (m *recurringOrderManager) persistSubscription(ctx context.Context, sub *subscription.Subscription) error {
	sub.UpdatedAt = m.Clock.Now()
	return m.SubscriptionRepo.Update(ctx, sub)
}

// collectChargesFor dispatches to trial or regular charge collection based
// on the subscription's state; inactive subscriptions produce no charges so
// a refresh strips their items.
func (m *recurringOrderManager) collectChargesFor(ctx context.Context, sub *subscription.Subscription, period types.BillingPeriod) ([]charge.Charge, error) {
	handler, err := m.SubscriptionTypes.Resolve(sub.SubscriptionTypeID)
	if err != nil {
		return nil, err
	}
	switch sub.Status {
	case types.SubscriptionStatusTrialing:
		return handler.CollectTrialCharges(ctx, sub, period)
	case types.SubscriptionStatusActive:
		return handler.CollectCharges(ctx, sub, period)
	default:
		return nil, nil
	}
}
