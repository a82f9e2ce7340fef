package service

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/config"
	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/domain/payment"
	"github.com/billforge/billforge/internal/domain/proration"
	"github.com/billforge/billforge/internal/domain/subscription"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/plugin"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// testSchedules declares the billing schedules the service suites run
// against: a combining calendar-aligned monthly schedule in both billing
// types, plus one with trials enabled.
func testSchedules(s *testutil.BaseServiceTestSuite) *plugin.ScheduleRegistry {
	registry, err := plugin.NewScheduleRegistryFromConfig(&config.Configuration{
		BillingSchedules: []config.BillingScheduleConfig{
			{
				ID:           "monthly_fixed",
				Interval:     types.BILLING_INTERVAL_MONTHLY,
				IntervalUnit: 1,
				BillingType:  types.BillingTypePostpaid,
				Combine:      true,
				Fixed:        true,
			},
			{
				ID:           "monthly_prepaid",
				Interval:     types.BILLING_INTERVAL_MONTHLY,
				IntervalUnit: 1,
				BillingType:  types.BillingTypePrepaid,
				Combine:      true,
				Fixed:        true,
			},
			{
				ID:           "monthly_trial",
				Interval:     types.BILLING_INTERVAL_MONTHLY,
				IntervalUnit: 1,
				BillingType:  types.BillingTypePostpaid,
				AllowTrials:  true,
				TrialDays:    10,
				Fixed:        true,
			},
		},
	})
	if err != nil {
		s.T().Fatalf("failed to build schedule registry: %v", err)
	}
	return registry
}

func newTestParams(s *testutil.BaseServiceTestSuite) ServiceParams {
	stores := s.GetStores()
	return ServiceParams{
		Logger:            s.GetLogger(),
		Config:            s.GetConfig(),
		Clock:             s.GetClock(),
		SubscriptionRepo:  stores.SubscriptionRepo,
		OrderRepo:         stores.OrderRepo,
		PaymentRepo:       stores.PaymentRepo,
		PaymentGateway:    s.GetGateway(),
		JobQueue:          s.GetQueue(),
		Schedules:         testSchedules(s),
		SubscriptionTypes: plugin.NewTypeRegistry(plugin.NewProductHandler()),
		Prorater:          proration.NewTimeBasedProrater(),
	}
}

type RecurringOrderManagerSuite struct {
	testutil.BaseServiceTestSuite
	params  ServiceParams
	manager RecurringOrderManager
}

func TestRecurringOrderManagerSuite(t *testing.T) {
	suite.Run(t, new(RecurringOrderManagerSuite))
}

func (s *RecurringOrderManagerSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetClock().SetNow(time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC))
	s.params = newTestParams(&s.BaseServiceTestSuite)
	s.manager = NewRecurringOrderManager(s.params)
}

// newActiveSubscription persists an active monthly subscription starting
// 2019-02-15 at 20 usd per cycle.
func (s *RecurringOrderManagerSuite) newActiveSubscription(scheduleID, paymentMethodID string) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:        "cust_1",
		StoreID:           "store_1",
		BillingScheduleID: scheduleID,
		PaymentMethodID:   paymentMethodID,
		PaymentGatewayID:  "gw_1",
		BillingProfileID:  "prof_1",
		PurchasedItemID:   "item_1",
		Title:             "Gold plan",
		Quantity:          decimal.NewFromInt(1),
		UnitPrice:         decimal.NewFromInt(20),
		Currency:          "usd",
		Status:            types.SubscriptionStatusActive,
		StartDate:         time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:         s.GetClock().Now(),
		UpdatedAt:         s.GetClock().Now(),
	}
	s.NoError(s.params.SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *RecurringOrderManagerSuite) TestStartRecurringCreatesProratedFirstOrder() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")

	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)
	s.NotNil(ord)

	// The calendar-aligned schedule opens the period on the first of the
	// month even though the subscription started mid-month.
	s.True(ord.BillingPeriod.Start.Equal(time.Date(2019, 2, 1, 0, 0, 0, 0, time.UTC)))
	s.True(ord.BillingPeriod.End.Equal(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC)))
	s.Equal(types.OrderStatusDraft, ord.Status)

	// 14 of February's 28 days remain, so the first charge is half price.
	s.Require().Len(ord.LineItems, 1)
	item := ord.LineItems[0]
	s.True(item.UnitPrice.Equal(decimal.NewFromInt(10)), "got %s", item.UnitPrice)
	s.True(item.BillingPeriod.Start.Equal(sub.StartDate))
	s.True(item.BillingPeriod.End.Equal(ord.BillingPeriod.End))
	s.Equal(sub.ID, item.SubscriptionID)

	s.Require().NotNil(sub.NextRenewalAt)
	s.True(sub.NextRenewalAt.Equal(ord.BillingPeriod.End))
	s.Contains(sub.OrderIDs, ord.ID)

	saved, err := s.params.OrderRepo.Get(s.GetContext(), ord.ID)
	s.NoError(err)
	s.Len(saved.LineItems, 1)
}

func (s *RecurringOrderManagerSuite) TestStartRecurringRequiresActiveSubscription() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	sub.Status = types.SubscriptionStatusPending

	_, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *RecurringOrderManagerSuite) TestStartTrialCreatesFreeOrder() {
	sub := s.newActiveSubscription("monthly_trial", "pm_1")
	sub.Status = types.SubscriptionStatusTrialing
	sub.TrialStart = lo.ToPtr(time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC))
	sub.TrialEnd = lo.ToPtr(time.Date(2019, 2, 25, 0, 0, 0, 0, time.UTC))
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), sub))

	ord, err := s.manager.StartTrial(s.GetContext(), sub)
	s.NoError(err)

	s.True(ord.BillingPeriod.Start.Equal(*sub.TrialStart))
	s.True(ord.BillingPeriod.End.Equal(*sub.TrialEnd))
	s.Require().Len(ord.LineItems, 1)
	s.True(ord.LineItems[0].UnitPrice.IsZero())
	s.True(ord.Total().IsZero())
}

func (s *RecurringOrderManagerSuite) TestStartTrialRequiresTrialSchedule() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	sub.Status = types.SubscriptionStatusTrialing
	sub.TrialStart = lo.ToPtr(time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC))
	sub.TrialEnd = lo.ToPtr(time.Date(2019, 2, 25, 0, 0, 0, 0, time.UTC))

	_, err := s.manager.StartTrial(s.GetContext(), sub)
	s.Error(err)
	s.True(ierr.IsInvalidOperation(err))
}

func (s *RecurringOrderManagerSuite) TestCombiningSubscriptionsShareOneOrder() {
	first := s.newActiveSubscription("monthly_fixed", "pm_1")
	second := s.newActiveSubscription("monthly_fixed", "pm_1")

	firstOrder, err := s.manager.StartRecurring(s.GetContext(), first)
	s.NoError(err)
	secondOrder, err := s.manager.StartRecurring(s.GetContext(), second)
	s.NoError(err)

	s.Equal(firstOrder.ID, secondOrder.ID, "same customer, schedule, period and payment method combine")
	s.Len(secondOrder.LineItems, 2)

	// A different payment method never combines onto the same order.
	third := s.newActiveSubscription("monthly_fixed", "pm_2")
	thirdOrder, err := s.manager.StartRecurring(s.GetContext(), third)
	s.NoError(err)
	s.NotEqual(firstOrder.ID, thirdOrder.ID)
}

func (s *RecurringOrderManagerSuite) TestCloseOrderCollectsPaymentAndCompletes() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	s.NoError(s.manager.CloseOrder(s.GetContext(), ord))

	s.Equal(types.OrderStatusCompleted, ord.Status)
	s.NotNil(ord.CompletedAt)
	s.Equal(1, s.GetGateway().CallCount())

	payments, err := s.params.PaymentRepo.ListByOrder(s.GetContext(), ord.ID)
	s.NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(types.PaymentStatusSucceeded, payments[0].Status)
	s.True(payments[0].Amount.Equal(decimal.NewFromInt(10)))
}

func (s *RecurringOrderManagerSuite) TestCloseOrderIsIdempotent() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	s.NoError(s.manager.CloseOrder(s.GetContext(), ord))
	s.NoError(s.manager.CloseOrder(s.GetContext(), ord))

	s.Equal(1, s.GetGateway().CallCount(), "a completed order must never be charged again")
}

func (s *RecurringOrderManagerSuite) TestCloseOrderAlreadyPaidOnlyCompletes() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	// A crash after the gateway succeeded but before the order completed
	// leaves a succeeded payment behind; the retried close must not charge
	// twice.
	paid := payment.New(ord.ID, ord.PaymentMethodID, ord.PaymentGatewayID, ord.Total(), ord.Currency, s.GetClock().Now())
	paid.Status = types.PaymentStatusSucceeded
	s.NoError(s.params.PaymentRepo.Create(s.GetContext(), paid))

	s.NoError(s.manager.CloseOrder(s.GetContext(), ord))
	s.Equal(types.OrderStatusCompleted, ord.Status)
	s.Equal(0, s.GetGateway().CallCount())
}

func (s *RecurringOrderManagerSuite) TestCloseOrderWithoutPaymentMethodHardDeclines() {
	sub := s.newActiveSubscription("monthly_fixed", "")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	err = s.manager.CloseOrder(s.GetContext(), ord)
	s.Error(err)
	s.True(ierr.IsPaymentHardDeclined(err))
	s.Equal(types.OrderStatusPlaced, ord.Status)
	s.Equal(0, s.GetGateway().CallCount())
}

func (s *RecurringOrderManagerSuite) TestCloseOrderGatewayDeclineLeavesOrderRetryable() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	s.GetGateway().FailNextWith(ierr.NewError("gateway timeout").Mark(ierr.ErrPaymentGateway))

	err = s.manager.CloseOrder(s.GetContext(), ord)
	s.Error(err)
	s.True(ierr.IsPaymentGateway(err))
	s.Equal(types.OrderStatusPlaced, ord.Status, "a declined order stays placed for retry")

	payments, err := s.params.PaymentRepo.ListByOrder(s.GetContext(), ord.ID)
	s.NoError(err)
	s.Require().Len(payments, 1)
	s.Equal(types.PaymentStatusFailed, payments[0].Status)

	// The retry goes through.
	s.NoError(s.manager.CloseOrder(s.GetContext(), ord))
	s.Equal(types.OrderStatusCompleted, ord.Status)

	payments, err = s.params.PaymentRepo.ListByOrder(s.GetContext(), ord.ID)
	s.NoError(err)
	s.Len(payments, 2)
}

func (s *RecurringOrderManagerSuite) TestSelectPaymentMethodPrefersHighestID() {
	subs := []*subscription.Subscription{
		{ID: "subs_1", PaymentMethodID: "pm_1"},
		{ID: "subs_2"},
		{ID: "subs_3", PaymentMethodID: "pm_9"},
		{ID: "subs_4", PaymentMethodID: "pm_4"},
	}
	selected := selectPaymentMethod(subs)
	s.Require().NotNil(selected)
	s.Equal("pm_9", selected.PaymentMethodID)

	s.Nil(selectPaymentMethod([]*subscription.Subscription{{ID: "subs_1"}}))
}

func (s *RecurringOrderManagerSuite) TestCloseOrderSyncsPaymentMethodAcrossSubscriptions() {
	first := s.newActiveSubscription("monthly_fixed", "pm_1")
	second := s.newActiveSubscription("monthly_fixed", "pm_1")

	ord, err := s.manager.StartRecurring(s.GetContext(), first)
	s.NoError(err)
	_, err = s.manager.StartRecurring(s.GetContext(), second)
	s.NoError(err)

	// The second subscription upgrades its payment method mid-cycle.
	second.PaymentMethodID = "pm_9"
	second.PaymentGatewayID = "gw_2"
	second.BillingProfileID = "prof_2"
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), second))

	ord, err = s.params.OrderRepo.Get(s.GetContext(), ord.ID)
	s.NoError(err)
	s.NoError(s.manager.CloseOrder(s.GetContext(), ord))

	s.Equal("pm_9", ord.PaymentMethodID)
	s.Equal("gw_2", ord.PaymentGatewayID)
	s.Equal("prof_2", ord.BillingProfileID)
}

func (s *RecurringOrderManagerSuite) TestRenewOrderOpensContiguousFullPricePeriod() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	s.GetClock().SetNow(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
	next, err := s.manager.RenewOrder(s.GetContext(), ord)
	s.NoError(err)
	s.Require().NotNil(next)

	s.True(next.BillingPeriod.Start.Equal(ord.BillingPeriod.End), "periods are contiguous")
	s.True(next.BillingPeriod.End.Equal(time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)))

	// The second cycle is a full period at the full price.
	s.Require().Len(next.LineItems, 1)
	s.True(next.LineItems[0].UnitPrice.Equal(decimal.NewFromInt(20)))

	reloaded, err := s.params.SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Require().NotNil(reloaded.NextRenewalAt)
	s.True(reloaded.NextRenewalAt.Equal(next.BillingPeriod.End))
	s.NotNil(reloaded.RenewedAt)
	s.Contains(reloaded.OrderIDs, ord.ID)
	s.Contains(reloaded.OrderIDs, next.ID)
}

func (s *RecurringOrderManagerSuite) TestRenewOrderSkipsInactiveSubscriptions() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	s.NoError(sub.TransitionTo(types.SubscriptionStatusCancelled))
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), sub))

	next, err := s.manager.RenewOrder(s.GetContext(), ord)
	s.NoError(err)
	s.Nil(next, "a cancelled subscription stops renewing")

	orders, err := s.params.OrderRepo.List(s.GetContext(), &types.OrderFilter{
		OrderType: types.OrderTypeRecurring,
	})
	s.NoError(err)
	s.Len(orders, 1)
}

func (s *RecurringOrderManagerSuite) TestRefreshOrderCancelsEmptiedOrder() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	s.NoError(sub.TransitionTo(types.SubscriptionStatusCancelled))
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), sub))

	s.NoError(s.manager.RefreshOrder(s.GetContext(), ord))

	s.Empty(ord.LineItems)
	s.Equal(types.OrderStatusCancelled, ord.Status)
}

func (s *RecurringOrderManagerSuite) TestRefreshOrderDropsOrphanedItems() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	// An item whose subscription was deleted out from under the order.
	orphan := order.NewLineItem(ord.ID, s.GetClock().Now())
	orphan.SubscriptionID = "subs_deleted"
	orphan.UnitPrice = decimal.NewFromInt(5)
	orphan.Quantity = decimal.NewFromInt(1)
	orphan.Currency = "usd"
	ord.LineItems = append(ord.LineItems, orphan)
	s.NoError(s.params.OrderRepo.Update(s.GetContext(), ord))

	s.NoError(s.manager.RefreshOrder(s.GetContext(), ord))

	s.Require().Len(ord.LineItems, 1)
	s.Equal(sub.ID, ord.LineItems[0].SubscriptionID)
	s.Equal(types.OrderStatusDraft, ord.Status)
}

func (s *RecurringOrderManagerSuite) TestCollectSubscriptionsDeduplicatesAndSkipsDangling() {
	sub := s.newActiveSubscription("monthly_fixed", "pm_1")
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.NoError(err)

	now := s.GetClock().Now()
	duplicate := order.NewLineItem(ord.ID, now)
	duplicate.SubscriptionID = sub.ID
	dangling := order.NewLineItem(ord.ID, now)
	dangling.SubscriptionID = "subs_deleted"
	empty := order.NewLineItem(ord.ID, now)
	ord.LineItems = append(ord.LineItems, duplicate, dangling, empty)

	subs, err := s.manager.CollectSubscriptions(s.GetContext(), ord)
	s.NoError(err)
	s.Require().Len(subs, 1)
	s.Equal(sub.ID, subs[0].ID)
}
