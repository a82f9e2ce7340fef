package service

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/queue"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type CronServiceSuite struct {
	testutil.BaseServiceTestSuite
	params  ServiceParams
	manager RecurringOrderManager
	cron    CronService
}

func TestCronServiceSuite(t *testing.T) {
	suite.Run(t, new(CronServiceSuite))
}

func (s *CronServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetClock().SetNow(time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC))
	s.params = newTestParams(&s.BaseServiceTestSuite)
	s.manager = NewRecurringOrderManager(s.params)
	s.cron = NewCronService(s.params, s.manager)
}

func (s *CronServiceSuite) newActiveSubscription(scheduleID string) *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:        "cust_1",
		StoreID:           "store_1",
		BillingScheduleID: scheduleID,
		PaymentMethodID:   "pm_1",
		PaymentGatewayID:  "gw_1",
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

func (s *CronServiceSuite) startedOrder(scheduleID string) (*subscription.Subscription, *order.Order) {
	sub := s.newActiveSubscription(scheduleID)
	ord, err := s.manager.StartRecurring(s.GetContext(), sub)
	s.Require().NoError(err)
	return sub, ord
}

func (s *CronServiceSuite) TestSweepEnqueuesCloseAndRenewForEndedOrder() {
	_, ord := s.startedOrder("monthly_fixed")

	s.GetClock().SetNow(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.cron.Sweep(s.GetContext()))

	closeJobs := s.GetQueue().JobsOfType(queue.JobTypeCloseOrder)
	s.Require().Len(closeJobs, 1)
	s.Equal(ord.ID, closeJobs[0].EntityID)

	renewJobs := s.GetQueue().JobsOfType(queue.JobTypeRenewOrder)
	s.Require().Len(renewJobs, 1)
	s.Equal(ord.ID, renewJobs[0].EntityID)
}

func (s *CronServiceSuite) TestSweepIgnoresRunningOrders() {
	s.startedOrder("monthly_fixed")

	s.GetClock().SetNow(time.Date(2019, 2, 20, 0, 0, 0, 0, time.UTC))
	s.NoError(s.cron.Sweep(s.GetContext()))
	s.Empty(s.GetQueue().Jobs())
}

func (s *CronServiceSuite) TestSweepCancelsOrphanedOrder() {
	_, ord := s.startedOrder("monthly_fixed")

	// Delete the subscription out from under the order.
	s.NoError(s.params.SubscriptionRepo.Delete(s.GetContext(), ord.LineItems[0].SubscriptionID))

	s.GetClock().SetNow(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.cron.Sweep(s.GetContext()))

	reloaded, err := s.params.OrderRepo.Get(s.GetContext(), ord.ID)
	s.NoError(err)
	s.Equal(types.OrderStatusCancelled, reloaded.Status)
	s.Empty(s.GetQueue().Jobs())
}

func (s *CronServiceSuite) TestSweepPrepaidCancellationCancelsOrderWithoutClose() {
	sub, ord := s.startedOrder("monthly_prepaid")

	s.NoError(sub.ScheduleCancellation(s.GetClock().Now()))
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), sub))

	s.GetClock().SetNow(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.cron.Sweep(s.GetContext()))

	reloadedSub, err := s.params.SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusCancelled, reloadedSub.Status)
	s.False(reloadedSub.HasScheduledChanges())

	reloadedOrder, err := s.params.OrderRepo.Get(s.GetContext(), ord.ID)
	s.NoError(err)
	s.Equal(types.OrderStatusCancelled, reloadedOrder.Status)
	s.Empty(reloadedOrder.LineItems)

	s.Empty(s.GetQueue().Jobs(), "a cancelled prepaid period is never charged or renewed")
}

func (s *CronServiceSuite) TestSweepPostpaidCancellationStillCloses() {
	sub, ord := s.startedOrder("monthly_fixed")

	s.NoError(sub.ScheduleCancellation(s.GetClock().Now()))
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), sub))

	s.GetClock().SetNow(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.cron.Sweep(s.GetContext()))

	// The period was already used, so the close job runs; only the renewal
	// stops.
	closeJobs := s.GetQueue().JobsOfType(queue.JobTypeCloseOrder)
	s.Require().Len(closeJobs, 1)
	s.Equal(ord.ID, closeJobs[0].EntityID)
	s.Empty(s.GetQueue().JobsOfType(queue.JobTypeRenewOrder))
}

func (s *CronServiceSuite) TestSweepEnqueuesActivationForStartableSubscriptions() {
	pending := s.newActiveSubscription("monthly_fixed")
	pending.Status = types.SubscriptionStatusPending
	pending.StartDate = time.Date(2019, 2, 14, 0, 0, 0, 0, time.UTC)
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), pending))

	future := s.newActiveSubscription("monthly_fixed")
	future.Status = types.SubscriptionStatusPending
	future.StartDate = time.Date(2019, 4, 1, 0, 0, 0, 0, time.UTC)
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), future))

	s.NoError(s.cron.Sweep(s.GetContext()))

	jobs := s.GetQueue().JobsOfType(queue.JobTypeActivateSubscription)
	s.Require().Len(jobs, 1)
	s.Equal(pending.ID, jobs[0].EntityID)
}

func (s *CronServiceSuite) TestSweepActivatesTrialingSubscriptionWhoseTrialEnded() {
	sub := s.newActiveSubscription("monthly_trial")
	sub.Status = types.SubscriptionStatusTrialing
	sub.StartDate = time.Date(2019, 2, 10, 0, 0, 0, 0, time.UTC)
	s.NoError(s.params.SubscriptionRepo.Update(s.GetContext(), sub))

	s.NoError(s.cron.Sweep(s.GetContext()))

	jobs := s.GetQueue().JobsOfType(queue.JobTypeActivateSubscription)
	s.Require().Len(jobs, 1)
	s.Equal(sub.ID, jobs[0].EntityID)
}
