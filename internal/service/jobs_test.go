package service

import (
	"testing"
	"time"

	"github.com/billforge/billforge/internal/domain/subscription"
	"github.com/billforge/billforge/internal/testutil"
	"github.com/billforge/billforge/internal/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type JobHandlerServiceSuite struct {
	testutil.BaseServiceTestSuite
	params  ServiceParams
	manager RecurringOrderManager
	handler *JobHandlerService
}

func TestJobHandlerServiceSuite(t *testing.T) {
	suite.Run(t, new(JobHandlerServiceSuite))
}

func (s *JobHandlerServiceSuite) SetupTest() {
	s.BaseServiceTestSuite.SetupTest()
	s.GetClock().SetNow(time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC))
	s.params = newTestParams(&s.BaseServiceTestSuite)
	s.manager = NewRecurringOrderManager(s.params)
	s.handler = NewJobHandlerService(s.params, s.manager)
}

func (s *JobHandlerServiceSuite) newPendingSubscription() *subscription.Subscription {
	sub := &subscription.Subscription{
		ID:                types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SUBSCRIPTION),
		CustomerID:        "cust_1",
		StoreID:           "store_1",
		BillingScheduleID: "monthly_fixed",
		PaymentMethodID:   "pm_1",
		PaymentGatewayID:  "gw_1",
		PurchasedItemID:   "item_1",
		Title:             "Gold plan",
		Quantity:          decimal.NewFromInt(1),
		UnitPrice:         decimal.NewFromInt(20),
		Currency:          "usd",
		Status:            types.SubscriptionStatusPending,
		StartDate:         time.Date(2019, 2, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:         s.GetClock().Now(),
		UpdatedAt:         s.GetClock().Now(),
	}
	s.NoError(s.params.SubscriptionRepo.Create(s.GetContext(), sub))
	return sub
}

func (s *JobHandlerServiceSuite) TestHandleActivateSubscription() {
	sub := s.newPendingSubscription()

	s.NoError(s.handler.HandleActivateSubscription(s.GetContext(), sub.ID))

	reloaded, err := s.params.SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Equal(types.SubscriptionStatusActive, reloaded.Status)
	s.Require().Len(reloaded.OrderIDs, 1)

	ord, err := s.params.OrderRepo.Get(s.GetContext(), reloaded.OrderIDs[0])
	s.NoError(err)
	s.Equal(types.OrderStatusDraft, ord.Status)
	s.Len(ord.LineItems, 1)
}

func (s *JobHandlerServiceSuite) TestHandleActivateSubscriptionIsIdempotent() {
	sub := s.newPendingSubscription()

	s.NoError(s.handler.HandleActivateSubscription(s.GetContext(), sub.ID))
	s.NoError(s.handler.HandleActivateSubscription(s.GetContext(), sub.ID))

	reloaded, err := s.params.SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(reloaded.OrderIDs, 1, "a redelivered activate job must not open a second order")
}

func (s *JobHandlerServiceSuite) TestHandleCloseOrder() {
	sub := s.newPendingSubscription()
	s.NoError(s.handler.HandleActivateSubscription(s.GetContext(), sub.ID))

	reloaded, err := s.params.SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	orderID := reloaded.OrderIDs[0]

	s.NoError(s.handler.HandleCloseOrder(s.GetContext(), orderID))

	ord, err := s.params.OrderRepo.Get(s.GetContext(), orderID)
	s.NoError(err)
	s.Equal(types.OrderStatusCompleted, ord.Status)
	s.Equal(1, s.GetGateway().CallCount())
}

func (s *JobHandlerServiceSuite) TestHandleRenewOrder() {
	sub := s.newPendingSubscription()
	s.NoError(s.handler.HandleActivateSubscription(s.GetContext(), sub.ID))

	reloaded, err := s.params.SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	orderID := reloaded.OrderIDs[0]

	s.GetClock().SetNow(time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC))
	s.NoError(s.handler.HandleRenewOrder(s.GetContext(), orderID))

	reloaded, err = s.params.SubscriptionRepo.Get(s.GetContext(), sub.ID)
	s.NoError(err)
	s.Len(reloaded.OrderIDs, 2)
}

func (s *JobHandlerServiceSuite) TestMissingEntitiesAreNoOps() {
	s.NoError(s.handler.HandleCloseOrder(s.GetContext(), "ord_missing"))
	s.NoError(s.handler.HandleRenewOrder(s.GetContext(), "ord_missing"))
	s.NoError(s.handler.HandleActivateSubscription(s.GetContext(), "subs_missing"))
}
