package service

import (
	"context"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// JobHandlerService executes the queued billing jobs by id. Every handler
// reloads state and tolerates redelivery: a job that already ran becomes a
// no-op.
type JobHandlerService struct {
	ServiceParams
	manager RecurringOrderManager
}

func NewJobHandlerService(params ServiceParams, manager RecurringOrderManager) *JobHandlerService {
	return &JobHandlerService{
		ServiceParams: params,
		manager:       manager,
	}
}

func (h *JobHandlerService) HandleCloseOrder(ctx context.Context, orderID string) error {
	ord, err := h.OrderRepo.Get(ctx, orderID)
	if err != nil {
		if ierr.IsNotFound(err) {
			h.Logger.Warnw("close job for missing order", "order_id", orderID)
			return nil
		}
		return err
	}
	return h.manager.CloseOrder(ctx, ord)
}

func (h *JobHandlerService) HandleRenewOrder(ctx context.Context, orderID string) error {
	ord, err := h.OrderRepo.Get(ctx, orderID)
	if err != nil {
		if ierr.IsNotFound(err) {
			h.Logger.Warnw("renew job for missing order", "order_id", orderID)
			return nil
		}
		return err
	}
	_, err = h.manager.RenewOrder(ctx, ord)
	return err
}

func (h *JobHandlerService) HandleActivateSubscription(ctx context.Context, subscriptionID string) error {
	sub, err := h.SubscriptionRepo.Get(ctx, subscriptionID)
	if err != nil {
		if ierr.IsNotFound(err) {
			h.Logger.Warnw("activate job for missing subscription", "subscription_id", subscriptionID)
			return nil
		}
		return err
	}

	switch sub.Status {
	case types.SubscriptionStatusActive, types.SubscriptionStatusCancelled:
		// Redelivered or raced with another worker; nothing to do.
		return nil
	}

	if err := sub.TransitionTo(types.SubscriptionStatusActive); err != nil {
		return err
	}
	_, err = h.manager.StartRecurring(ctx, sub)
	return err
}
