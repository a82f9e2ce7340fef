package service

import (
	"context"

	"github.com/billforge/billforge/internal/domain/order"
	"github.com/billforge/billforge/internal/queue"
	"github.com/billforge/billforge/internal/types"
	"github.com/samber/lo"
)

// CronService is the time-driven sweep. Each run performs two independent
// scans: recurring orders whose period has ended, and pending or trialing
// subscriptions whose start time has arrived. The scans read then enqueue;
// state mutation happens inside the job handlers, with two deliberate
// exceptions owned by the sweep itself: applying a subscription's scheduled
// changes at the period boundary, and cancelling wholly orphaned orders.
// Re-running a sweep is cheap and safe because every job is idempotent.
type CronService interface {
	Sweep(ctx context.Context) error
}

type cronService struct {
	ServiceParams
	manager RecurringOrderManager
}

func NewCronService(params ServiceParams, manager RecurringOrderManager) CronService {
	return &cronService{
		ServiceParams: params,
		manager:       manager,
	}
}

func (s *cronService) Sweep(ctx context.Context) error {
	if err := s.sweepEndedOrders(ctx); err != nil {
		return err
	}
	return s.sweepStartableSubscriptions(ctx)
}

func (s *cronService) sweepEndedOrders(ctx context.Context) error {
	now := s.Clock.Now()
	orders, err := s.OrderRepo.List(ctx, &types.OrderFilter{
		OrderType:       types.OrderTypeRecurring,
		Statuses:        []types.OrderStatus{types.OrderStatusDraft},
		PeriodEndBefore: lo.ToPtr(now),
		Limit:           s.Config.Cron.BatchSize,
	})
	if err != nil {
		return err
	}

	for _, ord := range orders {
		if err := s.processEndedOrder(ctx, ord); err != nil {
			s.Logger.Errorw("failed to process ended order",
				"order_id", ord.ID,
				"error", err,
			)
			// Keep sweeping; this order is retried on the next run.
		}
	}
	return nil
}

func (s *cronService) processEndedOrder(ctx context.Context, ord *order.Order) error {
	subs, err := s.manager.CollectSubscriptions(ctx, ord)
	if err != nil {
		return err
	}

	// A recurring order with no remaining subscriptions is malformed or
	// orphaned; cancel it instead of trying to bill anyone.
	if len(subs) == 0 {
		if err := ord.TransitionTo(types.OrderStatusCancelled); err != nil {
			return err
		}
		ord.UpdatedAt = s.Clock.Now()
		if err := s.OrderRepo.Update(ctx, ord); err != nil {
			return err
		}
		s.Logger.Warnw("cancelled orphaned recurring order", "order_id", ord.ID)
		return nil
	}

	sub := subs[0]
	if sub.HasScheduledChanges() {
		// Deferred mutations apply at the period boundary, before the next
		// order opens. This may flip the subscription out of active.
		if err := sub.ApplyScheduledChanges(); err != nil {
			return err
		}
		sub.UpdatedAt = s.Clock.Now()
		if err := s.SubscriptionRepo.Update(ctx, sub); err != nil {
			return err
		}
	}

	schedule, err := s.Schedules.Resolve(ord.BillingScheduleID)
	if err != nil {
		return err
	}

	// A prepaid customer who cancelled out of the upcoming period must not
	// be charged for it: the refresh strips the cancelled subscription's
	// charges and the emptied order is cancelled instead of closed. A
	// postpaid order still closes so the period just used gets billed.
	skipClose := schedule.BillingType() == types.BillingTypePrepaid && !sub.IsActive()
	if skipClose {
		if err := s.manager.RefreshOrder(ctx, ord); err != nil {
			return err
		}
	}
	if !skipClose && !ord.Status.IsFinal() {
		if err := s.enqueue(ctx, queue.JobTypeCloseOrder, ord.ID); err != nil {
			return err
		}
	}

	// Close and renew are independent, idempotent jobs, not one transaction.
	if sub.IsActive() {
		if err := s.enqueue(ctx, queue.JobTypeRenewOrder, ord.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *cronService) sweepStartableSubscriptions(ctx context.Context) error {
	now := s.Clock.Now()
	subs, err := s.SubscriptionRepo.List(ctx, &types.SubscriptionFilter{
		Statuses: []types.SubscriptionStatus{
			types.SubscriptionStatusPending,
			types.SubscriptionStatusTrialing,
		},
		StartsBefore: lo.ToPtr(now),
		Limit:        s.Config.Cron.BatchSize,
	})
	if err != nil {
		return err
	}

	for _, sub := range subs {
		if err := s.enqueue(ctx, queue.JobTypeActivateSubscription, sub.ID); err != nil {
			return err
		}
	}
	return nil
}

func (s *cronService) enqueue(ctx context.Context, jobType queue.JobType, entityID string) error {
	job := queue.NewJob(jobType, entityID, s.Clock.Now())
	if err := s.JobQueue.Enqueue(ctx, job); err != nil {
		return err
	}
	s.Logger.Debugw("enqueued sweep job",
		"job_type", jobType,
		"entity_id", entityID,
	)
	return nil
}
