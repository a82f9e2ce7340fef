package queue

import (
	"context"

	"github.com/cenkalti/backoff/v4"

	"github.com/billforge/billforge/internal/config"
	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
)

// Handler executes jobs. Implemented by the recurring order manager's job
// facade; every method reloads state by id so redelivery is safe.
type Handler interface {
	HandleCloseOrder(ctx context.Context, orderID string) error
	HandleRenewOrder(ctx context.Context, orderID string) error
	HandleActivateSubscription(ctx context.Context, subscriptionID string) error
}

// Worker consumes billing jobs from a watermill queue and dispatches them to
// the handler. Close jobs that hit a retryable gateway error are retried
// with bounded exponential backoff; hard declines and precondition errors
// fail the job immediately.
type Worker struct {
	queue   *WatermillQueue
	handler Handler
	cfg     config.WorkerConfig
	logger  *logger.Logger
}

func NewWorker(q *WatermillQueue, handler Handler, cfg config.WorkerConfig, log *logger.Logger) *Worker {
	return &Worker{
		queue:   q,
		handler: handler,
		cfg:     cfg,
		logger:  log,
	}
}

// Run consumes jobs until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	messages, err := w.queue.Subscribe(ctx)
	if err != nil {
		return ierr.WithError(err).
			WithHint("failed to subscribe to the billing jobs topic").
			Mark(ierr.ErrSystem)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			w.process(ctx, msg.Payload)
			// Jobs are idempotent; ack regardless and let the next cron
			// sweep re-enqueue anything that still needs work.
			msg.Ack()
		}
	}
}

func (w *Worker) process(ctx context.Context, payload []byte) {
	job, err := UnmarshalJob(payload)
	if err != nil {
		w.logger.Errorw("dropping malformed job", "error", err)
		return
	}

	if err := w.dispatch(ctx, job); err != nil {
		w.logger.Errorw("job failed",
			"job_id", job.ID,
			"job_type", job.Type,
			"entity_id", job.EntityID,
			"error", err,
		)
		return
	}

	w.logger.Infow("job completed",
		"job_id", job.ID,
		"job_type", job.Type,
		"entity_id", job.EntityID,
	)
}

func (w *Worker) dispatch(ctx context.Context, job Job) error {
	switch job.Type {
	case JobTypeCloseOrder:
		return w.closeWithRetry(ctx, job.EntityID)
	case JobTypeRenewOrder:
		return w.handler.HandleRenewOrder(ctx, job.EntityID)
	case JobTypeActivateSubscription:
		return w.handler.HandleActivateSubscription(ctx, job.EntityID)
	default:
		return ierr.NewError("invalid job type").
			WithHintf("unknown job type %q", job.Type).
			Mark(ierr.ErrValidation)
	}
}

// closeWithRetry retries soft gateway declines; re-running a close is safe
// because closeOrder checks the paid predicate before creating a payment.
func (w *Worker) closeWithRetry(ctx context.Context, orderID string) error {
	policy := backoff.NewExponentialBackOff()
	policy.MaxInterval = w.cfg.MaxRetryInterval
	policy.MaxElapsedTime = w.cfg.MaxElapsedTime

	operation := func() error {
		err := w.handler.HandleCloseOrder(ctx, orderID)
		if err == nil {
			return nil
		}
		if ierr.IsPaymentGateway(err) {
			w.logger.Warnw("retrying close after gateway error",
				"order_id", orderID,
				"error", err,
			)
			return err
		}
		// Hard declines and precondition errors are not retryable here;
		// dunning is the caller's concern.
		return backoff.Permanent(err)
	}

	return backoff.Retry(operation, backoff.WithContext(policy, ctx))
}
