package queue

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/logger"
)

// WatermillQueue implements Queue over a watermill gochannel Pub/Sub. It is
// the in-process job pipeline used by the scheduler binary; the same Queue
// contract can be backed by any broker.
type WatermillQueue struct {
	pubsub *gochannel.GoChannel
	logger *logger.Logger
}

func NewWatermillQueue(log *logger.Logger) *WatermillQueue {
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{
			// Persistent buffers messages published before a subscriber
			// attaches, so sweep and worker startup order does not matter
			Persistent:          true,
			OutputChannelBuffer: 256,
		},
		watermill.NopLogger{},
	)

	return &WatermillQueue{
		pubsub: goChannel,
		logger: log,
	}
}

func (q *WatermillQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := job.Marshal()
	if err != nil {
		return err
	}

	msg := message.NewMessage(job.ID, payload)
	msg.SetContext(ctx)
	if err := q.pubsub.Publish(TopicBillingJobs, msg); err != nil {
		return ierr.WithError(err).
			WithHintf("failed to enqueue %s job for %s", job.Type, job.EntityID).
			Mark(ierr.ErrSystem)
	}

	q.logger.Debugw("enqueued job",
		"job_id", job.ID,
		"job_type", job.Type,
		"entity_id", job.EntityID,
	)
	return nil
}

// Subscribe returns the stream of jobs for a worker to consume.
func (q *WatermillQueue) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return q.pubsub.Subscribe(ctx, TopicBillingJobs)
}

func (q *WatermillQueue) Close() error {
	return q.pubsub.Close()
}
