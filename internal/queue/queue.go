package queue

import "context"

// Topic all billing jobs are published on.
const TopicBillingJobs = "billing.jobs"

// Queue is the enqueue side of the job pipeline. The cron sweep only ever
// enqueues; state mutation happens inside the job handlers.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Close() error
}
