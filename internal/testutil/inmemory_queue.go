package testutil

import (
	"context"
	"sync"

	"github.com/billforge/billforge/internal/queue"
	"github.com/samber/lo"
)

// InMemoryQueue implements queue.Queue by recording jobs so tests can assert
// on exactly what a sweep enqueued.
type InMemoryQueue struct {
	mu   sync.Mutex
	jobs []queue.Job
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{}
}

func (q *InMemoryQueue) Enqueue(ctx context.Context, job queue.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *InMemoryQueue) Close() error {
	return nil
}

// Jobs returns all recorded jobs in enqueue order.
func (q *InMemoryQueue) Jobs() []queue.Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]queue.Job(nil), q.jobs...)
}

// JobsOfType returns the recorded jobs of the given type.
func (q *InMemoryQueue) JobsOfType(jobType queue.JobType) []queue.Job {
	return lo.Filter(q.Jobs(), func(job queue.Job, _ int) bool {
		return job.Type == jobType
	})
}

// Clear drops all recorded jobs.
func (q *InMemoryQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = nil
}
