package queue

import (
	"encoding/json"
	"time"

	ierr "github.com/billforge/billforge/internal/errors"
	"github.com/billforge/billforge/internal/types"
)

// JobType is the closed set of jobs the engine enqueues.
type JobType string

const (
	// JobTypeCloseOrder collects payment for a recurring order whose period
	// has ended
	JobTypeCloseOrder JobType = "order.close"
	// JobTypeRenewOrder opens the next recurring order for the
	// subscriptions on an ended order
	JobTypeRenewOrder JobType = "order.renew"
	// JobTypeActivateSubscription starts recurring billing for a
	// subscription whose start time has arrived
	JobTypeActivateSubscription JobType = "subscription.activate"
)

func (t JobType) String() string {
	return string(t)
}

func (t JobType) Validate() error {
	switch t {
	case JobTypeCloseOrder, JobTypeRenewOrder, JobTypeActivateSubscription:
		return nil
	}
	return ierr.NewError("invalid job type").
		WithHintf("unknown job type %q", t).
		Mark(ierr.ErrValidation)
}

// Job carries one unit of deferred work. The payload is only an entity id;
// job handlers reload state so stale payloads cannot corrupt anything.
type Job struct {
	ID        string    `json:"id"`
	Type      JobType   `json:"type"`
	EntityID  string    `json:"entity_id"`
	CreatedAt time.Time `json:"created_at"`
}

// NewJob returns a job with a fresh id.
func NewJob(jobType JobType, entityID string, now time.Time) Job {
	return Job{
		ID:        types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SCHEDULED_JOB),
		Type:      jobType,
		EntityID:  entityID,
		CreatedAt: now,
	}
}

// Marshal encodes the job for the wire.
func (j Job) Marshal() ([]byte, error) {
	payload, err := json.Marshal(j)
	if err != nil {
		return nil, ierr.WithError(err).
			WithHintf("failed to marshal job %s", j.ID).
			Mark(ierr.ErrSystem)
	}
	return payload, nil
}

// UnmarshalJob decodes a job from the wire and validates its type.
func UnmarshalJob(payload []byte) (Job, error) {
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return Job{}, ierr.WithError(err).
			WithHint("failed to unmarshal job payload").
			Mark(ierr.ErrValidation)
	}
	if err := job.Type.Validate(); err != nil {
		return Job{}, err
	}
	return job, nil
}
