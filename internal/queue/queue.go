// Package queue is the work queue between the scheduler and the worker
// pool (spec.md §4.7/§4.8): one job per active signal per tick, deduplicated
// within the tick so a backed-up queue never grows unboundedly for one
// signal.
package queue

import (
	"context"

	"github.com/google/uuid"
)

// Job is the unit of work a scheduler tick enqueues and a worker consumes.
// JobID is independent of the dedup key: it identifies this particular
// enqueue for log correlation across the scheduler and worker, while
// dedup still keys on SignalID+tickID.
type Job struct {
	JobID    string `json:"job_id"`
	SignalID string `json:"signal_id"`
}

// NewJob builds a Job with a fresh JobID for the given signal.
func NewJob(signalID string) Job {
	return Job{JobID: uuid.NewString(), SignalID: signalID}
}

// Queue is the abstract contract the scheduler and worker pool depend on.
type Queue interface {
	// Enqueue pushes a job, deduplicated against tickID: if a job for the
	// same SignalID was already enqueued under this tickID, Enqueue is a
	// no-op and returns (false, nil).
	Enqueue(ctx context.Context, job Job, tickID string) (enqueued bool, err error)

	// Dequeue blocks until a job is available or ctx is done.
	Dequeue(ctx context.Context) (Job, error)

	// Close releases the queue's underlying connection.
	Close() error
}
