package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/flare-signals/signal-engine/internal/queue"
)

// DefaultPoolSize is used when Pool is built with size <= 0.
const DefaultPoolSize = 8

// Pool runs size goroutines, each looping dequeue-then-process until
// its context is cancelled (spec.md §4.8: "a small pool of worker
// goroutines drains the queue").
type Pool struct {
	queue     queue.Queue
	processor *Processor
	size      int
	logger    *slog.Logger
}

// NewPool builds a Pool. A size <= 0 falls back to DefaultPoolSize; a nil
// logger falls back to slog.Default().
func NewPool(q queue.Queue, processor *Processor, size int, logger *slog.Logger) *Pool {
	if size <= 0 {
		size = DefaultPoolSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pool{queue: q, processor: processor, size: size, logger: logger}
}

// Run blocks until ctx is cancelled, then waits for every in-flight job to
// finish before returning.
func (p *Pool) Run(ctx context.Context) error {
	p.logger.Info("worker pool starting", "size", p.size)

	var wg sync.WaitGroup
	for i := 0; i < p.size; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.loop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	p.logger.Info("worker pool shutting down")
	wg.Wait()
	return ctx.Err()
}

// loop repeatedly dequeues and processes jobs until ctx is cancelled. A
// queue.ErrEmpty timeout is not an error: the blocking dequeue just polls
// again.
func (p *Pool) loop(ctx context.Context, workerID int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, queue.ErrEmpty) || errors.Is(err, context.Canceled) {
				continue
			}
			p.logger.Error("dequeue failed", "worker", workerID, "error", err)
			continue
		}

		if err := p.processor.ProcessJob(ctx, job); err != nil {
			p.logger.Error("job processing failed", "worker", workerID, "job_id", job.JobID, "signal_id", job.SignalID, "error", err)
		}
	}
}
