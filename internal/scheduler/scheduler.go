// Package scheduler is the tick-driven loop that enqueues one job per
// active signal per tick (spec.md §4.7). The scheduler never evaluates —
// that is the worker's job.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flare-signals/signal-engine/internal/queue"
	"github.com/flare-signals/signal-engine/internal/store"
)

// DefaultTickInterval is the scheduler's default tick period (spec.md §4.7:
// "fires once per fixed tick (default every minute)").
const DefaultTickInterval = time.Minute

// Config holds the scheduler's tunables.
type Config struct {
	TickInterval time.Duration
}

// Scheduler loads active signal ids every tick and enqueues one job per id.
type Scheduler struct {
	store  store.Store
	queue  queue.Queue
	config Config
	logger *slog.Logger
}

// New builds a Scheduler. A zero TickInterval falls back to
// DefaultTickInterval; a nil logger falls back to slog.Default().
func New(st store.Store, q queue.Queue, config Config, logger *slog.Logger) *Scheduler {
	if config.TickInterval == 0 {
		config.TickInterval = DefaultTickInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{store: st, queue: q, config: config, logger: logger}
}

// Start runs the tick loop until ctx is cancelled, mirroring the teacher's
// reconcile-loop shape: run once immediately, then on every ticker fire.
func (s *Scheduler) Start(ctx context.Context) error {
	s.logger.Info("scheduler starting", "tick_interval", s.config.TickInterval)

	if err := s.tickOnce(ctx); err != nil {
		s.logger.Error("initial tick failed", "error", err)
	}

	ticker := time.NewTicker(s.config.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down")
			return ctx.Err()
		case <-ticker.C:
			if err := s.tickOnce(ctx); err != nil {
				s.logger.Error("tick failed", "error", err)
			}
		}
	}
}

// tickOnce loads every active signal id and enqueues one job per id,
// deduplicated against this tick's id so a backed-up queue never grows
// unboundedly for one signal (spec.md §4.7).
func (s *Scheduler) tickOnce(ctx context.Context) error {
	tickID := fmt.Sprintf("%d", time.Now().UnixNano())

	ids, err := s.store.ActiveSignalIDs(ctx)
	if err != nil {
		return fmt.Errorf("scheduler: loading active signal ids: %w", err)
	}

	enqueuedCount := 0
	for _, id := range ids {
		enqueued, err := s.queue.Enqueue(ctx, queue.NewJob(id), tickID)
		if err != nil {
			s.logger.Error("enqueue failed", "signal_id", id, "error", err)
			continue
		}
		if enqueued {
			enqueuedCount++
		}
	}

	s.logger.Info("tick complete", "tick_id", tickID, "active_signals", len(ids), "enqueued", enqueuedCount)
	return nil
}
