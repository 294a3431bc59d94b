// Package store is the persistence contract for signal definitions
// (spec.md §6): exactly one SELECT per scheduler tick, one SELECT per job,
// and one UPDATE of the two timestamp columns per job.
package store

import (
	"context"
	"time"

	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// Store is the narrow persistence contract the scheduler and worker
// depend on. Implementations: SQLStore (production), MemStore (tests).
type Store interface {
	// ActiveSignalIDs returns the ids of every signal with is_active=true
	// (spec.md §4.7: "load the ids of all signals with is_active=true").
	ActiveSignalIDs(ctx context.Context) ([]string, error)

	// LoadSignal loads a full signal definition by id. Returns
	// (nil, nil) if the signal does not exist (spec.md §4.8 step 1:
	// "if missing... drop").
	LoadSignal(ctx context.Context, id string) (*signaldsl.SignalDefinition, error)

	// MarkEvaluated updates only last_evaluated_at (spec.md §4.8 step 2/6:
	// not-triggered and cooldown-skip paths).
	MarkEvaluated(ctx context.Context, id string, evaluatedAt time.Time) error

	// MarkTriggered updates both last_triggered_at and last_evaluated_at
	// atomically (spec.md §4.8 step 5), committed before the notifier is
	// called so cooldown is enforced regardless of delivery outcome.
	MarkTriggered(ctx context.Context, id string, triggeredAt time.Time) error
}
