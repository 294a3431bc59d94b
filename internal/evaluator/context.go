// Package evaluator recursively evaluates a compiled signal against a
// single chain's live state (spec.md §4.6): it resolves every leaf through
// a fetcher.Fetcher, applies comparisons with IEEE-754 semantics, and
// combines conditions per the signal's group logic.
package evaluator

import (
	"time"

	"github.com/flare-signals/signal-engine/internal/fetcher"
)

// EvalContext carries everything a single-chain evaluation pass needs.
// windowStart is always now-windowDuration; callers build one EvalContext
// per chain in the signal's scope (spec.md: "per-chain evaluation is
// independent").
type EvalContext struct {
	ChainID        int64
	WindowDuration time.Duration
	Now            time.Time
	WindowStart    time.Time
	Fetcher        fetcher.Fetcher
}

// NewEvalContext derives WindowStart from Now and WindowDuration so callers
// never compute it inconsistently.
func NewEvalContext(chainID int64, windowDuration time.Duration, now time.Time, f fetcher.Fetcher) *EvalContext {
	return &EvalContext{
		ChainID:        chainID,
		WindowDuration: windowDuration,
		Now:            now,
		WindowStart:    now.Add(-windowDuration),
		Fetcher:        f,
	}
}
