// Package notifier dispatches the webhook payload a triggered signal
// produces (spec.md §4.9): canonical JSON body, optional HMAC signing,
// idempotency key, and bounded exponential backoff retries.
package notifier

import "time"

// ConditionOutcome mirrors one entry of the webhook payload's
// conditions_met array.
type ConditionOutcome struct {
	Left   float64 `json:"left"`
	Op     string  `json:"op"`
	Right  float64 `json:"right"`
	Passed bool    `json:"passed"`
}

// Scope carries the chains that tripped in this evaluation cycle.
type Scope struct {
	Chains []int64 `json:"chains"`
}

// Payload is the exact body of the webhook POST (spec.md §6).
type Payload struct {
	SignalID      string             `json:"signal_id"`
	SignalName    string             `json:"signal_name"`
	TriggeredAt   time.Time          `json:"triggered_at"`
	Scope         Scope              `json:"scope"`
	ConditionsMet []ConditionOutcome `json:"conditions_met"`
	Context       map[string]any     `json:"context"`
}

// Result records the outcome of a dispatch call, irrespective of whether
// delivery ultimately succeeded (spec.md §4.9 dispatch signature).
type Result struct {
	Success    bool
	Status     int
	Error      string
	DurationMs int64
	Attempts   int
}
