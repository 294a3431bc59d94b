package worker

import (
	"time"

	"github.com/flare-signals/signal-engine/internal/evaluator"
	"github.com/flare-signals/signal-engine/internal/notifier"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// buildPayload assembles the webhook body for a triggered signal (spec.md
// §6). ConditionsMet is read off the lowest-numbered triggered chain: every
// chain evaluates the same compiled conditions, so any triggered chain's
// entries are representative of which comparisons passed.
func buildPayload(
	def *signaldsl.SignalDefinition,
	triggered []int64,
	results map[int64]*evaluator.GroupResult,
	now time.Time,
) *notifier.Payload {
	representative := results[triggered[0]]

	return &notifier.Payload{
		SignalID:      def.ID,
		SignalName:    def.Name,
		TriggeredAt:   now,
		Scope:         notifier.Scope{Chains: triggered},
		ConditionsMet: conditionOutcomes(def, representative),
		Context:       map[string]any{},
	}
}

func conditionOutcomes(def *signaldsl.SignalDefinition, result *evaluator.GroupResult) []notifier.ConditionOutcome {
	if result == nil {
		return nil
	}

	ops := conditionOperators(def)
	outcomes := make([]notifier.ConditionOutcome, len(result.Entries))
	for i, entry := range result.Entries {
		op := ""
		if i < len(ops) {
			op = string(ops[i])
		}
		outcomes[i] = notifier.ConditionOutcome{
			Left:   entry.LeftValue,
			Op:     op,
			Right:  entry.RightValue,
			Passed: entry.Passed,
		}
	}
	return outcomes
}

// conditionOperators recovers the comparison operator string for each
// condition in definition order, matching how Compile normalizes
// condition/conditions into a single ordered list (spec.md §9).
func conditionOperators(def *signaldsl.SignalDefinition) []signaldsl.ComparisonOp {
	if len(def.Conditions) > 0 {
		ops := make([]signaldsl.ComparisonOp, len(def.Conditions))
		for i, c := range def.Conditions {
			ops[i] = c.Operator
		}
		return ops
	}
	if def.Condition != nil {
		return []signaldsl.ComparisonOp{def.Condition.Operator}
	}
	return nil
}
