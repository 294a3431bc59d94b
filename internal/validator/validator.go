// Package validator performs structural validation of a Signal DSL
// definition before it is compiled or persisted. It never mutates its input
// and reports only the first failure encountered, tagged with the offending
// field (spec.md §4.2).
package validator

import (
	"fmt"
	"net/url"

	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// MaxExpressionDepth is the maximum allowed depth of a single Expr tree
// (spec.md Invariant 1).
const MaxExpressionDepth = 20

// Error is a validation failure tagged with the offending field path.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
}

func fail(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Validate runs the structural checks from spec.md §4.2 in order:
// chains non-empty & positive, window duration parseable, at least one of
// condition/conditions present with valid depth, webhook URL parseable with
// an http/https scheme. It returns the first failure encountered.
func Validate(def *signaldsl.SignalDefinition) error {
	if err := validateChains(def.Chains); err != nil {
		return err
	}
	if err := validateWindowDuration(def.WindowDuration); err != nil {
		return err
	}
	if err := validateConditionShape(def); err != nil {
		return err
	}
	if err := validateWebhookURL(def.WebhookURL); err != nil {
		return err
	}
	if def.CooldownMinutes < 0 {
		return fail("cooldown_minutes", "must be >= 0, got %d", def.CooldownMinutes)
	}
	return nil
}

func validateChains(chains []int64) error {
	if len(chains) == 0 {
		return fail("chains", "must be non-empty")
	}
	for _, c := range chains {
		if c <= 0 {
			return fail("chains", "chain id must be a positive integer, got %d", c)
		}
	}
	return nil
}

func validateWindowDuration(d string) error {
	if _, err := signaldsl.ParseDuration(d); err != nil {
		return fail("window_duration", "%s", err)
	}
	return nil
}

// validateConditionShape requires at least one of condition/conditions;
// both together are accepted, and then only conditions is checked. If
// conditions is present, logic must be AND or OR. It then validates depth
// and operator on every checked condition.
func validateConditionShape(def *signaldsl.SignalDefinition) error {
	hasSingle := def.Condition != nil
	hasGroup := len(def.Conditions) > 0

	switch {
	case !hasSingle && !hasGroup:
		return fail("condition", "exactly one of condition or conditions must be present")
	case hasSingle && hasGroup:
		// Per spec.md §4.3 Normalization, conditions wins when both are
		// present; that is a compiler concern, not a validation failure.
	}

	if hasGroup && !def.Logic.IsValid() {
		return fail("logic", "must be AND or OR when conditions is present, got %q", def.Logic)
	}

	conditions := def.Conditions
	if len(conditions) == 0 && def.Condition != nil {
		conditions = []*signaldsl.Condition{def.Condition}
	}
	for i, cond := range conditions {
		if err := validateConditionDepth(cond, i); err != nil {
			return err
		}
	}
	return nil
}

func validateConditionDepth(cond *signaldsl.Condition, index int) error {
	if cond == nil {
		return fail(fmt.Sprintf("conditions[%d]", index), "condition must not be nil")
	}
	if d := cond.Left.Depth(); d > MaxExpressionDepth {
		return fail(fmt.Sprintf("conditions[%d].left", index), "expression depth %d exceeds maximum %d", d, MaxExpressionDepth)
	}
	if d := cond.Right.Depth(); d > MaxExpressionDepth {
		return fail(fmt.Sprintf("conditions[%d].right", index), "expression depth %d exceeds maximum %d", d, MaxExpressionDepth)
	}
	if !cond.Operator.IsValid() {
		return fail(fmt.Sprintf("conditions[%d].operator", index), "invalid comparison operator %q", cond.Operator)
	}
	return nil
}

// validateWebhookURL parses the URL and requires an http or https scheme
// (spec.md Invariant 4).
func validateWebhookURL(raw string) error {
	if raw == "" {
		return fail("webhook_url", "must not be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fail("webhook_url", "could not parse URL: %s", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fail("webhook_url", "scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fail("webhook_url", "URL must have a host")
	}
	return nil
}

// ValidateExpressionDepth is exported separately so the depth-limit
// invariant can be asserted directly (spec.md §8 property 2), without
// constructing a full signal definition.
func ValidateExpressionDepth(e *signaldsl.Expr) error {
	if d := e.Depth(); d > MaxExpressionDepth {
		return fail("expr", "expression depth %d exceeds maximum %d", d, MaxExpressionDepth)
	}
	return nil
}
