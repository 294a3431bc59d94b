// Package compiler normalizes a validated Signal DSL definition into a
// canonical CompiledSignal, resolving every leaf reference against the
// metric registry so the evaluator never re-looks-up a field (spec.md §4.3).
//
// The compiler is pure: the same definition always compiles to a
// structurally identical result, and it performs no I/O.
package compiler

import (
	"fmt"

	"github.com/flare-signals/signal-engine/internal/registry"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// Error is a structural compilation failure (distinct from the validator's
// Error: it surfaces at load/compile time, after validation has already
// passed).
type Error struct {
	Message string
}

func (e *Error) Error() string { return "compile error: " + e.Message }

// CompiledExpr mirrors signaldsl.Expr but carries a resolved registry
// pointer on every leaf, so the evaluator can skip the registry lookup.
type CompiledExpr struct {
	Kind signaldsl.ExprKind

	Value float64

	Op    signaldsl.BinaryOp
	Left  *CompiledExpr
	Right *CompiledExpr

	EntityType string
	Field      string
	Filters    []signaldsl.Filter
	Snapshot   string

	EventType   string
	Aggregation signaldsl.Aggregation
	Window      string

	// Metric is the resolved registry entry for StateRef/EventRef leaves;
	// nil for Constant/BinaryExpression nodes.
	Metric *registry.MetricDef
}

// CompiledCondition is a single left/operator/right comparison with both
// sides resolved.
type CompiledCondition struct {
	Left     *CompiledExpr
	Operator signaldsl.ComparisonOp
	Right    *CompiledExpr
}

// CompiledSignal is always a single Group, per spec.md §9 ("model the
// compiled form as a single Group always"): a bare `condition` is wrapped
// into a one-element AND group internally, but IsGroup records whether the
// original definition used the group form, for reporting back to the admin
// surface.
type CompiledSignal struct {
	SignalID       string
	Protocol       string
	Logic          signaldsl.GroupLogic
	Conditions     []*CompiledCondition
	IsGroup        bool
	DefinitionHash string
}

// Compile normalizes and resolves a validated signal definition. Callers
// must run validator.Validate first; Compile assumes structural validity
// and focuses on registry resolution and condition/conditions normalization.
func Compile(def *signaldsl.SignalDefinition, reg *registry.Registry) (*CompiledSignal, error) {
	conditions := def.Conditions
	isGroup := len(conditions) > 0
	logic := def.Logic

	if !isGroup {
		if def.Condition == nil {
			return nil, &Error{Message: "neither condition nor conditions present"}
		}
		conditions = []*signaldsl.Condition{def.Condition}
		logic = signaldsl.LogicAND
	}

	compiled := make([]*CompiledCondition, 0, len(conditions))
	for i, c := range conditions {
		cc, err := compileCondition(c, def.Protocol, reg)
		if err != nil {
			return nil, fmt.Errorf("conditions[%d]: %w", i, err)
		}
		compiled = append(compiled, cc)
	}

	hash, err := def.DefinitionHash()
	if err != nil {
		return nil, fmt.Errorf("hashing definition: %w", err)
	}

	return &CompiledSignal{
		SignalID:       def.ID,
		Protocol:       def.Protocol,
		Logic:          logic,
		Conditions:     compiled,
		IsGroup:        isGroup,
		DefinitionHash: hash,
	}, nil
}

func compileCondition(c *signaldsl.Condition, protocol string, reg *registry.Registry) (*CompiledCondition, error) {
	left, err := compileExpr(c.Left, protocol, reg)
	if err != nil {
		return nil, fmt.Errorf("left: %w", err)
	}
	right, err := compileExpr(c.Right, protocol, reg)
	if err != nil {
		return nil, fmt.Errorf("right: %w", err)
	}
	return &CompiledCondition{Left: left, Operator: c.Operator, Right: right}, nil
}

func compileExpr(e *signaldsl.Expr, protocol string, reg *registry.Registry) (*CompiledExpr, error) {
	if e == nil {
		return nil, &Error{Message: "expression must not be nil"}
	}

	switch e.Kind {
	case signaldsl.ExprConstant:
		return &CompiledExpr{Kind: e.Kind, Value: e.Value}, nil

	case signaldsl.ExprBinary:
		left, err := compileExpr(e.Left, protocol, reg)
		if err != nil {
			return nil, err
		}
		right, err := compileExpr(e.Right, protocol, reg)
		if err != nil {
			return nil, err
		}
		return &CompiledExpr{Kind: e.Kind, Op: e.Op, Left: left, Right: right}, nil

	case signaldsl.ExprState:
		metric, ok := reg.Get(protocol, registry.KindState, e.EntityType, e.Field)
		if !ok {
			return nil, &Error{Message: fmt.Sprintf("unregistered state metric %s.%s for protocol %s", e.EntityType, e.Field, protocol)}
		}
		return &CompiledExpr{
			Kind: e.Kind, EntityType: e.EntityType, Field: e.Field,
			Filters: e.Filters, Snapshot: e.Snapshot, Metric: metric,
		}, nil

	case signaldsl.ExprEvent:
		metric, ok := reg.Get(protocol, registry.KindEvent, e.EventType, e.Field)
		if !ok {
			return nil, &Error{Message: fmt.Sprintf("unregistered event metric %s.%s for protocol %s", e.EventType, e.Field, protocol)}
		}
		return &CompiledExpr{
			Kind: e.Kind, EventType: e.EventType, Field: e.Field,
			Aggregation: e.Aggregation, Window: e.Window, Filters: e.Filters, Metric: metric,
		}, nil

	default:
		return nil, &Error{Message: fmt.Sprintf("unknown expression kind %q", e.Kind)}
	}
}
