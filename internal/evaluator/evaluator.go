package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/flare-signals/signal-engine/internal/compiler"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

// ConditionResult is the recorded outcome of one evaluated condition,
// carrying both operand values so the worker/notifier can report what was
// actually observed (spec.md §4.6 evaluateCondition).
type ConditionResult struct {
	Passed     bool
	LeftValue  float64
	RightValue float64
}

// GroupResult is the outcome of a full signal evaluation on one chain.
// Entries always records every evaluated condition, in order, even when
// short-circuiting meant later conditions were never evaluated (spec.md
// §4.6: "results array still records evaluated entries in order").
type GroupResult struct {
	Triggered bool
	Entries   []ConditionResult
}

// SignalEvaluator evaluates compiled signals against fetched chain state.
type SignalEvaluator struct {
	Logger *slog.Logger
}

// New builds a SignalEvaluator. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *SignalEvaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &SignalEvaluator{Logger: logger}
}

// Evaluate runs every compiled condition against ctx's chain and combines
// them per compiled.Logic (spec.md §4.6 SignalEvaluator.evaluate).
func (s *SignalEvaluator) Evaluate(ctx context.Context, compiled *compiler.CompiledSignal, ectx *EvalContext) (*GroupResult, error) {
	result := &GroupResult{Entries: make([]ConditionResult, 0, len(compiled.Conditions))}

	for _, cond := range compiled.Conditions {
		cr, err := s.evaluateCondition(ctx, cond, ectx)
		if err != nil {
			return nil, fmt.Errorf("evaluating condition: %w", err)
		}
		result.Entries = append(result.Entries, *cr)

		if compiled.Logic == signaldsl.LogicOR && cr.Passed {
			result.Triggered = true
			return result, nil // short-circuit: OR is already satisfied
		}
		if compiled.Logic == signaldsl.LogicAND && !cr.Passed {
			result.Triggered = false
			return result, nil // short-circuit: AND already failed
		}
	}

	// Every condition was evaluated without short-circuiting: AND is true
	// (all passed), OR is false (none passed).
	result.Triggered = compiled.Logic == signaldsl.LogicAND
	return result, nil
}

// evaluateCondition implements spec.md's evaluateCondition: evaluate both
// sides, then compare with IEEE-754 total order. NaN anywhere makes the
// comparison false, never an error.
func (s *SignalEvaluator) evaluateCondition(ctx context.Context, cond *compiler.CompiledCondition, ectx *EvalContext) (*ConditionResult, error) {
	left, err := s.evaluateNode(ctx, cond.Left, ectx)
	if err != nil {
		return nil, fmt.Errorf("left operand: %w", err)
	}
	right, err := s.evaluateNode(ctx, cond.Right, ectx)
	if err != nil {
		return nil, fmt.Errorf("right operand: %w", err)
	}

	return &ConditionResult{
		Passed:     compare(left, cond.Operator, right),
		LeftValue:  left,
		RightValue: right,
	}, nil
}

func compare(left float64, op signaldsl.ComparisonOp, right float64) bool {
	if math.IsNaN(left) || math.IsNaN(right) {
		return false
	}
	switch op {
	case signaldsl.OpGT:
		return left > right
	case signaldsl.OpGTE:
		return left >= right
	case signaldsl.OpLT:
		return left < right
	case signaldsl.OpLTE:
		return left <= right
	case signaldsl.OpEQ:
		return left == right
	case signaldsl.OpNEQ:
		return left != right
	default:
		return false
	}
}

// evaluateNode implements spec.md's evaluateNode: a recursive dispatch over
// the four compiled expression kinds.
func (s *SignalEvaluator) evaluateNode(ctx context.Context, node *compiler.CompiledExpr, ectx *EvalContext) (float64, error) {
	switch node.Kind {
	case signaldsl.ExprConstant:
		return node.Value, nil

	case signaldsl.ExprBinary:
		return s.evaluateBinary(ctx, node, ectx)

	case signaldsl.ExprState:
		return s.evaluateState(ctx, node, ectx)

	case signaldsl.ExprEvent:
		return s.evaluateEvent(ctx, node, ectx)

	default:
		return 0, fmt.Errorf("evaluator: unknown compiled expression kind %q", node.Kind)
	}
}

func (s *SignalEvaluator) evaluateBinary(ctx context.Context, node *compiler.CompiledExpr, ectx *EvalContext) (float64, error) {
	left, err := s.evaluateNode(ctx, node.Left, ectx)
	if err != nil {
		return 0, err
	}
	right, err := s.evaluateNode(ctx, node.Right, ectx)
	if err != nil {
		return 0, err
	}

	switch node.Op {
	case signaldsl.OpAdd:
		return left + right, nil
	case signaldsl.OpSub:
		return left - right, nil
	case signaldsl.OpMul:
		return left * right, nil
	case signaldsl.OpDiv:
		if right == 0 {
			s.Logger.Warn("division by zero in signal evaluation, returning 0",
				"chain_id", ectx.ChainID, "left", left)
			return 0, nil
		}
		return left / right, nil
	default:
		return 0, fmt.Errorf("evaluator: unknown binary operator %q", node.Op)
	}
}

func (s *SignalEvaluator) evaluateState(ctx context.Context, node *compiler.CompiledExpr, ectx *EvalContext) (float64, error) {
	atTime, err := resolveSnapshot(node.Snapshot, ectx)
	if err != nil {
		return 0, err
	}
	return ectx.Fetcher.FetchState(ctx, ectx.ChainID, node.EntityType, node.Filters, node.Field, atTime)
}

func (s *SignalEvaluator) evaluateEvent(ctx context.Context, node *compiler.CompiledExpr, ectx *EvalContext) (float64, error) {
	window := ectx.WindowDuration
	if node.Window != "" {
		d, err := signaldsl.ParseDuration(node.Window)
		if err != nil {
			return 0, fmt.Errorf("parsing event window: %w", err)
		}
		window = d
	}
	windowStart := ectx.Now.Add(-window)
	return ectx.Fetcher.FetchEvents(ctx, ectx.ChainID, node.EventType, node.Filters, node.Field, node.Aggregation, windowStart, ectx.Now)
}

// resolveSnapshot turns a StateRef's snapshot literal into an absolute
// point in time (spec.md §4.6): "current"->now, "window_start"->
// ctx.WindowStart, any other value is parsed as a duration literal Δ and
// resolves to now-Δ.
func resolveSnapshot(snapshot string, ectx *EvalContext) (time.Time, error) {
	switch snapshot {
	case "", "current":
		return ectx.Now, nil
	case "window_start":
		return ectx.WindowStart, nil
	default:
		d, err := signaldsl.ParseDuration(snapshot)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing snapshot %q: %w", snapshot, err)
		}
		return ectx.Now.Add(-d), nil
	}
}
