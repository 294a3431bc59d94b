package signaldsl

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// ComparisonOp is a condition comparison operator.
type ComparisonOp string

const (
	OpGT  ComparisonOp = "gt"
	OpGTE ComparisonOp = "gte"
	OpLT  ComparisonOp = "lt"
	OpLTE ComparisonOp = "lte"
	OpEQ  ComparisonOp = "eq"
	OpNEQ ComparisonOp = "neq"
)

// IsValid reports whether op is one of the six recognized comparisons.
func (op ComparisonOp) IsValid() bool {
	switch op {
	case OpGT, OpGTE, OpLT, OpLTE, OpEQ, OpNEQ:
		return true
	}
	return false
}

// BinaryOp is an arithmetic operator for BinaryExpression nodes.
type BinaryOp string

const (
	OpAdd BinaryOp = "add"
	OpSub BinaryOp = "sub"
	OpMul BinaryOp = "mul"
	OpDiv BinaryOp = "div"
)

func (op BinaryOp) IsValid() bool {
	switch op {
	case OpAdd, OpSub, OpMul, OpDiv:
		return true
	}
	return false
}

// Aggregation is an EventRef aggregation function.
type Aggregation string

const (
	AggSum   Aggregation = "sum"
	AggCount Aggregation = "count"
	AggAvg   Aggregation = "avg"
	AggMin   Aggregation = "min"
	AggMax   Aggregation = "max"
)

func (a Aggregation) IsValid() bool {
	switch a {
	case AggSum, AggCount, AggAvg, AggMin, AggMax:
		return true
	}
	return false
}

// FilterOp is the comparison operator used by a Filter.
type FilterOp string

const (
	FilterEq       FilterOp = "eq"
	FilterNeq      FilterOp = "neq"
	FilterGT       FilterOp = "gt"
	FilterGTE      FilterOp = "gte"
	FilterLT       FilterOp = "lt"
	FilterLTE      FilterOp = "lte"
	FilterIn       FilterOp = "in"
	FilterContains FilterOp = "contains"
)

func (f FilterOp) IsValid() bool {
	switch f {
	case FilterEq, FilterNeq, FilterGT, FilterGTE, FilterLT, FilterLTE, FilterIn, FilterContains:
		return true
	}
	return false
}

// Filter narrows a StateRef/EventRef to a specific on-chain entity or event.
type Filter struct {
	Field string   `json:"field"`
	Op    FilterOp `json:"op"`
	Value any      `json:"value"`
}

// ExprKind discriminates the four Expr variants.
type ExprKind string

const (
	ExprConstant ExprKind = "constant"
	ExprBinary   ExprKind = "binary_expression"
	ExprState    ExprKind = "state_ref"
	ExprEvent    ExprKind = "event_ref"
)

// Expr is a node in the Signal DSL expression tree. It is a tagged sum of
// four variants, discriminated by Kind. Exactly one of the variant-specific
// field groups is populated depending on Kind; the others are zero.
type Expr struct {
	Kind ExprKind `json:"kind"`

	// Constant
	Value float64 `json:"value,omitempty"`

	// BinaryExpression
	Op    BinaryOp `json:"op,omitempty"`
	Left  *Expr    `json:"left,omitempty"`
	Right *Expr    `json:"right,omitempty"`

	// StateRef
	EntityType string   `json:"entity_type,omitempty"`
	Field      string   `json:"field,omitempty"`
	Filters    []Filter `json:"filters,omitempty"`
	Snapshot   string   `json:"snapshot,omitempty"` // "current" | "window_start" | <duration>

	// EventRef
	EventType   string      `json:"event_type,omitempty"`
	Aggregation Aggregation `json:"aggregation,omitempty"`
	Window      string      `json:"window,omitempty"` // optional duration literal
}

// Depth returns the tree depth of the expression, where a leaf (Constant,
// StateRef, EventRef) has depth 1 and a BinaryExpression has depth
// 1+max(left,right).
func (e *Expr) Depth() int {
	if e == nil {
		return 0
	}
	if e.Kind != ExprBinary {
		return 1
	}
	l, r := e.Left.Depth(), e.Right.Depth()
	if l > r {
		return 1 + l
	}
	return 1 + r
}

// Condition compares two expressions.
type Condition struct {
	Left     *Expr        `json:"left"`
	Operator ComparisonOp `json:"operator"`
	Right    *Expr        `json:"right"`
}

// GroupLogic combines multiple conditions.
type GroupLogic string

const (
	LogicAND GroupLogic = "AND"
	LogicOR  GroupLogic = "OR"
)

func (l GroupLogic) IsValid() bool {
	return l == LogicAND || l == LogicOR
}

// SignalDefinition is the raw, uncompiled shape of a signal as persisted and
// as accepted from the admin surface. Exactly one of Condition or
// Conditions+Logic is populated (Invariant 2).
type SignalDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Protocol    string `json:"protocol"`

	Chains          []int64 `json:"chains"`
	WindowDuration  string  `json:"window_duration"`
	WebhookURL      string  `json:"webhook_url"`
	CooldownMinutes int64   `json:"cooldown_minutes"`
	IsActive        bool    `json:"is_active"`

	Condition  *Condition   `json:"condition,omitempty"`
	Conditions []*Condition `json:"conditions,omitempty"`
	Logic      GroupLogic   `json:"logic,omitempty"`

	LastTriggeredAt *time.Time `json:"last_triggered_at,omitempty"`
	LastEvaluatedAt *time.Time `json:"last_evaluated_at,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// DefinitionHash returns a stable sha256 hex digest of the signal's DSL tree,
// sufficient to detect when a cached compiled form needs re-derivation
// (spec.md §3 Lifecycle).
func (s *SignalDefinition) DefinitionHash() (string, error) {
	// Only the DSL-tree-relevant fields participate in the hash; mutable
	// timestamp bookkeeping must not invalidate the compiled-form cache.
	shape := struct {
		Protocol        string
		Chains          []int64
		WindowDuration  string
		WebhookURL      string
		CooldownMinutes int64
		Condition       *Condition
		Conditions      []*Condition
		Logic           GroupLogic
	}{
		Protocol:        s.Protocol,
		Chains:          s.Chains,
		WindowDuration:  s.WindowDuration,
		WebhookURL:      s.WebhookURL,
		CooldownMinutes: s.CooldownMinutes,
		Condition:       s.Condition,
		Conditions:      s.Conditions,
		Logic:           s.Logic,
	}
	data, err := json.Marshal(shape)
	if err != nil {
		return "", fmt.Errorf("hashing signal definition: %w", err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum), nil
}
