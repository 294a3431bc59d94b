package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flare-signals/signal-engine/internal/registry"
	"github.com/flare-signals/signal-engine/internal/signaldsl"
)

func stateExpr(field string) *signaldsl.Expr {
	return &signaldsl.Expr{Kind: signaldsl.ExprState, EntityType: "market", Field: field, Snapshot: "current"}
}

func constExpr(v float64) *signaldsl.Expr {
	return &signaldsl.Expr{Kind: signaldsl.ExprConstant, Value: v}
}

func baseDef() *signaldsl.SignalDefinition {
	return &signaldsl.SignalDefinition{
		ID:             "sig-1",
		Protocol:       registry.MorphoBlue,
		Chains:         []int64{1},
		WindowDuration: "1h",
		WebhookURL:     "https://example.com/hook",
		Condition: &signaldsl.Condition{
			Left:     stateExpr("total_supply_assets"),
			Operator: signaldsl.OpGT,
			Right:    constExpr(1000),
		},
	}
}

func TestCompile_SingleConditionWrapsIntoGroup(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()

	compiled, err := Compile(def, reg)
	require.NoError(t, err)

	assert.False(t, compiled.IsGroup)
	assert.Equal(t, signaldsl.LogicAND, compiled.Logic)
	require.Len(t, compiled.Conditions, 1)
	assert.NotNil(t, compiled.Conditions[0].Left.Metric)
	assert.Equal(t, "total_supply_assets", compiled.Conditions[0].Left.Metric.Field)
}

func TestCompile_ConditionsWinsWhenBothPresent(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()
	def.Conditions = []*signaldsl.Condition{
		{Left: stateExpr("total_borrow_assets"), Operator: signaldsl.OpLT, Right: constExpr(500)},
		{Left: stateExpr("utilization"), Operator: signaldsl.OpGTE, Right: constExpr(80)},
	}
	def.Logic = signaldsl.LogicOR

	compiled, err := Compile(def, reg)
	require.NoError(t, err)

	assert.True(t, compiled.IsGroup)
	assert.Equal(t, signaldsl.LogicOR, compiled.Logic)
	require.Len(t, compiled.Conditions, 2)
	assert.Equal(t, "total_borrow_assets", compiled.Conditions[0].Left.Metric.Field)
	assert.Equal(t, "utilization", compiled.Conditions[1].Left.Metric.Field)
}

func TestCompile_UnregisteredStateFieldFails(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()
	def.Condition.Left = stateExpr("not_a_real_field")

	_, err := Compile(def, reg)
	require.Error(t, err)
	var ce *Error
	assert.ErrorAs(t, err, &ce)
}

func TestCompile_UnregisteredEventFieldFails(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()
	def.Condition.Left = &signaldsl.Expr{
		Kind: signaldsl.ExprEvent, EventType: "Supply", Field: "bogus", Aggregation: signaldsl.AggSum, Window: "1h",
	}

	_, err := Compile(def, reg)
	require.Error(t, err)
}

func TestCompile_BinaryExpressionResolvesBothSides(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()
	def.Condition.Left = &signaldsl.Expr{
		Kind: signaldsl.ExprBinary,
		Op:   signaldsl.OpDiv,
		Left: stateExpr("total_borrow_assets"),
		Right: &signaldsl.Expr{
			Kind: signaldsl.ExprEvent, EventType: "Supply", Field: "assets", Aggregation: signaldsl.AggSum, Window: "1h",
		},
	}

	compiled, err := Compile(def, reg)
	require.NoError(t, err)

	left := compiled.Conditions[0].Left
	assert.Equal(t, signaldsl.ExprBinary, left.Kind)
	assert.NotNil(t, left.Left.Metric)
	assert.NotNil(t, left.Right.Metric)
}

func TestCompile_NilExpressionFails(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()
	def.Condition.Right = nil

	_, err := Compile(def, reg)
	require.Error(t, err)
}

func TestCompile_NeitherConditionNorConditionsFails(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()
	def.Condition = nil

	_, err := Compile(def, reg)
	require.Error(t, err)
}

func TestCompile_Deterministic(t *testing.T) {
	reg := registry.NewMorphoRegistry()
	def := baseDef()

	c1, err := Compile(def, reg)
	require.NoError(t, err)
	c2, err := Compile(def, reg)
	require.NoError(t, err)

	assert.Equal(t, c1.DefinitionHash, c2.DefinitionHash)
	assert.Equal(t, c1.Conditions[0].Left.Metric.Field, c2.Conditions[0].Left.Metric.Field)
}
