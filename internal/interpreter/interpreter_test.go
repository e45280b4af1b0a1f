package interpreter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hantei/internal/expr"
	"hantei/internal/herrors"
	"hantei/internal/value"
)

func numLit(n float64) expr.Expr     { return expr.NewLiteral(value.NewNumber(n)) }
func staticIn(name string) expr.Expr { return expr.NewInput(expr.StaticSource(name)) }

func envWith(statics map[string]value.Value) *Env {
	return &Env{Statics: statics, Binding: map[string]map[string]value.Value{}}
}

func TestDecideReportsAndShortCircuitOnFalseLeft(t *testing.T) {
	e := expr.NewBinary(expr.KindAnd,
		expr.NewBinary(expr.KindGt, staticIn("x"), numLit(100)),
		expr.NewBinary(expr.KindDiv, numLit(1), numLit(0)))

	it := New(nil)
	result, reason, err := it.Decide(e, envWith(map[string]value.Value{"x": value.NewNumber(1)}))
	require.NoError(t, err, "right-hand Div-by-zero must never run once left Gt is false")
	assert.False(t, result)
	assert.Contains(t, reason, "And")
}

func TestDecideOrShortCircuitsOnTrueLeft(t *testing.T) {
	e := expr.NewBinary(expr.KindOr,
		expr.NewBinary(expr.KindGt, staticIn("x"), numLit(0)),
		expr.NewBinary(expr.KindDiv, numLit(1), numLit(0)))

	it := New(nil)
	result, reason, err := it.Decide(e, envWith(map[string]value.Value{"x": value.NewNumber(1)}))
	require.NoError(t, err, "right-hand Div-by-zero must never run once left Gt is true")
	assert.True(t, result)
	assert.Contains(t, reason, "Or")
}

func TestDecideNotInvertsInnerResult(t *testing.T) {
	e := expr.NewUnary(expr.KindNot, expr.NewBinary(expr.KindGt, staticIn("x"), numLit(0)))

	it := New(nil)
	result, reason, err := it.Decide(e, envWith(map[string]value.Value{"x": value.NewNumber(-1)}))
	require.NoError(t, err)
	assert.True(t, result)
	assert.Contains(t, reason, "Not")
}

func TestDecideMissingStaticInputReturnsInputNotFound(t *testing.T) {
	e := expr.NewBinary(expr.KindGt, staticIn("missing"), numLit(0))

	it := New(nil)
	_, _, err := it.Decide(e, envWith(map[string]value.Value{}))
	require.Error(t, err)
	_, ok := err.(*herrors.EvaluationError)
	assert.True(t, ok)
}

func TestDecideDivideByZeroAborts(t *testing.T) {
	e := expr.NewBinary(expr.KindGt, expr.NewBinary(expr.KindDiv, numLit(1), numLit(0)), numLit(0))

	it := New(nil)
	_, _, err := it.Decide(e, envWith(map[string]value.Value{}))
	require.Error(t, err)
}

func TestSubroutineRefIsSharedAcrossMultipleReferences(t *testing.T) {
	pool := []expr.Expr{staticIn("x")}
	it := New(pool)

	env := envWith(map[string]value.Value{"x": value.NewNumber(5)})
	e := expr.NewBinary(expr.KindAnd,
		expr.NewBinary(expr.KindGt, expr.NewSubroutineRef(0), numLit(0)),
		expr.NewBinary(expr.KindGt, expr.NewSubroutineRef(0), numLit(0)))

	result, _, err := it.Decide(e, env)
	require.NoError(t, err)
	assert.True(t, result)
}

func TestResetForEvalClearsSubroutineCache(t *testing.T) {
	pool := []expr.Expr{staticIn("x")}
	it := New(pool)

	env1 := envWith(map[string]value.Value{"x": value.NewNumber(1)})
	r1, _, err := it.Decide(expr.NewBinary(expr.KindGt, expr.NewSubroutineRef(0), numLit(0)), env1)
	require.NoError(t, err)
	assert.True(t, r1)

	it.ResetForEval()
	env2 := envWith(map[string]value.Value{"x": value.NewNumber(-1)})
	r2, _, err := it.Decide(expr.NewBinary(expr.KindGt, expr.NewSubroutineRef(0), numLit(0)), env2)
	require.NoError(t, err)
	assert.False(t, r2)
}
