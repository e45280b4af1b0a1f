package expr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hantei/internal/value"
)

func numLit(n float64) Expr { return NewLiteral(value.NewNumber(n)) }
func boolLit(b bool) Expr   { return NewLiteral(value.NewBool(b)) }

func TestKindStringCoversEveryKind(t *testing.T) {
	kinds := []Kind{
		KindLiteral, KindInput, KindSubroutineRef, KindSum, KindSub, KindMul, KindDiv,
		KindGt, KindLt, KindGte, KindLte, KindEq, KindNeq, KindAnd, KindOr, KindNot,
	}
	for _, k := range kinds {
		assert.NotEqual(t, "Unknown", k.String())
	}
	assert.Equal(t, "Unknown", Kind(999).String())
}

func TestIsArithmeticIsComparisonIsLogicalBinary(t *testing.T) {
	assert.True(t, KindSum.IsArithmetic())
	assert.False(t, KindGt.IsArithmetic())
	assert.True(t, KindGt.IsComparison())
	assert.False(t, KindSum.IsComparison())
	assert.True(t, KindAnd.IsLogicalBinary())
	assert.True(t, KindOr.IsLogicalBinary())
	assert.False(t, KindNot.IsLogicalBinary())
}

func TestBinOpMapsEveryBinaryKind(t *testing.T) {
	assert.Equal(t, "+", KindSum.BinOp())
	assert.Equal(t, "/", KindDiv.BinOp())
	assert.Equal(t, ">=", KindGte.BinOp())
	assert.Equal(t, "!=", KindNeq.BinOp())
	assert.Equal(t, "&&", KindAnd.BinOp())
	assert.Equal(t, "", KindNot.BinOp())
}

func TestStaticSourceAndDynamicSourceString(t *testing.T) {
	s := StaticSource("area")
	assert.True(t, s.Static)
	assert.Equal(t, "Static(area)", s.String())

	d := DynamicSource("hole", "depth")
	assert.False(t, d.Static)
	assert.Equal(t, "Dynamic(hole,depth)", d.String())
}

func TestChildrenForLeavesIsNil(t *testing.T) {
	assert.Nil(t, NewLiteral(value.NewNumber(1)).Children())
	assert.Nil(t, NewInput(StaticSource("x")).Children())
	assert.Nil(t, NewSubroutineRef(0).Children())
}

func TestChildrenForBinaryAndUnary(t *testing.T) {
	left, right := numLit(1), numLit(2)
	b := NewBinary(KindSum, left, right)
	assert.Equal(t, []Expr{left, right}, b.Children())

	arg := boolLit(true)
	u := NewUnary(KindNot, arg)
	assert.Equal(t, []Expr{arg}, u.Children())
}

func TestMapChildrenRewritesBinaryAndUnaryOnly(t *testing.T) {
	lit := numLit(1)
	rewritten := MapChildren(lit, func(e Expr) Expr { return numLit(99) })
	assert.Same(t, lit, rewritten)

	bin := NewBinary(KindSum, numLit(1), numLit(2))
	out := MapChildren(bin, func(e Expr) Expr { return numLit(7) })
	ob := out.(*Binary)
	left, _ := ob.Left.(*Literal).Value.Number()
	right, _ := ob.Right.(*Literal).Value.Number()
	assert.Equal(t, 7.0, left)
	assert.Equal(t, 7.0, right)
}

func TestFoldAppliesPreThenPostOrder(t *testing.T) {
	tree := NewBinary(KindSum, numLit(1), numLit(2))
	var visited []Kind
	pre := func(e Expr) Expr {
		visited = append(visited, e.Kind())
		return e
	}
	post := func(e Expr) Expr {
		visited = append(visited, e.Kind())
		return e
	}
	Fold(tree, pre, post)
	assert.Equal(t, []Kind{KindSum, KindLiteral, KindLiteral, KindLiteral, KindLiteral, KindSum}, visited)
}

func TestFoldRewritesBottomUp(t *testing.T) {
	tree := NewBinary(KindSum, numLit(1), numLit(2))
	replaceLiterals := func(e Expr) Expr {
		if _, ok := e.(*Literal); ok {
			return numLit(100)
		}
		return e
	}
	out := Fold(tree, nil, replaceLiterals)
	b := out.(*Binary)
	left, _ := b.Left.(*Literal).Value.Number()
	right, _ := b.Right.(*Literal).Value.Number()
	assert.Equal(t, 100.0, left)
	assert.Equal(t, 100.0, right)
}

func TestWalkVisitsEveryNodePreOrder(t *testing.T) {
	tree := NewBinary(KindAnd, NewUnary(KindNot, boolLit(true)), boolLit(false))
	var kinds []Kind
	Walk(tree, func(e Expr) { kinds = append(kinds, e.Kind()) })
	assert.Equal(t, []Kind{KindAnd, KindNot, KindLiteral, KindLiteral}, kinds)
}

func TestComputeFootprintCollectsDistinctDynamicEventTypes(t *testing.T) {
	tree := NewBinary(KindAnd,
		NewBinary(KindGt, NewInput(DynamicSource("hole", "depth")), numLit(10)),
		NewBinary(KindGt, NewInput(DynamicSource("hole", "width")), numLit(1)),
	)
	fp := ComputeFootprint(tree)
	assert.Len(t, fp, 1)
	assert.True(t, fp["hole"])
}

func TestComputeFootprintIgnoresStaticInputs(t *testing.T) {
	tree := NewInput(StaticSource("area"))
	fp := ComputeFootprint(tree)
	assert.Empty(t, fp)
}

func TestIsStatic(t *testing.T) {
	assert.True(t, IsStatic(NewInput(StaticSource("area"))))
	assert.False(t, IsStatic(NewInput(DynamicSource("hole", "depth"))))
}

func TestEventTypesInOrderOrdersByFirstOccurrence(t *testing.T) {
	tree := NewBinary(KindAnd,
		NewInput(DynamicSource("crack", "length")),
		NewBinary(KindAnd,
			NewInput(DynamicSource("hole", "depth")),
			NewInput(DynamicSource("crack", "width")),
		),
	)
	assert.Equal(t, []string{"crack", "hole"}, EventTypesInOrder(tree))
}

func TestValueTypeString(t *testing.T) {
	assert.Equal(t, "Number", TypeNumber.String())
	assert.Equal(t, "Bool", TypeBool.String())
}

func TestCheckLiteralAndInputDefaultsToNumber(t *testing.T) {
	ty, err := Check(numLit(1), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeNumber, ty)

	ty, err = Check(boolLit(true), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, ty)

	ty, err = Check(NewInput(StaticSource("x")), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeNumber, ty)
}

func TestCheckArithmeticRequiresNumberOperands(t *testing.T) {
	tree := NewBinary(KindSum, numLit(1), boolLit(true))
	_, err := Check(tree, nil, nil)
	require.Error(t, err)
	var tie *TypeInvariantError
	require.ErrorAs(t, err, &tie)
}

func TestCheckComparisonProducesBool(t *testing.T) {
	tree := NewBinary(KindGt, numLit(1), numLit(2))
	ty, err := Check(tree, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, ty)
}

func TestCheckEqAllowsMatchingTypesOnly(t *testing.T) {
	ok := NewBinary(KindEq, numLit(1), numLit(2))
	ty, err := Check(ok, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, ty)

	mismatch := NewBinary(KindEq, numLit(1), boolLit(true))
	_, err = Check(mismatch, nil, nil)
	require.Error(t, err)
}

func TestCheckLogicalRequiresBoolOperands(t *testing.T) {
	tree := NewBinary(KindAnd, numLit(1), boolLit(true))
	_, err := Check(tree, nil, nil)
	require.Error(t, err)
}

func TestCheckNotRequiresBoolOperand(t *testing.T) {
	_, err := Check(NewUnary(KindNot, numLit(1)), nil, nil)
	require.Error(t, err)

	ty, err := Check(NewUnary(KindNot, boolLit(false)), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, ty)
}

func TestCheckSubroutineRefUsesTyperWhenProvided(t *testing.T) {
	typer := func(id int) (ValueType, error) {
		if id == 1 {
			return TypeBool, nil
		}
		return TypeNumber, nil
	}
	ty, err := Check(NewSubroutineRef(1), typer, nil)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, ty)
}

func TestCheckInputUsesTyperWhenProvided(t *testing.T) {
	typer := func(src Source) (ValueType, error) { return TypeBool, nil }
	ty, err := Check(NewInput(StaticSource("flag")), nil, typer)
	require.NoError(t, err)
	assert.Equal(t, TypeBool, ty)
}
