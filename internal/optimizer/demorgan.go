package optimizer

import "hantei/internal/expr"

// BooleanRestructuring is pass (e): applies De Morgan's laws to
// Not(And(a,b)) and Not(Or(a,b)), but only when doing so immediately exposes
// a Literal on one side for AlgebraicIdentities/DeadBranchElimination to
// consume next sweep. Unconditional De Morgan expansion can grow a tree
// forever on a term with no literal operand, so this pass is gated rather
// than applied unconditionally (spec §4.3e).
type BooleanRestructuring struct{}

func (*BooleanRestructuring) Name() string { return "Boolean Restructuring" }
func (*BooleanRestructuring) Description() string {
	return "Applies De Morgan's laws when one resulting operand becomes a Literal"
}

func (br *BooleanRestructuring) Apply(p *Program) bool {
	return rewriteAll(p, nil, restructureBoolean)
}

func restructureBoolean(e expr.Expr) expr.Expr {
	u, ok := e.(*expr.Unary)
	if !ok || u.K != expr.KindNot {
		return e
	}
	inner, ok := u.Arg.(*expr.Binary)
	if !ok || !inner.K.IsLogicalBinary() {
		return e
	}

	notLeft := expr.NewUnary(expr.KindNot, inner.Left)
	notRight := expr.NewUnary(expr.KindNot, inner.Right)
	if !exposesLiteral(notLeft) && !exposesLiteral(notRight) {
		return e
	}

	target := expr.KindOr
	if inner.K == expr.KindOr {
		target = expr.KindAnd
	}
	return expr.NewBinary(target, notLeft, notRight)
}

// exposesLiteral reports whether negated is Not(Literal), i.e. the operand
// that was wrapped in Not is itself a Literal. An operand of the form
// Not(Literal) does not count.
func exposesLiteral(negated expr.Expr) bool {
	u, ok := negated.(*expr.Unary)
	if !ok {
		return false
	}
	_, isLit := isLiteral(u.Arg)
	return isLit
}
