package optimizer

import "hantei/internal/expr"

// ComparisonNormalization is pass (c): rewrites Lt, Lte, Gte, and Neq into
// canonical forms built only from Gt, Eq, and Not, so downstream passes
// (dead-branch elimination, CSE) only ever have to recognize three
// comparison shapes instead of six:
//
//	Lt(a,b)  -> Gt(b,a)
//	Lte(a,b) -> Not(Gt(a,b))
//	Gte(a,b) -> Not(Gt(b,a))
//	Neq(a,b) -> Not(Eq(a,b))
//
// None of the right-hand sides re-match their own rule, so the rewrite
// reaches a fixed point in a single bottom-up pass.
type ComparisonNormalization struct{}

func (*ComparisonNormalization) Name() string { return "Comparison Normalization" }
func (*ComparisonNormalization) Description() string {
	return "Rewrites Lt/Lte/Gte/Neq into canonical Gt/Eq/Not forms"
}

func (cn *ComparisonNormalization) Apply(p *Program) bool {
	return rewriteAll(p, nil, normalizeComparison)
}

func normalizeComparison(e expr.Expr) expr.Expr {
	b, ok := e.(*expr.Binary)
	if !ok {
		return e
	}
	switch b.K {
	case expr.KindLt:
		return expr.NewBinary(expr.KindGt, b.Right, b.Left)
	case expr.KindLte:
		return expr.NewUnary(expr.KindNot, expr.NewBinary(expr.KindGt, b.Left, b.Right))
	case expr.KindGte:
		return expr.NewUnary(expr.KindNot, expr.NewBinary(expr.KindGt, b.Right, b.Left))
	case expr.KindNeq:
		return expr.NewUnary(expr.KindNot, expr.NewBinary(expr.KindEq, b.Left, b.Right))
	default:
		return e
	}
}
