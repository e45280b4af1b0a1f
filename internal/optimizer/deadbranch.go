package optimizer

import (
	"hantei/internal/expr"
	"hantei/internal/value"
)

// DeadBranchElimination is pass (d): flattens And/Or chains, looks for a
// literal-false in an And chain (or literal-true in an Or chain) to collapse
// the whole chain, looks for a leaf and its logical negation both present in
// the same chain (a contradiction under And, a tautology under Or), and
// otherwise re-binds the (possibly shortened) leaf list right-associatively.
//
// This pass runs after ComparisonNormalization, so every comparison atom it
// sees is already in Gt/Eq/Not canonical form — it never has to recognize
// Lt/Lte/Gte/Neq directly.
type DeadBranchElimination struct{}

func (*DeadBranchElimination) Name() string { return "Dead Branch Elimination" }
func (*DeadBranchElimination) Description() string {
	return "Collapses And/Or chains with a deciding literal or a contradictory/tautological pair of atoms"
}

func (db *DeadBranchElimination) Apply(p *Program) bool {
	return rewriteAll(p, nil, eliminateDeadBranch)
}

func eliminateDeadBranch(e expr.Expr) expr.Expr {
	b, ok := e.(*expr.Binary)
	if !ok || !b.K.IsLogicalBinary() {
		return e
	}
	leaves := flattenChain(e, b.K)
	if len(leaves) < 2 {
		return e
	}

	if b.K == expr.KindAnd {
		for _, l := range leaves {
			if isLiteralBool(l, false) {
				return literalBool(false)
			}
		}
		if numericContradictionPresent(leaves) {
			return literalBool(false)
		}
	} else {
		for _, l := range leaves {
			if isLiteralBool(l, true) {
				return literalBool(true)
			}
		}
	}

	if negatedPairPresent(leaves) {
		return literalBool(b.K == expr.KindOr)
	}

	kept := make([]expr.Expr, 0, len(leaves))
	dropLiteral := true // And drops Literal(true); Or drops Literal(false)
	for _, l := range leaves {
		if b.K == expr.KindAnd && isLiteralBool(l, dropLiteral) {
			continue
		}
		if b.K == expr.KindOr && isLiteralBool(l, !dropLiteral) {
			continue
		}
		kept = append(kept, l)
	}
	if len(kept) == len(leaves) {
		return e
	}
	if len(kept) == 0 {
		return literalBool(b.K == expr.KindAnd)
	}
	if len(kept) == 1 {
		return kept[0]
	}
	return rebindRight(kept, b.K)
}

// negatedPairPresent reports whether leaves contains some x and Not(x)
// (by canonical key), which makes an And chain false and an Or chain true.
func negatedPairPresent(leaves []expr.Expr) bool {
	keys := make(map[string]bool, len(leaves))
	for _, l := range leaves {
		keys[canonicalKey(l)] = true
	}
	for _, l := range leaves {
		if u, ok := l.(*expr.Unary); ok && u.K == expr.KindNot {
			if keys[canonicalKey(u.Arg)] {
				return true
			}
		} else if keys[canonicalKey(expr.NewUnary(expr.KindNot, l))] {
			return true
		}
	}
	return false
}

// bound pairs a variable subtree with a literal threshold extracted from a
// Gt or Eq leaf.
type bound struct {
	v   expr.Expr
	lit float64
}

// gtBound reports whether e is Gt(v,A) or Gt(A,v) for some literal A and
// non-literal v, and which side the literal occupies: lower=true means
// e asserts v > A; lower=false means e asserts A > v (so v < A).
func gtBound(e expr.Expr) (b bound, lower bool, ok bool) {
	bin, isBin := e.(*expr.Binary)
	if !isBin || bin.K != expr.KindGt {
		return bound{}, false, false
	}
	if lit, litOk := literalNumber(bin.Right); litOk {
		return bound{v: bin.Left, lit: lit}, true, true
	}
	if lit, litOk := literalNumber(bin.Left); litOk {
		return bound{v: bin.Right, lit: lit}, false, true
	}
	return bound{}, false, false
}

// eqBound reports whether e is Eq(v,A) or Eq(A,v) for some literal A and
// non-literal v.
func eqBound(e expr.Expr) (b bound, ok bool) {
	bin, isBin := e.(*expr.Binary)
	if !isBin || bin.K != expr.KindEq {
		return bound{}, false
	}
	if lit, litOk := literalNumber(bin.Right); litOk {
		return bound{v: bin.Left, lit: lit}, true
	}
	if lit, litOk := literalNumber(bin.Left); litOk {
		return bound{v: bin.Right, lit: lit}, true
	}
	return bound{}, false
}

// numericContradictionPresent implements the two bounded numeric folds
// spec §4.3d names: Gt(x,A) together with Lt(x,B) (normalized to Gt(B,x))
// where A >= B, and Eq(x,A) together with Eq(x,B) where A != B. Both are a
// literal-vs-literal comparison on a shared operand, not general interval
// reasoning.
func numericContradictionPresent(leaves []expr.Expr) bool {
	var lowers, uppers, eqs []bound
	for _, l := range leaves {
		if b, lower, ok := gtBound(l); ok {
			if lower {
				lowers = append(lowers, b)
			} else {
				uppers = append(uppers, b)
			}
			continue
		}
		if b, ok := eqBound(l); ok {
			eqs = append(eqs, b)
		}
	}
	for _, lo := range lowers {
		for _, up := range uppers {
			if structurallyEqual(lo.v, up.v) && lo.lit >= up.lit {
				return true
			}
		}
	}
	for i := 0; i < len(eqs); i++ {
		for j := i + 1; j < len(eqs); j++ {
			if structurallyEqual(eqs[i].v, eqs[j].v) && eqs[i].lit != eqs[j].lit {
				return true
			}
		}
	}
	return false
}

func literalBool(b bool) expr.Expr {
	return expr.NewLiteral(value.NewBool(b))
}
