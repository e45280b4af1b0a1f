package optimizer

import (
	"fmt"
	"sort"

	"hantei/internal/expr"
)

// commutative reports whether a Binary kind's operand order is irrelevant
// to its result, so canonicalKey can sort children for structural matching
// (spec §4.3f: "commutative operators sort children by hash").
func commutative(k expr.Kind) bool {
	switch k {
	case expr.KindSum, expr.KindMul, expr.KindAnd, expr.KindOr, expr.KindEq, expr.KindNeq:
		return true
	default:
		return false
	}
}

// canonicalKey renders e as a structural hash key: identical subtrees
// (post-CSE-normalization of commutative operand order) produce identical
// keys. Used by CSE to find repeated subtrees and by the pipeline to detect
// whether a pass changed anything.
func canonicalKey(e expr.Expr) string {
	switch n := e.(type) {
	case *expr.Literal:
		return "L:" + n.Value.String()
	case *expr.Input:
		return "I:" + n.Source.String()
	case *expr.SubroutineRef:
		return fmt.Sprintf("S:%d", n.ID)
	case *expr.Binary:
		lk, rk := canonicalKey(n.Left), canonicalKey(n.Right)
		if commutative(n.K) && lk > rk {
			lk, rk = rk, lk
		}
		return fmt.Sprintf("%s(%s,%s)", n.K, lk, rk)
	case *expr.Unary:
		return fmt.Sprintf("%s(%s)", n.K, canonicalKey(n.Arg))
	default:
		return "?"
	}
}

// size is the (nodeCount, literalCount) lexicographic measure spec §4.3
// uses to prove pass termination.
type size struct {
	nodes    int
	literals int
}

func (s size) less(o size) bool {
	if s.nodes != o.nodes {
		return s.nodes < o.nodes
	}
	return s.literals < o.literals
}

func measure(e expr.Expr) size {
	s := size{}
	expr.Walk(e, func(n expr.Expr) {
		s.nodes++
		if _, ok := n.(*expr.Literal); ok {
			s.literals++
		}
	})
	return s
}

func isLiteral(e expr.Expr) (*expr.Literal, bool) {
	l, ok := e.(*expr.Literal)
	return l, ok
}

func isLiteralBool(e expr.Expr, want bool) bool {
	l, ok := isLiteral(e)
	if !ok {
		return false
	}
	b, ok := l.Value.Bool()
	return ok && b == want
}

func isLiteralNumber(e expr.Expr, want float64) bool {
	l, ok := isLiteral(e)
	if !ok {
		return false
	}
	n, ok := l.Value.Number()
	return ok && n == want
}

func literalNumber(e expr.Expr) (float64, bool) {
	l, ok := isLiteral(e)
	if !ok {
		return 0, false
	}
	return l.Value.Number()
}

// structurallyEqual reports whether a and b are the identical expression
// (used for "x - x", "x / x" style identities).
func structurallyEqual(a, b expr.Expr) bool {
	return canonicalKey(a) == canonicalKey(b)
}

// containsDiv reports whether e contains a Div node anywhere, the
// conservative guard spec §4.3b uses to skip "x / x -> 1" when x might
// itself be a division (and so its own division-by-zero check would be
// lost by the rewrite).
func containsDiv(e expr.Expr) bool {
	found := false
	expr.Walk(e, func(n expr.Expr) {
		if n.Kind() == expr.KindDiv {
			found = true
		}
	})
	return found
}

// flattenChain collects the leaves of a right- or left-associated chain of
// binary nodes of kind k (And or Or), in left-to-right order.
func flattenChain(e expr.Expr, k expr.Kind) []expr.Expr {
	var out []expr.Expr
	var walk func(expr.Expr)
	walk = func(n expr.Expr) {
		if b, ok := n.(*expr.Binary); ok && b.K == k {
			walk(b.Left)
			walk(b.Right)
			return
		}
		out = append(out, n)
	}
	walk(e)
	return out
}

// rebindRight reconstructs a right-associative chain of kind k from leaves,
// per spec §4.3d: "re-binds right-associatively".
func rebindRight(leaves []expr.Expr, k expr.Kind) expr.Expr {
	if len(leaves) == 0 {
		return nil
	}
	result := leaves[len(leaves)-1]
	for i := len(leaves) - 2; i >= 0; i-- {
		result = expr.NewBinary(k, leaves[i], result)
	}
	return result
}

// sortKeys is a small helper kept for callers that want deterministic
// iteration over a canonical-key-keyed map.
func sortKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
