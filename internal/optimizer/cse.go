package optimizer

import "hantei/internal/expr"

// CommonSubexpressionElimination is pass (f): finds purely-static,
// non-leaf subtrees that occur more than once across the whole Program and
// extracts each into the shared subroutine pool, replacing every occurrence
// with a SubroutineRef. Dynamic subtrees are never extracted, since their
// value can differ across evaluations of the same path and sharing one
// evaluation across occurrences would be unsound (spec §4.3f).
type CommonSubexpressionElimination struct{}

func (*CommonSubexpressionElimination) Name() string {
	return "Common Subexpression Elimination"
}
func (*CommonSubexpressionElimination) Description() string {
	return "Extracts repeated static subtrees into the subroutine pool"
}

func (cse *CommonSubexpressionElimination) Apply(p *Program) bool {
	counts := map[string]int{}
	examples := map[string]expr.Expr{}
	for _, path := range p.Paths {
		expr.Walk(path.Expr, func(n expr.Expr) {
			if len(n.Children()) == 0 || !expr.IsStatic(n) {
				return
			}
			key := canonicalKey(n)
			counts[key]++
			if _, ok := examples[key]; !ok {
				examples[key] = n
			}
		})
	}

	ids := map[string]int{}
	for _, key := range sortKeys(counts) {
		if counts[key] < 2 {
			continue
		}
		ids[key] = len(p.Pool)
		p.Pool = append(p.Pool, examples[key])
	}
	if len(ids) == 0 {
		return false
	}

	changed := false
	extract := func(n expr.Expr) expr.Expr {
		if len(n.Children()) == 0 {
			return n
		}
		if id, ok := ids[canonicalKey(n)]; ok {
			return expr.NewSubroutineRef(id)
		}
		return n
	}
	for _, path := range p.Paths {
		before := canonicalKey(path.Expr)
		path.Expr = expr.Fold(path.Expr, extract, nil)
		if canonicalKey(path.Expr) != before {
			changed = true
		}
	}
	return changed
}
