package expr

// Footprint is the set of dynamic event types an expression references,
// used both by the optimizer's CSE purity check (spec §4.3f: "Dynamic
// subtrees are not extracted") and by the evaluator's per-path
// classification (spec §3: static / dynamic-over-set-S / mixed-over-S).
type Footprint map[string]bool

// ComputeFootprint walks e and returns the set of distinct dynamic event
// types it references. An empty, non-nil Footprint means e is purely
// static.
func ComputeFootprint(e Expr) Footprint {
	fp := Footprint{}
	Walk(e, func(n Expr) {
		if in, ok := n.(*Input); ok && !in.Source.Static {
			fp[in.Source.EventType] = true
		}
	})
	return fp
}

// IsStatic reports whether e references no dynamic inputs.
func IsStatic(e Expr) bool {
	static := true
	Walk(e, func(n Expr) {
		if in, ok := n.(*Input); ok && !in.Source.Static {
			static = false
		}
	})
	return static
}

// EventTypesInOrder returns the dynamic event types e references, ordered
// by first occurrence in a pre-order traversal — the order spec §4.7
// requires for Cartesian product enumeration ("e₁…eₖ ordered by
// first-occurrence in the IR traversal").
func EventTypesInOrder(e Expr) []string {
	seen := map[string]bool{}
	var order []string
	Walk(e, func(n Expr) {
		if in, ok := n.(*Input); ok && !in.Source.Static {
			if !seen[in.Source.EventType] {
				seen[in.Source.EventType] = true
				order = append(order, in.Source.EventType)
			}
		}
	})
	return order
}
