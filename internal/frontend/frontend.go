// Package frontend lowers a validated flow.FlowDefinition into one naive
// expr.Expr per quality, by reverse traversal from each quality's root
// handle (spec §4.2).
package frontend

import (
	"fmt"
	"sort"

	"hantei/internal/expr"
	"hantei/internal/flow"
	"hantei/internal/herrors"
	"hantei/internal/value"
)

// QualityExpr pairs a lowered quality with its Expression tree.
type QualityExpr struct {
	Quality flow.Quality
	Expr    expr.Expr
}

// color marks a node's three-color DFS state for cycle detection: the
// standard "white/grey/black" traversal, adapted here to plain recursion.
type color int

const (
	white color = iota
	grey
	black
)

// Build lowers every quality root in f into an Expression tree, in the flow
// graph's quality declaration order. It does not sort by priority — that is
// the evaluator's job (spec §4.7).
func Build(f *flow.FlowDefinition) ([]QualityExpr, error) {
	if err := f.Index(); err != nil {
		return nil, asCompilationError(err)
	}
	for _, e := range f.Edges {
		for _, id := range []flow.NodeID{e.Source, e.Target} {
			if _, ok := f.Nodes[id]; !ok {
				return nil, &herrors.CompilationError{
					Stage:   herrors.StageFrontend,
					Code:    herrors.CodeDanglingEdge,
					Message: fmt.Sprintf("edge %s->%s references missing node %q", e.Source, e.Target, id),
					NodeIDs: []string{string(id)},
				}
			}
		}
	}
	if err := f.ValidateEdgeTypes(); err != nil {
		return nil, asCompilationError(err)
	}

	out := make([]QualityExpr, 0, len(f.Qualities))
	for _, q := range f.Qualities {
		b := &builder{flow: f, colors: make(map[flow.NodeID]color)}
		root, ok := f.Nodes[q.Root]
		if !ok {
			return nil, &herrors.CompilationError{
				Stage:   herrors.StageFrontend,
				Code:    herrors.CodeUnknownQualityRoot,
				Message: fmt.Sprintf("quality %q references unknown root node %q", q.Name, q.Root),
				NodeIDs: []string{string(q.Root)},
			}
		}
		e, err := b.lowerNode(root)
		if err != nil {
			return nil, err
		}
		out = append(out, QualityExpr{Quality: q, Expr: e})
	}
	return out, nil
}

type builder struct {
	flow   *flow.FlowDefinition
	colors map[flow.NodeID]color
}

func (b *builder) lowerNode(n *flow.Node) (expr.Expr, error) {
	switch b.colors[n.ID] {
	case grey:
		return nil, &herrors.CompilationError{
			Stage:   herrors.StageFrontend,
			Code:    herrors.CodeCycle,
			Message: fmt.Sprintf("cycle detected through node %q", n.ID),
			NodeIDs: []string{string(n.ID)},
		}
	case black:
		// Fan-out is fine: a node reachable from two different paths is
		// simply lowered again, producing two structurally-identical
		// subtrees that CSE may later re-merge.
	}
	b.colors[n.ID] = grey
	e, err := b.lowerKind(n)
	if err != nil {
		return nil, err
	}
	b.colors[n.ID] = black
	return e, nil
}

func (b *builder) lowerKind(n *flow.Node) (expr.Expr, error) {
	switch n.Kind {
	case flow.NodeLiteral:
		return expr.NewLiteral(literalValue(n.Literal)), nil

	case flow.NodeDynamic:
		if n.Source.IsStatic {
			return expr.NewInput(expr.StaticSource(n.Source.Name)), nil
		}
		return expr.NewInput(expr.DynamicSource(n.Source.EventType, n.Source.CaseName)), nil

	case flow.NodeNot:
		arg, err := b.lowerHandle(n, flow.HandleArg)
		if err != nil {
			return nil, err
		}
		return expr.NewUnary(expr.KindNot, arg), nil

	default:
		k, ok := binaryKind(n.Kind)
		if !ok {
			return nil, &herrors.CompilationError{
				Stage:   herrors.StageFrontend,
				Code:    herrors.CodeUnrecognizedNode,
				Message: fmt.Sprintf("unrecognized node kind %q", n.Kind),
				NodeIDs: []string{string(n.ID)},
			}
		}
		left, err := b.lowerHandle(n, flow.HandleLeft)
		if err != nil {
			return nil, err
		}
		right, err := b.lowerHandle(n, flow.HandleRight)
		if err != nil {
			return nil, err
		}
		return expr.NewBinary(k, left, right), nil
	}
}

// lowerHandle recurses on the edge feeding (n, handle) if one exists,
// otherwise falls back to the node's literal slot for that handle (spec
// §3). A handle with neither an edge nor a literal slot is malformed.
func (b *builder) lowerHandle(n *flow.Node, handle flow.HandleID) (expr.Expr, error) {
	if e, ok := b.flow.InboundEdge(n.ID, handle); ok {
		src, ok := b.flow.Nodes[e.Source]
		if !ok {
			return nil, &herrors.CompilationError{
				Stage:   herrors.StageFrontend,
				Code:    herrors.CodeDanglingEdge,
				Message: fmt.Sprintf("edge into %s:%s references missing node %q", n.ID, handle, e.Source),
				NodeIDs: []string{string(n.ID), string(e.Source)},
			}
		}
		return b.lowerNode(src)
	}
	if n.LiteralSlots != nil {
		if lit, ok := n.LiteralSlots[handle]; ok {
			return expr.NewLiteral(literalValue(lit)), nil
		}
	}
	return nil, &herrors.CompilationError{
		Stage:   herrors.StageFrontend,
		Code:    herrors.CodeMissingLiteral,
		Message: fmt.Sprintf("handle %s:%s has neither an inbound edge nor a literal slot", n.ID, handle),
		NodeIDs: []string{string(n.ID)},
	}
}

func binaryKind(k flow.NodeKind) (expr.Kind, bool) {
	switch k {
	case flow.NodeGt:
		return expr.KindGt, true
	case flow.NodeLt:
		return expr.KindLt, true
	case flow.NodeGte:
		return expr.KindGte, true
	case flow.NodeLte:
		return expr.KindLte, true
	case flow.NodeEq:
		return expr.KindEq, true
	case flow.NodeAnd:
		return expr.KindAnd, true
	case flow.NodeOr:
		return expr.KindOr, true
	case flow.NodeSum:
		return expr.KindSum, true
	case flow.NodeSub:
		return expr.KindSub, true
	case flow.NodeMul:
		return expr.KindMul, true
	case flow.NodeDiv:
		return expr.KindDiv, true
	default:
		return 0, false
	}
}

func literalValue(l flow.Literal) value.Value {
	if l.IsBool {
		return value.NewBool(l.Bool)
	}
	return value.NewNumber(l.Num)
}

func asCompilationError(err error) error {
	if mg, ok := err.(*flow.MalformedGraphError); ok {
		return &herrors.CompilationError{
			Stage:   herrors.StageFrontend,
			Code:    herrors.CodeHandleTypeMismatch,
			Message: mg.Reason,
		}
	}
	return err
}

// SortedByPriority returns a copy of qs ordered ascending by
// Quality.Priority, breaking ties by original (first-occurrence) index —
// spec §3: "only the first triggered by priority wins ties".
func SortedByPriority(qs []QualityExpr) []QualityExpr {
	out := make([]QualityExpr, len(qs))
	copy(out, qs)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Quality.Priority < out[j].Quality.Priority
	})
	return out
}
