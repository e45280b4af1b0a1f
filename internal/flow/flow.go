// Package flow implements the canonical, parser-agnostic FlowDefinition: a
// graph of typed nodes and directed edges that the frontend walks backwards
// from each quality's root handle. This is the boundary the default JSON
// converter (internal/jsonflow) and any other converter populate.
package flow

import "fmt"

// HandleType is the static type carried by a node handle.
type HandleType int

const (
	TypeNumber HandleType = iota
	TypeBool
)

func (t HandleType) String() string {
	if t == TypeBool {
		return "bool"
	}
	return "number"
}

// NodeKind names the operation a Node performs, mirroring the default JSON
// converter's node-type strings (spec §6) without committing the core to
// that wire format.
type NodeKind string

const (
	NodeGt       NodeKind = "gt"
	NodeLt       NodeKind = "lt"
	NodeGte      NodeKind = "gte"
	NodeLte      NodeKind = "lte"
	NodeEq       NodeKind = "eq"
	NodeAnd      NodeKind = "and"
	NodeOr       NodeKind = "or"
	NodeNot      NodeKind = "not"
	NodeSum      NodeKind = "sum"
	NodeSub      NodeKind = "sub"
	NodeMul      NodeKind = "mul"
	NodeDiv      NodeKind = "div"
	NodeDynamic  NodeKind = "dynamic" // static or dynamic input source
	NodeLiteral  NodeKind = "literal" // bare literal-producing node (no inputs)
)

// HandleID names one of a node's input slots ("left"/"right" for binary
// kinds, "arg" for Not, empty for source/literal nodes).
type HandleID string

const (
	HandleLeft  HandleID = "left"
	HandleRight HandleID = "right"
	HandleArg   HandleID = "arg"
)

// binaryHandleOrder fixes the declared left-to-right emission order spec
// §4.2 requires ("left, right") for every two-input node kind.
var binaryHandleOrder = []HandleID{HandleLeft, HandleRight}

// InputHandles returns the handle IDs a node of kind k expects, in the
// declared emission order.
func InputHandles(k NodeKind) []HandleID {
	switch k {
	case NodeGt, NodeLt, NodeGte, NodeLte, NodeEq, NodeAnd, NodeOr,
		NodeSum, NodeSub, NodeMul, NodeDiv:
		return binaryHandleOrder
	case NodeNot:
		return []HandleID{HandleArg}
	default:
		return nil
	}
}

// HandleKindType reports the static type expected/produced at handle h of a
// node of kind k. ok is false for an unknown (kind, handle) pair.
func HandleKindType(k NodeKind, h HandleID) (HandleType, bool) {
	switch k {
	case NodeSum, NodeSub, NodeMul, NodeDiv:
		return TypeNumber, true
	case NodeGt, NodeLt, NodeGte, NodeLte:
		return TypeNumber, true
	case NodeEq:
		// Eq handles are typed Number here, so ValidateEdgeTypes rejects a
		// Bool-producing edge into an Eq node. A Bool literal slot on an Eq
		// handle is not checked at this level.
		return TypeNumber, true
	case NodeAnd, NodeOr, NodeNot:
		return TypeBool, true
	default:
		return 0, false
	}
}

// OutputType reports the static type a node of kind k produces.
func OutputType(k NodeKind) HandleType {
	switch k {
	case NodeGt, NodeLt, NodeGte, NodeLte, NodeEq, NodeAnd, NodeOr, NodeNot:
		return TypeBool
	default:
		return TypeNumber
	}
}

// NodeID identifies a node within a FlowDefinition.
type NodeID string

// InputSource describes where a dynamic-source node reads its value from,
// mirroring spec §4.2's Static(name) / Dynamic(event_type, case_name) split.
type InputSource struct {
	IsStatic  bool
	Name      string // used when IsStatic
	EventType string // used when !IsStatic
	CaseName  string // used when !IsStatic
}

// Literal is a compile-time constant a handle falls back to when no edge
// feeds it.
type Literal struct {
	IsBool bool
	Num    float64
	Bool   bool
}

// Node is one vertex of the flow graph.
type Node struct {
	ID   NodeID
	Kind NodeKind

	// Source is populated only for NodeDynamic nodes.
	Source InputSource

	// Literal is populated only for NodeLiteral nodes.
	Literal Literal

	// LiteralSlots supplies a fallback value per handle when that handle has
	// no inbound edge (spec §3: "the node's corresponding literal slot
	// supplies the value").
	LiteralSlots map[HandleID]Literal
}

// Edge is a directed connection from one node's output handle to another
// node's input handle.
type Edge struct {
	Source       NodeID
	SourceHandle HandleID // empty: the node's sole output
	Target       NodeID
	TargetHandle HandleID
}

// Quality is the triple spec §3 defines: a named, priority-ordered outcome
// rooted at one handle of the flow graph.
type Quality struct {
	Name     string
	Priority int
	Root     NodeID
	// RootHandle names which output handle of Root to read, for multi-output
	// nodes; empty means the node's sole output.
	RootHandle HandleID
	// Negated is preserved verbatim (spec Open Question #1) and never
	// consulted by internal/evaluator.
	Negated bool
}

// FlowDefinition is the full parser-agnostic graph: nodes, edges, and the
// qualities rooted in it.
type FlowDefinition struct {
	Nodes     map[NodeID]*Node
	Edges     []Edge
	Qualities []Quality

	// inbound indexes edges by (target, targetHandle) for O(1) lookup during
	// the frontend's reverse traversal; built lazily by Index.
	inbound map[inboundKey]*Edge
}

type inboundKey struct {
	node   NodeID
	handle HandleID
}

// Index builds (or rebuilds) the inbound-edge lookup table. It also
// validates the "at most one inbound edge per target handle" invariant from
// spec §3, returning a *MalformedGraphError on violation.
func (f *FlowDefinition) Index() error {
	f.inbound = make(map[inboundKey]*Edge, len(f.Edges))
	for i := range f.Edges {
		e := &f.Edges[i]
		key := inboundKey{node: e.Target, handle: e.TargetHandle}
		if _, dup := f.inbound[key]; dup {
			return &MalformedGraphError{
				Reason: fmt.Sprintf("target handle %s:%s has more than one inbound edge", e.Target, e.TargetHandle),
			}
		}
		f.inbound[key] = e
	}
	return nil
}

// InboundEdge returns the edge feeding (node, handle), if any.
func (f *FlowDefinition) InboundEdge(node NodeID, handle HandleID) (*Edge, bool) {
	if f.inbound == nil {
		_ = f.Index()
	}
	e, ok := f.inbound[inboundKey{node: node, handle: handle}]
	return e, ok
}

// MalformedGraphError reports a flow graph that violates a structural
// invariant (fan-in, handle-type mismatch at edge validation time, etc.).
type MalformedGraphError struct{ Reason string }

func (e *MalformedGraphError) Error() string { return "malformed flow graph: " + e.Reason }

// ValidateEdgeTypes checks that every edge connects handles of the same
// HandleType (spec §3: "An edge is valid only when source-handle type
// equals target-handle type").
func (f *FlowDefinition) ValidateEdgeTypes() error {
	for _, e := range f.Edges {
		srcNode, ok := f.Nodes[e.Source]
		if !ok {
			return &MalformedGraphError{Reason: fmt.Sprintf("edge references missing source node %s", e.Source)}
		}
		tgtNode, ok := f.Nodes[e.Target]
		if !ok {
			return &MalformedGraphError{Reason: fmt.Sprintf("edge references missing target node %s", e.Target)}
		}
		srcType := OutputType(srcNode.Kind)
		tgtType, known := HandleKindType(tgtNode.Kind, e.TargetHandle)
		if !known {
			return &MalformedGraphError{Reason: fmt.Sprintf("unknown target handle %s on node %s", e.TargetHandle, e.Target)}
		}
		if srcType != tgtType {
			return &MalformedGraphError{
				Reason: fmt.Sprintf("handle type mismatch on edge %s->%s: %s vs %s", e.Source, e.Target, srcType, tgtType),
			}
		}
	}
	return nil
}
