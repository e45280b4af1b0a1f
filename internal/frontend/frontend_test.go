package frontend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hantei/internal/expr"
	"hantei/internal/flow"
	"hantei/internal/herrors"
)

func TestBuildLowersBinaryNodeWithTwoInboundEdges(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes: map[flow.NodeID]*flow.Node{
			"depth":   {ID: "depth", Kind: flow.NodeDynamic, Source: flow.InputSource{EventType: "hole", CaseName: "depth"}},
			"ten":     {ID: "ten", Kind: flow.NodeLiteral, Literal: flow.Literal{Num: 10}},
			"gt":      {ID: "gt", Kind: flow.NodeGt},
		},
		Edges: []flow.Edge{
			{Source: "depth", Target: "gt", TargetHandle: flow.HandleLeft},
			{Source: "ten", Target: "gt", TargetHandle: flow.HandleRight},
		},
		Qualities: []flow.Quality{{Name: "TooDeep", Priority: 1, Root: "gt"}},
	}

	out, err := Build(f)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "TooDeep", out[0].Quality.Name)
	assert.Equal(t, expr.KindGt, out[0].Expr.Kind())
	children := out[0].Expr.Children()
	require.Len(t, children, 2)
	assert.Equal(t, expr.KindInput, children[0].Kind())
	assert.Equal(t, expr.KindLiteral, children[1].Kind())
}

func TestBuildFallsBackToLiteralSlotWhenNoInboundEdge(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes: map[flow.NodeID]*flow.Node{
			"depth": {ID: "depth", Kind: flow.NodeDynamic, Source: flow.InputSource{EventType: "hole", CaseName: "depth"}},
			"gt":    {ID: "gt", Kind: flow.NodeGt, LiteralSlots: map[flow.HandleID]flow.Literal{flow.HandleRight: {Num: 5}}},
		},
		Edges: []flow.Edge{
			{Source: "depth", Target: "gt", TargetHandle: flow.HandleLeft},
		},
		Qualities: []flow.Quality{{Name: "TooDeep", Priority: 1, Root: "gt"}},
	}

	out, err := Build(f)
	require.NoError(t, err)
	right := out[0].Expr.Children()[1].(*expr.Literal)
	n, _ := right.Value.Number()
	assert.Equal(t, 5.0, n)
}

func TestBuildDetectsCycle(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes: map[flow.NodeID]*flow.Node{
			"a": {ID: "a", Kind: flow.NodeNot},
			"b": {ID: "b", Kind: flow.NodeNot},
		},
		Edges: []flow.Edge{
			{Source: "b", Target: "a", TargetHandle: flow.HandleArg},
			{Source: "a", Target: "b", TargetHandle: flow.HandleArg},
		},
		Qualities: []flow.Quality{{Name: "Cyclic", Priority: 1, Root: "a"}},
	}

	_, err := Build(f)
	require.Error(t, err)
	ce, ok := err.(*herrors.CompilationError)
	require.True(t, ok)
	assert.Equal(t, herrors.CodeCycle, ce.Code)
}

func TestBuildReportsUnknownQualityRoot(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes:     map[flow.NodeID]*flow.Node{},
		Qualities: []flow.Quality{{Name: "Ghost", Priority: 1, Root: "missing"}},
	}

	_, err := Build(f)
	require.Error(t, err)
	ce, ok := err.(*herrors.CompilationError)
	require.True(t, ok)
	assert.Equal(t, herrors.CodeUnknownQualityRoot, ce.Code)
}

func TestBuildReportsDanglingEdge(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes: map[flow.NodeID]*flow.Node{
			"gt": {ID: "gt", Kind: flow.NodeGt, LiteralSlots: map[flow.HandleID]flow.Literal{flow.HandleRight: {Num: 5}}},
		},
		Edges: []flow.Edge{
			{Source: "ghost", Target: "gt", TargetHandle: flow.HandleLeft},
		},
		Qualities: []flow.Quality{{Name: "Dangling", Priority: 1, Root: "gt"}},
	}

	_, err := Build(f)
	require.Error(t, err)
	ce, ok := err.(*herrors.CompilationError)
	require.True(t, ok)
	assert.Equal(t, herrors.CodeDanglingEdge, ce.Code)
}

func TestBuildReportsUnrecognizedNode(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes: map[flow.NodeID]*flow.Node{
			"odd": {ID: "odd", Kind: flow.NodeKind("xor")},
		},
		Qualities: []flow.Quality{{Name: "Odd", Priority: 1, Root: "odd"}},
	}

	_, err := Build(f)
	require.Error(t, err)
	ce, ok := err.(*herrors.CompilationError)
	require.True(t, ok)
	assert.Equal(t, herrors.CodeUnrecognizedNode, ce.Code)
}

func TestBuildReportsMissingLiteralAndNoEdge(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes: map[flow.NodeID]*flow.Node{
			"gt": {ID: "gt", Kind: flow.NodeGt},
		},
		Qualities: []flow.Quality{{Name: "Bare", Priority: 1, Root: "gt"}},
	}

	_, err := Build(f)
	require.Error(t, err)
	ce, ok := err.(*herrors.CompilationError)
	require.True(t, ok)
	assert.Equal(t, herrors.CodeMissingLiteral, ce.Code)
}

func TestBuildPreservesDeclarationOrderNotPriorityOrder(t *testing.T) {
	f := &flow.FlowDefinition{
		Nodes: map[flow.NodeID]*flow.Node{
			"lit": {ID: "lit", Kind: flow.NodeLiteral, Literal: flow.Literal{IsBool: true, Bool: true}},
		},
		Qualities: []flow.Quality{
			{Name: "Low", Priority: 5, Root: "lit"},
			{Name: "High", Priority: 1, Root: "lit"},
		},
	}

	out, err := Build(f)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "Low", out[0].Quality.Name)
	assert.Equal(t, "High", out[1].Quality.Name)
}

func TestSortedByPriorityOrdersAscendingWithStableTies(t *testing.T) {
	qs := []QualityExpr{
		{Quality: flow.Quality{Name: "B", Priority: 2}},
		{Quality: flow.Quality{Name: "A", Priority: 1}},
		{Quality: flow.Quality{Name: "C", Priority: 1}},
	}
	sorted := SortedByPriority(qs)
	assert.Equal(t, []string{"A", "C", "B"}, []string{sorted[0].Quality.Name, sorted[1].Quality.Name, sorted[2].Quality.Name})
}
