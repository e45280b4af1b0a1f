// Package jsonflow is the default JSON converter of spec §6: it turns the
// UI-exported recipe, qualities, and sample-data JSON documents into a
// flow.FlowDefinition and the static/dynamic data maps the evaluator
// consumes. This is explicitly an out-of-scope external collaborator per
// spec §1/§6, so it is built on encoding/json alone rather than any of the
// core compiler's dependencies.
package jsonflow

import (
	"encoding/json"
	"fmt"

	"hantei/internal/flow"
	"hantei/internal/herrors"
	"hantei/internal/value"
)

// RecipeNode is one node of the UI-exported recipe JSON.
type RecipeNode struct {
	ID   string `json:"id"`
	Data struct {
		NodeData struct {
			RealNodeType  string             `json:"realNodeType"`
			Values        map[string]float64 `json:"values"`
			BoolValues    map[string]bool    `json:"boolValues"`
			RealInputType *string            `json:"realInputType"`
			Name          string             `json:"name"`
		} `json:"nodeData"`
	} `json:"data"`
}

// RecipeEdge is one edge of the recipe JSON.
type RecipeEdge struct {
	Source       string `json:"source"`
	Target       string `json:"target"`
	SourceHandle string `json:"sourceHandle"`
	TargetHandle string `json:"targetHandle"`
}

// Recipe is the top-level recipe JSON document.
type Recipe struct {
	Nodes []RecipeNode `json:"nodes"`
	Edges []RecipeEdge `json:"edges"`
}

// QualityEntry is one entry of the qualities JSON array.
type QualityEntry struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Priority int    `json:"priority"`
	Negated  bool   `json:"negated"`
	Root     string `json:"root"`
	// RootHandle optionally names a specific output handle of Root; empty
	// means the node's sole output.
	RootHandle string `json:"rootHandle"`
}

// SampleData is the sample/runtime data JSON document.
type SampleData struct {
	StaticData  map[string]float64            `json:"static_data"`
	DynamicData map[string][]map[string]float64 `json:"dynamic_data"`
}

var nodeKindByType = map[string]flow.NodeKind{
	"gtNode":     flow.NodeGt,
	"stNode":     flow.NodeLt,
	"gteqNode":   flow.NodeGte,
	"steqNode":   flow.NodeLte,
	"eqNode":     flow.NodeEq,
	"andNode":    flow.NodeAnd,
	"orNode":     flow.NodeOr,
	"notNode":    flow.NodeNot,
	"sumNode":    flow.NodeSum,
	"subNode":    flow.NodeSub,
	"multNode":   flow.NodeMul,
	"divideNode": flow.NodeDiv,
	"dynamicNode": flow.NodeDynamic,
}

// handlesFor returns the ordered handle names a node kind's constructor
// recognizes for edges and literal slots, matching flow.InputHandles.
func handlesFor(k flow.NodeKind) []flow.HandleID {
	return flow.InputHandles(k)
}

// ConvertRecipe builds a flow.FlowDefinition from a parsed Recipe and
// quality list, per spec §6's default-converter contract. A conversion
// failure is returned as a *herrors.CompilationError with StageConversion.
func ConvertRecipe(r Recipe, qualities []QualityEntry) (*flow.FlowDefinition, error) {
	f := &flow.FlowDefinition{
		Nodes: make(map[flow.NodeID]*flow.Node, len(r.Nodes)),
	}

	for _, n := range r.Nodes {
		kind, ok := nodeKindByType[n.Data.NodeData.RealNodeType]
		if !ok {
			return nil, &herrors.CompilationError{
				Stage:   herrors.StageConversion,
				Code:    herrors.CodeUnrecognizedNode,
				Message: fmt.Sprintf("unrecognized node type %q", n.Data.NodeData.RealNodeType),
				NodeIDs: []string{n.ID},
			}
		}

		node := &flow.Node{ID: flow.NodeID(n.ID), Kind: kind}

		switch kind {
		case flow.NodeDynamic:
			if n.Data.NodeData.RealInputType == nil {
				node.Source = flow.InputSource{IsStatic: true, Name: n.Data.NodeData.Name}
			} else {
				node.Source = flow.InputSource{
					IsStatic:  false,
					EventType: *n.Data.NodeData.RealInputType,
					CaseName:  n.Data.NodeData.Name,
				}
			}
		default:
			node.LiteralSlots = literalSlots(n, handlesFor(kind))
		}

		f.Nodes[node.ID] = node
	}

	for _, e := range r.Edges {
		f.Edges = append(f.Edges, flow.Edge{
			Source:       flow.NodeID(e.Source),
			SourceHandle: flow.HandleID(e.SourceHandle),
			Target:       flow.NodeID(e.Target),
			TargetHandle: flow.HandleID(e.TargetHandle),
		})
	}

	for _, q := range qualities {
		f.Qualities = append(f.Qualities, flow.Quality{
			Name:       q.Name,
			Priority:   q.Priority,
			Root:       flow.NodeID(q.Root),
			RootHandle: flow.HandleID(q.RootHandle),
			Negated:    q.Negated,
		})
	}

	return f, nil
}

func literalSlots(n RecipeNode, handles []flow.HandleID) map[flow.HandleID]flow.Literal {
	slots := map[flow.HandleID]flow.Literal{}
	for _, h := range handles {
		name := string(h)
		if b, ok := n.Data.NodeData.BoolValues[name]; ok {
			slots[h] = flow.Literal{IsBool: true, Bool: b}
			continue
		}
		if v, ok := n.Data.NodeData.Values[name]; ok {
			slots[h] = flow.Literal{Num: v}
		}
	}
	return slots
}

// ConvertSampleData splits a SampleData document into the static input
// value map and the per-event-type arrays of case-value maps the evaluator
// consumes.
func ConvertSampleData(d SampleData) (map[string]value.Value, map[string][]map[string]value.Value) {
	statics := make(map[string]value.Value, len(d.StaticData))
	for name, n := range d.StaticData {
		statics[name] = value.NewNumber(n)
	}

	dynamic := make(map[string][]map[string]value.Value, len(d.DynamicData))
	for eventType, instances := range d.DynamicData {
		converted := make([]map[string]value.Value, len(instances))
		for i, inst := range instances {
			m := make(map[string]value.Value, len(inst))
			for k, v := range inst {
				m[k] = value.NewNumber(v)
			}
			converted[i] = m
		}
		dynamic[eventType] = converted
	}
	return statics, dynamic
}

// ParseRecipe unmarshals the recipe JSON document.
func ParseRecipe(data []byte) (Recipe, error) {
	var r Recipe
	if err := json.Unmarshal(data, &r); err != nil {
		return Recipe{}, &herrors.CompilationError{
			Stage:   herrors.StageConversion,
			Code:    herrors.CodeMalformedRecipe,
			Message: err.Error(),
		}
	}
	return r, nil
}

// ParseQualities unmarshals the qualities JSON array.
func ParseQualities(data []byte) ([]QualityEntry, error) {
	var qs []QualityEntry
	if err := json.Unmarshal(data, &qs); err != nil {
		return nil, &herrors.CompilationError{
			Stage:   herrors.StageConversion,
			Code:    herrors.CodeMalformedRecipe,
			Message: err.Error(),
		}
	}
	return qs, nil
}

// ParseSampleData unmarshals the sample-data JSON document.
func ParseSampleData(data []byte) (SampleData, error) {
	var d SampleData
	if err := json.Unmarshal(data, &d); err != nil {
		return SampleData{}, err
	}
	return d, nil
}
