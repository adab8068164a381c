// Package convert translates between the live editable graph and its
// persisted and runtime forms.
//
// ToPersisted drops view-only state and edges whose handles no longer
// exist; ToEditable rehydrates stored nodes from the node-template catalog;
// ToRuntime builds the view the dispatch service executes.
package convert

import (
	"github.com/dshills/flowstudio-go/graph"
)

// StoreNode is a node as written to version storage. View-only state
// (selection, debug results) is not persisted; fold state is.
type StoreNode struct {
	NodeID       string             `json:"nodeId" yaml:"nodeId"`
	ParentNodeID string             `json:"parentNodeId,omitempty" yaml:"parentNodeId,omitempty"`
	FlowNodeType graph.NodeType     `json:"flowNodeType" yaml:"flowNodeType"`
	Name         string             `json:"name" yaml:"name"`
	Intro        string             `json:"intro,omitempty" yaml:"intro,omitempty"`
	Avatar       string             `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	PluginID     string             `json:"pluginId,omitempty" yaml:"pluginId,omitempty"`
	Version      string             `json:"version,omitempty" yaml:"version,omitempty"`
	Position     graph.Position     `json:"position" yaml:"position"`
	IsFolded     bool               `json:"isFolded,omitempty" yaml:"isFolded,omitempty"`
	Inputs       []graph.InputItem  `json:"inputs" yaml:"inputs"`
	Outputs      []graph.OutputItem `json:"outputs" yaml:"outputs"`
}

// StoreEdge is an edge as written to version storage.
type StoreEdge struct {
	Source       string `json:"source" yaml:"source"`
	SourceHandle string `json:"sourceHandle" yaml:"sourceHandle"`
	Target       string `json:"target" yaml:"target"`
	TargetHandle string `json:"targetHandle" yaml:"targetHandle"`
}

// PersistedGraph is the stored form of a workflow.
type PersistedGraph struct {
	Nodes      []StoreNode    `json:"nodes" yaml:"nodes"`
	Edges      []StoreEdge    `json:"edges" yaml:"edges"`
	ChatConfig map[string]any `json:"chatConfig,omitempty" yaml:"chatConfig,omitempty"`
}

// ToPersisted converts the live graph to its stored form. Output order
// follows input order, so equal graphs produce identical documents.
//
// An edge is kept when its source node is folded (folded nodes hide their
// handles but keep their connections), when both of its handles are
// exposed by some visible node, or when an endpoint sits inside a folded
// container and both handles exist on the unfolded nodes.
func ToPersisted(nodes []graph.Node, edges []graph.Edge) PersistedGraph {
	pg := PersistedGraph{
		Nodes: make([]StoreNode, 0, len(nodes)),
		Edges: make([]StoreEdge, 0, len(edges)),
	}
	for _, n := range nodes {
		pg.Nodes = append(pg.Nodes, storeNode(n))
	}

	keep := edgeFilter(nodes)
	for _, e := range edges {
		if keep(e) {
			pg.Edges = append(pg.Edges, StoreEdge{
				Source:       e.Source,
				SourceHandle: e.SourceHandle,
				Target:       e.Target,
				TargetHandle: e.TargetHandle,
			})
		}
	}
	return pg
}

// DroppedEdges returns the edges ToPersisted would discard.
func DroppedEdges(nodes []graph.Node, edges []graph.Edge) []graph.Edge {
	keep := edgeFilter(nodes)
	var dropped []graph.Edge
	for _, e := range edges {
		if !keep(e) {
			dropped = append(dropped, e)
		}
	}
	return dropped
}

func edgeFilter(nodes []graph.Node) func(graph.Edge) bool {
	exposed := graph.ExposedHandles(nodes)
	var declared graph.HandleSet
	folded := make(map[string]bool)
	hidden := make(map[string]bool)
	for _, n := range nodes {
		if n.Folded {
			folded[n.ID] = true
		}
		if graph.IsHidden(nodes, n) {
			hidden[n.ID] = true
		}
	}
	if len(hidden) > 0 {
		declared = graph.DeclaredHandles(nodes)
	}
	return func(e graph.Edge) bool {
		if folded[e.Source] {
			return true
		}
		if hidden[e.Source] || hidden[e.Target] {
			return declared.Has(e.SourceHandle) && declared.Has(e.TargetHandle)
		}
		return exposed.Has(e.SourceHandle) && exposed.Has(e.TargetHandle)
	}
}

func storeNode(n graph.Node) StoreNode {
	return StoreNode{
		NodeID:       n.ID,
		ParentNodeID: n.ParentID,
		FlowNodeType: n.Type,
		Name:         n.Name,
		Intro:        n.Intro,
		Avatar:       n.Avatar,
		PluginID:     n.PluginID,
		Version:      n.Version,
		Position:     n.Position,
		IsFolded:     n.Folded,
		Inputs:       n.Inputs,
		Outputs:      n.Outputs,
	}
}

// ToRuntime builds the runtime view of pg for the dispatch service. Nodes
// listed in entryNodeIDs are flagged as entries; every edge starts waiting.
func ToRuntime(pg PersistedGraph, entryNodeIDs []string) ([]graph.RuntimeNode, []graph.RuntimeEdge) {
	entry := make(map[string]bool, len(entryNodeIDs))
	for _, id := range entryNodeIDs {
		entry[id] = true
	}

	nodes := make([]graph.RuntimeNode, 0, len(pg.Nodes))
	for _, n := range pg.Nodes {
		nodes = append(nodes, graph.RuntimeNode{
			NodeID:       n.NodeID,
			Name:         n.Name,
			Avatar:       n.Avatar,
			Intro:        n.Intro,
			FlowNodeType: n.FlowNodeType,
			ParentNodeID: n.ParentNodeID,
			PluginID:     n.PluginID,
			Version:      n.Version,
			IsEntry:      entry[n.NodeID],
			Inputs:       n.Inputs,
			Outputs:      n.Outputs,
		})
	}

	edges := make([]graph.RuntimeEdge, 0, len(pg.Edges))
	for _, e := range pg.Edges {
		edges = append(edges, graph.RuntimeEdge{
			Source:       e.Source,
			SourceHandle: e.SourceHandle,
			Target:       e.Target,
			TargetHandle: e.TargetHandle,
			Status:       graph.EdgeWaiting,
		})
	}
	return nodes, edges
}
