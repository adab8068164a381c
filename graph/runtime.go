package graph

// RuntimeNode is the execution-side view of a node sent to the dispatch
// service. It carries only what execution needs.
type RuntimeNode struct {
	NodeID       string       `json:"nodeId"`
	Name         string       `json:"name"`
	Avatar       string       `json:"avatar,omitempty"`
	Intro        string       `json:"intro,omitempty"`
	FlowNodeType NodeType     `json:"flowNodeType"`
	ParentNodeID string       `json:"parentNodeId,omitempty"`
	PluginID     string       `json:"pluginId,omitempty"`
	Version      string       `json:"version,omitempty"`
	IsEntry      bool         `json:"isEntry"`
	Inputs       []InputItem  `json:"inputs"`
	Outputs      []OutputItem `json:"outputs"`
}

// RuntimeEdge is an edge with its execution status.
type RuntimeEdge struct {
	Source       string     `json:"source"`
	SourceHandle string     `json:"sourceHandle"`
	Target       string     `json:"target"`
	TargetHandle string     `json:"targetHandle"`
	Status       EdgeStatus `json:"status"`
}

// Edge returns the editable edge e describes.
func (e RuntimeEdge) Edge() Edge {
	return Edge(e)
}
