// Package graph holds the live, editable workflow graph: typed nodes, the
// edges between their handles, and the reducer that mutates them.
//
// A Graph is an explicit arena owned by a single editing session. Consumers
// (history, debugger, rendering layer) observe it through Subscribe instead
// of sharing ambient state.
package graph

// NodeType identifies what a node does. The core never interprets node
// semantics beyond handle layout; execution lives in the dispatch service.
type NodeType string

// Node types known to the handle registry and the builtin template catalog.
const (
	TypeWorkflowStart NodeType = "workflowStart"
	TypeChat          NodeType = "chatNode"
	TypeIfElse        NodeType = "ifElseNode"
	TypeUserSelect    NodeType = "userSelect"
	TypeFormInput     NodeType = "formInput"
	TypeLoop          NodeType = "loop"
	TypeLoopStart     NodeType = "loopStart"
	TypeLoopEnd       NodeType = "loopEnd"
	TypeDatasetSearch NodeType = "datasetSearchNode"
	TypeTools         NodeType = "tools"
	TypeAnswer        NodeType = "answerNode"
	TypePluginInput   NodeType = "pluginInput"
	TypePluginOutput  NodeType = "pluginOutput"
	TypeHTTPRequest   NodeType = "httpRequest"
)

// ValueType describes the data carried by an input or output.
type ValueType string

const (
	ValueString      ValueType = "string"
	ValueNumber      ValueType = "number"
	ValueBoolean     ValueType = "boolean"
	ValueObject      ValueType = "object"
	ValueArrayString ValueType = "arrayString"
	ValueChatHistory ValueType = "chatHistory"
	ValueAny         ValueType = "any"
)

// OutputKind separates normal data outputs from the error channel, from
// user-addable dynamic outputs and from branch handles.
type OutputKind string

const (
	OutputStatic  OutputKind = "static"
	OutputDynamic OutputKind = "dynamic"
	OutputHidden  OutputKind = "hidden"
	OutputError   OutputKind = "error"
	OutputSource  OutputKind = "source"
)

// RunStatus is the debug status rendered on a node.
type RunStatus string

const (
	StatusRunning RunStatus = "running"
	StatusSuccess RunStatus = "success"
	StatusSkipped RunStatus = "skipped"
	StatusFailed  RunStatus = "failed"
)

// Position is a node's canvas coordinate.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// InputItem is one configurable input of a node.
type InputItem struct {
	Key         string    `json:"key" yaml:"key"`
	Label       string    `json:"label,omitempty" yaml:"label,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Value       any       `json:"value,omitempty" yaml:"value,omitempty"`
	ValueType   ValueType `json:"valueType,omitempty" yaml:"valueType,omitempty"`
	RenderType  string    `json:"renderType,omitempty" yaml:"renderType,omitempty"`
	Required    bool      `json:"required,omitempty" yaml:"required,omitempty"`
	// CanEdit marks a dynamic input the user may rename or delete.
	CanEdit bool `json:"canEdit,omitempty" yaml:"canEdit,omitempty"`
	// List holds the branch options of selection inputs (userSelect, ifElse).
	List []BranchOption `json:"list,omitempty" yaml:"list,omitempty"`
}

// BranchOption is one selectable branch. Key doubles as the key of the
// source-kind output that carries the branch edge.
type BranchOption struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// OutputItem is one output of a node.
type OutputItem struct {
	ID          string     `json:"id,omitempty" yaml:"id,omitempty"`
	Key         string     `json:"key" yaml:"key"`
	Label       string     `json:"label,omitempty" yaml:"label,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	Value       any        `json:"value,omitempty" yaml:"value,omitempty"`
	ValueType   ValueType  `json:"valueType,omitempty" yaml:"valueType,omitempty"`
	Kind        OutputKind `json:"type,omitempty" yaml:"type,omitempty"`
	Required    bool       `json:"required,omitempty" yaml:"required,omitempty"`
	CanEdit     bool       `json:"canEdit,omitempty" yaml:"canEdit,omitempty"`
}

// DebugResult is the outcome of the most recent debug step that touched a node.
type DebugResult struct {
	Status     RunStatus      `json:"status"`
	Message    string         `json:"message,omitempty"`
	Response   map[string]any `json:"response,omitempty"`
	ShowResult bool           `json:"showResult,omitempty"`
	// IsExpired is set once the node's inputs or outputs change after the
	// result was produced.
	IsExpired bool `json:"isExpired,omitempty"`
}

// Node is a typed unit of work in the editable graph.
//
// Invariants: ID is unique within a graph; input keys are unique within
// Inputs and output keys are unique within Outputs. A node with ParentID set
// is nested in a container node and hidden while that container is folded.
type Node struct {
	ID          string       `json:"id"`
	Type        NodeType     `json:"type"`
	ParentID    string       `json:"parentId,omitempty"`
	Name        string       `json:"name"`
	Intro       string       `json:"intro,omitempty"`
	Avatar      string       `json:"avatar,omitempty"`
	PluginID    string       `json:"pluginId,omitempty"`
	Position    Position     `json:"position"`
	Inputs      []InputItem  `json:"inputs"`
	Outputs     []OutputItem `json:"outputs"`
	Folded      bool         `json:"folded,omitempty"`
	Selected    bool         `json:"selected,omitempty"`
	DebugResult *DebugResult `json:"debugResult,omitempty"`
	Version     string       `json:"version,omitempty"`
}

// Input returns the input with key.
func (n Node) Input(key string) (InputItem, bool) {
	if i := indexByKey(n.Inputs, key, inputKey); i >= 0 {
		return n.Inputs[i], true
	}
	return InputItem{}, false
}

// Output returns the output with key.
func (n Node) Output(key string) (OutputItem, bool) {
	if i := indexByKey(n.Outputs, key, outputKey); i >= 0 {
		return n.Outputs[i], true
	}
	return OutputItem{}, false
}

func inputKey(in InputItem) string    { return in.Key }
func outputKey(out OutputItem) string { return out.Key }

func indexByKey[T any](items []T, key string, keyOf func(T) string) int {
	for i, item := range items {
		if keyOf(item) == key {
			return i
		}
	}
	return -1
}
