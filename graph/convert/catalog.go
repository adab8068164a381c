package convert

import (
	"context"
	"errors"
	"sync"

	"github.com/dshills/flowstudio-go/graph"
)

// ErrTemplateNotFound is returned by a Catalog that has no template for a node.
var ErrTemplateNotFound = errors.New("node template not found")

// Template is the canonical definition of a node type (or of one plugin).
type Template struct {
	Type     graph.NodeType     `json:"flowNodeType" yaml:"flowNodeType"`
	PluginID string             `json:"pluginId,omitempty" yaml:"pluginId,omitempty"`
	Name     string             `json:"name" yaml:"name"`
	Intro    string             `json:"intro,omitempty" yaml:"intro,omitempty"`
	Avatar   string             `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Version  string             `json:"version,omitempty" yaml:"version,omitempty"`
	Inputs   []graph.InputItem  `json:"inputs" yaml:"inputs"`
	Outputs  []graph.OutputItem `json:"outputs" yaml:"outputs"`
}

// Catalog resolves node templates. Lookups may block (remote plugin
// registries), hence the context.
type Catalog interface {
	Template(ctx context.Context, nodeType graph.NodeType, pluginID string) (Template, error)
}

// MemoryCatalog is an in-memory Catalog keyed by plugin id, falling back to
// node type.
type MemoryCatalog struct {
	mu       sync.RWMutex
	byType   map[graph.NodeType]Template
	byPlugin map[string]Template
}

// NewMemoryCatalog creates a catalog holding templates.
func NewMemoryCatalog(templates ...Template) *MemoryCatalog {
	c := &MemoryCatalog{
		byType:   make(map[graph.NodeType]Template),
		byPlugin: make(map[string]Template),
	}
	for _, t := range templates {
		c.Register(t)
	}
	return c
}

// Register adds or replaces t. Templates with a PluginID are only found by
// that plugin id.
func (c *MemoryCatalog) Register(t Template) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.PluginID != "" {
		c.byPlugin[t.PluginID] = t
		return
	}
	c.byType[t.Type] = t
}

// Template implements Catalog.
func (c *MemoryCatalog) Template(ctx context.Context, nodeType graph.NodeType, pluginID string) (Template, error) {
	if err := ctx.Err(); err != nil {
		return Template{}, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if pluginID != "" {
		if t, ok := c.byPlugin[pluginID]; ok {
			return t, nil
		}
	}
	if t, ok := c.byType[nodeType]; ok {
		return t, nil
	}
	return Template{}, ErrTemplateNotFound
}

// Builtin returns a catalog with templates for the common node types.
func Builtin() *MemoryCatalog {
	str := func(key, label string, required bool) graph.InputItem {
		return graph.InputItem{Key: key, Label: label, ValueType: graph.ValueString, RenderType: "input", Required: required}
	}
	ref := func(key, label string, vt graph.ValueType) graph.InputItem {
		return graph.InputItem{Key: key, Label: label, ValueType: vt, RenderType: "reference"}
	}
	out := func(key, label string, vt graph.ValueType) graph.OutputItem {
		return graph.OutputItem{ID: key, Key: key, Label: label, ValueType: vt, Kind: graph.OutputStatic}
	}
	errOut := graph.OutputItem{ID: "error", Key: "error", Label: "Error", ValueType: graph.ValueObject, Kind: graph.OutputError}

	return NewMemoryCatalog(
		Template{
			Type: graph.TypeWorkflowStart, Name: "Start", Avatar: "core/workflow/start", Version: "481",
			Outputs: []graph.OutputItem{out("userChatInput", "User question", graph.ValueString)},
		},
		Template{
			Type: graph.TypeChat, Name: "AI chat", Avatar: "core/workflow/chat", Version: "4813",
			Intro: "Chat with a language model",
			Inputs: []graph.InputItem{
				str("model", "AI model", true),
				{Key: "temperature", Label: "Temperature", ValueType: graph.ValueNumber, RenderType: "hidden", Value: 0},
				{Key: "systemPrompt", Label: "System prompt", ValueType: graph.ValueString, RenderType: "textarea"},
				ref("history", "Chat history", graph.ValueChatHistory),
				ref("userChatInput", "User question", graph.ValueString),
			},
			Outputs: []graph.OutputItem{
				out("history", "New context", graph.ValueChatHistory),
				out("answerText", "AI reply", graph.ValueString),
				errOut,
			},
		},
		Template{
			Type: graph.TypeIfElse, Name: "If / else", Avatar: "core/workflow/ifElse", Version: "481",
			Inputs: []graph.InputItem{{Key: "ifElseList", Label: "Conditions", ValueType: graph.ValueAny, RenderType: "hidden"}},
			Outputs: []graph.OutputItem{
				{ID: "ifElseResult", Key: "ifElseResult", Label: "Result", ValueType: graph.ValueString, Kind: graph.OutputStatic},
				{Key: "IF", Kind: graph.OutputSource},
				{Key: "ELSE", Kind: graph.OutputSource},
			},
		},
		Template{
			Type: graph.TypeUserSelect, Name: "User select", Avatar: "core/workflow/userSelect", Version: "489",
			Inputs: []graph.InputItem{
				{Key: "description", Label: "Description", ValueType: graph.ValueString, RenderType: "textarea"},
				{Key: "userSelectOptions", Label: "Options", ValueType: graph.ValueAny, RenderType: "custom"},
			},
			Outputs: []graph.OutputItem{out("selectResult", "Selected option", graph.ValueString)},
		},
		Template{
			Type: graph.TypeFormInput, Name: "Form input", Avatar: "core/workflow/formInput", Version: "4811",
			Inputs: []graph.InputItem{
				{Key: "description", Label: "Description", ValueType: graph.ValueString, RenderType: "textarea"},
				{Key: "userInputForms", Label: "Form fields", ValueType: graph.ValueAny, RenderType: "custom"},
			},
			Outputs: []graph.OutputItem{out("formInputResult", "Form result", graph.ValueObject)},
		},
		Template{
			Type: graph.TypeLoop, Name: "Loop", Avatar: "core/workflow/loop", Version: "4811",
			Inputs: []graph.InputItem{
				ref("loopInputArray", "Array", graph.ValueArrayString),
				{Key: "childrenNodeIdList", ValueType: graph.ValueArrayString, RenderType: "hidden"},
			},
			Outputs: []graph.OutputItem{out("loopArray", "Array result", graph.ValueArrayString)},
		},
		Template{
			Type: graph.TypeLoopStart, Name: "Loop start", Avatar: "core/workflow/loopStart", Version: "4811",
			Inputs:  []graph.InputItem{{Key: "loopStartInput", ValueType: graph.ValueAny, RenderType: "hidden"}},
			Outputs: []graph.OutputItem{out("loopStartInput", "Current item", graph.ValueAny), out("loopStartIndex", "Index", graph.ValueNumber)},
		},
		Template{
			Type: graph.TypeLoopEnd, Name: "Loop end", Avatar: "core/workflow/loopEnd", Version: "4811",
			Inputs: []graph.InputItem{ref("loopEndInput", "Item result", graph.ValueAny)},
		},
		Template{
			Type: graph.TypeDatasetSearch, Name: "Dataset search", Avatar: "core/workflow/dataset", Version: "481",
			Inputs: []graph.InputItem{
				{Key: "datasets", Label: "Datasets", ValueType: graph.ValueAny, RenderType: "selectDataset", Required: true},
				{Key: "similarity", Label: "Min similarity", ValueType: graph.ValueNumber, RenderType: "hidden", Value: 0.4},
				{Key: "limit", Label: "Token limit", ValueType: graph.ValueNumber, RenderType: "hidden", Value: 5000},
				ref("userChatInput", "User question", graph.ValueString),
			},
			Outputs: []graph.OutputItem{out("quoteQA", "Quotes", graph.ValueObject), errOut},
		},
		Template{
			Type: graph.TypeTools, Name: "Tool call", Avatar: "core/workflow/tools", Version: "4813",
			Inputs: []graph.InputItem{
				str("model", "AI model", true),
				{Key: "systemPrompt", Label: "System prompt", ValueType: graph.ValueString, RenderType: "textarea"},
				ref("userChatInput", "User question", graph.ValueString),
			},
			Outputs: []graph.OutputItem{
				out("answerText", "AI reply", graph.ValueString),
				{Key: "selectedTools", Kind: graph.OutputHidden, ValueType: graph.ValueAny},
			},
		},
		Template{
			Type: graph.TypeAnswer, Name: "Direct answer", Avatar: "core/workflow/reply", Version: "481",
			Inputs: []graph.InputItem{{Key: "text", Label: "Reply content", ValueType: graph.ValueAny, RenderType: "textarea"}},
		},
		Template{
			Type: graph.TypePluginInput, Name: "Plugin input", Avatar: "core/workflow/pluginInput", Version: "481",
		},
		Template{
			Type: graph.TypePluginOutput, Name: "Plugin output", Avatar: "core/workflow/pluginOutput", Version: "481",
		},
		Template{
			Type: graph.TypeHTTPRequest, Name: "HTTP request", Avatar: "core/workflow/http", Version: "481",
			Inputs: []graph.InputItem{
				{Key: "system_httpMethod", Label: "Method", ValueType: graph.ValueString, RenderType: "custom", Value: "POST", Required: true},
				str("system_httpReqUrl", "URL", true),
				{Key: "system_httpHeader", Label: "Headers", ValueType: graph.ValueAny, RenderType: "custom"},
				{Key: "system_httpJsonBody", Label: "Body", ValueType: graph.ValueAny, RenderType: "custom"},
			},
			Outputs: []graph.OutputItem{out("httpRawResponse", "Raw response", graph.ValueAny), errOut},
		},
	)
}
