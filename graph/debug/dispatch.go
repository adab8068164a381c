package debug

import (
	"context"

	"github.com/dshills/flowstudio-go/graph"
)

// Request is the body sent to the dispatch service for one step.
type Request struct {
	Nodes         []graph.RuntimeNode `json:"nodes"`
	Edges         []graph.RuntimeEdge `json:"edges"`
	SkipNodeQueue []SkipEntry         `json:"skipNodeQueue,omitempty"`
	Variables     map[string]any      `json:"variables"`
	Query         []UserContent       `json:"query,omitempty"`
	History       []ChatItem          `json:"history,omitempty"`
	AppID         string              `json:"appId"`
	ChatConfig    map[string]any      `json:"chatConfig,omitempty"`
	UsageID       string              `json:"usageId,omitempty"`
}

// NodeResponseType tells whether a node ran or was skipped.
type NodeResponseType string

const (
	NodeRun  NodeResponseType = "run"
	NodeSkip NodeResponseType = "skip"
)

// NodeResponse is the dispatch service's report for one node.
type NodeResponse struct {
	Type        NodeResponseType    `json:"type"`
	Response    map[string]any      `json:"response,omitempty"`
	Error       string              `json:"error,omitempty"`
	Interactive *InteractiveRequest `json:"interactiveResponse,omitempty"`
}

// Response is the dispatch service's answer to one step.
type Response struct {
	MemoryNodes   []graph.RuntimeNode     `json:"memoryNodes"`
	MemoryEdges   []graph.RuntimeEdge     `json:"memoryEdges"`
	EntryNodeIDs  []string                `json:"entryNodeIds"`
	SkipNodeQueue []SkipEntry             `json:"skipNodeQueue,omitempty"`
	NodeResponses map[string]NodeResponse `json:"nodeResponses"`
	NewVariables  map[string]any          `json:"newVariables,omitempty"`
	UsageID       string                  `json:"usageId,omitempty"`
}

// Dispatcher executes one step of a runtime graph.
//
// Implementations must respect context cancellation. The engine tolerates
// arbitrary latency and failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request) (Response, error)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, req Request) (Response, error)

// Dispatch calls f(ctx, req).
func (f DispatcherFunc) Dispatch(ctx context.Context, req Request) (Response, error) {
	return f(ctx, req)
}
