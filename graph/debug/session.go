// Package debug steps a workflow graph through an external dispatch
// service one logical step at a time.
//
// The Engine owns at most one Session per graph. Each step sends the
// runtime graph to the dispatch service, records per-node results on the
// live graph, and either completes or pauses for user interaction. The state
// changes themselves are pure functions (BeginStep, ApplyResponse, FailStep,
// PrepareResume) so stepping can be tested without a service.
package debug

import (
	"fmt"

	"github.com/dshills/flowstudio-go/graph"
)

// State is the lifecycle state of a Session.
type State int

const (
	// Idle means the session exists but no step has run yet.
	Idle State = iota
	// Running means a step is waiting for the dispatch service.
	Running
	// StepComplete means the last step finished (or failed) and the next one
	// may be issued.
	StepComplete
	// AwaitingInteraction means a node asked for user input; only Resume
	// continues the session.
	AwaitingInteraction
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case StepComplete:
		return "step_complete"
	case AwaitingInteraction:
		return "awaiting_interaction"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ChatRole identifies the author of a chat history entry.
type ChatRole string

const (
	RoleHuman  ChatRole = "Human"
	RoleAI     ChatRole = "AI"
	RoleSystem ChatRole = "System"
)

// ChatItem is one chat history entry passed to the dispatch service.
type ChatItem struct {
	DataID      string              `json:"dataId,omitempty"`
	Role        ChatRole            `json:"obj"`
	Text        string              `json:"text,omitempty"`
	Interactive *InteractiveRequest `json:"interactive,omitempty"`
}

// UserContent is one piece of the user query.
type UserContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
	URL  string `json:"url,omitempty"`
	Name string `json:"name,omitempty"`
}

// InteractionKind distinguishes the pause requests a node can raise.
type InteractionKind string

const (
	InteractionSelect InteractionKind = "userSelect"
	InteractionForm   InteractionKind = "userInput"
)

// FormField is one field of a form interaction.
type FormField struct {
	Key          string `json:"key"`
	Label        string `json:"label,omitempty"`
	Type         string `json:"type,omitempty"`
	Required     bool   `json:"required,omitempty"`
	DefaultValue any    `json:"defaultValue,omitempty"`
}

// InteractiveRequest is a node's request to pause for user input.
type InteractiveRequest struct {
	Type        InteractionKind      `json:"type"`
	NodeID      string               `json:"nodeId,omitempty"`
	Description string               `json:"description,omitempty"`
	Options     []graph.BranchOption `json:"userSelectOptions,omitempty"`
	Fields      []FormField          `json:"inputForm,omitempty"`
	// EntryNodeIDs re-armed on resume. Defaults to NodeID.
	EntryNodeIDs []string `json:"entryNodeIds,omitempty"`
}

// SkipEntry is one element of the dispatch service's skip queue. The engine
// passes it back untouched.
type SkipEntry struct {
	NodeID         string   `json:"nodeId"`
	SkippedNodeIDs []string `json:"skippedNodeIdList,omitempty"`
}

// Session is the state of one debug run.
type Session struct {
	ID            string
	State         State
	AppID         string
	RuntimeNodes  []graph.RuntimeNode
	RuntimeEdges  []graph.RuntimeEdge
	EntryNodeIDs  []string
	SkipNodeQueue []SkipEntry
	Variables     map[string]any
	History       []ChatItem
	Query         []UserContent
	ChatConfig    map[string]any
	Interactive   *InteractiveRequest
	UsageID       string
	// LastError is the message of the most recent failed step.
	LastError string
	// Step counts issued steps, starting at 1.
	Step int
}

// Finished reports whether the run has nothing left to execute.
func (s Session) Finished() bool {
	return s.State != AwaitingInteraction && len(s.EntryNodeIDs) == 0
}

// Clone returns a copy of s sharing nothing mutable with it.
func (s Session) Clone() Session {
	out := s
	out.RuntimeNodes = append([]graph.RuntimeNode(nil), s.RuntimeNodes...)
	out.RuntimeEdges = append([]graph.RuntimeEdge(nil), s.RuntimeEdges...)
	out.EntryNodeIDs = append([]string(nil), s.EntryNodeIDs...)
	out.SkipNodeQueue = append([]SkipEntry(nil), s.SkipNodeQueue...)
	out.Variables = graph.CloneMap(s.Variables)
	out.History = append([]ChatItem(nil), s.History...)
	out.Query = append([]UserContent(nil), s.Query...)
	out.ChatConfig = graph.CloneMap(s.ChatConfig)
	if s.Interactive != nil {
		ir := *s.Interactive
		out.Interactive = &ir
	}
	return out
}

// InteractionInput is the user's answer to an InteractiveRequest.
type InteractionInput struct {
	// SelectedKey answers a select interaction.
	SelectedKey string
	// Values answers a form interaction, keyed by FormField.Key.
	Values map[string]any
}

// NodeOutcome is a per-node result produced by a step.
type NodeOutcome struct {
	NodeID      string
	Status      graph.RunStatus
	Message     string
	Response    map[string]any
	Interactive bool
}
