package debug

import (
	"fmt"
	"sort"

	"github.com/bytedance/sonic"

	"github.com/dshills/flowstudio-go/graph"
)

// SelectedOptionKey is the input key under which a resumed select
// interaction records the chosen option on the paused node.
const SelectedOptionKey = "userSelectedOption"

// BeginStep moves s into Running and flags its entry nodes. It returns the
// ids of the nodes taking part in the step, which are shown as running until
// the step resolves.
func BeginStep(s Session) (Session, []string) {
	out := s.Clone()
	out.State = Running
	out.Step++
	out.Interactive = nil
	markEntries(out.RuntimeNodes, out.EntryNodeIDs)
	return out, append([]string(nil), out.EntryNodeIDs...)
}

// ApplyResponse folds a dispatch response into s.
//
// Only the nodes named in resp.EntryNodeIDs are entries for the next step,
// in the order the service returned them. Outcomes are reported for the
// step's entry nodes first, then for any other node the service reported on,
// by id. An entry node the service did not report on is marked skipped.
func ApplyResponse(s Session, resp Response) (Session, []NodeOutcome) {
	out := s.Clone()
	stepEntries := s.EntryNodeIDs

	if resp.MemoryNodes != nil {
		out.RuntimeNodes = append([]graph.RuntimeNode(nil), resp.MemoryNodes...)
	}
	if resp.MemoryEdges != nil {
		out.RuntimeEdges = append([]graph.RuntimeEdge(nil), resp.MemoryEdges...)
	}
	out.EntryNodeIDs = append([]string(nil), resp.EntryNodeIDs...)
	markEntries(out.RuntimeNodes, out.EntryNodeIDs)
	out.SkipNodeQueue = append([]SkipEntry(nil), resp.SkipNodeQueue...)
	if resp.NewVariables != nil {
		out.Variables = graph.CloneMap(resp.NewVariables)
	}
	if resp.UsageID != "" {
		out.UsageID = resp.UsageID
	}
	out.LastError = ""
	out.Interactive = nil

	order := make([]string, 0, len(stepEntries)+len(resp.NodeResponses))
	seen := make(map[string]bool, cap(order))
	for _, id := range stepEntries {
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	var rest []string
	for id := range resp.NodeResponses {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	outcomes := make([]NodeOutcome, 0, len(order))
	for _, id := range order {
		nr, ok := resp.NodeResponses[id]
		o := NodeOutcome{NodeID: id, Status: graph.StatusSkipped}
		if ok {
			o.Response = graph.CloneMap(nr.Response)
			switch {
			case nr.Type == NodeSkip:
				o.Status = graph.StatusSkipped
			case nr.Error != "":
				o.Status = graph.StatusFailed
				o.Message = nr.Error
			default:
				o.Status = graph.StatusSuccess
			}
			if nr.Interactive != nil && out.Interactive == nil {
				ir := *nr.Interactive
				if ir.NodeID == "" {
					ir.NodeID = id
				}
				out.Interactive = &ir
				o.Interactive = true
			}
		}
		outcomes = append(outcomes, o)
	}

	out.State = StepComplete
	if out.Interactive != nil {
		out.State = AwaitingInteraction
	}
	return out, outcomes
}

// FailStep records a failed dispatch. Every entry node of the step is
// reported failed with the error text; the entries stay armed so an explicit
// Next re-issues the same step.
func FailStep(s Session, err error) (Session, []NodeOutcome) {
	out := s.Clone()
	out.State = StepComplete
	out.LastError = err.Error()

	outcomes := make([]NodeOutcome, 0, len(s.EntryNodeIDs))
	for _, id := range s.EntryNodeIDs {
		outcomes = append(outcomes, NodeOutcome{NodeID: id, Status: graph.StatusFailed, Message: out.LastError})
	}
	return out, outcomes
}

// PrepareResume answers the pending interaction of s. The answer is merged
// into the paused node's inputs, the exchange is appended to the chat
// history as an AI request followed by the Human answer, and the paused node
// (or the request's own entry list) is re-armed as the next entry.
func PrepareResume(s Session, in InteractionInput) (Session, error) {
	if s.State != AwaitingInteraction || s.Interactive == nil {
		return s, ErrNotAwaiting
	}
	ir := *s.Interactive

	var (
		answer string
		merge  []graph.InputItem
	)
	switch ir.Type {
	case InteractionSelect:
		var chosen *graph.BranchOption
		for i := range ir.Options {
			if ir.Options[i].Key == in.SelectedKey {
				chosen = &ir.Options[i]
				break
			}
		}
		if chosen == nil {
			return s, fmt.Errorf("%w: unknown option %q", ErrInvalidInteraction, in.SelectedKey)
		}
		answer = chosen.Value
		merge = []graph.InputItem{{Key: SelectedOptionKey, Value: chosen.Key, ValueType: graph.ValueString}}

	case InteractionForm:
		values := make(map[string]any, len(ir.Fields))
		for _, f := range ir.Fields {
			v, ok := in.Values[f.Key]
			if !ok && f.DefaultValue != nil {
				v, ok = f.DefaultValue, true
			}
			if !ok {
				if f.Required {
					return s, fmt.Errorf("%w: missing required field %q", ErrInvalidInteraction, f.Key)
				}
				continue
			}
			values[f.Key] = v
			merge = append(merge, graph.InputItem{Key: f.Key, Label: f.Label, Value: v})
		}
		data, err := sonic.ConfigStd.Marshal(values)
		if err != nil {
			return s, fmt.Errorf("%w: %v", ErrInvalidInteraction, err)
		}
		answer = string(data)

	default:
		return s, fmt.Errorf("%w: unsupported interaction %q", ErrInvalidInteraction, ir.Type)
	}

	out := s.Clone()
	idx := -1
	for i := range out.RuntimeNodes {
		if out.RuntimeNodes[i].NodeID == ir.NodeID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return s, fmt.Errorf("%w: paused node %q not in runtime graph", ErrInvalidInteraction, ir.NodeID)
	}
	out.RuntimeNodes[idx].Inputs = mergeInputs(out.RuntimeNodes[idx].Inputs, merge)

	request := ir
	out.History = append(out.History,
		ChatItem{Role: RoleAI, Interactive: &request},
		ChatItem{Role: RoleHuman, Text: answer},
	)
	out.Query = []UserContent{{Type: "text", Text: answer}}

	out.EntryNodeIDs = append([]string(nil), ir.EntryNodeIDs...)
	if len(out.EntryNodeIDs) == 0 {
		out.EntryNodeIDs = []string{ir.NodeID}
	}
	markEntries(out.RuntimeNodes, out.EntryNodeIDs)
	out.Interactive = nil
	out.State = StepComplete
	return out, nil
}

func markEntries(nodes []graph.RuntimeNode, entries []string) {
	set := make(map[string]bool, len(entries))
	for _, id := range entries {
		set[id] = true
	}
	for i := range nodes {
		nodes[i].IsEntry = set[nodes[i].NodeID]
	}
}

func mergeInputs(inputs, merge []graph.InputItem) []graph.InputItem {
	out := append([]graph.InputItem(nil), inputs...)
	for _, m := range merge {
		replaced := false
		for i := range out {
			if out[i].Key == m.Key {
				out[i].Value = m.Value
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, m)
		}
	}
	return out
}
