package graph

import "strings"

// EdgeStatus is the runtime status of an edge during a debug run.
type EdgeStatus string

const (
	EdgeWaiting EdgeStatus = "waiting"
	EdgeActive  EdgeStatus = "active"
	EdgeSkipped EdgeStatus = "skipped"
)

// Handle keys shared by most node types.
const (
	HandleRight = "right"
	HandleLeft  = "left"
	HandleCatch = "catch"
)

// Edge connects a source handle of one node to a target handle of another.
type Edge struct {
	Source       string     `json:"source"`
	SourceHandle string     `json:"sourceHandle"`
	Target       string     `json:"target"`
	TargetHandle string     `json:"targetHandle"`
	Status       EdgeStatus `json:"status,omitempty"`
}

// SameEndpoints reports whether e and o connect the same pair of handles.
func (e Edge) SameEndpoints(o Edge) bool {
	return e.Source == o.Source &&
		e.SourceHandle == o.SourceHandle &&
		e.Target == o.Target &&
		e.TargetHandle == o.TargetHandle
}

// SourceHandle returns the id of nodeID's source handle for key.
func SourceHandle(nodeID, key string) string {
	return nodeID + "-source-" + key
}

// TargetHandle returns the id of nodeID's target handle for key.
func TargetHandle(nodeID, key string) string {
	return nodeID + "-target-" + key
}

// HandleKey extracts the key part of a handle id produced by SourceHandle or
// TargetHandle. ok is false when handle does not belong to nodeID.
func HandleKey(nodeID, handle string) (key string, ok bool) {
	for _, infix := range []string{"-source-", "-target-"} {
		if rest, found := strings.CutPrefix(handle, nodeID+infix); found {
			return rest, true
		}
	}
	return "", false
}

// RemoveEdgesFor returns edges without every edge whose (Source, SourceHandle)
// equals (nodeID, sourceHandle) or whose (Target, TargetHandle) equals
// (nodeID, targetHandle). An empty handle matches nothing, so a call with
// neither handle set returns edges unchanged.
//
// The input slice is never modified; when nothing matches it is returned as is.
func RemoveEdgesFor(edges []Edge, nodeID, sourceHandle, targetHandle string) []Edge {
	if sourceHandle == "" && targetHandle == "" {
		return edges
	}

	matches := func(e Edge) bool {
		if sourceHandle != "" && e.Source == nodeID && e.SourceHandle == sourceHandle {
			return true
		}
		return targetHandle != "" && e.Target == nodeID && e.TargetHandle == targetHandle
	}

	first := -1
	for i, e := range edges {
		if matches(e) {
			first = i
			break
		}
	}
	if first < 0 {
		return edges
	}

	kept := make([]Edge, first, len(edges)-1)
	copy(kept, edges[:first])
	for _, e := range edges[first+1:] {
		if !matches(e) {
			kept = append(kept, e)
		}
	}
	return kept
}

// removeEdgesTouching drops every edge whose source or target is in ids.
func removeEdgesTouching(edges []Edge, ids map[string]bool) []Edge {
	kept := make([]Edge, 0, len(edges))
	for _, e := range edges {
		if ids[e.Source] || ids[e.Target] {
			continue
		}
		kept = append(kept, e)
	}
	return kept
}
