package graph

// HandleSet is a set of handle ids.
type HandleSet map[string]struct{}

// Has reports whether id is in the set.
func (s HandleSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s HandleSet) add(id string) {
	s[id] = struct{}{}
}

// IsEntryType reports whether nodes of type t have no incoming handle.
func IsEntryType(t NodeType) bool {
	switch t {
	case TypeWorkflowStart, TypePluginInput, TypeLoopStart:
		return true
	}
	return false
}

// IsTerminalType reports whether nodes of type t have no default outgoing handle.
func IsTerminalType(t NodeType) bool {
	switch t {
	case TypePluginOutput, TypeLoopEnd:
		return true
	}
	return false
}

// ExposedHandles computes every handle the given nodes expose. It derives
// handle validity from the node model alone, so the result is the same with
// or without a rendering layer attached.
//
// Rules:
//   - nodes hidden by a folded ancestor expose nothing
//   - non-entry nodes expose their "left" target handle, folded or not
//   - unfolded nodes expose one source handle per source-kind output, or the
//     default "right" handle when they have none (terminal types excepted)
//   - unfolded nodes with an error-kind output also expose the "catch" handle
func ExposedHandles(nodes []Node) HandleSet {
	set := make(HandleSet)
	byID := indexNodes(nodes)

	for _, n := range nodes {
		if hidden(byID, n) {
			continue
		}
		for _, h := range nodeHandles(n) {
			set.add(h)
		}
	}
	return set
}

// DeclaredHandles computes every handle the nodes would expose if nothing
// were folded. Edges inside a folded container are checked against it, so
// folding never invalidates the wiring it hides.
func DeclaredHandles(nodes []Node) HandleSet {
	set := make(HandleSet)
	for _, n := range nodes {
		n.Folded = false
		for _, h := range nodeHandles(n) {
			set.add(h)
		}
	}
	return set
}

// IsHidden reports whether n sits inside a folded container anywhere up its
// ParentID chain.
func IsHidden(nodes []Node, n Node) bool {
	return hidden(indexNodes(nodes), n)
}

func nodeHandles(n Node) []string {
	var handles []string
	if !IsEntryType(n.Type) {
		handles = append(handles, TargetHandle(n.ID, HandleLeft))
	}
	if n.Folded {
		return handles
	}

	var sources, catches int
	for _, out := range n.Outputs {
		switch out.Kind {
		case OutputSource:
			handles = append(handles, SourceHandle(n.ID, out.Key))
			sources++
		case OutputError:
			catches++
		}
	}
	if sources == 0 && !IsTerminalType(n.Type) {
		handles = append(handles, SourceHandle(n.ID, HandleRight))
	}
	if catches > 0 {
		handles = append(handles, SourceHandle(n.ID, HandleCatch))
	}
	return handles
}

func indexNodes(nodes []Node) map[string]Node {
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	return byID
}

func hidden(byID map[string]Node, n Node) bool {
	seen := map[string]bool{n.ID: true}
	for parentID := n.ParentID; parentID != ""; {
		if seen[parentID] {
			// Parent cycle; treat as visible rather than loop forever.
			return false
		}
		seen[parentID] = true

		parent, ok := byID[parentID]
		if !ok {
			return false
		}
		if parent.Folded {
			return true
		}
		parentID = parent.ParentID
	}
	return false
}
