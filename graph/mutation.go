package graph

import "fmt"

// MutationKind names a mutation variant. It labels events and metrics.
type MutationKind string

const (
	KindAttr          MutationKind = "attr"
	KindUpdateInput   MutationKind = "updateInput"
	KindReplaceInput  MutationKind = "replaceInput"
	KindAddInput      MutationKind = "addInput"
	KindDelInput      MutationKind = "delInput"
	KindUpdateOutput  MutationKind = "updateOutput"
	KindReplaceOutput MutationKind = "replaceOutput"
	KindAddOutput     MutationKind = "addOutput"
	KindDelOutput     MutationKind = "delOutput"
)

// Mutation is a single edit applied to one node. The set of implementations
// is closed; Reduce handles each of them.
type Mutation interface {
	Kind() MutationKind
	Target() string
	mutation()
}

// SetAttr replaces one top-level node field. Attr is one of name, intro,
// avatar, folded, selected, position, parentId, version or pluginId.
type SetAttr struct {
	NodeID string
	Attr   string
	Value  any
}

// UpdateInput replaces the input whose key equals Input.Key.
type UpdateInput struct {
	NodeID string
	Input  InputItem
}

// ReplaceInput replaces the input stored under Key with Input, renaming it
// when the keys differ. Input is appended when Key is absent.
type ReplaceInput struct {
	NodeID string
	Key    string
	Input  InputItem
}

// AddInput inserts Input at Index, or appends it when Index is nil.
type AddInput struct {
	NodeID string
	Input  InputItem
	Index  *int
}

// DelInput removes the input with Key.
type DelInput struct {
	NodeID string
	Key    string
}

// UpdateOutput replaces the output whose key equals Output.Key.
type UpdateOutput struct {
	NodeID string
	Output OutputItem
}

// ReplaceOutput is ReplaceInput for outputs. Edges leaving the old key's
// source handle are removed when the key changes.
type ReplaceOutput struct {
	NodeID string
	Key    string
	Output OutputItem
}

// AddOutput inserts Output at Index, or appends it when Index is nil.
type AddOutput struct {
	NodeID string
	Output OutputItem
	Index  *int
}

// DelOutput removes the output with Key and every edge leaving its handle.
type DelOutput struct {
	NodeID string
	Key    string
}

func (SetAttr) Kind() MutationKind       { return KindAttr }
func (UpdateInput) Kind() MutationKind   { return KindUpdateInput }
func (ReplaceInput) Kind() MutationKind  { return KindReplaceInput }
func (AddInput) Kind() MutationKind      { return KindAddInput }
func (DelInput) Kind() MutationKind      { return KindDelInput }
func (UpdateOutput) Kind() MutationKind  { return KindUpdateOutput }
func (ReplaceOutput) Kind() MutationKind { return KindReplaceOutput }
func (AddOutput) Kind() MutationKind     { return KindAddOutput }
func (DelOutput) Kind() MutationKind     { return KindDelOutput }

func (m SetAttr) Target() string       { return m.NodeID }
func (m UpdateInput) Target() string   { return m.NodeID }
func (m ReplaceInput) Target() string  { return m.NodeID }
func (m AddInput) Target() string      { return m.NodeID }
func (m DelInput) Target() string      { return m.NodeID }
func (m UpdateOutput) Target() string  { return m.NodeID }
func (m ReplaceOutput) Target() string { return m.NodeID }
func (m AddOutput) Target() string     { return m.NodeID }
func (m DelOutput) Target() string     { return m.NodeID }

func (SetAttr) mutation()       {}
func (UpdateInput) mutation()   {}
func (ReplaceInput) mutation()  {}
func (AddInput) mutation()      {}
func (DelInput) mutation()      {}
func (UpdateOutput) mutation()  {}
func (ReplaceOutput) mutation() {}
func (AddOutput) mutation()     {}
func (DelOutput) mutation()     {}

// EdgeCleanup names the handles whose edges must go after a mutation.
type EdgeCleanup struct {
	NodeID       string
	SourceHandle string
	TargetHandle string
}

// ReduceResult is the outcome of Reduce.
type ReduceResult struct {
	// Nodes is the new node list. It is the input slice itself when nothing changed.
	Nodes []Node
	// Changed is false for no-ops (unknown node, absent key).
	Changed bool
	// Cleanups lists edge removals the caller must apply.
	Cleanups []EdgeCleanup
}

// Reduce applies m to nodes and returns the result. nodes is never modified:
// only the targeted node is replaced in a fresh slice, every other node and
// every untouched field of the target are shared with the input.
//
// A mutation targeting an unknown node is a silent no-op. Validation failures
// return a *MutationError and leave nodes untouched.
func Reduce(nodes []Node, m Mutation) (ReduceResult, error) {
	unchanged := ReduceResult{Nodes: nodes}

	idx := -1
	for i := range nodes {
		if nodes[i].ID == m.Target() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return unchanged, nil
	}

	node := nodes[idx]
	var (
		changed  bool
		cleanups []EdgeCleanup
	)

	switch m := m.(type) {
	case SetAttr:
		updated, err := setAttr(node, m.Attr, m.Value)
		if err != nil {
			return unchanged, &MutationError{Kind: m.Kind(), NodeID: node.ID, Message: err.Error(), Code: "INVALID_ATTR", Cause: ErrInvalidAttr}
		}
		node, changed = updated, true

	case UpdateInput:
		node.Inputs, changed = updateItem(node.Inputs, m.Input.Key, m.Input, inputKey)

	case ReplaceInput:
		if m.Key != m.Input.Key && indexByKey(node.Inputs, m.Input.Key, inputKey) >= 0 {
			return unchanged, duplicateKey(m, node.ID, m.Input.Key)
		}
		node.Inputs, changed = replaceItem(node.Inputs, m.Key, m.Input, inputKey), true

	case AddInput:
		if indexByKey(node.Inputs, m.Input.Key, inputKey) >= 0 {
			return unchanged, duplicateKey(m, node.ID, m.Input.Key)
		}
		node.Inputs, changed = insertAt(node.Inputs, m.Index, m.Input), true

	case DelInput:
		node.Inputs, changed = deleteItem(node.Inputs, m.Key, inputKey)

	case UpdateOutput:
		node.Outputs, changed = updateItem(node.Outputs, m.Output.Key, m.Output, outputKey)

	case ReplaceOutput:
		if m.Key != m.Output.Key {
			if indexByKey(node.Outputs, m.Output.Key, outputKey) >= 0 {
				return unchanged, duplicateKey(m, node.ID, m.Output.Key)
			}
			cleanups = append(cleanups, EdgeCleanup{NodeID: node.ID, SourceHandle: SourceHandle(node.ID, m.Key)})
		}
		node.Outputs, changed = replaceItem(node.Outputs, m.Key, m.Output, outputKey), true

	case AddOutput:
		if indexByKey(node.Outputs, m.Output.Key, outputKey) >= 0 {
			return unchanged, duplicateKey(m, node.ID, m.Output.Key)
		}
		node.Outputs, changed = insertAt(node.Outputs, m.Index, m.Output), true

	case DelOutput:
		node.Outputs, changed = deleteItem(node.Outputs, m.Key, outputKey)
		// Edges may outlive their output (e.g. after a load); heal them either way.
		cleanups = append(cleanups, EdgeCleanup{NodeID: node.ID, SourceHandle: SourceHandle(node.ID, m.Key)})

	default:
		return unchanged, fmt.Errorf("graph: unsupported mutation %T", m)
	}

	if !changed {
		unchanged.Cleanups = cleanups
		return unchanged, nil
	}

	if _, ok := m.(SetAttr); !ok && node.DebugResult != nil {
		expired := *node.DebugResult
		expired.IsExpired = true
		node.DebugResult = &expired
	}

	out := make([]Node, len(nodes))
	copy(out, nodes)
	out[idx] = node
	return ReduceResult{Nodes: out, Changed: true, Cleanups: cleanups}, nil
}

func duplicateKey(m Mutation, nodeID, key string) *MutationError {
	return &MutationError{
		Kind:    m.Kind(),
		NodeID:  nodeID,
		Message: fmt.Sprintf("key %q already exists", key),
		Code:    "DUPLICATE_KEY",
		Cause:   ErrDuplicateKey,
	}
}

func setAttr(n Node, attr string, value any) (Node, error) {
	str := func() (string, error) {
		if value == nil {
			return "", nil
		}
		s, ok := value.(string)
		if !ok {
			return "", fmt.Errorf("attr %s wants string, got %T", attr, value)
		}
		return s, nil
	}
	boolean := func() (bool, error) {
		b, ok := value.(bool)
		if !ok {
			return false, fmt.Errorf("attr %s wants bool, got %T", attr, value)
		}
		return b, nil
	}

	var err error
	switch attr {
	case "name":
		n.Name, err = str()
	case "intro":
		n.Intro, err = str()
	case "avatar":
		n.Avatar, err = str()
	case "parentId":
		n.ParentID, err = str()
	case "version":
		n.Version, err = str()
	case "pluginId":
		n.PluginID, err = str()
	case "folded":
		n.Folded, err = boolean()
	case "selected":
		n.Selected, err = boolean()
	case "position":
		switch p := value.(type) {
		case Position:
			n.Position = p
		case *Position:
			if p == nil {
				return n, fmt.Errorf("attr position is nil")
			}
			n.Position = *p
		default:
			err = fmt.Errorf("attr position wants Position, got %T", value)
		}
	default:
		err = fmt.Errorf("unknown attr %q", attr)
	}
	return n, err
}

func updateItem[T any](items []T, key string, item T, keyOf func(T) string) ([]T, bool) {
	i := indexByKey(items, key, keyOf)
	if i < 0 {
		return items, false
	}
	out := make([]T, len(items))
	copy(out, items)
	out[i] = item
	return out, true
}

func replaceItem[T any](items []T, key string, item T, keyOf func(T) string) []T {
	i := indexByKey(items, key, keyOf)
	if i < 0 {
		return insertAt(items, nil, item)
	}
	out := make([]T, len(items))
	copy(out, items)
	out[i] = item
	return out
}

func insertAt[T any](items []T, index *int, item T) []T {
	pos := len(items)
	if index != nil {
		pos = min(max(*index, 0), len(items))
	}
	out := make([]T, 0, len(items)+1)
	out = append(out, items[:pos]...)
	out = append(out, item)
	return append(out, items[pos:]...)
}

func deleteItem[T any](items []T, key string, keyOf func(T) string) ([]T, bool) {
	i := indexByKey(items, key, keyOf)
	if i < 0 {
		return items, false
	}
	out := make([]T, 0, len(items)-1)
	out = append(out, items[:i]...)
	return append(out, items[i+1:]...), true
}
