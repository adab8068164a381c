package graph

import (
	"fmt"
	"sync"

	"github.com/dshills/flowstudio-go/graph/emit"
)

// Change reasons delivered to subscribers.
const (
	ReasonMutation = "mutation"
	ReasonEdges    = "edges"
	ReasonNodes    = "nodes"
	ReasonReset    = "reset"
	ReasonDebug    = "debug"
)

// Change describes the graph state after a write.
type Change struct {
	Nodes  []Node
	Edges  []Edge
	Reason string
}

// Graph is the live editable graph of one editing session.
//
// Stored slices are never modified in place: every write builds new slices
// and shares untouched nodes and edges with the previous state.
//
// Subscribers are notified after the write lock is released, in subscription
// order, so a listener may read from the graph.
type Graph struct {
	mu    sync.RWMutex
	nodes []Node
	edges []Edge

	listenersMu sync.Mutex
	listeners   []listener
	nextID      int

	emitter   emit.Emitter
	metrics   *Metrics
	sessionID string
}

type listener struct {
	id int
	fn func(Change)
}

// NewGraph creates a graph holding nodes and edges after validating that
// node ids and per-node item keys are unique.
func NewGraph(nodes []Node, edges []Edge, opts ...Option) (*Graph, error) {
	cfg := &graphConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("graph option: %w", err)
		}
	}
	if err := Validate(nodes); err != nil {
		return nil, err
	}

	return &Graph{
		nodes:     cloneSlice(nodes),
		edges:     cloneSlice(edges),
		emitter:   cfg.emitter,
		metrics:   cfg.metrics,
		sessionID: cfg.sessionID,
	}, nil
}

// Validate checks node id uniqueness and input/output key uniqueness.
func Validate(nodes []Node) error {
	ids := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if ids[n.ID] {
			return fmt.Errorf("node %q: %w", n.ID, ErrDuplicateNodeID)
		}
		ids[n.ID] = true

		inputs := make(map[string]bool, len(n.Inputs))
		for _, in := range n.Inputs {
			if inputs[in.Key] {
				return fmt.Errorf("node %q input %q: %w", n.ID, in.Key, ErrDuplicateKey)
			}
			inputs[in.Key] = true
		}
		outputs := make(map[string]bool, len(n.Outputs))
		for _, out := range n.Outputs {
			if outputs[out.Key] {
				return fmt.Errorf("node %q output %q: %w", n.ID, out.Key, ErrDuplicateKey)
			}
			outputs[out.Key] = true
		}
	}
	return nil
}

// Nodes returns the current node list.
func (g *Graph) Nodes() []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneSlice(g.nodes)
}

// Edges returns the current edge list.
func (g *Graph) Edges() []Edge {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneSlice(g.edges)
}

// State returns nodes and edges read under one lock.
func (g *Graph) State() ([]Node, []Edge) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return cloneSlice(g.nodes), cloneSlice(g.edges)
}

// Node returns the node with id.
func (g *Graph) Node(id string) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, n := range g.nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// NodesByID returns the nodes with the given ids in request order. Unknown
// ids are skipped.
func (g *Graph) NodesByID(ids ...string) []Node {
	g.mu.RLock()
	defer g.mu.RUnlock()

	byID := make(map[string]int, len(g.nodes))
	for i, n := range g.nodes {
		byID[n.ID] = i
	}
	out := make([]Node, 0, len(ids))
	for _, id := range ids {
		if i, ok := byID[id]; ok {
			out = append(out, g.nodes[i])
		}
	}
	return out
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.nodes)
}

// Subscribe registers fn to be called after every write. The returned
// function removes the subscription.
func (g *Graph) Subscribe(fn func(Change)) (unsubscribe func()) {
	g.listenersMu.Lock()
	defer g.listenersMu.Unlock()

	g.nextID++
	id := g.nextID
	g.listeners = append(g.listeners, listener{id: id, fn: fn})

	return func() {
		g.listenersMu.Lock()
		defer g.listenersMu.Unlock()
		for i, l := range g.listeners {
			if l.id == id {
				g.listeners = append(g.listeners[:i:i], g.listeners[i+1:]...)
				return
			}
		}
	}
}

func (g *Graph) notify(c Change) {
	g.listenersMu.Lock()
	ls := append([]listener(nil), g.listeners...)
	g.listenersMu.Unlock()

	for _, l := range ls {
		l.fn(c)
	}
}

// commit swaps in new state and returns the change to publish. Callers hold g.mu.
func (g *Graph) commit(nodes []Node, edges []Edge, reason string) Change {
	g.nodes, g.edges = nodes, edges
	return Change{Nodes: cloneSlice(nodes), Edges: cloneSlice(edges), Reason: reason}
}

// Apply reduces m against the current nodes, removes the edges the mutation
// invalidates and notifies subscribers once. Rejected mutations change
// nothing and notify nobody; no-ops notify nobody either.
func (g *Graph) Apply(m Mutation) error {
	g.mu.Lock()
	res, err := Reduce(g.nodes, m)
	if err != nil {
		g.mu.Unlock()
		g.metrics.RecordMutation(m.Kind(), "rejected")
		g.emit(m.Target(), "mutation_rejected", map[string]interface{}{
			"kind":  string(m.Kind()),
			"error": err.Error(),
		})
		return err
	}

	edges := g.edges
	for _, c := range res.Cleanups {
		edges = RemoveEdgesFor(edges, c.NodeID, c.SourceHandle, c.TargetHandle)
	}
	removed := len(g.edges) - len(edges)
	if !res.Changed && removed == 0 {
		g.mu.Unlock()
		g.metrics.RecordMutation(m.Kind(), "noop")
		return nil
	}

	change := g.commit(res.Nodes, edges, ReasonMutation)
	g.mu.Unlock()

	g.metrics.RecordMutation(m.Kind(), "applied")
	g.emit(m.Target(), "mutation_applied", map[string]interface{}{"kind": string(m.Kind())})
	if removed > 0 {
		g.emit(m.Target(), "edges_removed", map[string]interface{}{"count": removed})
	}
	g.notify(change)
	return nil
}

// AddNode appends n. It fails when the id is taken or n repeats an item key.
func (g *Graph) AddNode(n Node) error {
	g.mu.Lock()
	next := append(cloneSlice(g.nodes), n)
	if err := Validate(next); err != nil {
		g.mu.Unlock()
		return err
	}
	change := g.commit(next, g.edges, ReasonNodes)
	g.mu.Unlock()

	g.notify(change)
	return nil
}

// RemoveNode deletes the node with id, every node nested under it and every
// edge touching any of them. It reports whether anything was removed.
func (g *Graph) RemoveNode(id string) bool {
	g.mu.Lock()
	doomed := map[string]bool{id: true}
	for grew := true; grew; {
		grew = false
		for _, n := range g.nodes {
			if n.ParentID != "" && doomed[n.ParentID] && !doomed[n.ID] {
				doomed[n.ID] = true
				grew = true
			}
		}
	}

	kept := make([]Node, 0, len(g.nodes))
	for _, n := range g.nodes {
		if !doomed[n.ID] {
			kept = append(kept, n)
		}
	}
	if len(kept) == len(g.nodes) {
		g.mu.Unlock()
		return false
	}
	change := g.commit(kept, removeEdgesTouching(g.edges, doomed), ReasonNodes)
	g.mu.Unlock()

	g.emit(id, "edges_removed", map[string]interface{}{"cascade": len(doomed)})
	g.notify(change)
	return true
}

// RemoveEdgesFor removes edges leaving (nodeID, sourceHandle) or entering
// (nodeID, targetHandle) and returns how many went away.
func (g *Graph) RemoveEdgesFor(nodeID, sourceHandle, targetHandle string) int {
	g.mu.Lock()
	edges := RemoveEdgesFor(g.edges, nodeID, sourceHandle, targetHandle)
	removed := len(g.edges) - len(edges)
	if removed == 0 {
		g.mu.Unlock()
		return 0
	}
	change := g.commit(g.nodes, edges, ReasonEdges)
	g.mu.Unlock()

	g.emit(nodeID, "edges_removed", map[string]interface{}{"count": removed})
	g.notify(change)
	return removed
}

// SetEdges replaces the whole edge list.
func (g *Graph) SetEdges(edges []Edge) {
	g.mu.Lock()
	change := g.commit(g.nodes, cloneSlice(edges), ReasonEdges)
	g.mu.Unlock()
	g.notify(change)
}

// AddEdge appends e unless an edge with the same endpoints exists.
func (g *Graph) AddEdge(e Edge) bool {
	g.mu.Lock()
	for _, existing := range g.edges {
		if existing.SameEndpoints(e) {
			g.mu.Unlock()
			return false
		}
	}
	change := g.commit(g.nodes, append(cloneSlice(g.edges), e), ReasonEdges)
	g.mu.Unlock()
	g.notify(change)
	return true
}

// Reset replaces the whole graph state, e.g. from an undo or a loaded version.
func (g *Graph) Reset(nodes []Node, edges []Edge) error {
	if err := Validate(nodes); err != nil {
		return err
	}
	g.mu.Lock()
	change := g.commit(cloneSlice(nodes), cloneSlice(edges), ReasonReset)
	g.mu.Unlock()
	g.notify(change)
	return nil
}

// SetDebugResult records r on the node with id. Unknown nodes are ignored so
// late results for deleted nodes are harmless. When selected is true the
// node is also marked selected.
func (g *Graph) SetDebugResult(id string, r *DebugResult, selected bool) bool {
	g.mu.Lock()
	idx := -1
	for i := range g.nodes {
		if g.nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		g.mu.Unlock()
		return false
	}

	nodes := cloneSlice(g.nodes)
	n := nodes[idx]
	n.DebugResult = r
	if selected {
		n.Selected = true
	}
	nodes[idx] = n
	change := g.commit(nodes, g.edges, ReasonDebug)
	g.mu.Unlock()

	g.notify(change)
	return true
}

// SetEdgeStatus sets the status of every edge whose endpoints match one of
// updates. Updates naming no existing edge are ignored.
func (g *Graph) SetEdgeStatus(updates []Edge) {
	if len(updates) == 0 {
		return
	}
	g.mu.Lock()
	edges := cloneSlice(g.edges)
	changed := false
	for i := range edges {
		for _, u := range updates {
			if edges[i].SameEndpoints(u) && edges[i].Status != u.Status {
				edges[i].Status = u.Status
				changed = true
			}
		}
	}
	if !changed {
		g.mu.Unlock()
		return
	}
	change := g.commit(g.nodes, edges, ReasonDebug)
	g.mu.Unlock()
	g.notify(change)
}

// ClearDebug removes every node's debug result and selection and every edge
// status.
func (g *Graph) ClearDebug() {
	g.mu.Lock()
	nodes := cloneSlice(g.nodes)
	for i := range nodes {
		nodes[i].DebugResult = nil
		nodes[i].Selected = false
	}
	edges := cloneSlice(g.edges)
	for i := range edges {
		edges[i].Status = ""
	}
	change := g.commit(nodes, edges, ReasonDebug)
	g.mu.Unlock()
	g.notify(change)
}

func (g *Graph) emit(nodeID, msg string, meta map[string]interface{}) {
	emit.Emit(g.emitter, emit.Event{
		SessionID: g.sessionID,
		NodeID:    nodeID,
		Msg:       msg,
		Meta:      meta,
	})
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	out := make([]T, len(s))
	copy(out, s)
	return out
}
