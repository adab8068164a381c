package debug

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/dshills/flowstudio-go/graph/emit"
)

// StartInput describes a new debug run.
type StartInput struct {
	// EntryNodeIDs are the nodes executed by the first step.
	EntryNodeIDs []string
	// RuntimeNodes and RuntimeEdges, when nil, are built from the live graph.
	RuntimeNodes []graph.RuntimeNode
	RuntimeEdges []graph.RuntimeEdge
	Variables    map[string]any
	History      []ChatItem
	Query        []UserContent
	ChatConfig   map[string]any
}

// Engine runs debug sessions for one graph.
//
// No lock is held while the dispatch service is called. A step whose
// session was stopped or replaced in the meantime is stale: its node results
// are still written to the graph (results for deleted nodes are dropped) but
// the live session is left alone.
type Engine struct {
	mu       sync.Mutex
	session  *Session
	gen      uint64
	inFlight bool

	graph      *graph.Graph
	dispatcher Dispatcher
	cfg        config

	listenersMu sync.Mutex
	listeners   []sessionListener
	nextID      int
}

type sessionListener struct {
	id int
	fn func(Session, bool)
}

// New creates an Engine writing results to g and executing steps through d.
func New(g *graph.Graph, d Dispatcher, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, errors.New("debug: graph is required")
	}
	if d == nil {
		return nil, errors.New("debug: dispatcher is required")
	}
	cfg := config{newID: uuid.NewString}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("debug option: %w", err)
		}
	}
	return &Engine{graph: g, dispatcher: d, cfg: cfg}, nil
}

// Start stops any running session, creates a new one from in and performs
// its first step.
func (e *Engine) Start(ctx context.Context, in StartInput) (Session, error) {
	if len(in.EntryNodeIDs) == 0 {
		return Session{}, ErrNoEntry
	}

	nodes, edges := in.RuntimeNodes, in.RuntimeEdges
	if nodes == nil {
		liveNodes, liveEdges := e.graph.State()
		nodes, edges = convert.ToRuntime(convert.ToPersisted(liveNodes, liveEdges), in.EntryNodeIDs)
	} else {
		nodes = append([]graph.RuntimeNode(nil), nodes...)
		edges = append([]graph.RuntimeEdge(nil), edges...)
	}

	known := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		known[n.NodeID] = true
	}
	for _, id := range in.EntryNodeIDs {
		if !known[id] {
			return Session{}, &EngineError{
				Message: fmt.Sprintf("entry node %q not in runtime graph", id),
				Code:    "ENTRY_NOT_FOUND",
				Cause:   ErrNoEntry,
			}
		}
	}

	e.Stop()

	s := Session{
		ID:           e.cfg.newID(),
		State:        Idle,
		AppID:        e.cfg.appID,
		RuntimeNodes: nodes,
		RuntimeEdges: edges,
		EntryNodeIDs: append([]string(nil), in.EntryNodeIDs...),
		Variables:    graph.CloneMap(in.Variables),
		History:      append([]ChatItem(nil), in.History...),
		Query:        append([]UserContent(nil), in.Query...),
		ChatConfig:   graph.CloneMap(in.ChatConfig),
	}
	if s.Variables == nil {
		s.Variables = map[string]any{}
	}
	markEntries(s.RuntimeNodes, s.EntryNodeIDs)

	e.mu.Lock()
	e.gen++
	e.session = &s
	e.mu.Unlock()

	e.emit(s, "", "debug_start", map[string]interface{}{"entries": s.EntryNodeIDs})
	e.notify(s.Clone(), true)
	return e.step(ctx)
}

// Next performs one step of the current session.
func (e *Engine) Next(ctx context.Context) (Session, error) {
	return e.step(ctx)
}

// Resume answers the pending interaction and performs the next step.
func (e *Engine) Resume(ctx context.Context, in InteractionInput) (Session, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return Session{}, ErrNoSession
	}
	if e.inFlight {
		e.mu.Unlock()
		return e.session.Clone(), ErrStepInFlight
	}
	next, err := PrepareResume(*e.session, in)
	if err != nil {
		cur := e.session.Clone()
		e.mu.Unlock()
		return cur, err
	}
	e.session = &next
	e.mu.Unlock()

	return e.step(ctx)
}

// Stop discards the session and clears debug results, selection and edge
// statuses from the graph. A step still in flight becomes stale.
func (e *Engine) Stop() {
	e.mu.Lock()
	had := e.session != nil
	var last Session
	if had {
		last = *e.session
	}
	e.session = nil
	e.inFlight = false
	e.gen++
	e.mu.Unlock()

	if !had {
		return
	}
	e.graph.ClearDebug()
	e.emit(last, "", "debug_stop", nil)
	e.notify(Session{}, false)
}

// Session returns a copy of the current session.
func (e *Engine) Session() (Session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil {
		return Session{}, false
	}
	return e.session.Clone(), true
}

// Subscribe registers fn for session changes; ok is false once the session
// is gone. The returned function removes the subscription.
func (e *Engine) Subscribe(fn func(s Session, ok bool)) (unsubscribe func()) {
	e.listenersMu.Lock()
	defer e.listenersMu.Unlock()
	e.nextID++
	id := e.nextID
	e.listeners = append(e.listeners, sessionListener{id: id, fn: fn})
	return func() {
		e.listenersMu.Lock()
		defer e.listenersMu.Unlock()
		for i, l := range e.listeners {
			if l.id == id {
				e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
				return
			}
		}
	}
}

func (e *Engine) step(ctx context.Context) (Session, error) {
	e.mu.Lock()
	if e.session == nil {
		e.mu.Unlock()
		return Session{}, ErrNoSession
	}
	cur := *e.session
	switch {
	case e.inFlight:
		e.mu.Unlock()
		return cur.Clone(), ErrStepInFlight
	case cur.State == AwaitingInteraction:
		e.mu.Unlock()
		return cur.Clone(), ErrAwaitingInteraction
	case cur.Finished():
		e.mu.Unlock()
		return cur.Clone(), ErrFinished
	}

	running, participants := BeginStep(cur)
	e.session = &running
	e.inFlight = true
	gen := e.gen
	req := Request{
		Nodes:         running.RuntimeNodes,
		Edges:         running.RuntimeEdges,
		SkipNodeQueue: running.SkipNodeQueue,
		Variables:     running.Variables,
		Query:         running.Query,
		History:       running.History,
		AppID:         running.AppID,
		ChatConfig:    running.ChatConfig,
		UsageID:       running.UsageID,
	}
	snapshot := running.Clone()
	e.mu.Unlock()

	for _, id := range participants {
		e.graph.SetDebugResult(id, &graph.DebugResult{Status: graph.StatusRunning}, false)
	}
	e.emit(snapshot, "", "debug_step_start", map[string]interface{}{"entries": participants})
	e.notify(snapshot, true)

	if e.cfg.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.stepTimeout)
		defer cancel()
	}
	start := time.Now()
	resp, err := e.dispatcher.Dispatch(ctx, req)
	latency := time.Since(start)

	if err != nil {
		failed, outcomes := FailStep(snapshot, err)
		live := e.settle(gen, failed)

		e.cfg.metrics.IncrementDispatchFailures()
		e.cfg.metrics.RecordDebugStep(latency, "failed")
		e.writeOutcomes(outcomes)
		e.emit(failed, "", "debug_step_failed", map[string]interface{}{
			"error":      err.Error(),
			"latency_ms": latency.Milliseconds(),
			"stale":      !live,
		})
		if live {
			e.notify(failed.Clone(), true)
		}
		return failed.Clone(), &EngineError{Message: err.Error(), Code: "DISPATCH_FAILED", Cause: err}
	}

	done, outcomes := ApplyResponse(snapshot, resp)
	live := e.settle(gen, done)

	e.cfg.metrics.RecordDebugStep(latency, "success")
	e.writeOutcomes(outcomes)
	edgeUpdates := make([]graph.Edge, 0, len(done.RuntimeEdges))
	for _, re := range done.RuntimeEdges {
		edgeUpdates = append(edgeUpdates, re.Edge())
	}
	e.graph.SetEdgeStatus(edgeUpdates)

	e.emit(done, "", "debug_step_end", map[string]interface{}{
		"latency_ms": latency.Milliseconds(),
		"next":       done.EntryNodeIDs,
		"stale":      !live,
	})
	if done.Interactive != nil {
		e.emit(done, done.Interactive.NodeID, "debug_interactive", map[string]interface{}{
			"type": string(done.Interactive.Type),
		})
	}
	if live {
		e.notify(done.Clone(), true)
	}
	return done.Clone(), nil
}

// settle installs s as the live session unless the step went stale.
func (e *Engine) settle(gen uint64, s Session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.session == nil || e.gen != gen {
		return false
	}
	e.session = &s
	e.inFlight = false
	return true
}

func (e *Engine) writeOutcomes(outcomes []NodeOutcome) {
	for _, o := range outcomes {
		e.graph.SetDebugResult(o.NodeID, &graph.DebugResult{
			Status:     o.Status,
			Message:    o.Message,
			Response:   o.Response,
			ShowResult: o.Status != graph.StatusSkipped,
		}, o.Interactive)
		e.cfg.metrics.RecordNodeOutcome(o.Status)
	}
}

func (e *Engine) notify(s Session, ok bool) {
	e.listenersMu.Lock()
	ls := append([]sessionListener{}, e.listeners...)
	e.listenersMu.Unlock()
	for _, l := range ls {
		l.fn(s, ok)
	}
}

func (e *Engine) emit(s Session, nodeID, msg string, meta map[string]interface{}) {
	emit.Emit(e.cfg.emitter, emit.Event{
		SessionID: s.ID,
		Step:      s.Step,
		NodeID:    nodeID,
		Msg:       msg,
		Meta:      meta,
	})
}
