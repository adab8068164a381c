// Package editor wires one editing session together: the live graph, its
// undo/redo history, the debug engine and an optional version store.
//
// Every structural change to the graph (mutations, node and edge edits) is
// recorded in history through a graph subscription. Resets (undo, redo,
// loading a version) and debug result writes are not recorded.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/dshills/flowstudio-go/graph/debug"
	"github.com/dshills/flowstudio-go/graph/emit"
	"github.com/dshills/flowstudio-go/graph/history"
	"github.com/dshills/flowstudio-go/graph/store"
)

var (
	// ErrNoStore is returned by version operations when no store is configured.
	ErrNoStore = errors.New("editor: no version store configured")
	// ErrNoDispatcher is returned by StartDebug when debugging is disabled.
	ErrNoDispatcher = errors.New("editor: no dispatcher configured")
)

// Session is a single editing session over one workflow.
type Session struct {
	id    string
	cfg   config
	graph *graph.Graph
	hist  *history.Manager
	debug *debug.Engine

	mu         sync.Mutex
	chatConfig map[string]any
	version    string

	unsubscribe func()
}

// New starts a session over the given graph. The initial state becomes the
// single irreducible history snapshot.
func New(nodes []graph.Node, edges []graph.Edge, opts ...Option) (*Session, error) {
	cfg := config{catalog: convert.Builtin()}
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("editor option: %w", err)
		}
	}
	if cfg.store != nil && cfg.appID == "" {
		return nil, errors.New("editor: app id is required with a store")
	}
	if cfg.sessionID == "" {
		cfg.sessionID = uuid.NewString()
	}

	g, err := graph.NewGraph(nodes, edges,
		graph.WithEmitter(cfg.emitter),
		graph.WithMetrics(cfg.metrics),
		graph.WithSessionID(cfg.sessionID),
	)
	if err != nil {
		return nil, err
	}

	s := &Session{id: cfg.sessionID, cfg: cfg, graph: g, chatConfig: cfg.chatConfig}

	histOpts := append([]history.Option{
		history.WithEmitter(cfg.emitter),
		history.WithMetrics(cfg.metrics),
		history.WithSessionID(cfg.sessionID),
	}, cfg.historyOpts...)
	s.hist, err = history.New(history.TargetFunc(s.resetState), histOpts...)
	if err != nil {
		return nil, err
	}

	if cfg.dispatcher != nil {
		debugOpts := append([]debug.Option{
			debug.WithAppID(cfg.appID),
			debug.WithEmitter(cfg.emitter),
			debug.WithMetrics(cfg.metrics),
		}, cfg.debugOpts...)
		s.debug, err = debug.New(g, cfg.dispatcher, debugOpts...)
		if err != nil {
			return nil, err
		}
	}

	cur, curEdges := g.State()
	if err := s.hist.Init(s.snapshot(cur, curEdges, "")); err != nil {
		return nil, err
	}
	s.unsubscribe = g.Subscribe(s.record)
	return s, nil
}

// ID returns the session id used to tag events.
func (s *Session) ID() string { return s.id }

// Graph returns the live graph. Edits made directly on it are recorded in
// history like edits made through Apply.
func (s *Session) Graph() *graph.Graph { return s.graph }

// History returns the session's undo/redo manager.
func (s *Session) History() *history.Manager { return s.hist }

// Debug returns the debug engine, or nil when no dispatcher is configured.
func (s *Session) Debug() *debug.Engine { return s.debug }

// Apply applies m to the graph.
func (s *Session) Apply(m graph.Mutation) error {
	return s.graph.Apply(m)
}

// Undo restores the previous snapshot.
func (s *Session) Undo() (bool, error) { return s.hist.Undo() }

// Redo re-applies the most recently undone snapshot.
func (s *Session) Redo() (bool, error) { return s.hist.Redo() }

// ChatConfig returns a copy of the app-level chat configuration.
func (s *Session) ChatConfig() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return graph.CloneMap(s.chatConfig)
}

// SetChatConfig replaces the chat configuration and records the change in
// history.
func (s *Session) SetChatConfig(c map[string]any) history.PushOutcome {
	s.mu.Lock()
	s.chatConfig = graph.CloneMap(c)
	s.mu.Unlock()

	nodes, edges := s.graph.State()
	snap := s.snapshot(nodes, edges, "")
	return s.hist.Push(snap.Nodes, snap.Edges, snap.SideConfig)
}

// StartDebug starts a debug run at entryIDs over the current graph, using
// the session's chat configuration.
func (s *Session) StartDebug(ctx context.Context, entryIDs []string, query []debug.UserContent) (debug.Session, error) {
	if s.debug == nil {
		return debug.Session{}, ErrNoDispatcher
	}
	return s.debug.Start(ctx, debug.StartInput{
		EntryNodeIDs: entryIDs,
		Query:        query,
		ChatConfig:   s.ChatConfig(),
	})
}

// Persisted returns the current graph in its stored form.
func (s *Session) Persisted() convert.PersistedGraph {
	nodes, edges := s.graph.State()
	pg := convert.ToPersisted(nodes, edges)
	pg.ChatConfig = s.ChatConfig()
	return pg
}

// SaveVersion stores the current graph as a new version and marks the
// current history snapshot saved.
func (s *Session) SaveVersion(ctx context.Context, title string, publish bool) (store.Version, error) {
	if s.cfg.store == nil {
		return store.Version{}, ErrNoStore
	}
	nodes, edges := s.graph.State()
	pg := convert.ToPersisted(nodes, edges)
	pg.ChatConfig = s.ChatConfig()

	v, err := s.cfg.store.SaveVersion(ctx, store.Version{
		AppID:       s.cfg.appID,
		Title:       title,
		Graph:       pg,
		IsPublished: publish,
	})
	if err != nil {
		return store.Version{}, fmt.Errorf("save version: %w", err)
	}

	s.mu.Lock()
	s.version = v.ID
	s.mu.Unlock()
	s.hist.MarkSaved(title)

	meta := map[string]interface{}{"versionId": v.ID, "published": publish}
	if dropped := convert.DroppedEdges(nodes, edges); len(dropped) > 0 {
		meta["droppedEdges"] = len(dropped)
	}
	s.emit("version_saved", meta)
	return v, nil
}

// LoadVersion replaces the session's graph with the stored version id and
// restarts history from it.
func (s *Session) LoadVersion(ctx context.Context, id string) error {
	if s.cfg.store == nil {
		return ErrNoStore
	}
	v, err := s.cfg.store.LoadVersion(ctx, s.cfg.appID, id)
	if err != nil {
		return fmt.Errorf("load version %s: %w", id, err)
	}
	return s.loadVersion(ctx, v)
}

// LoadLatest loads the newest stored version of the app.
func (s *Session) LoadLatest(ctx context.Context) (store.Version, error) {
	if s.cfg.store == nil {
		return store.Version{}, ErrNoStore
	}
	v, err := s.cfg.store.LatestVersion(ctx, s.cfg.appID)
	if err != nil {
		return store.Version{}, fmt.Errorf("load latest version: %w", err)
	}
	return v, s.loadVersion(ctx, v)
}

// Versions lists the app's stored versions, newest first.
func (s *Session) Versions(ctx context.Context, limit int) ([]store.Version, error) {
	if s.cfg.store == nil {
		return nil, ErrNoStore
	}
	return s.cfg.store.ListVersions(ctx, s.cfg.appID, limit)
}

// CurrentVersion returns the id of the version last saved or loaded.
func (s *Session) CurrentVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

func (s *Session) loadVersion(ctx context.Context, v store.Version) error {
	if err := s.LoadGraph(ctx, v.Graph, v.Title); err != nil {
		return err
	}
	s.mu.Lock()
	s.version = v.ID
	s.mu.Unlock()
	s.emit("version_loaded", map[string]interface{}{"versionId": v.ID})
	return nil
}

// LoadGraph rehydrates pg through the catalog, replaces the live graph and
// restarts history with pg as a saved snapshot titled title. Any debug
// session is stopped first.
func (s *Session) LoadGraph(ctx context.Context, pg convert.PersistedGraph, title string) error {
	nodes, edges, err := convert.ToEditable(ctx, pg, s.cfg.catalog, convert.WithEmitter(s.cfg.emitter, s.id))
	if err != nil {
		return err
	}
	if s.debug != nil {
		s.debug.Stop()
	}

	s.mu.Lock()
	s.chatConfig = graph.CloneMap(pg.ChatConfig)
	s.mu.Unlock()

	if err := s.graph.Reset(nodes, edges); err != nil {
		return err
	}
	snap := s.snapshot(nodes, edges, title)
	snap.IsSaved = true
	return s.hist.Init(snap)
}

// Close detaches history from the graph and stops debugging. The store is
// left open.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.debug != nil {
		s.debug.Stop()
	}
	s.hist.Close()
}

// record pushes structural graph changes into history.
func (s *Session) record(c graph.Change) {
	switch c.Reason {
	case graph.ReasonMutation, graph.ReasonEdges, graph.ReasonNodes:
	default:
		return
	}
	snap := s.snapshot(c.Nodes, c.Edges, "")
	s.hist.Push(snap.Nodes, snap.Edges, snap.SideConfig)
}

// resetState is the history target: it restores a snapshot onto the graph.
func (s *Session) resetState(snap history.Snapshot) error {
	s.mu.Lock()
	s.chatConfig = graph.CloneMap(snap.SideConfig)
	s.mu.Unlock()
	return s.graph.Reset(snap.Nodes, snap.Edges)
}

// snapshot builds a history snapshot without debug results, which are
// runtime state rather than edits.
func (s *Session) snapshot(nodes []graph.Node, edges []graph.Edge, title string) history.Snapshot {
	clean := make([]graph.Node, len(nodes))
	for i, n := range nodes {
		n.DebugResult = nil
		clean[i] = n
	}
	cleanEdges := make([]graph.Edge, len(edges))
	for i, e := range edges {
		e.Status = ""
		cleanEdges[i] = e
	}
	return history.Snapshot{
		Nodes:      clean,
		Edges:      cleanEdges,
		SideConfig: s.ChatConfig(),
		Title:      title,
	}
}

func (s *Session) emit(msg string, meta map[string]interface{}) {
	emit.Emit(s.cfg.emitter, emit.Event{SessionID: s.id, Msg: msg, Meta: meta})
}
