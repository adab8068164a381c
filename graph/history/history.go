// Package history keeps the undo/redo stacks of an editing session.
//
// The Manager records graph snapshots on a past stack (most recent first),
// moves them to a future stack on Undo and back on Redo, and resets the live
// graph through a Target. While a reset is being applied, the graph change it
// causes must not be recorded as a new edit; pushes arriving in that window
// land in a single pending slot that is replayed once the reset is done.
package history

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/emit"
)

// ErrInvalidSnapshot is returned by Init for a snapshot without a node list.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// ErrIndexOutOfRange is returned by RevertTo for an index outside the past stack.
var ErrIndexOutOfRange = errors.New("history index out of range")

// Snapshot is one recorded graph state.
type Snapshot struct {
	Nodes      []graph.Node   `json:"nodes"`
	Edges      []graph.Edge   `json:"edges"`
	SideConfig map[string]any `json:"chatConfig,omitempty"`
	Title      string         `json:"title"`
	IsSaved    bool           `json:"isSaved,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// Target receives the state the live graph must be reset to.
type Target interface {
	ResetState(s Snapshot) error
}

// TargetFunc adapts a function to Target.
type TargetFunc func(Snapshot) error

// ResetState calls f(s).
func (f TargetFunc) ResetState(s Snapshot) error { return f(s) }

// PushOutcome reports what Push did.
type PushOutcome int

const (
	// Committed means the snapshot became the new past[0].
	Committed PushOutcome = iota
	// Duplicate means the snapshot equals past[0] and was dropped.
	Duplicate
	// Deferred means a reset was in progress and the snapshot was parked in
	// the pending slot.
	Deferred
)

func (o PushOutcome) String() string {
	switch o {
	case Committed:
		return "committed"
	case Duplicate:
		return "duplicate"
	case Deferred:
		return "deferred"
	}
	return fmt.Sprintf("PushOutcome(%d)", int(o))
}

// State is what subscribers see after every stack change.
type State struct {
	PastLen   int
	FutureLen int
	CanUndo   bool
	CanRedo   bool
	Current   Snapshot
}

// Manager owns the past and future stacks.
//
// All methods are safe for concurrent use. Target.ResetState is called
// without the Manager's lock held, so the target may push back into the
// Manager (the push is deferred).
type Manager struct {
	mu       sync.Mutex
	past     []Snapshot
	future   []Snapshot
	applying bool
	pending  *Snapshot
	timer    *time.Timer
	closed   bool

	target Target
	cfg    config

	listenersMu sync.Mutex
	listeners   []stateListener
	nextID      int
}

type stateListener struct {
	id int
	fn func(State)
}

// New creates a Manager that resets live state through target.
func New(target Target, opts ...Option) (*Manager, error) {
	if target == nil {
		return nil, errors.New("history: target is required")
	}
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, fmt.Errorf("history option: %w", err)
		}
	}
	return &Manager{target: target, cfg: cfg}, nil
}

var snapshotEqual = cmp.Options{
	cmpopts.EquateEmpty(),
}

// sameContent compares graph content only; titles, save flags and timestamps
// do not make two snapshots different.
func sameContent(a, b Snapshot) bool {
	return cmp.Equal(a.Nodes, b.Nodes, snapshotEqual) &&
		cmp.Equal(a.Edges, b.Edges, snapshotEqual) &&
		cmp.Equal(a.SideConfig, b.SideConfig, snapshotEqual)
}

// Push records the given state. Outside a reset it is committed unless it
// equals past[0]; committing clears the future stack and trims the past
// stack to capacity. During a reset it is deferred.
func (m *Manager) Push(nodes []graph.Node, edges []graph.Edge, sideConfig map[string]any, opts ...PushOption) PushOutcome {
	snap := m.newSnapshot(nodes, edges, sideConfig, opts...)

	m.mu.Lock()
	if m.applying {
		m.deferLocked(snap)
		m.mu.Unlock()
		m.record(Deferred)
		m.emit("history_deferred", nil)
		return Deferred
	}
	outcome := m.commitLocked(snap)
	st := m.stateLocked()
	m.mu.Unlock()

	m.record(outcome)
	if outcome == Committed {
		m.emit("history_commit", map[string]interface{}{"title": snap.Title})
		m.notify(st)
	}
	return outcome
}

func (m *Manager) newSnapshot(nodes []graph.Node, edges []graph.Edge, sideConfig map[string]any, opts ...PushOption) Snapshot {
	now := m.cfg.now()
	snap := Snapshot{
		Nodes:      append([]graph.Node(nil), nodes...),
		Edges:      append([]graph.Edge(nil), edges...),
		SideConfig: graph.CloneMap(sideConfig),
		Title:      now.Format(TitleLayout),
		CreatedAt:  now,
	}
	for _, opt := range opts {
		opt(&snap)
	}
	return snap
}

func (m *Manager) commitLocked(snap Snapshot) PushOutcome {
	if len(m.past) > 0 && sameContent(m.past[0], snap) {
		return Duplicate
	}
	past := make([]Snapshot, 0, min(len(m.past)+1, m.cfg.capacity))
	past = append(past, snap)
	for _, s := range m.past {
		if len(past) == m.cfg.capacity {
			break
		}
		past = append(past, s)
	}
	m.past = past
	m.future = nil
	return Committed
}

func (m *Manager) deferLocked(snap Snapshot) {
	m.pending = &snap
	if m.cfg.retryDelay == 0 || m.closed {
		return
	}
	if m.timer != nil {
		m.timer.Stop()
	}
	m.timer = time.AfterFunc(m.cfg.retryDelay, m.retryPending)
}

// retryPending runs on the timer in retry-delay mode.
func (m *Manager) retryPending() {
	m.mu.Lock()
	if m.pending == nil || m.closed {
		m.mu.Unlock()
		return
	}
	if m.applying {
		m.timer = time.AfterFunc(m.cfg.retryDelay, m.retryPending)
		m.mu.Unlock()
		return
	}
	snap := *m.pending
	m.pending = nil
	m.timer = nil
	outcome := m.commitLocked(snap)
	st := m.stateLocked()
	m.mu.Unlock()

	m.record(outcome)
	if outcome == Committed {
		m.emit("history_commit", map[string]interface{}{"title": snap.Title, "retried": true})
		m.notify(st)
	}
}

// finishResetLocked leaves the reset window and, in drain mode, replays the
// pending push.
func (m *Manager) finishResetLocked() (PushOutcome, bool) {
	m.applying = false
	if m.pending == nil || m.cfg.retryDelay > 0 {
		return 0, false
	}
	snap := *m.pending
	m.pending = nil
	return m.commitLocked(snap), true
}

// Undo moves past[0] onto the future stack and resets live state to the new
// past[0]. With one or no snapshots it does nothing and reports false.
func (m *Manager) Undo() (bool, error) {
	m.mu.Lock()
	if len(m.past) <= 1 || m.applying {
		m.mu.Unlock()
		return false, nil
	}
	prevPast, prevFuture := m.past, m.future

	m.future = prepend(m.future, m.past[0])
	m.past = m.past[1:]
	target := m.past[0]

	return m.resetTo(target, "history_undo", prevPast, prevFuture)
}

// Redo moves future[0] back onto the past stack and resets live state to it.
// With an empty future it does nothing and reports false.
func (m *Manager) Redo() (bool, error) {
	m.mu.Lock()
	if len(m.future) == 0 || m.applying {
		m.mu.Unlock()
		return false, nil
	}
	prevPast, prevFuture := m.past, m.future

	target := m.future[0]
	m.past = prepend(m.past, target)
	m.future = m.future[1:]

	return m.resetTo(target, "history_redo", prevPast, prevFuture)
}

// resetTo is entered with m.mu held and the stacks already moved. It applies
// target, restoring the previous stacks when the reset fails.
func (m *Manager) resetTo(target Snapshot, msg string, prevPast, prevFuture []Snapshot) (bool, error) {
	m.applying = true
	m.mu.Unlock()

	err := m.target.ResetState(target)

	m.mu.Lock()
	if err != nil {
		m.past, m.future = prevPast, prevFuture
	}
	outcome, drained := m.finishResetLocked()
	st := m.stateLocked()
	m.mu.Unlock()

	if drained {
		m.record(outcome)
	}
	if err != nil {
		m.emit(msg, map[string]interface{}{"error": err.Error()})
		m.notify(st)
		return false, fmt.Errorf("history reset: %w", err)
	}
	m.emit(msg, map[string]interface{}{"title": target.Title})
	m.notify(st)
	return true, nil
}

// RevertTo resets live state to past[index] and records that state again as
// a new snapshot, so the revert itself can be undone.
func (m *Manager) RevertTo(index int) error {
	m.mu.Lock()
	if index < 0 || index >= len(m.past) {
		m.mu.Unlock()
		return fmt.Errorf("revert to %d of %d: %w", index, len(m.past), ErrIndexOutOfRange)
	}
	if m.applying {
		m.mu.Unlock()
		return errors.New("history: reset already in progress")
	}
	src := m.past[index]
	m.applying = true
	m.mu.Unlock()

	err := m.target.ResetState(src)

	m.mu.Lock()
	var outcome PushOutcome
	if err == nil {
		now := m.cfg.now()
		snap := src
		snap.IsSaved = false
		snap.CreatedAt = now
		snap.Title = now.Format(TitleLayout)
		outcome = m.commitLocked(snap)
	}
	// Whatever the reset itself pushed is now a duplicate of past[0].
	_, _ = m.finishResetLocked()
	st := m.stateLocked()
	m.mu.Unlock()

	if err != nil {
		return fmt.Errorf("history revert: %w", err)
	}
	m.record(outcome)
	m.emit("history_commit", map[string]interface{}{"revertedFrom": index})
	m.notify(st)
	return nil
}

// Init discards both stacks and any pending push and records s as the single
// irreducible snapshot.
func (m *Manager) Init(s Snapshot) error {
	if s.Nodes == nil {
		return ErrInvalidSnapshot
	}
	if s.CreatedAt.IsZero() {
		s.CreatedAt = m.cfg.now()
	}
	if s.Title == "" {
		s.Title = s.CreatedAt.Format(TitleLayout)
	}

	m.mu.Lock()
	m.past = []Snapshot{s}
	m.future = nil
	m.pending = nil
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
	return nil
}

// MarkSaved flags past[0] as saved, retitling it when title is not empty.
func (m *Manager) MarkSaved(title string) bool {
	m.mu.Lock()
	if len(m.past) == 0 {
		m.mu.Unlock()
		return false
	}
	past := append([]Snapshot(nil), m.past...)
	past[0].IsSaved = true
	if title != "" {
		past[0].Title = title
	}
	m.past = past
	st := m.stateLocked()
	m.mu.Unlock()

	m.notify(st)
	return true
}

// HasUnsavedChanges reports whether the current snapshot was never saved.
func (m *Manager) HasUnsavedChanges() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past) > 0 && !m.past[0].IsSaved
}

// LatestSaved returns the most recent saved snapshot on the past stack.
func (m *Manager) LatestSaved() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.past {
		if s.IsSaved {
			return s, true
		}
	}
	return Snapshot{}, false
}

// CanUndo reports whether Undo would do anything.
func (m *Manager) CanUndo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.past) > 1
}

// CanRedo reports whether Redo would do anything.
func (m *Manager) CanRedo() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.future) > 0
}

// Past returns the past stack, most recent first.
func (m *Manager) Past() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.past...)
}

// Future returns the future stack, next redo first.
func (m *Manager) Future() []Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Snapshot(nil), m.future...)
}

// Current returns past[0].
func (m *Manager) Current() (Snapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.past) == 0 {
		return Snapshot{}, false
	}
	return m.past[0], true
}

// Pending reports whether a deferred push is waiting.
func (m *Manager) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending != nil
}

// Subscribe registers fn for stack changes. The returned function removes it.
func (m *Manager) Subscribe(fn func(State)) (unsubscribe func()) {
	m.listenersMu.Lock()
	defer m.listenersMu.Unlock()
	m.nextID++
	id := m.nextID
	m.listeners = append(m.listeners, stateListener{id: id, fn: fn})

	return func() {
		m.listenersMu.Lock()
		defer m.listenersMu.Unlock()
		for i, l := range m.listeners {
			if l.id == id {
				m.listeners = append(m.listeners[:i:i], m.listeners[i+1:]...)
				return
			}
		}
	}
}

// Close stops a pending retry timer. Later deferred pushes are kept until the
// next reset completes but are never retried by timer.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Manager) stateLocked() State {
	st := State{
		PastLen:   len(m.past),
		FutureLen: len(m.future),
		CanUndo:   len(m.past) > 1,
		CanRedo:   len(m.future) > 0,
	}
	if len(m.past) > 0 {
		st.Current = m.past[0]
	}
	return st
}

func (m *Manager) notify(st State) {
	m.cfg.metrics.SetHistoryDepth(st.PastLen, st.FutureLen)

	m.listenersMu.Lock()
	ls := append([]stateListener{}, m.listeners...)
	m.listenersMu.Unlock()
	for _, l := range ls {
		l.fn(st)
	}
}

func (m *Manager) record(o PushOutcome) {
	m.cfg.metrics.RecordHistoryPush(o.String())
}

func (m *Manager) emit(msg string, meta map[string]interface{}) {
	emit.Emit(m.cfg.emitter, emit.Event{SessionID: m.cfg.sessionID, Msg: msg, Meta: meta})
}

func prepend(stack []Snapshot, s Snapshot) []Snapshot {
	out := make([]Snapshot, 0, len(stack)+1)
	out = append(out, s)
	return append(out, stack...)
}
