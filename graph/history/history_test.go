package history

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/emit"
)

func nodes(names ...string) []graph.Node {
	out := make([]graph.Node, len(names))
	for i, n := range names {
		out[i] = graph.Node{ID: n, Type: graph.TypeChat, Name: n}
	}
	return out
}

// recorder is a Target that remembers every reset and can run a hook while
// the reset is in progress.
type recorder struct {
	mu     sync.Mutex
	resets []Snapshot
	during func(Snapshot)
	err    error
}

func (r *recorder) ResetState(s Snapshot) error {
	r.mu.Lock()
	r.resets = append(r.resets, s)
	hook, err := r.during, r.err
	r.mu.Unlock()
	if hook != nil {
		hook(s)
	}
	return err
}

func (r *recorder) last() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resets[len(r.resets)-1]
}

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	n := 0
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		n++
		return t0.Add(time.Duration(n) * time.Second)
	}
}

func newManager(t *testing.T, target Target, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithClock(fixedClock())}, opts...)
	m, err := New(target, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

func TestPush(t *testing.T) {
	t.Run("commit and dedup", func(t *testing.T) {
		m := newManager(t, &recorder{})
		if got := m.Push(nodes("a"), nil, nil); got != Committed {
			t.Fatalf("first push = %v", got)
		}
		// nil and empty collections compare equal.
		if got := m.Push(nodes("a"), []graph.Edge{}, map[string]any{}); got != Duplicate {
			t.Errorf("equal push = %v, want Duplicate", got)
		}
		if got := m.Push(nodes("a", "b"), nil, nil); got != Committed {
			t.Errorf("changed push = %v", got)
		}
		if len(m.Past()) != 2 {
			t.Errorf("len(Past) = %d, want 2", len(m.Past()))
		}
	})

	t.Run("default title comes from the clock", func(t *testing.T) {
		m := newManager(t, &recorder{})
		m.Push(nodes("a"), nil, nil)
		cur, _ := m.Current()
		if cur.Title != "2024-05-01 12:00:01" {
			t.Errorf("Title = %q", cur.Title)
		}
		m.Push(nodes("b"), nil, nil, WithTitle("custom"))
		cur, _ = m.Current()
		if cur.Title != "custom" {
			t.Errorf("Title = %q", cur.Title)
		}
	})

	t.Run("capacity trims oldest", func(t *testing.T) {
		m := newManager(t, &recorder{}, WithCapacity(3))
		for _, n := range []string{"a", "b", "c", "d"} {
			m.Push(nodes(n), nil, nil)
		}
		past := m.Past()
		if len(past) != 3 {
			t.Fatalf("len(Past) = %d, want 3", len(past))
		}
		if past[0].Nodes[0].ID != "d" || past[2].Nodes[0].ID != "b" {
			t.Errorf("unexpected order: %s..%s", past[0].Nodes[0].ID, past[2].Nodes[0].ID)
		}
	})

	t.Run("commit clears future", func(t *testing.T) {
		m := newManager(t, &recorder{})
		m.Push(nodes("a"), nil, nil)
		m.Push(nodes("b"), nil, nil)
		if _, err := m.Undo(); err != nil {
			t.Fatal(err)
		}
		if !m.CanRedo() {
			t.Fatal("expected redo available")
		}
		m.Push(nodes("c"), nil, nil)
		if m.CanRedo() {
			t.Error("future survived a new commit")
		}
	})

	t.Run("pushed slices are detached", func(t *testing.T) {
		m := newManager(t, &recorder{})
		ns := nodes("a")
		m.Push(ns, nil, nil)
		ns[0].Name = "changed"
		cur, _ := m.Current()
		if cur.Nodes[0].Name != "a" {
			t.Error("snapshot aliases caller slice")
		}
	})
}

func TestUndoRedo(t *testing.T) {
	rec := &recorder{}
	m := newManager(t, rec)

	if ok, _ := m.Undo(); ok {
		t.Error("undo on empty history")
	}
	m.Push(nodes("a"), nil, nil)
	if ok, _ := m.Undo(); ok || m.CanUndo() {
		t.Error("the first snapshot must not be undoable")
	}

	m.Push(nodes("a", "b"), nil, nil)
	m.Push(nodes("a", "b", "c"), nil, nil)
	before := m.Past()

	if ok, err := m.Undo(); !ok || err != nil {
		t.Fatalf("Undo = %v, %v", ok, err)
	}
	if got := len(rec.last().Nodes); got != 2 {
		t.Errorf("reset to %d nodes, want 2", got)
	}
	if ok, err := m.Redo(); !ok || err != nil {
		t.Fatalf("Redo = %v, %v", ok, err)
	}
	if got := len(rec.last().Nodes); got != 3 {
		t.Errorf("reset to %d nodes, want 3", got)
	}
	if diff := cmp.Diff(before, m.Past()); diff != "" {
		t.Errorf("undo+redo changed past (-before +after):\n%s", diff)
	}
	if ok, _ := m.Redo(); ok {
		t.Error("redo with empty future")
	}
}

func TestUndo_ResetFailureRestoresStacks(t *testing.T) {
	rec := &recorder{}
	m := newManager(t, rec)
	m.Push(nodes("a"), nil, nil)
	m.Push(nodes("b"), nil, nil)

	rec.err = errors.New("boom")
	if _, err := m.Undo(); err == nil {
		t.Fatal("expected error")
	}
	if len(m.Past()) != 2 || m.CanRedo() {
		t.Errorf("stacks changed: past=%d redo=%v", len(m.Past()), m.CanRedo())
	}
}

func TestDeferredPush_Drain(t *testing.T) {
	t.Run("echo of the reset is a duplicate", func(t *testing.T) {
		rec := &recorder{}
		m := newManager(t, rec)
		var during PushOutcome
		rec.during = func(s Snapshot) { during = m.Push(s.Nodes, s.Edges, s.SideConfig) }

		m.Push(nodes("a"), nil, nil)
		m.Push(nodes("b"), nil, nil)
		if _, err := m.Undo(); err != nil {
			t.Fatal(err)
		}
		if during != Deferred {
			t.Errorf("push during reset = %v, want Deferred", during)
		}
		if m.Pending() {
			t.Error("pending slot not drained")
		}
		if len(m.Past()) != 1 || !m.CanRedo() {
			t.Errorf("past=%d canRedo=%v", len(m.Past()), m.CanRedo())
		}
	})

	t.Run("distinct edit during reset is committed after it", func(t *testing.T) {
		rec := &recorder{}
		m := newManager(t, rec)
		rec.during = func(Snapshot) {
			m.Push(nodes("x"), nil, nil)
			m.Push(nodes("y"), nil, nil) // most recent wins
		}

		m.Push(nodes("a"), nil, nil)
		m.Push(nodes("b"), nil, nil)
		if _, err := m.Undo(); err != nil {
			t.Fatal(err)
		}
		cur, _ := m.Current()
		if cur.Nodes[0].ID != "y" {
			t.Errorf("current = %s, want y", cur.Nodes[0].ID)
		}
		if len(m.Past()) != 2 {
			t.Errorf("len(Past) = %d, want 2", len(m.Past()))
		}
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDeferredPush_Timer(t *testing.T) {
	rec := &recorder{}
	m := newManager(t, rec, WithRetryDelay(20*time.Millisecond))
	rec.during = func(Snapshot) {
		m.Push(nodes("x"), nil, nil)
		m.Push(nodes("y"), nil, nil)
	}

	m.Push(nodes("a"), nil, nil)
	m.Push(nodes("b"), nil, nil)
	if _, err := m.Undo(); err != nil {
		t.Fatal(err)
	}
	if !m.Pending() {
		t.Fatal("expected pending push until the timer fires")
	}
	waitFor(t, func() bool { return !m.Pending() })

	cur, _ := m.Current()
	if cur.Nodes[0].ID != "y" {
		t.Errorf("current = %s, want y", cur.Nodes[0].ID)
	}
	if len(m.Past()) != 2 {
		t.Errorf("len(Past) = %d, want 2 (only the latest deferred push lands)", len(m.Past()))
	}
}

func TestSaved(t *testing.T) {
	m := newManager(t, &recorder{})
	if m.HasUnsavedChanges() {
		t.Error("empty history has no unsaved changes")
	}
	m.Push(nodes("a"), nil, nil)
	if !m.HasUnsavedChanges() {
		t.Error("fresh snapshot should be unsaved")
	}
	m.MarkSaved("v1")
	if m.HasUnsavedChanges() {
		t.Error("MarkSaved did not take")
	}
	m.Push(nodes("b"), nil, nil)

	saved, ok := m.LatestSaved()
	if !ok || saved.Title != "v1" || saved.Nodes[0].ID != "a" {
		t.Errorf("LatestSaved = %+v, %v", saved, ok)
	}
}

func TestRevertTo(t *testing.T) {
	rec := &recorder{}
	m := newManager(t, rec)
	rec.during = func(s Snapshot) { m.Push(s.Nodes, s.Edges, s.SideConfig) }

	m.Push(nodes("a"), nil, nil)
	m.Push(nodes("b"), nil, nil)
	m.Push(nodes("c"), nil, nil)

	if err := m.RevertTo(2); err != nil {
		t.Fatalf("RevertTo: %v", err)
	}
	if rec.last().Nodes[0].ID != "a" {
		t.Errorf("reset to %s, want a", rec.last().Nodes[0].ID)
	}
	past := m.Past()
	if len(past) != 4 || past[0].Nodes[0].ID != "a" {
		t.Errorf("past = %d entries, head %s", len(past), past[0].Nodes[0].ID)
	}

	if err := m.RevertTo(10); !errors.Is(err, ErrIndexOutOfRange) {
		t.Errorf("err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestInit(t *testing.T) {
	m := newManager(t, &recorder{})
	if err := m.Init(Snapshot{}); !errors.Is(err, ErrInvalidSnapshot) {
		t.Errorf("err = %v, want ErrInvalidSnapshot", err)
	}

	m.Push(nodes("a"), nil, nil)
	m.Push(nodes("b"), nil, nil)
	if err := m.Init(Snapshot{Nodes: nodes("z")}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if m.CanUndo() || m.CanRedo() {
		t.Error("Init must leave a single irreducible entry")
	}
	cur, _ := m.Current()
	if cur.Title == "" || cur.CreatedAt.IsZero() {
		t.Errorf("Init did not fill defaults: %+v", cur)
	}
}

func TestSubscribeAndEvents(t *testing.T) {
	emitter := emit.NewBufferedEmitter()
	m := newManager(t, &recorder{}, WithEmitter(emitter), WithSessionID("s1"))

	var states []State
	unsub := m.Subscribe(func(st State) { states = append(states, st) })
	m.Push(nodes("a"), nil, nil)
	m.Push(nodes("b"), nil, nil)
	m.Push(nodes("b"), nil, nil) // duplicate, no notification
	_, _ = m.Undo()
	unsub()
	m.Push(nodes("c"), nil, nil)

	if len(states) != 3 {
		t.Fatalf("got %d states, want 3", len(states))
	}
	if !states[2].CanRedo || states[2].CanUndo {
		t.Errorf("state after undo = %+v", states[2])
	}
	if emitter.Count("history_commit") != 3 || emitter.Count("history_undo") != 1 {
		t.Errorf("events = %+v", emitter.All())
	}
}

func TestOptions(t *testing.T) {
	if _, err := New(nil); err == nil {
		t.Error("nil target accepted")
	}
	if _, err := New(&recorder{}, WithCapacity(0)); err == nil {
		t.Error("zero capacity accepted")
	}
	if _, err := New(&recorder{}, WithRetryDelay(-time.Second)); err == nil {
		t.Error("negative delay accepted")
	}
	if Deferred.String() != "deferred" {
		t.Errorf("String = %q", Deferred.String())
	}
}

func TestSubscribe_Unsubscribe(t *testing.T) {
	m := newManager(t, &recorder{})

	var first, second int
	unsubFirst := m.Subscribe(func(State) { first++ })
	unsubSecond := m.Subscribe(func(State) { second++ })
	m.Push(nodes("a"), nil, nil)

	unsubFirst()
	unsubFirst() // second call is a no-op
	m.Push(nodes("b"), nil, nil)

	if first != 1 || second != 2 {
		t.Errorf("notifications = %d, %d; want 1, 2", first, second)
	}
	if len(m.listeners) != 1 {
		t.Errorf("listeners = %d after unsubscribe, want 1", len(m.listeners))
	}
	unsubSecond()
	if len(m.listeners) != 0 {
		t.Errorf("listeners = %d, want 0", len(m.listeners))
	}
}
