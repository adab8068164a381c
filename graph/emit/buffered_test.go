package emit

import (
	"sync"
	"testing"
)

func TestBufferedEmitter_History(t *testing.T) {
	t.Run("groups events by session", func(t *testing.T) {
		b := NewBufferedEmitter()
		b.Emit(Event{SessionID: "s1", Msg: "a"})
		b.Emit(Event{SessionID: "s2", Msg: "b"})
		b.Emit(Event{SessionID: "s1", Msg: "c"})

		h1 := b.GetHistory("s1")
		if len(h1) != 2 || h1[0].Msg != "a" || h1[1].Msg != "c" {
			t.Errorf("s1 history = %+v", h1)
		}
		if len(b.GetHistory("s2")) != 1 {
			t.Errorf("expected one s2 event")
		}
		if len(b.All()) != 3 {
			t.Errorf("expected 3 events overall")
		}
	})

	t.Run("unknown session returns empty slice", func(t *testing.T) {
		b := NewBufferedEmitter()
		h := b.GetHistory("missing")
		if h == nil || len(h) != 0 {
			t.Errorf("expected empty non-nil slice, got %#v", h)
		}
	})

	t.Run("filters by node and msg", func(t *testing.T) {
		b := NewBufferedEmitter()
		b.Emit(Event{SessionID: "s", NodeID: "x", Msg: "debug_step_end"})
		b.Emit(Event{SessionID: "s", NodeID: "y", Msg: "debug_step_end"})
		b.Emit(Event{SessionID: "s", NodeID: "x", Msg: "debug_step_failed"})

		got := b.GetHistoryWithFilter("s", HistoryFilter{NodeID: "x", Msg: "debug_step_end"})
		if len(got) != 1 {
			t.Fatalf("expected 1 event, got %d", len(got))
		}
		if b.Count("debug_step_end") != 2 {
			t.Errorf("Count = %d, want 2", b.Count("debug_step_end"))
		}
	})
}

func TestBufferedEmitter_Clear(t *testing.T) {
	b := NewBufferedEmitter()
	b.Emit(Event{SessionID: "s1", Msg: "a"})
	b.Emit(Event{SessionID: "s2", Msg: "b"})

	b.Clear("s1")
	if len(b.GetHistory("s1")) != 0 {
		t.Error("s1 should be cleared")
	}
	if len(b.All()) != 1 {
		t.Errorf("expected 1 remaining event, got %d", len(b.All()))
	}

	b.Clear("")
	if len(b.All()) != 0 {
		t.Error("expected everything cleared")
	}
}

func TestBufferedEmitter_Concurrent(t *testing.T) {
	b := NewBufferedEmitter()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Emit(Event{SessionID: "s", Msg: "tick"})
		}()
	}
	wg.Wait()

	if got := b.Count("tick"); got != 20 {
		t.Errorf("Count = %d, want 20", got)
	}
}
