package emit

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestLogEmitter_TextMode(t *testing.T) {
	t.Run("writes all fields", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{
			SessionID: "sess-1",
			Step:      2,
			NodeID:    "chat",
			Msg:       "debug_step_end",
			Meta:      map[string]interface{}{"duration_ms": 12},
		})

		out := buf.String()
		for _, want := range []string{"[debug_step_end]", "session=sess-1", "step=2", "node=chat", `meta={"duration_ms":12}`} {
			if !strings.Contains(out, want) {
				t.Errorf("output %q missing %q", out, want)
			}
		}
	})

	t.Run("omits empty fields", func(t *testing.T) {
		var buf bytes.Buffer
		emitter := NewLogEmitter(&buf, false)

		emitter.Emit(Event{Msg: "history_commit"})

		if got := buf.String(); got != "[history_commit]\n" {
			t.Errorf("output = %q, want %q", got, "[history_commit]\n")
		}
	})
}

func TestLogEmitter_JSONMode(t *testing.T) {
	var buf bytes.Buffer
	emitter := NewLogEmitter(&buf, true)

	emitter.Emit(Event{SessionID: "s", Step: 1, NodeID: "a", Msg: "debug_step_start"})
	emitter.Emit(Event{SessionID: "s", Step: 1, NodeID: "a", Msg: "debug_step_end"})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), buf.String())
	}

	var decoded struct {
		Session string `json:"session"`
		Step    int    `json:"step"`
		Node    string `json:"node"`
		Msg     string `json:"msg"`
	}
	if err := json.Unmarshal([]byte(lines[1]), &decoded); err != nil {
		t.Fatalf("line is not JSON: %v", err)
	}
	if decoded.Msg != "debug_step_end" || decoded.Node != "a" || decoded.Step != 1 || decoded.Session != "s" {
		t.Errorf("decoded = %+v", decoded)
	}
}

func TestNullEmitter(t *testing.T) {
	var e Emitter = NewNullEmitter()
	e.Emit(Event{Msg: "anything"})
}

func TestEmit_NilEmitter(t *testing.T) {
	// Must not panic.
	Emit(nil, Event{Msg: "ignored"})

	buf := NewBufferedEmitter()
	Emit(buf, Event{Msg: "kept"})
	if buf.Count("kept") != 1 {
		t.Errorf("expected event to be forwarded")
	}
}
