package emit

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/bytedance/sonic"
)

// LogEmitter writes events to a writer, one per line.
//
// Text mode (default):
//
//	[debug_step_end] session=4f1c step=2 node=chat-1 meta={"latency_ms":412}
//
// JSON mode:
//
//	{"session":"4f1c","step":2,"node":"chat-1","msg":"debug_step_end","meta":{"latency_ms":412}}
//
// Usage:
//
//	emitter := emit.NewLogEmitter(os.Stderr, false)
//	g, _ := graph.NewGraph(nodes, edges, graph.WithEmitter(emitter))
type LogEmitter struct {
	mu       sync.Mutex
	writer   io.Writer
	jsonMode bool
}

// NewLogEmitter creates a LogEmitter. A nil writer defaults to os.Stdout.
func NewLogEmitter(writer io.Writer, jsonMode bool) *LogEmitter {
	if writer == nil {
		writer = os.Stdout
	}
	return &LogEmitter{
		writer:   writer,
		jsonMode: jsonMode,
	}
}

// Emit writes event in the configured format.
func (l *LogEmitter) Emit(event Event) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.jsonMode {
		l.emitJSON(event)
	} else {
		l.emitText(event)
	}
}

func (l *LogEmitter) emitJSON(event Event) {
	data, err := sonic.ConfigStd.Marshal(struct {
		SessionID string                 `json:"session"`
		Step      int                    `json:"step"`
		NodeID    string                 `json:"node"`
		Msg       string                 `json:"msg"`
		Meta      map[string]interface{} `json:"meta,omitempty"`
	}{
		SessionID: event.SessionID,
		Step:      event.Step,
		NodeID:    event.NodeID,
		Msg:       event.Msg,
		Meta:      event.Meta,
	})
	if err != nil {
		fmt.Fprintf(l.writer, "{\"error\":\"failed to marshal event: %v\"}\n", err)
		return
	}

	fmt.Fprintf(l.writer, "%s\n", data)
}

func (l *LogEmitter) emitText(event Event) {
	fmt.Fprintf(l.writer, "[%s]", event.Msg)
	if event.SessionID != "" {
		fmt.Fprintf(l.writer, " session=%s", event.SessionID)
	}
	if event.Step > 0 {
		fmt.Fprintf(l.writer, " step=%d", event.Step)
	}
	if event.NodeID != "" {
		fmt.Fprintf(l.writer, " node=%s", event.NodeID)
	}

	if len(event.Meta) > 0 {
		metaJSON, err := sonic.ConfigStd.Marshal(event.Meta)
		if err == nil {
			fmt.Fprintf(l.writer, " meta=%s", metaJSON)
		} else {
			fmt.Fprintf(l.writer, " meta=%v", event.Meta)
		}
	}

	fmt.Fprint(l.writer, "\n")
}
