package emit

// Event is a single observation emitted by the editing or debug core.
//
// Common Msg values:
//   - "mutation_applied", "mutation_rejected": graph reducer outcomes
//   - "edges_removed": edge integrity cleanup
//   - "history_commit", "history_deferred", "history_undo", "history_redo"
//   - "debug_step_start", "debug_step_end", "debug_step_failed", "debug_interactive"
//   - "template_missing": converter could not rehydrate a node
type Event struct {
	// SessionID identifies the editing or debug session that emitted this event.
	// Empty for events raised outside a session.
	SessionID string

	// Step is the debug step number (1-indexed). Zero for editing events.
	Step int

	// NodeID identifies the node the event is about, if any.
	NodeID string

	// Msg is a short machine-friendly description of the event.
	Msg string

	// Meta holds additional structured data. Keys emitted today:
	//   - "kind": mutation kind (mutation_applied, mutation_rejected)
	//   - "error": error text (mutation_rejected, debug_step_failed, history resets)
	//   - "count", "cascade": removed edge count (edges_removed)
	//   - "entries": participating node ids (debug_start, debug_step_start)
	//   - "latency_ms", "stale": dispatch round-trip and whether the graph moved on
	//   - "next": entry node ids of the following step (debug_step_end)
	//   - "type": interactive kind (debug_interactive)
	//   - "title", "retried", "revertedFrom": history snapshot details
	//   - "versionId", "published", "droppedEdges": version saves and loads
	Meta map[string]interface{}
}
