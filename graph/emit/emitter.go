// Package emit provides structured event emission for graph editing and debugging.
package emit

// Emitter receives events produced while a graph is edited, checkpointed or
// stepped through by the debugger.
//
// Implementations should be:
//   - Non-blocking: the editor calls Emit on its mutation path
//   - Thread-safe: debug steps complete on their own goroutine
//   - Resilient: failures are swallowed, never surfaced to the caller
type Emitter interface {
	// Emit sends an event to the configured backend.
	// Emit should not panic.
	Emit(event Event)
}

// Emit sends event to e when e is non-nil.
//
// Every package in this module accepts a nil Emitter to mean "do not emit";
// this helper keeps that check out of call sites.
func Emit(e Emitter, event Event) {
	if e == nil {
		return
	}
	e.Emit(event)
}
