package emit

import "sync"

// BufferedEmitter keeps every event in memory, grouped by session.
//
// It is meant for tests and for short-lived tooling that wants to inspect
// what happened after the fact (e.g. flowctl printing a step trace).
type BufferedEmitter struct {
	mu     sync.RWMutex
	order  []Event
	events map[string][]Event // sessionID -> events
}

// HistoryFilter selects events. Empty fields match everything; set fields
// are combined with AND.
type HistoryFilter struct {
	NodeID string
	Msg    string
}

// NewBufferedEmitter creates an empty BufferedEmitter.
func NewBufferedEmitter() *BufferedEmitter {
	return &BufferedEmitter{
		events: make(map[string][]Event),
	}
}

// Emit stores event.
func (b *BufferedEmitter) Emit(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.order = append(b.order, event)
	b.events[event.SessionID] = append(b.events[event.SessionID], event)
}

// All returns every stored event in emission order.
func (b *BufferedEmitter) All() []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := make([]Event, len(b.order))
	copy(result, b.order)
	return result
}

// GetHistory returns the events of one session in emission order.
// The result is never nil.
func (b *BufferedEmitter) GetHistory(sessionID string) []Event {
	return b.GetHistoryWithFilter(sessionID, HistoryFilter{})
}

// GetHistoryWithFilter returns the events of one session matching filter.
func (b *BufferedEmitter) GetHistoryWithFilter(sessionID string, filter HistoryFilter) []Event {
	b.mu.RLock()
	defer b.mu.RUnlock()

	result := []Event{}
	for _, event := range b.events[sessionID] {
		if filter.matches(event) {
			result = append(result, event)
		}
	}
	return result
}

// Count returns how many events across all sessions carry msg.
func (b *BufferedEmitter) Count(msg string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := 0
	for _, event := range b.order {
		if event.Msg == msg {
			n++
		}
	}
	return n
}

// Clear drops the events of sessionID, or of every session when sessionID is empty.
func (b *BufferedEmitter) Clear(sessionID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sessionID == "" {
		b.order = nil
		b.events = make(map[string][]Event)
		return
	}

	delete(b.events, sessionID)
	kept := b.order[:0:0]
	for _, event := range b.order {
		if event.SessionID != sessionID {
			kept = append(kept, event)
		}
	}
	b.order = kept
}

func (f HistoryFilter) matches(event Event) bool {
	if f.NodeID != "" && event.NodeID != f.NodeID {
		return false
	}
	if f.Msg != "" && event.Msg != f.Msg {
		return false
	}
	return true
}
