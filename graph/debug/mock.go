package debug

import (
	"context"
	"sync"
)

// MockDispatcher is a scripted Dispatcher for tests and demos.
//
// Each call returns the next entry of Responses (the last one repeats once
// the script is exhausted), or Err when set. Calls records every request.
//
// Example usage:
//
//	mock := &debug.MockDispatcher{
//	    Responses: []debug.Response{{
//	        EntryNodeIDs:  []string{"chat"},
//	        NodeResponses: map[string]debug.NodeResponse{"start": {Type: debug.NodeRun}},
//	    }},
//	}
//	engine, _ := debug.New(g, mock)
type MockDispatcher struct {
	// Responses is the scripted sequence of answers.
	Responses []Response

	// Err, if set, is returned instead of a response.
	Err error

	// Calls tracks every request received.
	Calls []Request

	// Gate, if set, blocks each call until a value is received or the
	// context ends.
	Gate chan struct{}

	mu        sync.Mutex
	callIndex int
}

// Dispatch implements Dispatcher.
func (m *MockDispatcher) Dispatch(ctx context.Context, req Request) (Response, error) {
	if ctx.Err() != nil {
		return Response{}, ctx.Err()
	}

	m.mu.Lock()
	m.Calls = append(m.Calls, req)
	gate := m.Gate
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.Err != nil {
		return Response{}, m.Err
	}
	if len(m.Responses) == 0 {
		return Response{}, nil
	}

	idx := m.callIndex
	if idx >= len(m.Responses) {
		idx = len(m.Responses) - 1
	} else {
		m.callIndex++
	}
	return m.Responses[idx], nil
}

// SetErr changes the injected error.
func (m *MockDispatcher) SetErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Err = err
}

// Reset clears the call history and rewinds the script.
func (m *MockDispatcher) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = nil
	m.callIndex = 0
}

// CallCount returns the number of calls received.
func (m *MockDispatcher) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

// LastCall returns the most recent request.
func (m *MockDispatcher) LastCall() (Request, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Calls) == 0 {
		return Request{}, false
	}
	return m.Calls[len(m.Calls)-1], true
}
