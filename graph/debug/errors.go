package debug

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSession is returned when stepping without a started session.
	ErrNoSession = errors.New("no debug session")

	// ErrStepInFlight is returned when a step is requested while the
	// previous one is still waiting for the dispatch service.
	ErrStepInFlight = errors.New("debug step already in flight")

	// ErrAwaitingInteraction is returned by Next while the session waits for
	// user input; use Resume instead.
	ErrAwaitingInteraction = errors.New("debug session awaiting interaction")

	// ErrNotAwaiting is returned by Resume when no interaction is pending.
	ErrNotAwaiting = errors.New("debug session not awaiting interaction")

	// ErrFinished is returned by Next when no entry nodes remain.
	ErrFinished = errors.New("debug run finished")

	// ErrNoEntry is returned by Start without a usable entry node.
	ErrNoEntry = errors.New("no entry node")

	// ErrInvalidInteraction is returned by Resume for an answer that does not
	// fit the pending request.
	ErrInvalidInteraction = errors.New("invalid interaction input")
)

// EngineError reports a failed engine operation.
//
// Codes: DISPATCH_FAILED, ENTRY_NOT_FOUND.
type EngineError struct {
	Message string
	Code    string
	Cause   error
}

func (e *EngineError) Error() string {
	if e.Code != "" {
		return e.Code + ": " + e.Message
	}
	return e.Message
}

func (e *EngineError) Unwrap() error {
	return e.Cause
}

// DispatchError is returned by HTTPDispatcher for a non-2xx answer.
type DispatchError struct {
	StatusCode int
	Body       string
}

func (e *DispatchError) Error() string {
	body := e.Body
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("dispatch service returned %d: %s", e.StatusCode, body)
}
