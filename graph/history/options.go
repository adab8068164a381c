package history

import (
	"errors"
	"time"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/emit"
)

// DefaultCapacity is the number of snapshots kept on the past stack.
const DefaultCapacity = 100

// TitleLayout formats default snapshot titles.
const TitleLayout = "2006-01-02 15:04:05"

// Option configures a Manager.
type Option func(*config) error

type config struct {
	capacity   int
	retryDelay time.Duration
	now        func() time.Time
	emitter    emit.Emitter
	metrics    *graph.Metrics
	sessionID  string
}

func defaultConfig() config {
	return config{
		capacity: DefaultCapacity,
		now:      time.Now,
	}
}

// WithCapacity bounds the past stack. Default: 100.
func WithCapacity(n int) Option {
	return func(cfg *config) error {
		if n < 1 {
			return errors.New("capacity must be at least 1")
		}
		cfg.capacity = n
		return nil
	}
}

// WithRetryDelay switches deferred pushes from draining right after a reset
// to retrying on a timer after d. A new deferred push overwrites the pending
// one and restarts the timer.
//
// Default: 0 (drain as soon as the reset completes).
func WithRetryDelay(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errors.New("retry delay must not be negative")
		}
		cfg.retryDelay = d
		return nil
	}
}

// WithClock replaces time.Now for snapshot timestamps and default titles.
func WithClock(now func() time.Time) Option {
	return func(cfg *config) error {
		if now == nil {
			return errors.New("clock must not be nil")
		}
		cfg.now = now
		return nil
	}
}

// WithEmitter reports commits, deferrals, undos and redos.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *config) error {
		cfg.emitter = e
		return nil
	}
}

// WithMetrics records push outcomes and stack depth.
func WithMetrics(m *graph.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithSessionID tags emitted events.
func WithSessionID(id string) Option {
	return func(cfg *config) error {
		cfg.sessionID = id
		return nil
	}
}

// PushOption configures a single Push.
type PushOption func(*Snapshot)

// WithTitle overrides the timestamp title of the pushed snapshot.
func WithTitle(title string) PushOption {
	return func(s *Snapshot) {
		s.Title = title
	}
}

// Saved marks the pushed snapshot as saved.
func Saved() PushOption {
	return func(s *Snapshot) {
		s.IsSaved = true
	}
}
