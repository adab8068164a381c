package debug

import (
	"errors"
	"time"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/emit"
)

// Option configures an Engine.
type Option func(*config) error

type config struct {
	appID       string
	stepTimeout time.Duration
	emitter     emit.Emitter
	metrics     *graph.Metrics
	newID       func() string
}

// WithAppID sets the application id sent with every step.
func WithAppID(id string) Option {
	return func(cfg *config) error {
		cfg.appID = id
		return nil
	}
}

// WithStepTimeout bounds each dispatch call. Zero leaves the caller's
// context alone.
//
// Default: 0.
func WithStepTimeout(d time.Duration) Option {
	return func(cfg *config) error {
		if d < 0 {
			return errors.New("step timeout must not be negative")
		}
		cfg.stepTimeout = d
		return nil
	}
}

// WithEmitter reports step starts, ends, failures and interaction pauses.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *config) error {
		cfg.emitter = e
		return nil
	}
}

// WithMetrics records step latency, node outcomes and dispatch failures.
func WithMetrics(m *graph.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithIDGenerator replaces the session id generator (uuid by default).
func WithIDGenerator(fn func() string) Option {
	return func(cfg *config) error {
		if fn == nil {
			return errors.New("id generator must not be nil")
		}
		cfg.newID = fn
		return nil
	}
}
