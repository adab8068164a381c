package graph

import (
	"errors"

	"github.com/dshills/flowstudio-go/graph/emit"
)

// Option is a functional option for configuring a Graph.
//
// Example:
//
//	g, err := graph.NewGraph(nodes, edges,
//	    graph.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	    graph.WithMetrics(graph.NewMetrics(registry)),
//	)
type Option func(*graphConfig) error

type graphConfig struct {
	emitter   emit.Emitter
	metrics   *Metrics
	sessionID string
}

// WithEmitter reports applied and rejected mutations as events.
//
// Default: no events.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *graphConfig) error {
		cfg.emitter = e
		return nil
	}
}

// WithMetrics records mutation counters.
func WithMetrics(m *Metrics) Option {
	return func(cfg *graphConfig) error {
		cfg.metrics = m
		return nil
	}
}

// WithSessionID tags emitted events with the owning editing session.
func WithSessionID(id string) Option {
	return func(cfg *graphConfig) error {
		if id == "" {
			return errors.New("session id must not be empty")
		}
		cfg.sessionID = id
		return nil
	}
}
