package editor

import (
	"errors"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/dshills/flowstudio-go/graph/debug"
	"github.com/dshills/flowstudio-go/graph/emit"
	"github.com/dshills/flowstudio-go/graph/history"
	"github.com/dshills/flowstudio-go/graph/store"
)

// Option configures a Session.
//
// Example:
//
//	s, err := editor.New(nodes, edges,
//	    editor.WithAppID("app-1"),
//	    editor.WithStore(store.NewMemStore()),
//	    editor.WithDispatcher(debug.NewHTTPDispatcher(url)),
//	)
type Option func(*config) error

type config struct {
	appID       string
	sessionID   string
	store       store.Store
	catalog     convert.Catalog
	dispatcher  debug.Dispatcher
	chatConfig  map[string]any
	emitter     emit.Emitter
	metrics     *graph.Metrics
	historyOpts []history.Option
	debugOpts   []debug.Option
}

// WithAppID sets the application whose versions the session reads and
// writes. Required when a store is configured.
func WithAppID(id string) Option {
	return func(cfg *config) error {
		if id == "" {
			return errors.New("app id must not be empty")
		}
		cfg.appID = id
		return nil
	}
}

// WithSessionID overrides the generated session id used to tag events.
func WithSessionID(id string) Option {
	return func(cfg *config) error {
		if id == "" {
			return errors.New("session id must not be empty")
		}
		cfg.sessionID = id
		return nil
	}
}

// WithStore enables SaveVersion and LoadVersion. The session does not close
// the store.
func WithStore(s store.Store) Option {
	return func(cfg *config) error {
		cfg.store = s
		return nil
	}
}

// WithCatalog sets the template catalog used to rehydrate loaded versions.
//
// Default: convert.Builtin().
func WithCatalog(c convert.Catalog) Option {
	return func(cfg *config) error {
		cfg.catalog = c
		return nil
	}
}

// WithDispatcher enables debugging through d.
func WithDispatcher(d debug.Dispatcher) Option {
	return func(cfg *config) error {
		cfg.dispatcher = d
		return nil
	}
}

// WithChatConfig sets the initial app-level chat configuration recorded
// alongside the graph in snapshots and versions.
func WithChatConfig(c map[string]any) Option {
	return func(cfg *config) error {
		cfg.chatConfig = graph.CloneMap(c)
		return nil
	}
}

// WithEmitter is shared by the graph, history and debug engine.
func WithEmitter(e emit.Emitter) Option {
	return func(cfg *config) error {
		cfg.emitter = e
		return nil
	}
}

// WithMetrics is shared by the graph, history and debug engine.
func WithMetrics(m *graph.Metrics) Option {
	return func(cfg *config) error {
		cfg.metrics = m
		return nil
	}
}

// WithHistoryOptions passes extra options to the history Manager.
func WithHistoryOptions(opts ...history.Option) Option {
	return func(cfg *config) error {
		cfg.historyOpts = append(cfg.historyOpts, opts...)
		return nil
	}
}

// WithDebugOptions passes extra options to the debug Engine.
func WithDebugOptions(opts ...debug.Option) Option {
	return func(cfg *config) error {
		cfg.debugOpts = append(cfg.debugOpts, opts...)
		return nil
	}
}
