package convert

import (
	"context"
	"errors"
	"fmt"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/emit"
)

// Option configures ToEditable.
type Option func(*options)

type options struct {
	emitter   emit.Emitter
	sessionID string
}

// WithEmitter reports nodes whose template could not be found.
func WithEmitter(e emit.Emitter, sessionID string) Option {
	return func(o *options) {
		o.emitter = e
		o.sessionID = sessionID
	}
}

// ToEditable rehydrates a stored graph into live nodes and edges.
//
// Each stored node is merged with its catalog template: stored inputs and
// outputs win, items only the template knows are appended, and empty
// metadata (labels, render and value types, descriptions) is filled from the
// template. Nodes without a template are kept as stored. A nil catalog
// behaves like an empty one.
func ToEditable(ctx context.Context, pg PersistedGraph, catalog Catalog, opts ...Option) ([]graph.Node, []graph.Edge, error) {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	nodes := make([]graph.Node, 0, len(pg.Nodes))
	for _, sn := range pg.Nodes {
		n := editableNode(sn)
		if catalog != nil {
			tmpl, err := catalog.Template(ctx, sn.FlowNodeType, sn.PluginID)
			switch {
			case err == nil:
				n = mergeTemplate(n, tmpl)
			case errors.Is(err, ErrTemplateNotFound):
				emit.Emit(o.emitter, emit.Event{
					SessionID: o.sessionID,
					NodeID:    sn.NodeID,
					Msg:       "template_missing",
					Meta:      map[string]interface{}{"flowNodeType": string(sn.FlowNodeType), "pluginId": sn.PluginID},
				})
			default:
				return nil, nil, fmt.Errorf("template for node %s: %w", sn.NodeID, err)
			}
		}
		nodes = append(nodes, n)
	}

	edges := make([]graph.Edge, 0, len(pg.Edges))
	for _, e := range pg.Edges {
		edges = append(edges, graph.Edge{
			Source:       e.Source,
			SourceHandle: e.SourceHandle,
			Target:       e.Target,
			TargetHandle: e.TargetHandle,
		})
	}
	return nodes, edges, nil
}

func editableNode(sn StoreNode) graph.Node {
	return graph.Node{
		ID:       sn.NodeID,
		Type:     sn.FlowNodeType,
		ParentID: sn.ParentNodeID,
		Name:     sn.Name,
		Intro:    sn.Intro,
		Avatar:   sn.Avatar,
		PluginID: sn.PluginID,
		Version:  sn.Version,
		Position: sn.Position,
		Folded:   sn.IsFolded,
		Inputs:   append([]graph.InputItem(nil), sn.Inputs...),
		Outputs:  append([]graph.OutputItem(nil), sn.Outputs...),
	}
}

func mergeTemplate(n graph.Node, t Template) graph.Node {
	n.Name = orDefault(n.Name, t.Name)
	n.Intro = orDefault(n.Intro, t.Intro)
	n.Avatar = orDefault(n.Avatar, t.Avatar)
	n.Version = orDefault(n.Version, t.Version)

	n.Inputs = mergeItems(n.Inputs, t.Inputs,
		func(in graph.InputItem) string { return in.Key },
		func(stored, tmpl graph.InputItem) graph.InputItem {
			stored.Label = orDefault(stored.Label, tmpl.Label)
			stored.Description = orDefault(stored.Description, tmpl.Description)
			stored.RenderType = orDefault(stored.RenderType, tmpl.RenderType)
			stored.ValueType = orDefault(stored.ValueType, tmpl.ValueType)
			return stored
		})
	n.Outputs = mergeItems(n.Outputs, t.Outputs,
		func(out graph.OutputItem) string { return out.Key },
		func(stored, tmpl graph.OutputItem) graph.OutputItem {
			stored.Label = orDefault(stored.Label, tmpl.Label)
			stored.Description = orDefault(stored.Description, tmpl.Description)
			stored.ValueType = orDefault(stored.ValueType, tmpl.ValueType)
			stored.Kind = orDefault(stored.Kind, tmpl.Kind)
			return stored
		})
	return n
}

func mergeItems[T any](stored, tmpl []T, keyOf func(T) string, fill func(stored, tmpl T) T) []T {
	byKey := make(map[string]T, len(tmpl))
	for _, t := range tmpl {
		byKey[keyOf(t)] = t
	}

	out := make([]T, 0, len(stored)+len(tmpl))
	seen := make(map[string]bool, len(stored))
	for _, s := range stored {
		k := keyOf(s)
		seen[k] = true
		if t, ok := byKey[k]; ok {
			s = fill(s, t)
		}
		out = append(out, s)
	}
	for _, t := range tmpl {
		if !seen[keyOf(t)] {
			out = append(out, t)
		}
	}
	return out
}

func orDefault[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
