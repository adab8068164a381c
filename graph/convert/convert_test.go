package convert

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/emit"
)

func sampleGraph() ([]graph.Node, []graph.Edge) {
	nodes := []graph.Node{
		{
			ID: "start", Type: graph.TypeWorkflowStart, Name: "Start",
			Outputs: []graph.OutputItem{{Key: "userChatInput", Kind: graph.OutputStatic}},
		},
		{
			ID: "chat", Type: graph.TypeChat, Name: "Chat", Selected: true,
			DebugResult: &graph.DebugResult{Status: graph.StatusSuccess},
			Inputs:      []graph.InputItem{{Key: "model", Value: "gpt-4o"}},
			Outputs: []graph.OutputItem{
				{Key: "answerText", Kind: graph.OutputStatic},
				{Key: "error", Kind: graph.OutputError},
			},
		},
		{ID: "reply", Type: graph.TypeAnswer, Name: "Reply"},
	}
	edges := []graph.Edge{
		{Source: "start", SourceHandle: "start-source-right", Target: "chat", TargetHandle: "chat-target-left", Status: graph.EdgeActive},
		{Source: "chat", SourceHandle: "chat-source-right", Target: "reply", TargetHandle: "reply-target-left"},
		{Source: "chat", SourceHandle: "chat-source-catch", Target: "reply", TargetHandle: "reply-target-left"},
	}
	return nodes, edges
}

func TestToPersisted(t *testing.T) {
	nodes, edges := sampleGraph()

	t.Run("drops view state", func(t *testing.T) {
		pg := ToPersisted(nodes, edges)
		if len(pg.Nodes) != 3 || len(pg.Edges) != 3 {
			t.Fatalf("got %d nodes, %d edges", len(pg.Nodes), len(pg.Edges))
		}
		if pg.Nodes[1].NodeID != "chat" || pg.Nodes[1].Inputs[0].Value != "gpt-4o" {
			t.Errorf("node = %+v", pg.Nodes[1])
		}
	})

	t.Run("dangling handles are filtered", func(t *testing.T) {
		withGhost := append(append([]graph.Edge(nil), edges...),
			graph.Edge{Source: "chat", SourceHandle: "chat-source-removed", Target: "reply", TargetHandle: "reply-target-left"},
			graph.Edge{Source: "gone", SourceHandle: "gone-source-right", Target: "reply", TargetHandle: "reply-target-left"},
			graph.Edge{Source: "chat", SourceHandle: "chat-source-right", Target: "start", TargetHandle: "start-target-left"},
		)
		pg := ToPersisted(nodes, withGhost)
		if len(pg.Edges) != 3 {
			t.Errorf("kept %d edges, want 3", len(pg.Edges))
		}
		if got := DroppedEdges(nodes, withGhost); len(got) != 3 {
			t.Errorf("DroppedEdges = %d, want 3", len(got))
		}
	})

	t.Run("folded source keeps its edges", func(t *testing.T) {
		folded := append([]graph.Node(nil), nodes...)
		folded[1].Folded = true
		pg := ToPersisted(folded, edges)
		if len(pg.Edges) != 3 {
			t.Errorf("kept %d edges, want 3", len(pg.Edges))
		}
		if !pg.Nodes[1].IsFolded {
			t.Error("fold state not persisted")
		}
	})

	t.Run("folded container keeps its body edges", func(t *testing.T) {
		body := []graph.Node{
			{ID: "loop", Type: graph.TypeLoop, Name: "Loop", Folded: true},
			{ID: "ls", Type: graph.TypeLoopStart, ParentID: "loop"},
			{ID: "inner", Type: graph.TypeChat, ParentID: "loop"},
			{ID: "after", Type: graph.TypeAnswer},
		}
		bodyEdges := []graph.Edge{
			{Source: "ls", SourceHandle: "ls-source-right", Target: "inner", TargetHandle: "inner-target-left"},
			{Source: "inner", SourceHandle: "inner-source-right", Target: "after", TargetHandle: "after-target-left"},
			{Source: "inner", SourceHandle: "inner-source-removed", Target: "after", TargetHandle: "after-target-left"},
		}

		pg := ToPersisted(body, bodyEdges)
		if len(pg.Edges) != 2 {
			t.Fatalf("folded: kept %d edges, want 2", len(pg.Edges))
		}
		if pg.Edges[0].Source != "ls" || pg.Edges[1].Source != "inner" {
			t.Errorf("edges = %+v", pg.Edges)
		}
		if got := DroppedEdges(body, bodyEdges); len(got) != 1 || got[0].SourceHandle != "inner-source-removed" {
			t.Errorf("DroppedEdges = %+v", got)
		}

		body[0].Folded = false
		if got := ToPersisted(body, bodyEdges); len(got.Edges) != 2 {
			t.Errorf("unfolded: kept %d edges, want 2", len(got.Edges))
		}
	})

	t.Run("deterministic", func(t *testing.T) {
		a, b := ToPersisted(nodes, edges), ToPersisted(nodes, edges)
		if diff := cmp.Diff(a, b); diff != "" {
			t.Errorf("outputs differ:\n%s", diff)
		}
	})
}

func TestToEditable(t *testing.T) {
	ctx := context.Background()

	t.Run("round trip", func(t *testing.T) {
		nodes, edges := sampleGraph()
		pg := ToPersisted(nodes, edges)

		gotNodes, gotEdges, err := ToEditable(ctx, pg, nil)
		if err != nil {
			t.Fatalf("ToEditable: %v", err)
		}

		wantNodes := append([]graph.Node(nil), nodes...)
		wantNodes[1].Selected = false
		wantNodes[1].DebugResult = nil
		if diff := cmp.Diff(wantNodes, gotNodes); diff != "" {
			t.Errorf("nodes mismatch (-want +got):\n%s", diff)
		}
		for i := range gotEdges {
			if gotEdges[i].Status != "" {
				t.Errorf("edge %d carries status %q", i, gotEdges[i].Status)
			}
			if !gotEdges[i].SameEndpoints(edges[i]) {
				t.Errorf("edge %d = %+v", i, gotEdges[i])
			}
		}
	})

	t.Run("template merge", func(t *testing.T) {
		pg := PersistedGraph{Nodes: []StoreNode{{
			NodeID:       "chat",
			FlowNodeType: graph.TypeChat,
			Inputs:       []graph.InputItem{{Key: "model", Value: "claude"}},
		}}}
		nodes, _, err := ToEditable(ctx, pg, Builtin())
		if err != nil {
			t.Fatalf("ToEditable: %v", err)
		}
		n := nodes[0]
		if n.Name != "AI chat" {
			t.Errorf("Name = %q", n.Name)
		}
		model, _ := n.Input("model")
		if model.Value != "claude" || model.Label != "AI model" {
			t.Errorf("model = %+v", model)
		}
		if _, ok := n.Input("systemPrompt"); !ok {
			t.Error("template-only input not appended")
		}
		if n.Inputs[0].Key != "model" {
			t.Error("stored items must come first")
		}
		if _, ok := n.Output("error"); !ok {
			t.Error("template-only output not appended")
		}
	})

	t.Run("missing template keeps node", func(t *testing.T) {
		emitter := emit.NewBufferedEmitter()
		pg := PersistedGraph{Nodes: []StoreNode{{NodeID: "x", FlowNodeType: "customThing", Name: "Custom"}}}
		nodes, _, err := ToEditable(ctx, pg, NewMemoryCatalog(), WithEmitter(emitter, "s1"))
		if err != nil {
			t.Fatalf("ToEditable: %v", err)
		}
		if nodes[0].Name != "Custom" {
			t.Errorf("node = %+v", nodes[0])
		}
		if emitter.Count("template_missing") != 1 {
			t.Error("expected template_missing event")
		}
	})

	t.Run("catalog failure", func(t *testing.T) {
		pg := PersistedGraph{Nodes: []StoreNode{{NodeID: "x", FlowNodeType: graph.TypeChat}}}
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, _, err := ToEditable(cctx, pg, Builtin())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("err = %v, want context.Canceled", err)
		}
	})
}

func TestMemoryCatalog_Plugin(t *testing.T) {
	c := NewMemoryCatalog(
		Template{Type: graph.TypeChat, Name: "generic"},
		Template{Type: graph.TypeChat, PluginID: "p1", Name: "plugin"},
	)
	ctx := context.Background()

	got, err := c.Template(ctx, graph.TypeChat, "p1")
	if err != nil || got.Name != "plugin" {
		t.Errorf("plugin lookup = %+v, %v", got, err)
	}
	got, err = c.Template(ctx, graph.TypeChat, "unknown")
	if err != nil || got.Name != "generic" {
		t.Errorf("fallback lookup = %+v, %v", got, err)
	}
	if _, err := c.Template(ctx, graph.TypeLoop, ""); !errors.Is(err, ErrTemplateNotFound) {
		t.Errorf("err = %v, want ErrTemplateNotFound", err)
	}
}

func TestBuiltin_CoversCommonTypes(t *testing.T) {
	c := Builtin()
	for _, nt := range []graph.NodeType{
		graph.TypeWorkflowStart, graph.TypeChat, graph.TypeIfElse, graph.TypeUserSelect,
		graph.TypeFormInput, graph.TypeLoop, graph.TypeLoopStart, graph.TypeLoopEnd,
		graph.TypeDatasetSearch, graph.TypeTools, graph.TypeAnswer, graph.TypePluginInput,
		graph.TypePluginOutput, graph.TypeHTTPRequest,
	} {
		if _, err := c.Template(context.Background(), nt, ""); err != nil {
			t.Errorf("%s: %v", nt, err)
		}
	}
}

func TestToRuntime(t *testing.T) {
	nodes, edges := sampleGraph()
	pg := ToPersisted(nodes, edges)

	rn, re := ToRuntime(pg, []string{"start"})
	if len(rn) != 3 || len(re) != 3 {
		t.Fatalf("got %d nodes, %d edges", len(rn), len(re))
	}
	if !rn[0].IsEntry || rn[1].IsEntry {
		t.Errorf("entry flags = %v, %v", rn[0].IsEntry, rn[1].IsEntry)
	}
	for _, e := range re {
		if e.Status != graph.EdgeWaiting {
			t.Errorf("edge status = %q, want waiting", e.Status)
		}
	}
}

func TestCodec(t *testing.T) {
	nodes, edges := sampleGraph()
	pg := ToPersisted(nodes, edges)
	pg.ChatConfig = map[string]any{"welcomeText": "hi"}

	for _, format := range []Format{FormatJSON, FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Encode(&buf, pg, format); err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(&buf, format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if diff := cmp.Diff(pg, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		})
	}

	t.Run("format from path", func(t *testing.T) {
		if FormatFromPath("flow.YML") != FormatYAML || FormatFromPath("flow.json") != FormatJSON {
			t.Error("unexpected format detection")
		}
	})

	t.Run("unknown format", func(t *testing.T) {
		if _, err := Decode(bytes.NewReader(nil), "toml"); err == nil {
			t.Error("expected error")
		}
	})
}
