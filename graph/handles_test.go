package graph

import (
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func handleList(s HandleSet) []string {
	out := make([]string, 0, len(s))
	for h := range s {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}

func TestExposedHandles(t *testing.T) {
	t.Run("entry node has no target handle", func(t *testing.T) {
		got := handleList(ExposedHandles([]Node{startNode("s")}))
		want := []string{"s-source-right"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("handles mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("error output exposes catch", func(t *testing.T) {
		got := handleList(ExposedHandles([]Node{chatNode("a", true)}))
		want := []string{"a-source-catch", "a-source-right", "a-target-left"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("handles mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("source outputs replace the default handle", func(t *testing.T) {
		n := Node{ID: "sel", Type: TypeUserSelect, Outputs: []OutputItem{
			{Key: "opt-1", Kind: OutputSource},
			{Key: "opt-2", Kind: OutputSource},
			{Key: "selectResult", Kind: OutputStatic},
		}}
		got := handleList(ExposedHandles([]Node{n}))
		want := []string{"sel-source-opt-1", "sel-source-opt-2", "sel-target-left"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("handles mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("terminal node has no default source", func(t *testing.T) {
		n := Node{ID: "out", Type: TypePluginOutput}
		got := handleList(ExposedHandles([]Node{n}))
		if diff := cmp.Diff([]string{"out-target-left"}, got); diff != "" {
			t.Errorf("handles mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("folded node keeps only its target handle", func(t *testing.T) {
		n := chatNode("a", true)
		n.Folded = true
		got := handleList(ExposedHandles([]Node{n}))
		if diff := cmp.Diff([]string{"a-target-left"}, got); diff != "" {
			t.Errorf("handles mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("children of a folded container expose nothing", func(t *testing.T) {
		loop := Node{ID: "loop", Type: TypeLoop, Folded: true}
		inner := chatNode("inner", false)
		inner.ParentID = "loop"
		deeper := chatNode("deeper", false)
		deeper.ParentID = "inner"

		nodes := []Node{loop, inner, deeper}
		set := ExposedHandles(nodes)
		for _, h := range []string{"inner-target-left", "deeper-source-right"} {
			if set.Has(h) {
				t.Errorf("hidden handle %s exposed", h)
			}
		}
		if !IsHidden(nodes, deeper) {
			t.Error("grandchild of folded loop should be hidden")
		}
		if IsHidden(nodes, loop) {
			t.Error("folded container itself is not hidden")
		}
	})

	t.Run("parent cycle does not hang", func(t *testing.T) {
		a := chatNode("a", false)
		a.ParentID = "b"
		b := chatNode("b", false)
		b.ParentID = "a"
		if IsHidden([]Node{a, b}, a) {
			t.Error("unfolded cycle should be visible")
		}
	})
}

func TestDeclaredHandles(t *testing.T) {
	nodes := []Node{
		{ID: "loop", Type: TypeLoop, Folded: true},
		{ID: "ls", Type: TypeLoopStart, ParentID: "loop"},
		{ID: "le", Type: TypeLoopEnd, ParentID: "loop"},
	}
	got := handleList(DeclaredHandles(nodes))
	want := []string{"le-target-left", "loop-source-right", "loop-target-left", "ls-source-right"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("handles mismatch (-want +got):\n%s", diff)
	}

	exposed := handleList(ExposedHandles(nodes))
	if diff := cmp.Diff([]string{"loop-target-left"}, exposed); diff != "" {
		t.Errorf("exposed mismatch (-want +got):\n%s", diff)
	}
}
