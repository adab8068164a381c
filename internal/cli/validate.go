package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/convert"
)

func (a *app) validateCmd() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate <graph-file>",
		Short: "Check a stored workflow graph",
		Long: `Decode a JSON or YAML workflow graph, rehydrate it with the builtin node
templates and report problems: duplicate node ids or item keys, edges whose
handles no longer exist, and missing entry nodes.

Examples:
  flowctl validate flow.json
  flowctl validate flow.yaml --strict`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, args[0], strict)
		},
	}
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when dangling edges are found")
	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, path string, strict bool) error {
	pg, err := readGraph(path)
	if err != nil {
		return err
	}
	nodes, edges, err := convert.ToEditable(cmd.Context(), pg, convert.Builtin(),
		convert.WithEmitter(a.emitter(), "validate"))
	if err != nil {
		return err
	}
	if err := graph.Validate(nodes); err != nil {
		return fmt.Errorf("invalid graph: %w", err)
	}

	fmt.Fprintf(a.out, "%s: %d nodes, %d edges\n", path, len(nodes), len(edges))

	entries := entryNodes(nodes)
	if len(entries) == 0 {
		fmt.Fprintln(a.out, "  warning: no entry node")
	} else {
		fmt.Fprintf(a.out, "  entry nodes: %s\n", strings.Join(entries, ", "))
	}

	dropped := convert.DroppedEdges(nodes, edges)
	for _, e := range dropped {
		fmt.Fprintf(a.out, "  dangling edge: %s -> %s (%s -> %s)\n",
			e.Source, e.Target, e.SourceHandle, e.TargetHandle)
	}
	if len(dropped) > 0 && strict {
		return fmt.Errorf("%d dangling edges", len(dropped))
	}
	if len(dropped) == 0 {
		fmt.Fprintln(a.out, "  ok")
	}
	return nil
}
