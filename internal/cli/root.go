// Package cli implements the flowctl commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/dshills/flowstudio-go/graph/editor"
	"github.com/dshills/flowstudio-go/graph/emit"
	"github.com/dshills/flowstudio-go/graph/history"
	"github.com/dshills/flowstudio-go/internal/config"
)

// app carries the state shared by every command of one invocation.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	envFile    string
	verbose    bool

	cfg config.Config
}

// Execute runs flowctl with os.Args.
func Execute(in io.Reader, out, errOut io.Writer) error {
	return NewRootCmd(in, out, errOut).ExecuteContext(context.Background())
}

// NewRootCmd builds the flowctl command tree writing to out and errOut.
func NewRootCmd(in io.Reader, out, errOut io.Writer) *cobra.Command {
	a := &app{in: in, out: out, errOut: errOut}

	root := &cobra.Command{
		Use:   "flowctl",
		Short: "Workflow graph tooling",
		Long: `flowctl validates stored workflow graphs, steps them through a dispatch
service for debugging, and manages saved versions.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath, a.envFile)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading FLOWCTL_* variables")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log events to stderr")

	root.AddCommand(a.validateCmd(), a.debugCmd(), a.versionsCmd())
	return root
}

// emitter returns the event sink for this invocation, or nil when quiet.
func (a *app) emitter() emit.Emitter {
	if !a.verbose {
		return nil
	}
	return emit.NewLogEmitter(a.errOut, a.cfg.Log.Format == "json")
}

// sessionOptions are the editor options every command shares.
func (a *app) sessionOptions(chatConfig map[string]any) []editor.Option {
	return []editor.Option{
		editor.WithAppID(a.cfg.AppID),
		editor.WithChatConfig(chatConfig),
		editor.WithEmitter(a.emitter()),
		editor.WithHistoryOptions(
			history.WithCapacity(a.cfg.History.Capacity),
			history.WithRetryDelay(a.cfg.History.RetryDelay),
		),
	}
}

// readGraph decodes a JSON or YAML persisted graph, picking the format from
// the file extension.
func readGraph(path string) (convert.PersistedGraph, error) {
	f, err := os.Open(path)
	if err != nil {
		return convert.PersistedGraph{}, err
	}
	defer func() { _ = f.Close() }()

	pg, err := convert.Decode(f, convert.FormatFromPath(path))
	if err != nil {
		return convert.PersistedGraph{}, fmt.Errorf("%s: %w", path, err)
	}
	return pg, nil
}

// entryNodes returns the top-level nodes that start a run.
func entryNodes(nodes []graph.Node) []string {
	var ids []string
	for _, n := range nodes {
		if graph.IsEntryType(n.Type) && n.ParentID == "" {
			ids = append(ids, n.ID)
		}
	}
	return ids
}
