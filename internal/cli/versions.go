package cli

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/dshills/flowstudio-go/graph/editor"
	"github.com/dshills/flowstudio-go/graph/store"
)

func (a *app) versionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "Manage saved workflow versions",
		Long: `Commands for the configured version store (store.driver / FLOWCTL_STORE_DRIVER).
Versions are scoped to the configured app id.`,
	}
	cmd.AddCommand(a.versionsListCmd(), a.versionsSaveCmd(), a.versionsShowCmd(), a.versionsDeleteCmd())
	return cmd
}

// withStore opens the configured store for the duration of fn.
func (a *app) withStore(ctx context.Context, fn func(store.Store) error) error {
	s, err := a.cfg.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() { _ = s.Close() }()
	return fn(s)
}

func (a *app) versionsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List versions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s store.Store) error {
				list, err := s.ListVersions(cmd.Context(), a.cfg.AppID, limit)
				if err != nil {
					return err
				}
				if len(list) == 0 {
					fmt.Fprintf(a.out, "no versions for %s\n", a.cfg.AppID)
					return nil
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tTITLE\tPUBLISHED\tNODES\tCREATED")
				for _, v := range list {
					fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\n",
						v.ID, v.Title, v.IsPublished, len(v.Graph.Nodes), v.CreatedAt.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum versions to list (0 for all)")
	return cmd
}

func (a *app) versionsSaveCmd() *cobra.Command {
	var (
		title   string
		publish bool
	)
	cmd := &cobra.Command{
		Use:   "save <graph-file>",
		Short: "Save a graph file as a new version",
		Long: `Save a JSON or YAML graph as a new version. Edges whose handles no longer
exist are dropped on the way in.

Examples:
  flowctl versions save flow.json --title "release 3" --publish`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pg, err := readGraph(args[0])
			if err != nil {
				return err
			}
			nodes, edges, err := convert.ToEditable(ctx, pg, convert.Builtin(),
				convert.WithEmitter(a.emitter(), "versions"))
			if err != nil {
				return err
			}

			return a.withStore(ctx, func(st store.Store) error {
				s, err := editor.New(nodes, edges, append(a.sessionOptions(pg.ChatConfig), editor.WithStore(st))...)
				if err != nil {
					return err
				}
				defer s.Close()

				v, err := s.SaveVersion(ctx, title, publish)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.out, "saved %s (%d nodes, %d edges)\n", v.ID, len(v.Graph.Nodes), len(v.Graph.Edges))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "version title")
	cmd.Flags().BoolVar(&publish, "publish", false, "mark the version published")
	return cmd
}

func (a *app) versionsShowCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "show <version-id|latest>",
		Short: "Print a stored version's graph",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := convert.Format(format)
			if f != convert.FormatJSON && f != convert.FormatYAML {
				return fmt.Errorf("unsupported format: %s (use 'json' or 'yaml')", format)
			}
			ctx := cmd.Context()
			return a.withStore(ctx, func(s store.Store) error {
				var (
					v   store.Version
					err error
				)
				if args[0] == "latest" {
					v, err = s.LatestVersion(ctx, a.cfg.AppID)
				} else {
					v, err = s.LoadVersion(ctx, a.cfg.AppID, args[0])
				}
				if err != nil {
					return fmt.Errorf("version %s: %w", args[0], err)
				}
				return convert.Encode(a.out, v.Graph, f)
			})
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "output format: json, yaml")
	return cmd
}

func (a *app) versionsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <version-id>",
		Short: "Delete a stored version",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(s store.Store) error {
				if err := s.DeleteVersion(cmd.Context(), a.cfg.AppID, args[0]); err != nil {
					return fmt.Errorf("version %s: %w", args[0], err)
				}
				fmt.Fprintf(a.out, "deleted %s\n", args[0])
				return nil
			})
		},
	}
}
