package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/flowstudio-go/graph"
	"github.com/dshills/flowstudio-go/graph/convert"
	"github.com/dshills/flowstudio-go/graph/debug"
	"github.com/dshills/flowstudio-go/graph/editor"
)

const debugHelp = `commands: n (next step), s (stop); when asked, answer with an option key or key=value pairs`

func (a *app) debugCmd() *cobra.Command {
	var (
		entries     []string
		query       string
		dispatchURL string
	)

	cmd := &cobra.Command{
		Use:   "debug <graph-file>",
		Short: "Step a workflow graph through the dispatch service",
		Long: `Start a debug run over a stored workflow graph and step it interactively.
Each line read from stdin is a command:

  n, next, <empty>   run the next step
  s, stop            stop the run
  <key>              answer a select interaction with an option key
  k=v [k2=v2 ...]    answer a form interaction

The dispatch service is taken from the config (dispatch.url or
FLOWCTL_DISPATCH_URL) unless --dispatch-url is given.

Examples:
  flowctl debug flow.json
  flowctl debug flow.json --entry start --query "hello"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			url := dispatchURL
			if url == "" {
				url = a.cfg.Dispatch.URL
			}
			if url == "" {
				return errors.New("no dispatch service configured (set dispatch.url or FLOWCTL_DISPATCH_URL)")
			}
			return a.runDebug(cmd.Context(), args[0], url, entries, query)
		},
	}
	cmd.Flags().StringSliceVar(&entries, "entry", nil, "entry node ids (default: the graph's start nodes)")
	cmd.Flags().StringVar(&query, "query", "", "user query text for the first step")
	cmd.Flags().StringVar(&dispatchURL, "dispatch-url", "", "dispatch service URL")
	return cmd
}

func (a *app) runDebug(ctx context.Context, path, url string, entries []string, query string) error {
	pg, err := readGraph(path)
	if err != nil {
		return err
	}
	nodes, edges, err := convert.ToEditable(ctx, pg, convert.Builtin(),
		convert.WithEmitter(a.emitter(), "debug"))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		entries = entryNodes(nodes)
	}

	var httpOpts []debug.HTTPOption
	if a.cfg.Dispatch.Token != "" {
		httpOpts = append(httpOpts, debug.WithToken(a.cfg.Dispatch.Token))
	}
	if a.cfg.Dispatch.MaxAttempts > 1 {
		httpOpts = append(httpOpts, debug.WithRetry(debug.RetryPolicy{
			MaxAttempts: a.cfg.Dispatch.MaxAttempts,
			BaseDelay:   a.cfg.Dispatch.RetryBackoff,
		}))
	}
	s, err := editor.New(nodes, edges, append(a.sessionOptions(pg.ChatConfig),
		editor.WithDispatcher(debug.NewHTTPDispatcher(url, httpOpts...)),
		editor.WithDebugOptions(debug.WithStepTimeout(a.cfg.Dispatch.Timeout)),
	)...)
	if err != nil {
		return err
	}
	defer s.Close()

	var q []debug.UserContent
	if query != "" {
		q = []debug.UserContent{{Type: "text", Text: query}}
	}
	sess, err := s.StartDebug(ctx, entries, q)
	if err != nil && sess.ID == "" {
		return err
	}
	a.printStep(s.Graph(), sess, err)

	engine := s.Debug()
	scanner := bufio.NewScanner(a.in)
	for {
		if sess.Finished() {
			fmt.Fprintln(a.out, "run finished")
			return nil
		}
		fmt.Fprint(a.out, "> ")
		if !scanner.Scan() {
			engine.Stop()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "s" || line == "stop":
			engine.Stop()
			fmt.Fprintln(a.out, "stopped")
			return nil
		case sess.State == debug.AwaitingInteraction && line != "":
			in, perr := parseInteraction(sess.Interactive, line)
			if perr != nil {
				fmt.Fprintf(a.out, "  %v\n", perr)
				continue
			}
			sess, err = engine.Resume(ctx, in)
		case line == "" || line == "n" || line == "next":
			if sess.State == debug.AwaitingInteraction {
				fmt.Fprintln(a.out, "  waiting for an answer")
				continue
			}
			sess, err = engine.Next(ctx)
		default:
			fmt.Fprintln(a.out, debugHelp)
			continue
		}
		a.printStep(s.Graph(), sess, err)
	}
}

// printStep reports the node results of the last step and any pending
// interaction.
func (a *app) printStep(g *graph.Graph, sess debug.Session, err error) {
	fmt.Fprintf(a.out, "step %d: %s\n", sess.Step, sess.State)
	for _, n := range g.Nodes() {
		r := n.DebugResult
		if r == nil || r.Status == graph.StatusRunning {
			continue
		}
		line := fmt.Sprintf("  %-16s %s", n.ID, r.Status)
		if r.Message != "" {
			line += ": " + r.Message
		}
		fmt.Fprintln(a.out, line)
	}
	if err != nil {
		fmt.Fprintf(a.out, "  error: %v\n", err)
	}
	if len(sess.EntryNodeIDs) > 0 && sess.State != debug.AwaitingInteraction {
		fmt.Fprintf(a.out, "  next: %s\n", strings.Join(sess.EntryNodeIDs, ", "))
	}

	ir := sess.Interactive
	if sess.State != debug.AwaitingInteraction || ir == nil {
		return
	}
	if ir.Description != "" {
		fmt.Fprintf(a.out, "  %s\n", ir.Description)
	}
	switch ir.Type {
	case debug.InteractionSelect:
		for _, opt := range ir.Options {
			fmt.Fprintf(a.out, "  [%s] %s\n", opt.Key, opt.Value)
		}
	case debug.InteractionForm:
		for _, f := range ir.Fields {
			req := ""
			if f.Required {
				req = " (required)"
			}
			fmt.Fprintf(a.out, "  %s: %s%s\n", f.Key, f.Label, req)
		}
	}
}

// parseInteraction turns an input line into an answer for ir.
func parseInteraction(ir *debug.InteractiveRequest, line string) (debug.InteractionInput, error) {
	if ir == nil {
		return debug.InteractionInput{}, errors.New("no pending interaction")
	}
	if ir.Type == debug.InteractionSelect {
		return debug.InteractionInput{SelectedKey: line}, nil
	}

	values := make(map[string]any)
	for _, pair := range strings.Fields(line) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || k == "" {
			return debug.InteractionInput{}, fmt.Errorf("expected key=value, got %q", pair)
		}
		values[k] = v
	}
	return debug.InteractionInput{Values: values}, nil
}
