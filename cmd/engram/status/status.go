// Package statuscmder provides the status command that summarizes the engram
// home: tools, last sync, stored sessions and facts.
package statuscmder

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/syncer"
)

const statusLongDesc string = `Show the state of the engram home.

Lists which AI tools were found on this machine, when the last sync ran and
what it imported, the configured backend and the number of remembered facts.

Examples:
  engram status`

const statusShortDesc string = "Show tools, last sync and memory usage"

type statusCommander struct {
	opts workspace.Options
}

func NewStatusCmd() *cobra.Command {
	cmder := &statusCommander{}

	cmd := &cobra.Command{
		Use:   "status",
		Short: statusShortDesc,
		Long:  statusLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func (c *statusCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	state, err := syncer.LoadState(ws.Layout)
	if err != nil {
		return fmt.Errorf("loading sync state: %w", err)
	}

	fmt.Fprintln(out)
	cliui.KeyValue(out, "Home", ws.Layout.Root)
	cliui.KeyValue(out, "Backend", ws.Backend.Name())
	cliui.KeyValue(out, "Last sync", cliui.FormatTime(state.LastSync))
	if !state.LastSync.IsZero() {
		cliui.KeyValue(out, "Facts distilled", strconv.Itoa(state.Facts))
		cliui.KeyValue(out, "Pushed", strconv.FormatBool(state.Pushed))
	}

	fmt.Fprintf(out, "\n  %s\n", cliui.KeyStyle.Render("Tools"))
	for _, e := range ws.Extractors {
		mark := cliui.DimStyle.Render("-")
		if e.Available() {
			mark = cliui.SuccessMark
		}
		line := fmt.Sprintf("  %s %s", mark, cliui.ToolStyle.Render(e.Name()))
		if n, ok := state.Sessions[e.Name()]; ok {
			line += cliui.DimStyle.Render(fmt.Sprintf("  %d sessions last sync", n))
		}
		fmt.Fprintln(out, line)
	}

	scopes, err := ws.Facts.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("listing scopes: %w", err)
	}
	sort.Strings(scopes)

	fmt.Fprintf(out, "\n  %s\n", cliui.KeyStyle.Render("Memory"))
	if len(scopes) == 0 {
		fmt.Fprintf(out, "  %s\n", cliui.DimStyle.Render("No facts yet."))
	}
	for _, scope := range scopes {
		facts, err := ws.Facts.List(ctx, fact.ListOptions{Scope: scope})
		if err != nil {
			return fmt.Errorf("listing facts in %s: %w", scope, err)
		}
		pinned := 0
		for _, f := range facts {
			if f.Pinned {
				pinned++
			}
		}
		fmt.Fprintf(out, "  %s %s\n",
			cliui.ToolStyle.Render(scope),
			cliui.DimStyle.Render(fmt.Sprintf("%d facts, %d pinned", len(facts), pinned)),
		)
	}
	fmt.Fprintln(out)
	return nil
}
