package memorycmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/fact"
)

const scopesShortDesc string = "List fact scopes with their usage"

type scopesCommander struct {
	opts workspace.Options
}

func NewScopesCmd() *cobra.Command {
	cmder := &scopesCommander{}

	cmd := &cobra.Command{
		Use:   "scopes",
		Short: scopesShortDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func (c *scopesCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	scopes, err := ws.Facts.Scopes(ctx)
	if err != nil {
		return fmt.Errorf("listing scopes: %w", err)
	}
	if len(scopes) == 0 {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No facts yet."))
		return nil
	}

	fmt.Fprintln(out)
	for _, scope := range scopes {
		facts, err := ws.Facts.List(ctx, fact.ListOptions{Scope: scope})
		if err != nil {
			return fmt.Errorf("listing facts in %s: %w", scope, err)
		}
		fmt.Fprintf(out, "  %s %s\n",
			cliui.ToolStyle.Render(scope),
			cliui.DimStyle.Render(fmt.Sprintf("%d facts, keeps %d unpinned", len(facts), ws.Facts.Capacity(scope))),
		)
	}
	fmt.Fprintln(out)
	return nil
}
