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

const factsLongDesc string = `List facts in the curated memory.

Pinned facts come first, then by priority and recency.

Examples:
  engram facts
  engram facts --scope project:api
  engram facts --pinned`

const factsShortDesc string = "List remembered facts"

type factsCommander struct {
	scope  string
	pinned bool
	opts   workspace.Options
}

func NewFactsCmd() *cobra.Command {
	cmder := &factsCommander{}

	cmd := &cobra.Command{
		Use:   "facts",
		Short: factsShortDesc,
		Long:  factsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", "", "Only list facts in this scope")
	cmd.Flags().BoolVar(&cmder.pinned, "pinned", false, "Only list pinned facts")

	return cmd
}

func (c *factsCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	scope := c.scope
	if scope != "" {
		var err error
		if scope, err = fact.NormalizeScope(scope); err != nil {
			return err
		}
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	facts, err := ws.Facts.List(ctx, fact.ListOptions{Scope: scope, PinnedOnly: c.pinned})
	if err != nil {
		return fmt.Errorf("listing facts: %w", err)
	}

	if len(facts) == 0 {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.DimStyle.Render("No facts yet."))
		return nil
	}

	fmt.Fprintln(out)
	for _, f := range facts {
		cliui.PrintFact(out, f)
	}
	fmt.Fprintf(out, "\n  %d facts\n\n", len(facts))
	return nil
}
