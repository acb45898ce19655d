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

const forgetShortDesc string = "Delete a fact by id"

type forgetCommander struct {
	id   string
	opts workspace.Options
}

func NewForgetCmd() *cobra.Command {
	cmder := &forgetCommander{}

	cmd := &cobra.Command{
		Use:   "forget <id>",
		Short: forgetShortDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.id = args[0]
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func (c *forgetCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	deleted, err := ws.Facts.Delete(ctx, c.id)
	if err != nil {
		return err
	}
	if !deleted {
		return fact.ErrNotFound{ID: c.id}
	}

	fmt.Fprintf(out, "\n  %s Forgot %s\n\n", cliui.SuccessMark, cliui.DimStyle.Render(c.id))
	return nil
}
