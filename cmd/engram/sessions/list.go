// Package sessionscmder provides the `engram ls` and `engram show` commands
// for browsing the session archive.
package sessionscmder

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/session"
)

const listLongDesc string = `List archived sessions, most recently imported first.

Examples:
  engram ls
  engram ls --tool cursor --limit 5
  engram ls --project myapp`

const listShortDesc string = "List recent sessions"

type listCommander struct {
	tool    string
	project string
	limit   int
	opts    workspace.Options
}

// NewListCmd creates the ls cobra command.
func NewListCmd() *cobra.Command {
	cmder := &listCommander{}

	cmd := &cobra.Command{
		Use:     "ls",
		Aliases: []string{"list"},
		Short:   listShortDesc,
		Long:    listLongDesc,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.tool, "tool", "t", "", "Only list sessions from this tool")
	cmd.Flags().StringVarP(&cmder.project, "project", "p", "", "Only list sessions whose project path contains this")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 20, "Maximum number of sessions")

	return cmd
}

func (c *listCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.limit)
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	sessions, err := ws.Sessions.List(ctx, session.ListOptions{Tool: c.tool, Project: c.project, Limit: c.limit})
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}

	if len(sessions) == 0 {
		fmt.Fprintf(out, "\n  No sessions found. Run %s to import some.\n\n", cliui.KeyStyle.Render("engram sync"))
		return nil
	}

	fmt.Fprintln(out)
	for _, s := range sessions {
		cliui.PrintSession(out, s)
	}
	fmt.Fprintln(out)
	return nil
}
