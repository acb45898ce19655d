// Package searchcmder provides the `engram search` CLI command.
package searchcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
)

const searchLongDesc string = `Search curated facts and archived sessions.

Facts are matched first, then sessions. When an embedding provider is
configured, semantically similar sessions are merged into the results.

Examples:
  engram search "database migration"
  engram search sqlite --tool claude_code --limit 5`

const searchShortDesc string = "Search facts and sessions"

type searchCommander struct {
	query string
	tool  string
	limit int
	opts  workspace.Options
}

func NewSearchCmd() *cobra.Command {
	cmder := &searchCommander{}

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: searchShortDesc,
		Long:  searchLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.query = strings.Join(args, " ")
			cmder.opts = workspace.FromCommand(cmd)
			cmder.opts.Semantic = true
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.tool, "tool", "t", "", "Only search sessions from this tool")
	cmd.Flags().IntVarP(&cmder.limit, "limit", "n", 10, "Maximum number of results of each kind")

	return cmd
}

func (c *searchCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(c.query) == "" {
		return errors.New("query is required")
	}
	if c.limit <= 0 {
		return fmt.Errorf("limit must be positive, got %d", c.limit)
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	facts, err := ws.Facts.Search(ctx, c.query, fact.SearchOptions{Limit: c.limit})
	if err != nil {
		return fmt.Errorf("searching facts: %w", err)
	}
	sessions, err := ws.Sessions.Search(ctx, c.query, session.SearchOptions{Tool: c.tool, Limit: c.limit})
	if err != nil {
		return fmt.Errorf("searching sessions: %w", err)
	}

	if len(facts) == 0 && len(sessions) == 0 {
		fmt.Fprintf(out, "\n  No results for %q\n\n", c.query)
		return nil
	}

	if len(facts) > 0 {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.KeyStyle.Render(fmt.Sprintf("Facts (%d)", len(facts))))
		for _, f := range facts {
			cliui.PrintFact(out, f)
		}
	}

	if len(sessions) > 0 {
		fmt.Fprintf(out, "\n  %s\n\n", cliui.KeyStyle.Render(fmt.Sprintf("Sessions (%d)", len(sessions))))
		for _, s := range sessions {
			cliui.PrintSession(out, s)
		}
	}
	fmt.Fprintln(out)
	return nil
}
