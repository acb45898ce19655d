// Package memorycmder provides the commands that curate the fact store:
// remember, facts, forget and scopes.
package memorycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/git"
	"github.com/papercomputeco/engram/pkg/utils"
)

const rememberLongDesc string = `Save a fact to the curated memory.

Facts are global unless a scope is given. --project=<name> is shorthand for
--scope project:<name>; --project without a value scopes the fact to the
git repository of the current directory. Pinned global
facts always appear in core.md.

Examples:
  engram remember "Prefer table-driven tests" --pin
  engram remember "Migrations live in db/migrate" --project
  engram remember "Deploys go through staging first" --scope project:api --priority 5`

const rememberShortDesc string = "Save a fact to memory"

// detectProject is the --project value used when the flag has no argument.
const detectProject = "."

type rememberCommander struct {
	content  string
	scope    string
	project  string
	priority int
	pin      bool
	opts     workspace.Options
}

func NewRememberCmd() *cobra.Command {
	cmder := &rememberCommander{}

	cmd := &cobra.Command{
		Use:   "remember <content>",
		Short: rememberShortDesc,
		Long:  rememberLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.content = strings.Join(args, " ")
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVarP(&cmder.scope, "scope", "s", fact.ScopeGlobal, "Scope: global or project:<name>")
	cmd.Flags().StringVarP(&cmder.project, "project", "P", "", "Scope to a project, detected from git when no name is given")
	cmd.Flags().Lookup("project").NoOptDefVal = detectProject
	cmd.Flags().IntVarP(&cmder.priority, "priority", "p", fact.DefaultPriority, "Priority from 1 (low) to 5 (high)")
	cmd.Flags().BoolVar(&cmder.pin, "pin", false, "Pin the fact so it is never evicted")
	cmd.MarkFlagsMutuallyExclusive("scope", "project")

	return cmd
}

func (c *rememberCommander) resolveScope(ctx context.Context) (string, error) {
	if c.project == "" {
		return fact.NormalizeScope(c.scope)
	}

	name := c.project
	if name == detectProject {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("getting working directory: %w", err)
		}
		name = git.ProjectName(ctx, wd)
		if name == "" {
			return "", errors.New("could not detect a project name, pass --project <name>")
		}
	}
	return fact.NormalizeScope(fact.ProjectScope(name))
}

func (c *rememberCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	scope, err := c.resolveScope(ctx)
	if err != nil {
		return err
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	id, err := ws.Facts.Add(ctx, fact.Input{
		Scope:    scope,
		Content:  c.content,
		Source:   fact.SourceManual,
		Priority: c.priority,
		Pinned:   c.pin,
	})
	if err != nil {
		return err
	}

	pin := ""
	if c.pin {
		pin = " " + cliui.PinMark
	}
	fmt.Fprintf(out, "\n  %s Remembered %s%s: %s\n",
		cliui.SuccessMark,
		cliui.ToolStyle.Render("["+scope+"]"),
		pin,
		utils.Truncate(utils.FirstLine(c.content), 60),
	)
	fmt.Fprintf(out, "    %s\n\n", cliui.DimStyle.Render("ID: "+id))
	return nil
}
