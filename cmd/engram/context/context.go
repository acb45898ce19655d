// Package contextcmder provides the `engram context` command that
// regenerates and displays the rendered context files.
package contextcmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/contextdoc"
	"github.com/papercomputeco/engram/pkg/fact"
)

const contextLongDesc string = `Manage the context files injected into AI tools.

  core.md                      Pinned global rules
  context.md                   Global memory, project rollup and recent sessions
  projects/<name>/context.md   Everything remembered about one project

Examples:
  engram context --update              Regenerate every context file
  engram context --show                Render context.md in the terminal
  engram context --show --core         Render core.md
  engram context --show --project api  Render the context of one project`

const contextShortDesc string = "Regenerate or display the context files"

type contextCommander struct {
	update  bool
	show    bool
	core    bool
	project string
	raw     bool
	opts    workspace.Options
}

func NewContextCmd() *cobra.Command {
	cmder := &contextCommander{}

	cmd := &cobra.Command{
		Use:   "context",
		Short: contextShortDesc,
		Long:  contextLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmder.update && !cmder.show {
				return cmd.Help()
			}
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&cmder.update, "update", "u", false, "Regenerate every context file")
	cmd.Flags().BoolVar(&cmder.show, "show", false, "Display a context file")
	cmd.Flags().BoolVar(&cmder.core, "core", false, "With --show, display core.md")
	cmd.Flags().StringVarP(&cmder.project, "project", "p", "", "With --show, display the context of this project")
	cmd.Flags().BoolVar(&cmder.raw, "raw", false, "With --show, print markdown without rendering")
	cmd.MarkFlagsMutuallyExclusive("core", "project")

	return cmd
}

func (c *contextCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	if c.update {
		fmt.Fprintln(out)
		var results []contextdoc.Result
		err := cliui.Step(out, "Rendering context files", func() error {
			var err error
			results, err = ws.Renderer.Update(ctx)
			return err
		})
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(out, "    %s\n", cliui.DimStyle.Render(r.String()))
		}
		fmt.Fprintln(out)
	}

	if !c.show {
		return nil
	}

	path := ws.Layout.Context()
	switch {
	case c.core:
		path = ws.Layout.Core()
	case c.project != "":
		if !fact.ValidProjectName(c.project) {
			return fmt.Errorf("invalid project name %q", c.project)
		}
		path = ws.Layout.ProjectContext(c.project)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s does not exist yet, run engram context --update", path)
	}
	if err != nil {
		return err
	}

	content := string(data)
	if !c.raw {
		content, _ = cliui.RenderMarkdown(content)
	}
	fmt.Fprint(out, content)
	return nil
}
