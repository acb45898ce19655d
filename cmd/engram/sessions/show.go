package sessionscmder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
)

const showLongDesc string = `Print one archived session with its messages in conversation order.

Examples:
  engram show claude_code_1a2b3c4d5e6f
  engram show cursor_0f9e8d7c6b5a --json`

const showShortDesc string = "Print one session with its messages"

type showCommander struct {
	id       string
	jsonOut  bool
	markdown bool
	opts     workspace.Options
}

func NewShowCmd() *cobra.Command {
	cmder := &showCommander{}

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: showShortDesc,
		Long:  showLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmder.id = args[0]
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print the session as JSON")
	cmd.Flags().BoolVar(&cmder.markdown, "render", false, "Render message content as markdown")

	return cmd
}

func (c *showCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	sess, err := ws.Sessions.Get(ctx, c.id)
	if err != nil {
		return err
	}

	if c.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sess)
	}

	fmt.Fprintln(out)
	cliui.KeyValue(out, "ID", sess.ID)
	cliui.KeyValue(out, "Tool", sess.SourceTool)
	cliui.KeyValue(out, "Title", sess.Title)
	if sess.Project != "" {
		cliui.KeyValue(out, "Project", sess.Project)
	}
	cliui.KeyValue(out, "Source", sess.SourcePath)
	cliui.KeyValue(out, "Created", cliui.FormatTime(sess.CreatedAt))
	cliui.KeyValue(out, "Imported", cliui.FormatTime(sess.ImportedAt))
	if len(sess.Tags) > 0 {
		cliui.KeyValue(out, "Tags", strings.Join(sess.Tags, ", "))
	}
	cliui.KeyValue(out, "Messages", fmt.Sprintf("%d", sess.MessageCount))
	fmt.Fprintln(out)

	for _, m := range sess.Messages {
		fmt.Fprintf(out, "  %s\n", cliui.ToolStyle.Render(m.Role))
		content := m.Content
		if c.markdown {
			content, _ = cliui.RenderMarkdown(content)
		}
		for line := range strings.SplitSeq(strings.TrimRight(content, "\n"), "\n") {
			fmt.Fprintf(out, "    %s\n", line)
		}
		fmt.Fprintln(out)
	}
	return nil
}
