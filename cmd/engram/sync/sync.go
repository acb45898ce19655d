// Package synccmder provides the `engram sync` CLI command.
package synccmder

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/syncer"
)

const syncLongDesc string = `Import sessions from every installed AI coding tool, distill facts
from the new ones and regenerate the context files.

Supported tools: claude_code, opencode, cursor, openclaw

Examples:
  engram sync                        Import from every available tool
  engram sync --tool claude_code     Import from Claude Code only
  engram sync --push                 Sync, then upload to the configured backend
  engram sync --watch                Re-sync whenever a tool writes new logs`

const syncShortDesc string = "Import sessions and regenerate the context files"

type syncCommander struct {
	tools    []string
	push     bool
	watch    bool
	debounce time.Duration
	opts     workspace.Options
}

// NewSyncCmd creates the sync cobra command.
func NewSyncCmd() *cobra.Command {
	cmder := &syncCommander{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: syncShortDesc,
		Long:  syncLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringSliceVarP(&cmder.tools, "tool", "t", nil, "Only import from these tools")
	cmd.Flags().BoolVar(&cmder.push, "push", false, "Upload the stores and context files after syncing")
	cmd.Flags().BoolVarP(&cmder.watch, "watch", "w", false, "Keep running and re-sync when tool logs change")
	cmd.Flags().DurationVar(&cmder.debounce, "debounce", syncer.DefaultDebounce, "Quiet period before a watched change triggers a sync")

	return cmd
}

func (c *syncCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	for _, name := range c.tools {
		if !extract.Known(name) {
			return fmt.Errorf("unknown tool: %q\n\nSupported tools: %s", name, strings.Join(extract.Names, ", "))
		}
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	if err := c.syncOnce(ctx, ws, out); err != nil {
		return err
	}
	if !c.watch {
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var roots []string
	for _, e := range extract.ByName(ws.Extractors, c.tools...) {
		roots = append(roots, e.Roots()...)
	}

	w := syncer.NewWatcher(syncer.WatcherConfig{
		Roots:    roots,
		Debounce: c.debounce,
		Logger:   ws.Logger.With("component", "watcher"),
	})

	fmt.Fprintf(out, "  %s Watching for new sessions %s\n\n", cliui.DimStyle.Render("●"), cliui.DimStyle.Render("(ctrl+c to stop)"))
	return w.Watch(ctx, func(ctx context.Context) {
		if err := c.syncOnce(ctx, ws, out); err != nil {
			ws.Logger.Error("sync failed", "error", err)
		}
	})
}

func (c *syncCommander) syncOnce(ctx context.Context, ws *workspace.Workspace, out io.Writer) error {
	fmt.Fprintln(out)

	result, err := ws.Syncer.Run(ctx, syncer.Options{
		Tools: c.tools,
		Push:  c.push,
		OnTool: func(t syncer.ToolResult) {
			fmt.Fprintf(out, "  %s %s %d sessions\n", cliui.Mark(nil), cliui.ToolStyle.Render(t.Tool+":"), t.Sessions)
		},
	})
	if err != nil {
		return err
	}

	for _, a := range result.Artifacts {
		fmt.Fprintf(out, "  %s %s\n", cliui.DimStyle.Render("●"), cliui.DimStyle.Render(a.String()))
	}

	fmt.Fprintf(out, "\n  %s Imported %d sessions, distilled %d facts\n",
		cliui.SuccessMark, result.Sessions(), result.Facts)

	if p := result.Push; p != nil && p.Attempted {
		if p.OK {
			fmt.Fprintf(out, "  %s Pushed %d files to %s\n", cliui.SuccessMark, len(p.Files), p.Backend)
		} else {
			fmt.Fprintf(out, "  %s Push to %s failed: %s\n", cliui.FailMark, p.Backend, strings.Join(p.Failed, ", "))
		}
	}
	fmt.Fprintln(out)
	return nil
}
