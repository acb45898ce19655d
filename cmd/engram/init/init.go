// Package initcmder provides the init command that prepares the engram home
// and prints the MCP configuration for AI tools.
package initcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
)

const initLongDesc string = `Initialize the engram home (~/.engram or $ENGRAM_HOME).

Writes a config.toml with default values when none exists, creates both
databases and renders the initial context files. Prints the MCP server
entry to add to Claude Code, Cursor or any other MCP client.

Examples:
  engram init
  engram init --config-dir ./memory`

const initShortDesc string = "Initialize the engram home"

type mcpEntry struct {
	Command string   `json:"command"`
	Args    []string `json:"args"`
}

type initCommander struct {
	opts workspace.Options
}

func NewInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			return cmder.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	return cmd
}

func (c *initCommander) run(ctx context.Context, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfger, err := config.NewConfiger(c.opts.ConfigDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	created := false
	if _, err := os.Stat(cfger.GetTarget()); errors.Is(err, os.ErrNotExist) {
		if err := cfger.SaveConfig(config.NewDefaultConfig()); err != nil {
			return err
		}
		created = true
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	if _, err := ws.Renderer.Update(ctx); err != nil {
		return err
	}

	fmt.Fprintln(out)
	if created {
		fmt.Fprintf(out, "  %s Initialized %s\n", cliui.SuccessMark, ws.Layout.Root)
	} else {
		fmt.Fprintf(out, "  %s Already initialized: %s\n", cliui.SuccessMark, ws.Layout.Root)
	}

	args := []string{"mcp"}
	if c.opts.ConfigDir != "" {
		args = append(args, "--config-dir", ws.Layout.Root)
	}
	snippet, err := json.MarshalIndent(map[string]map[string]mcpEntry{
		"mcpServers": {"engram": {Command: "engram", Args: args}},
	}, "  ", "  ")
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  Add engram to your MCP client configuration:\n\n  %s\n\n", snippet)
	fmt.Fprintf(out, "  Then run %s to import your sessions.\n\n", cliui.KeyStyle.Render("engram sync"))
	return nil
}
