// Package mcpcmder provides the `engram mcp` command that serves the memory
// tools over stdio for editors and agents.
package mcpcmder

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
)

const mcpLongDesc string = `Serve the engram memory tools over the Model Context Protocol on stdio.

Add engram to your tool's MCP configuration:

  {
    "mcpServers": {
      "engram": { "command": "engram", "args": ["mcp"] }
    }
  }

Logs go to stderr; stdout carries the protocol. MCP clients often hide
stderr, so --log-file also appends JSON logs to a file.

Examples:
  engram mcp
  engram mcp --log-file ~/.engram/mcp.log`

const mcpShortDesc string = "Serve memory tools over MCP stdio"

type mcpCommander struct {
	logFile string
	opts    workspace.Options
}

func NewMCPCmd() *cobra.Command {
	cmder := &mcpCommander{}

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: mcpShortDesc,
		Long:  mcpLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			cmder.opts.Semantic = true
			cmder.opts.LogFile = cmder.logFile
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *mcpCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	server, err := ws.MCPServer()
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	ws.Logger.Info("serving MCP over stdio", "home", ws.Layout.Root)
	if err := server.RunStdio(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
