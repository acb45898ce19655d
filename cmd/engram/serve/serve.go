// Package servecmder provides the `engram serve` command that runs the HTTP
// API with the MCP endpoint mounted at /mcp.
package servecmder

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/api"
	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/config"
)

const serveLongDesc string = `Run the engram HTTP API.

The API serves sessions, facts, scopes and rendered context under /v1 and
the MCP streamable HTTP endpoint under /mcp.

Examples:
  engram serve
  engram serve --listen :8765
  engram serve --log-file ~/.engram/serve.log
  ENGRAM_API_LISTEN=0.0.0.0:8765 engram serve`

const serveShortDesc string = "Run the HTTP API and MCP endpoint"

// boundFlags take part in the viper precedence chain.
var boundFlags = []string{
	config.FlagListen,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagVectorStoreTgt,
}

type serveCommander struct {
	listen     string
	embedProv  string
	embedTgt   string
	embedModel string
	embedDims  uint
	vectorTgt  string
	logFile    string
	opts       workspace.Options
}

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.opts = workspace.FromCommand(cmd)
			cmder.opts.Semantic = true
			cmder.opts.LogFile = cmder.logFile

			v, err := config.InitViper(cmder.opts.ConfigDir)
			if err != nil {
				return err
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, boundFlags)
			cmder.opts.Viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagListen, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embedProv)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embedTgt)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embedModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embedDims)
	config.AddStringFlag(cmd, config.Flags, config.FlagVectorStoreTgt, &cmder.vectorTgt)
	cmd.Flags().StringVar(&cmder.logFile, "log-file", "", "Also append JSON logs to this file")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := workspace.Open(ctx, c.opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	mcpServer, err := ws.MCPServer()
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server, err := api.NewServer(api.Config{
		ListenAddr: ws.Config.API.Listen,
		Sessions:   ws.Sessions,
		Facts:      ws.Facts,
		Renderer:   ws.Renderer,
		MCP:        mcpServer.Handler(),
		Logger:     ws.Logger.With("component", "api"),
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		ws.Logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
	}
	return server.Shutdown()
}
