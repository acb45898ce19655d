// Package engramcmder
package engramcmder

import (
	"github.com/spf13/cobra"

	backendcmder "github.com/papercomputeco/engram/cmd/engram/backend"
	configcmder "github.com/papercomputeco/engram/cmd/engram/config"
	contextcmder "github.com/papercomputeco/engram/cmd/engram/context"
	initcmder "github.com/papercomputeco/engram/cmd/engram/init"
	mcpcmder "github.com/papercomputeco/engram/cmd/engram/mcp"
	memorycmder "github.com/papercomputeco/engram/cmd/engram/memory"
	searchcmder "github.com/papercomputeco/engram/cmd/engram/search"
	servecmder "github.com/papercomputeco/engram/cmd/engram/serve"
	sessionscmder "github.com/papercomputeco/engram/cmd/engram/sessions"
	statuscmder "github.com/papercomputeco/engram/cmd/engram/status"
	synccmder "github.com/papercomputeco/engram/cmd/engram/sync"
	transfercmder "github.com/papercomputeco/engram/cmd/engram/transfer"
	versioncmder "github.com/papercomputeco/engram/cmd/engram/version"
)

const engramLongDesc string = `Engram is a shared memory for your AI coding tools.

It imports the conversation logs of Claude Code, OpenCode, Cursor and
OpenClaw into one searchable archive, distills the facts worth keeping and
renders them into small context files every tool can read.

Get started:
  engram sync                      Import sessions and render the context files
  engram search <query>            Search facts and sessions
  engram remember "<fact>" --pin   Save a rule that every tool should follow
  engram mcp                       Serve the memory tools over MCP`

const engramShortDesc string = "Engram - shared memory for AI coding tools"

func NewEngramCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "engram",
		Short:        engramShortDesc,
		Long:         engramLongDesc,
		SilenceUsage: true,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override the engram home (default ~/.engram or $ENGRAM_HOME)")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(synccmder.NewSyncCmd())
	cmd.AddCommand(statuscmder.NewStatusCmd())
	cmd.AddCommand(searchcmder.NewSearchCmd())
	cmd.AddCommand(sessionscmder.NewListCmd())
	cmd.AddCommand(sessionscmder.NewShowCmd())
	cmd.AddCommand(memorycmder.NewRememberCmd())
	cmd.AddCommand(memorycmder.NewFactsCmd())
	cmd.AddCommand(memorycmder.NewForgetCmd())
	cmd.AddCommand(memorycmder.NewScopesCmd())
	cmd.AddCommand(contextcmder.NewContextCmd())
	cmd.AddCommand(backendcmder.NewBackendCmd())
	cmd.AddCommand(transfercmder.NewPushCmd())
	cmd.AddCommand(transfercmder.NewPullCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(mcpcmder.NewMCPCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
