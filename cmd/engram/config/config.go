// Package configcmder provides the config command for managing persistent
// engram configuration stored in ~/.engram/config.toml.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent engram configuration.

Configuration is stored as config.toml in the engram home (~/.engram/ or
$ENGRAM_HOME) and provides default values for command flags. CLI flags and
ENGRAM_* environment variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.sessions_path, storage.facts_path,
  backend.name, backend.token, backend.repo, backend.branch, backend.url,
  backend.username, backend.password, backend.endpoint, backend.region,
  backend.bucket, backend.access_key, backend.secret_key, backend.prefix,
  embedding.provider, embedding.target, embedding.model, embedding.dimensions,
  vector_store.provider, vector_store.target,
  context.core_budget, context.pinned_budget, context.project_budget,
  context.recent_budget, api.listen

Use subcommands to get, set, or list configuration values:
  engram config set <key> <value>    Set a configuration value
  engram config get <key>            Get a configuration value
  engram config list                 List all configuration values

Examples:
  engram config set backend.name webdav
  engram config set embedding.provider ollama
  engram config get context.core_budget
  engram config list`

const configShortDesc string = "Manage persistent engram configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
