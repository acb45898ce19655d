package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
)

const getLongDesc string = `Get a configuration value.

Reads the value for the given key from config.toml, falling back to the
built-in default. Credentials are masked.

Examples:
  engram config get backend.name
  engram config get embedding.model`

const getShortDesc string = "Get a configuration value"

func newGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: getShortDesc,
		Long:  getLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runGet(cmd.OutOrStdout(), args[0], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func runGet(out io.Writer, key, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	value := config.DisplayValue(cfg, key)
	if value == "" {
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render(key), cliui.DimStyle.Render("<not set>"))
	} else {
		fmt.Fprintf(out, "  %s  %s\n", cliui.KeyStyle.Render(key), cliui.ValueStyle.Render(value))
	}

	return nil
}
