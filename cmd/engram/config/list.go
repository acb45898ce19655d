package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key with its effective value. Credentials
are masked.

Examples:
  engram config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(out io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Using config file: %s\n\n", cfger.GetTarget())

	keys := config.ValidConfigKeys()

	// Find the longest key name for alignment.
	maxLen := 0
	for _, k := range keys {
		if len(k) > maxLen {
			maxLen = len(k)
		}
	}

	for _, key := range keys {
		value := config.DisplayValue(cfg, key)
		if value == "" {
			fmt.Fprintf(out, "%-*s = <not set>\n", maxLen, key)
		} else {
			fmt.Fprintf(out, "%-*s = %q\n", maxLen, key, value)
		}
	}

	return nil
}
