package configcmder

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
)

const setLongDesc string = `Set a configuration value.

Sets the given key to the provided value in config.toml. The file holds
backend credentials and is always written with owner-only permissions.

Examples:
  engram config set backend.name s3
  engram config set backend.bucket my-memory
  engram config set context.core_budget 3000`

const setShortDesc string = "Set a configuration value"

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: setShortDesc,
		Long:  setLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runSet(cmd.OutOrStdout(), args[0], args[1], configDir)
		},
		ValidArgsFunction: completeKeys,
	}

	return cmd
}

func completeKeys(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
	if len(args) == 0 {
		return config.ValidConfigKeys(), cobra.ShellCompDirectiveNoFileComp
	}
	return nil, cobra.ShellCompDirectiveNoFileComp
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown config key: %q\n\nValid keys: %s",
		key, strings.Join(config.ValidConfigKeys(), ", "))
}

func runSet(out io.Writer, key, value, configDir string) error {
	if !config.IsValidConfigKey(key) {
		return unknownKey(key)
	}
	if key == "backend.name" && !config.IsValidBackend(value) {
		return fmt.Errorf("unknown backend: %q\n\nValid backends: %s",
			value, strings.Join(config.ValidBackendNames(), ", "))
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	fmt.Fprintf(out, "\n  %s %s\n\n",
		cliui.KeyStyle.Render("Config file:"),
		cliui.DimStyle.Render(cfger.GetTarget()),
	)

	if err := cfger.SetConfigValue(key, value); err != nil {
		return err
	}

	cfg, err := cfger.LoadConfig()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "  %s Set %s = %s\n\n",
		cliui.SuccessMark,
		cliui.KeyStyle.Render(key),
		cliui.ValueStyle.Render(config.DisplayValue(cfg, key)),
	)
	return nil
}
