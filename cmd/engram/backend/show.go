package backendcmder

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the configured backend with credentials masked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := workspace.LoadConfig(workspace.FromCommand(cmd))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			for _, key := range config.ValidConfigKeys() {
				if !strings.HasPrefix(key, "backend.") {
					continue
				}
				if v := config.DisplayValue(cfg, key); v != "" {
					cliui.KeyValue(out, strings.TrimPrefix(key, "backend."), v)
				}
			}
			fmt.Fprintln(out)
			return nil
		},
	}
}
