package backendcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/pkg/backend"
)

func newTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the configured backend is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := openBackend(cmd)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out)
			if b.Name() == backend.NameLocal {
				fmt.Fprintf(out, "  Using the local backend, nothing to test.\n\n")
				return nil
			}
			err = testConnection(cmd.Context(), out, b)
			fmt.Fprintln(out)
			return err
		},
	}
}
