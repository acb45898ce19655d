// Package versioncmder
package versioncmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/pkg/utils"
)

type VersionCommander struct{}

func NewVersionCmd() *cobra.Command {
	cmder := &VersionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version of this CLI",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.OutOrStdout())
		},
	}

	return cmd
}

func (c *VersionCommander) run(out io.Writer) error {
	fmt.Fprintln(out, utils.VersionString())
	return nil
}
