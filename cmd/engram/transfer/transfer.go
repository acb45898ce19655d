// Package transfercmder provides the `engram push` and `engram pull`
// commands that move the stores to and from the remote backend.
package transfercmder

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/workspace"
	"github.com/papercomputeco/engram/pkg/backend"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/syncer"
)

const pushLongDesc string = `Upload the session archive, the curated memory and the global context
files to the configured backend.

Examples:
  engram push`

const pullLongDesc string = `Replace the local session archive and curated memory with the copies
stored on the configured backend. A failed download leaves the local file
untouched.

Examples:
  engram pull`

type transferFunc func(ctx context.Context, s *syncer.Syncer) (*syncer.TransferResult, error)

func NewPushCmd() *cobra.Command {
	return newTransferCmd("push", "Upload memory to the remote backend", pushLongDesc, "Pushing to",
		func(ctx context.Context, s *syncer.Syncer) (*syncer.TransferResult, error) {
			return s.Push(ctx)
		})
}

func NewPullCmd() *cobra.Command {
	return newTransferCmd("pull", "Download memory from the remote backend", pullLongDesc, "Pulling from",
		func(ctx context.Context, s *syncer.Syncer) (*syncer.TransferResult, error) {
			return s.Pull(ctx)
		})
}

func newTransferCmd(use, short, long, verb string, fn transferFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Long:  long,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTransfer(cmd.Context(), cmd.OutOrStdout(), workspace.FromCommand(cmd), verb, fn)
		},
	}
}

func runTransfer(ctx context.Context, out io.Writer, opts workspace.Options, verb string, fn transferFunc) error {
	if ctx == nil {
		ctx = context.Background()
	}

	ws, err := workspace.Open(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.Close()

	fmt.Fprintln(out)
	if ws.Backend.Name() == backend.NameLocal {
		fmt.Fprintf(out, "  No remote backend configured. Use %s first.\n\n", cliui.KeyStyle.Render("engram backend set <name>"))
		return nil
	}

	var res *syncer.TransferResult
	err = cliui.Step(out, verb+" "+ws.Backend.Name(), func() error {
		var err error
		res, err = fn(ctx, ws.Syncer)
		if err != nil {
			return err
		}
		if !res.OK {
			return fmt.Errorf("%s failed for %d files", strings.ToLower(strings.Fields(verb)[0]), len(res.Failed))
		}
		return nil
	})
	if res != nil {
		for _, f := range res.Files {
			fmt.Fprintf(out, "    %s %s\n", cliui.SuccessMark, cliui.DimStyle.Render(filepath.Base(f)))
		}
		for _, f := range res.Failed {
			fmt.Fprintf(out, "    %s %s\n", cliui.FailMark, cliui.DimStyle.Render(filepath.Base(f)))
		}
	}
	fmt.Fprintln(out)
	return err
}
