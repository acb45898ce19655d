// Package backendcmder provides the `engram backend` commands that configure
// and check the remote sync backend.
package backendcmder

import (
	"github.com/spf13/cobra"
)

const backendLongDesc string = `Configure the remote backend that engram push and pull use.

Supported backends:
  local          Keep everything on this machine (default)
  github, gitee  A repository, through the contents API
  webdav         Any WebDAV server (Nextcloud, Jianguoyun, ...)
  s3             AWS S3 or an S3-compatible store (R2, MinIO, ...)

Examples:
  engram backend set github --repo me/memory --secret-stdin
  engram backend set webdav --url https://dav.example.com/remote.php/dav/files/me --username me --secret-stdin
  engram backend set s3 --bucket memory --access-key AKIA... --secret-stdin
  engram backend show
  engram backend test`

const backendShortDesc string = "Configure the remote sync backend"

func NewBackendCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backend",
		Short: backendShortDesc,
		Long:  backendLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newShowCmd())
	cmd.AddCommand(newTestCmd())

	return cmd
}
