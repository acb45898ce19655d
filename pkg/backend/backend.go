// Package backend defines the remote stores engram pushes its databases and
// context files to.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// Backend copies files to and from one remote store.
//
// Every method absorbs transport errors: failures are logged and reported as
// false, never returned.
type Backend interface {
	Name() string

	// Upload copies localPath to remoteName. An empty remoteName uses the
	// base name of localPath.
	Upload(ctx context.Context, localPath, remoteName string) bool

	// Download replaces localPath with the remote file. localPath is left
	// untouched when the download fails.
	Download(ctx context.Context, localPath, remoteName string) bool

	TestConnection(ctx context.Context) bool
}

const (
	NameLocal  = "local"
	NameGitHub = "github"
	NameGitee  = "gitee"
	NameWebDAV = "webdav"
	NameS3     = "s3"
)

// Timeout bounds every remote call. Remote calls are not retried.
const Timeout = 30 * time.Second

var ErrUnknownBackend = errors.New("unknown backend")

// RemoteName returns remoteName, or the base name of localPath when empty.
func RemoteName(localPath, remoteName string) string {
	if remoteName != "" {
		return remoteName
	}
	return filepath.Base(localPath)
}

// ReplaceFile streams r into a temp file next to path and renames it over
// path once fully written and synced.
func ReplaceFile(path string, r io.Reader) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.download")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	return os.Rename(tmp.Name(), path)
}
