// Package webdav stores engram files on a WebDAV server such as Nextcloud or
// Nutstore.
package webdav

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/studio-b12/gowebdav"

	"github.com/papercomputeco/engram/pkg/backend"
	"github.com/papercomputeco/engram/pkg/logger"
)

// DefaultPrefix is the remote directory used when none is configured.
const DefaultPrefix = "Engram"

type Config struct {
	URL      string
	Username string
	Password string

	// Prefix is the remote directory files are kept in.
	Prefix string

	Logger *slog.Logger
}

// Backend keeps files in one remote directory. The WebDAV client has no
// context support, so ctx is only checked before a call starts and
// backend.Timeout bounds each request.
type Backend struct {
	client *gowebdav.Client
	dir    string
	logger *slog.Logger
}

func New(c Config) (*Backend, error) {
	if c.URL == "" {
		return nil, errors.New("webdav backend requires a url")
	}

	prefix := strings.Trim(c.Prefix, "/")
	if prefix == "" {
		prefix = DefaultPrefix
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	client := gowebdav.NewClient(c.URL, c.Username, c.Password)
	client.SetTimeout(backend.Timeout)

	return &Backend{
		client: client,
		dir:    "/" + prefix,
		logger: log.With("backend", backend.NameWebDAV),
	}, nil
}

func (b *Backend) Name() string {
	return backend.NameWebDAV
}

func (b *Backend) remotePath(localPath, remoteName string) string {
	return path.Join(b.dir, backend.RemoteName(localPath, remoteName))
}

func (b *Backend) Upload(ctx context.Context, localPath, remoteName string) bool {
	remote := b.remotePath(localPath, remoteName)
	if err := b.upload(ctx, localPath, remote); err != nil {
		b.logger.Warn("upload failed", "file", remote, "error", err)
		return false
	}
	return true
}

func (b *Backend) upload(ctx context.Context, localPath, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.Open(localPath)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := b.client.MkdirAll(path.Dir(remote), 0o755); err != nil {
		return fmt.Errorf("creating %s: %w", path.Dir(remote), err)
	}
	return b.client.WriteStream(remote, f, 0o644)
}

func (b *Backend) Download(ctx context.Context, localPath, remoteName string) bool {
	remote := b.remotePath(localPath, remoteName)
	if err := b.download(ctx, localPath, remote); err != nil {
		b.logger.Warn("download failed", "file", remote, "error", err)
		return false
	}
	return true
}

func (b *Backend) download(ctx context.Context, localPath, remote string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	rc, err := b.client.ReadStream(remote)
	if err != nil {
		return err
	}
	defer rc.Close()

	return backend.ReplaceFile(localPath, rc)
}

func (b *Backend) TestConnection(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if err := b.client.Connect(); err != nil {
		b.logger.Warn("connection test failed", "error", err)
		return false
	}
	return true
}

var _ backend.Backend = (*Backend)(nil)
