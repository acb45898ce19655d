// Package backendutils builds a Backend from configuration.
package backendutils

import (
	"fmt"
	"log/slog"

	"github.com/papercomputeco/engram/pkg/backend"
	"github.com/papercomputeco/engram/pkg/backend/gitrepo"
	"github.com/papercomputeco/engram/pkg/backend/s3"
	"github.com/papercomputeco/engram/pkg/backend/webdav"
	"github.com/papercomputeco/engram/pkg/config"
)

// New returns the backend named by c.Name. An empty name selects the local
// backend.
func New(c config.BackendConfig, log *slog.Logger) (backend.Backend, error) {
	switch c.Name {
	case "", backend.NameLocal:
		return backend.NewLocal(), nil

	case backend.NameGitHub, backend.NameGitee:
		b, err := gitrepo.New(gitrepo.Config{
			Host:   c.Name,
			Token:  c.Token,
			Repo:   c.Repo,
			Branch: c.Branch,
			Prefix: c.Prefix,
			Logger: log,
		})
		if err != nil {
			return nil, err
		}
		return b, nil

	case backend.NameWebDAV:
		b, err := webdav.New(webdav.Config{
			URL:      c.URL,
			Username: c.Username,
			Password: c.Password,
			Prefix:   c.Prefix,
			Logger:   log,
		})
		if err != nil {
			return nil, err
		}
		return b, nil

	case backend.NameS3:
		b, err := s3.New(s3.Config{
			Endpoint:  c.Endpoint,
			Region:    c.Region,
			Bucket:    c.Bucket,
			AccessKey: c.AccessKey,
			SecretKey: c.SecretKey,
			Prefix:    c.Prefix,
			Logger:    log,
		})
		if err != nil {
			return nil, err
		}
		return b, nil

	default:
		return nil, fmt.Errorf("%w: %q", backend.ErrUnknownBackend, c.Name)
	}
}
