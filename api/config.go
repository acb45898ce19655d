// Package api provides an HTTP API server for browsing the session archive
// and managing the fact memory.
package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
)

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":7821")
	ListenAddr string

	Sessions SessionStore
	Facts    FactStore
	Renderer Renderer

	// MCP, when set, is mounted at /mcp.
	MCP http.Handler

	Logger *slog.Logger
}

// SessionStore is the read side of the session archive.
type SessionStore interface {
	Search(ctx context.Context, query string, opts session.SearchOptions) ([]session.Session, error)
	List(ctx context.Context, opts session.ListOptions) ([]session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
}

type FactStore interface {
	Add(ctx context.Context, in fact.Input) (string, error)
	List(ctx context.Context, opts fact.ListOptions) ([]fact.Fact, error)
	Search(ctx context.Context, query string, opts fact.SearchOptions) ([]fact.Fact, error)
	Scopes(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// Renderer renders context documents without writing them.
type Renderer interface {
	Core(ctx context.Context) (string, error)
	Global(ctx context.Context) (string, error)
	Project(ctx context.Context, name string) (string, error)
}
