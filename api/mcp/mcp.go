// Package mcp provides an MCP (Model Context Protocol) server exposing the
// engram session archive and fact memory to AI tools.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/syncer"
	"github.com/papercomputeco/engram/pkg/utils"
)

// SessionStore is the read side of the session archive.
type SessionStore interface {
	Search(ctx context.Context, query string, opts session.SearchOptions) ([]session.Session, error)
	List(ctx context.Context, opts session.ListOptions) ([]session.Session, error)
	Get(ctx context.Context, id string) (*session.Session, error)
}

type FactStore interface {
	Add(ctx context.Context, in fact.Input) (string, error)
	Search(ctx context.Context, query string, opts fact.SearchOptions) ([]fact.Fact, error)
	List(ctx context.Context, opts fact.ListOptions) ([]fact.Fact, error)
}

// Renderer renders context documents without writing them.
type Renderer interface {
	Core(ctx context.Context) (string, error)
	Global(ctx context.Context) (string, error)
	Project(ctx context.Context, name string) (string, error)
}

type Syncer interface {
	Run(ctx context.Context, opts syncer.Options) (*syncer.Result, error)
}

type Config struct {
	Sessions SessionStore
	Facts    FactStore
	Renderer Renderer

	// Syncer is optional and enables the sync_sessions tool.
	Syncer Syncer

	// Semantic is optional and enables the semantic_search tool.
	Semantic session.SemanticIndex

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "engram",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if c.Noop {
		// return the empty MCP server with no tools configured
		// if the noop flag is set (i.e., MCP capabilities are disabled)
		s.mcpServer = mcpServer
		s.handler = newHandler(mcpServer)
		return s, nil
	}

	if c.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if c.Facts == nil {
		return nil, errors.New("fact store is required")
	}
	if c.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if c.Logger == nil {
		return nil, errors.New("logger is required")
	}

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        searchToolName,
		Description: searchDescription,
	}, s.handleSearch)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listSessionsToolName,
		Description: listSessionsDescription,
	}, s.handleListSessions)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        getSessionToolName,
		Description: getSessionDescription,
	}, s.handleGetSession)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        addMemoryToolName,
		Description: addMemoryDescription,
	}, s.handleAddMemory)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        listFactsToolName,
		Description: listFactsDescription,
	}, s.handleListFacts)

	mcp.AddTool(mcpServer, &mcp.Tool{
		Name:        contextSummaryToolName,
		Description: contextSummaryDescription,
	}, s.handleContextSummary)

	if c.Syncer != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        syncToolName,
			Description: syncDescription,
		}, s.handleSync)
	}

	if c.Semantic != nil {
		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        semanticSearchToolName,
			Description: semanticSearchDescription,
		}, s.handleSemanticSearch)
	}

	s.mcpServer = mcpServer

	s.handler = newHandler(mcpServer)

	return s, nil
}

// newHandler creates a streamable HTTP net/http handler for stateless operations.
func newHandler(server *mcp.Server) *mcp.StreamableHTTPHandler {
	return mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return server
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves a single session over t until the client disconnects or ctx
// is done.
func (s *Server) Run(ctx context.Context, t mcp.Transport) error {
	return s.mcpServer.Run(ctx, t)
}

// RunStdio serves over stdin and stdout, the way editors launch MCP
// servers.
func (s *Server) RunStdio(ctx context.Context) error {
	return s.Run(ctx, &mcp.StdioTransport{})
}
