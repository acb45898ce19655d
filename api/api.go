package api

import (
	"errors"
	"log/slog"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
)

// Server is the API server for querying the engram archive and memory.
type Server struct {
	config Config
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server. The stores are injected so the MCP
// server and the API share them.
func NewServer(config Config) (*Server, error) {
	if config.Sessions == nil {
		return nil, errors.New("session store is required")
	}
	if config.Facts == nil {
		return nil, errors.New("fact store is required")
	}
	if config.Renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if config.Logger == nil {
		return nil, errors.New("logger is required")
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config: config,
		logger: config.Logger,
		app:    app,
	}

	app.Get("/ping", s.handlePing)

	v1 := app.Group("/v1")
	v1.Get("/sessions", s.handleListSessions)
	v1.Get("/sessions/:id", s.handleGetSession)
	v1.Get("/search", s.handleSearch)
	v1.Get("/facts", s.handleListFacts)
	v1.Post("/facts", s.handleAddFact)
	v1.Delete("/facts/:id", s.handleDeleteFact)
	v1.Get("/scopes", s.handleScopes)
	v1.Get("/context/:kind", s.handleContext)

	if config.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(config.MCP))
	}

	return s, nil
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server", "listen", s.config.ListenAddr)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
