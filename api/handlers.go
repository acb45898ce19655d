package api

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/engram/pkg/contextdoc"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
)

const (
	defaultListLimit   = 20
	defaultSearchLimit = 10
	searchFactLimit    = 8
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// SessionsResponse lists sessions without their messages.
type SessionsResponse struct {
	Sessions []session.Session `json:"sessions"`
	Count    int               `json:"count"`
}

// SearchResponse holds the sessions and facts matching a query.
type SearchResponse struct {
	Query    string            `json:"query"`
	Sessions []session.Session `json:"sessions"`
	Facts    []fact.Fact       `json:"facts"`
	Total    int               `json:"total"`
}

// FactsResponse lists facts.
type FactsResponse struct {
	Facts []fact.Fact `json:"facts"`
	Count int         `json:"count"`
}

// AddFactRequest is the body of POST /v1/facts.
type AddFactRequest struct {
	Content  string `json:"content"`
	Scope    string `json:"scope"`
	Priority int    `json:"priority"`
	Pinned   bool   `json:"pinned"`
}

// AddFactResponse identifies the stored fact.
type AddFactResponse struct {
	ID    string `json:"id"`
	Scope string `json:"scope"`
}

// ContextResponse holds one rendered context document.
type ContextResponse struct {
	Kind    string `json:"kind"`
	Project string `json:"project,omitempty"`
	Content string `json:"content"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleListSessions returns the most recently imported sessions.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	sessions, err := s.config.Sessions.List(c.Context(), session.ListOptions{
		Tool:    c.Query("tool"),
		Project: c.Query("project"),
		Limit:   c.QueryInt("limit", defaultListLimit),
	})
	if err != nil {
		s.logger.Error("failed to list sessions", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to list sessions")
	}

	return c.JSON(SessionsResponse{Sessions: nonNil(sessions), Count: len(sessions)})
}

// handleGetSession returns one session with its messages.
func (s *Server) handleGetSession(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return errorJSON(c, fiber.StatusBadRequest, "id parameter required")
	}

	sess, err := s.config.Sessions.Get(c.Context(), id)
	if err != nil {
		if errors.As(err, &session.ErrNotFound{}) {
			return errorJSON(c, fiber.StatusNotFound, "session not found")
		}
		s.logger.Error("failed to get session", "id", id, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to get session")
	}

	return c.JSON(sess)
}

// handleSearch runs a keyword search over sessions and facts.
func (s *Server) handleSearch(c *fiber.Ctx) error {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		return errorJSON(c, fiber.StatusBadRequest, "q parameter required")
	}
	ctx := c.Context()

	sessions, err := s.config.Sessions.Search(ctx, query, session.SearchOptions{
		Tool:  c.Query("tool"),
		Limit: c.QueryInt("limit", defaultSearchLimit),
	})
	if err != nil {
		s.logger.Error("failed to search sessions", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to search sessions")
	}

	facts, err := s.config.Facts.Search(ctx, query, fact.SearchOptions{Limit: searchFactLimit})
	if err != nil {
		s.logger.Error("failed to search facts", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to search facts")
	}

	return c.JSON(SearchResponse{
		Query:    query,
		Sessions: nonNil(sessions),
		Facts:    nonNil(facts),
		Total:    len(sessions) + len(facts),
	})
}

func (s *Server) handleListFacts(c *fiber.Ctx) error {
	facts, err := s.config.Facts.List(c.Context(), fact.ListOptions{
		Scope:      c.Query("scope"),
		PinnedOnly: c.QueryBool("pinned"),
	})
	if err != nil {
		s.logger.Error("failed to list facts", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to list facts")
	}

	return c.JSON(FactsResponse{Facts: nonNil(facts), Count: len(facts)})
}

// handleAddFact stores a manual fact.
func (s *Server) handleAddFact(c *fiber.Ctx) error {
	var req AddFactRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	scope, err := fact.NormalizeScope(req.Scope)
	if err != nil {
		return errorJSON(c, fiber.StatusBadRequest, err.Error())
	}

	id, err := s.config.Facts.Add(c.Context(), fact.Input{
		Scope:    scope,
		Content:  req.Content,
		Source:   fact.SourceManual,
		Priority: req.Priority,
		Pinned:   req.Pinned,
	})
	if err != nil {
		if errors.Is(err, fact.ErrEmptyContent) || errors.Is(err, fact.ErrInvalidPriority) {
			return errorJSON(c, fiber.StatusBadRequest, err.Error())
		}
		s.logger.Error("failed to add fact", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to add fact")
	}

	return c.Status(fiber.StatusCreated).JSON(AddFactResponse{ID: id, Scope: scope})
}

func (s *Server) handleDeleteFact(c *fiber.Ctx) error {
	id := c.Params("id")

	deleted, err := s.config.Facts.Delete(c.Context(), id)
	if err != nil {
		s.logger.Error("failed to delete fact", "id", id, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to delete fact")
	}
	if !deleted {
		return errorJSON(c, fiber.StatusNotFound, "fact not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleScopes(c *fiber.Ctx) error {
	scopes, err := s.config.Facts.Scopes(c.Context())
	if err != nil {
		s.logger.Error("failed to list scopes", "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to list scopes")
	}

	return c.JSON(fiber.Map{"scopes": nonNil(scopes)})
}

// handleContext renders a context document in memory.
func (s *Server) handleContext(c *fiber.Ctx) error {
	ctx := c.Context()
	kind := c.Params("kind")
	resp := ContextResponse{Kind: kind}

	var err error
	switch kind {
	case contextdoc.KindCore:
		resp.Content, err = s.config.Renderer.Core(ctx)
	case contextdoc.KindGlobal:
		resp.Content, err = s.config.Renderer.Global(ctx)
	case contextdoc.KindProject:
		resp.Project = strings.TrimSpace(c.Query("name"))
		if resp.Project == "" {
			return errorJSON(c, fiber.StatusBadRequest, "name parameter required")
		}
		resp.Content, err = s.config.Renderer.Project(ctx, resp.Project)
		if err == nil && resp.Content == "" {
			return errorJSON(c, fiber.StatusNotFound, "project has no memory")
		}
	default:
		return errorJSON(c, fiber.StatusBadRequest, "kind must be core, global or project")
	}
	if err != nil {
		s.logger.Error("failed to render context", "kind", kind, "error", err)
		return errorJSON(c, fiber.StatusInternalServerError, "failed to render context")
	}

	return c.JSON(resp)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
