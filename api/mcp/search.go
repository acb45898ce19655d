package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/session"
)

var (
	searchToolName    = "search_memory"
	searchDescription = "Search across all AI coding tool conversations (Claude Code, Cursor, OpenCode, OpenClaw) and the curated memory facts. Returns matching sessions and facts."

	semanticSearchToolName    = "semantic_search"
	semanticSearchDescription = "Semantic (vector) search across all AI conversations. Better than keyword search for conceptual queries."
)

const (
	defaultSearchLimit = 10
	searchFactLimit    = 8
)

// SearchInput represents the input arguments for the search_memory tool.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	Tool  string `json:"tool,omitempty" jsonschema:"restrict sessions to one tool: claude_code, cursor, opencode or openclaw"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default: 10)"`
}

// SearchOutput represents the output of the search_memory tool.
type SearchOutput struct {
	Query    string            `json:"query"`
	Facts    []fact.Fact       `json:"facts"`
	Sessions []session.Session `json:"sessions"`
	Total    int               `json:"total"`
}

// handleSearch processes a search request.
func (s *Server) handleSearch(ctx context.Context, _ *mcp.CallToolRequest, input SearchInput) (*mcp.CallToolResult, SearchOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return nil, SearchOutput{}, errors.New("query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	logger.Debug("MCP search request", "query", input.Query, "tool", input.Tool, "limit", limit)

	sessions, err := s.config.Sessions.Search(ctx, input.Query, session.SearchOptions{Tool: input.Tool, Limit: limit})
	if err != nil {
		logger.Error("failed to search sessions", "error", err)
		return nil, SearchOutput{}, fmt.Errorf("failed to search sessions: %w", err)
	}

	facts, err := s.config.Facts.Search(ctx, input.Query, fact.SearchOptions{Limit: searchFactLimit})
	if err != nil {
		logger.Error("failed to search facts", "error", err)
		return nil, SearchOutput{}, fmt.Errorf("failed to search facts: %w", err)
	}

	output := SearchOutput{
		Query:    input.Query,
		Facts:    nonNil(facts),
		Sessions: nonNil(sessions),
		Total:    len(facts) + len(sessions),
	}
	return nil, output, nil
}

// SemanticSearchInput represents the input arguments for the semantic_search tool.
type SemanticSearchInput struct {
	Query string `json:"query" jsonschema:"the search query text"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default: 10)"`
}

// SessionsOutput lists sessions without their messages.
type SessionsOutput struct {
	Sessions []session.Session `json:"sessions"`
	Count    int               `json:"count"`
}

// handleSemanticSearch returns the sessions nearest to the query embedding.
func (s *Server) handleSemanticSearch(ctx context.Context, _ *mcp.CallToolRequest, input SemanticSearchInput) (*mcp.CallToolResult, SessionsOutput, error) {
	logger := s.config.Logger

	if input.Query == "" {
		return nil, SessionsOutput{}, errors.New("query is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ids, err := s.config.Semantic.Nearest(ctx, input.Query, limit)
	if err != nil {
		logger.Error("failed to query semantic index", "error", err)
		return nil, SessionsOutput{}, fmt.Errorf("semantic search failed: %w", err)
	}

	sessions := make([]session.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.config.Sessions.Get(ctx, id)
		if err != nil {
			// The vector index can outlive a pulled archive.
			if !errors.As(err, &session.ErrNotFound{}) {
				logger.Warn("failed to load session", "id", id, "error", err)
			}
			continue
		}
		sess.Messages = nil
		sessions = append(sessions, *sess)
	}

	output := SessionsOutput{Sessions: sessions, Count: len(sessions)}
	return nil, output, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
