package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/engram/pkg/session"
)

var (
	listSessionsToolName    = "list_sessions"
	listSessionsDescription = "List recent AI coding sessions, most recently imported first. Optionally filter by tool or project."

	getSessionToolName    = "get_session"
	getSessionDescription = "Get the full conversation history of a specific session."
)

const defaultListLimit = 20

// ListSessionsInput represents the input arguments for the list_sessions tool.
type ListSessionsInput struct {
	Tool    string `json:"tool,omitempty" jsonschema:"restrict to one tool: claude_code, cursor, opencode or openclaw"`
	Project string `json:"project,omitempty" jsonschema:"substring of the project path"`
	Limit   int    `json:"limit,omitempty" jsonschema:"maximum number of sessions to return (default: 20)"`
}

func (s *Server) handleListSessions(ctx context.Context, _ *mcp.CallToolRequest, input ListSessionsInput) (*mcp.CallToolResult, SessionsOutput, error) {
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}

	sessions, err := s.config.Sessions.List(ctx, session.ListOptions{
		Tool:    input.Tool,
		Project: input.Project,
		Limit:   limit,
	})
	if err != nil {
		s.config.Logger.Error("failed to list sessions", "error", err)
		return nil, SessionsOutput{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	output := SessionsOutput{Sessions: nonNil(sessions), Count: len(sessions)}
	return nil, output, nil
}

// GetSessionInput represents the input arguments for the get_session tool.
type GetSessionInput struct {
	SessionID string `json:"session_id" jsonschema:"session id from list_sessions or search_memory"`
}

// GetSessionOutput holds one session with its messages.
type GetSessionOutput struct {
	Session session.Session `json:"session"`
}

func (s *Server) handleGetSession(ctx context.Context, _ *mcp.CallToolRequest, input GetSessionInput) (*mcp.CallToolResult, GetSessionOutput, error) {
	if input.SessionID == "" {
		return nil, GetSessionOutput{}, errors.New("session_id is required")
	}

	sess, err := s.config.Sessions.Get(ctx, input.SessionID)
	if err != nil {
		if errors.As(err, &session.ErrNotFound{}) {
			return nil, GetSessionOutput{}, fmt.Errorf("session not found: %s", input.SessionID)
		}
		s.config.Logger.Error("failed to get session", "id", input.SessionID, "error", err)
		return nil, GetSessionOutput{}, fmt.Errorf("failed to get session: %w", err)
	}
	sess.Tags = nonNil(sess.Tags)

	output := GetSessionOutput{Session: *sess}
	return nil, output, nil
}
