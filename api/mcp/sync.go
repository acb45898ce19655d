package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/syncer"
)

var (
	syncToolName    = "sync_sessions"
	syncDescription = "Import new sessions from the installed AI tools, distill facts and regenerate the context files. Does not push to the remote backend."

	contextSummaryToolName    = "get_context_summary"
	contextSummaryDescription = "Get the core rules, the global context and recent sessions. Pass a project name to get that project's memory instead of the global context."
)

const defaultRecentLimit = 5

// SyncInput represents the input arguments for the sync_sessions tool.
type SyncInput struct {
	Tools []string `json:"tools,omitempty" jsonschema:"tools to import from, all when empty"`
}

// SyncOutput reports a sync run.
type SyncOutput struct {
	Summary  string              `json:"summary"`
	Tools    []syncer.ToolResult `json:"tools"`
	Sessions int                 `json:"sessions"`
	Facts    int                 `json:"facts"`
}

func (s *Server) handleSync(ctx context.Context, _ *mcp.CallToolRequest, input SyncInput) (*mcp.CallToolResult, SyncOutput, error) {
	result, err := s.config.Syncer.Run(ctx, syncer.Options{Tools: input.Tools})
	if err != nil {
		s.config.Logger.Error("sync failed", "error", err)
		return nil, SyncOutput{}, fmt.Errorf("sync failed: %w", err)
	}

	output := SyncOutput{
		Summary:  result.Summary(),
		Tools:    nonNil(result.Tools),
		Sessions: result.Sessions(),
		Facts:    result.Facts,
	}
	return nil, output, nil
}

// ContextSummaryInput represents the input arguments for get_context_summary.
type ContextSummaryInput struct {
	Project string `json:"project,omitempty" jsonschema:"project name, the global context is returned when empty"`
	Limit   int    `json:"limit,omitempty" jsonschema:"number of recent sessions (default: 5)"`
}

// ContextSummaryOutput holds the rendered documents and recent sessions.
type ContextSummaryOutput struct {
	Core    string            `json:"core"`
	Context string            `json:"context"`
	Project string            `json:"project,omitempty"`
	Recent  []session.Session `json:"recent"`
	Summary []string          `json:"summary"`
}

// handleContextSummary renders the documents in memory. Nothing is written
// to the context files.
func (s *Server) handleContextSummary(ctx context.Context, _ *mcp.CallToolRequest, input ContextSummaryInput) (*mcp.CallToolResult, ContextSummaryOutput, error) {
	logger := s.config.Logger

	limit := input.Limit
	if limit <= 0 {
		limit = defaultRecentLimit
	}

	core, err := s.config.Renderer.Core(ctx)
	if err != nil {
		logger.Error("failed to render core", "error", err)
		return nil, ContextSummaryOutput{}, fmt.Errorf("failed to render core: %w", err)
	}

	var doc string
	if input.Project != "" {
		doc, err = s.config.Renderer.Project(ctx, input.Project)
	} else {
		doc, err = s.config.Renderer.Global(ctx)
	}
	if err != nil {
		logger.Error("failed to render context", "project", input.Project, "error", err)
		return nil, ContextSummaryOutput{}, fmt.Errorf("failed to render context: %w", err)
	}

	recent, err := s.config.Sessions.List(ctx, session.ListOptions{Project: input.Project, Limit: limit})
	if err != nil {
		logger.Error("failed to list sessions", "error", err)
		return nil, ContextSummaryOutput{}, fmt.Errorf("failed to list sessions: %w", err)
	}

	summary := make([]string, 0, len(recent))
	for _, sess := range recent {
		title := sess.Title
		if title == "" {
			title = "(untitled)"
		}
		summary = append(summary, fmt.Sprintf("[%s] %s (%d messages)", sess.SourceTool, session.Clip(title, 60), sess.MessageCount))
	}

	output := ContextSummaryOutput{
		Core:    core,
		Context: doc,
		Project: input.Project,
		Recent:  nonNil(recent),
		Summary: summary,
	}
	return nil, output, nil
}
