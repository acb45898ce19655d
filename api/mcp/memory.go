package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/engram/pkg/fact"
)

var (
	addMemoryToolName    = "add_memory"
	addMemoryDescription = "Add a fact to the engram memory. Use scope 'global' for cross-project rules and 'project:NAME' for project-specific facts. Pinned global facts are always loaded through core.md."

	listFactsToolName    = "list_facts"
	listFactsDescription = "List the curated memory facts, pinned first, optionally restricted to one scope."
)

// AddMemoryInput represents the input arguments for the add_memory tool.
type AddMemoryInput struct {
	Content  string `json:"content" jsonschema:"the fact to remember"`
	Scope    string `json:"scope,omitempty" jsonschema:"'global' (default) or 'project:NAME'"`
	Priority int    `json:"priority,omitempty" jsonschema:"importance from 1 to 5 (default: 3)"`
	Pin      bool   `json:"pin,omitempty" jsonschema:"pin the fact so it is always loaded"`
}

// AddMemoryOutput reports the stored fact.
type AddMemoryOutput struct {
	ID     string `json:"id"`
	Scope  string `json:"scope"`
	Status string `json:"status"`
}

// handleAddMemory stores a fact on behalf of the calling tool.
func (s *Server) handleAddMemory(ctx context.Context, _ *mcp.CallToolRequest, input AddMemoryInput) (*mcp.CallToolResult, AddMemoryOutput, error) {
	scope, err := fact.NormalizeScope(input.Scope)
	if err != nil {
		return nil, AddMemoryOutput{}, err
	}

	id, err := s.config.Facts.Add(ctx, fact.Input{
		Scope:    scope,
		Content:  input.Content,
		Source:   fact.SourceMCP,
		Priority: input.Priority,
		Pinned:   input.Pin,
	})
	if err != nil {
		if errors.Is(err, fact.ErrEmptyContent) || errors.Is(err, fact.ErrInvalidPriority) {
			return nil, AddMemoryOutput{}, err
		}
		s.config.Logger.Error("failed to add fact", "error", err)
		return nil, AddMemoryOutput{}, fmt.Errorf("failed to save memory: %w", err)
	}

	output := AddMemoryOutput{ID: id, Scope: scope, Status: "saved"}
	return nil, output, nil
}

// ListFactsInput represents the input arguments for the list_facts tool.
type ListFactsInput struct {
	Scope      string `json:"scope,omitempty" jsonschema:"only facts in this scope"`
	PinnedOnly bool   `json:"pinned_only,omitempty" jsonschema:"only pinned facts"`
}

// ListFactsOutput represents the structured output of list_facts.
type ListFactsOutput struct {
	Facts []fact.Fact `json:"facts"`
	Count int         `json:"count"`
}

func (s *Server) handleListFacts(ctx context.Context, _ *mcp.CallToolRequest, input ListFactsInput) (*mcp.CallToolResult, ListFactsOutput, error) {
	facts, err := s.config.Facts.List(ctx, fact.ListOptions{Scope: input.Scope, PinnedOnly: input.PinnedOnly})
	if err != nil {
		s.config.Logger.Error("failed to list facts", "error", err)
		return nil, ListFactsOutput{}, fmt.Errorf("failed to list facts: %w", err)
	}

	output := ListFactsOutput{Facts: nonNil(facts), Count: len(facts)}
	return nil, output, nil
}
