// Package fact is the curated memory: short facts scoped globally or to a
// project, full-text searchable and bounded per scope by eviction.
package fact

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

const (
	// ScopeGlobal is the scope of facts that apply everywhere.
	ScopeGlobal = "global"

	// ProjectPrefix prefixes per-project scopes, as in "project:myapp".
	ProjectPrefix = "project:"
)

// Sources record how a fact was created.
const (
	SourceManual = "manual"
	SourceAuto   = "auto"
	SourceMCP    = "mcp"
)

const (
	MinPriority     = 1
	MaxPriority     = 5
	DefaultPriority = 3
)

// identityPrefix is how much of the content takes part in the identity.
const identityPrefix = 100

// Fact is one curated memory entry.
type Fact struct {
	ID        string    `json:"id"`
	Scope     string    `json:"scope"`
	Content   string    `json:"content"`
	Source    string    `json:"source"`
	Priority  int       `json:"priority"`
	Pinned    bool      `json:"pinned"`
	CreatedAt time.Time `json:"created_at"`
	LastUsed  time.Time `json:"last_used,omitzero"`
	UseCount  int       `json:"use_count"`
}

// Input is a fact to add.
type Input struct {
	// Scope defaults to ScopeGlobal.
	Scope   string
	Content string

	// Source defaults to SourceManual.
	Source string

	// Priority defaults to DefaultPriority.
	Priority int
	Pinned   bool
}

// NewID derives the identity of content in scope. Re-adding the same content
// yields the same identity.
func NewID(scope, content string) string {
	content = strings.TrimSpace(content)
	if r := []rune(content); len(r) > identityPrefix {
		content = string(r[:identityPrefix])
	}
	sum := sha256.Sum256([]byte(scope + ":" + content))
	return hex.EncodeToString(sum[:])[:16]
}

// ProjectScope returns the scope for project name.
func ProjectScope(name string) string {
	return ProjectPrefix + name
}

// ProjectName returns the project of a project scope.
func ProjectName(scope string) (string, bool) {
	name, ok := strings.CutPrefix(scope, ProjectPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// IsProjectScope reports whether scope names a project.
func IsProjectScope(scope string) bool {
	_, ok := ProjectName(scope)
	return ok
}

// ValidProjectName reports whether name can name a project. Each project
// gets its own context directory, so names are single path elements.
func ValidProjectName(name string) bool {
	switch strings.TrimSpace(name) {
	case "", ".", "..":
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

// NormalizeScope trims scope, maps the empty scope to ScopeGlobal and
// rejects anything that is neither global nor a validly named project.
func NormalizeScope(scope string) (string, error) {
	scope = strings.TrimSpace(scope)
	if scope == "" || scope == ScopeGlobal {
		return ScopeGlobal, nil
	}
	name, ok := ProjectName(scope)
	if !ok || !ValidProjectName(name) {
		return "", ErrInvalidScope{Scope: scope}
	}
	return ProjectScope(strings.TrimSpace(name)), nil
}

// Touched is the most recent of creation and last use.
func (f *Fact) Touched() time.Time {
	if f.LastUsed.After(f.CreatedAt) {
		return f.LastUsed
	}
	return f.CreatedAt
}
