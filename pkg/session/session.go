// Package session is the archive of normalized conversation records imported
// from AI coding assistants. Sessions and their messages live in one SQLite
// file with two full-text indexes: one over message content and one over
// title and summary.
package session

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// MaxMessageChars bounds the stored size of a single message.
	MaxMessageChars = 4000
)

// Session is one conversation imported from an external tool.
type Session struct {
	// ID is derived from the tool name and source locator, see NewID.
	ID string `json:"id"`

	SourceTool string `json:"source_tool"`
	SourcePath string `json:"source_path"`

	// Project is the originating project path, empty when unknown.
	Project string `json:"project"`

	Title   string `json:"title"`
	Summary string `json:"summary"`

	// MessageCount is recomputed by the store on every upsert.
	MessageCount int `json:"message_count"`

	// CreatedAt comes from the source and may be zero.
	CreatedAt time.Time `json:"created_at,omitzero"`

	// ImportedAt is set by the store.
	ImportedAt time.Time `json:"imported_at"`

	Tags []string `json:"tags"`

	// Messages is empty for list and search results.
	Messages []Message `json:"messages,omitempty"`
}

// Message is one turn of a Session in conversation order.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitzero"`
}

// NewID returns the stable identity for a session produced by tool from the
// artifact at locator.
func NewID(tool, locator string) string {
	sum := sha256.Sum256([]byte(locator))
	return tool + "_" + hex.EncodeToString(sum[:])[:12]
}

// IsConversationRole reports whether role is kept at extraction.
func IsConversationRole(role string) bool {
	return role == RoleUser || role == RoleAssistant
}

// TruncateContent cuts message content to MaxMessageChars characters.
func TruncateContent(s string) string {
	return Clip(s, MaxMessageChars)
}

// Clip returns the first n characters of s without splitting a rune.
func Clip(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// FirstUserMessage returns the content of the first user message.
func (s *Session) FirstUserMessage() string {
	return s.firstByRole(RoleUser)
}

// FirstAssistantMessage returns the content of the first assistant message.
func (s *Session) FirstAssistantMessage() string {
	return s.firstByRole(RoleAssistant)
}

func (s *Session) firstByRole(role string) string {
	for _, m := range s.Messages {
		if m.Role == role {
			return m.Content
		}
	}
	return ""
}

// ProjectName returns the last path element of the project path.
func (s *Session) ProjectName() string {
	p := strings.TrimRight(strings.ReplaceAll(s.Project, `\`, "/"), "/")
	if i := strings.LastIndex(p, "/"); i >= 0 {
		return p[i+1:]
	}
	return p
}

// semanticText is the text embedded for nearest-neighbour search.
func (s *Session) semanticText() string {
	var sb strings.Builder
	sb.WriteString(s.Title)
	if s.Summary != "" {
		sb.WriteString("\n")
		sb.WriteString(s.Summary)
	}
	for i, m := range s.Messages {
		if i == 4 {
			break
		}
		sb.WriteString("\n")
		sb.WriteString(m.Content)
	}
	return Clip(sb.String(), 2000)
}
