// Package distill derives curated facts from newly imported sessions using
// keyword rules and noise filters. Facts are written through the fact store,
// whose content-derived identities make repeated runs idempotent.
package distill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
)

const (
	// Priority of distilled facts, below the manual default.
	Priority = 2

	titleMinLength = 15
	titleMaxLength = 120

	summaryMaxLength = 150
)

// trustedTitleTools generate their session titles as summaries, so a title
// from them is worth keeping without a trigger keyword.
var trustedTitleTools = map[string]bool{
	"opencode": true,
	"cursor":   true,
}

// FactWriter stores distilled facts.
type FactWriter interface {
	Add(ctx context.Context, in fact.Input) (string, error)
}

type Config struct {
	Facts  FactWriter
	Logger *slog.Logger

	// Home is the user's home directory, never treated as a project.
	// Defaults to os.UserHomeDir.
	Home string
}

// Distiller turns sessions into project facts.
type Distiller struct {
	facts  FactWriter
	logger *slog.Logger
	home   string
}

func New(c Config) (*Distiller, error) {
	if c.Facts == nil {
		return nil, errors.New("fact writer is required")
	}

	d := &Distiller{
		facts:  c.Facts,
		logger: c.Logger,
		home:   c.Home,
	}
	if d.logger == nil {
		d.logger = logger.Nop()
	}
	if d.home == "" {
		d.home, _ = os.UserHomeDir()
	}
	return d, nil
}

// Extract writes the candidate facts of every session and returns how many
// were written. Sessions without a resolvable project are skipped.
func (d *Distiller) Extract(ctx context.Context, sessions []session.Session) (int, error) {
	written := 0
	for i := range sessions {
		sess := &sessions[i]

		project, ok := d.ResolveProject(sess.Project)
		if !ok {
			d.logger.Debug("skipping session without project", "session", sess.ID, "project", sess.Project)
			continue
		}

		scope := fact.ProjectScope(project)
		for _, content := range Candidates(sess) {
			if _, err := d.facts.Add(ctx, fact.Input{
				Scope:    scope,
				Content:  content,
				Source:   fact.SourceAuto,
				Priority: Priority,
			}); err != nil {
				return written, fmt.Errorf("storing fact from session %s: %w", sess.ID, err)
			}
			written++
		}
	}

	if written > 0 {
		d.logger.Info("distilled facts", "sessions", len(sessions), "facts", written)
	}
	return written, nil
}

// Candidates returns the deduplicated fact texts worth keeping from sess.
// A session whose title or opening prompt is system chatter yields none.
func Candidates(sess *session.Session) []string {
	if matchesNoise(sess.Title) || matchesNoise(sess.FirstUserMessage()) {
		return nil
	}

	var out []string
	seen := make(map[string]bool)
	keep := func(s string) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}

	title := strings.TrimSpace(sess.Title)
	if !IsNoise(title) && utf8.RuneCountInString(title) > titleMinLength &&
		(HasTrigger(title) || trustedTitleTools[sess.SourceTool]) {
		keep(session.Clip(title, titleMaxLength))
	}

	summary := strings.TrimSpace(sess.Summary)
	if !IsNoise(summary) && HasTrigger(summary) {
		keep(session.Clip(summary, summaryMaxLength))
	}

	return out
}
