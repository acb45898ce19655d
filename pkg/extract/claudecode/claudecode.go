// Package claudecode imports Claude Code sessions from the JSONL transcripts
// under ~/.claude/projects.
package claudecode

import (
	"context"
	"encoding/json"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
)

// Name is the source tool name of imported sessions.
const Name = "claude_code"

const (
	titleChars   = 80
	summaryChars = 200
)

// Extractor reads one session per transcript file.
type Extractor struct {
	root   string
	logger *slog.Logger
}

// New returns an Extractor reading projects under root, normally
// ~/.claude/projects.
func New(root string, log *slog.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{root: root, logger: log}
}

// DefaultRoot is the projects directory under home.
func DefaultRoot(home string) string {
	return filepath.Join(home, ".claude", "projects")
}

func (e *Extractor) Name() string {
	return Name
}

func (e *Extractor) Roots() []string {
	return []string{e.root}
}

// Available reports whether the projects directory exists.
func (e *Extractor) Available() bool {
	info, err := os.Stat(e.root)
	return err == nil && info.IsDir()
}

// Sessions yields one session per transcript that has at least one
// conversation message.
func (e *Extractor) Sessions(ctx context.Context) iter.Seq[session.Session] {
	return func(yield func(session.Session) bool) {
		files, err := doublestar.Glob(os.DirFS(e.root), "*/*.jsonl")
		if err != nil {
			e.logger.Warn("listing claude code transcripts", "root", e.root, "error", err)
			return
		}

		projects := make(map[string]string)
		for _, rel := range files {
			if ctx.Err() != nil {
				return
			}

			dir := filepath.Dir(rel)
			if _, ok := projects[dir]; !ok {
				projects[dir] = projectPath(filepath.Join(e.root, dir))
			}

			sess, ok := e.session(filepath.Join(e.root, rel), projects[dir])
			if !ok {
				continue
			}
			if !yield(sess) {
				return
			}
		}
	}
}

func (e *Extractor) session(path, project string) (session.Session, bool) {
	t, err := ParseTranscript(path)
	if err != nil {
		e.logger.Debug("skipping unreadable transcript", "path", path, "error", err)
		return session.Session{}, false
	}
	if len(t.Messages) == 0 {
		return session.Session{}, false
	}

	if project == "" {
		project = t.CWD
	}
	if project == "" {
		project = filepath.Base(filepath.Dir(path))
	}

	sess := session.Session{
		ID:         session.NewID(Name, path),
		SourceTool: Name,
		SourcePath: path,
		Project:    project,
		CreatedAt:  t.CreatedAt,
		Messages:   t.Messages,
		Tags:       []string{},
	}

	sess.Title = session.Clip(sess.FirstUserMessage(), titleChars)
	if sess.Title == "" {
		sess.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	sess.Summary = session.Clip(sess.FirstAssistantMessage(), summaryChars)

	return sess, true
}

// projectPath reads the "path" recorded in a project's project.json.
func projectPath(dir string) string {
	data, err := os.ReadFile(filepath.Join(dir, "project.json"))
	if err != nil {
		return ""
	}
	var meta struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return ""
	}
	return meta.Path
}
