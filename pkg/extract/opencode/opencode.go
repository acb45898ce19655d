// Package opencode imports OpenCode sessions from its JSON storage tree:
// session/<project>/ses_*.json, message/<session>/msg_*.json and
// part/<message>/prt_*.json.
package opencode

import (
	"context"
	"encoding/json"
	"io/fs"
	"iter"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/engram/pkg/extract/parse"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
)

const Name = "opencode"

const titleChars = 80

type times struct {
	Created int64 `json:"created"`
}

type sessionFile struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Directory string `json:"directory"`
	Time      times  `json:"time"`
}

type messageFile struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Time times  `json:"time"`
}

type partFile struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type Extractor struct {
	root   string
	fsys   fs.FS
	logger *slog.Logger
}

// New returns an Extractor for the storage directory root, normally
// ~/.local/share/opencode/storage.
func New(root string, log *slog.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{root: root, fsys: os.DirFS(root), logger: log}
}

func DefaultRoot(home string) string {
	return filepath.Join(home, ".local", "share", "opencode", "storage")
}

func (e *Extractor) Name() string {
	return Name
}

func (e *Extractor) Roots() []string {
	return []string{e.root}
}

// Available reports whether any session file exists.
func (e *Extractor) Available() bool {
	matches, err := doublestar.Glob(e.fsys, "session/*/ses_*.json")
	return err == nil && len(matches) > 0
}

func (e *Extractor) Sessions(ctx context.Context) iter.Seq[session.Session] {
	return func(yield func(session.Session) bool) {
		files, err := doublestar.Glob(e.fsys, "session/*/ses_*.json")
		if err != nil {
			e.logger.Warn("listing opencode sessions", "root", e.root, "error", err)
			return
		}
		slices.Sort(files)

		for _, rel := range files {
			if ctx.Err() != nil {
				return
			}

			var meta sessionFile
			if err := e.readJSON(rel, &meta); err != nil || meta.ID == "" {
				e.logger.Debug("skipping unreadable opencode session", "path", rel, "error", err)
				continue
			}

			if !yield(e.session(meta)) {
				return
			}
		}
	}
}

func (e *Extractor) session(meta sessionFile) session.Session {
	sess := session.Session{
		ID:         session.NewID(Name, meta.ID),
		SourceTool: Name,
		SourcePath: e.root,
		Project:    meta.Directory,
		Title:      meta.Title,
		CreatedAt:  parse.Epoch(meta.Time.Created),
		Messages:   e.messages(meta.ID),
		Tags:       []string{},
	}
	if sess.Title == "" {
		sess.Title = session.Clip(sess.FirstUserMessage(), titleChars)
	}
	if sess.Title == "" {
		sess.Title = meta.ID
	}
	return sess
}

func (e *Extractor) messages(sessionID string) []session.Message {
	files, err := doublestar.Glob(e.fsys, path.Join("message", sessionID, "msg_*.json"))
	if err != nil {
		return nil
	}
	slices.Sort(files)

	var out []session.Message
	for _, rel := range files {
		var m messageFile
		if err := e.readJSON(rel, &m); err != nil || m.ID == "" {
			continue
		}
		out = parse.AppendMessage(out, m.Role, e.text(m.ID), parse.Epoch(m.Time.Created))
	}
	return out
}

// text joins the text parts of a message.
func (e *Extractor) text(messageID string) string {
	files, err := doublestar.Glob(e.fsys, path.Join("part", messageID, "prt_*.json"))
	if err != nil {
		return ""
	}
	slices.Sort(files)

	var parts []string
	for _, rel := range files {
		var p partFile
		if err := e.readJSON(rel, &p); err != nil {
			continue
		}
		if p.Type == "text" && p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func (e *Extractor) readJSON(rel string, v any) error {
	data, err := fs.ReadFile(e.fsys, rel)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
