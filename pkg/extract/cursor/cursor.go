// Package cursor imports chats from the SQLite databases in Cursor's
// globalStorage directory.
package cursor

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/engram/pkg/extract/parse"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/sqlitedb"
)

const Name = "cursor"

const (
	rowLimit   = 100
	titleChars = 80
)

type Extractor struct {
	roots  []string
	logger *slog.Logger
}

// New returns an Extractor scanning roots. A root may be a directory,
// searched for *.db files recursively, or a single database file.
func New(roots []string, log *slog.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{roots: roots, logger: log}
}

// DefaultRoots are Cursor's storage locations for the current platform.
func DefaultRoots(home string) []string {
	switch runtime.GOOS {
	case "darwin":
		base := filepath.Join(home, "Library", "Application Support", "Cursor", "User")
		return []string{
			filepath.Join(base, "globalStorage", "storage.db"),
			filepath.Join(base, "workspaceStorage"),
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		return []string{filepath.Join(appData, "Cursor", "User", "globalStorage")}
	default:
		return []string{
			filepath.Join(home, ".config", "Cursor", "User", "globalStorage"),
			filepath.Join(home, ".config", "cursor", "User", "globalStorage"),
		}
	}
}

func (e *Extractor) Name() string {
	return Name
}

func (e *Extractor) Roots() []string {
	return e.roots
}

func (e *Extractor) Available() bool {
	for _, r := range e.roots {
		if _, err := os.Stat(r); err == nil {
			return true
		}
	}
	return false
}

func (e *Extractor) Sessions(ctx context.Context) iter.Seq[session.Session] {
	return func(yield func(session.Session) bool) {
		for _, db := range e.databases() {
			if ctx.Err() != nil {
				return
			}

			sessions, err := e.read(ctx, db)
			if err != nil {
				e.logger.Debug("skipping cursor database", "path", db, "error", err)
				continue
			}
			for _, s := range sessions {
				if !yield(s) {
					return
				}
			}
		}
	}
}

func (e *Extractor) databases() []string {
	var out []string
	for _, root := range e.roots {
		info, err := os.Stat(root)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			out = append(out, root)
			continue
		}

		matches, err := doublestar.Glob(os.DirFS(root), "**/*.db", doublestar.WithFilesOnly())
		if err != nil {
			e.logger.Debug("listing cursor databases", "root", root, "error", err)
			continue
		}
		for _, m := range matches {
			out = append(out, filepath.Join(root, filepath.FromSlash(m)))
		}
	}
	return out
}

// read loads the newest chats of the first chat-like table in path.
func (e *Extractor) read(ctx context.Context, path string) ([]session.Session, error) {
	db, err := sqlitedb.OpenReadOnly(ctx, path)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	tables, err := sqlitedb.Tables(ctx, db)
	if err != nil {
		return nil, err
	}

	var table string
	for _, t := range tables {
		lower := strings.ToLower(t)
		if strings.Contains(lower, "chat") || strings.Contains(lower, "conversation") {
			table = t
			break
		}
	}
	if table == "" {
		return nil, nil
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT rowid AS engram_rowid, * FROM %s ORDER BY rowid DESC LIMIT %d`,
		sqlitedb.QuoteIdent(table), rowLimit,
	))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", table, err)
	}
	records, err := parse.Rows(rows)
	if err != nil {
		return nil, fmt.Errorf("scanning %s: %w", table, err)
	}

	var out []session.Session
	for _, r := range records {
		if s, ok := toSession(path, r); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func toSession(dbPath string, r parse.Row) (session.Session, bool) {
	msgs := parse.Messages(parse.String(r.First("messages", "history", "content")))
	if len(msgs) == 0 {
		return session.Session{}, false
	}

	id := parse.String(r.First("id", "engram_rowid"))
	sess := session.Session{
		ID:         session.NewID(Name, dbPath+"#"+id),
		SourceTool: Name,
		SourcePath: dbPath,
		Project:    parse.String(r.First("workspace", "project")),
		Title:      parse.String(r.First("title")),
		CreatedAt:  parse.Time(r.First("created_at", "timestamp")),
		Messages:   msgs,
		Tags:       []string{},
	}
	if sess.Title == "" {
		sess.Title = session.Clip(sess.FirstUserMessage(), titleChars)
	}
	return sess, true
}
