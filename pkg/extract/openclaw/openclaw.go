// Package openclaw imports OpenClaw agent sessions from the SQLite database
// in ~/.openclaw.
package openclaw

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/papercomputeco/engram/pkg/extract/parse"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/sqlitedb"
)

const Name = "openclaw"

const (
	rowLimit   = 200
	titleChars = 80
)

type Extractor struct {
	root   string
	logger *slog.Logger
}

// New returns an Extractor for the OpenClaw directory root, normally
// ~/.openclaw.
func New(root string, log *slog.Logger) *Extractor {
	if log == nil {
		log = logger.Nop()
	}
	return &Extractor{root: root, logger: log}
}

func DefaultRoot(home string) string {
	return filepath.Join(home, ".openclaw")
}

func (e *Extractor) Name() string {
	return Name
}

func (e *Extractor) Roots() []string {
	return []string{e.root}
}

func (e *Extractor) Available() bool {
	return e.database() != ""
}

// database returns the first *.db file in the root.
func (e *Extractor) database() string {
	matches, err := doublestar.Glob(os.DirFS(e.root), "*.db", doublestar.WithFilesOnly())
	if err != nil || len(matches) == 0 {
		return ""
	}
	slices.Sort(matches)
	return filepath.Join(e.root, matches[0])
}

func (e *Extractor) Sessions(ctx context.Context) iter.Seq[session.Session] {
	return func(yield func(session.Session) bool) {
		path := e.database()
		if path == "" {
			return
		}

		sessions, err := e.read(ctx, path)
		if err != nil {
			e.logger.Warn("reading openclaw database", "path", path, "error", err)
		}
		for _, s := range sessions {
			if !yield(s) {
				return
			}
		}
	}
}

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
	switch {
	case slices.Contains(tables, "sessions"):
		table = "sessions"
	case slices.Contains(tables, "conversation"):
		table = "conversation"
	default:
		return nil, nil
	}
	hasMessages := slices.Contains(tables, "messages")

	cols, err := sqlitedb.Columns(ctx, db, table)
	if err != nil {
		return nil, err
	}
	order := "rowid"
	if slices.Contains(cols, "created_at") {
		order = "created_at"
	}

	rows, err := db.QueryContext(ctx, fmt.Sprintf(
		`SELECT * FROM %s ORDER BY %s DESC LIMIT %d`, sqlitedb.QuoteIdent(table), order, rowLimit,
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
		if ctx.Err() != nil {
			return out, ctx.Err()
		}

		key := parse.String(r.First("id", "key"))
		if key == "" {
			continue
		}

		var msgs []session.Message
		if hasMessages {
			if msgs, err = messages(ctx, db, key); err != nil {
				e.logger.Debug("skipping openclaw messages", "session", key, "error", err)
			}
		}
		if len(msgs) == 0 {
			msgs = parse.Messages(parse.String(r["history"]))
		}
		if len(msgs) == 0 {
			continue
		}

		sess := session.Session{
			ID:         session.NewID(Name, key),
			SourceTool: Name,
			SourcePath: path,
			Project:    parse.String(r.First("channel", "label")),
			Title:      parse.String(r.First("label", "title")),
			CreatedAt:  parse.Time(r.First("created_at")),
			Messages:   msgs,
			Tags:       []string{},
		}
		if sess.Title == "" {
			sess.Title = session.Clip(sess.FirstUserMessage(), titleChars)
		}
		out = append(out, sess)
	}
	return out, nil
}

func messages(ctx context.Context, db *sql.DB, key string) ([]session.Message, error) {
	rows, err := db.QueryContext(ctx, `SELECT * FROM messages WHERE session_id = ? ORDER BY rowid`, key)
	if err != nil {
		return nil, err
	}
	records, err := parse.Rows(rows)
	if err != nil {
		return nil, err
	}

	var out []session.Message
	for _, r := range records {
		out = parse.AppendMessage(out,
			parse.String(r["role"]),
			parse.String(r["content"]),
			parse.Time(r.First("created_at", "timestamp")),
		)
	}
	return out, nil
}
