package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/sqlitedb"
)

const (
	// DefaultSearchLimit applies when a search or list limit is not positive.
	DefaultSearchLimit = 10

	// DefaultListLimit applies when a list limit is not positive.
	DefaultListLimit = 20
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	source_tool   TEXT NOT NULL,
	source_path   TEXT NOT NULL DEFAULT '',
	project       TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	message_count INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT,
	imported_at   TEXT NOT NULL,
	tags          TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_sessions_tool ON sessions(source_tool);
CREATE INDEX IF NOT EXISTS idx_sessions_imported ON sessions(imported_at);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
	role       TEXT NOT NULL,
	content    TEXT NOT NULL,
	timestamp  TEXT
);

CREATE INDEX IF NOT EXISTS idx_messages_session ON messages(session_id, id);

CREATE VIRTUAL TABLE IF NOT EXISTS messages_fts USING fts5(session_id UNINDEXED, content);
CREATE VIRTUAL TABLE IF NOT EXISTS sessions_fts USING fts5(session_id UNINDEXED, title, summary);
`

const sessionColumns = `s.id, s.source_tool, s.source_path, s.project, s.title, s.summary,
	s.message_count, s.created_at, s.imported_at, s.tags`

// SemanticIndex is an optional nearest-neighbour layer over sessions.
type SemanticIndex interface {
	// Index stores the embedding of text under the session id.
	Index(ctx context.Context, id, text string) error

	// Nearest returns up to k session ids closest to query.
	Nearest(ctx context.Context, query string, k int) ([]string, error)
}

// Config configures a Store.
type Config struct {
	// Path is the SQLite file of the session archive.
	Path string

	Logger *slog.Logger

	// Semantic is merged into Search results when set.
	Semantic SemanticIndex

	// Now overrides the clock used for import timestamps.
	Now func() time.Time
}

// Store persists sessions. Every operation opens its own short-lived
// connection; each Upsert is one transaction.
type Store struct {
	path     string
	logger   *slog.Logger
	semantic SemanticIndex
	now      func() time.Time
}

// SearchOptions narrows Search.
type SearchOptions struct {
	// Tool restricts results to one source tool.
	Tool string

	Limit int
}

// ListOptions narrows List.
type ListOptions struct {
	// Tool is an exact source tool match.
	Tool string

	// Project is a substring match on the project path.
	Project string

	Limit int
}

// NewStore returns a Store for the archive at c.Path. Call Init before use.
func NewStore(c Config) (*Store, error) {
	if c.Path == "" {
		return nil, errors.New("session store path is required")
	}

	s := &Store{
		path:     c.Path,
		logger:   c.Logger,
		semantic: c.Semantic,
		now:      c.Now,
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Path returns the archive file path.
func (s *Store) Path() string {
	return s.path
}

// Init creates the schema if it does not exist. Safe to call on every start.
func (s *Store) Init(ctx context.Context) error {
	return sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("creating session schema: %w", err)
		}
		return nil
	})
}

// Upsert replaces the session with the same identity, including all of its
// messages and index entries, and returns the identity.
func (s *Store) Upsert(ctx context.Context, sess Session) (string, error) {
	if sess.ID == "" && sess.SourceTool != "" && sess.SourcePath != "" {
		sess.ID = NewID(sess.SourceTool, sess.SourcePath)
	}
	if sess.ID == "" || sess.SourceTool == "" {
		return "", ErrInvalidSession
	}

	tags := sess.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return "", fmt.Errorf("encoding tags: %w", err)
	}

	importedAt := s.now()

	err = sqlitedb.WithTx(ctx, s.path, func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM messages_fts WHERE session_id = ?`,
			`DELETE FROM sessions_fts WHERE session_id = ?`,
			`DELETE FROM messages WHERE session_id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, sess.ID); err != nil {
				return fmt.Errorf("clearing session %s: %w", sess.ID, err)
			}
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, source_tool, source_path, project, title, summary,
				message_count, created_at, imported_at, tags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				source_tool   = excluded.source_tool,
				source_path   = excluded.source_path,
				project       = excluded.project,
				title         = excluded.title,
				summary       = excluded.summary,
				message_count = excluded.message_count,
				created_at    = excluded.created_at,
				imported_at   = excluded.imported_at,
				tags          = excluded.tags`,
			sess.ID, sess.SourceTool, sess.SourcePath, sess.Project, sess.Title, sess.Summary,
			len(sess.Messages), sqlitedb.FormatTime(sess.CreatedAt), sqlitedb.FormatTime(importedAt), string(tagsJSON),
		)
		if err != nil {
			return fmt.Errorf("writing session %s: %w", sess.ID, err)
		}

		for _, m := range sess.Messages {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)`,
				sess.ID, m.Role, m.Content, sqlitedb.FormatTime(m.Timestamp),
			); err != nil {
				return fmt.Errorf("writing message for %s: %w", sess.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO messages_fts (session_id, content) VALUES (?, ?)`,
				sess.ID, m.Content,
			); err != nil {
				return fmt.Errorf("indexing message for %s: %w", sess.ID, err)
			}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO sessions_fts (session_id, title, summary) VALUES (?, ?, ?)`,
			sess.ID, sess.Title, sess.Summary,
		); err != nil {
			return fmt.Errorf("indexing session %s: %w", sess.ID, err)
		}

		return nil
	})
	if err != nil {
		return "", err
	}

	if s.semantic != nil {
		if err := s.semantic.Index(ctx, sess.ID, sess.semanticText()); err != nil {
			s.logger.Warn("semantic indexing failed", "session", sess.ID, "error", err)
		}
	}

	return sess.ID, nil
}

// Search returns sessions whose messages, title or summary match query,
// most recently imported first. A query the full-text index rejects falls
// back to a substring scan instead of failing.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]Session, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Session{}, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}

	var results []Session
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		found, err := s.searchIndexed(ctx, db, query, opts)
		switch outcome := sqlitedb.Classify(err); outcome {
		case sqlitedb.OutcomeOK:
			results = found
			return nil
		case sqlitedb.OutcomeDegraded:
			s.logger.Debug("full-text session search degraded, scanning", "query", query, "error", err)
			results, err = s.searchScan(ctx, db, query, opts)
			return err
		default:
			return fmt.Errorf("searching sessions: %w", err)
		}
	})
	if err != nil {
		return nil, err
	}

	if s.semantic != nil && len(results) < opts.Limit {
		results = s.mergeSemantic(ctx, query, opts, results)
	}

	return results, nil
}

func (s *Store) searchIndexed(ctx context.Context, db *sql.DB, query string, opts SearchOptions) ([]Session, error) {
	phrase := sqlitedb.Phrase(query)
	return querySessions(ctx, db, `
		SELECT `+sessionColumns+`
		FROM sessions s
		WHERE (s.id IN (SELECT session_id FROM messages_fts WHERE messages_fts MATCH ?)
			OR s.id IN (SELECT session_id FROM sessions_fts WHERE sessions_fts MATCH ?))
			AND (? = '' OR s.source_tool = ?)
		ORDER BY s.imported_at DESC, s.rowid DESC
		LIMIT ?`,
		phrase, phrase, opts.Tool, opts.Tool, opts.Limit,
	)
}

func (s *Store) searchScan(ctx context.Context, db *sql.DB, query string, opts SearchOptions) ([]Session, error) {
	pattern := sqlitedb.LikePattern(query)
	return querySessions(ctx, db, `
		SELECT `+sessionColumns+`
		FROM sessions s
		WHERE (s.title LIKE ? ESCAPE '\'
			OR s.summary LIKE ? ESCAPE '\'
			OR EXISTS (SELECT 1 FROM messages m WHERE m.session_id = s.id AND m.content LIKE ? ESCAPE '\'))
			AND (? = '' OR s.source_tool = ?)
		ORDER BY s.imported_at DESC, s.rowid DESC
		LIMIT ?`,
		pattern, pattern, pattern, opts.Tool, opts.Tool, opts.Limit,
	)
}

// mergeSemantic appends nearest-neighbour sessions the lexical step missed.
// Failures only cost the extra results.
func (s *Store) mergeSemantic(ctx context.Context, query string, opts SearchOptions, results []Session) []Session {
	ids, err := s.semantic.Nearest(ctx, query, opts.Limit)
	if err != nil {
		s.logger.Warn("semantic search failed", "error", err)
		return results
	}

	seen := make(map[string]bool, len(results))
	for _, r := range results {
		seen[r.ID] = true
	}

	for _, id := range ids {
		if len(results) >= opts.Limit {
			break
		}
		if seen[id] {
			continue
		}
		seen[id] = true

		sess, err := s.header(ctx, id)
		if err != nil {
			var nf ErrNotFound
			if !errors.As(err, &nf) {
				s.logger.Warn("loading semantic match failed", "session", id, "error", err)
			}
			continue
		}
		if opts.Tool != "" && sess.SourceTool != opts.Tool {
			continue
		}
		results = append(results, *sess)
	}

	return results
}

// List returns sessions most recently imported first.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Session, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}

	var results []Session
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		var err error
		results, err = querySessions(ctx, db, `
			SELECT `+sessionColumns+`
			FROM sessions s
			WHERE (? = '' OR s.source_tool = ?)
				AND (? = '' OR s.project LIKE ? ESCAPE '\')
			ORDER BY s.imported_at DESC, s.rowid DESC
			LIMIT ?`,
			opts.Tool, opts.Tool, opts.Project, sqlitedb.LikePattern(opts.Project), opts.Limit,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return results, nil
}

// Get returns the session with its messages in conversation order.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	var sess *Session
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		var err error
		sess, err = getHeader(ctx, db, id)
		if err != nil {
			return err
		}

		msgs, err := loadMessages(ctx, db, `WHERE session_id = ?`, id)
		if err != nil {
			return err
		}
		sess.Messages = msgs[id]
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sess, nil
}

// Since returns the sessions imported strictly after t, most recent first,
// with their messages.
func (s *Store) Since(ctx context.Context, t time.Time) ([]Session, error) {
	after := sqlitedb.FormatTime(t)
	if !after.Valid {
		after = sql.NullString{String: "", Valid: true}
	}

	var results []Session
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		var err error
		results, err = querySessions(ctx, db, `
			SELECT `+sessionColumns+`
			FROM sessions s
			WHERE s.imported_at > ?
			ORDER BY s.imported_at DESC, s.rowid DESC`,
			after,
		)
		if err != nil {
			return err
		}

		msgs, err := loadMessages(ctx, db,
			`WHERE session_id IN (SELECT id FROM sessions WHERE imported_at > ?)`, after)
		if err != nil {
			return err
		}
		for i := range results {
			results[i].Messages = msgs[results[i].ID]
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading sessions since %s: %w", t.Format(time.RFC3339), err)
	}
	return results, nil
}

// Checkpoint folds the write-ahead log into the archive file.
func (s *Store) Checkpoint(ctx context.Context) error {
	return sqlitedb.Checkpoint(ctx, s.path)
}

func (s *Store) header(ctx context.Context, id string) (*Session, error) {
	var sess *Session
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		var err error
		sess, err = getHeader(ctx, db, id)
		return err
	})
	return sess, err
}

func getHeader(ctx context.Context, db *sql.DB, id string) (*Session, error) {
	rows, err := querySessions(ctx, db, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound{ID: id}
	}
	return &rows[0], nil
}

func querySessions(ctx context.Context, db *sql.DB, query string, args ...any) ([]Session, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Session{}
	for rows.Next() {
		var (
			sess                  Session
			createdAt, importedAt sql.NullString
			tags                  string
		)
		if err := rows.Scan(
			&sess.ID, &sess.SourceTool, &sess.SourcePath, &sess.Project, &sess.Title, &sess.Summary,
			&sess.MessageCount, &createdAt, &importedAt, &tags,
		); err != nil {
			return nil, err
		}
		sess.CreatedAt = sqlitedb.ParseTime(createdAt)
		sess.ImportedAt = sqlitedb.ParseTime(importedAt)
		if err := json.Unmarshal([]byte(tags), &sess.Tags); err != nil {
			sess.Tags = []string{}
		}
		results = append(results, sess)
	}

	return results, rows.Err()
}

func loadMessages(ctx context.Context, db *sql.DB, where string, args ...any) (map[string][]Message, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT session_id, role, content, timestamp FROM messages `+where+` ORDER BY session_id, id`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("loading messages: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]Message)
	for rows.Next() {
		var (
			sid string
			m   Message
			ts  sql.NullString
		)
		if err := rows.Scan(&sid, &m.Role, &m.Content, &ts); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		m.Timestamp = sqlitedb.ParseTime(ts)
		out[sid] = append(out[sid], m)
	}

	return out, rows.Err()
}
