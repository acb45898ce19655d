package fact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/sqlitedb"
)

const (
	DefaultGlobalCapacity  = 50
	DefaultProjectCapacity = 30

	DefaultSearchLimit = 10
)

const schema = `
CREATE TABLE IF NOT EXISTS facts (
	id         TEXT PRIMARY KEY,
	scope      TEXT NOT NULL DEFAULT 'global',
	content    TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT 'manual',
	priority   INTEGER NOT NULL DEFAULT 3,
	pinned     INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	last_used  TEXT,
	use_count  INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_facts_scope ON facts(scope, pinned);

CREATE VIRTUAL TABLE IF NOT EXISTS facts_fts USING fts5(fact_id UNINDEXED, content);
`

const factColumns = `f.id, f.scope, f.content, f.source, f.priority, f.pinned,
	f.created_at, f.last_used, f.use_count`

// Config configures a Store.
type Config struct {
	// Path is the SQLite file of the fact archive.
	Path string

	Logger *slog.Logger

	// GlobalCapacity bounds non-pinned facts in the global scope and any
	// scope that is not a project.
	GlobalCapacity int

	// ProjectCapacity bounds non-pinned facts in each project scope.
	ProjectCapacity int

	Now func() time.Time
}

// Store persists facts. Every operation opens its own short-lived
// connection and runs in one transaction.
type Store struct {
	path            string
	logger          *slog.Logger
	globalCapacity  int
	projectCapacity int
	now             func() time.Time
}

// SearchOptions narrows Search.
type SearchOptions struct {
	// Scope is an exact scope match.
	Scope string

	Limit int
}

// ListOptions narrows List.
type ListOptions struct {
	Scope      string
	PinnedOnly bool
}

// NewStore returns a Store for the archive at c.Path. Call Init before use.
func NewStore(c Config) (*Store, error) {
	if c.Path == "" {
		return nil, errors.New("fact store path is required")
	}

	s := &Store{
		path:            c.Path,
		logger:          c.Logger,
		globalCapacity:  c.GlobalCapacity,
		projectCapacity: c.ProjectCapacity,
		now:             c.Now,
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.globalCapacity <= 0 {
		s.globalCapacity = DefaultGlobalCapacity
	}
	if s.projectCapacity <= 0 {
		s.projectCapacity = DefaultProjectCapacity
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

func (s *Store) Path() string {
	return s.path
}

// Init creates the schema if it does not exist.
func (s *Store) Init(ctx context.Context) error {
	return sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, schema); err != nil {
			return fmt.Errorf("creating fact schema: %w", err)
		}
		return nil
	})
}

// Capacity is the bound on non-pinned facts in scope.
func (s *Store) Capacity(scope string) int {
	if IsProjectScope(scope) {
		return s.projectCapacity
	}
	return s.globalCapacity
}

// Add validates in, replaces or inserts the fact with its identity and then
// evicts the least valuable non-pinned facts of the scope beyond capacity.
// The write and the eviction share one transaction.
func (s *Store) Add(ctx context.Context, in Input) (string, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return "", ErrEmptyContent
	}

	scope, err := NormalizeScope(in.Scope)
	if err != nil {
		return "", err
	}

	priority := in.Priority
	if priority == 0 {
		priority = DefaultPriority
	}
	if priority < MinPriority || priority > MaxPriority {
		return "", ErrInvalidPriority
	}

	source := in.Source
	if source == "" {
		source = SourceManual
	}

	id := NewID(scope, content)
	now := sqlitedb.FormatTime(s.now())

	var evicted []string
	err = sqlitedb.WithTx(ctx, s.path, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO facts (id, scope, content, source, priority, pinned, created_at, last_used, use_count)
			VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 0)
			ON CONFLICT(id) DO UPDATE SET
				scope      = excluded.scope,
				content    = excluded.content,
				source     = excluded.source,
				priority   = excluded.priority,
				pinned     = excluded.pinned,
				created_at = excluded.created_at,
				last_used  = NULL,
				use_count  = 0`,
			id, scope, content, source, priority, in.Pinned, now,
		); err != nil {
			return fmt.Errorf("writing fact %s: %w", id, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM facts_fts WHERE fact_id = ?`, id); err != nil {
			return fmt.Errorf("clearing fact index %s: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO facts_fts (fact_id, content) VALUES (?, ?)`, id, content,
		); err != nil {
			return fmt.Errorf("indexing fact %s: %w", id, err)
		}

		var err error
		evicted, err = s.evict(ctx, tx, scope)
		return err
	})
	if err != nil {
		return "", err
	}

	if len(evicted) > 0 {
		s.logger.Debug("evicted facts over capacity",
			"scope", scope,
			"capacity", s.Capacity(scope),
			"evicted", evicted,
		)
	}

	return id, nil
}

// evict deletes the lowest-priority, least-used, oldest non-pinned facts of
// scope until the scope is back within capacity.
func (s *Store) evict(ctx context.Context, tx *sql.Tx, scope string) ([]string, error) {
	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM facts WHERE scope = ? AND pinned = 0`, scope,
	).Scan(&count); err != nil {
		return nil, fmt.Errorf("counting facts in %s: %w", scope, err)
	}

	excess := count - s.Capacity(scope)
	if excess <= 0 {
		return nil, nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id FROM facts
		WHERE scope = ? AND pinned = 0
		ORDER BY priority ASC, use_count ASC, created_at ASC, rowid ASC
		LIMIT ?`,
		scope, excess,
	)
	if err != nil {
		return nil, fmt.Errorf("selecting eviction victims in %s: %w", scope, err)
	}
	victims, err := scanIDs(rows)
	if err != nil {
		return nil, err
	}

	for _, id := range victims {
		if err := deleteFact(ctx, tx, id); err != nil {
			return nil, err
		}
	}
	return victims, nil
}

// Search returns facts matching query ranked by priority then use count,
// and records the hit on every returned fact. A query the full-text index
// rejects falls back to a substring scan.
func (s *Store) Search(ctx context.Context, query string, opts SearchOptions) ([]Fact, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []Fact{}, nil
	}
	if opts.Limit <= 0 {
		opts.Limit = DefaultSearchLimit
	}

	now := s.now()

	var results []Fact
	err := sqlitedb.WithTx(ctx, s.path, func(tx *sql.Tx) error {
		found, err := searchIndexed(ctx, tx, query, opts)
		switch outcome := sqlitedb.Classify(err); outcome {
		case sqlitedb.OutcomeOK:
			results = found
		case sqlitedb.OutcomeDegraded:
			s.logger.Debug("full-text fact search degraded, scanning", "query", query, "error", err)
			if results, err = searchScan(ctx, tx, query, opts); err != nil {
				return err
			}
		default:
			return fmt.Errorf("searching facts: %w", err)
		}

		return recordHits(ctx, tx, results, now)
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

func searchIndexed(ctx context.Context, tx *sql.Tx, query string, opts SearchOptions) ([]Fact, error) {
	return queryFacts(ctx, tx, `
		SELECT `+factColumns+`
		FROM facts f
		WHERE f.id IN (SELECT fact_id FROM facts_fts WHERE facts_fts MATCH ?)
			AND (? = '' OR f.scope = ?)
		ORDER BY f.priority DESC, f.use_count DESC, f.rowid ASC
		LIMIT ?`,
		sqlitedb.Phrase(query), opts.Scope, opts.Scope, opts.Limit,
	)
}

func searchScan(ctx context.Context, tx *sql.Tx, query string, opts SearchOptions) ([]Fact, error) {
	return queryFacts(ctx, tx, `
		SELECT `+factColumns+`
		FROM facts f
		WHERE f.content LIKE ? ESCAPE '\'
			AND (? = '' OR f.scope = ?)
		ORDER BY f.priority DESC, f.use_count DESC, f.rowid ASC
		LIMIT ?`,
		sqlitedb.LikePattern(query), opts.Scope, opts.Scope, opts.Limit,
	)
}

func recordHits(ctx context.Context, tx *sql.Tx, facts []Fact, now time.Time) error {
	ts := sqlitedb.FormatTime(now)
	for i := range facts {
		if _, err := tx.ExecContext(ctx,
			`UPDATE facts SET use_count = use_count + 1, last_used = ? WHERE id = ?`,
			ts, facts[i].ID,
		); err != nil {
			return fmt.Errorf("recording use of fact %s: %w", facts[i].ID, err)
		}
		facts[i].UseCount++
		facts[i].LastUsed = sqlitedb.ParseTime(ts)
	}
	return nil
}

// List returns facts pinned first, then by priority and use count.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]Fact, error) {
	var results []Fact
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		var err error
		results, err = queryFacts(ctx, db, `
			SELECT `+factColumns+`
			FROM facts f
			WHERE (? = '' OR f.scope = ?)
				AND (? = 0 OR f.pinned = 1)
			ORDER BY f.pinned DESC, f.priority DESC, f.use_count DESC, f.rowid ASC`,
			opts.Scope, opts.Scope, opts.PinnedOnly,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing facts: %w", err)
	}
	return results, nil
}

// Get returns one fact by id.
func (s *Store) Get(ctx context.Context, id string) (*Fact, error) {
	var results []Fact
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		var err error
		results, err = queryFacts(ctx, db, `SELECT `+factColumns+` FROM facts f WHERE f.id = ?`, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("loading fact %s: %w", id, err)
	}
	if len(results) == 0 {
		return nil, ErrNotFound{ID: id}
	}
	return &results[0], nil
}

// Scopes returns the distinct scopes present, ascending.
func (s *Store) Scopes(ctx context.Context) ([]string, error) {
	var scopes []string
	err := sqlitedb.WithDB(ctx, s.path, func(db *sql.DB) error {
		rows, err := db.QueryContext(ctx, `SELECT DISTINCT scope FROM facts ORDER BY scope`)
		if err != nil {
			return err
		}
		scopes, err = scanIDs(rows)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("listing scopes: %w", err)
	}
	return scopes, nil
}

// Delete removes a fact and its index entry and reports whether it existed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	var existed bool
	err := sqlitedb.WithTx(ctx, s.path, func(tx *sql.Tx) error {
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM facts WHERE id = ?`, id).Scan(&n); err != nil {
			return fmt.Errorf("looking up fact %s: %w", id, err)
		}
		existed = n > 0
		return deleteFact(ctx, tx, id)
	})
	if err != nil {
		return false, err
	}
	return existed, nil
}

// Checkpoint folds the write-ahead log into the archive file.
func (s *Store) Checkpoint(ctx context.Context) error {
	return sqlitedb.Checkpoint(ctx, s.path)
}

func deleteFact(ctx context.Context, tx *sql.Tx, id string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts_fts WHERE fact_id = ?`, id); err != nil {
		return fmt.Errorf("unindexing fact %s: %w", id, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM facts WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting fact %s: %w", id, err)
	}
	return nil
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryFacts(ctx context.Context, q querier, query string, args ...any) ([]Fact, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []Fact{}
	for rows.Next() {
		var (
			f                   Fact
			createdAt, lastUsed sql.NullString
		)
		if err := rows.Scan(
			&f.ID, &f.Scope, &f.Content, &f.Source, &f.Priority, &f.Pinned,
			&createdAt, &lastUsed, &f.UseCount,
		); err != nil {
			return nil, err
		}
		f.CreatedAt = sqlitedb.ParseTime(createdAt)
		f.LastUsed = sqlitedb.ParseTime(lastUsed)
		results = append(results, f)
	}

	return results, rows.Err()
}

func scanIDs(rows *sql.Rows) ([]string, error) {
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
