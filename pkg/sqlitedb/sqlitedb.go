// Package sqlitedb holds the SQLite plumbing shared by the session and fact
// stores: short-lived handles opened with WAL journaling and a busy timeout,
// one transaction per logical operation, and full-text query helpers.
package sqlitedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// BusyTimeout is how long a connection waits on a locked database before
// giving up with SQLITE_BUSY.
const BusyTimeout = 5 * time.Second

// TimeLayout is the fixed-width UTC layout used for every persisted
// timestamp so that lexical order matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// DSN returns the modernc DSN for path. Every connection gets WAL journaling,
// the busy timeout and foreign keys; write transactions take the lock
// up front so contention waits on the busy timeout instead of failing at
// commit.
func DSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", BusyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "synchronous(NORMAL)")
	q.Set("_txlock", "immediate")
	return fileURI(path, q)
}

// fileURI builds a SQLite URI filename. The path is percent-escaped so
// that '?', '#' and '%' in directory names stay part of the path.
func fileURI(path string, q url.Values) string {
	u := (&url.URL{Path: filepath.ToSlash(path)}).EscapedPath()
	return "file:" + u + "?" + q.Encode()
}

// Open opens a short-lived handle to the database at path, creating the
// parent directory when needed. The caller must Close it.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("database path is required")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open(DriverName, DSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connecting to database %s: %w", path, err)
	}

	return db, nil
}

// WithDB opens the database at path, runs fn and closes the handle.
func WithDB(ctx context.Context, path string, fn func(db *sql.DB) error) error {
	db, err := Open(ctx, path)
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(db)
}

// WithTx runs fn inside a single transaction on a short-lived handle.
// The transaction commits when fn returns nil and rolls back otherwise.
func WithTx(ctx context.Context, path string, fn func(tx *sql.Tx) error) error {
	return WithDB(ctx, path, func(db *sql.DB) error {
		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback()

		if err := fn(tx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// Checkpoint folds the write-ahead log back into the main database file so
// the file can be copied on its own.
func Checkpoint(ctx context.Context, path string) error {
	return WithDB(ctx, path, func(db *sql.DB) error {
		if _, err := db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
			return fmt.Errorf("checkpointing %s: %w", path, err)
		}
		return nil
	})
}

// FormatTime renders t in TimeLayout. The zero time renders as NULL.
func FormatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(TimeLayout), Valid: true}
}

// ParseTime is the inverse of FormatTime. Unparseable or NULL values yield
// the zero time.
func ParseTime(s sql.NullString) time.Time {
	if !s.Valid || s.String == "" {
		return time.Time{}
	}
	t, err := time.Parse(TimeLayout, s.String)
	if err != nil {
		if t, err = time.Parse(time.RFC3339Nano, s.String); err != nil {
			return time.Time{}
		}
	}
	return t.UTC()
}
