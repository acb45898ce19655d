// Package sqlitevec stores session embeddings in a SQLite database using the
// sqlite-vec extension.
package sqlitevec

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/vector"
)

// Driver implements vector.Driver using SQLite with sqlite-vec.
type Driver struct {
	db         *sql.DB
	dimensions uint
	logger     *slog.Logger
}

// Config holds configuration for the SQLite vec driver.
type Config struct {
	// DBPath is the path to the SQLite database file.
	// Use ":memory:" for an in-memory database.
	DBPath string

	// Dimensions is the number of dimensions of every embedding.
	Dimensions uint

	Logger *slog.Logger
}

// New opens (creating if needed) the vector database at c.DBPath.
func New(c Config) (*Driver, error) {
	sqlite_vec.Auto()

	if c.DBPath == "" {
		return nil, errors.New("database path is required")
	}
	if c.Dimensions == 0 {
		return nil, errors.New("sqlite-vec embedding dimensions cannot be 0, must be configured")
	}

	log := c.Logger
	if log == nil {
		log = logger.Nop()
	}

	dsn := c.DBPath
	if dsn != ":memory:" {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// vec0 tables and the in-memory mode both need every statement on the
	// same connection.
	db.SetMaxOpenConns(1)

	var vecVersion string
	if err := db.QueryRow("SELECT vec_version()").Scan(&vecVersion); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite-vec not available: %w", err)
	}

	// vec0 virtual tables are keyed by integer rowid, so session ids map to
	// rowids through session_vectors.
	schema := []string{
		`CREATE TABLE IF NOT EXISTS session_vectors (
			rowid      INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id TEXT NOT NULL UNIQUE,
			digest     TEXT NOT NULL DEFAULT ''
		)`,
		fmt.Sprintf(`CREATE VIRTUAL TABLE IF NOT EXISTS session_embeddings USING vec0(embedding float[%d])`, c.Dimensions),
	}
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("creating vector schema: %w", err)
		}
	}

	log.Debug("sqlite-vec vector driver initialized",
		"db_path", c.DBPath,
		"dimensions", c.Dimensions,
		"vec_version", vecVersion,
	)

	return &Driver{
		db:         db,
		dimensions: c.Dimensions,
		logger:     log,
	}, nil
}

// encode converts a float32 slice to the little-endian blob sqlite-vec reads.
func encode(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decode(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v, nil
}

// Add stores documents, replacing any document with the same ID.
func (d *Driver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	for _, doc := range docs {
		if uint(len(doc.Embedding)) != d.dimensions {
			return fmt.Errorf("%w: document %s has %d, want %d",
				vector.ErrDimensions, doc.ID, len(doc.Embedding), d.dimensions)
		}
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		// vec0 has no UPDATE, so an existing row is deleted and re-inserted
		// under the same rowid.
		var rowID int64
		err := tx.QueryRowContext(ctx,
			`SELECT rowid FROM session_vectors WHERE session_id = ?`, doc.ID,
		).Scan(&rowID)

		switch {
		case err == nil:
			if _, err := tx.ExecContext(ctx,
				`UPDATE session_vectors SET digest = ? WHERE rowid = ?`, doc.Digest, rowID,
			); err != nil {
				return fmt.Errorf("updating document %s: %w", doc.ID, err)
			}
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM session_embeddings WHERE rowid = ?`, rowID,
			); err != nil {
				return fmt.Errorf("replacing embedding for %s: %w", doc.ID, err)
			}

		case errors.Is(err, sql.ErrNoRows):
			res, err := tx.ExecContext(ctx,
				`INSERT INTO session_vectors (session_id, digest) VALUES (?, ?)`, doc.ID, doc.Digest,
			)
			if err != nil {
				return fmt.Errorf("inserting document %s: %w", doc.ID, err)
			}
			if rowID, err = res.LastInsertId(); err != nil {
				return fmt.Errorf("getting rowid for %s: %w", doc.ID, err)
			}

		default:
			return fmt.Errorf("looking up document %s: %w", doc.ID, err)
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO session_embeddings (rowid, embedding) VALUES (?, ?)`, rowID, encode(doc.Embedding),
		); err != nil {
			return fmt.Errorf("inserting embedding for %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("stored session embeddings", "count", len(docs))
	return nil
}

// Query returns the topK documents nearest to embedding, closest first.
func (d *Driver) Query(ctx context.Context, embedding []float32, topK int) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	rows, err := d.db.QueryContext(ctx, `
		SELECT v.session_id, v.digest, e.distance
		FROM session_embeddings e
		INNER JOIN session_vectors v ON v.rowid = e.rowid
		WHERE e.embedding MATCH ? AND e.k = ?
		ORDER BY e.distance`,
		encode(embedding), topK,
	)
	if err != nil {
		return nil, fmt.Errorf("querying vectors: %w", err)
	}
	defer rows.Close()

	var results []vector.QueryResult
	for rows.Next() {
		var (
			r        vector.QueryResult
			distance float64
		)
		if err := rows.Scan(&r.ID, &r.Digest, &distance); err != nil {
			return nil, fmt.Errorf("scanning query result: %w", err)
		}
		r.Score = float32(1.0 / (1.0 + distance))
		results = append(results, r)
	}

	return results, rows.Err()
}

// Get retrieves documents, with embeddings, by session id.
func (d *Driver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders, args := inClause(ids)
	rows, err := d.db.QueryContext(ctx, `
		SELECT v.session_id, v.digest, e.embedding
		FROM session_vectors v
		LEFT JOIN session_embeddings e ON e.rowid = v.rowid
		WHERE v.session_id IN (`+placeholders+`)
		ORDER BY v.rowid`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	docs := make([]vector.Document, 0, len(ids))
	for rows.Next() {
		var (
			doc  vector.Document
			blob []byte
		)
		if err := rows.Scan(&doc.ID, &doc.Digest, &blob); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		if len(blob) > 0 {
			if doc.Embedding, err = decode(blob); err != nil {
				return nil, fmt.Errorf("decoding embedding for %s: %w", doc.ID, err)
			}
		}
		docs = append(docs, doc)
	}

	return docs, rows.Err()
}

// Delete removes documents by session id. Unknown ids are ignored.
func (d *Driver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders, args := inClause(ids)

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_embeddings WHERE rowid IN (SELECT rowid FROM session_vectors WHERE session_id IN (`+placeholders+`))`,
		args...,
	); err != nil {
		return fmt.Errorf("deleting embeddings: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM session_vectors WHERE session_id IN (`+placeholders+`)`, args...,
	); err != nil {
		return fmt.Errorf("deleting documents: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	d.logger.Debug("deleted session embeddings", "count", len(ids))
	return nil
}

// Close releases the database handle.
func (d *Driver) Close() error {
	return d.db.Close()
}

func inClause(ids []string) (string, []any) {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return strings.TrimSuffix(strings.Repeat("?,", len(ids)), ","), args
}

var _ vector.Driver = (*Driver)(nil)
