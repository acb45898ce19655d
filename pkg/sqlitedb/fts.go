package sqlitedb

import (
	"context"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Outcome is the result class of an indexed (full-text) search attempt.
type Outcome int

const (
	// OutcomeOK means the full-text query ran.
	OutcomeOK Outcome = iota

	// OutcomeDegraded means the full-text path could not answer the query
	// (rejected query syntax, missing index) and a scan should be used.
	OutcomeDegraded

	// OutcomeFailed means the storage engine itself failed. No fallback
	// applies; the error goes to the caller.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "failed"
	}
}

// Classify maps the error of a full-text query to an Outcome.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return OutcomeFailed
	}

	var serr *sqlite.Error
	if errors.As(err, &serr) {
		// Query syntax and schema errors all share the generic SQLITE_ERROR
		// primary code. Locking and I/O have codes of their own.
		if serr.Code()&0xff == sqlite3.SQLITE_ERROR {
			return OutcomeDegraded
		}
		return OutcomeFailed
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"fts5", "no such table", "no such column", "syntax error", "unterminated", "malformed match"} {
		if strings.Contains(msg, marker) {
			return OutcomeDegraded
		}
	}
	return OutcomeFailed
}

// Phrase quotes a raw user query as a single FTS5 phrase so that operator
// syntax in the query is matched literally.
func Phrase(query string) string {
	return `"` + strings.ReplaceAll(query, `"`, `""`) + `"`
}

// LikeEscape is the escape character used by LikePattern.
const LikeEscape = `\`

// LikePattern builds a substring pattern for `LIKE ? ESCAPE '\'`.
func LikePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}
