// Package parse holds the decoding helpers shared by the session extractors:
// loosely typed JSON content, timestamps in several encodings and generic
// rows from foreign SQLite schemas.
package parse

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/session"
)

// Block is one element of a structured message content list.
type Block struct {
	Type string `json:"type"`
	Text string `json:"text"`
	Name string `json:"name"`
}

// Text flattens message content that is either a JSON string or a list of
// blocks. Text blocks are kept and tool calls rendered as "[Tool: name]".
func Text(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var blocks []Block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}

	parts := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Type {
		case "text":
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		case "tool_use":
			parts = append(parts, "[Tool: "+b.Name+"]")
		}
	}
	return strings.Join(parts, "\n")
}

// Time interprets v as an RFC 3339 string, a SQLite datetime string or a
// Unix epoch in seconds or milliseconds. Unknown values give the zero time.
func Time(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case int64:
		return Epoch(t)
	case float64:
		return Epoch(int64(t))
	case json.Number:
		n, err := t.Int64()
		if err != nil {
			return time.Time{}
		}
		return Epoch(n)
	case []byte:
		return Time(string(t))
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return time.Time{}
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Epoch(n)
		}
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999", "2006-01-02T15:04:05.999999999", "2006-01-02"} {
			if ts, err := time.Parse(layout, s); err == nil {
				return ts.UTC()
			}
		}
	}
	return time.Time{}
}

// Epoch converts seconds or milliseconds since the Unix epoch.
func Epoch(n int64) time.Time {
	if n <= 0 {
		return time.Time{}
	}
	// Anything past the year 5138 in seconds is really milliseconds.
	if n > 1e11 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

// String renders a scanned column value as text.
func String(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case []byte:
		return string(t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(t)
	}
}

// Row is one row of an unknown schema keyed by column name.
type Row map[string]any

// First returns the first non-empty column among keys.
func (r Row) First(keys ...string) any {
	for _, k := range keys {
		if v, ok := r[k]; ok && String(v) != "" {
			return v
		}
	}
	return nil
}

// Rows reads every row into a Row map and closes rows.
func Rows(rows *sql.Rows) ([]Row, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Row
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Message is a loosely typed chat message as stored by several tools.
type Message struct {
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Text      string          `json:"text"`
	Timestamp any             `json:"timestamp"`
}

// Messages decodes a JSON list of loosely typed messages. A message without
// a role is taken as a user message.
func Messages(raw string) []session.Message {
	var in []Message
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil
	}

	var out []session.Message
	for _, m := range in {
		content := Text(m.Content)
		if content == "" {
			content = m.Text
		}
		role := m.Role
		if role == "" {
			role = session.RoleUser
		}
		out = AppendMessage(out, role, content, Time(m.Timestamp))
	}
	return out
}

// AppendMessage appends a conversation message, dropping other roles and
// empty content and truncating to session.MaxMessageChars.
func AppendMessage(msgs []session.Message, role, content string, ts time.Time) []session.Message {
	role = strings.ToLower(strings.TrimSpace(role))
	if !session.IsConversationRole(role) || strings.TrimSpace(content) == "" {
		return msgs
	}
	return append(msgs, session.Message{
		Role:      role,
		Content:   session.TruncateContent(content),
		Timestamp: ts,
	})
}
