package logger

import (
	"io"
	"log/slog"
)

// Option configures New.
type Option func(*config)

// WithDebug lowers the level to Debug.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithPretty selects the charmbracelet/log handler. Used for terminals.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		c.pretty = pretty
	}
}

// WithJSON selects slog's JSON handler. It wins over WithPretty, so a log
// file never receives color codes.
func WithJSON(json bool) Option {
	return func(c *config) {
		c.json = json
	}
}

// WithWriter replaces the destination. Defaults to os.Stderr, which keeps
// stdout free for command output and the MCP stdio transport.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		c.writers = []io.Writer{w}
	}
}

// WithWriters writes every record to all of ws through one handler.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) {
		c.writers = ws
	}
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}
