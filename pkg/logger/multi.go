package logger

import (
	"context"
	"errors"
	"log/slog"
)

// multiHandler hands each record to every child that accepts its level.
type multiHandler struct {
	handlers []slog.Handler
}

// Multi joins loggers so one call reaches all of them, for example pretty
// stderr output plus a JSON log file. Nil loggers and Nop loggers are
// dropped, and nested Multi loggers are flattened. With a single remaining
// logger that logger is returned unchanged.
func Multi(loggers ...*slog.Logger) *slog.Logger {
	var handlers []slog.Handler
	for _, l := range loggers {
		if l == nil {
			continue
		}
		switch h := l.Handler().(type) {
		case nopHandler:
		case *multiHandler:
			handlers = append(handlers, h.handlers...)
		default:
			handlers = append(handlers, h)
		}
	}

	switch len(handlers) {
	case 0:
		return Nop()
	case 1:
		return slog.New(handlers[0])
	}
	return slog.New(&multiHandler{handlers: handlers})
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle writes to every enabled child even when an earlier one fails.
func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	return m.each(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (m *multiHandler) each(fn func(slog.Handler) slog.Handler) slog.Handler {
	children := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		children[i] = fn(h)
	}
	return &multiHandler{handlers: children}
}
