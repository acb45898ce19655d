package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

// OpenFile appends JSON records to the file at path, creating it and its
// directory when missing. Debug also adds the caller's source position.
// The caller closes the returned io.Closer after the last record.
func OpenFile(path string, debug bool) (*slog.Logger, io.Closer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	l := New(
		WithWriter(f),
		WithJSON(true),
		WithDebug(debug),
		WithSource(debug),
	)
	return l, f, nil
}
