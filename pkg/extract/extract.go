// Package extract is the registry of session extractors, one per supported
// AI tool.
package extract

import (
	"context"
	"iter"
	"log/slog"
	"slices"

	"github.com/papercomputeco/engram/pkg/extract/claudecode"
	"github.com/papercomputeco/engram/pkg/extract/cursor"
	"github.com/papercomputeco/engram/pkg/extract/openclaw"
	"github.com/papercomputeco/engram/pkg/extract/opencode"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
)

// Extractor reads the sessions one tool has stored on this machine.
//
// Sessions returns a fresh, lazy, finite sequence on every call. Unreadable
// records are logged and skipped; an Extractor never fails.
type Extractor interface {
	Name() string

	// Available reports whether the tool's data exists on this machine.
	Available() bool

	// Roots are the paths the extractor reads, used for file watching.
	Roots() []string

	Sessions(ctx context.Context) iter.Seq[session.Session]
}

var (
	_ Extractor = (*claudecode.Extractor)(nil)
	_ Extractor = (*opencode.Extractor)(nil)
	_ Extractor = (*cursor.Extractor)(nil)
	_ Extractor = (*openclaw.Extractor)(nil)
)

// Names lists the supported tools in registry order.
var Names = []string{claudecode.Name, opencode.Name, cursor.Name, openclaw.Name}

type Options struct {
	// Home is the directory the default tool locations are resolved
	// against, normally the user's home directory.
	Home string

	Logger *slog.Logger
}

// All returns every extractor in registry order.
func All(opts Options) []Extractor {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return []Extractor{
		claudecode.New(claudecode.DefaultRoot(opts.Home), log.With("extractor", claudecode.Name)),
		opencode.New(opencode.DefaultRoot(opts.Home), log.With("extractor", opencode.Name)),
		cursor.New(cursor.DefaultRoots(opts.Home), log.With("extractor", cursor.Name)),
		openclaw.New(openclaw.DefaultRoot(opts.Home), log.With("extractor", openclaw.Name)),
	}
}

// ByName filters extractors to the named tools, keeping registry order. No
// names means all of them.
func ByName(extractors []Extractor, names ...string) []Extractor {
	if len(names) == 0 {
		return extractors
	}
	var out []Extractor
	for _, e := range extractors {
		if slices.Contains(names, e.Name()) {
			out = append(out, e)
		}
	}
	return out
}

// Known reports whether name is a supported tool.
func Known(name string) bool {
	return slices.Contains(Names, name)
}
