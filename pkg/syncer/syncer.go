// Package syncer runs the engram pipeline: import sessions from every
// available tool, distill facts from the new ones, regenerate the context
// files and optionally push everything to the remote backend.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/papercomputeco/engram/pkg/backend"
	"github.com/papercomputeco/engram/pkg/contextdoc"
	"github.com/papercomputeco/engram/pkg/dotdir"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
)

// ErrNoRemote is returned by Push and Pull when the local backend is
// configured.
var ErrNoRemote = errors.New("no remote backend configured")

// SessionStore is the part of the session store the pipeline writes to.
type SessionStore interface {
	Path() string
	Upsert(ctx context.Context, sess session.Session) (string, error)
	Since(ctx context.Context, t time.Time) ([]session.Session, error)
	Checkpoint(ctx context.Context) error
}

// FactStore is the part of the fact store the pipeline transfers.
type FactStore interface {
	Path() string
	Checkpoint(ctx context.Context) error
}

type Distiller interface {
	Extract(ctx context.Context, sessions []session.Session) (int, error)
}

type Renderer interface {
	Update(ctx context.Context) ([]contextdoc.Result, error)
}

type Config struct {
	Sessions   SessionStore
	Facts      FactStore
	Distiller  Distiller
	Renderer   Renderer
	Extractors []extract.Extractor

	// Backend defaults to the local backend.
	Backend backend.Backend

	// Layout locates the context files and the sync state.
	Layout dotdir.Layout

	Logger *slog.Logger
	Now    func() time.Time
}

type Syncer struct {
	sessions   SessionStore
	facts      FactStore
	distiller  Distiller
	renderer   Renderer
	extractors []extract.Extractor
	backend    backend.Backend
	layout     dotdir.Layout
	logger     *slog.Logger
	now        func() time.Time
}

func New(c Config) (*Syncer, error) {
	switch {
	case c.Sessions == nil:
		return nil, errors.New("session store is required")
	case c.Facts == nil:
		return nil, errors.New("fact store is required")
	case c.Distiller == nil:
		return nil, errors.New("distiller is required")
	case c.Renderer == nil:
		return nil, errors.New("renderer is required")
	}

	s := &Syncer{
		sessions:   c.Sessions,
		facts:      c.Facts,
		distiller:  c.Distiller,
		renderer:   c.Renderer,
		extractors: c.Extractors,
		backend:    c.Backend,
		layout:     c.Layout,
		logger:     c.Logger,
		now:        c.Now,
	}
	if s.backend == nil {
		s.backend = backend.NewLocal()
	}
	if s.logger == nil {
		s.logger = logger.Nop()
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Options control a single Run.
type Options struct {
	// Tools restricts the run to the named extractors. Empty means all.
	Tools []string

	// Push uploads the stores and context files after the run.
	Push bool

	// OnTool, when set, is called after each tool finishes importing.
	OnTool func(ToolResult)
}

// Run executes the pipeline. Per-session storage failures are logged and
// counted; failures in distillation or rendering abort the run.
func (s *Syncer) Run(ctx context.Context, opts Options) (*Result, error) {
	start := s.now()
	result := &Result{}

	for _, e := range extract.ByName(s.extractors, opts.Tools...) {
		if !e.Available() {
			s.logger.Debug("extractor not available", "tool", e.Name())
			continue
		}

		tr := ToolResult{Tool: e.Name()}
		for sess := range e.Sessions(ctx) {
			if _, err := s.sessions.Upsert(ctx, sess); err != nil {
				s.logger.Warn("storing session", "tool", e.Name(), "session", sess.ID, "error", err)
				tr.Failed++
				continue
			}
			tr.Sessions++
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}

		s.logger.Info("imported sessions", "tool", tr.Tool, "sessions", tr.Sessions, "failed", tr.Failed)
		result.Tools = append(result.Tools, tr)
		if opts.OnTool != nil {
			opts.OnTool(tr)
		}
	}

	// Imports are stamped with the wall clock, so include the start instant.
	fresh, err := s.sessions.Since(ctx, start.Add(-time.Nanosecond))
	if err != nil {
		return result, fmt.Errorf("loading new sessions: %w", err)
	}
	result.Facts, err = s.distiller.Extract(ctx, fresh)
	if err != nil {
		return result, fmt.Errorf("distilling facts: %w", err)
	}

	result.Artifacts, err = s.renderer.Update(ctx)
	if err != nil {
		return result, fmt.Errorf("updating context files: %w", err)
	}

	if opts.Push && s.backend.Name() != backend.NameLocal {
		push, err := s.Push(ctx)
		if err != nil {
			return result, err
		}
		result.Push = push
	}

	if err := s.saveState(result, start); err != nil {
		s.logger.Warn("saving sync state", "error", err)
	}
	return result, nil
}

// pushFiles are the local paths uploaded by Push.
func (s *Syncer) pushFiles() []string {
	return []string{s.sessions.Path(), s.facts.Path(), s.layout.Core(), s.layout.Context()}
}

// Push checkpoints both stores and uploads them together with the core and
// global context files. Transfer failures are reported in the result, not as
// an error.
func (s *Syncer) Push(ctx context.Context) (*TransferResult, error) {
	if s.backend.Name() == backend.NameLocal {
		return nil, ErrNoRemote
	}

	if err := s.sessions.Checkpoint(ctx); err != nil {
		return nil, err
	}
	if err := s.facts.Checkpoint(ctx); err != nil {
		return nil, err
	}

	res := &TransferResult{Backend: s.backend.Name(), Attempted: true}
	for _, path := range s.pushFiles() {
		if _, err := os.Stat(path); err != nil {
			s.logger.Debug("skipping missing file", "path", path)
			continue
		}
		if s.backend.Upload(ctx, path, "") {
			res.Files = append(res.Files, path)
		} else {
			res.Failed = append(res.Failed, path)
		}
	}
	res.OK = len(res.Failed) == 0 && len(res.Files) > 0
	return res, nil
}

// Pull replaces both local stores with the remote copies. Each store is
// checkpointed first so no write-ahead log is replayed onto the pulled file.
func (s *Syncer) Pull(ctx context.Context) (*TransferResult, error) {
	if s.backend.Name() == backend.NameLocal {
		return nil, ErrNoRemote
	}

	res := &TransferResult{Backend: s.backend.Name(), Attempted: true}
	stores := []interface {
		Path() string
		Checkpoint(ctx context.Context) error
	}{s.sessions, s.facts}

	for _, st := range stores {
		if _, err := os.Stat(st.Path()); err == nil {
			if err := st.Checkpoint(ctx); err != nil {
				return nil, err
			}
		}
		if s.backend.Download(ctx, st.Path(), "") {
			res.Files = append(res.Files, st.Path())
		} else {
			res.Failed = append(res.Failed, st.Path())
		}
	}
	res.OK = len(res.Failed) == 0
	return res, nil
}

// State is persisted after every run.
type State struct {
	LastSync time.Time      `json:"last_sync"`
	Sessions map[string]int `json:"sessions"`
	Facts    int            `json:"facts"`
	Pushed   bool           `json:"pushed"`
}

func (s *Syncer) saveState(r *Result, start time.Time) error {
	st := State{
		LastSync: start.UTC(),
		Sessions: map[string]int{},
		Facts:    r.Facts,
		Pushed:   r.Push != nil && r.Push.OK,
	}
	for _, t := range r.Tools {
		st.Sessions[t.Tool] = t.Sessions
	}

	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return contextdoc.WriteAtomic(s.layout.State(), data)
}

// LoadState reads the state of the last run. A missing file yields the zero
// State.
func LoadState(layout dotdir.Layout) (State, error) {
	var st State
	data, err := os.ReadFile(layout.State())
	if errors.Is(err, os.ErrNotExist) {
		return st, nil
	}
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(data, &st); err != nil {
		return st, fmt.Errorf("decoding sync state: %w", err)
	}
	return st, nil
}
