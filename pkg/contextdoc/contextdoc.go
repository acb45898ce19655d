// Package contextdoc renders the curated memory into the markdown files that
// assistants load: a tiny always-loaded core of pinned global rules, a global
// summary and one document per project. Every section has its own character
// budget and every file is replaced atomically.
package contextdoc

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/papercomputeco/engram/pkg/distill"
	"github.com/papercomputeco/engram/pkg/dotdir"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/session"
)

// Artifact kinds.
const (
	KindCore    = "core"
	KindGlobal  = "global"
	KindProject = "project"
)

const (
	otherGlobalLimit   = 10
	rollupProjectLimit = 8
	rollupFactsLimit   = 3
	rollupFactChars    = 50
	recentScanLimit    = 30
	recentLimit        = 5
	recentTitleChars   = 60
	projectOtherLimit  = 15

	charsPerToken = 4

	// CorePlaceholder is rendered when there are no pinned global facts.
	CorePlaceholder = `<!-- engram core: no pinned rules yet. Run: engram remember "rule" --pin -->`
)

// Budgets are per-section character limits.
type Budgets struct {
	Core     int
	Pinned   int
	Projects int
	Recent   int
}

// DefaultBudgets keep the core near 100 tokens.
var DefaultBudgets = Budgets{
	Core:     400,
	Pinned:   800,
	Projects: 1600,
	Recent:   800,
}

// FactReader is the read side of the fact store.
type FactReader interface {
	List(ctx context.Context, opts fact.ListOptions) ([]fact.Fact, error)
	Scopes(ctx context.Context) ([]string, error)
}

// SessionReader is the read side of the session store.
type SessionReader interface {
	List(ctx context.Context, opts session.ListOptions) ([]session.Session, error)
}

type Config struct {
	Facts    FactReader
	Sessions SessionReader

	// Layout locates the artifact files.
	Layout dotdir.Layout

	// Budgets default to DefaultBudgets field by field.
	Budgets Budgets

	Logger *slog.Logger
	Now    func() time.Time

	// Rename defaults to os.Rename.
	Rename RenameFunc
}

// Renderer generates the context artifacts. It only reads the stores.
type Renderer struct {
	facts    FactReader
	sessions SessionReader
	layout   dotdir.Layout
	budgets  Budgets
	logger   *slog.Logger
	now      func() time.Time
	rename   RenameFunc
}

// Result describes one written artifact.
type Result struct {
	Kind    string `json:"kind"`
	Project string `json:"project,omitempty"`
	Path    string `json:"path"`
	Chars   int    `json:"chars"`
	Tokens  int    `json:"tokens"`
}

func (r Result) String() string {
	name := r.Kind
	if r.Project != "" {
		name += "/" + r.Project
	}
	return fmt.Sprintf("%s: %d chars (~%d tokens)", name, r.Chars, r.Tokens)
}

func New(c Config) (*Renderer, error) {
	if c.Facts == nil {
		return nil, errors.New("fact reader is required")
	}
	if c.Sessions == nil {
		return nil, errors.New("session reader is required")
	}

	r := &Renderer{
		facts:    c.Facts,
		sessions: c.Sessions,
		layout:   c.Layout,
		budgets:  c.Budgets,
		logger:   c.Logger,
		now:      c.Now,
		rename:   c.Rename,
	}
	r.budgets.Core = cmp.Or(r.budgets.Core, DefaultBudgets.Core)
	r.budgets.Pinned = cmp.Or(r.budgets.Pinned, DefaultBudgets.Pinned)
	r.budgets.Projects = cmp.Or(r.budgets.Projects, DefaultBudgets.Projects)
	r.budgets.Recent = cmp.Or(r.budgets.Recent, DefaultBudgets.Recent)
	if r.logger == nil {
		r.logger = logger.Nop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	if r.rename == nil {
		r.rename = os.Rename
	}
	return r, nil
}

// section accumulates lines until its character budget is spent.
type section struct {
	budget int
	chars  int
	lines  []string
}

// add appends line unless it would take the section over budget, and
// reports whether it did.
func (s *section) add(line string) bool {
	n := utf8.RuneCountInString(line)
	if s.chars+n > s.budget {
		return false
	}
	s.chars += n
	s.lines = append(s.lines, line)
	return true
}

func (s *section) fill(lines []string) {
	for _, l := range lines {
		if !s.add(l) {
			return
		}
	}
}

func formatFact(f fact.Fact) string {
	if f.Pinned {
		return "- 📌 " + f.Content
	}
	return "- " + f.Content
}

// Core renders the pinned global facts within the core budget.
func (r *Renderer) Core(ctx context.Context) (string, error) {
	pinned, err := r.facts.List(ctx, fact.ListOptions{Scope: fact.ScopeGlobal, PinnedOnly: true})
	if err != nil {
		return "", fmt.Errorf("loading pinned facts: %w", err)
	}
	if len(pinned) == 0 {
		return CorePlaceholder, nil
	}

	sec := section{budget: r.budgets.Core}
	for _, f := range pinned {
		if !sec.add(formatFact(f)) {
			break
		}
	}

	return strings.Join(append([]string{"<!-- engram core memory -->"}, sec.lines...), "\n"), nil
}

// Global renders the global summary: pinned rules, other global facts, a
// rollup of recently touched projects and recent sessions.
func (r *Renderer) Global(ctx context.Context) (string, error) {
	all, err := r.facts.List(ctx, fact.ListOptions{})
	if err != nil {
		return "", fmt.Errorf("loading facts: %w", err)
	}

	var (
		pinned []string
		others []string
		scoped = make(map[string][]fact.Fact)
	)
	for _, f := range all {
		switch {
		case f.Scope == fact.ScopeGlobal && f.Pinned:
			pinned = append(pinned, formatFact(f))
		case f.Scope == fact.ScopeGlobal:
			if len(others) < otherGlobalLimit {
				others = append(others, formatFact(f))
			}
		case fact.IsProjectScope(f.Scope):
			scoped[f.Scope] = append(scoped[f.Scope], f)
		}
	}

	lines := []string{
		"## Engram memory (auto-generated)",
		"_Updated: " + r.now().Format("2006-01-02 15:04") + "_",
		"",
	}

	if len(pinned) > 0 {
		sec := section{budget: r.budgets.Pinned}
		sec.fill(pinned)
		lines = append(lines, "### 📌 Global rules")
		lines = append(lines, sec.lines...)
		lines = append(lines, "")
	}

	if len(others) > 0 {
		lines = append(lines, "### Preferences and conventions")
		lines = append(lines, others...)
		lines = append(lines, "")
	}

	if rollup := r.rollup(scoped); len(rollup) > 0 {
		sec := section{budget: r.budgets.Projects}
		sec.fill(rollup)
		lines = append(lines, "### Active projects")
		lines = append(lines, sec.lines...)
		lines = append(lines, "")
	}

	recent, err := r.recent(ctx)
	if err != nil {
		return "", err
	}
	if len(recent) > 0 {
		sec := section{budget: r.budgets.Recent}
		sec.fill(recent)
		lines = append(lines, "### Recent sessions")
		lines = append(lines, sec.lines...)
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n"), nil
}

// rollup returns one line per project for the most recently touched
// project scopes.
func (r *Renderer) rollup(scoped map[string][]fact.Fact) []string {
	type touched struct {
		scope string
		at    time.Time
	}

	order := make([]touched, 0, len(scoped))
	for scope, facts := range scoped {
		t := touched{scope: scope}
		for i := range facts {
			if at := facts[i].Touched(); at.After(t.at) {
				t.at = at
			}
		}
		order = append(order, t)
	}
	slices.SortFunc(order, func(a, b touched) int {
		if c := b.at.Compare(a.at); c != 0 {
			return c
		}
		return strings.Compare(a.scope, b.scope)
	})

	var lines []string
	for _, t := range order {
		if len(lines) == rollupProjectLimit {
			break
		}
		name, _ := fact.ProjectName(t.scope)
		facts := scoped[t.scope]
		parts := make([]string, 0, rollupFactsLimit)
		for i := 0; i < len(facts) && i < rollupFactsLimit; i++ {
			parts = append(parts, session.Clip(facts[i].Content, rollupFactChars))
		}
		lines = append(lines, "- **"+name+"**: "+strings.Join(parts, "; "))
	}
	return lines
}

func (r *Renderer) recent(ctx context.Context) ([]string, error) {
	sessions, err := r.sessions.List(ctx, session.ListOptions{Limit: recentScanLimit})
	if err != nil {
		return nil, fmt.Errorf("loading recent sessions: %w", err)
	}

	var lines []string
	for i := range sessions {
		if len(lines) == recentLimit {
			break
		}
		s := &sessions[i]
		if distill.IsNoise(s.Title) || distill.IsGenericDir(s.ProjectName()) {
			continue
		}

		at := s.CreatedAt
		if at.IsZero() {
			at = s.ImportedAt
		}
		lines = append(lines, fmt.Sprintf("- [%s] (%s) %s",
			at.Format("2006-01-02"), s.SourceTool, session.Clip(s.Title, recentTitleChars)))
	}
	return lines, nil
}

// Project renders the document for one project, or "" when the project
// has no facts.
func (r *Renderer) Project(ctx context.Context, name string) (string, error) {
	facts, err := r.facts.List(ctx, fact.ListOptions{Scope: fact.ProjectScope(name)})
	if err != nil {
		return "", fmt.Errorf("loading facts for %s: %w", name, err)
	}
	if len(facts) == 0 {
		return "", nil
	}

	var pinned, others []string
	for _, f := range facts {
		if f.Pinned {
			pinned = append(pinned, formatFact(f))
		} else if len(others) < projectOtherLimit {
			others = append(others, formatFact(f))
		}
	}

	lines := []string{
		"## Project memory: " + name,
		"_Updated: " + r.now().Format("2006-01-02 15:04") + "_",
		"",
	}
	if len(pinned) > 0 {
		lines = append(lines, "### 📌 Key rules")
		lines = append(lines, pinned...)
		lines = append(lines, "")
	}
	if len(others) > 0 {
		lines = append(lines, "### Decisions and notes")
		lines = append(lines, others...)
	}

	return strings.TrimRight(strings.Join(lines, "\n"), "\n"), nil
}

// Update regenerates and atomically writes every artifact.
func (r *Renderer) Update(ctx context.Context) ([]Result, error) {
	var results []Result

	write := func(kind, project, path, content string) error {
		if err := writeAtomic(path, []byte(content), r.rename); err != nil {
			return err
		}
		chars := utf8.RuneCountInString(content)
		results = append(results, Result{
			Kind:    kind,
			Project: project,
			Path:    path,
			Chars:   chars,
			Tokens:  chars / charsPerToken,
		})
		return nil
	}

	core, err := r.Core(ctx)
	if err != nil {
		return nil, err
	}
	if err := write(KindCore, "", r.layout.Core(), core); err != nil {
		return results, err
	}

	global, err := r.Global(ctx)
	if err != nil {
		return results, err
	}
	if err := write(KindGlobal, "", r.layout.Context(), global); err != nil {
		return results, err
	}

	scopes, err := r.facts.Scopes(ctx)
	if err != nil {
		return results, fmt.Errorf("loading scopes: %w", err)
	}
	for _, scope := range scopes {
		name, ok := fact.ProjectName(scope)
		if !ok {
			continue
		}
		if !fact.ValidProjectName(name) {
			r.logger.Warn("skipping project with unusable name", "project", name)
			continue
		}

		doc, err := r.Project(ctx, name)
		if err != nil {
			return results, err
		}
		if doc == "" {
			continue
		}
		if err := write(KindProject, name, r.layout.ProjectContext(name), doc); err != nil {
			return results, err
		}
	}

	r.logger.Debug("context artifacts updated", "count", len(results))
	return results, nil
}
