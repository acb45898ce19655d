package dotdir

import "path/filepath"

const (
	SessionsDBFile = "engram.db"
	FactsDBFile    = "memory.db"
	VectorsDBFile  = "vectors.db"
	ConfigFile     = "config.toml"
	CoreFile       = "core.md"
	ContextFile    = "context.md"
	ProjectsDir    = "projects"
	StateFile      = "sync_state.json"
)

// Layout holds the absolute paths of everything engram persists.
type Layout struct {
	Root string
}

func NewLayout(root string) Layout {
	return Layout{Root: root}
}

func (l Layout) SessionsDB() string { return filepath.Join(l.Root, SessionsDBFile) }
func (l Layout) FactsDB() string    { return filepath.Join(l.Root, FactsDBFile) }
func (l Layout) VectorsDB() string  { return filepath.Join(l.Root, VectorsDBFile) }
func (l Layout) Config() string     { return filepath.Join(l.Root, ConfigFile) }
func (l Layout) Core() string       { return filepath.Join(l.Root, CoreFile) }
func (l Layout) Context() string    { return filepath.Join(l.Root, ContextFile) }
func (l Layout) Projects() string   { return filepath.Join(l.Root, ProjectsDir) }
func (l Layout) State() string      { return filepath.Join(l.Root, StateFile) }

// ProjectContext returns the per-project artifact path for a project name.
func (l Layout) ProjectContext(name string) string {
	return filepath.Join(l.Root, ProjectsDir, name, ContextFile)
}
