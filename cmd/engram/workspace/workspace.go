// Package workspace opens everything an engram command works with: the
// resolved configuration, both stores, the renderer, the optional semantic
// index, the remote backend and the sync pipeline.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/papercomputeco/engram/api/mcp"
	"github.com/papercomputeco/engram/pkg/backend"
	backendutils "github.com/papercomputeco/engram/pkg/backend/utils"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/contextdoc"
	"github.com/papercomputeco/engram/pkg/distill"
	"github.com/papercomputeco/engram/pkg/dotdir"
	embeddingutils "github.com/papercomputeco/engram/pkg/embeddings/utils"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/fact"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/semantic"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/syncer"
	"github.com/papercomputeco/engram/pkg/vector/sqlitevec"
)

// Options select the engram home and how the workspace behaves.
type Options struct {
	// ConfigDir overrides the engram home.
	ConfigDir string

	Debug bool

	// Viper, when set, supplies the configuration instead of config.toml
	// alone, so bound flags and ENGRAM_* variables take part.
	Viper *viper.Viper

	// LogWriter defaults to os.Stderr. Stdout stays free for command output
	// and the MCP stdio transport.
	LogWriter io.Writer

	// LogFile additionally appends JSON records to this file.
	LogFile string

	// Home is where the AI tools keep their data. Defaults to the user's
	// home directory.
	Home string

	// Semantic opens the embedding index when one is configured.
	Semantic bool
}

// Workspace holds the opened components. Close releases them.
type Workspace struct {
	Layout   dotdir.Layout
	Config   *config.Config
	Logger   *slog.Logger
	Sessions *session.Store
	Facts    *fact.Store
	Renderer *contextdoc.Renderer
	Backend  backend.Backend
	Syncer   *syncer.Syncer

	// Extractors is the full registry in fixed order.
	Extractors []extract.Extractor

	// Semantic is nil unless Options.Semantic is set and an embedding
	// provider is configured.
	Semantic *semantic.Index

	logFile io.Closer
}

// FromCommand reads the global --config-dir and --debug flags.
func FromCommand(cmd *cobra.Command) Options {
	configDir, _ := cmd.Flags().GetString("config-dir")
	debug, _ := cmd.Flags().GetBool("debug")
	return Options{ConfigDir: configDir, Debug: debug}
}

// NewLogger logs to w, pretty when w is a terminal.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	pretty := false
	if f, ok := w.(*os.File); ok {
		pretty = term.IsTerminal(int(f.Fd()))
	}
	return logger.New(
		logger.WithWriter(w),
		logger.WithDebug(debug),
		logger.WithPretty(pretty),
	)
}

// LoadConfig resolves the engram home and its configuration.
func LoadConfig(opts Options) (dotdir.Layout, *config.Config, error) {
	layout, err := dotdir.NewManager().Layout(opts.ConfigDir)
	if err != nil {
		return dotdir.Layout{}, nil, err
	}

	v := opts.Viper
	if v == nil {
		v, err = config.InitViper(layout.Root)
		if err != nil {
			return dotdir.Layout{}, nil, err
		}
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return dotdir.Layout{}, nil, err
	}
	return layout, cfg, nil
}

// Open resolves the configuration and opens every component.
func Open(ctx context.Context, opts Options) (*Workspace, error) {
	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	log := NewLogger(w, opts.Debug)

	layout, cfg, err := LoadConfig(opts)
	if err != nil {
		return nil, err
	}

	home := opts.Home
	if home == "" {
		home, err = os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
	}

	ws := &Workspace{
		Layout: layout,
		Config: cfg,
	}

	if opts.LogFile != "" {
		fileLog, closer, err := logger.OpenFile(opts.LogFile, opts.Debug)
		if err != nil {
			return nil, err
		}
		ws.logFile = closer
		log = logger.Multi(log, fileLog)
	}
	ws.Logger = log

	if opts.Semantic {
		ws.Semantic, err = openSemantic(cfg, layout, log)
		if err != nil {
			return nil, ws.fail(err)
		}
	}

	sessionsPath := cfg.Storage.SessionsPath
	if sessionsPath == "" {
		sessionsPath = layout.SessionsDB()
	}
	sessionConfig := session.Config{Path: sessionsPath, Logger: log.With("store", "sessions")}
	if ws.Semantic != nil {
		sessionConfig.Semantic = ws.Semantic
	}
	ws.Sessions, err = session.NewStore(sessionConfig)
	if err != nil {
		return nil, ws.fail(err)
	}
	if err := ws.Sessions.Init(ctx); err != nil {
		return nil, ws.fail(fmt.Errorf("initializing session store: %w", err))
	}

	factsPath := cfg.Storage.FactsPath
	if factsPath == "" {
		factsPath = layout.FactsDB()
	}
	ws.Facts, err = fact.NewStore(fact.Config{Path: factsPath, Logger: log.With("store", "facts")})
	if err != nil {
		return nil, ws.fail(err)
	}
	if err := ws.Facts.Init(ctx); err != nil {
		return nil, ws.fail(fmt.Errorf("initializing fact store: %w", err))
	}

	ws.Renderer, err = contextdoc.New(contextdoc.Config{
		Facts:    ws.Facts,
		Sessions: ws.Sessions,
		Layout:   layout,
		Budgets: contextdoc.Budgets{
			Core:     cfg.Context.CoreBudget,
			Pinned:   cfg.Context.PinnedBudget,
			Projects: cfg.Context.ProjectBudget,
			Recent:   cfg.Context.RecentBudget,
		},
		Logger: log.With("component", "renderer"),
	})
	if err != nil {
		return nil, ws.fail(err)
	}

	distiller, err := distill.New(distill.Config{Facts: ws.Facts, Logger: log.With("component", "distill"), Home: home})
	if err != nil {
		return nil, ws.fail(err)
	}

	ws.Backend, err = backendutils.New(cfg.Backend, log)
	if err != nil {
		return nil, ws.fail(err)
	}

	ws.Extractors = extract.All(extract.Options{Home: home, Logger: log})

	ws.Syncer, err = syncer.New(syncer.Config{
		Sessions:   ws.Sessions,
		Facts:      ws.Facts,
		Distiller:  distiller,
		Renderer:   ws.Renderer,
		Extractors: ws.Extractors,
		Backend:    ws.Backend,
		Layout:     layout,
		Logger:     log.With("component", "syncer"),
	})
	if err != nil {
		return nil, ws.fail(err)
	}

	return ws, nil
}

func openSemantic(cfg *config.Config, layout dotdir.Layout, log *slog.Logger) (*semantic.Index, error) {
	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		Dimensions:   cfg.Embedding.Dimensions,
	})
	if err != nil {
		return nil, err
	}
	if embedder == nil {
		return nil, nil
	}

	target := cfg.VectorStore.Target
	if target == "" {
		target = layout.VectorsDB()
	}
	driver, err := sqlitevec.New(sqlitevec.Config{
		DBPath:     target,
		Dimensions: cfg.Embedding.Dimensions,
		Logger:     log.With("component", "sqlitevec"),
	})
	if err != nil {
		_ = embedder.Close()
		return nil, fmt.Errorf("opening vector store: %w", err)
	}

	index, err := semantic.New(embedder, driver, log.With("component", "semantic"))
	if err != nil {
		return nil, errors.Join(err, embedder.Close(), driver.Close())
	}
	return index, nil
}

// MCPServer builds the MCP server over the opened stores. The sync tool is
// always offered; semantic search only when an index is open.
func (ws *Workspace) MCPServer() (*mcp.Server, error) {
	c := mcp.Config{
		Sessions: ws.Sessions,
		Facts:    ws.Facts,
		Renderer: ws.Renderer,
		Syncer:   ws.Syncer,
		Logger:   ws.Logger.With("component", "mcp"),
	}
	if ws.Semantic != nil {
		c.Semantic = ws.Semantic
	}
	return mcp.NewServer(c)
}

func (ws *Workspace) fail(err error) error {
	return errors.Join(err, ws.Close())
}

// Close releases the semantic index and the log file. The stores hold no
// open connections between operations.
func (ws *Workspace) Close() error {
	var errs []error
	if ws.Semantic != nil {
		errs = append(errs, ws.Semantic.Close())
	}
	if ws.logFile != nil {
		errs = append(errs, ws.logFile.Close())
	}
	return errors.Join(errs...)
}
