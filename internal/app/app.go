// Package app wires configuration, storage and the indexing components into
// a runnable citeindex instance.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dshills/citeindex/internal/citation"
	"github.com/dshills/citeindex/internal/config"
	"github.com/dshills/citeindex/internal/coverage"
	"github.com/dshills/citeindex/internal/embedder"
	"github.com/dshills/citeindex/internal/indexer"
	"github.com/dshills/citeindex/internal/knowledge"
	"github.com/dshills/citeindex/internal/matcher"
	"github.com/dshills/citeindex/internal/scancache"
	"github.com/dshills/citeindex/internal/scanner"
	"github.com/dshills/citeindex/internal/searcher"
	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

// Option configures the application.
type Option func(*application)

type application struct {
	config   *config.Config
	logger   *slog.Logger
	embedder embedder.Embedder
	logOut   io.Writer
}

// WithConfig sets the application config.
func WithConfig(cfg *config.Config) Option {
	return func(a *application) { a.config = cfg }
}

// WithLogger replaces the JSON logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(a *application) { a.logger = logger }
}

// WithEmbedder replaces the embedder built from the config.
func WithEmbedder(emb embedder.Embedder) Option {
	return func(a *application) { a.embedder = emb }
}

// WithLogOutput redirects the JSON logger. Defaults to stderr so stdout
// stays free for the MCP transport and command output.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) { a.logOut = w }
}

// App holds the wired components of one project.
type App struct {
	Config    *config.Config
	Logger    *slog.Logger
	Store     storage.Storage
	Embedder  embedder.Embedder
	Indexer   *indexer.Indexer
	Coverage  *coverage.Calculator
	Checker   *citation.Checker
	Importer  *knowledge.Importer
	Searcher  *searcher.Searcher
	scanner   *scanner.Scanner
	ownsStore bool
}

// NewLogger builds the structured JSON logger used by every component.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
}

// New builds an App. The caller must Close it.
func New(opts ...Option) (*App, error) {
	a := &application{logOut: os.Stderr}
	for _, opt := range opts {
		opt(a)
	}
	if a.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	cfg := a.config
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := a.logger
	if logger == nil {
		logger = NewLogger(a.logOut, cfg.App.LogLevel)
		slog.SetDefault(logger)
	}

	root, err := filepath.Abs(cfg.Project.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve project root: %w", err)
	}
	cfg.Project.Root = root
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", root)
	}

	dbPath := cfg.StoragePath()
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	emb := a.embedder
	if emb == nil {
		emb, err = embedder.New(cfg.Embedding.EmbedderConfig())
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init embedder: %w", err)
		}
	}

	logger.Info("Configuration loaded",
		slog.String("project_root", root),
		slog.String("storage_path", dbPath),
		slog.String("embedding_provider", emb.Provider()),
		slog.String("embedding_model", emb.Model()),
		slog.String("log_level", cfg.App.LogLevel.String()))

	sc := scanner.New()
	cache := scancache.New[*types.ScanResult](
		scancache.WithTTL(cfg.ScanCache.TTL),
		scancache.WithSampleSize(cfg.ScanCache.SampleSize),
	)
	m := matcher.New(emb, store, matcher.WithLogger(logger))

	idx, err := indexer.New(root, sc, cache, store, m, logger, &indexer.Config{
		Workers:      cfg.Project.Workers,
		ExcludedDirs: cfg.Project.ExcludedDirs,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Embedder:  emb,
		Indexer:   idx,
		Coverage:  coverage.NewCalculator(store, logger),
		Checker:   citation.NewChecker(store, root, logger),
		Importer:  knowledge.NewImporter(store, emb, root, logger),
		Searcher:  searcher.NewSearcher(store, emb),
		scanner:   sc,
		ownsStore: true,
	}, nil
}

// ImportKnowledge imports a YAML knowledge file and drops cached search
// responses
func (a *App) ImportKnowledge(ctx context.Context, path string) (*knowledge.Stats, error) {
	stats, err := a.Importer.ImportFile(ctx, path)
	if err != nil {
		return nil, err
	}
	a.Searcher.InvalidateCache()
	return stats, nil
}

// Close releases the embedder and the database.
func (a *App) Close() error {
	var errs []error
	if a.Embedder != nil {
		errs = append(errs, a.Embedder.Close())
	}
	if a.ownsStore && a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
