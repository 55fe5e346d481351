package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/citeindex/internal/api"
	"github.com/dshills/citeindex/internal/indexer"
	"github.com/dshills/citeindex/internal/mcp"
	"github.com/dshills/citeindex/internal/watch"
)

const shutdownTimeout = 10 * time.Second

// Handler returns the root HTTP handler: health checks plus the API under
// /api.
func (a *App) Handler() http.Handler {
	svc := api.NewService(a.Indexer, a.Coverage, a.Checker, a.Searcher, a.Store)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if _, err := a.Store.GetStatus(r.Context()); err != nil {
			a.Logger.Warn("readiness check failed", slog.String("error", err.Error()))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"unavailable"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/api", api.NewRouter(svc))
	return r
}

// Serve runs an initial incremental pass, then the HTTP API and, when
// enabled, the file watcher until ctx is cancelled or a signal arrives.
func (a *App) Serve(ctx context.Context) error {
	cfg := a.Config
	logger := a.Logger

	if stats, err := a.Indexer.ReindexIncremental(ctx); err != nil {
		logger.Warn("initial reindex failed", slog.String("error", err.Error()))
	} else {
		logger.Info("initial reindex complete",
			slog.Int("files", stats.TotalFiles),
			slog.Int("skipped", stats.SkippedFiles),
			slog.Int("citations", stats.TotalCitations))
	}

	httpServer := &http.Server{
		Addr:              cfg.App.HTTP.Address(),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gCtx := errgroup.WithContext(ctx)

	if cfg.Watch.Enabled {
		w := watch.New(a.Indexer.Root(), a.reindexIncremental,
			watch.WithDebounce(cfg.Watch.Debounce),
			watch.WithFilter(a.scanner.Supports),
			watch.WithExcludedDirs(a.excludedDirs()),
			watch.WithRetryOn(indexer.ErrIndexingInProgress),
			watch.WithLogger(logger),
		)
		g.Go(func() error {
			return w.Run(gCtx)
		})
	}

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		return context.Canceled
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// ServeMCP serves the MCP tools on stdio until the client disconnects.
func (a *App) ServeMCP(ctx context.Context) error {
	srv, err := mcp.NewServer(a.Indexer, a.Coverage, a.Checker, a.Searcher, a.Store, a.Logger)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func (a *App) reindexIncremental(ctx context.Context) error {
	stats, err := a.Indexer.ReindexIncremental(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info("watch reindex complete",
		slog.Int("files", stats.TotalFiles),
		slog.Int("citations", stats.TotalCitations),
		slog.Int64("duration_ms", stats.DurationMs))
	return nil
}

func (a *App) excludedDirs() []string {
	if a.Config.Project.ExcludedDirs != nil {
		return a.Config.Project.ExcludedDirs
	}
	return indexer.DefaultExcludedDirs()
}
