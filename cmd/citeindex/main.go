package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/dshills/citeindex/internal/app"
	"github.com/dshills/citeindex/internal/config"
	"github.com/dshills/citeindex/internal/searcher"
	"github.com/dshills/citeindex/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

// errStale makes validate exit non-zero when citations are out of date
var errStale = errors.New("stale citations found")

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "citeindex",
		Usage:   "Index source code and link knowledge entries to the functions and classes they describe",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (default: <root>/" + config.DefaultFile + ")",
				Sources: cli.EnvVars("CITEINDEX_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Project root to index (overrides the config file)",
				Sources: cli.EnvVars("CITEINDEX_ROOT"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "reindex",
				Usage: "Rescan changed files and regenerate their citations",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "full", Usage: "Rebuild every page and citation"},
				},
				Action: withApp(reindex),
			},
			{
				Name:   "coverage",
				Usage:  "Print citation coverage of indexed files and elements",
				Action: withApp(coverage),
			},
			{
				Name:      "citations",
				Usage:     "List citations attached to a file",
				ArgsUsage: "<path>",
				Action:    withApp(citations),
			},
			{
				Name:  "validate",
				Usage: "Check file citations embedded in knowledge entries against current content",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "List valid citations too"},
					&cli.BoolFlag{Name: "fail-on-stale", Usage: "Exit non-zero when any citation changed or is missing"},
				},
				Action: withApp(validate),
			},
			{
				Name:  "knowledge",
				Usage: "Manage knowledge entries",
				Commands: []*cli.Command{
					{
						Name:      "import",
						Usage:     "Import knowledge entries from a YAML file",
						ArgsUsage: "<file.yaml>",
						Action:    withApp(importKnowledge),
					},
					{
						Name:      "search",
						Usage:     "Search knowledge entries",
						ArgsUsage: "<query>",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "mode", Usage: "hybrid, vector or keyword", Value: string(searcher.SearchModeHybrid)},
							&cli.IntFlag{Name: "limit", Usage: "Maximum results", Value: 10},
						},
						Action: withApp(searchKnowledge),
					},
				},
			},
			{
				Name:  "serve",
				Usage: "Serve the HTTP API and reindex on file changes",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP port (overrides the config file)"},
					&cli.BoolFlag{Name: "no-watch", Usage: "Disable the file watcher"},
				},
				Action: withApp(serve),
			},
			{
				Name:   "mcp",
				Usage:  "Serve MCP tools on stdio",
				Action: withApp(serveMCP),
			},
			{
				Name:   "build-info",
				Usage:  "Print build and storage driver information",
				Action: buildInfo,
			},
		},
	}
}

// loadConfig reads the config file and applies the root flag
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	root := cmd.String("root")
	path := cmd.String("config")
	if path == "" {
		base := root
		if base == "" {
			base = "."
		}
		path = filepath.Join(base, config.DefaultFile)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if root != "" {
		cfg.Project.Root = root
	}
	return cfg, nil
}

type appAction func(ctx context.Context, cmd *cli.Command, a *app.App) error

func withApp(fn appAction) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Name == "serve" {
			if port := cmd.Int("port"); port > 0 {
				cfg.App.HTTP.Port = int(port)
			}
			if cmd.Bool("no-watch") {
				cfg.Watch.Enabled = false
			}
		}

		a, err := app.New(app.WithConfig(cfg))
		if err != nil {
			return fmt.Errorf("app init error: %w", err)
		}
		defer func() { _ = a.Close() }()
		return fn(ctx, cmd, a)
	}
}

func printJSON(cmd *cli.Command, v any) error {
	enc := json.NewEncoder(cmd.Root().Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func reindex(ctx context.Context, cmd *cli.Command, a *app.App) error {
	if cmd.Bool("full") {
		stats, err := a.Indexer.ReindexFull(ctx)
		if err != nil {
			return err
		}
		return printJSON(cmd, stats)
	}
	stats, err := a.Indexer.ReindexIncremental(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

func coverage(ctx context.Context, cmd *cli.Command, a *app.App) error {
	stats, err := a.Coverage.Coverage(ctx)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

func citations(ctx context.Context, cmd *cli.Command, a *app.App) error {
	path := cmd.Args().First()
	if path == "" {
		return fmt.Errorf("citations requires a file path")
	}
	list, err := a.Store.ListCitationsForFile(ctx, filepath.ToSlash(path))
	if err != nil {
		return err
	}
	if list == nil {
		list = []*storage.FileCitation{}
	}
	return printJSON(cmd, list)
}

func validate(ctx context.Context, cmd *cli.Command, a *app.App) error {
	report, err := a.Checker.Staleness(ctx)
	if err != nil {
		return err
	}
	if !cmd.Bool("all") {
		report.Citations = report.Stale()
	}
	if err := printJSON(cmd, report); err != nil {
		return err
	}
	if cmd.Bool("fail-on-stale") && report.Changed+report.Missing > 0 {
		return errStale
	}
	return nil
}

func importKnowledge(ctx context.Context, cmd *cli.Command, a *app.App) error {
	file := cmd.Args().First()
	if file == "" {
		return fmt.Errorf("knowledge import requires a YAML file")
	}
	stats, err := a.ImportKnowledge(ctx, file)
	if err != nil {
		return err
	}
	return printJSON(cmd, stats)
}

func searchKnowledge(ctx context.Context, cmd *cli.Command, a *app.App) error {
	query := strings.Join(cmd.Args().Slice(), " ")
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("knowledge search requires a query")
	}
	resp, err := a.Searcher.Search(ctx, searcher.SearchRequest{
		Query: query,
		Mode:  searcher.SearchMode(cmd.String("mode")),
		Limit: int(cmd.Int("limit")),
	})
	if err != nil {
		return err
	}
	return printJSON(cmd, resp)
}

func serve(ctx context.Context, _ *cli.Command, a *app.App) error {
	return a.Serve(ctx)
}

func serveMCP(ctx context.Context, _ *cli.Command, a *app.App) error {
	return a.ServeMCP(ctx)
}

func buildInfo(_ context.Context, cmd *cli.Command) error {
	return printJSON(cmd, map[string]any{
		"version":          version,
		"build_time":       buildTime,
		"build_mode":       storage.BuildMode,
		"sqlite_driver":    storage.DriverName,
		"vector_extension": storage.VectorExtensionAvailable,
	})
}
