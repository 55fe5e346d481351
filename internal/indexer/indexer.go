package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/dshills/citeindex/internal/matcher"
	"github.com/dshills/citeindex/internal/scancache"
	"github.com/dshills/citeindex/internal/scanner"
	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

// ErrIndexingInProgress is returned when a run is triggered while another
// full or incremental run holds the lock
var ErrIndexingInProgress = errors.New("indexing already in progress")

// Config contains configuration for the indexer
type Config struct {
	Workers      int      // concurrent file scans (default: runtime.NumCPU())
	ExcludedDirs []string // directory names skipped in addition to hidden ones (default: vendor, node_modules)
}

// IncrementalStats summarizes an incremental run
type IncrementalStats struct {
	TotalCitations int   `json:"totalCitations"`
	TotalFiles     int   `json:"totalFiles"`
	SkippedFiles   int   `json:"skippedFiles"`
	DurationMs     int64 `json:"durationMs"`
}

// FullStats summarizes a full run
type FullStats struct {
	TotalCitations int   `json:"totalCitations"`
	TotalFiles     int   `json:"totalFiles"`
	DurationMs     int64 `json:"durationMs"`
}

// ScanCache is the scan cache type shared with browsing consumers
type ScanCache = scancache.Cache[*types.ScanResult]

// Indexer keeps pages and citations of one project root in sync with the
// filesystem
type Indexer struct {
	root     string
	scanner  *scanner.Scanner
	cache    *ScanCache
	storage  storage.Storage
	matcher  *matcher.Matcher
	logger   *slog.Logger
	workers  int
	excluded map[string]bool
	lock     IndexLock
}

// New creates an indexer for root. A nil cache gets a private one; a nil
// logger uses slog.Default().
func New(root string, sc *scanner.Scanner, cache *ScanCache, store storage.Storage, m *matcher.Matcher, logger *slog.Logger, cfg *Config) (*Indexer, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %s: %w", root, err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cache == nil {
		cache = scancache.New[*types.ScanResult]()
	}
	if logger == nil {
		logger = slog.Default()
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	dirs := cfg.ExcludedDirs
	if dirs == nil {
		dirs = defaultExcludedDirs
	}
	excluded := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		excluded[d] = true
	}

	return &Indexer{
		root:     abs,
		scanner:  sc,
		cache:    cache,
		storage:  store,
		matcher:  m,
		logger:   logger,
		workers:  workers,
		excluded: excluded,
	}, nil
}

// Root returns the absolute project root
func (idx *Indexer) Root() string {
	return idx.root
}

// Running reports whether a reindex is in progress
func (idx *Indexer) Running() bool {
	return idx.lock.Held()
}

// ReindexIncremental rescans only files whose mtime changed, removes pages
// of deleted files and regenerates citations for the rescanned pages.
// Writes already committed when a fatal error occurs are kept.
func (idx *Indexer) ReindexIncremental(ctx context.Context) (*IncrementalStats, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()

	current, err := idx.collect()
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	pages, err := idx.storage.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	// diff
	var unchanged []*types.FileRecord
	var changed []sourceFile
	keep := make(map[string]bool, len(current))
	stored := make(map[string]*storage.Page, len(pages))
	for _, p := range pages {
		stored[p.Path] = p
	}
	for _, f := range sortedFiles(current) {
		page, ok := stored[f.relPath]
		if ok && page.ModTime.UnixNano() == f.modTime.UnixNano() {
			record, err := page.Record()
			if err == nil {
				record.Path = f.absPath
				unchanged = append(unchanged, record)
				keep[f.relPath] = true
				continue
			}
			idx.logger.Warn("malformed page payload, rescanning", slog.String("file", f.relPath), slog.Any("error", err))
		}
		changed = append(changed, f)
	}

	// scan
	results, err := idx.scanFiles(ctx, changed)
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	for _, r := range results {
		keep[r.file.relPath] = true
	}

	// delete pages of removed files and of changed files that no longer scan
	if err := idx.prunePages(ctx, pages, keep); err != nil {
		return nil, err
	}

	// upsert
	inputs, err := idx.upsertPages(ctx, results)
	if err != nil {
		return nil, err
	}

	// re-match changed pages only
	entries, err := idx.activeEntries(ctx)
	if err != nil {
		return nil, err
	}
	total := 0
	for _, in := range inputs {
		citations, err := idx.matcher.MatchFile(ctx, in, entries)
		if err != nil {
			return nil, fmt.Errorf("match %s: %w", in.File.RelativePath, err)
		}
		if err := storage.ReplacePageCitations(ctx, idx.storage, in.PageID, citations); err != nil {
			return nil, fmt.Errorf("store citations for %s: %w", in.File.RelativePath, err)
		}
		total += len(citations)
	}

	// merge
	merged := unchanged
	for _, r := range results {
		merged = append(merged, r.record)
	}
	idx.refreshCache(merged, current)

	stats := &IncrementalStats{
		TotalCitations: total,
		TotalFiles:     len(merged),
		SkippedFiles:   len(unchanged),
		DurationMs:     time.Since(start).Milliseconds(),
	}
	idx.logger.Info("incremental reindex complete",
		slog.Int("files", stats.TotalFiles),
		slog.Int("skipped", stats.SkippedFiles),
		slog.Int("rescanned", len(results)),
		slog.Int("citations", stats.TotalCitations),
		slog.Int64("duration_ms", stats.DurationMs))
	return stats, nil
}

// ReindexFull rescans every file and regenerates every citation
func (idx *Indexer) ReindexFull(ctx context.Context) (*FullStats, error) {
	if !idx.lock.TryAcquire() {
		return nil, ErrIndexingInProgress
	}
	defer idx.lock.Release()

	start := time.Now()
	idx.cache.InvalidateAll()

	current, err := idx.collect()
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	results, err := idx.scanFiles(ctx, sortedFiles(current))
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	inputs, err := idx.upsertPages(ctx, results)
	if err != nil {
		return nil, err
	}

	pages, err := idx.storage.ListPages(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	keep := make(map[string]bool, len(results))
	for _, r := range results {
		keep[r.file.relPath] = true
	}
	if err := idx.prunePages(ctx, pages, keep); err != nil {
		return nil, err
	}

	if err := idx.storage.DeleteAllCitations(ctx); err != nil {
		return nil, fmt.Errorf("delete citations: %w", err)
	}
	entries, err := idx.activeEntries(ctx)
	if err != nil {
		return nil, err
	}
	citations, err := idx.matcher.Match(ctx, inputs, entries)
	if err != nil {
		return nil, fmt.Errorf("match: %w", err)
	}
	if err := idx.insertCitations(ctx, citations); err != nil {
		return nil, err
	}

	records := make([]*types.FileRecord, len(results))
	for i, r := range results {
		records[i] = r.record
	}
	idx.refreshCache(records, current)

	stats := &FullStats{
		TotalCitations: len(citations),
		TotalFiles:     len(results),
		DurationMs:     time.Since(start).Milliseconds(),
	}
	idx.logger.Info("full reindex complete",
		slog.Int("files", stats.TotalFiles),
		slog.Int("citations", stats.TotalCitations),
		slog.Int64("duration_ms", stats.DurationMs))
	return stats, nil
}

// prunePages deletes every stored page whose path is not in keep. Their
// citations go with them.
func (idx *Indexer) prunePages(ctx context.Context, pages []*storage.Page, keep map[string]bool) error {
	for _, p := range pages {
		if keep[p.Path] {
			continue
		}
		if err := idx.storage.DeletePage(ctx, p.ID); err != nil {
			return fmt.Errorf("delete page %s: %w", p.Path, err)
		}
		idx.logger.Debug("removed page", slog.String("file", p.Path))
	}
	return nil
}

// ScanProject returns the whole-project scan, served from the scan cache
// while it is fresh. It never writes to storage.
func (idx *Indexer) ScanProject(ctx context.Context) (*types.ScanResult, error) {
	if result, ok := idx.cache.Get(idx.root); ok {
		return result, nil
	}

	current, err := idx.collect()
	if err != nil {
		return nil, fmt.Errorf("collect files: %w", err)
	}
	results, err := idx.scanFiles(ctx, sortedFiles(current))
	if err != nil {
		return nil, fmt.Errorf("scan files: %w", err)
	}
	records := make([]*types.FileRecord, len(results))
	for i, r := range results {
		records[i] = r.record
	}
	return idx.refreshCache(records, current), nil
}

func (idx *Indexer) upsertPages(ctx context.Context, results []scanned) ([]matcher.FileInput, error) {
	inputs := make([]matcher.FileInput, 0, len(results))
	for _, r := range results {
		page, err := storage.NewFilePage(r.record, r.file.modTime)
		if err != nil {
			return nil, err
		}
		if err := idx.storage.UpsertPage(ctx, page); err != nil {
			return nil, fmt.Errorf("upsert page %s: %w", r.file.relPath, err)
		}
		inputs = append(inputs, matcher.FileInput{PageID: page.ID, File: r.record})
	}
	return inputs, nil
}

// insertCitations writes all citations in one transaction
func (idx *Indexer) insertCitations(ctx context.Context, citations []types.Citation) error {
	tx, err := idx.storage.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.InsertCitations(ctx, citations); err != nil {
		return fmt.Errorf("store citations: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit citations: %w", err)
	}
	return nil
}

func (idx *Indexer) activeEntries(ctx context.Context) ([]types.KnowledgeEntry, error) {
	knowledge, err := idx.storage.ListActiveKnowledge(ctx)
	if err != nil {
		return nil, fmt.Errorf("list knowledge: %w", err)
	}
	entries := make([]types.KnowledgeEntry, len(knowledge))
	for i, k := range knowledge {
		entries[i] = k.Entry()
	}
	return entries, nil
}

// refreshCache stores the merged scan with the full current mtime map
func (idx *Indexer) refreshCache(records []*types.FileRecord, current map[string]sourceFile) *types.ScanResult {
	sort.Slice(records, func(i, j int) bool {
		return records[i].RelativePath < records[j].RelativePath
	})
	validator := make(scancache.Validator, len(current))
	for _, f := range current {
		validator[f.absPath] = f.modTime
	}
	result := &types.ScanResult{Root: idx.root, Files: records}
	idx.cache.Set(idx.root, result, validator)
	return result
}
