package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dshills/citeindex/pkg/types"
)

// sourceFile is a supported file found on disk
type sourceFile struct {
	absPath string
	relPath string
	modTime time.Time
}

// scanned pairs a scan result with the mtime observed before scanning
type scanned struct {
	file   sourceFile
	record *types.FileRecord
}

var defaultExcludedDirs = []string{"vendor", "node_modules"}

// DefaultExcludedDirs returns the directory names skipped when Config
// leaves ExcludedDirs nil
func DefaultExcludedDirs() []string {
	return append([]string(nil), defaultExcludedDirs...)
}

// collect walks the project root and returns every supported file keyed by
// slash-separated relative path. Hidden and excluded directories are
// skipped.
func (idx *Indexer) collect() (map[string]sourceFile, error) {
	files := make(map[string]sourceFile)

	err := filepath.WalkDir(idx.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable subtrees are skipped, an unreadable root is fatal
			if path == idx.root {
				return err
			}
			idx.logger.Debug("skipping unreadable path", slog.String("path", path), slog.Any("error", err))
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			if path == idx.root {
				return nil
			}
			name := d.Name()
			if strings.HasPrefix(name, ".") || idx.excluded[name] {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !idx.scanner.Supports(path) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(idx.root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		files[rel] = sourceFile{absPath: path, relPath: rel, modTime: info.ModTime()}
		return nil
	})

	return files, err
}

// scanFiles scans files concurrently. Files the scanner skips or fails on
// are logged and left out of the result, which is sorted by relative path.
func (idx *Indexer) scanFiles(ctx context.Context, files []sourceFile) ([]scanned, error) {
	semaphore := make(chan struct{}, idx.workers)
	g, gctx := errgroup.WithContext(ctx)

	var mu sync.Mutex
	results := make([]scanned, 0, len(files))

	for _, f := range files {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			case semaphore <- struct{}{}:
			}
			defer func() { <-semaphore }()

			record, err := idx.scanner.Scan(gctx, f.absPath, idx.root)
			if err != nil {
				idx.logger.Warn("scan failed", slog.String("file", f.relPath), slog.Any("error", err))
				return nil
			}
			if record == nil {
				return nil
			}

			mu.Lock()
			results = append(results, scanned{file: f, record: record})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].file.relPath < results[j].file.relPath
	})
	return results, nil
}

func sortedFiles(files map[string]sourceFile) []sourceFile {
	out := make([]sourceFile, 0, len(files))
	for _, f := range files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].relPath < out[j].relPath })
	return out
}
