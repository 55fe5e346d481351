package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/citeindex/internal/matcher"
	"github.com/dshills/citeindex/internal/scanner"
	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	root    string
	store   *storage.SQLiteStorage
	indexer *Indexer
}

func setupIndexer(t *testing.T, opts ...scanner.Option) *fixture {
	t.Helper()
	root := t.TempDir()

	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	idx, err := New(root, scanner.New(opts...), nil, store, matcher.New(nil, nil), nil, &Config{Workers: 2})
	require.NoError(t, err)

	return &fixture{root: root, store: store, indexer: idx}
}

func (f *fixture) writeFile(t *testing.T, rel, content string, mtime time.Time) {
	t.Helper()
	path := filepath.Join(f.root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	require.NoError(t, os.Chtimes(path, mtime, mtime))
}

func (f *fixture) addKnowledge(t *testing.T, id string, tags ...string) {
	t.Helper()
	require.NoError(t, f.store.UpsertKnowledge(context.Background(), &storage.Knowledge{
		ID: id, Title: id, Content: "notes", Tags: tags, Active: true,
	}))
}

func (f *fixture) seedProject(t *testing.T) {
	t.Helper()
	f.writeFile(t, "billing/total.go", "package billing\n\nfunc ComputeTotal(a, b int) int {\n\treturn a + b\n}\n", baseTime)
	f.writeFile(t, "billing/tax.go", "package billing\n\nfunc ComputeTax(v int) int {\n\treturn v / 10\n}\n", baseTime)
	f.writeFile(t, "README.md", "# readme\n", baseTime)
	f.addKnowledge(t, "k-total", "computeTotal")
	f.addKnowledge(t, "k-tax", "ComputeTax")
}

type tuple struct {
	path, knowledge, element string
	match                    types.MatchType
}

func (f *fixture) citationTuples(t *testing.T) []tuple {
	t.Helper()
	ctx := context.Background()
	pages, err := f.store.ListPages(ctx)
	require.NoError(t, err)

	var out []tuple
	for _, p := range pages {
		cs, err := f.store.ListCitationsByPage(ctx, p.ID)
		require.NoError(t, err)
		for _, c := range cs {
			out = append(out, tuple{p.Path, c.KnowledgeID, c.ElementName, c.MatchType})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].path != out[j].path {
			return out[i].path < out[j].path
		}
		return out[i].knowledge < out[j].knowledge
	})
	return out
}

func (f *fixture) pageCitations(t *testing.T, path string) []*storage.CitationRecord {
	t.Helper()
	page, err := f.store.GetPage(context.Background(), path)
	require.NoError(t, err)
	cs, err := f.store.ListCitationsByPage(context.Background(), page.ID)
	require.NoError(t, err)
	return cs
}

func TestReindexFull(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)

	stats, err := f.indexer.ReindexFull(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles, "unsupported files are excluded")
	assert.Equal(t, 2, stats.TotalCitations)

	assert.Equal(t, []tuple{
		{"billing/tax.go", "k-tax", "ComputeTax", types.MatchTag},
		{"billing/total.go", "k-total", "ComputeTotal", types.MatchTag},
	}, f.citationTuples(t))

	page, err := f.store.GetPage(context.Background(), "billing/total.go")
	require.NoError(t, err)
	assert.Equal(t, baseTime.UnixNano(), page.ModTime.UnixNano())
}

func TestReindexFull_Idempotent(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)
	first := f.citationTuples(t)

	_, err = f.indexer.ReindexFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, f.citationTuples(t))
}

func TestReindexIncremental_FirstRunIndexesEverything(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)

	stats, err := f.indexer.ReindexIncremental(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 0, stats.SkippedFiles)
	assert.Equal(t, 2, stats.TotalCitations)
}

func TestReindexIncremental_NoChanges(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)
	before := f.pageCitations(t, "billing/total.go")

	stats, err := f.indexer.ReindexIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalFiles, stats.SkippedFiles)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Zero(t, stats.TotalCitations)
	assert.Equal(t, before, f.pageCitations(t, "billing/total.go"))
}

func TestReindexIncremental_OneFileChanged(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)
	untouched := f.pageCitations(t, "billing/tax.go")

	f.writeFile(t, "billing/total.go",
		"package billing\n\nfunc ComputeTotal(a, b int) int {\n\treturn a + b\n}\n\nfunc ComputeTotalWithTax(a int) int {\n\treturn a\n}\n",
		baseTime.Add(time.Minute))

	stats, err := f.indexer.ReindexIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.TotalFiles-1, stats.SkippedFiles)
	assert.Equal(t, 1, stats.TotalCitations)

	assert.Equal(t, untouched, f.pageCitations(t, "billing/tax.go"))

	page, err := f.store.GetPage(ctx, "billing/total.go")
	require.NoError(t, err)
	record, err := page.Record()
	require.NoError(t, err)
	assert.Len(t, record.Functions, 2)
	assert.Equal(t, baseTime.Add(time.Minute).UnixNano(), page.ModTime.UnixNano())
}

func TestReindexIncremental_DeletedFile(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)
	page, err := f.store.GetPage(ctx, "billing/tax.go")
	require.NoError(t, err)

	require.NoError(t, os.Remove(filepath.Join(f.root, "billing", "tax.go")))

	stats, err := f.indexer.ReindexIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.SkippedFiles)

	_, err = f.store.GetPage(ctx, "billing/tax.go")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	cs, err := f.store.ListCitationsByPage(ctx, page.ID)
	require.NoError(t, err)
	assert.Empty(t, cs)
	assert.Equal(t, []tuple{{"billing/total.go", "k-total", "ComputeTotal", types.MatchTag}}, f.citationTuples(t))
}

func TestReindexIncremental_MalformedPayloadRescanned(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)

	require.NoError(t, f.store.UpsertPage(ctx, &storage.Page{
		Path:    "billing/tax.go",
		Type:    storage.PageTypeFile,
		Payload: []byte("{not json"),
		ModTime: baseTime,
	}))

	stats, err := f.indexer.ReindexIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.SkippedFiles)
	assert.Equal(t, 1, stats.TotalCitations)

	page, err := f.store.GetPage(ctx, "billing/tax.go")
	require.NoError(t, err)
	_, err = page.Record()
	assert.NoError(t, err)
}

func TestReindex_Lock(t *testing.T) {
	f := setupIndexer(t)
	require.True(t, f.indexer.lock.TryAcquire())
	assert.True(t, f.indexer.Running())

	_, err := f.indexer.ReindexFull(context.Background())
	assert.ErrorIs(t, err, ErrIndexingInProgress)
	_, err = f.indexer.ReindexIncremental(context.Background())
	assert.ErrorIs(t, err, ErrIndexingInProgress)

	f.indexer.lock.Release()
	_, err = f.indexer.ReindexIncremental(context.Background())
	assert.NoError(t, err)
	assert.False(t, f.indexer.Running())
}

func TestCollect_SkipsHiddenAndExcludedDirs(t *testing.T) {
	f := setupIndexer(t)
	f.writeFile(t, "main.go", "package main\n", baseTime)
	f.writeFile(t, ".git/hooks/x.go", "package hooks\n", baseTime)
	f.writeFile(t, "vendor/lib/lib.go", "package lib\n", baseTime)
	f.writeFile(t, "web/node_modules/pkg/index.js", "export function a() {}\n", baseTime)
	f.writeFile(t, "notes.txt", "hi\n", baseTime)

	files, err := f.indexer.collect()
	require.NoError(t, err)
	assert.Len(t, files, 1)
	assert.Contains(t, files, "main.go")
}

func TestScanProject_UsesCache(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)
	ctx := context.Background()

	first, err := f.indexer.ScanProject(ctx)
	require.NoError(t, err)
	require.Len(t, first.Files, 2)
	assert.Equal(t, "billing/tax.go", first.Files[0].RelativePath)

	second, err := f.indexer.ScanProject(ctx)
	require.NoError(t, err)
	assert.Same(t, first, second)

	status, err := f.store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.PagesCount, "browsing scans do not persist")

	// touching a file invalidates the cached scan
	f.writeFile(t, "billing/tax.go", "package billing\n", baseTime.Add(time.Hour))
	third, err := f.indexer.ScanProject(ctx)
	require.NoError(t, err)
	assert.NotSame(t, first, third)
}

func TestReindexIncremental_RefreshesScanCache(t *testing.T) {
	f := setupIndexer(t)
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexIncremental(ctx)
	require.NoError(t, err)

	cached, ok := f.indexer.cache.Get(f.indexer.Root())
	require.True(t, ok)
	assert.Len(t, cached.Files, 2)
}

// failingGrammar wraps the Go grammar and rejects files by base name
type failingGrammar struct {
	scanner.Grammar
	mu   sync.Mutex
	fail map[string]bool
}

func newFailingGrammar() *failingGrammar {
	return &failingGrammar{Grammar: scanner.NewGoGrammar(), fail: make(map[string]bool)}
}

func (g *failingGrammar) setFailing(name string, failing bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.fail[name] = failing
}

func (g *failingGrammar) Parse(ctx context.Context, filename string, src []byte) (scanner.Extractor, error) {
	g.mu.Lock()
	failing := g.fail[filepath.Base(filename)]
	g.mu.Unlock()
	if failing {
		return nil, errors.New("syntax error")
	}
	return g.Grammar.Parse(ctx, filename, src)
}

func TestReindexFull_DropsPagesThatFailToScan(t *testing.T) {
	grammar := newFailingGrammar()
	f := setupIndexer(t, scanner.WithGrammar(grammar))
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)

	grammar.setFailing("tax.go", true)
	stats, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)

	_, err = f.store.GetPage(ctx, "billing/tax.go")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	pages, err := f.store.ListPages(ctx)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
	assert.Equal(t, []tuple{{"billing/total.go", "k-total", "ComputeTotal", types.MatchTag}}, f.citationTuples(t))
}

func TestReindexIncremental_DropsChangedPageThatFailsToScan(t *testing.T) {
	grammar := newFailingGrammar()
	f := setupIndexer(t, scanner.WithGrammar(grammar))
	f.seedProject(t)
	ctx := context.Background()

	_, err := f.indexer.ReindexFull(ctx)
	require.NoError(t, err)

	grammar.setFailing("tax.go", true)
	f.writeFile(t, "billing/tax.go", "package billing\n\nfunc ComputeTax(v int) int {\n\treturn v / 5\n}\n", baseTime.Add(time.Minute))

	stats, err := f.indexer.ReindexIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 1, stats.SkippedFiles)
	_, err = f.store.GetPage(ctx, "billing/tax.go")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// the file comes back once it scans again
	grammar.setFailing("tax.go", false)
	stats, err = f.indexer.ReindexIncremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalFiles)
	assert.Equal(t, 1, stats.SkippedFiles)
	assert.Equal(t, 1, stats.TotalCitations)
	_, err = f.store.GetPage(ctx, "billing/tax.go")
	assert.NoError(t, err)
}
