package citation

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestContentHash(t *testing.T) {
	h := ContentHash([]byte("package main\n"))
	assert.Len(t, h, HashLength)
	assert.Equal(t, h, ContentHash([]byte("\n\n  package main  \n\n")))
	assert.NotEqual(t, h, ContentHash([]byte("package lib\n")))
	// sha256("") = e3b0c442...
	assert.Equal(t, "e3b0c44298fc", ContentHash([]byte("   ")))
}

func TestStripLineSuffix(t *testing.T) {
	tests := map[string]string{
		"src/a.go":        "src/a.go",
		"src/a.go:12":     "src/a.go",
		"src/a.go:12-40":  "src/a.go",
		"src/a.go:x":      "src/a.go:x",
		"c:/dir/a.go":     "c:/dir/a.go",
		"src/a.go:12-":    "src/a.go:12-",
		"src/v2:3/a.go:7": "src/v2:3/a.go",
	}
	for in, want := range tests {
		assert.Equal(t, want, StripLineSuffix(in), in)
	}
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "src/total.js", "export function computeTotal(a, b) {\n  return a + b\n}\n")
	hash := ContentHash([]byte("export function computeTotal(a, b) {\n  return a + b\n}"))

	t.Run("valid", func(t *testing.T) {
		res := Validate(types.KnowledgeCitation{Path: "src/total.js:1-3", Hash: hash}, root, nil)
		assert.Equal(t, types.StatusValid, res.Status)
		assert.Equal(t, hash, res.CurrentHash)
	})

	t.Run("changed", func(t *testing.T) {
		res := Validate(types.KnowledgeCitation{Path: "src/total.js", Hash: "000000000000"}, root, nil)
		assert.Equal(t, types.StatusChanged, res.Status)
		assert.Equal(t, hash, res.CurrentHash)
	})

	t.Run("missing", func(t *testing.T) {
		res := Validate(types.KnowledgeCitation{Path: "src/gone.js:4", Hash: hash}, root, nil)
		assert.Equal(t, types.StatusMissing, res.Status)
		assert.Empty(t, res.CurrentHash)
	})

	t.Run("absolute path", func(t *testing.T) {
		res := Validate(types.KnowledgeCitation{Path: filepath.Join(root, "src", "total.js"), Hash: hash}, "/elsewhere", nil)
		assert.Equal(t, types.StatusValid, res.Status)
	})
}

func TestHashCache_ReusesHash(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	cache := NewHashCache()

	first, ok := HashFile("a.go:3", root, cache)
	require.True(t, ok)

	// later reads in the same pass come from the cache
	writeFile(t, root, "a.go", "package b\n")
	second, ok := HashFile("a.go:10-12", root, cache)
	require.True(t, ok)
	assert.Equal(t, first, second)
	assert.Len(t, cache, 1)

	fresh, _ := HashFile("a.go", root, nil)
	assert.NotEqual(t, first, fresh)

	_, ok = HashFile("missing.go", root, cache)
	assert.False(t, ok)
	_, ok = HashFile("missing.go", root, cache)
	assert.False(t, ok)
}

type stubLister struct {
	entries []*storage.Knowledge
	err     error
}

func (s *stubLister) ListActiveKnowledge(context.Context) ([]*storage.Knowledge, error) {
	return s.entries, s.err
}

func TestChecker_Staleness(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.go", "package b\n")

	lister := &stubLister{entries: []*storage.Knowledge{
		{ID: "k1", Title: "A", Citations: []types.KnowledgeCitation{
			{Path: "a.go:1", Hash: ContentHash([]byte("package a"))},
			{Path: "b.go", Hash: "stale0000000"},
		}},
		{ID: "k2", Title: "B", Citations: []types.KnowledgeCitation{
			{Path: "c.go", Hash: "abc"},
			{Path: "a.go", Hash: ContentHash([]byte("package a"))},
		}},
		{ID: "k3", Title: "No citations"},
	}}

	report, err := NewChecker(lister, root, nil).Staleness(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Valid)
	assert.Equal(t, 1, report.Changed)
	assert.Equal(t, 1, report.Missing)

	stale := report.Stale()
	require.Len(t, stale, 2)
	assert.Equal(t, "b.go", stale[0].Path)
	assert.Equal(t, types.StatusChanged, stale[0].Status)
	assert.Equal(t, "k2", stale[1].KnowledgeID)
	assert.Equal(t, types.StatusMissing, stale[1].Status)
}

func TestChecker_ListError(t *testing.T) {
	boom := errors.New("db closed")
	_, err := NewChecker(&stubLister{err: boom}, t.TempDir(), nil).Staleness(context.Background())
	assert.ErrorIs(t, err, boom)
}
