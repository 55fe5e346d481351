package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/citeindex/internal/citation"
	"github.com/dshills/citeindex/internal/embedder"
	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

const sampleYAML = `
entries:
  - id: billing-totals
    title: Totals are computed in cents
    content: computeTotal never sees floats.
    tags: [computeTotal]
    category: invariant
    confidence: 0.9
    citations:
      - path: src/total.js:1-3
  - title: Legacy tax rules
    content: Old tax code path.
    active: false
    citations:
      - path: src/missing.js
  - title: Feature branch note
    branch: feature-x
`

func setup(t *testing.T) (*storage.SQLiteStorage, string) {
	t.Helper()
	store, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "src", "total.js"), []byte("export function computeTotal(a, b) {}\n"), 0o644))
	return store, root
}

func TestImport(t *testing.T) {
	store, root := setup(t)
	ctx := context.Background()
	local, err := embedder.NewLocalProvider(nil)
	require.NoError(t, err)

	stats, err := NewImporter(store, local, root, nil).Import(ctx, strings.NewReader(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, &Stats{Imported: 3, HashesStamped: 1, Embedded: 3}, stats)

	k, err := store.GetKnowledge(ctx, "billing-totals")
	require.NoError(t, err)
	assert.Equal(t, "invariant", k.Category)
	assert.InDelta(t, 0.9, k.Confidence, 1e-9)
	assert.True(t, k.Active)
	assert.Equal(t, types.MainBranch, k.Branch)
	require.Len(t, k.Citations, 1)
	assert.Equal(t, citation.ContentHash([]byte("export function computeTotal(a, b) {}")), k.Citations[0].Hash)

	active, err := store.ListActiveKnowledge(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1, "inactive and non-main entries are hidden from matching")

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.KnowledgeCount)
	assert.Equal(t, 3, status.EmbeddingsCount)
}

func TestImport_StableGeneratedIDs(t *testing.T) {
	store, root := setup(t)
	ctx := context.Background()
	im := NewImporter(store, nil, root, nil)

	_, err := im.Import(ctx, strings.NewReader(sampleYAML))
	require.NoError(t, err)
	_, err = im.Import(ctx, strings.NewReader(sampleYAML))
	require.NoError(t, err)

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, status.KnowledgeCount)
	assert.Zero(t, status.EmbeddingsCount)
}

func TestImport_KeepsAuthoredHash(t *testing.T) {
	store, root := setup(t)
	doc := "entries:\n  - id: k\n    title: T\n    citations:\n      - path: src/total.js\n        hash: abcdefabcdef\n"

	stats, err := NewImporter(store, nil, root, nil).Import(context.Background(), strings.NewReader(doc))
	require.NoError(t, err)
	assert.Zero(t, stats.HashesStamped)

	k, err := store.GetKnowledge(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, "abcdefabcdef", k.Citations[0].Hash)
}

func TestImport_Validation(t *testing.T) {
	tests := map[string]string{
		"missing title":      "entries:\n  - content: x\n",
		"confidence range":   "entries:\n  - title: x\n    confidence: 1.5\n",
		"empty citation":     "entries:\n  - title: x\n    citations:\n      - hash: abc\n",
		"malformed document": "entries: [\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			store, root := setup(t)
			_, err := NewImporter(store, nil, root, nil).Import(context.Background(), strings.NewReader(doc))
			require.Error(t, err)

			status, err := store.GetStatus(context.Background())
			require.NoError(t, err)
			assert.Zero(t, status.KnowledgeCount, "nothing is written when validation fails")
		})
	}
}

func TestImport_EmptyDocument(t *testing.T) {
	store, root := setup(t)
	stats, err := NewImporter(store, nil, root, nil).Import(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, stats.Imported)
}

type failingEmbedder struct{ embedder.LocalProvider }

func (failingEmbedder) GenerateBatch(context.Context, embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	return nil, embedder.ErrProviderFailed
}

func TestImport_EmbeddingFailure(t *testing.T) {
	store, root := setup(t)
	stats, err := NewImporter(store, &failingEmbedder{}, root, nil).Import(context.Background(), strings.NewReader(sampleYAML))
	require.Error(t, err)
	assert.True(t, errors.Is(err, embedder.ErrProviderFailed))
	assert.Equal(t, 3, stats.Imported, "entries stay stored")
	assert.Zero(t, stats.Embedded)
}

func TestImportFile(t *testing.T) {
	store, root := setup(t)
	path := filepath.Join(root, "knowledge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	stats, err := NewImporter(store, nil, root, nil).ImportFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Imported)

	_, err = NewImporter(store, nil, root, nil).ImportFile(context.Background(), filepath.Join(root, "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
