package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/citeindex/internal/citation"
)

const handlerSource = "package web\n\nfunc HandleLogin() {}\n\nfunc HandleLogout() {}\n"

func setupProject(t *testing.T) string {
	t.Helper()
	t.Setenv("CITEINDEX_EMBEDDING_PROVIDER", "local")
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "web"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "web", "handlers.go"), []byte(handlerSource), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "knowledge.yaml"), []byte(`
entries:
  - id: k-login
    title: Login flow
    content: sessions are created after password checks
    tags: [handleLogin]
    citations:
      - path: web/handlers.go:3
  - id: k-old
    title: Removed endpoint
    content: legacy
    citations:
      - path: web/legacy.go
        hash: abcdefabcdef
`), 0o644))
	return root
}

func run(t *testing.T, args ...string) (*bytes.Buffer, error) {
	t.Helper()
	cmd := newCommand()
	var out bytes.Buffer
	cmd.Writer = &out
	err := cmd.Run(context.Background(), append([]string{"citeindex"}, args...))
	return &out, err
}

func TestCLI_ImportReindexQuery(t *testing.T) {
	root := setupProject(t)

	out, err := run(t, "--root", root, "knowledge", "import", filepath.Join(root, "knowledge.yaml"))
	require.NoError(t, err)
	var imported map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &imported))
	assert.Equal(t, 2, imported["imported"])
	assert.Equal(t, 1, imported["hashesStamped"])
	assert.Equal(t, 2, imported["embedded"])

	out, err = run(t, "--root", root, "reindex", "--full")
	require.NoError(t, err)
	var full map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &full))
	assert.Equal(t, float64(1), full["totalFiles"])

	out, err = run(t, "--root", root, "citations", "web/handlers.go")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"functionName": "HandleLogin"`)

	out, err = run(t, "--root", root, "coverage")
	require.NoError(t, err)
	var stats map[string]int
	require.NoError(t, json.Unmarshal(out.Bytes(), &stats))
	assert.Equal(t, 2, stats["totalElements"])
	assert.GreaterOrEqual(t, stats["coveredElements"], 1)
}

func TestCLI_KnowledgeSearch(t *testing.T) {
	root := setupProject(t)
	_, err := run(t, "--root", root, "knowledge", "import", filepath.Join(root, "knowledge.yaml"))
	require.NoError(t, err)

	out, err := run(t, "--root", root, "knowledge", "search", "--mode", "keyword", "password", "sessions")
	require.NoError(t, err)
	var resp map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &resp))
	results := resp["results"].([]any)
	require.Len(t, results, 1)
	assert.Equal(t, "k-login", results[0].(map[string]any)["knowledgeId"])

	_, err = run(t, "--root", root, "knowledge", "search")
	assert.ErrorContains(t, err, "query")
}

func TestCLI_Validate(t *testing.T) {
	root := setupProject(t)
	_, err := run(t, "--root", root, "knowledge", "import", filepath.Join(root, "knowledge.yaml"))
	require.NoError(t, err)

	out, err := run(t, "--root", root, "validate")
	require.NoError(t, err)
	var report citation.StalenessReport
	require.NoError(t, json.Unmarshal(out.Bytes(), &report))
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Valid)
	assert.Equal(t, 1, report.Missing)
	require.Len(t, report.Citations, 1)
	assert.Equal(t, "web/legacy.go", report.Citations[0].Path)

	_, err = run(t, "--root", root, "validate", "--fail-on-stale")
	assert.ErrorIs(t, err, errStale)
}

func TestCLI_ArgumentErrors(t *testing.T) {
	root := setupProject(t)

	_, err := run(t, "--root", root, "citations")
	assert.ErrorContains(t, err, "file path")

	_, err = run(t, "--root", root, "knowledge", "import")
	assert.ErrorContains(t, err, "YAML file")
}

func TestCLI_ConfigFileFromRoot(t *testing.T) {
	root := setupProject(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, ".citeindex.yaml"), []byte(`
storage:
  path: data/cites.db
`), 0o644))

	_, err := run(t, "--root", root, "reindex")
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(root, "data", "cites.db"))
	assert.NoError(t, err)
}

func TestCLI_BuildInfo(t *testing.T) {
	out, err := run(t, "build-info")
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"sqlite_driver"`)
}
