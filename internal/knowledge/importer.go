// Package knowledge imports knowledge entries from YAML files into storage
// and embeds them for the matcher's vector tier.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dshills/citeindex/internal/citation"
	"github.com/dshills/citeindex/internal/embedder"
	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

// idNamespace derives stable ids for entries imported without one, so
// re-importing a file updates entries instead of duplicating them
var idNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/dshills/citeindex/knowledge"))

// File is the YAML document layout
type File struct {
	Entries []Entry `yaml:"entries"`
}

// Entry is one knowledge entry as authored
type Entry struct {
	ID         string                    `yaml:"id"`
	Title      string                    `yaml:"title"`
	Content    string                    `yaml:"content"`
	Tags       []string                  `yaml:"tags"`
	Category   string                    `yaml:"category"`
	Confidence *float64                  `yaml:"confidence"`
	Active     *bool                     `yaml:"active"`
	Branch     string                    `yaml:"branch"`
	Citations  []types.KnowledgeCitation `yaml:"citations"`
}

// Validate validates the entry.
func (e *Entry) Validate() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Title, validation.Required),
		validation.Field(&e.Confidence, validation.Min(0.0), validation.Max(1.0)),
		validation.Field(&e.Citations, validation.Each(validation.By(func(v any) error {
			c, _ := v.(types.KnowledgeCitation)
			if strings.TrimSpace(c.Path) == "" {
				return fmt.Errorf("path is required")
			}
			return nil
		}))),
	)
}

// Stats summarizes an import
type Stats struct {
	Imported      int `json:"imported"`
	HashesStamped int `json:"hashesStamped"`
	Embedded      int `json:"embedded"`
}

type Importer struct {
	store     storage.Storage
	embedder  embedder.Embedder
	root      string
	logger    *slog.Logger
	batchSize int
}

// NewImporter creates an importer. projectRoot resolves citation paths when
// stamping hashes; a nil embedder skips embedding.
func NewImporter(store storage.Storage, emb embedder.Embedder, projectRoot string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		store:     store,
		embedder:  emb,
		root:      projectRoot,
		logger:    logger,
		batchSize: embedder.DefaultBatchSize,
	}
}

// ImportFile reads a YAML file and imports its entries
func (im *Importer) ImportFile(ctx context.Context, path string) (*Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	return im.Import(ctx, f)
}

// Import decodes and validates every entry before writing any of them
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Stats, error) {
	var doc File
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode knowledge file: %w", err)
	}
	for i := range doc.Entries {
		if err := doc.Entries[i].Validate(); err != nil {
			return nil, fmt.Errorf("entry %d (%q): %w", i, doc.Entries[i].Title, err)
		}
	}

	stats := &Stats{}
	cache := citation.NewHashCache()
	stored := make([]*storage.Knowledge, 0, len(doc.Entries))
	for _, e := range doc.Entries {
		k := im.toKnowledge(e)
		stats.HashesStamped += im.stampHashes(k, cache)
		if err := im.store.UpsertKnowledge(ctx, k); err != nil {
			return stats, fmt.Errorf("store entry %q: %w", k.Title, err)
		}
		stats.Imported++
		stored = append(stored, k)
	}

	embedded, err := im.embed(ctx, stored)
	stats.Embedded = embedded
	if err != nil {
		return stats, err
	}

	im.logger.Info("knowledge imported",
		slog.Int("entries", stats.Imported),
		slog.Int("hashes_stamped", stats.HashesStamped),
		slog.Int("embedded", stats.Embedded))
	return stats, nil
}

func (im *Importer) toKnowledge(e Entry) *storage.Knowledge {
	id := strings.TrimSpace(e.ID)
	if id == "" {
		id = uuid.NewSHA1(idNamespace, []byte(e.Title)).String()
	}
	k := &storage.Knowledge{
		ID:         id,
		Title:      e.Title,
		Content:    e.Content,
		Tags:       e.Tags,
		Category:   e.Category,
		Confidence: 1.0,
		Active:     true,
		Branch:     e.Branch,
		Citations:  e.Citations,
	}
	if e.Confidence != nil {
		k.Confidence = *e.Confidence
	}
	if e.Active != nil {
		k.Active = *e.Active
	}
	if k.Branch == "" {
		k.Branch = types.MainBranch
	}
	return k
}

// stampHashes fills in missing citation hashes from the current files
func (im *Importer) stampHashes(k *storage.Knowledge, cache citation.HashCache) int {
	stamped := 0
	for i := range k.Citations {
		if k.Citations[i].Hash != "" {
			continue
		}
		hash, ok := citation.HashFile(k.Citations[i].Path, im.root, cache)
		if !ok {
			im.logger.Warn("cited file not readable, hash left empty",
				slog.String("knowledge", k.ID), slog.String("path", k.Citations[i].Path))
			continue
		}
		k.Citations[i].Hash = hash
		stamped++
	}
	return stamped
}

// embed stores an embedding of title and content for each entry, in
// batches
func (im *Importer) embed(ctx context.Context, entries []*storage.Knowledge) (int, error) {
	if im.embedder == nil {
		return 0, nil
	}

	embedded := 0
	for start := 0; start < len(entries); start += im.batchSize {
		batch := entries[start:min(start+im.batchSize, len(entries))]
		texts := make([]string, len(batch))
		for i, k := range batch {
			texts[i] = EmbeddingText(k)
		}

		resp, err := im.embedder.GenerateBatch(ctx, embedder.BatchEmbeddingRequest{Texts: texts})
		if err != nil {
			return embedded, fmt.Errorf("embed knowledge: %w", err)
		}
		if len(resp.Embeddings) != len(batch) {
			return embedded, fmt.Errorf("embed knowledge: got %d embeddings for %d entries", len(resp.Embeddings), len(batch))
		}
		for i, emb := range resp.Embeddings {
			err := im.store.UpsertKnowledgeEmbedding(ctx, &storage.KnowledgeEmbedding{
				KnowledgeID: batch[i].ID,
				Vector:      storage.SerializeVector(emb.Vector),
				Dimension:   len(emb.Vector),
				Provider:    im.embedder.Provider(),
				Model:       im.embedder.Model(),
			})
			if err != nil {
				return embedded, fmt.Errorf("store embedding for %q: %w", batch[i].Title, err)
			}
			embedded++
		}
	}
	return embedded, nil
}

// EmbeddingText is the text embedded for a knowledge entry
func EmbeddingText(k *storage.Knowledge) string {
	if k.Content == "" {
		return k.Title
	}
	return k.Title + "\n\n" + k.Content
}
