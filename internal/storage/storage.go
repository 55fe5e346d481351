package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dshills/citeindex/pkg/types"
)

// PageTypeFile is the only page type written by the indexer
const PageTypeFile = "file"

// Storage defines the interface for persisting pages, citations and
// knowledge entries
type Storage interface {
	// Page operations
	UpsertPage(ctx context.Context, page *Page) error
	GetPage(ctx context.Context, path string) (*Page, error)
	ListPages(ctx context.Context) ([]*Page, error)
	DeletePage(ctx context.Context, pageID int64) error

	// Citation operations
	InsertCitations(ctx context.Context, citations []types.Citation) error
	DeleteCitationsByPage(ctx context.Context, pageID int64) error
	DeleteAllCitations(ctx context.Context) error
	ListCitationsByPage(ctx context.Context, pageID int64) ([]*CitationRecord, error)
	ListCitationsForFile(ctx context.Context, path string) ([]*FileCitation, error)
	ListCitedElements(ctx context.Context) ([]CitedElement, error)
	CountCitations(ctx context.Context) (int, error)

	// Knowledge operations
	UpsertKnowledge(ctx context.Context, k *Knowledge) error
	GetKnowledge(ctx context.Context, id string) (*Knowledge, error)
	ListActiveKnowledge(ctx context.Context) ([]*Knowledge, error)

	// Embedding operations
	UpsertKnowledgeEmbedding(ctx context.Context, embedding *KnowledgeEmbedding) error
	SearchKnowledge(ctx context.Context, vector []float32, limit int, minScore float64) ([]KnowledgeResult, error)

	// Status operations
	GetStatus(ctx context.Context) (*IndexStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Page is the persisted scan result of one source file, keyed by its
// project-relative path
type Page struct {
	ID        int64
	Path      string
	Type      string
	Payload   []byte // JSON-encoded types.FileRecord
	ModTime   time.Time
	UpdatedAt time.Time
}

// NewFilePage serializes a scanned record into a page carrying the file's
// observed modification time
func NewFilePage(record *types.FileRecord, modTime time.Time) (*Page, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", record.RelativePath, err)
	}
	return &Page{
		Path:    record.RelativePath,
		Type:    PageTypeFile,
		Payload: payload,
		ModTime: modTime,
	}, nil
}

// Record decodes the page payload. Callers treat a decode error as a
// malformed page, not a fatal condition.
func (p *Page) Record() (*types.FileRecord, error) {
	var record types.FileRecord
	if err := json.Unmarshal(p.Payload, &record); err != nil {
		return nil, fmt.Errorf("decode page %s: %w", p.Path, err)
	}
	if record.RelativePath == "" {
		record.RelativePath = p.Path
	}
	record.Normalize()
	return &record, nil
}

// CitationRecord is a persisted citation with its generated id
type CitationRecord struct {
	ID int64 `json:"id"`
	types.Citation
	CreatedAt time.Time `json:"createdAt"`
}

// FileCitation is a citation joined with metadata of the cited knowledge
// entry
type FileCitation struct {
	CitationRecord
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// CitedElement is one distinct (page, element) pair that has citations
type CitedElement struct {
	PageID      int64
	ElementName string
}

// Knowledge is a stored knowledge entry
type Knowledge struct {
	ID         string
	Title      string
	Content    string
	Tags       []string
	Category   string
	Confidence float64
	Active     bool
	Branch     string
	Citations  []types.KnowledgeCitation
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Entry returns the matcher view of the knowledge entry
func (k *Knowledge) Entry() types.KnowledgeEntry {
	return types.KnowledgeEntry{
		ID:      k.ID,
		Title:   k.Title,
		Content: k.Content,
		Tags:    k.Tags,
	}
}

// KnowledgeEmbedding is a vector embedding of a knowledge entry
type KnowledgeEmbedding struct {
	KnowledgeID string
	Vector      []byte // Serialized float32 array
	Dimension   int
	Provider    string
	Model       string
	CreatedAt   time.Time
}

// KnowledgeResult is one hit of a vector similarity search
type KnowledgeResult struct {
	KnowledgeID     string
	Title           string
	SimilarityScore float64
}

// IndexStatus contains statistics about the index
type IndexStatus struct {
	PagesCount      int          `json:"pagesCount"`
	CitationsCount  int          `json:"citationsCount"`
	KnowledgeCount  int          `json:"knowledgeCount"` // every stored entry, inactive and non-main included
	EmbeddingsCount int          `json:"embeddingsCount"`
	IndexSizeMB     float64      `json:"indexSizeMb"`
	LastIndexedAt   time.Time    `json:"lastIndexedAt"`
	Health          HealthStatus `json:"health"`
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool `json:"databaseAccessible"`
	EmbeddingsAvailable bool `json:"embeddingsAvailable"`
	VectorExtension     bool `json:"vectorExtension"`
}
