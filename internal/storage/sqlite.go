package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/citeindex/pkg/types"
)

var (
	// ErrNotFound is returned when a requested entity doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrInvalidPage is returned when a page is missing its path or payload
	ErrInvalidPage = errors.New("invalid page")
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; this also keeps :memory:
	// databases on one connection
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// Citations cascade on page deletion
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := ApplyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// BeginTx starts a new transaction
func (s *SQLiteStorage) BeginTx(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &sqliteTx{tx: tx, storage: s}, nil
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// sqliteTx wraps a SQL transaction
type sqliteTx struct {
	tx      *sql.Tx
	storage *SQLiteStorage
}

func (t *sqliteTx) Commit() error {
	return t.tx.Commit()
}

func (t *sqliteTx) Rollback() error {
	return t.tx.Rollback()
}

func (t *sqliteTx) querier() querier {
	return t.tx
}

func (s *SQLiteStorage) querier() querier {
	return s.db
}

// Page operations

func (s *SQLiteStorage) upsertPageWithQuerier(ctx context.Context, q querier, page *Page) error {
	if page.Path == "" || len(page.Payload) == 0 {
		return ErrInvalidPage
	}
	if page.Type == "" {
		page.Type = PageTypeFile
	}

	query := `
		INSERT INTO pages (path, type, payload, mtime, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			type = excluded.type,
			payload = excluded.payload,
			mtime = excluded.mtime,
			updated_at = excluded.updated_at
		RETURNING id
	`
	now := time.Now()
	err := q.QueryRowContext(ctx, query,
		page.Path, page.Type, string(page.Payload), page.ModTime.UnixNano(), now, now).Scan(&page.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert page: %w", err)
	}
	page.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertPage(ctx context.Context, page *Page) error {
	return s.upsertPageWithQuerier(ctx, s.querier(), page)
}

func scanPage(row interface{ Scan(...interface{}) error }) (*Page, error) {
	var page Page
	var payload string
	var mtime int64
	var updatedAt sql.NullTime
	if err := row.Scan(&page.ID, &page.Path, &page.Type, &payload, &mtime, &updatedAt); err != nil {
		return nil, err
	}
	page.Payload = []byte(payload)
	page.ModTime = time.Unix(0, mtime)
	if updatedAt.Valid {
		page.UpdatedAt = updatedAt.Time
	}
	return &page, nil
}

func (s *SQLiteStorage) getPageWithQuerier(ctx context.Context, q querier, path string) (*Page, error) {
	query := `
		SELECT id, path, type, payload, mtime, updated_at
		FROM pages
		WHERE path = ?
	`
	page, err := scanPage(q.QueryRowContext(ctx, query, path))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return page, nil
}

func (s *SQLiteStorage) GetPage(ctx context.Context, path string) (*Page, error) {
	return s.getPageWithQuerier(ctx, s.querier(), path)
}

func (s *SQLiteStorage) listPagesWithQuerier(ctx context.Context, q querier) ([]*Page, error) {
	query := `
		SELECT id, path, type, payload, mtime, updated_at
		FROM pages
		WHERE type = ?
		ORDER BY path
	`
	rows, err := q.QueryContext(ctx, query, PageTypeFile)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	pages := make([]*Page, 0)
	for rows.Next() {
		page, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, page)
	}
	return pages, rows.Err()
}

func (s *SQLiteStorage) ListPages(ctx context.Context) ([]*Page, error) {
	return s.listPagesWithQuerier(ctx, s.querier())
}

// deletePageWithQuerier removes the page; its citations cascade
func (s *SQLiteStorage) deletePageWithQuerier(ctx context.Context, q querier, pageID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM pages WHERE id = ?`, pageID)
	if err != nil {
		return fmt.Errorf("failed to delete page %d: %w", pageID, err)
	}
	return nil
}

func (s *SQLiteStorage) DeletePage(ctx context.Context, pageID int64) error {
	return s.deletePageWithQuerier(ctx, s.querier(), pageID)
}

// Citation operations

func (s *SQLiteStorage) insertCitationsWithQuerier(ctx context.Context, q querier, citations []types.Citation) error {
	query := `
		INSERT INTO citations (page_id, knowledge_id, element_name, start_line, end_line, match_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	now := time.Now()
	for i := range citations {
		c := &citations[i]
		if err := c.Validate(); err != nil {
			return fmt.Errorf("citation %s/%s: %w", c.KnowledgeID, c.ElementName, err)
		}
		_, err := q.ExecContext(ctx, query,
			c.PageID, c.KnowledgeID, c.ElementName, c.StartLine, c.EndLine, string(c.MatchType), now)
		if err != nil {
			return fmt.Errorf("failed to insert citation: %w", err)
		}
	}
	return nil
}

func (s *SQLiteStorage) InsertCitations(ctx context.Context, citations []types.Citation) error {
	return s.insertCitationsWithQuerier(ctx, s.querier(), citations)
}

func (s *SQLiteStorage) deleteCitationsByPageWithQuerier(ctx context.Context, q querier, pageID int64) error {
	_, err := q.ExecContext(ctx, `DELETE FROM citations WHERE page_id = ?`, pageID)
	return err
}

func (s *SQLiteStorage) DeleteCitationsByPage(ctx context.Context, pageID int64) error {
	return s.deleteCitationsByPageWithQuerier(ctx, s.querier(), pageID)
}

func (s *SQLiteStorage) deleteAllCitationsWithQuerier(ctx context.Context, q querier) error {
	_, err := q.ExecContext(ctx, `DELETE FROM citations`)
	return err
}

func (s *SQLiteStorage) DeleteAllCitations(ctx context.Context) error {
	return s.deleteAllCitationsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) listCitationsByPageWithQuerier(ctx context.Context, q querier, pageID int64) ([]*CitationRecord, error) {
	query := `
		SELECT id, page_id, knowledge_id, element_name, start_line, end_line, match_type, created_at
		FROM citations
		WHERE page_id = ?
		ORDER BY id
	`
	rows, err := q.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	citations := make([]*CitationRecord, 0)
	for rows.Next() {
		var c CitationRecord
		var matchType string
		var createdAt sql.NullTime
		err := rows.Scan(&c.ID, &c.PageID, &c.KnowledgeID, &c.ElementName,
			&c.StartLine, &c.EndLine, &matchType, &createdAt)
		if err != nil {
			return nil, err
		}
		c.MatchType = types.MatchType(matchType)
		if createdAt.Valid {
			c.CreatedAt = createdAt.Time
		}
		citations = append(citations, &c)
	}
	return citations, rows.Err()
}

func (s *SQLiteStorage) ListCitationsByPage(ctx context.Context, pageID int64) ([]*CitationRecord, error) {
	return s.listCitationsByPageWithQuerier(ctx, s.querier(), pageID)
}

func (s *SQLiteStorage) listCitationsForFileWithQuerier(ctx context.Context, q querier, path string) ([]*FileCitation, error) {
	query := `
		SELECT c.id, c.page_id, c.knowledge_id, c.element_name, c.start_line, c.end_line, c.match_type,
		       COALESCE(k.title, ''), COALESCE(k.category, ''), COALESCE(k.confidence, 0)
		FROM citations c
		INNER JOIN pages p ON c.page_id = p.id
		LEFT JOIN knowledge k ON c.knowledge_id = k.id
		WHERE p.path = ?
		ORDER BY c.start_line, c.id
	`
	rows, err := q.QueryContext(ctx, query, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	citations := make([]*FileCitation, 0)
	for rows.Next() {
		var c FileCitation
		var matchType string
		err := rows.Scan(&c.ID, &c.PageID, &c.KnowledgeID, &c.ElementName,
			&c.StartLine, &c.EndLine, &matchType, &c.Title, &c.Category, &c.Confidence)
		if err != nil {
			return nil, err
		}
		c.MatchType = types.MatchType(matchType)
		citations = append(citations, &c)
	}
	return citations, rows.Err()
}

func (s *SQLiteStorage) ListCitationsForFile(ctx context.Context, path string) ([]*FileCitation, error) {
	return s.listCitationsForFileWithQuerier(ctx, s.querier(), path)
}

func (s *SQLiteStorage) listCitedElementsWithQuerier(ctx context.Context, q querier) ([]CitedElement, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT DISTINCT page_id, element_name
		FROM citations
		ORDER BY page_id, element_name
	`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	elements := make([]CitedElement, 0)
	for rows.Next() {
		var e CitedElement
		if err := rows.Scan(&e.PageID, &e.ElementName); err != nil {
			return nil, err
		}
		elements = append(elements, e)
	}
	return elements, rows.Err()
}

func (s *SQLiteStorage) ListCitedElements(ctx context.Context) ([]CitedElement, error) {
	return s.listCitedElementsWithQuerier(ctx, s.querier())
}

func (s *SQLiteStorage) countCitationsWithQuerier(ctx context.Context, q querier) (int, error) {
	var count int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM citations`).Scan(&count)
	return count, err
}

func (s *SQLiteStorage) CountCitations(ctx context.Context) (int, error) {
	return s.countCitationsWithQuerier(ctx, s.querier())
}

// Knowledge operations

func (s *SQLiteStorage) upsertKnowledgeWithQuerier(ctx context.Context, q querier, k *Knowledge) error {
	if k.ID == "" || k.Title == "" {
		return types.ErrEmptyName
	}
	if k.Branch == "" {
		k.Branch = types.MainBranch
	}
	tags, err := json.Marshal(nonNil(k.Tags))
	if err != nil {
		return err
	}
	citations := k.Citations
	if citations == nil {
		citations = []types.KnowledgeCitation{}
	}
	cites, err := json.Marshal(citations)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO knowledge (id, title, content, tags, category, confidence, active, branch, citations, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			content = excluded.content,
			tags = excluded.tags,
			category = excluded.category,
			confidence = excluded.confidence,
			active = excluded.active,
			branch = excluded.branch,
			citations = excluded.citations,
			updated_at = excluded.updated_at
	`
	now := time.Now()
	_, err = q.ExecContext(ctx, query,
		k.ID, k.Title, k.Content, string(tags), k.Category, k.Confidence,
		k.Active, k.Branch, string(cites), now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert knowledge: %w", err)
	}
	if k.CreatedAt.IsZero() {
		k.CreatedAt = now
	}
	k.UpdatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertKnowledge(ctx context.Context, k *Knowledge) error {
	return s.upsertKnowledgeWithQuerier(ctx, s.querier(), k)
}

const knowledgeColumns = `id, title, content, tags, category, confidence, active, branch, citations, created_at, updated_at`

func scanKnowledge(row interface{ Scan(...interface{}) error }) (*Knowledge, error) {
	var k Knowledge
	var tags, cites string
	var createdAt, updatedAt sql.NullTime
	err := row.Scan(&k.ID, &k.Title, &k.Content, &tags, &k.Category, &k.Confidence,
		&k.Active, &k.Branch, &cites, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(tags), &k.Tags); err != nil {
		return nil, fmt.Errorf("decode tags of %s: %w", k.ID, err)
	}
	if err := json.Unmarshal([]byte(cites), &k.Citations); err != nil {
		return nil, fmt.Errorf("decode citations of %s: %w", k.ID, err)
	}
	if createdAt.Valid {
		k.CreatedAt = createdAt.Time
	}
	if updatedAt.Valid {
		k.UpdatedAt = updatedAt.Time
	}
	return &k, nil
}

func (s *SQLiteStorage) getKnowledgeWithQuerier(ctx context.Context, q querier, id string) (*Knowledge, error) {
	query := `SELECT ` + knowledgeColumns + ` FROM knowledge WHERE id = ?`
	k, err := scanKnowledge(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return k, nil
}

func (s *SQLiteStorage) GetKnowledge(ctx context.Context, id string) (*Knowledge, error) {
	return s.getKnowledgeWithQuerier(ctx, s.querier(), id)
}

// listActiveKnowledgeWithQuerier returns active mainline entries in a
// stable order so matching is deterministic
func (s *SQLiteStorage) listActiveKnowledgeWithQuerier(ctx context.Context, q querier) ([]*Knowledge, error) {
	query := `SELECT ` + knowledgeColumns + `
		FROM knowledge
		WHERE active = 1 AND branch = ?
		ORDER BY created_at, id`
	rows, err := q.QueryContext(ctx, query, types.MainBranch)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	entries := make([]*Knowledge, 0)
	for rows.Next() {
		k, err := scanKnowledge(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, k)
	}
	return entries, rows.Err()
}

func (s *SQLiteStorage) ListActiveKnowledge(ctx context.Context) ([]*Knowledge, error) {
	return s.listActiveKnowledgeWithQuerier(ctx, s.querier())
}

// Embedding operations

func (s *SQLiteStorage) upsertKnowledgeEmbeddingWithQuerier(ctx context.Context, q querier, embedding *KnowledgeEmbedding) error {
	query := `
		INSERT INTO knowledge_embeddings (knowledge_id, vector, dimension, provider, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(knowledge_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			provider = excluded.provider,
			model = excluded.model
	`
	now := time.Now()
	_, err := q.ExecContext(ctx, query,
		embedding.KnowledgeID, embedding.Vector, embedding.Dimension,
		embedding.Provider, embedding.Model, now)
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	embedding.CreatedAt = now
	return nil
}

func (s *SQLiteStorage) UpsertKnowledgeEmbedding(ctx context.Context, embedding *KnowledgeEmbedding) error {
	return s.upsertKnowledgeEmbeddingWithQuerier(ctx, s.querier(), embedding)
}

func (s *SQLiteStorage) SearchKnowledge(ctx context.Context, vector []float32, limit int, minScore float64) ([]KnowledgeResult, error) {
	return searchKnowledge(ctx, s.querier(), vector, limit, minScore)
}

// Status operations

func (s *SQLiteStorage) getStatusWithQuerier(ctx context.Context, q querier) (*IndexStatus, error) {
	status := &IndexStatus{}

	counts := []struct {
		query string
		dest  *int
	}{
		{"SELECT COUNT(*) FROM pages", &status.PagesCount},
		{"SELECT COUNT(*) FROM citations", &status.CitationsCount},
		{"SELECT COUNT(*) FROM knowledge", &status.KnowledgeCount},
		{"SELECT COUNT(*) FROM knowledge_embeddings", &status.EmbeddingsCount},
	}
	for _, c := range counts {
		if err := q.QueryRowContext(ctx, c.query).Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var lastIndexed sql.NullTime
	err := q.QueryRowContext(ctx, "SELECT updated_at FROM pages ORDER BY updated_at DESC LIMIT 1").Scan(&lastIndexed)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	if lastIndexed.Valid {
		status.LastIndexedAt = lastIndexed.Time
	}

	var pageCount, pageSize int
	if err := q.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err == nil {
		_ = q.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize)
		status.IndexSizeMB = float64(pageCount*pageSize) / (1024 * 1024)
	}

	status.Health = HealthStatus{
		DatabaseAccessible:  true,
		EmbeddingsAvailable: status.EmbeddingsCount > 0,
		VectorExtension:     VectorExtensionAvailable,
	}
	return status, nil
}

func (s *SQLiteStorage) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return s.getStatusWithQuerier(ctx, s.querier())
}

// ReplacePageCitations deletes every citation of the page and inserts the
// new set in one transaction, so a page's citations are never partially
// regenerated
func ReplacePageCitations(ctx context.Context, s Storage, pageID int64, citations []types.Citation) error {
	tx, err := s.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := tx.DeleteCitationsByPage(ctx, pageID); err != nil {
		return fmt.Errorf("delete citations of page %d: %w", pageID, err)
	}
	if err := tx.InsertCitations(ctx, citations); err != nil {
		return err
	}
	return tx.Commit()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Transaction implementations delegate to the storage helpers with the
// transaction as querier

func (t *sqliteTx) UpsertPage(ctx context.Context, page *Page) error {
	return t.storage.upsertPageWithQuerier(ctx, t.querier(), page)
}

func (t *sqliteTx) GetPage(ctx context.Context, path string) (*Page, error) {
	return t.storage.getPageWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) ListPages(ctx context.Context) ([]*Page, error) {
	return t.storage.listPagesWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) DeletePage(ctx context.Context, pageID int64) error {
	return t.storage.deletePageWithQuerier(ctx, t.querier(), pageID)
}

func (t *sqliteTx) InsertCitations(ctx context.Context, citations []types.Citation) error {
	return t.storage.insertCitationsWithQuerier(ctx, t.querier(), citations)
}

func (t *sqliteTx) DeleteCitationsByPage(ctx context.Context, pageID int64) error {
	return t.storage.deleteCitationsByPageWithQuerier(ctx, t.querier(), pageID)
}

func (t *sqliteTx) DeleteAllCitations(ctx context.Context) error {
	return t.storage.deleteAllCitationsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) ListCitationsByPage(ctx context.Context, pageID int64) ([]*CitationRecord, error) {
	return t.storage.listCitationsByPageWithQuerier(ctx, t.querier(), pageID)
}

func (t *sqliteTx) ListCitationsForFile(ctx context.Context, path string) ([]*FileCitation, error) {
	return t.storage.listCitationsForFileWithQuerier(ctx, t.querier(), path)
}

func (t *sqliteTx) ListCitedElements(ctx context.Context) ([]CitedElement, error) {
	return t.storage.listCitedElementsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) CountCitations(ctx context.Context) (int, error) {
	return t.storage.countCitationsWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertKnowledge(ctx context.Context, k *Knowledge) error {
	return t.storage.upsertKnowledgeWithQuerier(ctx, t.querier(), k)
}

func (t *sqliteTx) GetKnowledge(ctx context.Context, id string) (*Knowledge, error) {
	return t.storage.getKnowledgeWithQuerier(ctx, t.querier(), id)
}

func (t *sqliteTx) ListActiveKnowledge(ctx context.Context) ([]*Knowledge, error) {
	return t.storage.listActiveKnowledgeWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) UpsertKnowledgeEmbedding(ctx context.Context, embedding *KnowledgeEmbedding) error {
	return t.storage.upsertKnowledgeEmbeddingWithQuerier(ctx, t.querier(), embedding)
}

func (t *sqliteTx) SearchKnowledge(ctx context.Context, vector []float32, limit int, minScore float64) ([]KnowledgeResult, error) {
	return searchKnowledge(ctx, t.querier(), vector, limit, minScore)
}

func (t *sqliteTx) GetStatus(ctx context.Context) (*IndexStatus, error) {
	return t.storage.getStatusWithQuerier(ctx, t.querier())
}

func (t *sqliteTx) Close() error {
	// Transactions don't close the underlying connection
	return nil
}

func (t *sqliteTx) BeginTx(ctx context.Context) (Tx, error) {
	// SQLite does not support true nested transactions
	return nil, errors.New("nested transactions not supported")
}
