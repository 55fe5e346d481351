// Package api implements the citeindex REST API using chi.
package api

import (
	"context"

	"github.com/dshills/citeindex/internal/citation"
	"github.com/dshills/citeindex/internal/coverage"
	"github.com/dshills/citeindex/internal/indexer"
	"github.com/dshills/citeindex/internal/searcher"
	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

// Service groups the components the API layer reads from and triggers.
type Service struct {
	indexer  *indexer.Indexer
	coverage *coverage.Calculator
	checker  *citation.Checker
	searcher *searcher.Searcher
	store    storage.Storage
}

// NewService creates a new API service.
func NewService(idx *indexer.Indexer, calc *coverage.Calculator, checker *citation.Checker, srch *searcher.Searcher, store storage.Storage) *Service {
	return &Service{indexer: idx, coverage: calc, checker: checker, searcher: srch, store: store}
}

// ReindexResult is the response payload of a reindex trigger. Exactly one
// of the stats fields is set.
type ReindexResult struct {
	Mode        string                    `json:"mode"`
	Incremental *indexer.IncrementalStats `json:"incremental,omitempty"`
	Full        *indexer.FullStats        `json:"full,omitempty"`
}

// Reindex runs a full or incremental pass
func (s *Service) Reindex(ctx context.Context, full bool) (*ReindexResult, error) {
	if full {
		stats, err := s.indexer.ReindexFull(ctx)
		if err != nil {
			return nil, err
		}
		return &ReindexResult{Mode: ModeFull, Full: stats}, nil
	}
	stats, err := s.indexer.ReindexIncremental(ctx)
	if err != nil {
		return nil, err
	}
	return &ReindexResult{Mode: ModeIncremental, Incremental: stats}, nil
}

func (s *Service) Coverage(ctx context.Context) (*types.CoverageStats, error) {
	return s.coverage.Coverage(ctx)
}

func (s *Service) CitationsForFile(ctx context.Context, path string) ([]*storage.FileCitation, error) {
	return s.store.ListCitationsForFile(ctx, path)
}

// Files returns the cached project scan
func (s *Service) Files(ctx context.Context) (*types.ScanResult, error) {
	return s.indexer.ScanProject(ctx)
}

func (s *Service) Staleness(ctx context.Context) (*citation.StalenessReport, error) {
	return s.checker.Staleness(ctx)
}

func (s *Service) Status(ctx context.Context) (*storage.IndexStatus, error) {
	return s.store.GetStatus(ctx)
}

// SearchKnowledge ranks knowledge entries against a free-text query
func (s *Service) SearchKnowledge(ctx context.Context, req searcher.SearchRequest) (*searcher.SearchResponse, error) {
	req.UseCache = true
	return s.searcher.Search(ctx, req)
}
