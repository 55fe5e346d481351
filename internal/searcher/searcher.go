package searcher

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/dshills/citeindex/internal/embedder"
	"github.com/dshills/citeindex/internal/matcher"
	"github.com/dshills/citeindex/internal/storage"
)

// SearchMode defines how search is performed
type SearchMode string

const (
	SearchModeHybrid  SearchMode = "hybrid"  // Vector + keyword with RRF
	SearchModeVector  SearchMode = "vector"  // Vector similarity only
	SearchModeKeyword SearchMode = "keyword" // Token overlap only
)

const (
	defaultLimit     = 10
	maxLimit         = 100
	defaultRRF       = 60
	defaultCacheTTL  = time.Hour
	defaultCacheSize = 1000
)

var (
	// ErrInvalidRequest marks requests rejected before any search runs
	ErrInvalidRequest = errors.New("invalid search request")

	// ErrEmbedderUnavailable is returned by vector searches when no
	// embedder is configured
	ErrEmbedderUnavailable = errors.New("embedder not initialized")
)

// Store is the part of storage the searcher reads
type Store interface {
	ListActiveKnowledge(ctx context.Context) ([]*storage.Knowledge, error)
	GetKnowledge(ctx context.Context, id string) (*storage.Knowledge, error)
	SearchKnowledge(ctx context.Context, vector []float32, limit int, minScore float64) ([]storage.KnowledgeResult, error)
}

// SearchRequest contains parameters for a search operation
type SearchRequest struct {
	Query       string
	Limit       int
	Mode        SearchMode
	UseCache    bool
	CacheTTL    time.Duration
	RRFConstant float64 // k value for Reciprocal Rank Fusion (default 60)
}

// Result is one ranked knowledge entry
type Result struct {
	KnowledgeID    string   `json:"knowledgeId"`
	Title          string   `json:"title"`
	Category       string   `json:"category,omitempty"`
	Tags           []string `json:"tags"`
	Rank           int      `json:"rank"`
	RelevanceScore float64  `json:"relevanceScore"`
}

// SearchResponse contains search results and metadata
type SearchResponse struct {
	Results       []Result      `json:"results"`
	TotalResults  int           `json:"totalResults"`
	SearchMode    SearchMode    `json:"searchMode"`
	Duration      time.Duration `json:"durationNs"`
	CacheHit      bool          `json:"cacheHit"`
	VectorResults int           `json:"vectorResults"`
	TextResults   int           `json:"textResults"`
}

// cacheEntry represents a cached search response with expiration time
type cacheEntry struct {
	response  *SearchResponse
	expiresAt time.Time
}

// Searcher ranks active knowledge entries against free-text queries
type Searcher struct {
	storage  Store
	embedder embedder.Embedder
	cache    *lru.Cache[[32]byte, *cacheEntry]
	cacheMu  sync.RWMutex
}

// NewSearcher creates a new Searcher. A nil embedder limits search to
// keyword mode.
func NewSearcher(store Store, emb embedder.Embedder) *Searcher {
	cache, err := lru.New[[32]byte, *cacheEntry](defaultCacheSize)
	if err != nil {
		panic(fmt.Sprintf("failed to create LRU cache: %v", err))
	}
	return &Searcher{
		storage:  store,
		embedder: emb,
		cache:    cache,
	}
}

// Search performs a search based on the request parameters
func (s *Searcher) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	startTime := time.Now()

	if err := s.validateRequest(&req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}

	if req.UseCache {
		if cached := s.checkCache(req); cached != nil {
			cached.CacheHit = true
			cached.Duration = time.Since(startTime)
			return cached, nil
		}
	}

	var response *SearchResponse
	var err error

	switch req.Mode {
	case SearchModeHybrid:
		response, err = s.hybridSearch(ctx, req)
	case SearchModeVector:
		response, err = s.vectorSearch(ctx, req)
	case SearchModeKeyword:
		response, err = s.keywordSearch(ctx, req)
	default:
		return nil, fmt.Errorf("%w: unsupported search mode: %s", ErrInvalidRequest, req.Mode)
	}
	if err != nil {
		return nil, err
	}

	response.Duration = time.Since(startTime)
	response.SearchMode = req.Mode

	if req.UseCache && len(response.Results) > 0 {
		s.storeInCache(req, response)
	}
	return response, nil
}

// searchResult holds results from concurrent search operations
type searchResult struct {
	ranked []rankedResult
	err    error
}

// rankedResult is a knowledge id with its relevance score and rank
type rankedResult struct {
	id    string
	score float64
	rank  int
}

func (s *Searcher) runVectorSearch(ctx context.Context, req SearchRequest, resultChan chan<- searchResult) {
	var res searchResult
	res.ranked, res.err = s.vectorRanked(ctx, req.Query, req.Limit*2)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

func (s *Searcher) runTextSearch(ctx context.Context, req SearchRequest, resultChan chan<- searchResult) {
	var res searchResult
	res.ranked, res.err = s.keywordRanked(ctx, req.Query, req.Limit*2)
	select {
	case resultChan <- res:
	case <-ctx.Done():
	}
}

// hybridSearch combines vector and keyword ranking with Reciprocal Rank
// Fusion. One side may fail.
func (s *Searcher) hybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	vectorChan := make(chan searchResult, 1)
	textChan := make(chan searchResult, 1)

	go s.runVectorSearch(ctx, req, vectorChan)
	go s.runTextSearch(ctx, req, textChan)

	var vectorRes, textRes searchResult
	var vectorDone, textDone bool
	for !vectorDone || !textDone {
		select {
		case vectorRes = <-vectorChan:
			vectorDone = true
		case textRes = <-textChan:
			textDone = true
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if vectorRes.err != nil && textRes.err != nil {
		return nil, fmt.Errorf("both searches failed: vector=%w, text=%v", vectorRes.err, textRes.err)
	}

	rrf := applyRRF(req.RRFConstant, vectorRes.ranked, textRes.ranked)
	results := s.fetchResults(ctx, rrf, req.Limit)
	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(vectorRes.ranked),
		TextResults:   len(textRes.ranked),
	}, nil
}

func (s *Searcher) vectorSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	ranked, err := s.vectorRanked(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}
	results := s.fetchResults(ctx, ranked, req.Limit)
	return &SearchResponse{
		Results:       results,
		TotalResults:  len(results),
		VectorResults: len(ranked),
	}, nil
}

func (s *Searcher) keywordSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	ranked, err := s.keywordRanked(ctx, req.Query, req.Limit)
	if err != nil {
		return nil, err
	}
	results := s.fetchResults(ctx, ranked, req.Limit)
	return &SearchResponse{
		Results:      results,
		TotalResults: len(results),
		TextResults:  len(ranked),
	}, nil
}

func (s *Searcher) vectorRanked(ctx context.Context, query string, limit int) ([]rankedResult, error) {
	if s.embedder == nil {
		return nil, ErrEmbedderUnavailable
	}
	embedding, err := s.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}
	hits, err := s.storage.SearchKnowledge(ctx, embedding.Vector, limit, 0)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, len(hits))
	for i, h := range hits {
		ranked[i] = rankedResult{id: h.KnowledgeID, score: h.SimilarityScore, rank: i + 1}
	}
	return ranked, nil
}

// keywordRanked scores entries by the fraction of query tokens found in
// their title, content and tags
func (s *Searcher) keywordRanked(ctx context.Context, query string, limit int) ([]rankedResult, error) {
	queryTokens := matcher.Tokenize(query)
	if len(queryTokens) == 0 {
		return []rankedResult{}, nil
	}

	entries, err := s.storage.ListActiveKnowledge(ctx)
	if err != nil {
		return nil, err
	}

	ranked := make([]rankedResult, 0)
	for _, k := range entries {
		text := k.Title + " " + k.Content + " " + strings.Join(k.Tags, " ")
		entryTokens := matcher.Tokenize(text)
		hits := 0
		for _, tok := range queryTokens {
			if slices.Contains(entryTokens, tok) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		ranked = append(ranked, rankedResult{id: k.ID, score: float64(hits) / float64(len(queryTokens))})
	}

	sortRankedResults(ranked)
	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	for i := range ranked {
		ranked[i].rank = i + 1
	}
	return ranked, nil
}

// applyRRF applies Reciprocal Rank Fusion: RRF(d) = Σ 1/(k + rank(d))
func applyRRF(k float64, lists ...[]rankedResult) []rankedResult {
	if k == 0 {
		k = defaultRRF
	}

	scores := make(map[string]float64)
	for _, list := range lists {
		for rank, r := range list {
			scores[r.id] += 1.0 / (k + float64(rank+1))
		}
	}

	results := make([]rankedResult, 0, len(scores))
	for id, score := range scores {
		results = append(results, rankedResult{id: id, score: score})
	}
	sortRankedResults(results)
	for i := range results {
		results[i].rank = i + 1
	}
	return results
}

// fetchResults loads entry metadata for ranked ids. Entries that can no
// longer be loaded are skipped.
func (s *Searcher) fetchResults(ctx context.Context, ranked []rankedResult, limit int) []Result {
	if limit > len(ranked) {
		limit = len(ranked)
	}

	results := make([]Result, 0, limit)
	for _, rr := range ranked[:limit] {
		k, err := s.storage.GetKnowledge(ctx, rr.id)
		if err != nil {
			continue
		}
		results = append(results, Result{
			KnowledgeID:    k.ID,
			Title:          k.Title,
			Category:       k.Category,
			Tags:           slices.Clone(k.Tags),
			Rank:           len(results) + 1,
			RelevanceScore: rr.score,
		})
	}
	return results
}

func (s *Searcher) validateRequest(req *SearchRequest) error {
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if req.Limit <= 0 {
		req.Limit = defaultLimit
	}
	if req.Limit > maxLimit {
		req.Limit = maxLimit
	}
	if req.Mode == "" {
		req.Mode = SearchModeHybrid
		if s.embedder == nil {
			req.Mode = SearchModeKeyword
		}
	}
	if req.RRFConstant == 0 {
		req.RRFConstant = defaultRRF
	}
	if req.CacheTTL == 0 {
		req.CacheTTL = defaultCacheTTL
	}
	return nil
}

func (s *Searcher) checkCache(req SearchRequest) *SearchResponse {
	hash := computeQueryHash(req)
	now := time.Now()

	s.cacheMu.RLock()
	entry, found := s.cache.Get(hash)
	if !found {
		s.cacheMu.RUnlock()
		return nil
	}
	if now.After(entry.expiresAt) {
		s.cacheMu.RUnlock()
		s.cacheMu.Lock()
		s.cache.Remove(hash)
		s.cacheMu.Unlock()
		return nil
	}
	response := copySearchResponse(entry.response)
	s.cacheMu.RUnlock()
	return response
}

func (s *Searcher) storeInCache(req SearchRequest, response *SearchResponse) {
	entry := &cacheEntry{
		response:  copySearchResponse(response),
		expiresAt: time.Now().Add(req.CacheTTL),
	}
	s.cacheMu.Lock()
	s.cache.Add(computeQueryHash(req), entry)
	s.cacheMu.Unlock()
}

func copySearchResponse(src *SearchResponse) *SearchResponse {
	if src == nil {
		return nil
	}
	dst := *src
	dst.Results = make([]Result, len(src.Results))
	for i, r := range src.Results {
		r.Tags = slices.Clone(r.Tags)
		dst.Results[i] = r
	}
	return &dst
}

func computeQueryHash(req SearchRequest) [32]byte {
	key := fmt.Sprintf("%s|%s|%d|%.2f", req.Query, req.Mode, req.Limit, req.RRFConstant)
	return sha256.Sum256([]byte(key))
}

// sortRankedResults orders by score descending, ties by id
func sortRankedResults(results []rankedResult) {
	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].id < results[j].id
	})
}

// InvalidateCache drops every cached response. Called after knowledge
// changes.
func (s *Searcher) InvalidateCache() {
	s.cacheMu.Lock()
	s.cache.Purge()
	s.cacheMu.Unlock()
}

// CacheLen reports the number of cached responses
func (s *Searcher) CacheLen() int {
	s.cacheMu.RLock()
	defer s.cacheMu.RUnlock()
	return s.cache.Len()
}
