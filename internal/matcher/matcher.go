package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dshills/citeindex/internal/embedder"
	"github.com/dshills/citeindex/internal/storage"
	"github.com/dshills/citeindex/pkg/types"
)

const (
	// ContentThreshold is the minimum fraction of element-name tokens that
	// must appear in an entry's title and content
	ContentThreshold = 0.30
	// VectorThreshold is the minimum similarity kept by the vector tier
	VectorThreshold = 0.45
	// VectorTopK bounds the similarity search per element
	VectorTopK = 5
)

// KnowledgeSearcher runs a similarity search over knowledge embeddings
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, vector []float32, limit int, minScore float64) ([]storage.KnowledgeResult, error)
}

// FileInput is one persisted page to match
type FileInput struct {
	PageID int64
	File   *types.FileRecord
}

// Matcher produces citations with a tag, content, vector cascade.
// A nil embedder or searcher disables the vector tier.
type Matcher struct {
	embedder embedder.Embedder
	searcher KnowledgeSearcher
	logger   *slog.Logger
}

type Option func(*Matcher)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Matcher) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func New(emb embedder.Embedder, searcher KnowledgeSearcher, opts ...Option) *Matcher {
	m := &Matcher{
		embedder: emb,
		searcher: searcher,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// run holds per-call state so entry tokenization is done once per Match
type run struct {
	entries []types.KnowledgeEntry
	known   map[string]int // entry id -> index
	tokens  []map[string]struct{}
}

func newRun(entries []types.KnowledgeEntry) *run {
	r := &run{
		entries: entries,
		known:   make(map[string]int, len(entries)),
		tokens:  make([]map[string]struct{}, len(entries)),
	}
	for i, e := range entries {
		if _, dup := r.known[e.ID]; !dup {
			r.known[e.ID] = i
		}
	}
	return r
}

func (r *run) entryTokens(i int) map[string]struct{} {
	if r.tokens[i] == nil {
		e := r.entries[i]
		r.tokens[i] = tokenSet(e.Title + " " + e.Content)
	}
	return r.tokens[i]
}

// Match returns citations for every citeable element of files. Output is
// ordered by file, then element, then entry order (tag and content tiers)
// or descending score (vector tier).
func (m *Matcher) Match(ctx context.Context, files []FileInput, entries []types.KnowledgeEntry) ([]types.Citation, error) {
	r := newRun(entries)
	citations := make([]types.Citation, 0)

	for _, f := range files {
		if f.File == nil {
			continue
		}
		for _, el := range f.File.Elements() {
			citations = append(citations, m.matchElement(ctx, r, f, el)...)
		}
	}
	return citations, nil
}

// MatchFile is Match for a single page
func (m *Matcher) MatchFile(ctx context.Context, file FileInput, entries []types.KnowledgeEntry) ([]types.Citation, error) {
	return m.Match(ctx, []FileInput{file}, entries)
}

func (m *Matcher) matchElement(ctx context.Context, r *run, f FileInput, el types.Element) []types.Citation {
	cite := func(knowledgeID string, mt types.MatchType) types.Citation {
		end := el.EndLine
		if end < el.Line {
			end = el.Line
		}
		return types.Citation{
			PageID:      f.PageID,
			KnowledgeID: knowledgeID,
			ElementName: el.Name,
			StartLine:   el.Line,
			EndLine:     end,
			MatchType:   mt,
		}
	}

	var out []types.Citation
	for _, id := range tagMatches(r.entries, el.Name) {
		out = append(out, cite(id, types.MatchTag))
	}
	if len(out) > 0 {
		return out
	}

	for _, id := range contentMatches(r, el.Name) {
		out = append(out, cite(id, types.MatchContent))
	}
	if len(out) > 0 {
		return out
	}

	ids, err := m.vectorMatches(ctx, r, f.File.RelativePath, el)
	if err != nil {
		m.logger.Warn("vector match failed",
			slog.String("file", f.File.RelativePath),
			slog.String("element", el.Name),
			slog.Any("error", err))
		return nil
	}
	for _, id := range ids {
		out = append(out, cite(id, types.MatchVector))
	}
	return out
}

// tagMatches returns ids of entries carrying a tag equal to name, ignoring
// case. Each entry is returned at most once.
func tagMatches(entries []types.KnowledgeEntry, name string) []string {
	var ids []string
	seen := make(map[string]bool)
	for _, e := range entries {
		if seen[e.ID] {
			continue
		}
		for _, tag := range e.Tags {
			if strings.EqualFold(strings.TrimSpace(tag), name) {
				ids = append(ids, e.ID)
				seen[e.ID] = true
				break
			}
		}
	}
	return ids
}

func contentMatches(r *run, name string) []string {
	nameTokens := Tokenize(name)
	if len(nameTokens) == 0 {
		return nil
	}

	var ids []string
	seen := make(map[string]bool)
	for i, e := range r.entries {
		if seen[e.ID] {
			continue
		}
		set := r.entryTokens(i)
		hits := 0
		for _, tok := range nameTokens {
			if _, ok := set[tok]; ok {
				hits++
			}
		}
		if float64(hits)/float64(len(nameTokens)) >= ContentThreshold {
			ids = append(ids, e.ID)
			seen[e.ID] = true
		}
	}
	return ids
}

// vectorMatches embeds the element summary and keeps search hits that
// belong to the current entry snapshot
func (m *Matcher) vectorMatches(ctx context.Context, r *run, relPath string, el types.Element) ([]string, error) {
	if m.embedder == nil || m.searcher == nil || len(r.entries) == 0 {
		return nil, nil
	}

	emb, err := m.embedder.GenerateEmbedding(ctx, embedder.EmbeddingRequest{Text: Summary(el, relPath)})
	if err != nil {
		return nil, fmt.Errorf("embed element: %w", err)
	}
	results, err := m.searcher.SearchKnowledge(ctx, emb.Vector, VectorTopK, VectorThreshold)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}

	var ids []string
	seen := make(map[string]bool)
	for _, res := range results {
		if res.SimilarityScore < VectorThreshold || seen[res.KnowledgeID] {
			continue
		}
		if _, ok := r.known[res.KnowledgeID]; !ok {
			continue
		}
		ids = append(ids, res.KnowledgeID)
		seen[res.KnowledgeID] = true
	}
	return ids, nil
}
