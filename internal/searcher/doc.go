// Package searcher ranks knowledge entries against free-text queries.
//
// Three modes are supported:
//   - vector: embed the query and rank entries by cosine similarity of
//     their stored embeddings
//   - keyword: fraction of query tokens found in an entry's title,
//     content and tags
//   - hybrid: both rankings run concurrently and are merged with
//     Reciprocal Rank Fusion, RRF(d) = Σ 1/(k + rank(d)) with k = 60
//
// Hybrid search tolerates one side failing, so a project without stored
// embeddings still gets keyword results.
//
// Responses can be cached in an LRU keyed by query, mode and limit with a
// per-request TTL. InvalidateCache drops everything and is called after a
// knowledge import.
//
//	s := searcher.NewSearcher(store, emb)
//	resp, err := s.Search(ctx, searcher.SearchRequest{Query: "token refresh", UseCache: true})
package searcher
