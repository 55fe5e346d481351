package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"
)

// searchKnowledge ranks active mainline knowledge entries by cosine
// similarity to the query vector
func searchKnowledge(ctx context.Context, q querier, queryVector []float32, limit int, minScore float64) ([]KnowledgeResult, error) {
	if limit <= 0 {
		return []KnowledgeResult{}, nil
	}
	if VectorExtensionAvailable {
		return searchKnowledgeOptimized(ctx, q, queryVector, limit, minScore)
	}
	return searchKnowledgeFallback(ctx, q, queryVector, limit, minScore)
}

// searchKnowledgeOptimized computes distances in SQL with the sqlite-vec
// extension
func searchKnowledgeOptimized(ctx context.Context, q querier, queryVector []float32, limit int, minScore float64) ([]KnowledgeResult, error) {
	blob := serializeVector(queryVector)

	// vec_distance_cosine returns a distance (lower is better)
	query := `
		SELECT k.id, k.title, 1.0 - vec_distance_cosine(e.vector, ?) AS similarity
		FROM knowledge k
		INNER JOIN knowledge_embeddings e ON k.id = e.knowledge_id
		WHERE k.active = 1 AND k.branch = 'main' AND e.dimension = ?
		  AND (1.0 - vec_distance_cosine(e.vector, ?)) >= ?
		ORDER BY similarity DESC, k.id
		LIMIT ?
	`
	rows, err := q.QueryContext(ctx, query, blob, len(queryVector), blob, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to execute vector search: %w", err)
	}
	defer func() { _ = rows.Close() }()

	results := make([]KnowledgeResult, 0, limit)
	for rows.Next() {
		var r KnowledgeResult
		if err := rows.Scan(&r.KnowledgeID, &r.Title, &r.SimilarityScore); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// searchKnowledgeFallback computes similarity in Go for builds without the
// vector extension
func searchKnowledgeFallback(ctx context.Context, q querier, queryVector []float32, limit int, minScore float64) ([]KnowledgeResult, error) {
	query := `
		SELECT k.id, k.title, e.vector
		FROM knowledge k
		INNER JOIN knowledge_embeddings e ON k.id = e.knowledge_id
		WHERE k.active = 1 AND k.branch = 'main'
	`
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	candidates, err := computeSimilarityScores(rows, queryVector, minScore)
	if err != nil {
		return nil, err
	}
	sortCandidates(candidates)

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// computeSimilarityScores scores every row, skipping dimension mismatches
// and results under minScore
func computeSimilarityScores(rows *sql.Rows, queryVector []float32, minScore float64) ([]KnowledgeResult, error) {
	candidates := make([]KnowledgeResult, 0)

	for rows.Next() {
		var r KnowledgeResult
		var blob []byte
		if err := rows.Scan(&r.KnowledgeID, &r.Title, &blob); err != nil {
			return nil, err
		}

		vector := deserializeVector(blob)
		if len(vector) != len(queryVector) {
			continue
		}

		r.SimilarityScore = cosineSimilarity(queryVector, vector)
		if r.SimilarityScore < minScore {
			continue
		}
		candidates = append(candidates, r)
	}

	return candidates, rows.Err()
}

// sortCandidates orders by score descending, ties by id for determinism
func sortCandidates(candidates []KnowledgeResult) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].SimilarityScore != candidates[j].SimilarityScore {
			return candidates[i].SimilarityScore > candidates[j].SimilarityScore
		}
		return candidates[i].KnowledgeID < candidates[j].KnowledgeID
	})
}

// serializeVector converts a float32 slice to a byte blob (little-endian)
func serializeVector(vector []float32) []byte {
	blob := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(blob[i*4:], math.Float32bits(v))
	}
	return blob
}

// deserializeVector converts a byte blob back to a float32 slice
func deserializeVector(blob []byte) []float32 {
	vector := make([]float32, len(blob)/4)
	for i := range vector {
		bits := binary.LittleEndian.Uint32(blob[i*4:])
		vector[i] = math.Float32frombits(bits)
	}
	return vector
}

// cosineSimilarity computes the cosine similarity between two vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}

// SerializeVector encodes an embedding for storage
func SerializeVector(vector []float32) []byte {
	return serializeVector(vector)
}

// DeserializeVector decodes a stored embedding
func DeserializeVector(blob []byte) []float32 {
	return deserializeVector(blob)
}

// CosineSimilarity is an exported helper for testing
func CosineSimilarity(a, b []float32) float64 {
	return cosineSimilarity(a, b)
}
