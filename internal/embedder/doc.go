// Package embedder turns text into vectors for the matcher's vector tier
// and for knowledge entries stored by the importer.
//
// Three providers implement Embedder: Jina AI over HTTP, OpenAI through
// the openai-go SDK, and an offline LocalProvider that hashes word tokens
// into 384 buckets. Remote providers batch up to MaxBatchSize texts per
// call, retry with exponential backoff and cache results by text hash.
//
// # Provider Selection
//
// NewFromEnv (and New with an empty Provider) chooses:
//
//  1. CITEINDEX_EMBEDDING_PROVIDER when set (jina, openai, local)
//  2. jina when JINA_API_KEY is set
//  3. openai when OPENAI_API_KEY is set
//  4. local otherwise
//
// Example:
//
//	emb, err := embedder.New(embedder.Config{Provider: "openai", CacheSize: 1000})
//	if err != nil {
//	    return err
//	}
//	defer emb.Close()
//
//	v, err := emb.GenerateEmbedding(ctx, embedder.EmbeddingRequest{
//	    Text: "function parseConfig(path) in internal/config/load.go",
//	})
//
// Errors wrap ErrProviderFailed once retries are exhausted; callers in the
// matcher log and skip instead of failing the run.
package embedder
