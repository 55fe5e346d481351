package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond, Multiplier: 2}
}

func embeddingServer(t *testing.T, failFirst int32, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		if n <= failFirst {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		data := make([]map[string]any, len(body.Input))
		// reversed order checks that providers place results by index
		for i := range body.Input {
			idx := len(body.Input) - 1 - i
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     idx,
				"embedding": []float64{float64(idx), 0.5},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  body.Model,
			"data":   data,
			"usage":  map[string]int{"prompt_tokens": 1, "total_tokens": 1},
		})
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestJina(t *testing.T, url string) *JinaProvider {
	t.Helper()
	p, err := NewJinaProvider("test-key", NewCache(10))
	require.NoError(t, err)
	p.endpoint = url
	p.retry = fastRetry()
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func newTestOpenAI(t *testing.T, url string) *OpenAIProvider {
	t.Helper()
	p, err := NewOpenAIProvider("test-key", NewCache(10), option.WithBaseURL(url+"/"))
	require.NoError(t, err)
	p.retry = fastRetry()
	return p
}

func TestJinaProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("batch keeps input order", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestJina(t, embeddingServer(t, 0, &calls).URL)

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 3)
		for i, emb := range resp.Embeddings {
			assert.Equal(t, float32(i), emb.Vector[0])
			assert.Equal(t, 2, emb.Dimension)
			assert.Equal(t, ProviderJina, emb.Provider)
		}
		assert.Equal(t, DefaultJinaModel, resp.Model)
	})

	t.Run("cache hit skips api", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestJina(t, embeddingServer(t, 0, &calls).URL)

		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "function scan"})
		require.NoError(t, err)
		_, err = p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "function scan"})
		require.NoError(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestJina(t, embeddingServer(t, 2, &calls).URL)

		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestJina(t, embeddingServer(t, 10, &calls).URL)

		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("validation", func(t *testing.T) {
		p := newTestJina(t, "http://127.0.0.1:0")

		_, err := p.GenerateEmbedding(ctx, EmbeddingRequest{})
		assert.ErrorIs(t, err, ErrEmptyText)

		large := make([]string, MaxBatchSize+1)
		for i := range large {
			large[i] = "text"
		}
		_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: large})
		assert.ErrorIs(t, err, ErrBatchTooLarge)
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvJinaAPIKey, "")
		_, err := NewJinaProvider("", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("metadata", func(t *testing.T) {
		p := newTestJina(t, "")
		assert.Equal(t, ProviderJina, p.Provider())
		assert.Equal(t, JinaDimension, p.Dimension())
		assert.Equal(t, DefaultJinaModel, p.Model())
	})
}

func TestOpenAIProvider(t *testing.T) {
	ctx := context.Background()

	t.Run("converts vectors to float32", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestOpenAI(t, embeddingServer(t, 0, &calls).URL)

		resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"a", "b"}})
		require.NoError(t, err)
		require.Len(t, resp.Embeddings, 2)
		assert.Equal(t, []float32{0, 0.5}, resp.Embeddings[0].Vector)
		assert.Equal(t, []float32{1, 0.5}, resp.Embeddings[1].Vector)
		assert.Equal(t, DefaultOpenAIModel, resp.Embeddings[0].Model)
		assert.Equal(t, ProviderOpenAI, resp.Provider)
	})

	t.Run("retries transient failures", func(t *testing.T) {
		var calls atomic.Int32
		p := newTestOpenAI(t, embeddingServer(t, 1, &calls).URL)

		emb, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		assert.Len(t, emb.Vector, 2)
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("missing api key", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "")
		_, err := NewOpenAIProvider("", nil)
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("metadata", func(t *testing.T) {
		p := newTestOpenAI(t, "http://127.0.0.1:0")
		assert.Equal(t, OpenAIDimension, p.Dimension())
		assert.Equal(t, DefaultOpenAIModel, p.Model())
		assert.NoError(t, p.Close())
	})
}

func TestRetryWithBackoff(t *testing.T) {
	ctx := context.Background()

	t.Run("succeeds after transient error", func(t *testing.T) {
		calls := 0
		result, err := retryWithBackoff(ctx, fastRetry(), func() (string, error) {
			calls++
			if calls < 2 {
				return "", errors.New("transient")
			}
			return "ok", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "ok", result)
		assert.Equal(t, 2, calls)
	})

	t.Run("returns last error", func(t *testing.T) {
		calls := 0
		_, err := retryWithBackoff(ctx, fastRetry(), func() (int, error) {
			calls++
			return 0, fmt.Errorf("fail %d", calls)
		})
		assert.EqualError(t, err, "fail 3")
		assert.Equal(t, 3, calls)
	})

	t.Run("backs off between attempts", func(t *testing.T) {
		cfg := RetryConfig{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond, Multiplier: 2}
		start := time.Now()
		_, err := retryWithBackoff(ctx, cfg, func() (int, error) { return 0, errors.New("fail") })
		assert.Error(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)
	})

	t.Run("stops on cancellation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cfg := RetryConfig{MaxRetries: 10, BaseDelay: 20 * time.Millisecond, MaxDelay: 50 * time.Millisecond, Multiplier: 2}
		calls := 0
		_, err := retryWithBackoff(cctx, cfg, func() (string, error) {
			calls++
			if calls == 2 {
				cancel()
			}
			return "", errors.New("fail")
		})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 2, calls)
	})

	t.Run("zero attempts still calls once", func(t *testing.T) {
		calls := 0
		_, _ = retryWithBackoff(ctx, RetryConfig{}, func() (int, error) {
			calls++
			return 1, nil
		})
		assert.Equal(t, 1, calls)
	})
}

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	assert.Equal(t, 3, cfg.MaxRetries)
	assert.Equal(t, 100*time.Millisecond, cfg.BaseDelay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, 2.0, cfg.Multiplier)
}
