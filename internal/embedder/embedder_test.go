package embedder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeHash(t *testing.T) {
	h1 := ComputeHash("func Scan() error")
	h2 := ComputeHash("func Scan() error")
	h3 := ComputeHash("func Scan() bool")

	assert.Len(t, h1, 64)
	assert.Equal(t, h1, h2)
	assert.NotEqual(t, h1, h3)
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", ComputeHash(""))
}

func TestValidateRequest(t *testing.T) {
	assert.ErrorIs(t, ValidateRequest(EmbeddingRequest{}), ErrEmptyText)
	assert.NoError(t, ValidateRequest(EmbeddingRequest{Text: "x"}))
}

func TestValidateBatchRequest(t *testing.T) {
	tests := []struct {
		name    string
		texts   []string
		wantErr bool
	}{
		{"valid", []string{"a", "b"}, false},
		{"empty batch", nil, true},
		{"empty text", []string{"a", ""}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateBatchRequest(BatchEmbeddingRequest{Texts: tt.texts})
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCache(t *testing.T) {
	t.Run("get returns copy", func(t *testing.T) {
		cache := NewCache(10)
		emb := &Embedding{Vector: []float32{1, 2}, Dimension: 2, Hash: "h"}
		cache.Set("h", emb)

		emb.Vector[0] = 99
		got, ok := cache.Get("h")
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2}, got.Vector)

		got.Vector[1] = 99
		again, _ := cache.Get("h")
		assert.Equal(t, []float32{1, 2}, again.Vector)
	})

	t.Run("evicts least recently used", func(t *testing.T) {
		cache := NewCache(2)
		cache.Set("a", &Embedding{})
		cache.Set("b", &Embedding{})
		_, _ = cache.Get("a")
		cache.Set("c", &Embedding{})

		assert.Equal(t, 2, cache.Size())
		_, ok := cache.Get("b")
		assert.False(t, ok)
		_, ok = cache.Get("a")
		assert.True(t, ok)
	})

	t.Run("clear", func(t *testing.T) {
		cache := NewCache(0)
		cache.Set("a", &Embedding{})
		cache.Clear()
		assert.Equal(t, 0, cache.Size())
	})
}

func TestCachedBatch(t *testing.T) {
	cache := NewCache(10)
	cache.Set(ComputeHash("cached"), &Embedding{Vector: []float32{9}})

	var fetched []string
	fetch := func(texts []string) ([]*Embedding, error) {
		fetched = append(fetched, texts...)
		out := make([]*Embedding, len(texts))
		for i := range texts {
			out[i] = &Embedding{Vector: []float32{float32(i)}}
		}
		return out, nil
	}

	got, err := cachedBatch(cache, []string{"one", "cached", "two"}, fetch)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, fetched)
	require.Len(t, got, 3)
	assert.Equal(t, []float32{0}, got[0].Vector)
	assert.Equal(t, []float32{9}, got[1].Vector)
	assert.Equal(t, []float32{1}, got[2].Vector)
	assert.Equal(t, ComputeHash("two"), got[2].Hash)
	assert.Equal(t, 3, cache.Size())

	t.Run("short response", func(t *testing.T) {
		_, err := cachedBatch(nil, []string{"a", "b"}, func([]string) ([]*Embedding, error) {
			return []*Embedding{{}}, nil
		})
		assert.ErrorIs(t, err, ErrProviderFailed)
	})

	t.Run("fetch error", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := cachedBatch(nil, []string{"a"}, func([]string) ([]*Embedding, error) {
			return nil, boom
		})
		assert.ErrorIs(t, err, boom)
	})
}

func TestNormalizeVector(t *testing.T) {
	got := NormalizeVector([]float32{3, 4})
	assert.InDelta(t, 0.6, got[0], 1e-6)
	assert.InDelta(t, 0.8, got[1], 1e-6)

	zero := []float32{0, 0}
	assert.Equal(t, zero, NormalizeVector(zero))
}
