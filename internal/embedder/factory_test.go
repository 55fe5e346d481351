package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	t.Setenv(EnvProvider, "")
	t.Setenv(EnvJinaAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		expected string
	}{
		{"nothing set", nil, ProviderLocal},
		{"explicit wins", map[string]string{EnvProvider: "OpenAI", EnvJinaAPIKey: "k"}, ProviderOpenAI},
		{"jina key", map[string]string{EnvJinaAPIKey: "k", EnvOpenAIAPIKey: "k"}, ProviderJina},
		{"openai key", map[string]string{EnvOpenAIAPIKey: "k"}, ProviderOpenAI},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearProviderEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			assert.Equal(t, tt.expected, DetectProvider())
		})
	}
}

func TestNewFromEnv(t *testing.T) {
	t.Run("local fallback", func(t *testing.T) {
		clearProviderEnv(t)
		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderLocal, emb.Provider())
	})

	t.Run("jina from key", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvJinaAPIKey, "k")
		emb, err := NewFromEnv()
		require.NoError(t, err)
		assert.Equal(t, ProviderJina, emb.Provider())
	})

	t.Run("explicit provider without key", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, ProviderOpenAI)
		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("unknown provider", func(t *testing.T) {
		clearProviderEnv(t)
		t.Setenv(EnvProvider, "bogus")
		_, err := NewFromEnv()
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})
}

func TestNew(t *testing.T) {
	clearProviderEnv(t)

	emb, err := New(Config{Provider: "local", CacheSize: 5})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	emb, err = New(Config{Provider: "openai", APIKey: "k", BaseURL: "http://localhost:9/v1/"})
	require.NoError(t, err)
	assert.Equal(t, ProviderOpenAI, emb.Provider())

	emb, err = New(Config{})
	require.NoError(t, err)
	assert.Equal(t, ProviderLocal, emb.Provider())

	_, err = New(Config{Provider: "nope"})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}
