package embedder

import (
	"fmt"
	"os"
	"strings"

	"github.com/openai/openai-go/option"
)

const (
	EnvProvider     = "CITEINDEX_EMBEDDING_PROVIDER"
	EnvJinaAPIKey   = "JINA_API_KEY"
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
)

// Config selects and configures a provider explicitly
type Config struct {
	Provider  string
	APIKey    string
	BaseURL   string // OpenAI-compatible endpoint override
	CacheSize int
}

// NewFromEnv picks a provider from the environment:
// CITEINDEX_EMBEDDING_PROVIDER if set, else the first API key found
// (JINA_API_KEY, OPENAI_API_KEY), else the offline local provider.
func NewFromEnv() (Embedder, error) {
	return New(Config{Provider: DetectProvider(), CacheSize: defaultCacheSize})
}

// New creates the configured provider. An empty Provider behaves like
// NewFromEnv.
func New(cfg Config) (Embedder, error) {
	var cache *Cache
	if cfg.CacheSize > 0 {
		cache = NewCache(cfg.CacheSize)
	}

	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case ProviderJina:
		return NewJinaProvider(cfg.APIKey, cache)
	case ProviderOpenAI:
		var opts []option.RequestOption
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
		return NewOpenAIProvider(cfg.APIKey, cache, opts...)
	case ProviderLocal:
		return NewLocalProvider(cache)
	default:
		return nil, fmt.Errorf("%w: unknown provider %s", ErrUnsupportedModel, cfg.Provider)
	}
}

// DetectProvider reports which provider NewFromEnv would use
func DetectProvider() string {
	if provider := os.Getenv(EnvProvider); provider != "" {
		return strings.ToLower(provider)
	}
	if os.Getenv(EnvJinaAPIKey) != "" {
		return ProviderJina
	}
	if os.Getenv(EnvOpenAIAPIKey) != "" {
		return ProviderOpenAI
	}
	return ProviderLocal
}
