// Package config defines the citeindex configuration file.
package config

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/dshills/citeindex/internal/embedder"
	pkgconfig "github.com/dshills/citeindex/pkg/config"
)

// DefaultFile is looked up in the project root when no file is given
const DefaultFile = ".citeindex.yaml"

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	Project   ProjectConfig     `yaml:"project"`
	Storage   StorageConfig     `yaml:"storage"`
	Embedding EmbeddingConfig   `yaml:"embedding"`
	ScanCache ScanCacheConfig   `yaml:"scan_cache"`
	Watch     WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validators := []pkgconfig.Validator{&c.App, &c.Project, &c.Storage, &c.Embedding, &c.ScanCache, &c.Watch}
	for _, v := range validators {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *HTTPConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	return nil
}

// ProjectConfig selects the source tree to index
type ProjectConfig struct {
	Root         string   `yaml:"root"`
	Workers      int      `yaml:"workers"`
	ExcludedDirs []string `yaml:"excluded_dirs"`
}

func (c *ProjectConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
		validation.Field(&c.Workers, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("project: %w", err)
	}
	return nil
}

type StorageConfig struct {
	Path string `yaml:"path"`
}

func (c *StorageConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return fmt.Errorf("storage: %w", err)
	}
	return nil
}

// EmbeddingConfig configures the embedder. An empty provider is detected
// from the environment.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BaseURL   string `yaml:"base_url"`
	CacheSize int    `yaml:"cache_size"`
}

func (c *EmbeddingConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.In(embedder.ProviderJina, embedder.ProviderOpenAI, embedder.ProviderLocal)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	); err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	return nil
}

// EmbedderConfig converts to the embedder factory configuration
func (c *EmbeddingConfig) EmbedderConfig() embedder.Config {
	return embedder.Config{
		Provider:  c.Provider,
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		CacheSize: c.CacheSize,
	}
}

type ScanCacheConfig struct {
	TTL        time.Duration `yaml:"ttl"`
	SampleSize int           `yaml:"sample_size"`
}

func (c *ScanCacheConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.TTL, validation.Required, validation.Min(time.Second)),
		validation.Field(&c.SampleSize, validation.Required, validation.Min(1)),
	); err != nil {
		return fmt.Errorf("scan_cache: %w", err)
	}
	return nil
}

// WatchConfig controls the file watcher used by serve
type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
}

func (c *WatchConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(10*time.Millisecond)),
	); err != nil {
		return fmt.Errorf("watch: %w", err)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP:     HTTPConfig{Port: 8088},
		},
		Project: ProjectConfig{Root: "."},
		Storage: StorageConfig{Path: filepath.Join(".citeindex", "index.db")},
		Embedding: EmbeddingConfig{
			CacheSize: 10000,
		},
		ScanCache: ScanCacheConfig{
			TTL:        5 * time.Minute,
			SampleSize: 10,
		},
		Watch: WatchConfig{
			Enabled:  true,
			Debounce: 500 * time.Millisecond,
		},
	}
}

// Load returns the defaults overlaid with filename. An empty filename or a
// missing file yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := NewDefaultConfig()
	if filename == "" {
		return cfg, cfg.Validate()
	}
	if err := pkgconfig.LoadOptional(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// StoragePath resolves a relative storage path against the project root
func (c *Config) StoragePath() string {
	if c.Storage.Path == ":memory:" || filepath.IsAbs(c.Storage.Path) {
		return c.Storage.Path
	}
	return filepath.Join(c.Project.Root, c.Storage.Path)
}
