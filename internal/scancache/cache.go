// Package scancache holds whole-project scan results in memory for a fixed
// time window. Freshness is additionally checked on every lookup by
// re-stating a small random sample of the files recorded at write time.
package scancache

import (
	"math/rand/v2"
	"os"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	// DefaultTTL is how long a scan result is trusted without validator data
	DefaultTTL = 5 * time.Minute

	// DefaultSampleSize bounds the number of files re-stated per lookup
	DefaultSampleSize = 10

	defaultMaxEntries = 64
)

// Validator maps file paths to the modification times observed when the
// cached value was produced
type Validator map[string]time.Time

type entry[V any] struct {
	value     V
	validator Validator
}

// Cache is a TTL cache of scan results keyed by project root.
// Safe for concurrent use within one process.
type Cache[V any] struct {
	mu         sync.Mutex
	lru        *expirable.LRU[string, entry[V]]
	sampleSize int
	stat       func(path string) (time.Time, error)
	rand       func(n int) int
}

// Option configures a Cache
type Option func(*options)

type options struct {
	ttl        time.Duration
	sampleSize int
	maxEntries int
	stat       func(path string) (time.Time, error)
}

// WithTTL overrides the expiry window
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithSampleSize overrides how many recorded mtimes are checked per lookup
func WithSampleSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.sampleSize = n
		}
	}
}

// WithStat replaces the filesystem stat used for mtime checks
func WithStat(stat func(path string) (time.Time, error)) Option {
	return func(o *options) {
		if stat != nil {
			o.stat = stat
		}
	}
}

// New creates an empty cache
func New[V any](opts ...Option) *Cache[V] {
	o := options{
		ttl:        DefaultTTL,
		sampleSize: DefaultSampleSize,
		maxEntries: defaultMaxEntries,
		stat:       statModTime,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Cache[V]{
		lru:        expirable.NewLRU[string, entry[V]](o.maxEntries, nil, o.ttl),
		sampleSize: o.sampleSize,
		stat:       o.stat,
		rand:       rand.IntN,
	}
}

// Get returns the cached value when present, unexpired and consistent with
// a sample of the filesystem. A failed sample drops the entry.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.lru.Get(key)
	if !ok {
		return zero, false
	}
	if !c.fresh(e.validator) {
		c.lru.Remove(key)
		return zero, false
	}
	return e.value, true
}

// Has reports whether Get would return a value
func (c *Cache[V]) Has(key string) bool {
	_, ok := c.Get(key)
	return ok
}

// Set stores value under key. A nil validator means the entry is trusted
// until it expires.
func (c *Cache[V]) Set(key string, value V, validator Validator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, entry[V]{value: value, validator: validator})
}

// Invalidate drops one entry
func (c *Cache[V]) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Remove(key)
}

// InvalidateAll drops every entry
func (c *Cache[V]) InvalidateAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Purge()
}

// Len returns the number of unexpired entries
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// fresh stats a random sample of the validator's files. Any mismatch or
// stat failure marks the entry stale; no partial repair is attempted.
func (c *Cache[V]) fresh(validator Validator) bool {
	if len(validator) == 0 {
		return true
	}
	for _, path := range c.sample(validator) {
		mtime, err := c.stat(path)
		if err != nil || !mtime.Equal(validator[path]) {
			return false
		}
	}
	return true
}

// sample picks up to sampleSize distinct paths using reservoir sampling
func (c *Cache[V]) sample(validator Validator) []string {
	picked := make([]string, 0, min(len(validator), c.sampleSize))
	seen := 0
	for path := range validator {
		if len(picked) < c.sampleSize {
			picked = append(picked, path)
		} else if j := c.rand(seen + 1); j < c.sampleSize {
			picked[j] = path
		}
		seen++
	}
	return picked
}

func statModTime(path string) (time.Time, error) {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}
