package scancache

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_SetGet(t *testing.T) {
	c := New[string]()

	_, ok := c.Get("root")
	assert.False(t, ok)

	c.Set("root", "scan", nil)
	v, ok := c.Get("root")
	require.True(t, ok)
	assert.Equal(t, "scan", v)
	assert.True(t, c.Has("root"))
}

func TestCache_Invalidate(t *testing.T) {
	c := New[int]()
	c.Set("a", 1, nil)
	c.Set("b", 2, nil)

	c.Invalidate("a")
	assert.False(t, c.Has("a"))
	assert.True(t, c.Has("b"))

	c.InvalidateAll()
	assert.False(t, c.Has("b"))
	assert.Equal(t, 0, c.Len())
}

func TestCache_Expires(t *testing.T) {
	c := New[int](WithTTL(20 * time.Millisecond))
	c.Set("root", 1, nil)
	assert.True(t, c.Has("root"))

	time.Sleep(60 * time.Millisecond)
	assert.False(t, c.Has("root"))
}

func TestCache_ValidatorMatchesFilesystem(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0644))
	info, err := os.Stat(path)
	require.NoError(t, err)

	c := New[string]()
	c.Set(dir, "scan", Validator{path: info.ModTime()})
	assert.True(t, c.Has(dir))

	// Touch the file forward in time; the sampled check must notice
	later := info.ModTime().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))
	assert.False(t, c.Has(dir))

	// The whole entry is gone, not repaired
	_, ok := c.Get(dir)
	assert.False(t, ok)
}

func TestCache_DeletedFileInvalidates(t *testing.T) {
	now := time.Now()
	stat := func(path string) (time.Time, error) {
		if path == "gone.go" {
			return time.Time{}, os.ErrNotExist
		}
		return now, nil
	}

	c := New[string](WithStat(stat))
	c.Set("root", "scan", Validator{"kept.go": now, "gone.go": now})
	assert.False(t, c.Has("root"))
}

func TestCache_SamplesAtMostSampleSize(t *testing.T) {
	now := time.Now()
	calls := 0
	stat := func(string) (time.Time, error) {
		calls++
		return now, nil
	}

	validator := Validator{}
	for i := 0; i < 500; i++ {
		validator[fmt.Sprintf("src/file%d.go", i)] = now
	}

	c := New[string](WithStat(stat))
	c.Set("root", "scan", validator)
	require.True(t, c.Has("root"))
	assert.Equal(t, DefaultSampleSize, calls)
}

func TestCache_SampleIsDistinct(t *testing.T) {
	c := New[string](WithSampleSize(3))
	validator := Validator{"a": {}, "b": {}, "c": {}, "d": {}, "e": {}}

	for i := 0; i < 20; i++ {
		picked := c.sample(validator)
		require.Len(t, picked, 3)
		seen := map[string]bool{}
		for _, p := range picked {
			assert.False(t, seen[p], "duplicate sample %q", p)
			seen[p] = true
		}
	}
}

func TestCache_StatErrorIsStale(t *testing.T) {
	c := New[int](WithStat(func(string) (time.Time, error) {
		return time.Time{}, errors.New("permission denied")
	}))
	c.Set("root", 1, Validator{"x.go": time.Now()})
	assert.False(t, c.Has("root"))
}
