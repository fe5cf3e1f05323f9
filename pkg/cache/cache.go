// Package cache provides a bounded LRU cache for remotely fetched lookup
// tables, with msgpack persistence for offline snapshots.
package cache

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vmihailenco/msgpack/v5"
)

// Entry is one persisted key/value pair.
type Entry[V any] struct {
	Key   string `msgpack:"key"`
	Value V      `msgpack:"value"`
}

// Options configures the LRU cache.
type Options[V any] struct {
	// MaxSize is the maximum number of entries. 0 means unlimited.
	MaxSize int

	// OnEvict is called when an entry is evicted.
	OnEvict func(key string, value V)
}

// LRU is an in-memory LRU cache with optional disk persistence.
type LRU[V any] struct {
	entries      *lru.Cache[string, V]
	hits, misses atomic.Int64
}

// New creates a new LRU cache with the given options.
func New[V any](opts Options[V]) *LRU[V] {
	size := opts.MaxSize
	if size <= 0 {
		size = math.MaxInt
	}
	// Only a non-positive size makes NewWithEvict fail.
	entries, _ := lru.NewWithEvict[string, V](size, opts.OnEvict)
	return &LRU[V]{entries: entries}
}

// Get retrieves a value from the cache.
func (c *LRU[V]) Get(key string) (V, bool) {
	v, ok := c.entries.Get(key)
	if ok {
		c.hits.Add(1)
	} else {
		c.misses.Add(1)
	}
	return v, ok
}

// Set stores a value in the cache.
func (c *LRU[V]) Set(key string, value V) {
	c.entries.Add(key, value)
}

// Delete removes a key from the cache.
func (c *LRU[V]) Delete(key string) {
	c.entries.Remove(key)
}

// Len returns the number of entries in the cache.
func (c *LRU[V]) Len() int {
	return c.entries.Len()
}

// Stats returns the hit and miss counters.
func (c *LRU[V]) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Save writes the entries, least recently used first, to w using msgpack.
func (c *LRU[V]) Save(w io.Writer) error {
	keys := c.entries.Keys()
	out := make([]Entry[V], 0, len(keys))
	for _, k := range keys {
		if v, ok := c.entries.Peek(k); ok {
			out = append(out, Entry[V]{Key: k, Value: v})
		}
	}
	return msgpack.NewEncoder(w).Encode(out)
}

// Load replaces the cache contents with entries read from r, keeping their
// recency order.
func (c *LRU[V]) Load(r io.Reader) error {
	var in []Entry[V]
	if err := msgpack.NewDecoder(r).Decode(&in); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}
	c.entries.Purge()
	for _, e := range in {
		c.entries.Add(e.Key, e.Value)
	}
	return nil
}

// PersistToFile saves the cache to path, creating parent directories.
func PersistToFile[V any](c *LRU[V], path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := c.Save(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadFromFile loads the cache from path. A missing file is not an error.
func LoadFromFile[V any](c *LRU[V], path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()
	return c.Load(f)
}
