// Package cache memoizes LaplacianBuilder results across pipeline calls.
// The cache key is a content hash of the refinement mask plus the
// dimensions and assembly parameters, adapted from
// internal/opencv/memory.Manager's bounded-resource tracking style but
// keyed on mask *contents* rather than mask shape: keying on shape alone
// would let a cached Laplacian built for one unknown region be reused for
// an image whose unknown region differs, silently producing a wrong
// solve. Hashing uses github.com/cespare/xxhash/v2, the same
// content-hashing library the corpus uses for content-addressed keys.
package cache

import (
	"sync"

	"github.com/cespare/xxhash/v2"

	"matting-core/internal/logger"
	"matting-core/internal/matting/sparse"
)

// maxEntries bounds the cache to a small, fixed working set; eviction is
// insertion order (oldest first), not LRU, matching the bound named in
// the pipeline's resource model.
const maxEntries = 5

// Key identifies one cached Laplacian build.
type Key struct {
	H, W   int
	Eps    float64
	WinRad int
	Digest uint64 // content hash of the refinement mask; 0 when mask is nil
}

// NewKey computes the cache key for an assembly over an h x w image with
// the given mask (nil when unmasked), eps, and window radius.
func NewKey(h, w int, mask []bool, eps float64, winRad int) Key {
	return Key{H: h, W: w, Eps: eps, WinRad: winRad, Digest: hashMask(mask)}
}

func hashMask(mask []bool) uint64 {
	if mask == nil {
		return 0
	}
	buf := make([]byte, len(mask))
	for i, v := range mask {
		if v {
			buf[i] = 1
		}
	}
	return xxhash.Sum64(buf)
}

// Cache is a bounded, concurrency-safe store of assembled Laplacians.
// At most one writer installs a given key; readers observe either no
// entry or a fully constructed matrix, never a partially built one.
type Cache struct {
	mu      sync.Mutex
	entries map[Key]*sparse.CSR
	order   []Key
	log     logger.Logger
}

// New returns an empty cache. A nil logger is replaced with a no-op one.
func New(log logger.Logger) *Cache {
	if log == nil {
		log = logger.Nop{}
	}
	return &Cache{entries: make(map[Key]*sparse.CSR), log: log}
}

// Get returns the cached matrix for key, if present.
func (c *Cache) Get(key Key) (*sparse.CSR, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[key]
	return m, ok
}

// Install stores m under key unless another writer already installed it,
// evicting the oldest entry first if the cache is full.
func (c *Cache) Install(key Key, m *sparse.CSR) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.order) >= maxEntries {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.entries, oldest)
		c.log.Debug("matting.cache", "evicted oldest Laplacian cache entry", map[string]interface{}{
			"h": oldest.H, "w": oldest.W,
		})
	}
	c.entries[key] = m
	c.order = append(c.order, key)
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.order)
}
