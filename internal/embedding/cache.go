package embedding

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hyperjump/autocat/internal/metrics"
)

// EmbeddingCache is an LRU cache for text embeddings keyed by text.
type EmbeddingCache struct {
	cache *lru.Cache[string, []float32]
}

// NewEmbeddingCache creates a cache holding up to capacity entries. A non-positive capacity
// falls back to 1.
func NewEmbeddingCache(capacity int) *EmbeddingCache {
	if capacity < 1 {
		capacity = 1
	}
	c, _ := lru.New[string, []float32](capacity)
	return &EmbeddingCache{cache: c}
}

// Get returns the cached embedding for key if present.
func (c *EmbeddingCache) Get(key string) ([]float32, bool) {
	v, ok := c.cache.Get(key)
	if ok {
		metrics.EncoderCacheHits.Inc()
	} else {
		metrics.EncoderCacheMisses.Inc()
	}
	return v, ok
}

// Set stores the embedding for key, evicting the least recently used entry at capacity.
func (c *EmbeddingCache) Set(key string, value []float32) {
	c.cache.Add(key, value)
}

// Len returns the number of cached entries.
func (c *EmbeddingCache) Len() int {
	return c.cache.Len()
}
