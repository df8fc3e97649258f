package memory

import (
	"context"
	"fmt"

	"github.com/dgraph-io/ristretto"
)

// CachedEmbedder wraps another Embedder with an in-process cache keyed by
// the exact text. The same utterance is embedded at write time (Remember)
// and again moments later as the recall query for the same turn, so the
// cache halves embedding traffic for the common path.
//
// Embedders are required to be stable (same text → same vector), which is
// what makes caching safe.
type CachedEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// NewCachedEmbedder wraps inner with a cache of roughly maxEntries vectors.
func NewCachedEmbedder(inner Embedder, maxEntries int64) (*CachedEmbedder, error) {
	if maxEntries <= 0 {
		maxEntries = 4096
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("memory: create embedding cache: %w", err)
	}
	return &CachedEmbedder{inner: inner, cache: cache}, nil
}

// Embed returns the cached vector for text, or delegates to the wrapped
// embedder and caches the result. Nil vectors (noop inner) are not cached.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return vec, nil
		}
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if vec != nil {
		c.cache.Set(text, vec, 1)
		// The very next lookup is usually the recall query for the same
		// turn; flush the write buffer so it hits.
		c.cache.Wait()
	}
	return vec, nil
}

// Compile-time interface satisfaction check.
var _ Embedder = (*CachedEmbedder)(nil)
