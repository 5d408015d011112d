package embedding

import (
	"context"

	"github.com/dgraph-io/ristretto"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/tedbrain/pkg/domain/interfaces"
)

// Cache memoizes successful embeddings of the wrapped embedder by text.
// Failures are never cached.
type Cache struct {
	next  interfaces.Embedder
	cache *ristretto.Cache
}

var _ interfaces.Embedder = &Cache{}

// NewCache keeps up to maxEntries vectors
func NewCache(next interfaces.Embedder, maxEntries int64) (*Cache, error) {
	if maxEntries <= 0 {
		maxEntries = 1024
	}

	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create embedding cache", goerr.V("max_entries", maxEntries))
	}

	return &Cache{next: next, cache: cache}, nil
}

func (c *Cache) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		if vec, ok := v.([]float32); ok {
			return append([]float32(nil), vec...), nil
		}
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	c.cache.Set(text, append([]float32(nil), vec...), 1)
	return vec, nil
}

func (c *Cache) Dimension() int {
	return c.next.Dimension()
}

// Wait blocks until pending writes are visible to Get
func (c *Cache) Wait() {
	c.cache.Wait()
}

func (c *Cache) Close() {
	c.cache.Close()
}
