// Package memory is an in-process embedding cache with expiry.
package memory

import (
	"context"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

type Cache struct {
	store *gocache.Cache
}

func New(ttl, cleanupInterval time.Duration) *Cache {
	return &Cache{store: gocache.New(ttl, cleanupInterval)}
}

func (c *Cache) GetEmbedding(_ context.Context, key string) ([]float32, bool, error) {
	v, ok := c.store.Get("embedding:" + key)
	if !ok {
		return nil, false, nil
	}
	vector, ok := v.([]float32)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(vector), true, nil
}

func (c *Cache) SetEmbedding(_ context.Context, key string, vector []float32) error {
	c.store.SetDefault("embedding:"+key, slices.Clone(vector))
	return nil
}

func (c *Cache) Name() string {
	return "memory"
}

func (c *Cache) Len() int {
	return c.store.ItemCount()
}
