package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/futig/admissions-assistant/internal/metrics"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"
)

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type Cache interface {
	GetEmbedding(ctx context.Context, key string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, key string, vector []float32) error
	Name() string
}

// CachedEmbedder memoizes embeddings by model and text. Cache failures only
// cost a call to the wrapped embedder.
type CachedEmbedder struct {
	next  Embedder
	cache Cache
	model string
}

func NewCachedEmbedder(next Embedder, cache Cache, model string) *CachedEmbedder {
	return &CachedEmbedder{next: next, cache: cache, model: model}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.key(text)

	vector, ok, err := c.cache.GetEmbedding(ctx, key)
	if err != nil {
		ctxzap.Warn(ctx, "embedding cache read failed", zap.String("cache", c.cache.Name()), zap.Error(err))
	}
	if ok && len(vector) == c.next.Dimensions() {
		metrics.CacheHits.WithLabelValues(c.cache.Name()).Inc()
		return vector, nil
	}
	metrics.CacheMisses.WithLabelValues(c.cache.Name()).Inc()

	vector, err = c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := c.cache.SetEmbedding(ctx, key, vector); err != nil {
		ctxzap.Warn(ctx, "embedding cache write failed", zap.String("cache", c.cache.Name()), zap.Error(err))
	}
	return vector, nil
}

func (c *CachedEmbedder) Dimensions() int {
	return c.next.Dimensions()
}

func (c *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(c.model + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
