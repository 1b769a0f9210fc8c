package embedding

import (
	"context"
	"time"

	"github.com/akolanti/GoDocRAG/internal/config"
	"github.com/akolanti/GoDocRAG/internal/metrics"
	"github.com/akolanti/GoDocRAG/pkg/logger_i"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RemoteCache is the shared embedding tier, ragCache.Store in production.
type RemoteCache interface {
	GetEmbedding(ctx context.Context, query string) ([]float32, bool)
	SetEmbedding(ctx context.Context, query string, vector []float32) error
}

// CachedEmbedder checks an in-process LRU, then the shared cache, then the provider. Provider
// results are written back to both tiers.
type CachedEmbedder struct {
	inner  Embedder
	local  *expirable.LRU[string, []float32]
	remote RemoteCache
	logger *logger_i.Logger
}

func NewCachedEmbedder(inner Embedder, remote RemoteCache, size int, ttl time.Duration) *CachedEmbedder {
	if size <= 0 {
		size = config.EmbeddingLRUSize
	}
	return &CachedEmbedder{
		inner:  inner,
		local:  expirable.NewLRU[string, []float32](size, nil, ttl),
		remote: remote,
		logger: logger_i.NewLogger("Embedding Cache"),
	}
}

// Embed returns the query vector and whether it came from a cache.
func (c *CachedEmbedder) Embed(ctx context.Context, query string) ([]float32, bool, error) {
	if v, ok := c.local.Get(query); ok {
		metrics.RecordCacheLookup(metrics.CacheEmbeddingLRU, true)
		return v, true, nil
	}
	metrics.RecordCacheLookup(metrics.CacheEmbeddingLRU, false)

	if c.remote != nil {
		if v, ok := c.remote.GetEmbedding(ctx, query); ok {
			c.local.Add(query, v)
			return v, true, nil
		}
	}

	v, err := c.inner.GetEmbedding(ctx, query)
	if err != nil {
		return nil, false, err
	}
	c.local.Add(query, v)
	if c.remote != nil {
		go func() {
			wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.CacheWriteTimeout)
			defer cancel()
			if err := c.remote.SetEmbedding(wctx, query, v); err != nil {
				c.logger.Warn("Failed to cache embedding", "error", err)
			}
		}()
	}
	return v, false, nil
}

func (c *CachedEmbedder) GetEmbedding(ctx context.Context, query string) ([]float32, error) {
	v, _, err := c.Embed(ctx, query)
	return v, err
}

// BatchEmbedding is for document chunks, which are never cached.
func (c *CachedEmbedder) BatchEmbedding(ctx context.Context, chunks []string) ([][]float32, error) {
	return c.inner.BatchEmbedding(ctx, chunks)
}

func (c *CachedEmbedder) ModelName() string {
	return c.inner.ModelName()
}
