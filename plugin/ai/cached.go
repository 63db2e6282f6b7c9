package ai

import (
	"context"
	"time"

	"github.com/ITHealer/book-m-ai/plugin/ai/cache"
)

// CachedProvider memoizes embeddings by input text. Search wraps its provider with it so
// repeated queries skip the provider round trip.
type CachedProvider struct {
	provider EmbeddingProvider
	cache    *cache.LRUCache[*EmbeddingResponse]
}

// NewCachedProvider wraps provider. Non-positive capacity or ttl use the cache defaults.
func NewCachedProvider(provider EmbeddingProvider, capacity int, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		provider: provider,
		cache:    cache.NewLRUCache[*EmbeddingResponse](capacity, ttl),
	}
}

func (p *CachedProvider) GenerateEmbeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if cached, ok := p.cache.Get(req.Text); ok {
		resp := *cached
		resp.ProcessingTimeMs = 0
		return &resp, nil
	}

	resp, err := p.provider.GenerateEmbeddings(ctx, req)
	if err != nil {
		return nil, err
	}
	p.cache.Set(req.Text, resp)
	return resp, nil
}

func (p *CachedProvider) HealthCheck(ctx context.Context) bool {
	return p.provider.HealthCheck(ctx)
}

// Stats returns cache hit and miss counts.
func (p *CachedProvider) Stats() (hits, misses int64) {
	return p.cache.Stats()
}
