package ai

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingProvider struct {
	EmbeddingProvider
	calls atomic.Int32
	err   error
}

func (p *countingProvider) GenerateEmbeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	p.calls.Add(1)
	if p.err != nil {
		return nil, p.err
	}
	return p.EmbeddingProvider.GenerateEmbeddings(ctx, req)
}

func TestCachedProvider(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{EmbeddingProvider: NewMockProvider(16)}
	p := NewCachedProvider(inner, 10, 0)

	first, err := p.GenerateEmbeddings(ctx, &EmbeddingRequest{Text: "golang generics"})
	require.NoError(t, err)
	second, err := p.GenerateEmbeddings(ctx, &EmbeddingRequest{Text: "golang generics"})
	require.NoError(t, err)

	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, first.Embedding, second.Embedding)
	assert.Equal(t, int64(0), second.ProcessingTimeMs)

	_, err = p.GenerateEmbeddings(ctx, &EmbeddingRequest{Text: "other"})
	require.NoError(t, err)
	assert.Equal(t, int32(2), inner.calls.Load())

	hits, misses := p.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(2), misses)
	assert.True(t, p.HealthCheck(ctx))
}

func TestCachedProvider_ErrorsAreNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingProvider{EmbeddingProvider: NewMockProvider(16), err: errors.New("down")}
	p := NewCachedProvider(inner, 10, 0)

	_, err := p.GenerateEmbeddings(ctx, &EmbeddingRequest{Text: "q"})
	require.Error(t, err)

	inner.err = nil
	resp, err := p.GenerateEmbeddings(ctx, &EmbeddingRequest{Text: "q"})
	require.NoError(t, err)
	assert.Len(t, resp.Embedding, 16)
	assert.Equal(t, int32(2), inner.calls.Load())
}
