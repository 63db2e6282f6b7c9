package search

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai"
	"github.com/ITHealer/book-m-ai/store"
	teststore "github.com/ITHealer/book-m-ai/store/test"
)

// stubProvider wraps the mock provider with failure injection and call accounting.
type stubProvider struct {
	mock        *ai.MockProvider
	err         error
	delay       time.Duration
	calls       atomic.Int32
	inflight    atomic.Int32
	maxInflight atomic.Int32
}

func newStubProvider(dims int) *stubProvider {
	return &stubProvider{mock: ai.NewMockProvider(dims)}
}

func (p *stubProvider) GenerateEmbeddings(ctx context.Context, req *ai.EmbeddingRequest) (*ai.EmbeddingResponse, error) {
	p.calls.Add(1)
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		cur := p.maxInflight.Load()
		if n <= cur || p.maxInflight.CompareAndSwap(cur, n) {
			break
		}
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.err != nil {
		return nil, p.err
	}
	return p.mock.GenerateEmbeddings(ctx, req)
}

func (p *stubProvider) HealthCheck(context.Context) bool {
	return p.err == nil
}

func createBookmark(ctx context.Context, t *testing.T, ts *store.Store, creatorID int32, title, description string, createdTs int64) *store.Bookmark {
	t.Helper()
	bookmark, err := ts.CreateBookmark(ctx, &store.Bookmark{
		CreatorID:   creatorID,
		URL:         "https://example.com/" + strings.ReplaceAll(title, " ", "-"),
		Title:       title,
		Description: description,
		CreatedTs:   createdTs,
	})
	require.NoError(t, err)
	return bookmark
}

func TestFuzzyScore(t *testing.T) {
	bookmark := &store.Bookmark{Title: "Go Concurrency Patterns", Description: "Learn channels and select"}

	tests := []struct {
		query    string
		expected float64
	}{
		{"concurrency", 1.0},             // 1.0 phrase + 0.3 token, capped
		{"channels", 0.6},                // 0.5 phrase + 0.1 token
		{"rust channels", 0.1},           // one description token
		{"patterns select", 0.4},         // 0.3 title token + 0.1 description token
		{"python", 0},                    // no match
		{"go concurrency patterns", 1.0}, // capped
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			tokens := strings.Fields(tt.query)
			assert.InDelta(t, tt.expected, FuzzyScore(tt.query, tokens, bookmark), 1e-9)
		})
	}
}

func TestFuzzySearcher_Search(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	strong := createBookmark(ctx, t, ts, 1, "Kubernetes Operators", "", 100)
	weak := createBookmark(ctx, t, ts, 1, "Cluster notes", "about kubernetes", 200)
	createBookmark(ctx, t, ts, 1, "Sourdough", "bread", 300)
	createBookmark(ctx, t, ts, 2, "Kubernetes for user two", "", 50)

	results, err := NewFuzzySearcher(ts).Search(ctx, "Kubernetes", 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, strong.ID, results[0].Bookmark.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-9)
	assert.Equal(t, weak.ID, results[1].Bookmark.ID)
	assert.InDelta(t, 0.6, results[1].Score, 1e-9)
	assert.Zero(t, results[0].Similarity)

	limited, err := NewFuzzySearcher(ts).Search(ctx, "kubernetes", 1, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, strong.ID, limited[0].Bookmark.ID)

	empty, err := NewFuzzySearcher(ts).Search(ctx, "   ", 1, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestFuzzySearcher_TiesKeepCreationOrder(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	first := createBookmark(ctx, t, ts, 1, "golang tips", "", 100)
	second := createBookmark(ctx, t, ts, 1, "golang tricks", "", 200)

	results, err := NewFuzzySearcher(ts).Search(ctx, "golang", 1, 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, first.ID, results[0].Bookmark.ID)
	assert.Equal(t, second.ID, results[1].Bookmark.ID)
}

func TestEmbeddingText(t *testing.T) {
	long := make([]rune, 1500)
	for i := range long {
		long[i] = 'é'
	}

	text := EmbeddingText(&store.Bookmark{
		Title:       "Title",
		Description: "",
		Author:      "Ada",
		ContentText: string(long),
	})
	assert.Equal(t, "Title Ada "+string(long[:1000]), text)
	assert.Empty(t, EmbeddingText(&store.Bookmark{}))
}

func TestEmbedder_GenerateEmbedding(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	bookmark := createBookmark(ctx, t, ts, 1, "Vector databases", "pgvector and friends", 0)

	embedder := NewEmbedder(ts, newStubProvider(32))
	result := embedder.GenerateEmbedding(ctx, bookmark.ID)
	assert.Equal(t, EmbedStatusSucceeded, result.Status)
	assert.Equal(t, ai.MockModel, result.Model)
	assert.Equal(t, 32, result.Dimensions)

	stored, err := ts.GetBookmarkEmbedding(ctx, bookmark.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Len(t, stored.Embedding, 32)

	// Regeneration overwrites in place.
	result = embedder.GenerateEmbedding(ctx, bookmark.ID)
	assert.Equal(t, EmbedStatusSucceeded, result.Status)
	all, err := ts.ListBookmarkEmbeddings(ctx, &store.FindBookmarkEmbedding{BookmarkID: &bookmark.ID})
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, embedder.DeleteEmbedding(ctx, bookmark.ID))
	stored, err = ts.GetBookmarkEmbedding(ctx, bookmark.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestEmbedder_ProviderFailureLeavesNoRow(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	bookmark := createBookmark(ctx, t, ts, 1, "Unlucky", "provider is down", 0)

	provider := newStubProvider(8)
	provider.err = aierrors.Timeout("request timeout")

	result := NewEmbedder(ts, provider).GenerateEmbedding(ctx, bookmark.ID)
	assert.Equal(t, EmbedStatusSkipped, result.Status)
	assert.NotEmpty(t, result.Reason)

	stored, err := ts.GetBookmarkEmbedding(ctx, bookmark.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestEmbedder_ProviderFailureKeepsExistingRow(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	bookmark := createBookmark(ctx, t, ts, 1, "Stable", "embedding", 0)

	_, err := ts.UpsertBookmarkEmbedding(ctx, &store.BookmarkEmbedding{
		BookmarkID: bookmark.ID,
		Embedding:  []float32{1, 2, 3},
		Model:      "old-model",
	})
	require.NoError(t, err)

	provider := newStubProvider(8)
	provider.err = errors.New("connection refused")
	result := NewEmbedder(ts, provider).GenerateEmbedding(ctx, bookmark.ID)
	assert.Equal(t, EmbedStatusSkipped, result.Status)

	stored, err := ts.GetBookmarkEmbedding(ctx, bookmark.ID)
	require.NoError(t, err)
	assert.Equal(t, "old-model", stored.Model)
	assert.Equal(t, []float32{1, 2, 3}, stored.Embedding)
}

func TestEmbedder_GenerateEmbeddings(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	var ids []int32
	for i := 0; i < 11; i++ {
		b := createBookmark(ctx, t, ts, 1, "bookmark"+string(rune('a'+i)), "batch item", int64(i))
		ids = append(ids, b.ID)
	}
	ids = append(ids, 999999)

	provider := newStubProvider(8)
	provider.delay = 20 * time.Millisecond
	results := NewEmbedder(ts, provider).GenerateEmbeddings(ctx, ids)

	require.Len(t, results, len(ids))
	for i, r := range results[:11] {
		assert.Equal(t, ids[i], r.BookmarkID)
		assert.Equal(t, EmbedStatusSucceeded, r.Status)
	}
	assert.Equal(t, EmbedStatusFailed, results[11].Status)
	assert.Equal(t, int32(11), provider.calls.Load())
	assert.LessOrEqual(t, provider.maxInflight.Load(), int32(EmbedChunkSize))
}

func TestSemanticSearcher_Search(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	provider := newStubProvider(128)
	embedder := NewEmbedder(ts, provider)

	match := createBookmark(ctx, t, ts, 1, "distributed tracing", "opentelemetry spans", 100)
	other := createBookmark(ctx, t, ts, 1, "baking bread", "sourdough starter", 200)
	foreign := createBookmark(ctx, t, ts, 2, "distributed tracing", "opentelemetry spans", 50)
	for _, id := range []int32{match.ID, other.ID, foreign.ID} {
		require.Equal(t, EmbedStatusSucceeded, embedder.GenerateEmbedding(ctx, id).Status)
	}

	searcher := NewSemanticSearcher(ts, provider)
	results, err := searcher.Search(ctx, "distributed tracing opentelemetry spans", 1, 10, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, match.ID, results[0].Bookmark.ID)
	assert.Equal(t, "distributed tracing", results[0].Bookmark.Title)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-5)
	assert.Equal(t, results[0].Similarity, results[0].Score)

	all, err := searcher.Search(ctx, "distributed tracing opentelemetry spans", 1, 10, -1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, match.ID, all[0].Bookmark.ID)

	none, err := searcher.Search(ctx, "distributed tracing opentelemetry spans", 1, 10, 1.5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSemanticSearcher_ProviderFailure(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	provider := newStubProvider(8)
	provider.err = aierrors.RequestFailed(502, "bad gateway", nil)

	_, err := NewSemanticSearcher(ts, provider).Search(ctx, "anything", 1, 10, 0)
	require.Error(t, err)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeEmbeddingUnavailable))
}

func TestSemanticSearcher_DimensionMismatch(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	bookmark := createBookmark(ctx, t, ts, 1, "legacy", "embedded with another model", 0)

	_, err := ts.UpsertBookmarkEmbedding(ctx, &store.BookmarkEmbedding{
		BookmarkID: bookmark.ID,
		Embedding:  []float32{1, 0, 0},
		Model:      "legacy-model",
	})
	require.NoError(t, err)

	_, err = NewSemanticSearcher(ts, newStubProvider(16)).Search(ctx, "legacy", 1, 10, 0)
	require.Error(t, err)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeDimensionMismatch))
}

type fakeSemantic struct {
	results []*Result
	err     error
	limit   int
	thresh  float64
}

func (f *fakeSemantic) Search(_ context.Context, _ string, _ int32, limit int, threshold float64) ([]*Result, error) {
	f.limit, f.thresh = limit, threshold
	return f.results, f.err
}

type fakeFuzzy struct {
	results []*Result
	limit   int
}

func (f *fakeFuzzy) Search(_ context.Context, _ string, _ int32, limit int) ([]*Result, error) {
	f.limit = limit
	return f.results, nil
}

func TestHybridSearcher_Fusion(t *testing.T) {
	both := &store.Bookmark{ID: 1}
	semanticOnly := &store.Bookmark{ID: 2}
	fuzzyOnly := &store.Bookmark{ID: 3}

	semantic := &fakeSemantic{results: []*Result{
		{Bookmark: both, Similarity: 0.8, Score: 0.8},
		{Bookmark: semanticOnly, Similarity: 0.5, Score: 0.5},
	}}
	fuzzy := &fakeFuzzy{results: []*Result{
		{Bookmark: fuzzyOnly, Score: 0.6},
		{Bookmark: both, Score: 1.0},
	}}
	searcher := &HybridSearcher{semantic: semantic, fuzzy: fuzzy}

	results, err := searcher.Search(context.Background(), &HybridRequest{
		Query:          "q",
		UserID:         1,
		Limit:          5,
		Threshold:      0.3,
		FuzzyWeight:    0.3,
		SemanticWeight: 0.7,
	})
	require.NoError(t, err)

	assert.Equal(t, 10, semantic.limit)
	assert.Zero(t, semantic.thresh)
	assert.Equal(t, 10, fuzzy.limit)

	// fuzzyOnly scores 0.18 and falls below the threshold.
	require.Len(t, results, 2)
	assert.Equal(t, int32(1), results[0].Bookmark.ID)
	assert.InDelta(t, 0.86, results[0].Score, 1e-9)
	assert.InDelta(t, 0.8, results[0].Similarity, 1e-9)
	assert.Equal(t, int32(2), results[1].Bookmark.ID)
	assert.InDelta(t, 0.35, results[1].Score, 1e-9)
}

func TestHybridSearcher_FuzzyOnlyEntry(t *testing.T) {
	searcher := &HybridSearcher{
		semantic: &fakeSemantic{},
		fuzzy:    &fakeFuzzy{results: []*Result{{Bookmark: &store.Bookmark{ID: 7}, Score: 1.0}}},
	}

	results, err := searcher.Search(context.Background(), &HybridRequest{
		Query: "q", UserID: 1, Limit: 10, FuzzyWeight: 0.5, SemanticWeight: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Zero(t, results[0].Similarity)
	assert.InDelta(t, 0.5, results[0].Score, 1e-9)
}

func TestHybridSearcher_InvalidWeights(t *testing.T) {
	semantic := &fakeSemantic{}
	searcher := &HybridSearcher{semantic: semantic, fuzzy: &fakeFuzzy{}}

	_, err := searcher.Search(context.Background(), &HybridRequest{
		Query: "q", UserID: 1, FuzzyWeight: 0.4, SemanticWeight: 0.5,
	})
	require.Error(t, err)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeInvalidWeights))
	assert.Zero(t, semantic.limit, "no search should run")

	assert.NoError(t, ValidateWeights(0.305, 0.7))
	assert.Error(t, ValidateWeights(0.32, 0.7))
}

func TestHybridSearcher_SemanticErrorPropagates(t *testing.T) {
	searcher := &HybridSearcher{
		semantic: &fakeSemantic{err: aierrors.EmbeddingUnavailable(errors.New("down"))},
		fuzzy:    &fakeFuzzy{},
	}
	_, err := searcher.Search(context.Background(), &HybridRequest{
		Query: "q", UserID: 1, FuzzyWeight: 0.3, SemanticWeight: 0.7,
	})
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeEmbeddingUnavailable))
}
