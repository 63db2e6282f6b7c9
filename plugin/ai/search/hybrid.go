package search

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
)

// Hybrid search defaults.
const (
	DefaultHybridThreshold = 0.3
	DefaultFuzzyWeight     = 0.3
	DefaultSemanticWeight  = 0.7

	weightTolerance = 0.01
)

// HybridRequest is the input of a hybrid search.
type HybridRequest struct {
	Query          string
	UserID         int32
	Limit          int
	Threshold      float64
	FuzzyWeight    float64
	SemanticWeight float64
}

type semanticSource interface {
	Search(ctx context.Context, query string, userID int32, limit int, threshold float64) ([]*Result, error)
}

type fuzzySource interface {
	Search(ctx context.Context, query string, userID int32, limit int) ([]*Result, error)
}

// HybridSearcher fuses semantic and fuzzy rankings with a weighted sum.
type HybridSearcher struct {
	semantic semanticSource
	fuzzy    fuzzySource
}

// NewHybridSearcher creates a new HybridSearcher.
func NewHybridSearcher(semantic *SemanticSearcher, fuzzy *FuzzySearcher) *HybridSearcher {
	return &HybridSearcher{semantic: semantic, fuzzy: fuzzy}
}

// ValidateWeights fails with INVALID_WEIGHTS unless the weights sum to 1 within 0.01.
func ValidateWeights(fuzzyWeight, semanticWeight float64) error {
	if math.Abs(fuzzyWeight+semanticWeight-1.0) > weightTolerance {
		return aierrors.InvalidWeights(fuzzyWeight, semanticWeight)
	}
	return nil
}

// Search over-fetches both rankings without a threshold, adds the weighted scores of
// bookmarks found by both, then filters by threshold and truncates to the limit.
func (s *HybridSearcher) Search(ctx context.Context, req *HybridRequest) ([]*Result, error) {
	if err := ValidateWeights(req.FuzzyWeight, req.SemanticWeight); err != nil {
		return nil, err
	}
	if req.Query == "" {
		return nil, aierrors.InvalidArgument("query is required")
	}

	limit := normalizeLimit(req.Limit)
	var semanticResults, fuzzyResults []*Result

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		semanticResults, err = s.semantic.Search(gctx, req.Query, req.UserID, limit*2, 0)
		return err
	})
	g.Go(func() error {
		var err error
		fuzzyResults, err = s.fuzzy.Search(gctx, req.Query, req.UserID, limit*2)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return fuse(semanticResults, fuzzyResults, req), nil
}

func fuse(semanticResults, fuzzyResults []*Result, req *HybridRequest) []*Result {
	combined := make([]*Result, 0, len(semanticResults)+len(fuzzyResults))
	byID := make(map[int32]*Result, len(semanticResults))

	for _, r := range semanticResults {
		entry := &Result{
			Bookmark:   r.Bookmark,
			Similarity: r.Similarity,
			Score:      r.Similarity * req.SemanticWeight,
		}
		byID[r.Bookmark.ID] = entry
		combined = append(combined, entry)
	}

	for _, r := range fuzzyResults {
		if existing, ok := byID[r.Bookmark.ID]; ok {
			existing.Score += r.Score * req.FuzzyWeight
			continue
		}
		entry := &Result{
			Bookmark: r.Bookmark,
			Score:    r.Score * req.FuzzyWeight,
		}
		byID[r.Bookmark.ID] = entry
		combined = append(combined, entry)
	}

	filtered := combined[:0]
	for _, r := range combined {
		if r.Score >= req.Threshold {
			filtered = append(filtered, r)
		}
	}
	return rank(filtered, normalizeLimit(req.Limit))
}
