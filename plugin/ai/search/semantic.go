package search

import (
	"context"
	"errors"
	"fmt"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai"
	"github.com/ITHealer/book-m-ai/plugin/ai/similarity"
	"github.com/ITHealer/book-m-ai/store"
)

// SemanticSearcher ranks bookmarks by cosine similarity between the query embedding
// and the stored bookmark embeddings.
type SemanticSearcher struct {
	store    *store.Store
	provider ai.EmbeddingProvider
}

// NewSemanticSearcher creates a new SemanticSearcher.
func NewSemanticSearcher(st *store.Store, provider ai.EmbeddingProvider) *SemanticSearcher {
	return &SemanticSearcher{store: st, provider: provider}
}

// Search embeds query and returns up to limit bookmarks of userID whose similarity is
// at least threshold. A provider failure is reported as EMBEDDING_UNAVAILABLE and a
// stored vector with a different dimension as DIMENSION_MISMATCH.
func (s *SemanticSearcher) Search(ctx context.Context, query string, userID int32, limit int, threshold float64) ([]*Result, error) {
	if query == "" {
		return nil, aierrors.InvalidArgument("query is required")
	}

	resp, err := s.provider.GenerateEmbeddings(ctx, &ai.EmbeddingRequest{Text: query})
	if err != nil {
		return nil, aierrors.EmbeddingUnavailable(err)
	}

	embeddings, err := s.store.ListBookmarkEmbeddings(ctx, &store.FindBookmarkEmbedding{CreatorID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmark embeddings: %w", err)
	}

	scored := make([]*Result, 0, len(embeddings))
	for _, embedding := range embeddings {
		score, err := similarity.CosineSimilarity(resp.Embedding, embedding.Embedding)
		if err != nil {
			var aiErr *aierrors.AIError
			if errors.As(err, &aiErr) {
				aiErr.WithContext("bookmark_id", embedding.BookmarkID)
			}
			return nil, err
		}
		if score < threshold {
			continue
		}
		scored = append(scored, &Result{
			Bookmark:   &store.Bookmark{ID: embedding.BookmarkID},
			Similarity: score,
			Score:      score,
		})
	}

	scored = rank(scored, normalizeLimit(limit))
	return s.attachBookmarks(ctx, scored)
}

// attachBookmarks replaces the placeholder bookmarks with stored rows, keeping order.
func (s *SemanticSearcher) attachBookmarks(ctx context.Context, results []*Result) ([]*Result, error) {
	if len(results) == 0 {
		return results, nil
	}

	ids := make([]int32, len(results))
	for i, r := range results {
		ids[i] = r.Bookmark.ID
	}
	bookmarks, err := s.store.ListBookmarks(ctx, &store.FindBookmark{IDList: ids})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	byID := make(map[int32]*store.Bookmark, len(bookmarks))
	for _, b := range bookmarks {
		byID[b.ID] = b
	}

	attached := results[:0]
	for _, r := range results {
		// The bookmark may have been deleted since the embeddings were read.
		if b, ok := byID[r.Bookmark.ID]; ok {
			r.Bookmark = b
			attached = append(attached, r)
		}
	}
	return attached, nil
}
