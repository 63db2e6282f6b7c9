package store

import (
	"context"
	"time"
)

// BookmarkEmbedding represents the vector embedding of a bookmark.
// There is at most one embedding per bookmark.
type BookmarkEmbedding struct {
	ID         int32
	BookmarkID int32
	Embedding  []float32
	Model      string // Model identifier, e.g., "text-embedding-3-small"
	Dimensions int
	CreatedTs  int64
	UpdatedTs  int64
}

// FindBookmarkEmbedding is the find condition for bookmark embeddings.
// CreatorID restricts results to embeddings whose bookmark belongs to that user.
type FindBookmarkEmbedding struct {
	BookmarkID *int32
	CreatorID  *int32
}

type FindBookmarksWithoutEmbedding struct {
	CreatorID *int32
	Limit     int // default 50
}

// UpsertBookmarkEmbedding inserts or overwrites the embedding of a bookmark in place.
func (s *Store) UpsertBookmarkEmbedding(ctx context.Context, embedding *BookmarkEmbedding) (*BookmarkEmbedding, error) {
	now := time.Now().Unix()
	if embedding.CreatedTs == 0 {
		embedding.CreatedTs = now
	}
	embedding.UpdatedTs = now
	if embedding.Dimensions == 0 {
		embedding.Dimensions = len(embedding.Embedding)
	}
	return s.driver.UpsertBookmarkEmbedding(ctx, embedding)
}

// GetBookmarkEmbedding gets the embedding of a specific bookmark.
func (s *Store) GetBookmarkEmbedding(ctx context.Context, bookmarkID int32) (*BookmarkEmbedding, error) {
	list, err := s.driver.ListBookmarkEmbeddings(ctx, &FindBookmarkEmbedding{
		BookmarkID: &bookmarkID,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// ListBookmarkEmbeddings lists bookmark embeddings.
func (s *Store) ListBookmarkEmbeddings(ctx context.Context, find *FindBookmarkEmbedding) ([]*BookmarkEmbedding, error) {
	return s.driver.ListBookmarkEmbeddings(ctx, find)
}

// DeleteBookmarkEmbedding deletes a bookmark embedding. Deleting a missing embedding is not an error.
func (s *Store) DeleteBookmarkEmbedding(ctx context.Context, bookmarkID int32) error {
	return s.driver.DeleteBookmarkEmbedding(ctx, bookmarkID)
}

// FindBookmarksWithoutEmbedding finds bookmarks that have no embedding row, oldest first.
func (s *Store) FindBookmarksWithoutEmbedding(ctx context.Context, find *FindBookmarksWithoutEmbedding) ([]*Bookmark, error) {
	if find.Limit <= 0 {
		find.Limit = 50
	}
	return s.driver.FindBookmarksWithoutEmbedding(ctx, find)
}
