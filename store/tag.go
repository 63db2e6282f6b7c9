package store

import "context"

type Tag struct {
	ID        int32
	CreatorID int32
	Name      string
	CreatedTs int64
}

// BookmarkTag associates a tag with a bookmark. The pair is unique.
type BookmarkTag struct {
	BookmarkID int32
	TagID      int32
}

type FindBookmarkTag struct {
	BookmarkIDList []int32
}

func (s *Store) CreateTag(ctx context.Context, create *Tag) (*Tag, error) {
	return s.driver.CreateTag(ctx, create)
}

func (s *Store) ListBookmarkTags(ctx context.Context, find *FindBookmarkTag) ([]*BookmarkTag, error) {
	if len(find.BookmarkIDList) == 0 {
		return []*BookmarkTag{}, nil
	}
	return s.driver.ListBookmarkTags(ctx, find)
}

// UpsertBookmarkTag attaches a tag to a bookmark; attaching an existing pair is a no-op.
func (s *Store) UpsertBookmarkTag(ctx context.Context, upsert *BookmarkTag) error {
	return s.driver.UpsertBookmarkTag(ctx, upsert)
}
