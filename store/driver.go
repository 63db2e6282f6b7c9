package store

import (
	"context"
	"database/sql"
)

// Driver is an interface for store driver.
// It contains all methods that store database driver should implement.
type Driver interface {
	GetDB() *sql.DB
	Close() error

	IsInitialized(ctx context.Context) (bool, error)

	// Bookmark model related methods.
	CreateBookmark(ctx context.Context, create *Bookmark) (*Bookmark, error)
	ListBookmarks(ctx context.Context, find *FindBookmark) ([]*Bookmark, error)
	UpdateBookmark(ctx context.Context, update *UpdateBookmark) error
	DeleteBookmarks(ctx context.Context, delete *DeleteBookmark) (int64, error)
	ListBookmarkKeyCounts(ctx context.Context, find *FindBookmarkKeyCount) ([]*BookmarkKeyCount, error)

	// Tag model related methods.
	CreateTag(ctx context.Context, create *Tag) (*Tag, error)
	ListBookmarkTags(ctx context.Context, find *FindBookmarkTag) ([]*BookmarkTag, error)
	UpsertBookmarkTag(ctx context.Context, upsert *BookmarkTag) error

	// BookmarkEmbedding model related methods.
	UpsertBookmarkEmbedding(ctx context.Context, embedding *BookmarkEmbedding) (*BookmarkEmbedding, error)
	ListBookmarkEmbeddings(ctx context.Context, find *FindBookmarkEmbedding) ([]*BookmarkEmbedding, error)
	DeleteBookmarkEmbedding(ctx context.Context, bookmarkID int32) error
	FindBookmarksWithoutEmbedding(ctx context.Context, find *FindBookmarksWithoutEmbedding) ([]*Bookmark, error)

	// DuplicateGroup model related methods.
	// CreateDuplicateGroup inserts the group and points every member at it in one transaction.
	CreateDuplicateGroup(ctx context.Context, create *DuplicateGroup, memberIDs []int32) (*DuplicateGroup, error)
	ListDuplicateGroups(ctx context.Context, find *FindDuplicateGroup) ([]*DuplicateGroup, error)
	// AssignDuplicateGroupMembers points the listed bookmarks at an existing group.
	AssignDuplicateGroupMembers(ctx context.Context, assign *AssignDuplicateGroupMembers) error
	// DeleteDuplicateGroup clears member references and removes the group in one transaction.
	DeleteDuplicateGroup(ctx context.Context, delete *DeleteDuplicateGroup) error
}
