package store

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"
	"golang.org/x/net/idna"
)

// BookmarkStatus is the liveness status of a bookmark.
type BookmarkStatus string

const (
	BookmarkStatusPending BookmarkStatus = "pending"
	BookmarkStatusOnline  BookmarkStatus = "online"
	BookmarkStatusOffline BookmarkStatus = "offline"
	BookmarkStatusError   BookmarkStatus = "error"
)

func (s BookmarkStatus) String() string {
	return string(s)
}

type Bookmark struct {
	ID        int32
	UID       string
	CreatorID int32
	CreatedTs int64
	UpdatedTs int64

	URL         string
	Domain      string
	Title       string
	Description string
	Author      string
	Note        string
	ContentText string
	Status      BookmarkStatus

	// DuplicateGroupID is nil when the bookmark is not part of a duplicate group.
	DuplicateGroupID *int32
}

// FindBookmark is the find condition for bookmarks.
// Results are always ordered by creation time, oldest first, then by id.
type FindBookmark struct {
	ID               *int32
	IDList           []int32
	CreatorID        *int32
	URL              *string
	Domain           *string
	DuplicateGroupID *int32

	Limit  *int
	Offset *int
}

type UpdateBookmark struct {
	ID               int32
	UpdatedTs        *int64
	Note             *string
	Status           *BookmarkStatus
	DuplicateGroupID *int32
}

type DeleteBookmark struct {
	IDList    []int32
	CreatorID *int32
}

// BookmarkKey is a column bookmarks can be grouped by.
type BookmarkKey string

const (
	BookmarkKeyURL    BookmarkKey = "url"
	BookmarkKeyDomain BookmarkKey = "domain"
)

// FindBookmarkKeyCount finds values of Key shared by at least MinCount bookmarks of one creator.
type FindBookmarkKeyCount struct {
	CreatorID int32
	Key       BookmarkKey
	MinCount  int
}

type BookmarkKeyCount struct {
	Value string
	Count int
}

// CreateBookmark fills UID, domain and timestamps when they are missing.
func (s *Store) CreateBookmark(ctx context.Context, create *Bookmark) (*Bookmark, error) {
	if create.UID == "" {
		create.UID = shortuuid.New()
	}
	if create.Domain == "" {
		create.Domain = ExtractDomain(create.URL)
	}
	if create.Status == "" {
		create.Status = BookmarkStatusPending
	}
	now := time.Now().Unix()
	if create.CreatedTs == 0 {
		create.CreatedTs = now
	}
	if create.UpdatedTs == 0 {
		create.UpdatedTs = create.CreatedTs
	}
	return s.driver.CreateBookmark(ctx, create)
}

func (s *Store) ListBookmarks(ctx context.Context, find *FindBookmark) ([]*Bookmark, error) {
	return s.driver.ListBookmarks(ctx, find)
}

// GetBookmark returns nil, nil when no bookmark matches.
func (s *Store) GetBookmark(ctx context.Context, find *FindBookmark) (*Bookmark, error) {
	list, err := s.ListBookmarks(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *Store) UpdateBookmark(ctx context.Context, update *UpdateBookmark) error {
	if update.UpdatedTs == nil {
		now := time.Now().Unix()
		update.UpdatedTs = &now
	}
	return s.driver.UpdateBookmark(ctx, update)
}

// DeleteBookmarks hard deletes bookmarks and returns the number of removed rows.
func (s *Store) DeleteBookmarks(ctx context.Context, delete *DeleteBookmark) (int64, error) {
	if len(delete.IDList) == 0 {
		return 0, nil
	}
	return s.driver.DeleteBookmarks(ctx, delete)
}

func (s *Store) ListBookmarkKeyCounts(ctx context.Context, find *FindBookmarkKeyCount) ([]*BookmarkKeyCount, error) {
	if find.Key != BookmarkKeyURL && find.Key != BookmarkKeyDomain {
		return nil, errors.Errorf("unsupported bookmark key: %s", find.Key)
	}
	if find.MinCount <= 0 {
		find.MinCount = 1
	}
	return s.driver.ListBookmarkKeyCounts(ctx, find)
}

// ExtractDomain returns the lower-cased ASCII host of rawURL without a leading "www.".
// It returns an empty string when rawURL has no host.
func ExtractDomain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return ""
	}
	if ascii, err := idna.Lookup.ToASCII(host); err == nil {
		host = ascii
	}
	return strings.TrimPrefix(host, "www.")
}
