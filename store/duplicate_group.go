package store

import (
	"context"
	"time"
)

// DuplicateReason is the heuristic a duplicate group was formed by.
type DuplicateReason string

const (
	DuplicateReasonSameURL        DuplicateReason = "same_url"
	DuplicateReasonSameDomain     DuplicateReason = "same_domain"
	DuplicateReasonSimilarContent DuplicateReason = "similar_content"
)

func (r DuplicateReason) String() string {
	return string(r)
}

// IsValid reports whether r is one of the known reasons.
func (r DuplicateReason) IsValid() bool {
	switch r {
	case DuplicateReasonSameURL, DuplicateReasonSameDomain, DuplicateReasonSimilarContent:
		return true
	}
	return false
}

type DuplicateGroup struct {
	ID        int32
	CreatorID int32
	CreatedTs int64

	Reason     DuplicateReason
	Similarity *float64
	// MasterBookmarkID is nil once the master bookmark has been deleted.
	MasterBookmarkID *int32
}

type FindDuplicateGroup struct {
	ID        *int32
	IDList    []int32
	CreatorID *int32
}

type AssignDuplicateGroupMembers struct {
	GroupID        int32
	CreatorID      int32
	BookmarkIDList []int32
}

type DeleteDuplicateGroup struct {
	ID int32
}

// CreateDuplicateGroup creates a group and assigns memberIDs to it atomically.
func (s *Store) CreateDuplicateGroup(ctx context.Context, create *DuplicateGroup, memberIDs []int32) (*DuplicateGroup, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	return s.driver.CreateDuplicateGroup(ctx, create, memberIDs)
}

func (s *Store) ListDuplicateGroups(ctx context.Context, find *FindDuplicateGroup) ([]*DuplicateGroup, error) {
	return s.driver.ListDuplicateGroups(ctx, find)
}

// AssignDuplicateGroupMembers moves bookmarks into an existing group. An empty list is a no-op.
func (s *Store) AssignDuplicateGroupMembers(ctx context.Context, assign *AssignDuplicateGroupMembers) error {
	if len(assign.BookmarkIDList) == 0 {
		return nil
	}
	return s.driver.AssignDuplicateGroupMembers(ctx, assign)
}

// GetDuplicateGroup returns nil, nil when no group matches.
func (s *Store) GetDuplicateGroup(ctx context.Context, find *FindDuplicateGroup) (*DuplicateGroup, error) {
	list, err := s.ListDuplicateGroups(ctx, find)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// DeleteDuplicateGroup ungroups all members and removes the group.
func (s *Store) DeleteDuplicateGroup(ctx context.Context, delete *DeleteDuplicateGroup) error {
	return s.driver.DeleteDuplicateGroup(ctx, delete)
}
