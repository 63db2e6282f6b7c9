// Package duplicate finds duplicate bookmarks, persists them as groups and merges them.
package duplicate

import (
	"context"

	"github.com/ITHealer/book-m-ai/store"
)

// DuplicateDetector detects, lists and merges duplicate bookmarks.
type DuplicateDetector interface {
	// Detect runs one detection strategy and persists new groups. Candidate sets that
	// already have a group with the same reason are reported but not grouped again.
	Detect(ctx context.Context, req *DetectRequest) (*DetectResponse, error)

	// Merge folds duplicates into the master bookmark and deletes them.
	Merge(ctx context.Context, req *MergeRequest) (*MergeResponse, error)

	// GetDuplicateGroups lists the groups of a user with their members.
	GetDuplicateGroups(ctx context.Context, userID int32) ([]*Group, error)

	// DeleteGroup ungroups the members and removes the group.
	DeleteGroup(ctx context.Context, groupID, userID int32) error
}

// DetectRequest contains input for duplicate detection.
type DetectRequest struct {
	UserID int32                 `json:"userId"`
	Method store.DuplicateReason `json:"method"`
	// Threshold is the Jaccard percentage for similar_content. Nil means 80; an
	// explicit 0 groups every pair.
	Threshold *float64 `json:"threshold,omitempty"`
}

// DetectResponse contains detection results.
type DetectResponse struct {
	Method    store.DuplicateReason `json:"method"`
	Groups    []*Group              `json:"groups"`
	Created   int                   `json:"created"`
	LatencyMs int64                 `json:"latencyMs"`
}

// Group is a duplicate group with its member bookmarks, master first when present.
type Group struct {
	ID               int32                 `json:"id"`
	MasterBookmarkID *int32                `json:"masterBookmarkId"`
	Reason           store.DuplicateReason `json:"reason"`
	Similarity       *float64              `json:"similarity,omitempty"`
	CreatedTs        int64                 `json:"createdTs"`
	Bookmarks        []*store.Bookmark     `json:"bookmarks"`
	// Created is false when detection found the group from an earlier run.
	Created bool `json:"created"`
}

// MergeRequest contains input for a merge.
type MergeRequest struct {
	UserID               int32   `json:"userId"`
	MasterBookmarkID     int32   `json:"masterBookmarkId"`
	DuplicateBookmarkIDs []int32 `json:"duplicateBookmarkIds"`
}

// MergeResponse reports what a merge changed.
type MergeResponse struct {
	MasterBookmarkID int32   `json:"masterBookmarkId"`
	MergedIDs        []int32 `json:"mergedIds"`
	TagsAdded        int     `json:"tagsAdded"`
	NotesMerged      int     `json:"notesMerged"`
	Deleted          int64   `json:"deleted"`
}

// Detection constants.
const (
	DefaultContentThreshold = 80.0

	SameURLSimilarity    = 100.0
	SameDomainSimilarity = 90.0

	// MaxDomainGroupSize caps same_domain groups.
	MaxDomainGroupSize = 10

	mergedNoteSeparator = "\n\n---\nMerged from duplicate:\n"
)
