package duplicate

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai/similarity"
	"github.com/ITHealer/book-m-ai/store"
)

// duplicateDetector implements DuplicateDetector.
type duplicateDetector struct {
	store *store.Store
}

// NewDuplicateDetector creates a new DuplicateDetector.
func NewDuplicateDetector(s *store.Store) DuplicateDetector {
	return &duplicateDetector{store: s}
}

func (d *duplicateDetector) Detect(ctx context.Context, req *DetectRequest) (*DetectResponse, error) {
	start := time.Now()
	if !req.Method.IsValid() {
		return nil, aierrors.InvalidArgument(fmt.Sprintf("invalid detection method: %q", req.Method))
	}

	var (
		groups []*Group
		err    error
	)
	switch req.Method {
	case store.DuplicateReasonSameURL:
		groups, err = d.detectByKey(ctx, req.UserID, store.BookmarkKeyURL, req.Method, SameURLSimilarity, 0)
	case store.DuplicateReasonSameDomain:
		groups, err = d.detectByKey(ctx, req.UserID, store.BookmarkKeyDomain, req.Method, SameDomainSimilarity, MaxDomainGroupSize)
	case store.DuplicateReasonSimilarContent:
		threshold := DefaultContentThreshold
		if req.Threshold != nil {
			threshold = *req.Threshold
		}
		groups, err = d.detectSimilarContent(ctx, req.UserID, threshold)
	}
	if err != nil {
		return nil, err
	}

	response := &DetectResponse{Method: req.Method, Groups: groups}
	for _, g := range groups {
		if g.Created {
			response.Created++
		}
	}
	response.LatencyMs = time.Since(start).Milliseconds()

	slog.InfoContext(ctx, "duplicate detection finished",
		"method", req.Method,
		"groups", len(groups),
		"created", response.Created)
	return response, nil
}

// detectByKey groups bookmarks sharing the value of key. maxMembers of 0 means unbounded.
func (d *duplicateDetector) detectByKey(ctx context.Context, userID int32, key store.BookmarkKey, reason store.DuplicateReason, score float64, maxMembers int) ([]*Group, error) {
	counts, err := d.store.ListBookmarkKeyCounts(ctx, &store.FindBookmarkKeyCount{
		CreatorID: userID,
		Key:       key,
		MinCount:  2,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count bookmarks by %s: %w", key, err)
	}

	groups := make([]*Group, 0, len(counts))
	for _, count := range counts {
		find := &store.FindBookmark{CreatorID: &userID}
		value := count.Value
		if key == store.BookmarkKeyURL {
			find.URL = &value
		} else {
			find.Domain = &value
		}
		if maxMembers > 0 {
			find.Limit = &maxMembers
		}

		members, err := d.store.ListBookmarks(ctx, find)
		if err != nil {
			return nil, fmt.Errorf("failed to list bookmarks for %s %q: %w", key, value, err)
		}
		if len(members) < 2 {
			continue
		}

		group, err := d.groupCandidates(ctx, userID, reason, score, members)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// detectSimilarContent clusters greedily: each unconsumed bookmark, in creation order,
// absorbs every later unconsumed bookmark whose Jaccard similarity reaches threshold.
func (d *duplicateDetector) detectSimilarContent(ctx context.Context, userID int32, threshold float64) ([]*Group, error) {
	bookmarks, err := d.store.ListBookmarks(ctx, &store.FindBookmark{CreatorID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	texts := make([]string, len(bookmarks))
	for i, b := range bookmarks {
		texts[i] = b.Title + " " + b.Description
	}

	consumed := make(map[int32]struct{}, len(bookmarks))
	groups := make([]*Group, 0)
	for i, reference := range bookmarks {
		if _, ok := consumed[reference.ID]; ok {
			continue
		}

		cluster := []*store.Bookmark{reference}
		for j := i + 1; j < len(bookmarks); j++ {
			candidate := bookmarks[j]
			if _, ok := consumed[candidate.ID]; ok {
				continue
			}
			if similarity.JaccardSimilarity(texts[i], texts[j]) >= threshold {
				cluster = append(cluster, candidate)
				consumed[candidate.ID] = struct{}{}
			}
		}
		if len(cluster) < 2 {
			continue
		}
		consumed[reference.ID] = struct{}{}

		group, err := d.groupCandidates(ctx, userID, store.DuplicateReasonSimilarContent, threshold, cluster)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

// groupCandidates reuses the group of the same reason that owns any candidate, or
// whose master is a candidate, otherwise creates a group with the first candidate as
// master. Reused groups take over every candidate.
func (d *duplicateDetector) groupCandidates(ctx context.Context, userID int32, reason store.DuplicateReason, score float64, candidates []*store.Bookmark) (*Group, error) {
	existing, err := d.findExistingGroup(ctx, userID, reason, candidates)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		moved := make([]int32, 0, len(candidates))
		for _, b := range candidates {
			if b.DuplicateGroupID == nil || *b.DuplicateGroupID != existing.ID {
				moved = append(moved, b.ID)
			}
		}
		if err := d.store.AssignDuplicateGroupMembers(ctx, &store.AssignDuplicateGroupMembers{
			GroupID:        existing.ID,
			CreatorID:      userID,
			BookmarkIDList: moved,
		}); err != nil {
			return nil, fmt.Errorf("failed to reassign members to group %d: %w", existing.ID, err)
		}
		if len(moved) > 0 {
			slog.DebugContext(ctx, "reclaimed duplicate group members",
				"group_id", existing.ID,
				"reason", reason,
				"moved", len(moved))
		}

		members, err := d.store.ListBookmarks(ctx, &store.FindBookmark{CreatorID: &userID, DuplicateGroupID: &existing.ID})
		if err != nil {
			return nil, fmt.Errorf("failed to list members of group %d: %w", existing.ID, err)
		}
		return newGroup(existing, members, false), nil
	}

	memberIDs := make([]int32, len(candidates))
	for i, b := range candidates {
		memberIDs[i] = b.ID
	}
	master := candidates[0].ID
	created, err := d.store.CreateDuplicateGroup(ctx, &store.DuplicateGroup{
		CreatorID:        userID,
		Reason:           reason,
		Similarity:       &score,
		MasterBookmarkID: &master,
	}, memberIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s group: %w", reason, err)
	}

	for _, b := range candidates {
		b.DuplicateGroupID = &created.ID
	}
	return newGroup(created, candidates, true), nil
}

// findExistingGroup looks first at the groups the candidates belong to, then at groups
// mastered by a candidate. The second lookup finds groups whose members were taken over
// by a detection of another reason.
func (d *duplicateDetector) findExistingGroup(ctx context.Context, userID int32, reason store.DuplicateReason, candidates []*store.Bookmark) (*store.DuplicateGroup, error) {
	groupIDs := make([]int32, 0)
	seen := make(map[int32]struct{})
	candidateIDs := make(map[int32]struct{}, len(candidates))
	for _, b := range candidates {
		candidateIDs[b.ID] = struct{}{}
		if b.DuplicateGroupID == nil {
			continue
		}
		if _, ok := seen[*b.DuplicateGroupID]; ok {
			continue
		}
		seen[*b.DuplicateGroupID] = struct{}{}
		groupIDs = append(groupIDs, *b.DuplicateGroupID)
	}

	if len(groupIDs) > 0 {
		groups, err := d.store.ListDuplicateGroups(ctx, &store.FindDuplicateGroup{IDList: groupIDs, CreatorID: &userID})
		if err != nil {
			return nil, fmt.Errorf("failed to list duplicate groups: %w", err)
		}
		for _, g := range groups {
			if g.Reason == reason {
				return g, nil
			}
		}
	}

	groups, err := d.store.ListDuplicateGroups(ctx, &store.FindDuplicateGroup{CreatorID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate groups: %w", err)
	}
	for _, g := range groups {
		if g.Reason != reason || g.MasterBookmarkID == nil {
			continue
		}
		if _, ok := candidateIDs[*g.MasterBookmarkID]; ok {
			return g, nil
		}
	}
	return nil, nil
}

func (d *duplicateDetector) Merge(ctx context.Context, req *MergeRequest) (*MergeResponse, error) {
	if req.MasterBookmarkID == 0 {
		return nil, aierrors.InvalidArgument("masterBookmarkId is required")
	}
	if len(req.DuplicateBookmarkIDs) == 0 {
		return nil, aierrors.InvalidArgument("duplicateBookmarkIds is required")
	}

	master, err := d.store.GetBookmark(ctx, &store.FindBookmark{ID: &req.MasterBookmarkID, CreatorID: &req.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to get master bookmark: %w", err)
	}
	if master == nil {
		return nil, aierrors.NotFoundOrUnauthorized("bookmark", req.MasterBookmarkID)
	}

	duplicates, err := d.loadDuplicates(ctx, req)
	if err != nil {
		return nil, err
	}
	response := &MergeResponse{MasterBookmarkID: master.ID, MergedIDs: make([]int32, 0, len(duplicates))}
	if len(duplicates) == 0 {
		return response, nil
	}

	bookmarkIDs := []int32{master.ID}
	for _, dup := range duplicates {
		bookmarkIDs = append(bookmarkIDs, dup.ID)
		response.MergedIDs = append(response.MergedIDs, dup.ID)
	}
	bookmarkTags, err := d.store.ListBookmarkTags(ctx, &store.FindBookmarkTag{BookmarkIDList: bookmarkIDs})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmark tags: %w", err)
	}

	masterTags := make(map[int32]struct{})
	tagsByBookmark := make(map[int32][]int32)
	for _, bt := range bookmarkTags {
		if bt.BookmarkID == master.ID {
			masterTags[bt.TagID] = struct{}{}
			continue
		}
		tagsByBookmark[bt.BookmarkID] = append(tagsByBookmark[bt.BookmarkID], bt.TagID)
	}

	note := master.Note
	for _, dup := range duplicates {
		for _, tagID := range tagsByBookmark[dup.ID] {
			if _, ok := masterTags[tagID]; ok {
				continue
			}
			if err := d.store.UpsertBookmarkTag(ctx, &store.BookmarkTag{BookmarkID: master.ID, TagID: tagID}); err != nil {
				return nil, fmt.Errorf("failed to attach tag %d to bookmark %d: %w", tagID, master.ID, err)
			}
			masterTags[tagID] = struct{}{}
			response.TagsAdded++
		}

		if strings.TrimSpace(dup.Note) != "" {
			note = mergeNotes(note, dup.Note)
			response.NotesMerged++
		}
	}

	if note != master.Note {
		if err := d.store.UpdateBookmark(ctx, &store.UpdateBookmark{ID: master.ID, Note: &note}); err != nil {
			return nil, fmt.Errorf("failed to update master note: %w", err)
		}
	}

	deleted, err := d.store.DeleteBookmarks(ctx, &store.DeleteBookmark{IDList: response.MergedIDs, CreatorID: &req.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to delete merged bookmarks: %w", err)
	}
	response.Deleted = deleted

	slog.InfoContext(ctx, "merged duplicate bookmarks",
		"master_id", master.ID,
		"merged_ids", response.MergedIDs,
		"tags_added", response.TagsAdded)
	return response, nil
}

// loadDuplicates returns the owned duplicates in request order, without the master.
func (d *duplicateDetector) loadDuplicates(ctx context.Context, req *MergeRequest) ([]*store.Bookmark, error) {
	ids := make([]int32, 0, len(req.DuplicateBookmarkIDs))
	for _, id := range req.DuplicateBookmarkIDs {
		if id != req.MasterBookmarkID {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}

	list, err := d.store.ListBookmarks(ctx, &store.FindBookmark{IDList: ids, CreatorID: &req.UserID})
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate bookmarks: %w", err)
	}
	byID := make(map[int32]*store.Bookmark, len(list))
	for _, b := range list {
		byID[b.ID] = b
	}

	ordered := make([]*store.Bookmark, 0, len(list))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			ordered = append(ordered, b)
			delete(byID, id)
		}
	}
	return ordered, nil
}

func (d *duplicateDetector) GetDuplicateGroups(ctx context.Context, userID int32) ([]*Group, error) {
	groups, err := d.store.ListDuplicateGroups(ctx, &store.FindDuplicateGroup{CreatorID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate groups: %w", err)
	}
	if len(groups) == 0 {
		return []*Group{}, nil
	}

	bookmarks, err := d.store.ListBookmarks(ctx, &store.FindBookmark{CreatorID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}
	members := make(map[int32][]*store.Bookmark)
	for _, b := range bookmarks {
		if b.DuplicateGroupID != nil {
			members[*b.DuplicateGroupID] = append(members[*b.DuplicateGroupID], b)
		}
	}

	result := make([]*Group, 0, len(groups))
	for _, g := range groups {
		// Groups left with fewer than two members stay dormant until a detection reclaims them.
		if len(members[g.ID]) < 2 {
			continue
		}
		result = append(result, newGroup(g, members[g.ID], false))
	}
	return result, nil
}

func (d *duplicateDetector) DeleteGroup(ctx context.Context, groupID, userID int32) error {
	group, err := d.store.GetDuplicateGroup(ctx, &store.FindDuplicateGroup{ID: &groupID, CreatorID: &userID})
	if err != nil {
		return fmt.Errorf("failed to get duplicate group: %w", err)
	}
	if group == nil {
		return aierrors.NotFoundOrUnauthorized("duplicate group", groupID)
	}

	if err := d.store.DeleteDuplicateGroup(ctx, &store.DeleteDuplicateGroup{ID: groupID}); err != nil {
		return fmt.Errorf("failed to delete duplicate group %d: %w", groupID, err)
	}
	slog.InfoContext(ctx, "deleted duplicate group", "group_id", groupID)
	return nil
}

func newGroup(g *store.DuplicateGroup, members []*store.Bookmark, created bool) *Group {
	ordered := make([]*store.Bookmark, 0, len(members))
	if g.MasterBookmarkID != nil {
		for _, b := range members {
			if b.ID == *g.MasterBookmarkID {
				ordered = append(ordered, b)
			}
		}
	}
	for _, b := range members {
		if g.MasterBookmarkID == nil || b.ID != *g.MasterBookmarkID {
			ordered = append(ordered, b)
		}
	}

	return &Group{
		ID:               g.ID,
		MasterBookmarkID: g.MasterBookmarkID,
		Reason:           g.Reason,
		Similarity:       g.Similarity,
		CreatedTs:        g.CreatedTs,
		Bookmarks:        ordered,
		Created:          created,
	}
}

// mergeNotes appends note to base under a separator; an empty base yields note verbatim.
func mergeNotes(base, note string) string {
	if base == "" {
		return note
	}
	return base + mergedNoteSeparator + note
}
