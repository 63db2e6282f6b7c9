package duplicate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/store"
	teststore "github.com/ITHealer/book-m-ai/store/test"
)

type bookmarkSpec struct {
	url         string
	title       string
	description string
	note        string
	createdTs   int64
}

func createBookmarks(ctx context.Context, t *testing.T, ts *store.Store, userID int32, specs ...bookmarkSpec) []*store.Bookmark {
	t.Helper()
	bookmarks := make([]*store.Bookmark, 0, len(specs))
	for _, s := range specs {
		b, err := ts.CreateBookmark(ctx, &store.Bookmark{
			CreatorID:   userID,
			URL:         s.url,
			Title:       s.title,
			Description: s.description,
			Note:        s.note,
			CreatedTs:   s.createdTs,
		})
		require.NoError(t, err)
		bookmarks = append(bookmarks, b)
	}
	return bookmarks
}

func countGroups(ctx context.Context, t *testing.T, ts *store.Store, userID int32) int {
	t.Helper()
	groups, err := ts.ListDuplicateGroups(ctx, &store.FindDuplicateGroup{CreatorID: &userID})
	require.NoError(t, err)
	return len(groups)
}

func TestDetect_SameURL(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://a.example.com/post", title: "A later", createdTs: 200},
		bookmarkSpec{url: "https://a.example.com/post", title: "A earlier", createdTs: 100},
		bookmarkSpec{url: "https://b.example.com/", title: "B", createdTs: 150},
	)

	resp, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSameURL})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, 1, resp.Created)

	group := resp.Groups[0]
	assert.True(t, group.Created)
	assert.Equal(t, store.DuplicateReasonSameURL, group.Reason)
	require.NotNil(t, group.Similarity)
	assert.Equal(t, 100.0, *group.Similarity)
	require.NotNil(t, group.MasterBookmarkID)
	assert.Equal(t, bookmarks[1].ID, *group.MasterBookmarkID)
	require.Len(t, group.Bookmarks, 2)
	assert.Equal(t, bookmarks[1].ID, group.Bookmarks[0].ID)
	assert.Equal(t, bookmarks[0].ID, group.Bookmarks[1].ID)

	stored, err := ts.GetBookmark(ctx, &store.FindBookmark{ID: &bookmarks[0].ID})
	require.NoError(t, err)
	require.NotNil(t, stored.DuplicateGroupID)
	assert.Equal(t, group.ID, *stored.DuplicateGroupID)

	untouched, err := ts.GetBookmark(ctx, &store.FindBookmark{ID: &bookmarks[2].ID})
	require.NoError(t, err)
	assert.Nil(t, untouched.DuplicateGroupID)
}

func TestDetect_MasterTieBreaksOnID(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://same.example.com", title: "first", createdTs: 100},
		bookmarkSpec{url: "https://same.example.com", title: "second", createdTs: 100},
	)

	resp, err := NewDuplicateDetector(ts).Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSameURL})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, bookmarks[0].ID, *resp.Groups[0].MasterBookmarkID)
}

func TestDetect_Idempotent(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://go.dev/blog/a", title: "go blog a", createdTs: 100},
		bookmarkSpec{url: "https://go.dev/blog/a", title: "go blog a again", createdTs: 200},
		bookmarkSpec{url: "https://go.dev/doc", title: "go doc", createdTs: 300},
	)

	for _, method := range []store.DuplicateReason{store.DuplicateReasonSameURL, store.DuplicateReasonSameDomain} {
		first, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: method})
		require.NoError(t, err)
		before := countGroups(ctx, t, ts, 1)

		second, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: method})
		require.NoError(t, err)
		assert.Equal(t, before, countGroups(ctx, t, ts, 1), method)
		assert.Zero(t, second.Created, method)

		require.Len(t, second.Groups, len(first.Groups), method)
		for i := range first.Groups {
			assert.Equal(t, first.Groups[i].ID, second.Groups[i].ID)
			assert.False(t, second.Groups[i].Created)
		}
	}
}

func TestDetect_ReasonScopedExistingCheck(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://news.example.com/1", title: "one", createdTs: 100},
		bookmarkSpec{url: "https://news.example.com/1", title: "one copy", createdTs: 200},
	)

	urlResp, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSameURL})
	require.NoError(t, err)
	require.Equal(t, 1, urlResp.Created)

	domainResp, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSameDomain})
	require.NoError(t, err)
	require.Equal(t, 1, domainResp.Created)
	assert.Equal(t, store.DuplicateReasonSameDomain, domainResp.Groups[0].Reason)
	assert.Equal(t, 90.0, *domainResp.Groups[0].Similarity)
	assert.Equal(t, 2, countGroups(ctx, t, ts, 1))
}

func TestDetect_ReasonsTakeTurnsWithoutDuplicateGroups(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://a.example.com/post", title: "first", createdTs: 100},
		bookmarkSpec{url: "https://a.example.com/post", title: "second", createdTs: 200},
		bookmarkSpec{url: "https://a.example.com/other", title: "third", createdTs: 300},
	)

	run := func(method store.DuplicateReason) *DetectResponse {
		resp, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: method})
		require.NoError(t, err)
		require.Len(t, resp.Groups, 1)
		return resp
	}

	firstURL := run(store.DuplicateReasonSameURL)
	assert.Equal(t, 1, firstURL.Created)
	firstDomain := run(store.DuplicateReasonSameDomain)
	assert.Equal(t, 1, firstDomain.Created)
	require.Len(t, firstDomain.Groups[0].Bookmarks, 3)

	// The same_url group lost its members to the same_domain group and is reclaimed.
	secondURL := run(store.DuplicateReasonSameURL)
	assert.Zero(t, secondURL.Created)
	assert.Equal(t, firstURL.Groups[0].ID, secondURL.Groups[0].ID)
	require.Len(t, secondURL.Groups[0].Bookmarks, 2)
	assert.Equal(t, bookmarks[0].ID, secondURL.Groups[0].Bookmarks[0].ID)
	assert.Equal(t, 2, countGroups(ctx, t, ts, 1))

	// The same_domain group keeps the third bookmark and takes the others back.
	secondDomain := run(store.DuplicateReasonSameDomain)
	assert.Zero(t, secondDomain.Created)
	assert.Equal(t, firstDomain.Groups[0].ID, secondDomain.Groups[0].ID)
	require.Len(t, secondDomain.Groups[0].Bookmarks, 3)
	assert.Equal(t, 2, countGroups(ctx, t, ts, 1))

	listed, err := detector.GetDuplicateGroups(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, firstDomain.Groups[0].ID, listed[0].ID)
	assert.Equal(t, store.DuplicateReasonSameDomain, listed[0].Reason)
}

func TestDetect_SameDomainCap(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	specs := make([]bookmarkSpec, 0, 12)
	for i := 0; i < 12; i++ {
		specs = append(specs, bookmarkSpec{
			url:       "https://www.example.org/page/" + string(rune('a'+i)),
			title:     "page",
			createdTs: int64(1000 - i),
		})
	}
	bookmarks := createBookmarks(ctx, t, ts, 1, specs...)

	resp, err := NewDuplicateDetector(ts).Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSameDomain})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Len(t, resp.Groups[0].Bookmarks, MaxDomainGroupSize)
	// The last created bookmark has the lowest timestamp.
	assert.Equal(t, bookmarks[11].ID, *resp.Groups[0].MasterBookmarkID)
}

func TestDetect_SimilarContent(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://x.example/1", title: "Effective Go", description: "tips for writing clear idiomatic go code", createdTs: 100},
		bookmarkSpec{url: "https://y.example/2", title: "Rust book", description: "ownership and borrowing", createdTs: 200},
		bookmarkSpec{url: "https://z.example/3", title: "Effective Go", description: "tips for writing clear idiomatic go code", createdTs: 300},
		bookmarkSpec{url: "https://w.example/4", title: "Effective go", description: "tips for writing clear idiomatic Go code", createdTs: 400},
	)

	resp, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSimilarContent})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)

	group := resp.Groups[0]
	assert.Equal(t, store.DuplicateReasonSimilarContent, group.Reason)
	assert.Equal(t, DefaultContentThreshold, *group.Similarity)
	assert.Equal(t, bookmarks[0].ID, *group.MasterBookmarkID)
	ids := []int32{}
	for _, b := range group.Bookmarks {
		ids = append(ids, b.ID)
	}
	assert.ElementsMatch(t, []int32{bookmarks[0].ID, bookmarks[2].ID, bookmarks[3].ID}, ids)

	again, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSimilarContent})
	require.NoError(t, err)
	assert.Zero(t, again.Created)
	assert.Equal(t, 1, countGroups(ctx, t, ts, 1))
}

func TestDetect_SimilarContentThreshold(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	// Token sets {go, testing, guide} and {go, testing, handbook}: 2/4 = 50%.
	createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://a.example/1", title: "go testing guide", createdTs: 100},
		bookmarkSpec{url: "https://b.example/2", title: "go testing handbook", createdTs: 200},
	)

	detector := NewDuplicateDetector(ts)
	resp, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSimilarContent})
	require.NoError(t, err)
	assert.Empty(t, resp.Groups)

	threshold := 50.0
	resp, err = detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSimilarContent, Threshold: &threshold})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, 50.0, *resp.Groups[0].Similarity)
}

func TestDetect_SimilarContentZeroThreshold(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	// No shared tokens at all, so only a threshold of 0 can cluster them.
	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://a.example/1", title: "kubernetes operators", createdTs: 100},
		bookmarkSpec{url: "https://b.example/2", title: "sourdough starter", createdTs: 200},
		bookmarkSpec{url: "https://c.example/3", title: "marathon training", createdTs: 300},
	)

	detector := NewDuplicateDetector(ts)
	zero := 0.0
	resp, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSimilarContent, Threshold: &zero})
	require.NoError(t, err)
	require.Len(t, resp.Groups, 1)
	assert.Equal(t, 1, resp.Created)

	group := resp.Groups[0]
	require.Len(t, group.Bookmarks, 3)
	require.NotNil(t, group.Similarity)
	assert.Zero(t, *group.Similarity)
	require.NotNil(t, group.MasterBookmarkID)
	assert.Equal(t, bookmarks[0].ID, *group.MasterBookmarkID)
}

func TestDetect_InvalidMethod(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	_, err := NewDuplicateDetector(ts).Detect(ctx, &DetectRequest{UserID: 1, Method: "same_title"})
	require.Error(t, err)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeInvalidArgument))
}

func TestDetect_OtherUsersIgnored(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	createBookmarks(ctx, t, ts, 1, bookmarkSpec{url: "https://shared.example/", title: "mine", createdTs: 100})
	createBookmarks(ctx, t, ts, 2, bookmarkSpec{url: "https://shared.example/", title: "theirs", createdTs: 200})

	resp, err := NewDuplicateDetector(ts).Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSameURL})
	require.NoError(t, err)
	assert.Empty(t, resp.Groups)
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://m.example/", title: "master", createdTs: 100},
		bookmarkSpec{url: "https://m.example/", title: "dup with tag", createdTs: 200},
		bookmarkSpec{url: "https://m.example/", title: "dup with note", note: "hello", createdTs: 300},
	)
	master, withTag, withNote := bookmarks[0], bookmarks[1], bookmarks[2]

	tagX, err := ts.CreateTag(ctx, &store.Tag{CreatorID: 1, Name: "x"})
	require.NoError(t, err)
	tagY, err := ts.CreateTag(ctx, &store.Tag{CreatorID: 1, Name: "y"})
	require.NoError(t, err)
	require.NoError(t, ts.UpsertBookmarkTag(ctx, &store.BookmarkTag{BookmarkID: master.ID, TagID: tagY.ID}))
	require.NoError(t, ts.UpsertBookmarkTag(ctx, &store.BookmarkTag{BookmarkID: withTag.ID, TagID: tagX.ID}))
	require.NoError(t, ts.UpsertBookmarkTag(ctx, &store.BookmarkTag{BookmarkID: withTag.ID, TagID: tagY.ID}))

	resp, err := detector.Merge(ctx, &MergeRequest{
		UserID:               1,
		MasterBookmarkID:     master.ID,
		DuplicateBookmarkIDs: []int32{withTag.ID, withNote.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.TagsAdded)
	assert.Equal(t, 1, resp.NotesMerged)
	assert.Equal(t, int64(2), resp.Deleted)

	tags, err := ts.ListBookmarkTags(ctx, &store.FindBookmarkTag{BookmarkIDList: []int32{master.ID}})
	require.NoError(t, err)
	tagIDs := []int32{}
	for _, bt := range tags {
		tagIDs = append(tagIDs, bt.TagID)
	}
	assert.ElementsMatch(t, []int32{tagX.ID, tagY.ID}, tagIDs)

	merged, err := ts.GetBookmark(ctx, &store.FindBookmark{ID: &master.ID})
	require.NoError(t, err)
	require.NotNil(t, merged)
	assert.Equal(t, "hello", merged.Note)

	remaining, err := ts.ListBookmarks(ctx, &store.FindBookmark{IDList: []int32{withTag.ID, withNote.ID}})
	require.NoError(t, err)
	assert.Empty(t, remaining)
}

func TestMerge_NotesCompound(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)

	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://n.example/", title: "master", note: "original", createdTs: 100},
		bookmarkSpec{url: "https://n.example/", title: "d1", note: "first", createdTs: 200},
		bookmarkSpec{url: "https://n.example/", title: "d2", note: "   ", createdTs: 300},
		bookmarkSpec{url: "https://n.example/", title: "d3", note: "second", createdTs: 400},
	)

	_, err := NewDuplicateDetector(ts).Merge(ctx, &MergeRequest{
		UserID:               1,
		MasterBookmarkID:     bookmarks[0].ID,
		DuplicateBookmarkIDs: []int32{bookmarks[1].ID, bookmarks[2].ID, bookmarks[3].ID},
	})
	require.NoError(t, err)

	merged, err := ts.GetBookmark(ctx, &store.FindBookmark{ID: &bookmarks[0].ID})
	require.NoError(t, err)
	assert.Equal(t,
		"original\n\n---\nMerged from duplicate:\nfirst\n\n---\nMerged from duplicate:\nsecond",
		merged.Note)
}

func TestMerge_OwnershipAndMasterSafety(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	mine := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://o.example/", title: "master", createdTs: 100},
		bookmarkSpec{url: "https://o.example/", title: "dup", createdTs: 200},
	)
	theirs := createBookmarks(ctx, t, ts, 2,
		bookmarkSpec{url: "https://o.example/", title: "foreign", createdTs: 300},
	)

	_, err := detector.Merge(ctx, &MergeRequest{UserID: 2, MasterBookmarkID: mine[0].ID, DuplicateBookmarkIDs: []int32{mine[1].ID}})
	require.Error(t, err)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeNotFoundOrUnauthorized))

	resp, err := detector.Merge(ctx, &MergeRequest{
		UserID:               1,
		MasterBookmarkID:     mine[0].ID,
		DuplicateBookmarkIDs: []int32{mine[0].ID, mine[1].ID, theirs[0].ID, 424242},
	})
	require.NoError(t, err)
	assert.Equal(t, []int32{mine[1].ID}, resp.MergedIDs)
	assert.Equal(t, int64(1), resp.Deleted)

	master, err := ts.GetBookmark(ctx, &store.FindBookmark{ID: &mine[0].ID})
	require.NoError(t, err)
	assert.NotNil(t, master)
	foreign, err := ts.GetBookmark(ctx, &store.FindBookmark{ID: &theirs[0].ID})
	require.NoError(t, err)
	assert.NotNil(t, foreign)

	_, err = detector.Merge(ctx, &MergeRequest{UserID: 1, MasterBookmarkID: mine[0].ID})
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeInvalidArgument))
}

func TestGetAndDeleteGroups(t *testing.T) {
	ctx := context.Background()
	ts := teststore.NewSQLiteTestingStore(ctx, t)
	detector := NewDuplicateDetector(ts)

	bookmarks := createBookmarks(ctx, t, ts, 1,
		bookmarkSpec{url: "https://g.example/", title: "one", createdTs: 100},
		bookmarkSpec{url: "https://g.example/", title: "two", createdTs: 200},
	)
	_, err := detector.Detect(ctx, &DetectRequest{UserID: 1, Method: store.DuplicateReasonSameURL})
	require.NoError(t, err)

	groups, err := detector.GetDuplicateGroups(ctx, 1)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Bookmarks, 2)
	assert.Equal(t, bookmarks[0].ID, groups[0].Bookmarks[0].ID)

	empty, err := detector.GetDuplicateGroups(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, empty)

	err = detector.DeleteGroup(ctx, groups[0].ID, 2)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeNotFoundOrUnauthorized))

	require.NoError(t, detector.DeleteGroup(ctx, groups[0].ID, 1))
	assert.Zero(t, countGroups(ctx, t, ts, 1))

	for _, b := range bookmarks {
		stored, err := ts.GetBookmark(ctx, &store.FindBookmark{ID: &b.ID})
		require.NoError(t, err)
		assert.Nil(t, stored.DuplicateGroupID)
	}

	err = detector.DeleteGroup(ctx, groups[0].ID, 1)
	assert.True(t, aierrors.IsCode(err, aierrors.ErrCodeNotFoundOrUnauthorized))
}
