package v1

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai/search"
	"github.com/ITHealer/book-m-ai/server/runner/embedding"
	"github.com/ITHealer/book-m-ai/store"
)

type GenerateEmbeddingsRequest struct {
	BookmarkID  int32   `json:"bookmarkId"`
	BookmarkIDs []int32 `json:"bookmarkIds"`
}

type GenerateEmbeddingsResponse struct {
	// Results is empty when the batch was started in the background.
	Results    []*search.EmbedResult `json:"results"`
	Total      int                   `json:"total"`
	Succeeded  int                   `json:"succeeded"`
	Background bool                  `json:"background"`
}

type EmbeddingStatusResponse struct {
	Worker *embedding.Status `json:"worker,omitempty"`
	// Pending counts the caller's bookmarks without an embedding, capped at the worker batch size.
	Pending int `json:"pending"`
}

// GenerateEmbeddings embeds one or more of the caller's bookmarks.
func (s *APIV1Service) GenerateEmbeddings(c echo.Context) error {
	req := &GenerateEmbeddingsRequest{}
	if err := bind(c, req); err != nil {
		return err
	}
	ids := req.BookmarkIDs
	if req.BookmarkID != 0 {
		ids = append([]int32{req.BookmarkID}, ids...)
	}
	if len(ids) == 0 {
		return aierrors.InvalidArgument("bookmarkId or bookmarkIds is required")
	}

	ctx := c.Request().Context()
	ids, err := s.ownedBookmarkIDs(ctx, userIDFrom(c), ids)
	if err != nil {
		return err
	}

	if len(ids) > maxInlineEmbedBatch {
		s.background.Add(1)
		rc := requestContextFrom(c)
		go func() {
			defer s.background.Done()
			results := s.Embedder.GenerateEmbeddings(context.WithoutCancel(ctx), ids)
			rc.Info("background embedding batch finished",
				slog.String("task", backgroundEmbedLabel),
				slog.Int("total", len(results)),
				slog.Int("succeeded", countSucceeded(results)))
		}()
		return c.JSON(http.StatusAccepted, &GenerateEmbeddingsResponse{
			Results:    []*search.EmbedResult{},
			Total:      len(ids),
			Background: true,
		})
	}

	results := s.Embedder.GenerateEmbeddings(ctx, ids)
	return c.JSON(http.StatusOK, &GenerateEmbeddingsResponse{
		Results:   results,
		Total:     len(results),
		Succeeded: countSucceeded(results),
	})
}

// DeleteEmbedding removes the embedding of one of the caller's bookmarks.
func (s *APIV1Service) DeleteEmbedding(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("bookmarkId"), 10, 32)
	if err != nil || id <= 0 {
		return aierrors.InvalidArgument("invalid bookmark id: " + c.Param("bookmarkId"))
	}
	ctx := c.Request().Context()
	if _, err := s.ownedBookmarkIDs(ctx, userIDFrom(c), []int32{int32(id)}); err != nil {
		return err
	}
	if err := s.Embedder.DeleteEmbedding(ctx, int32(id)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *APIV1Service) EmbeddingStatus(c echo.Context) error {
	userID := userIDFrom(c)
	limit := embedding.DefaultBatchSize
	resp := &EmbeddingStatusResponse{}
	if s.EmbeddingRunner != nil {
		status := s.EmbeddingRunner.Status()
		resp.Worker = &status
		limit = status.BatchSize
	}

	pending, err := s.Store.FindBookmarksWithoutEmbedding(c.Request().Context(), &store.FindBookmarksWithoutEmbedding{
		CreatorID: &userID,
		Limit:     limit,
	})
	if err != nil {
		return err
	}
	resp.Pending = len(pending)
	return c.JSON(http.StatusOK, resp)
}

// TriggerEmbeddingGeneration runs one backfill pass of the worker synchronously.
func (s *APIV1Service) TriggerEmbeddingGeneration(c echo.Context) error {
	if s.EmbeddingRunner == nil {
		return aierrors.ServiceUnavailable("embedding worker is not configured")
	}
	result := s.EmbeddingRunner.TriggerGeneration(c.Request().Context())
	return c.JSON(http.StatusOK, result)
}

// ownedBookmarkIDs returns ids without repeats, failing if any is not owned by userID.
func (s *APIV1Service) ownedBookmarkIDs(ctx context.Context, userID int32, ids []int32) ([]int32, error) {
	unique := make([]int32, 0, len(ids))
	seen := make(map[int32]bool, len(ids))
	for _, id := range ids {
		if id <= 0 {
			return nil, aierrors.InvalidArgument("invalid bookmark id: " + strconv.Itoa(int(id)))
		}
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}

	bookmarks, err := s.Store.ListBookmarks(ctx, &store.FindBookmark{IDList: unique, CreatorID: &userID})
	if err != nil {
		return nil, err
	}
	owned := make(map[int32]bool, len(bookmarks))
	for _, b := range bookmarks {
		owned[b.ID] = true
	}
	for _, id := range unique {
		if !owned[id] {
			return nil, aierrors.NotFoundOrUnauthorized("bookmark", id)
		}
	}
	return unique, nil
}

func countSucceeded(results []*search.EmbedResult) int {
	n := 0
	for _, r := range results {
		if r.Status == search.EmbedStatusSucceeded {
			n++
		}
	}
	return n
}
