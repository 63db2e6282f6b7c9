package v1

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai/duplicate"
	"github.com/ITHealer/book-m-ai/store"
)

type DetectDuplicatesRequest struct {
	Method    store.DuplicateReason `json:"method"`
	Threshold *float64              `json:"threshold"`
}

type ListDuplicateGroupsResponse struct {
	Groups []*duplicate.Group `json:"groups"`
}

type MergeDuplicatesRequest struct {
	MasterBookmarkID     int32   `json:"masterBookmarkId"`
	DuplicateBookmarkIDs []int32 `json:"duplicateBookmarkIds"`
}

// DetectDuplicates runs one detection method over the caller's bookmarks.
func (s *APIV1Service) DetectDuplicates(c echo.Context) error {
	req := &DetectDuplicatesRequest{}
	if err := bind(c, req); err != nil {
		return err
	}
	if req.Method == "" {
		req.Method = store.DuplicateReasonSameURL
	}

	resp, err := s.Detector.Detect(c.Request().Context(), &duplicate.DetectRequest{
		UserID:    userIDFrom(c),
		Method:    req.Method,
		Threshold: req.Threshold,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

// ListDuplicateGroups returns the caller's duplicate groups with their members.
func (s *APIV1Service) ListDuplicateGroups(c echo.Context) error {
	groups, err := s.Detector.GetDuplicateGroups(c.Request().Context(), userIDFrom(c))
	if err != nil {
		return err
	}
	if groups == nil {
		groups = []*duplicate.Group{}
	}
	return c.JSON(http.StatusOK, &ListDuplicateGroupsResponse{Groups: groups})
}

// DeleteDuplicateGroup ungroups the members of a group and removes it.
func (s *APIV1Service) DeleteDuplicateGroup(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 32)
	if err != nil || id <= 0 {
		return aierrors.InvalidArgument("invalid duplicate group id: " + c.Param("id"))
	}
	if err := s.Detector.DeleteGroup(c.Request().Context(), int32(id), userIDFrom(c)); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// MergeDuplicates folds duplicates into a master bookmark.
func (s *APIV1Service) MergeDuplicates(c echo.Context) error {
	req := &MergeDuplicatesRequest{}
	if err := bind(c, req); err != nil {
		return err
	}

	resp, err := s.Detector.Merge(c.Request().Context(), &duplicate.MergeRequest{
		UserID:               userIDFrom(c),
		MasterBookmarkID:     req.MasterBookmarkID,
		DuplicateBookmarkIDs: req.DuplicateBookmarkIDs,
	})
	if err != nil {
		return err
	}

	requestContextFrom(c).Info("bookmarks merged",
		slog.Int("master_bookmark_id", int(resp.MasterBookmarkID)),
		slog.Int64("deleted", resp.Deleted))
	return c.JSON(http.StatusOK, resp)
}
