package v1

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai/search"
)

// DefaultSemanticThreshold is the minimum cosine similarity of the semantic endpoint.
const DefaultSemanticThreshold = 0.5

type SemanticSearchRequest struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"threshold"`
}

type HybridSearchRequest struct {
	Query          string   `json:"query"`
	Limit          int      `json:"limit"`
	Threshold      *float64 `json:"threshold"`
	FuzzyWeight    *float64 `json:"fuzzyWeight"`
	SemanticWeight *float64 `json:"semanticWeight"`
}

type SearchResponse struct {
	Query   string           `json:"query"`
	Results []*search.Result `json:"results"`
	Total   int              `json:"total"`
}

func (s *APIV1Service) SemanticSearch(c echo.Context) error {
	req := &SemanticSearchRequest{}
	if err := bind(c, req); err != nil {
		return err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return aierrors.InvalidArgument("query is required")
	}

	results, err := s.Semantic.Search(c.Request().Context(), query, userIDFrom(c),
		orLimit(req.Limit), orFloat(req.Threshold, DefaultSemanticThreshold))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSearchResponse(query, results))
}

func (s *APIV1Service) HybridSearch(c echo.Context) error {
	req := &HybridSearchRequest{}
	if err := bind(c, req); err != nil {
		return err
	}

	results, err := s.Hybrid.Search(c.Request().Context(), &search.HybridRequest{
		Query:          strings.TrimSpace(req.Query),
		UserID:         userIDFrom(c),
		Limit:          orLimit(req.Limit),
		Threshold:      orFloat(req.Threshold, search.DefaultHybridThreshold),
		FuzzyWeight:    orFloat(req.FuzzyWeight, search.DefaultFuzzyWeight),
		SemanticWeight: orFloat(req.SemanticWeight, search.DefaultSemanticWeight),
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, newSearchResponse(req.Query, results))
}

func newSearchResponse(query string, results []*search.Result) *SearchResponse {
	if results == nil {
		results = []*search.Result{}
	}
	return &SearchResponse{Query: query, Results: results, Total: len(results)}
}

func orLimit(limit int) int {
	if limit <= 0 {
		return search.DefaultLimit
	}
	return limit
}

func orFloat(v *float64, def float64) float64 {
	if v == nil {
		return def
	}
	return *v
}
