package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/ITHealer/book-m-ai/server/internal/observability"
	"github.com/ITHealer/book-m-ai/server/runner/embedding"
)

type AIHealthResponse struct {
	Status          string            `json:"status"`
	Provider        string            `json:"provider,omitempty"`
	ProviderHealthy bool              `json:"providerHealthy"`
	Version         string            `json:"version,omitempty"`
	Worker          *embedding.Status `json:"worker,omitempty"`
}

type SystemMetricsResponse struct {
	*observability.MetricsSnapshot
	SuccessRate float64 `json:"successRate"`
}

// AIHealth reports provider reachability. It answers 503 when the provider is down.
func (s *APIV1Service) AIHealth(c echo.Context) error {
	resp := &AIHealthResponse{Status: "healthy"}
	if s.Profile != nil {
		resp.Provider = s.Profile.AIProviderName()
		resp.Version = s.Profile.Version
	}
	if s.EmbeddingRunner != nil {
		status := s.EmbeddingRunner.Status()
		resp.Worker = &status
	}

	resp.ProviderHealthy = s.Provider != nil && s.Provider.HealthCheck(c.Request().Context())
	if !resp.ProviderHealthy {
		resp.Status = "unhealthy"
		return c.JSON(http.StatusServiceUnavailable, resp)
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *APIV1Service) SystemMetrics(c echo.Context) error {
	snapshot := s.Metrics.Snapshot()
	return c.JSON(http.StatusOK, &SystemMetricsResponse{
		MetricsSnapshot: snapshot,
		SuccessRate:     snapshot.SuccessRate(),
	})
}
