package v1

import (
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/internal/profile"
	"github.com/ITHealer/book-m-ai/plugin/ai"
	"github.com/ITHealer/book-m-ai/plugin/ai/duplicate"
	"github.com/ITHealer/book-m-ai/plugin/ai/search"
	"github.com/ITHealer/book-m-ai/server/internal/observability"
	ratelimit "github.com/ITHealer/book-m-ai/server/middleware"
	"github.com/ITHealer/book-m-ai/server/runner/embedding"
	"github.com/ITHealer/book-m-ai/store"
)

// UserIDHeader carries the user identity resolved by the upstream auth layer.
const UserIDHeader = "X-Healer-User-ID"

const (
	userIDContextKey     = "user_id"
	requestContextKey    = "request_context"
	requestIDHeader      = echo.HeaderXRequestID
	maxInlineEmbedBatch  = search.EmbedChunkSize
	backgroundEmbedLabel = "embeddings.generate.background"
)

type APIV1Service struct {
	Profile  *profile.Profile
	Store    *store.Store
	Provider ai.EmbeddingProvider

	Detector duplicate.DuplicateDetector
	Fuzzy    *search.FuzzySearcher
	Semantic *search.SemanticSearcher
	Hybrid   *search.HybridSearcher
	Embedder *search.Embedder
	// EmbeddingRunner is nil when the backfill worker is disabled.
	EmbeddingRunner *embedding.Runner

	Metrics     *observability.Metrics
	RateLimiter *ratelimit.RateLimiter
	Logger      *slog.Logger

	background sync.WaitGroup
}

func NewAPIV1Service(profile *profile.Profile, store *store.Store, provider ai.EmbeddingProvider, runner *embedding.Runner) *APIV1Service {
	fuzzy := search.NewFuzzySearcher(store)
	// Query embeddings are cached; bookmark embeddings always hit the provider.
	semantic := search.NewSemanticSearcher(store, ai.NewCachedProvider(provider, 0, 0))
	return &APIV1Service{
		Profile:         profile,
		Store:           store,
		Provider:        provider,
		Detector:        duplicate.NewDuplicateDetector(store),
		Fuzzy:           fuzzy,
		Semantic:        semantic,
		Hybrid:          search.NewHybridSearcher(semantic, fuzzy),
		Embedder:        search.NewEmbedder(store, provider),
		EmbeddingRunner: runner,
		Metrics:         observability.NewMetrics(),
		RateLimiter:     ratelimit.NewRateLimiter(0, 0),
		Logger:          slog.Default(),
	}
}

// RegisterRoutes registers the JSON API with the given Echo instance.
func (s *APIV1Service) RegisterRoutes(echoServer *echo.Echo) {
	api := echoServer.Group("/api/v1")
	api.Use(middleware.CORS())

	// Health is public so load balancers can probe it.
	api.GET("/ai/health", s.handle("ai.health", s.AIHealth))

	authed := api.Group("", s.userMiddleware, s.RateLimiter.Middleware(func(c echo.Context) string {
		return strconv.Itoa(int(userIDFrom(c)))
	}))

	authed.POST("/deduplication/detect", s.handle("deduplication.detect", s.DetectDuplicates))
	authed.GET("/deduplication/groups", s.handle("deduplication.groups.list", s.ListDuplicateGroups))
	authed.DELETE("/deduplication/groups/:id", s.handle("deduplication.groups.delete", s.DeleteDuplicateGroup))
	authed.POST("/deduplication/merge", s.handle("deduplication.merge", s.MergeDuplicates))

	authed.POST("/search/semantic", s.handle("search.semantic", s.SemanticSearch))
	authed.POST("/search/hybrid", s.handle("search.hybrid", s.HybridSearch))

	authed.POST("/embeddings/generate", s.handle("embeddings.generate", s.GenerateEmbeddings))
	authed.GET("/embeddings/status", s.handle("embeddings.status", s.EmbeddingStatus))
	authed.DELETE("/embeddings/:bookmarkId", s.handle("embeddings.delete", s.DeleteEmbedding))
	authed.POST("/embeddings/trigger", s.handle("embeddings.trigger", s.TriggerEmbeddingGeneration))

	authed.GET("/system/metrics", s.handle("system.metrics", s.SystemMetrics))
}

// WaitBackground blocks until background embedding batches have finished.
func (s *APIV1Service) WaitBackground() {
	s.background.Wait()
}

// userMiddleware resolves the caller from UserIDHeader.
func (s *APIV1Service) userMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := c.Request().Header.Get(UserIDHeader)
		id, err := strconv.ParseInt(raw, 10, 32)
		if err != nil || id <= 0 {
			return c.JSON(http.StatusUnauthorized, errorResponse{
				Error:   "UNAUTHENTICATED",
				Message: "missing or invalid " + UserIDHeader + " header",
			})
		}
		c.Set(userIDContextKey, int32(id))
		return next(c)
	}
}

// handle wraps a handler with a request context, error mapping and metrics.
func (s *APIV1Service) handle(operation string, h echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		rc := observability.NewRequestContextWithID(s.Logger, c.Request().Header.Get(requestIDHeader), operation, userIDFrom(c))
		c.Set(requestContextKey, rc)
		c.SetRequest(c.Request().WithContext(observability.WithRequestContext(c.Request().Context(), rc)))
		c.Response().Header().Set(requestIDHeader, rc.RequestID)

		err := h(c)
		if err != nil {
			status := aierrors.HTTPStatus(err)
			code := aierrors.GetCodeFromError(err, "INTERNAL")
			if status >= http.StatusInternalServerError {
				rc.Error("request failed", err, slog.String(observability.LogFieldErrorCode, string(code)))
			} else {
				rc.Warn("request rejected",
					slog.String(observability.LogFieldErrorCode, string(code)),
					slog.String("error", err.Error()))
			}
			err = c.JSON(status, errorResponse{Error: string(code), Message: err.Error()})
			s.Metrics.RecordRequest(operation, rc.Duration(), true)
			return err
		}

		rc.Debug("request completed", slog.Int64(observability.LogFieldDuration, rc.DurationMs()))
		s.Metrics.RecordRequest(operation, rc.Duration(), false)
		return nil
	}
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func userIDFrom(c echo.Context) int32 {
	id, _ := c.Get(userIDContextKey).(int32)
	return id
}

func requestContextFrom(c echo.Context) *observability.RequestContext {
	if rc, ok := c.Get(requestContextKey).(*observability.RequestContext); ok {
		return rc
	}
	return observability.NewRequestContext(slog.Default(), c.Path(), userIDFrom(c))
}

// bind decodes the JSON body into req, mapping decode failures to INVALID_ARGUMENT.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return aierrors.InvalidArgument("invalid request body: " + err.Error())
	}
	return nil
}
