package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/ITHealer/book-m-ai/internal/profile"
	"github.com/ITHealer/book-m-ai/plugin/ai"
	"github.com/ITHealer/book-m-ai/server/internal/observability"
	apiv1 "github.com/ITHealer/book-m-ai/server/router/api/v1"
	"github.com/ITHealer/book-m-ai/server/runner/embedding"
	"github.com/ITHealer/book-m-ai/store"
)

type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer      *echo.Echo
	apiV1Service    *apiv1.APIV1Service
	embeddingRunner *embedding.Runner
	runnerCancel    context.CancelFunc
}

func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	slog.SetDefault(newLogger(profile))

	s := &Server{
		Store:   store,
		Profile: profile,
	}

	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestID())
	s.echoServer = echoServer

	provider, err := ai.NewEmbeddingProvider(ai.NewConfigFromProfile(profile))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create embedding provider")
	}
	slog.Info("embedding provider initialized",
		"provider", profile.AIProviderName(),
		"model", profile.AIEmbeddingModel,
		"dimensions", profile.AIEmbeddingDimensions)

	s.apiV1Service = apiv1.NewAPIV1Service(profile, store, provider, nil)
	s.embeddingRunner = embedding.NewRunner(store, s.apiV1Service.Embedder,
		profile.EmbeddingWorkerInterval, profile.EmbeddingWorkerBatchSize)
	s.apiV1Service.EmbeddingRunner = s.embeddingRunner

	echoServer.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "Service ready.")
	})
	s.apiV1Service.RegisterRoutes(echoServer)

	return s, nil
}

// newLogger writes text in dev and JSON otherwise. Records logged with a request
// context carry its request fields.
func newLogger(profile *profile.Profile) *slog.Logger {
	options := &slog.HandlerOptions{Level: slog.LevelInfo}
	if profile.IsDev() || profile.AIDebug {
		options.Level = slog.LevelDebug
	}
	var handler slog.Handler = slog.NewJSONHandler(os.Stderr, options)
	if profile.IsDev() {
		handler = slog.NewTextHandler(os.Stderr, options)
	}
	return slog.New(observability.NewContextHandler(handler))
}

func (s *Server) Start(ctx context.Context) error {
	address := fmt.Sprintf("%s:%d", s.Profile.Addr, s.Profile.Port)
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}
	s.echoServer.Listener = listener

	if s.Profile.EmbeddingWorkerEnabled {
		runnerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		s.runnerCancel = cancel
		s.embeddingRunner.Start(runnerCtx)
		slog.Info("embedding worker started",
			"interval", s.Profile.EmbeddingWorkerInterval,
			"batch_size", s.Profile.EmbeddingWorkerBatchSize)
	}

	go func() {
		if err := s.echoServer.Start(address); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	return nil
}

func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if s.runnerCancel != nil {
		s.runnerCancel()
	}
	s.embeddingRunner.Stop()
	s.apiV1Service.WaitBackground()

	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("server stopped properly")
}
