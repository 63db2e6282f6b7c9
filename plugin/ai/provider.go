package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai/timeout"
)

// EmbeddingRequest is the input of an embedding call.
type EmbeddingRequest struct {
	Text string `json:"text"`
}

// EmbeddingResponse is the result of an embedding call.
type EmbeddingResponse struct {
	Embedding        []float32 `json:"embedding"`
	Model            string    `json:"model"`
	Dimensions       int       `json:"dimensions"`
	TokensUsed       int       `json:"tokensUsed,omitempty"`
	ProcessingTimeMs int64     `json:"processingTimeMs,omitempty"`
}

// EmbeddingProvider computes embeddings for text.
type EmbeddingProvider interface {
	// GenerateEmbeddings embeds a single text. Failures are *errors.AIError values
	// with TIMEOUT, REQUEST_FAILED or MALFORMED_RESPONSE codes.
	GenerateEmbeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// HealthCheck reports whether the provider is reachable.
	HealthCheck(ctx context.Context) bool
}

// NewEmbeddingProvider creates the provider selected by cfg.Provider.
func NewEmbeddingProvider(cfg *Config) (EmbeddingProvider, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.Provider {
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	case ProviderHTTP:
		return NewHTTPProvider(cfg, http.DefaultClient), nil
	case ProviderMock:
		return NewMockProvider(cfg.Dimensions), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// newLimiter returns nil when rate limiting is disabled.
func newLimiter(requestsPerSecond float64) *rate.Limiter {
	if requestsPerSecond <= 0 {
		return nil
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
}

// retryPolicy runs attempts with exponential backoff.
type retryPolicy struct {
	retries     int
	timeout     time.Duration
	baseBackoff time.Duration
	maxBackoff  time.Duration
	limiter     *rate.Limiter
}

func newRetryPolicy(cfg *Config) retryPolicy {
	return retryPolicy{
		retries:     cfg.Retries,
		timeout:     cfg.Timeout,
		baseBackoff: timeout.BaseRetryBackoff,
		maxBackoff:  timeout.MaxRetryBackoff,
		limiter:     newLimiter(cfg.RateLimit),
	}
}

// backoff returns min(base*2^attempt, max).
func (p retryPolicy) backoff(attempt int) time.Duration {
	wait := p.baseBackoff << attempt
	if wait > p.maxBackoff || wait <= 0 {
		return p.maxBackoff
	}
	return wait
}

// do executes fn up to retries+1 times. Each attempt runs under the request timeout.
// A timeout or a 4xx response ends the call immediately.
func (p retryPolicy) do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= p.retries; attempt++ {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return aierrors.Wrap(err, aierrors.ErrCodeRequestFailed, "rate limiter wait failed")
			}
		}

		err := p.attempt(ctx, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retryable(err) || ctx.Err() != nil {
			return err
		}

		if attempt < p.retries {
			wait := p.backoff(attempt)
			slog.Debug("AI request failed, retrying",
				"attempt", attempt+1,
				"wait_time", wait,
				"error", err)
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return aierrors.Wrap(ctx.Err(), aierrors.ErrCodeRequestFailed, "request canceled")
			}
		}
	}

	return aierrors.Wrap(lastErr, aierrors.ErrCodeRequestFailed,
		fmt.Sprintf("AI service request failed after %d attempts", p.retries+1))
}

func (p retryPolicy) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := fn(attemptCtx)
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return aierrors.Wrap(err, aierrors.ErrCodeTimeout, fmt.Sprintf("request timeout after %s", p.timeout))
	}
	return err
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	var aiErr *aierrors.AIError
	if errors.As(err, &aiErr) {
		switch aiErr.Code {
		case aierrors.ErrCodeTimeout, aierrors.ErrCodeMalformedResponse:
			return false
		}
		if aiErr.StatusCode > 0 && aiErr.StatusCode < http.StatusInternalServerError {
			return false
		}
	}
	return true
}
