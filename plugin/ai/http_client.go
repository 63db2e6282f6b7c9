package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai/timeout"
)

const (
	embeddingsPath = "/v1/ai/embeddings"
	healthPath     = "/v1/health"
)

// HTTPProvider talks to a remote AI service that exposes an embeddings endpoint.
type HTTPProvider struct {
	client  *http.Client
	baseURL string
	apiKey  string
	retry   retryPolicy
}

// NewHTTPProvider creates a new HTTPProvider. A nil client uses http.DefaultClient.
func NewHTTPProvider(cfg *Config, client *http.Client) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{
		client:  client,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		retry:   newRetryPolicy(cfg),
	}
}

func (p *HTTPProvider) GenerateEmbeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if req == nil || req.Text == "" {
		return nil, aierrors.InvalidArgument("text is required")
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	start := time.Now()
	var result EmbeddingResponse
	err = p.retry.do(ctx, func(ctx context.Context) error {
		return p.post(ctx, embeddingsPath, body, &result)
	})
	if err != nil {
		return nil, err
	}

	if len(result.Embedding) == 0 {
		return nil, aierrors.MalformedResponse(fmt.Errorf("response has no embedding"))
	}
	if result.Dimensions == 0 {
		result.Dimensions = len(result.Embedding)
	}
	if result.ProcessingTimeMs == 0 {
		result.ProcessingTimeMs = time.Since(start).Milliseconds()
	}
	return &result, nil
}

func (p *HTTPProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout.HealthCheckTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+healthPath, nil)
	if err != nil {
		return false
	}
	p.authorize(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func (p *HTTPProvider) post(ctx context.Context, path string, body []byte, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	p.authorize(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return aierrors.RequestFailed(0, "AI service request failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return aierrors.RequestFailed(resp.StatusCode, "failed to read AI service response", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return aierrors.RequestFailed(resp.StatusCode,
			fmt.Sprintf("AI service returned status %d", resp.StatusCode),
			fmt.Errorf("%s", truncate(string(data), 200)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return aierrors.MalformedResponse(err)
	}
	return nil
}

func (p *HTTPProvider) authorize(req *http.Request) {
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
