package ai

import (
	"context"
	"errors"
	"time"

	"github.com/sashabaranov/go-openai"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
	"github.com/ITHealer/book-m-ai/plugin/ai/timeout"
)

// OpenAIProvider embeds text through an OpenAI compatible API.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	retry      retryPolicy
}

// NewOpenAIProvider creates a new OpenAIProvider.
func NewOpenAIProvider(cfg *Config) *OpenAIProvider {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	return &OpenAIProvider{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		retry:      newRetryPolicy(cfg),
	}
}

func (p *OpenAIProvider) GenerateEmbeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if req == nil || req.Text == "" {
		return nil, aierrors.InvalidArgument("text is required")
	}

	start := time.Now()
	var result *EmbeddingResponse
	err := p.retry.do(ctx, func(ctx context.Context) error {
		resp, err := p.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input:      []string{req.Text},
			Model:      openai.EmbeddingModel(p.model),
			Dimensions: p.dimensions,
		})
		if err != nil {
			return classifyOpenAIError(err)
		}
		if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
			return aierrors.MalformedResponse(errors.New("empty embedding response"))
		}

		result = &EmbeddingResponse{
			Embedding:  resp.Data[0].Embedding,
			Model:      string(resp.Model),
			Dimensions: len(resp.Data[0].Embedding),
			TokensUsed: resp.Usage.TotalTokens,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Model == "" {
		result.Model = p.model
	}
	result.ProcessingTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func (p *OpenAIProvider) HealthCheck(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout.HealthCheckTimeout)
	defer cancel()

	_, err := p.client.ListModels(ctx)
	return err == nil
}

// classifyOpenAIError keeps the upstream status so 4xx answers are not retried.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return aierrors.RequestFailed(apiErr.HTTPStatusCode, apiErr.Message, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return aierrors.RequestFailed(reqErr.HTTPStatusCode, "embedding request failed", err)
	}
	return aierrors.RequestFailed(0, "embedding request failed", err)
}
