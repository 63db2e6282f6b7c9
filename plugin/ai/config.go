package ai

import (
	"errors"
	"fmt"
	"time"

	"github.com/ITHealer/book-m-ai/internal/profile"
	"github.com/ITHealer/book-m-ai/plugin/ai/timeout"
)

// Provider names.
const (
	ProviderOpenAI = "openai"
	ProviderHTTP   = "http"
	ProviderMock   = "mock"
)

// Config represents the embedding provider configuration.
type Config struct {
	Provider   string // openai, http, mock
	Model      string // text-embedding-3-small
	Dimensions int    // 1536
	APIKey     string
	BaseURL    string

	Timeout   time.Duration // per request, default 30s
	Retries   int           // additional attempts after the first, default 2
	RateLimit float64       // outbound requests per second, 0 disables
	Debug     bool
}

// NewConfigFromProfile creates AI config from profile.
func NewConfigFromProfile(p *profile.Profile) *Config {
	cfg := &Config{
		Provider:   p.AIProviderName(),
		Model:      p.AIEmbeddingModel,
		Dimensions: p.AIEmbeddingDimensions,
		APIKey:     p.AIAPIKey,
		BaseURL:    p.AIBaseURL,
		Timeout:    p.AITimeout,
		Retries:    p.AIRetries,
		RateLimit:  p.AIRateLimit,
		Debug:      p.AIDebug,
	}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Dimensions <= 0 {
		c.Dimensions = profile.DefaultAIEmbeddingDimensions
	}
	if c.Timeout <= 0 {
		c.Timeout = timeout.EmbeddingTimeout
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.Model == "" {
		c.Model = profile.DefaultAIEmbeddingModel
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderMock:
	case ProviderOpenAI:
		if c.APIKey == "" {
			return errors.New("embedding API key is required for the openai provider")
		}
	case ProviderHTTP:
		if c.BaseURL == "" {
			return errors.New("AI service base URL is required for the http provider")
		}
	default:
		return fmt.Errorf("unsupported embedding provider: %s", c.Provider)
	}

	if c.Dimensions <= 0 {
		return errors.New("embedding dimensions must be positive")
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}
