package profile

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start main server.
type Profile struct {
	// Mode can be "prod" or "dev" or "demo"
	Mode string
	// Addr is the binding address for server
	Addr string
	// Port is the binding port for server
	Port int
	// Data is the data directory
	Data string
	// DSN points to where healer stores its own data
	DSN string
	// Driver is the database driver (sqlite or postgres)
	Driver string
	// Version is the current version of server
	Version string

	// AI Configuration
	AIProvider            string        // HEALER_AI_PROVIDER (openai, http, mock; default: openai)
	AIUseMock             bool          // HEALER_AI_USE_MOCK forces the mock provider
	AIBaseURL             string        // HEALER_AI_BASE_URL (default: https://api.openai.com/v1)
	AIAPIKey              string        // HEALER_AI_API_KEY
	AIEmbeddingModel      string        // HEALER_AI_EMBEDDING_MODEL (default: text-embedding-3-small)
	AIEmbeddingDimensions int           // HEALER_AI_EMBEDDING_DIMENSIONS (default: 1536)
	AITimeout             time.Duration // HEALER_AI_TIMEOUT (default: 30s)
	AIRetries             int           // HEALER_AI_RETRIES (default: 2)
	AIRateLimit           float64       // HEALER_AI_RATE_LIMIT requests per second, 0 disables
	AIDebug               bool          // HEALER_AI_DEBUG

	// Embedding backfill worker
	EmbeddingWorkerEnabled   bool          // HEALER_EMBEDDING_WORKER_ENABLED (default: true)
	EmbeddingWorkerInterval  time.Duration // HEALER_EMBEDDING_WORKER_INTERVAL (default: 30m)
	EmbeddingWorkerBatchSize int           // HEALER_EMBEDDING_WORKER_BATCH_SIZE (default: 50)
}

const (
	DefaultAIProvider               = "openai"
	DefaultAIBaseURL                = "https://api.openai.com/v1"
	DefaultAIEmbeddingModel         = "text-embedding-3-small"
	DefaultAIEmbeddingDimensions    = 1536
	DefaultAITimeout                = 30 * time.Second
	DefaultAIRetries                = 2
	DefaultEmbeddingWorkerInterval  = 30 * time.Minute
	DefaultEmbeddingWorkerBatchSize = 50
)

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FromEnv loads configuration from HEALER_* environment variables.
// Values that are already set on the profile are kept unless the variable is present.
func (p *Profile) FromEnv() {
	getBool := func(key string, defaultValue bool) bool {
		val := os.Getenv(key)
		if val == "" {
			return defaultValue
		}
		return val == "true" || val == "1"
	}
	getInt := func(key string, defaultValue int) int {
		if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
			return n
		}
		return defaultValue
	}
	getDuration := func(key string, defaultValue time.Duration) time.Duration {
		val := os.Getenv(key)
		if val == "" {
			return defaultValue
		}
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Bare numbers are milliseconds.
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
		slog.Warn("invalid duration in environment, using default", "key", key, "value", val)
		return defaultValue
	}

	p.AIProvider = getEnvOrDefault("HEALER_AI_PROVIDER", orString(p.AIProvider, DefaultAIProvider))
	p.AIUseMock = getBool("HEALER_AI_USE_MOCK", p.AIUseMock)
	p.AIBaseURL = getEnvOrDefault("HEALER_AI_BASE_URL", orString(p.AIBaseURL, DefaultAIBaseURL))
	p.AIAPIKey = getEnvOrDefault("HEALER_AI_API_KEY", p.AIAPIKey)
	p.AIEmbeddingModel = getEnvOrDefault("HEALER_AI_EMBEDDING_MODEL", orString(p.AIEmbeddingModel, DefaultAIEmbeddingModel))
	p.AIEmbeddingDimensions = getInt("HEALER_AI_EMBEDDING_DIMENSIONS", orInt(p.AIEmbeddingDimensions, DefaultAIEmbeddingDimensions))
	p.AITimeout = getDuration("HEALER_AI_TIMEOUT", orDuration(p.AITimeout, DefaultAITimeout))
	p.AIRetries = getInt("HEALER_AI_RETRIES", orInt(p.AIRetries, DefaultAIRetries))
	if rl, err := strconv.ParseFloat(os.Getenv("HEALER_AI_RATE_LIMIT"), 64); err == nil {
		p.AIRateLimit = rl
	}
	p.AIDebug = getBool("HEALER_AI_DEBUG", p.AIDebug)

	p.EmbeddingWorkerEnabled = getBool("HEALER_EMBEDDING_WORKER_ENABLED", true)
	p.EmbeddingWorkerInterval = getDuration("HEALER_EMBEDDING_WORKER_INTERVAL", orDuration(p.EmbeddingWorkerInterval, DefaultEmbeddingWorkerInterval))
	p.EmbeddingWorkerBatchSize = getInt("HEALER_EMBEDDING_WORKER_BATCH_SIZE", orInt(p.EmbeddingWorkerBatchSize, DefaultEmbeddingWorkerBatchSize))
}

// AIProviderName returns the provider that should actually be constructed.
func (p *Profile) AIProviderName() string {
	if p.AIUseMock {
		return "mock"
	}
	return p.AIProvider
}

func orString(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func orInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func orDuration(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func checkDataDir(dataDir string) (string, error) {
	// Convert to absolute path if relative path is supplied.
	if !filepath.IsAbs(dataDir) {
		relativeDir := filepath.Join(filepath.Dir(os.Args[0]), dataDir)
		absDir, err := filepath.Abs(relativeDir)
		if err != nil {
			return "", err
		}
		dataDir = absDir
	}

	// Trim trailing \ or / in case user supplies
	dataDir = strings.TrimRight(dataDir, "\\/")
	if _, err := os.Stat(dataDir); err != nil {
		return "", errors.Wrapf(err, "unable to access data folder %s", dataDir)
	}
	return dataDir, nil
}

func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "sqlite" && p.Driver != "postgres" {
		return errors.Errorf("unsupported driver: %s", p.Driver)
	}

	if p.Mode == "prod" && p.Data == "" {
		if runtime.GOOS == "windows" {
			p.Data = filepath.Join(os.Getenv("ProgramData"), "healer")
			if _, err := os.Stat(p.Data); os.IsNotExist(err) {
				if err := os.MkdirAll(p.Data, 0770); err != nil {
					slog.Error("failed to create data directory", slog.String("data", p.Data), slog.String("error", err.Error()))
					return err
				}
			}
		} else {
			p.Data = "/var/opt/healer"
		}
	}

	dataDir, err := checkDataDir(p.Data)
	if err != nil {
		slog.Error("failed to check dsn", slog.String("data", dataDir), slog.String("error", err.Error()))
		return err
	}

	p.Data = dataDir
	if p.Driver == "sqlite" && p.DSN == "" {
		dbFile := fmt.Sprintf("healer_%s.db", p.Mode)
		p.DSN = filepath.Join(dataDir, dbFile)
	}
	if p.Driver == "postgres" && p.DSN == "" {
		return errors.New("dsn is required for postgres driver")
	}

	switch p.AIProviderName() {
	case "openai", "http", "mock":
	default:
		return errors.Errorf("unsupported AI provider: %s", p.AIProvider)
	}

	return nil
}
