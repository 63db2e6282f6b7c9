// Package timeout defines centralized timeout constants for AI operations.
package timeout

import "time"

const (
	// EmbeddingTimeout is the default timeout for a single embedding request.
	EmbeddingTimeout = 30 * time.Second

	// HealthCheckTimeout bounds a provider health probe.
	HealthCheckTimeout = 5 * time.Second

	// MaxRetryBackoff caps the exponential backoff between retries.
	MaxRetryBackoff = 5 * time.Second

	// BaseRetryBackoff is the wait before the first retry; it doubles per attempt.
	BaseRetryBackoff = time.Second
)
