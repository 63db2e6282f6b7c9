package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a specific error type for similarity and dedup operations.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeInvalidWeights indicates hybrid search weights that do not sum to 1.
	ErrCodeInvalidWeights ErrorCode = "INVALID_WEIGHTS"
	// ErrCodeNotFoundOrUnauthorized indicates the entity is absent or owned by someone else.
	ErrCodeNotFoundOrUnauthorized ErrorCode = "NOT_FOUND_OR_UNAUTHORIZED"
	// ErrCodeEmbeddingUnavailable indicates the embedding provider could not serve the request.
	ErrCodeEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"
	// ErrCodeDimensionMismatch indicates two vectors of different length were compared.
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"
	// ErrCodeServiceUnavailable indicates the service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
	// ErrCodeRequestFailed indicates a network or non-2xx failure talking to a dependency.
	ErrCodeRequestFailed ErrorCode = "REQUEST_FAILED"
	// ErrCodeMalformedResponse indicates a dependency answered with an unusable body.
	ErrCodeMalformedResponse ErrorCode = "MALFORMED_RESPONSE"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
)

// AIError represents a structured error for AI and dedup operations.
type AIError struct {
	Code       ErrorCode
	Message    string
	Cause      error
	StatusCode int // upstream HTTP status, 0 when not applicable
	Context    map[string]interface{}
}

// Error implements the error interface.
func (e *AIError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AIError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AIError) WithContext(key string, value interface{}) *AIError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// GetCode returns the error code.
func (e *AIError) GetCode() ErrorCode {
	return e.Code
}

// Convenience constructors for common error types.

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string) *AIError {
	return &AIError{Code: ErrCodeInvalidArgument, Message: msg}
}

// InvalidWeights creates an invalid weights error.
func InvalidWeights(fuzzyWeight, semanticWeight float64) *AIError {
	return &AIError{
		Code:    ErrCodeInvalidWeights,
		Message: fmt.Sprintf("fuzzy weight %.2f and semantic weight %.2f must sum to 1.0", fuzzyWeight, semanticWeight),
	}
}

// NotFoundOrUnauthorized creates a not found error for the given entity.
func NotFoundOrUnauthorized(entity string, id int32) *AIError {
	return &AIError{
		Code:    ErrCodeNotFoundOrUnauthorized,
		Message: fmt.Sprintf("%s %d not found or unauthorized", entity, id),
	}
}

// EmbeddingUnavailable creates an embedding unavailable error.
func EmbeddingUnavailable(cause error) *AIError {
	return &AIError{Code: ErrCodeEmbeddingUnavailable, Message: "embedding provider unavailable", Cause: cause}
}

// DimensionMismatch creates a dimension mismatch error.
func DimensionMismatch(a, b int) *AIError {
	return &AIError{
		Code:    ErrCodeDimensionMismatch,
		Message: fmt.Sprintf("vector dimensions differ: %d vs %d", a, b),
	}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string) *AIError {
	return &AIError{Code: ErrCodeServiceUnavailable, Message: msg}
}

// Timeout creates a timeout error.
func Timeout(msg string) *AIError {
	return &AIError{Code: ErrCodeTimeout, Message: msg}
}

// RequestFailed creates a request failed error carrying the upstream status.
func RequestFailed(statusCode int, msg string, cause error) *AIError {
	return &AIError{Code: ErrCodeRequestFailed, Message: msg, Cause: cause, StatusCode: statusCode}
}

// MalformedResponse creates a malformed response error.
func MalformedResponse(cause error) *AIError {
	return &AIError{Code: ErrCodeMalformedResponse, Message: "malformed response body", Cause: cause}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *AIError {
	return &AIError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// Wrap wraps an existing error with additional context.
func Wrap(cause error, code ErrorCode, msg string) *AIError {
	return &AIError{Code: code, Message: msg, Cause: cause}
}

// IsCode checks if an error, or anything it wraps, is of a specific code.
func IsCode(err error, code ErrorCode) bool {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the error is not an AIError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var aiErr *AIError
	if stderrors.As(err, &aiErr) {
		return aiErr.Code
	}
	return defaultCode
}

// HTTPStatus maps an error to the status the API layer reports.
func HTTPStatus(err error) int {
	switch GetCodeFromError(err, "") {
	case ErrCodeInvalidArgument, ErrCodeInvalidWeights:
		return http.StatusBadRequest
	case ErrCodeNotFoundOrUnauthorized:
		return http.StatusNotFound
	case ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case ErrCodeEmbeddingUnavailable, ErrCodeServiceUnavailable, ErrCodeTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
