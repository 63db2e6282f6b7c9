package ai

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"time"
	"unicode"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
)

// MockModel is the model name reported by MockProvider.
const MockModel = "mock-embedding-v1"

// MockProvider produces deterministic bag-of-words embeddings without a network call.
// Texts sharing words get similar vectors, which keeps semantic search meaningful in
// demo mode and tests.
type MockProvider struct {
	dimensions int
}

// NewMockProvider creates a new MockProvider.
func NewMockProvider(dimensions int) *MockProvider {
	if dimensions <= 0 {
		dimensions = 1536
	}
	return &MockProvider{dimensions: dimensions}
}

func (p *MockProvider) GenerateEmbeddings(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, aierrors.Wrap(err, aierrors.ErrCodeRequestFailed, "request canceled")
	}
	if req == nil || req.Text == "" {
		return nil, aierrors.InvalidArgument("text is required")
	}

	start := time.Now()
	tokens := strings.FieldsFunc(strings.ToLower(req.Text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	vector := make([]float32, p.dimensions)
	for _, token := range tokens {
		h := fnv.New64a()
		_, _ = h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dimensions))
		// Hash sign spreads collisions instead of always accumulating.
		if sum&(1<<63) != 0 {
			vector[idx] -= 1
		} else {
			vector[idx] += 1
		}
	}
	normalize(vector)

	return &EmbeddingResponse{
		Embedding:        vector,
		Model:            MockModel,
		Dimensions:       p.dimensions,
		TokensUsed:       len(tokens),
		ProcessingTimeMs: time.Since(start).Milliseconds(),
	}, nil
}

func (p *MockProvider) HealthCheck(_ context.Context) bool {
	return true
}

func normalize(v []float32) {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
}
