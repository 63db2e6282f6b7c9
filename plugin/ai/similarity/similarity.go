// Package similarity provides the vector and text similarity measures used by
// search and duplicate detection.
package similarity

import (
	"math"
	"strings"

	aierrors "github.com/ITHealer/book-m-ai/internal/errors"
)

// CosineSimilarity calculates cosine similarity between two vectors.
// Vectors of different length fail with a DIMENSION_MISMATCH error.
// A zero-norm vector is maximally dissimilar and scores 0.
func CosineSimilarity(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, aierrors.DimensionMismatch(len(a), len(b))
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// JaccardSimilarity compares the lower-cased whitespace token sets of two texts
// and returns |A∩B| / |A∪B| as a percentage in [0, 100].
// Two texts without tokens score 0.
func JaccardSimilarity(textA, textB string) float64 {
	setA := tokenSet(textA)
	setB := tokenSet(textB)

	var intersection int
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}

	return float64(intersection) / float64(union) * 100
}

func tokenSet(text string) map[string]struct{} {
	tokens := strings.Fields(strings.ToLower(text))
	set := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		set[token] = struct{}{}
	}
	return set
}
