// Package search ranks a user's bookmarks against a query using lexical matching,
// embedding similarity, or a weighted fusion of both.
package search

import (
	"sort"

	"github.com/ITHealer/book-m-ai/store"
)

// DefaultLimit is used when a caller passes a non-positive limit.
const DefaultLimit = 10

// Result is a ranked bookmark.
// Similarity is the semantic component; Score is the final ranking value.
type Result struct {
	Bookmark   *store.Bookmark `json:"bookmark"`
	Similarity float64         `json:"similarity"`
	Score      float64         `json:"score"`
}

// rank sorts by descending score keeping input order on ties, then truncates.
func rank(results []*Result, limit int) []*Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if limit > 0 && len(results) > limit {
		results = results[:limit]
	}
	return results
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return limit
}
