package search

import (
	"context"
	"fmt"
	"strings"

	"github.com/ITHealer/book-m-ai/store"
)

// Lexical score weights.
const (
	titlePhraseScore       = 1.0
	descriptionPhraseScore = 0.5
	titleTokenScore        = 0.3
	descriptionTokenScore  = 0.1
	maxFuzzyScore          = 1.0
)

// FuzzySearcher scores bookmarks by substring matches of the query in title and description.
type FuzzySearcher struct {
	store *store.Store
}

// NewFuzzySearcher creates a new FuzzySearcher.
func NewFuzzySearcher(st *store.Store) *FuzzySearcher {
	return &FuzzySearcher{store: st}
}

// Search returns at most limit bookmarks of userID with a positive lexical score.
// The similarity of every result is 0.
func (s *FuzzySearcher) Search(ctx context.Context, query string, userID int32, limit int) ([]*Result, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil, nil
	}

	bookmarks, err := s.store.ListBookmarks(ctx, &store.FindBookmark{CreatorID: &userID})
	if err != nil {
		return nil, fmt.Errorf("failed to list bookmarks: %w", err)
	}

	tokens := strings.Fields(query)
	results := make([]*Result, 0)
	for _, bookmark := range bookmarks {
		score := FuzzyScore(query, tokens, bookmark)
		if score <= 0 {
			continue
		}
		results = append(results, &Result{Bookmark: bookmark, Score: score})
	}

	return rank(results, normalizeLimit(limit)), nil
}

// FuzzyScore scores one bookmark. query must already be lower-cased and tokens
// are its whitespace-separated fields.
func FuzzyScore(query string, tokens []string, bookmark *store.Bookmark) float64 {
	title := strings.ToLower(bookmark.Title)
	description := strings.ToLower(bookmark.Description)

	var score float64
	if strings.Contains(title, query) {
		score += titlePhraseScore
	}
	if strings.Contains(description, query) {
		score += descriptionPhraseScore
	}
	for _, token := range tokens {
		if strings.Contains(title, token) {
			score += titleTokenScore
		}
		if strings.Contains(description, token) {
			score += descriptionTokenScore
		}
	}

	if score > maxFuzzyScore {
		return maxFuzzyScore
	}
	return score
}
