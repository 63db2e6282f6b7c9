package search

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/ITHealer/book-m-ai/plugin/ai"
	"github.com/ITHealer/book-m-ai/store"
)

const (
	// EmbedChunkSize bounds the concurrent provider calls of a batch.
	EmbedChunkSize = 5

	maxContentRunes = 1000
)

// EmbedStatus is the outcome of generating one embedding.
type EmbedStatus string

const (
	EmbedStatusSucceeded EmbedStatus = "succeeded"
	// EmbedStatusSkipped means the provider was unavailable or the bookmark has no text.
	EmbedStatusSkipped EmbedStatus = "skipped"
	// EmbedStatusFailed means the bookmark could not be loaded or the embedding not stored.
	EmbedStatusFailed EmbedStatus = "failed"
)

// EmbedResult describes what happened to one bookmark.
type EmbedResult struct {
	BookmarkID int32       `json:"bookmarkId"`
	Status     EmbedStatus `json:"status"`
	Model      string      `json:"model,omitempty"`
	Dimensions int         `json:"dimensions,omitempty"`
	Reason     string      `json:"reason,omitempty"`
}

// Embedder generates and stores bookmark embeddings. Generation is best effort:
// failures are logged and reported in the result, never returned as errors.
type Embedder struct {
	store    *store.Store
	provider ai.EmbeddingProvider
}

// NewEmbedder creates a new Embedder.
func NewEmbedder(st *store.Store, provider ai.EmbeddingProvider) *Embedder {
	return &Embedder{store: st, provider: provider}
}

// GenerateEmbedding embeds one bookmark and upserts its embedding row.
func (e *Embedder) GenerateEmbedding(ctx context.Context, bookmarkID int32) *EmbedResult {
	result := &EmbedResult{BookmarkID: bookmarkID}

	bookmark, err := e.store.GetBookmark(ctx, &store.FindBookmark{ID: &bookmarkID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to load bookmark for embedding", "bookmark_id", bookmarkID, "error", err)
		return result.fail(EmbedStatusFailed, err.Error())
	}
	if bookmark == nil {
		return result.fail(EmbedStatusFailed, "bookmark not found")
	}

	text := EmbeddingText(bookmark)
	if text == "" {
		return result.fail(EmbedStatusSkipped, "bookmark has no text to embed")
	}

	resp, err := e.provider.GenerateEmbeddings(ctx, &ai.EmbeddingRequest{Text: text})
	if err != nil {
		slog.WarnContext(ctx, "embedding provider unavailable", "bookmark_id", bookmarkID, "error", err)
		return result.fail(EmbedStatusSkipped, err.Error())
	}

	stored, err := e.store.UpsertBookmarkEmbedding(ctx, &store.BookmarkEmbedding{
		BookmarkID: bookmarkID,
		Embedding:  resp.Embedding,
		Model:      resp.Model,
		Dimensions: resp.Dimensions,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to store bookmark embedding", "bookmark_id", bookmarkID, "error", err)
		return result.fail(EmbedStatusFailed, err.Error())
	}

	slog.DebugContext(ctx, "bookmark embedding generated",
		"bookmark_id", bookmarkID,
		"model", stored.Model,
		"dimensions", stored.Dimensions,
		"tokens", resp.TokensUsed)

	result.Status = EmbedStatusSucceeded
	result.Model = stored.Model
	result.Dimensions = stored.Dimensions
	return result
}

// GenerateEmbeddings embeds bookmarks in chunks of EmbedChunkSize. Items of a chunk run
// concurrently and chunks run one after another. Results follow the order of bookmarkIDs.
func (e *Embedder) GenerateEmbeddings(ctx context.Context, bookmarkIDs []int32) []*EmbedResult {
	results := make([]*EmbedResult, len(bookmarkIDs))

	for start := 0; start < len(bookmarkIDs); start += EmbedChunkSize {
		end := min(start+EmbedChunkSize, len(bookmarkIDs))

		var g errgroup.Group
		for i := start; i < end; i++ {
			i := i
			g.Go(func() error {
				results[i] = e.GenerateEmbedding(ctx, bookmarkIDs[i])
				return nil
			})
		}
		_ = g.Wait()
	}

	return results
}

// DeleteEmbedding removes the embedding of a bookmark.
func (e *Embedder) DeleteEmbedding(ctx context.Context, bookmarkID int32) error {
	if err := e.store.DeleteBookmarkEmbedding(ctx, bookmarkID); err != nil {
		return fmt.Errorf("failed to delete embedding of bookmark %d: %w", bookmarkID, err)
	}
	return nil
}

// EmbeddingText joins the non-empty title, description, author and the first
// 1000 characters of the content text with single spaces.
func EmbeddingText(bookmark *store.Bookmark) string {
	content := bookmark.ContentText
	if runes := []rune(content); len(runes) > maxContentRunes {
		content = string(runes[:maxContentRunes])
	}

	parts := make([]string, 0, 4)
	for _, field := range []string{bookmark.Title, bookmark.Description, bookmark.Author, content} {
		if strings.TrimSpace(field) != "" {
			parts = append(parts, field)
		}
	}
	return strings.Join(parts, " ")
}

func (r *EmbedResult) fail(status EmbedStatus, reason string) *EmbedResult {
	r.Status = status
	r.Reason = reason
	return r
}
