package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/pgvector/pgvector-go"
	"github.com/pkg/errors"

	"github.com/ITHealer/book-m-ai/store"
)

// UpsertBookmarkEmbedding inserts or overwrites the embedding of a bookmark.
func (d *DB) UpsertBookmarkEmbedding(ctx context.Context, embedding *store.BookmarkEmbedding) (*store.BookmarkEmbedding, error) {
	stmt := `
		INSERT INTO bookmark_embedding (bookmark_id, embedding, model, dimensions, created_ts, updated_ts)
		VALUES (` + placeholders(6) + `)
		ON CONFLICT (bookmark_id)
		DO UPDATE SET
			embedding = excluded.embedding,
			model = excluded.model,
			dimensions = excluded.dimensions,
			updated_ts = excluded.updated_ts
		RETURNING id, created_ts, updated_ts
	`

	vector := pgvector.NewVector(embedding.Embedding)
	err := d.db.QueryRowContext(ctx, stmt,
		embedding.BookmarkID,
		vector,
		embedding.Model,
		embedding.Dimensions,
		embedding.CreatedTs,
		embedding.UpdatedTs,
	).Scan(&embedding.ID, &embedding.CreatedTs, &embedding.UpdatedTs)
	if err != nil {
		return nil, errors.Wrap(err, "failed to upsert bookmark embedding")
	}

	return embedding, nil
}

// ListBookmarkEmbeddings lists bookmark embeddings.
func (d *DB) ListBookmarkEmbeddings(ctx context.Context, find *store.FindBookmarkEmbedding) ([]*store.BookmarkEmbedding, error) {
	where, args := []string{"1 = 1"}, []any{}

	if find.BookmarkID != nil {
		where, args = append(where, "e.bookmark_id = "+placeholder(len(args)+1)), append(args, *find.BookmarkID)
	}
	if find.CreatorID != nil {
		where, args = append(where, "b.creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}

	query := `
		SELECT e.id, e.bookmark_id, e.embedding, e.model, e.dimensions, e.created_ts, e.updated_ts
		FROM bookmark_embedding e
		INNER JOIN bookmark b ON b.id = e.bookmark_id
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY b.created_ts ASC, b.id ASC
	`

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bookmark embeddings")
	}
	defer rows.Close()

	list := []*store.BookmarkEmbedding{}
	for rows.Next() {
		var embedding store.BookmarkEmbedding
		var vector pgvector.Vector
		err := rows.Scan(
			&embedding.ID,
			&embedding.BookmarkID,
			&vector,
			&embedding.Model,
			&embedding.Dimensions,
			&embedding.CreatedTs,
			&embedding.UpdatedTs,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan bookmark embedding")
		}
		embedding.Embedding = vector.Slice()
		list = append(list, &embedding)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return list, nil
}

// DeleteBookmarkEmbedding deletes a bookmark embedding.
func (d *DB) DeleteBookmarkEmbedding(ctx context.Context, bookmarkID int32) error {
	stmt := `DELETE FROM bookmark_embedding WHERE bookmark_id = ` + placeholder(1)
	if _, err := d.db.ExecContext(ctx, stmt, bookmarkID); err != nil {
		return errors.Wrap(err, "failed to delete bookmark embedding")
	}
	return nil
}

// FindBookmarksWithoutEmbedding finds bookmarks that have no embedding row.
func (d *DB) FindBookmarksWithoutEmbedding(ctx context.Context, find *store.FindBookmarksWithoutEmbedding) ([]*store.Bookmark, error) {
	where, args := []string{"e.id IS NULL"}, []any{}
	if find.CreatorID != nil {
		where, args = append(where, "b.creator_id = "+placeholder(len(args)+1)), append(args, *find.CreatorID)
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM bookmark b
		LEFT JOIN bookmark_embedding e ON e.bookmark_id = b.id
		WHERE %s
		ORDER BY b.created_ts ASC, b.id ASC
		LIMIT %d
	`, bookmarkFields("b"), strings.Join(where, " AND "), find.Limit)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to find bookmarks without embedding")
	}
	defer rows.Close()

	list := []*store.Bookmark{}
	for rows.Next() {
		bookmark, err := scanBookmark(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan bookmark")
		}
		list = append(list, bookmark)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
