package sqlite

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ITHealer/book-m-ai/store"
)

func (d *DB) CreateTag(ctx context.Context, create *store.Tag) (*store.Tag, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	stmt := "INSERT INTO tag (creator_id, name, created_ts) VALUES (" + placeholders(3) + ") RETURNING id"
	if err := d.db.QueryRowContext(ctx, stmt, create.CreatorID, create.Name, create.CreatedTs).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create tag")
	}
	return create, nil
}

func (d *DB) ListBookmarkTags(ctx context.Context, find *store.FindBookmarkTag) ([]*store.BookmarkTag, error) {
	holders, args := appendIDList([]any{}, find.BookmarkIDList)
	query := "SELECT bookmark_id, tag_id FROM bookmark_tag WHERE bookmark_id IN (" + holders + ") ORDER BY bookmark_id ASC, tag_id ASC"

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bookmark tags")
	}
	defer rows.Close()

	list := []*store.BookmarkTag{}
	for rows.Next() {
		var bookmarkTag store.BookmarkTag
		if err := rows.Scan(&bookmarkTag.BookmarkID, &bookmarkTag.TagID); err != nil {
			return nil, errors.Wrap(err, "failed to scan bookmark tag")
		}
		list = append(list, &bookmarkTag)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) UpsertBookmarkTag(ctx context.Context, upsert *store.BookmarkTag) error {
	stmt := "INSERT INTO bookmark_tag (bookmark_id, tag_id) VALUES (" + placeholders(2) + ") ON CONFLICT (bookmark_id, tag_id) DO NOTHING"
	if _, err := d.db.ExecContext(ctx, stmt, upsert.BookmarkID, upsert.TagID); err != nil {
		return errors.Wrap(err, "failed to upsert bookmark tag")
	}
	return nil
}
