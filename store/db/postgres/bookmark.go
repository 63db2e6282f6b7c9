package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/ITHealer/book-m-ai/store"
)

var bookmarkColumns = []string{
	"id", "uid", "creator_id", "created_ts", "updated_ts",
	"url", "domain", "title", "description", "author", "note", "content_text",
	"status", "duplicate_group_id",
}

// bookmarkFields returns the bookmark select list qualified with alias.
func bookmarkFields(alias string) string {
	fields := make([]string, len(bookmarkColumns))
	for i, column := range bookmarkColumns {
		fields[i] = alias + "." + column
	}
	return strings.Join(fields, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBookmark(row rowScanner) (*store.Bookmark, error) {
	var bookmark store.Bookmark
	var groupID sql.NullInt32
	if err := row.Scan(
		&bookmark.ID,
		&bookmark.UID,
		&bookmark.CreatorID,
		&bookmark.CreatedTs,
		&bookmark.UpdatedTs,
		&bookmark.URL,
		&bookmark.Domain,
		&bookmark.Title,
		&bookmark.Description,
		&bookmark.Author,
		&bookmark.Note,
		&bookmark.ContentText,
		&bookmark.Status,
		&groupID,
	); err != nil {
		return nil, err
	}
	if groupID.Valid {
		id := groupID.Int32
		bookmark.DuplicateGroupID = &id
	}
	return &bookmark, nil
}

func (d *DB) CreateBookmark(ctx context.Context, create *store.Bookmark) (*store.Bookmark, error) {
	fields := []string{"uid", "creator_id", "created_ts", "updated_ts", "url", "domain", "title", "description", "author", "note", "content_text", "status", "duplicate_group_id"}
	args := []any{create.UID, create.CreatorID, create.CreatedTs, create.UpdatedTs, create.URL, create.Domain, create.Title, create.Description, create.Author, create.Note, create.ContentText, create.Status, create.DuplicateGroupID}

	stmt := "INSERT INTO bookmark (" + strings.Join(fields, ", ") + ") VALUES (" + placeholders(len(args)) + ") RETURNING id"
	if err := d.db.QueryRowContext(ctx, stmt, args...).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create bookmark")
	}
	return create, nil
}

func (d *DB) ListBookmarks(ctx context.Context, find *store.FindBookmark) ([]*store.Bookmark, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "b.id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.IDList) > 0 {
		var holders string
		holders, args = appendIDList(args, find.IDList)
		where = append(where, "b.id IN ("+holders+")")
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "b.creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.URL; v != nil {
		where, args = append(where, "b.url = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.Domain; v != nil {
		where, args = append(where, "b.domain = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := find.DuplicateGroupID; v != nil {
		where, args = append(where, "b.duplicate_group_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT " + bookmarkFields("b") + " FROM bookmark b WHERE " + strings.Join(where, " AND ") + " ORDER BY b.created_ts ASC, b.id ASC"
	if find.Limit != nil {
		query = fmt.Sprintf("%s LIMIT %d", query, *find.Limit)
		if find.Offset != nil {
			query = fmt.Sprintf("%s OFFSET %d", query, *find.Offset)
		}
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bookmarks")
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

func (d *DB) UpdateBookmark(ctx context.Context, update *store.UpdateBookmark) error {
	set, args := []string{}, []any{}
	if v := update.UpdatedTs; v != nil {
		set, args = append(set, "updated_ts = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Note; v != nil {
		set, args = append(set, "note = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.Status; v != nil {
		set, args = append(set, "status = "+placeholder(len(args)+1)), append(args, *v)
	}
	if v := update.DuplicateGroupID; v != nil {
		set, args = append(set, "duplicate_group_id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(set) == 0 {
		return nil
	}
	args = append(args, update.ID)

	stmt := "UPDATE bookmark SET " + strings.Join(set, ", ") + " WHERE id = " + placeholder(len(args))
	if _, err := d.db.ExecContext(ctx, stmt, args...); err != nil {
		return errors.Wrap(err, "failed to update bookmark")
	}
	return nil
}

func (d *DB) DeleteBookmarks(ctx context.Context, delete *store.DeleteBookmark) (int64, error) {
	holders, args := appendIDList([]any{}, delete.IDList)
	where := []string{"id IN (" + holders + ")"}
	if v := delete.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	result, err := d.db.ExecContext(ctx, "DELETE FROM bookmark WHERE "+strings.Join(where, " AND "), args...)
	if err != nil {
		return 0, errors.Wrap(err, "failed to delete bookmarks")
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to count deleted bookmarks")
	}
	return affected, nil
}

func (d *DB) ListBookmarkKeyCounts(ctx context.Context, find *store.FindBookmarkKeyCount) ([]*store.BookmarkKeyCount, error) {
	// The key is validated by the store against a fixed set of column names.
	column := string(find.Key)
	query := `
		SELECT ` + column + `, COUNT(*)
		FROM bookmark
		WHERE creator_id = ` + placeholder(1) + ` AND ` + column + ` <> ''
		GROUP BY ` + column + `
		HAVING COUNT(*) >= ` + placeholder(2) + `
		ORDER BY MIN(created_ts) ASC, ` + column + ` ASC`

	rows, err := d.db.QueryContext(ctx, query, find.CreatorID, find.MinCount)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list bookmark key counts")
	}
	defer rows.Close()

	list := []*store.BookmarkKeyCount{}
	for rows.Next() {
		var count store.BookmarkKeyCount
		if err := rows.Scan(&count.Value, &count.Count); err != nil {
			return nil, errors.Wrap(err, "failed to scan bookmark key count")
		}
		list = append(list, &count)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}
