package sqlite

import (
	"context"
	"database/sql"
	"strings"

	"github.com/pkg/errors"

	"github.com/ITHealer/book-m-ai/store"
)

func (d *DB) CreateDuplicateGroup(ctx context.Context, create *store.DuplicateGroup, memberIDs []int32) (*store.DuplicateGroup, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	stmt := "INSERT INTO duplicate_group (creator_id, created_ts, reason, similarity, master_bookmark_id) VALUES (" + placeholders(5) + ") RETURNING id"
	if err := tx.QueryRowContext(ctx, stmt,
		create.CreatorID,
		create.CreatedTs,
		create.Reason,
		create.Similarity,
		create.MasterBookmarkID,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create duplicate group")
	}

	if len(memberIDs) > 0 {
		args := []any{create.ID, create.CreatorID}
		var holders string
		holders, args = appendIDList(args, memberIDs)
		update := "UPDATE bookmark SET duplicate_group_id = " + placeholder(1) + " WHERE creator_id = " + placeholder(2) + " AND id IN (" + holders + ")"
		if _, err := tx.ExecContext(ctx, update, args...); err != nil {
			return nil, errors.Wrap(err, "failed to assign duplicate group members")
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit duplicate group")
	}
	return create, nil
}

func (d *DB) ListDuplicateGroups(ctx context.Context, find *store.FindDuplicateGroup) ([]*store.DuplicateGroup, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.ID; v != nil {
		where, args = append(where, "id = "+placeholder(len(args)+1)), append(args, *v)
	}
	if len(find.IDList) > 0 {
		var holders string
		holders, args = appendIDList(args, find.IDList)
		where = append(where, "id IN ("+holders+")")
	}
	if v := find.CreatorID; v != nil {
		where, args = append(where, "creator_id = "+placeholder(len(args)+1)), append(args, *v)
	}

	query := "SELECT id, creator_id, created_ts, reason, similarity, master_bookmark_id FROM duplicate_group WHERE " + strings.Join(where, " AND ") + " ORDER BY created_ts ASC, id ASC"
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list duplicate groups")
	}
	defer rows.Close()

	list := []*store.DuplicateGroup{}
	for rows.Next() {
		var group store.DuplicateGroup
		var similarity sql.NullFloat64
		var masterID sql.NullInt32
		if err := rows.Scan(&group.ID, &group.CreatorID, &group.CreatedTs, &group.Reason, &similarity, &masterID); err != nil {
			return nil, errors.Wrap(err, "failed to scan duplicate group")
		}
		if similarity.Valid {
			v := similarity.Float64
			group.Similarity = &v
		}
		if masterID.Valid {
			v := masterID.Int32
			group.MasterBookmarkID = &v
		}
		list = append(list, &group)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return list, nil
}

func (d *DB) AssignDuplicateGroupMembers(ctx context.Context, assign *store.AssignDuplicateGroupMembers) error {
	args := []any{assign.GroupID, assign.CreatorID}
	var holders string
	holders, args = appendIDList(args, assign.BookmarkIDList)
	update := "UPDATE bookmark SET duplicate_group_id = " + placeholder(1) + " WHERE creator_id = " + placeholder(2) + " AND id IN (" + holders + ")"
	if _, err := d.db.ExecContext(ctx, update, args...); err != nil {
		return errors.Wrap(err, "failed to assign duplicate group members")
	}
	return nil
}

func (d *DB) DeleteDuplicateGroup(ctx context.Context, delete *store.DeleteDuplicateGroup) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "UPDATE bookmark SET duplicate_group_id = NULL WHERE duplicate_group_id = "+placeholder(1), delete.ID); err != nil {
		return errors.Wrap(err, "failed to ungroup bookmarks")
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM duplicate_group WHERE id = "+placeholder(1), delete.ID); err != nil {
		return errors.Wrap(err, "failed to delete duplicate group")
	}
	return errors.Wrap(tx.Commit(), "failed to commit duplicate group deletion")
}
