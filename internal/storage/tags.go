package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// InsertTag writes a new tag row.
func InsertTag(ctx context.Context, ex Execer, t *Tag) error {
	_, err := builder.Insert("tags").
		Columns("id", "name", "path", "parent_id", "created_at", "updated_at").
		Values(t.ID, t.Name, t.Path, t.ParentID, formatTime(t.CreatedAt), formatTime(t.UpdatedAt)).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert tag: %w", err)
	}
	return nil
}

func scanTag(row *sql.Row) (*Tag, error) {
	var t Tag
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.Name, &t.Path, &t.ParentID, &createdAt, &updatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

// GetTagByName fetches one tag by its exact name.
func GetTagByName(ctx context.Context, q Queryer, name string) (*Tag, error) {
	row := builder.Select("id", "name", "path", "parent_id", "created_at", "updated_at").
		From("tags").Where(sq.Eq{"name": name}).RunWith(q).QueryRowContext(ctx)
	return scanTag(row)
}

// GetTagByID fetches one tag by id.
func GetTagByID(ctx context.Context, q Queryer, id string) (*Tag, error) {
	row := builder.Select("id", "name", "path", "parent_id", "created_at", "updated_at").
		From("tags").Where(sq.Eq{"id": id}).RunWith(q).QueryRowContext(ctx)
	return scanTag(row)
}

// ReplaceFileTags deletes every file_tags row for fileID and inserts tagIDs.
func ReplaceFileTags(ctx context.Context, ex Execer, fileID string, tagIDs []string) error {
	if _, err := builder.Delete("file_tags").Where(sq.Eq{"file_id": fileID}).
		RunWith(ex).ExecContext(ctx); err != nil {
		return fmt.Errorf("clear file tags: %w", err)
	}
	for _, tagID := range tagIDs {
		_, err := builder.Insert("file_tags").Columns("file_id", "tag_id").
			Values(fileID, tagID).RunWith(ex).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert file tag: %w", err)
		}
	}
	return nil
}

// ListTagsForFile returns a file's tags ordered by name.
func ListTagsForFile(ctx context.Context, q Queryer, fileID string) ([]Tag, error) {
	rows, err := builder.Select("t.id", "t.name", "t.path", "t.parent_id", "t.created_at", "t.updated_at").
		From("tags t").
		Join("file_tags ft ON ft.tag_id = t.id").
		Where(sq.Eq{"ft.file_id": fileID}).
		OrderBy("t.name").
		RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tags for file %s: %w", fileID, err)
	}
	defer rows.Close()

	var tags []Tag
	for rows.Next() {
		var t Tag
		var createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Name, &t.Path, &t.ParentID, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		if t.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}
