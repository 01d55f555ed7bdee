package storage

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ErrSelfLink is returned when a caller tries to link a file to itself.
var ErrSelfLink = errors.New("storage: a file cannot be linked to itself")

// InsertFileLink records a directed relation between two files.
func InsertFileLink(ctx context.Context, ex Execer, link *FileLink) error {
	if link.FileIDA == link.FileIDB {
		return ErrSelfLink
	}
	_, err := builder.Insert("file_links").
		Columns("file_id_a", "file_id_b", "relation_type", "created_at").
		Values(link.FileIDA, link.FileIDB, link.RelationType, formatTime(link.CreatedAt)).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert file link: %w", err)
	}
	return nil
}

// DeleteFileLink removes one link, in whichever direction it was recorded.
func DeleteFileLink(ctx context.Context, ex Execer, fileIDA, fileIDB, relationType string) error {
	_, err := builder.Delete("file_links").
		Where(sq.Or{
			sq.Eq{"file_id_a": fileIDA, "file_id_b": fileIDB, "relation_type": relationType},
			sq.Eq{"file_id_a": fileIDB, "file_id_b": fileIDA, "relation_type": relationType},
		}).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete file link: %w", err)
	}
	return nil
}

// ListLinksForFile returns every link touching fileID, in either direction.
func ListLinksForFile(ctx context.Context, q Queryer, fileID string) ([]FileLink, error) {
	rows, err := builder.Select("file_id_a", "file_id_b", "relation_type", "created_at").
		From("file_links").
		Where(sq.Or{sq.Eq{"file_id_a": fileID}, sq.Eq{"file_id_b": fileID}}).
		RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list links for file %s: %w", fileID, err)
	}
	defer rows.Close()

	var links []FileLink
	for rows.Next() {
		var l FileLink
		var createdAt string
		if err := rows.Scan(&l.FileIDA, &l.FileIDB, &l.RelationType, &createdAt); err != nil {
			return nil, fmt.Errorf("scan file link: %w", err)
		}
		if l.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
