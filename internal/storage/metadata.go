package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// ReplaceFileMetadata deletes every file_metadata row for fileID and inserts
// the given additional_info map.
func ReplaceFileMetadata(ctx context.Context, ex Execer, fileID string, info map[string]string) error {
	if _, err := builder.Delete("file_metadata").Where(sq.Eq{"file_id": fileID}).
		RunWith(ex).ExecContext(ctx); err != nil {
		return fmt.Errorf("clear file metadata: %w", err)
	}
	for k, v := range info {
		_, err := builder.Insert("file_metadata").Columns("file_id", "key", "value").
			Values(fileID, k, v).RunWith(ex).ExecContext(ctx)
		if err != nil {
			return fmt.Errorf("insert file metadata %s: %w", k, err)
		}
	}
	return nil
}

// GetFileMetadata returns a file's additional_info map.
func GetFileMetadata(ctx context.Context, q Queryer, fileID string) (map[string]string, error) {
	rows, err := builder.Select("key", "value").From("file_metadata").
		Where(sq.Eq{"file_id": fileID}).RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("get file metadata for %s: %w", fileID, err)
	}
	defer rows.Close()

	info := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan file metadata row: %w", err)
		}
		info[k] = v
	}
	return info, rows.Err()
}
