package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// SetSystemConfig upserts a single key/value pair in system_config.
func SetSystemConfig(ctx context.Context, ex Execer, key, value, updatedAt string) error {
	_, err := builder.Insert("system_config").
		Columns("key", "value", "updated_at").
		Values(key, value, updatedAt).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("set system config %s: %w", key, err)
	}
	return nil
}

// GetSystemConfig returns the value for key, or ErrNotFound if unset.
func GetSystemConfig(ctx context.Context, q Queryer, key string) (string, error) {
	row := builder.Select("value").From("system_config").Where(sq.Eq{"key": key}).
		RunWith(q).QueryRowContext(ctx)
	var value string
	if err := row.Scan(&value); err != nil {
		if err == sql.ErrNoRows {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get system config %s: %w", key, err)
	}
	return value, nil
}

// GetAllSystemConfig returns every key/value pair in system_config.
func GetAllSystemConfig(ctx context.Context, q Queryer) (map[string]string, error) {
	rows, err := builder.Select("key", "value").From("system_config").
		RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list system config: %w", err)
	}
	defer rows.Close()

	all := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("scan system config row: %w", err)
		}
		all[k] = v
	}
	return all, rows.Err()
}

// DeleteSystemConfig removes one key, if present.
func DeleteSystemConfig(ctx context.Context, ex Execer, key string) error {
	_, err := builder.Delete("system_config").Where(sq.Eq{"key": key}).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("delete system config %s: %w", key, err)
	}
	return nil
}
