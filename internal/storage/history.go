package storage

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// InsertHistoryEntry appends one row to the file_history log. The log is
// append-only: there is no update or delete helper.
func InsertHistoryEntry(ctx context.Context, ex Execer, h *HistoryEntry) error {
	_, err := builder.Insert("file_history").
		Columns(
			"id", "file_id", "operation", "old_hash", "new_hash",
			"old_path", "new_path", "old_size", "new_size",
			"changed_at", "changed_by", "reason",
		).
		Values(
			h.ID, h.FileID, h.Operation, h.OldHash, h.NewHash,
			h.OldPath, h.NewPath, h.OldSize, h.NewSize,
			formatTime(h.ChangedAt), h.ChangedBy, h.Reason,
		).
		RunWith(ex).ExecContext(ctx)
	if err != nil {
		return fmt.Errorf("insert history entry: %w", err)
	}
	return nil
}

// ListHistoryForFile returns a file's history, most recent first.
func ListHistoryForFile(ctx context.Context, q Queryer, fileID string) ([]HistoryEntry, error) {
	rows, err := builder.Select(
		"id", "file_id", "operation", "old_hash", "new_hash",
		"old_path", "new_path", "old_size", "new_size",
		"changed_at", "changed_by", "reason",
	).From("file_history").Where(sq.Eq{"file_id": fileID}).
		OrderBy("changed_at DESC").RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list history for file %s: %w", fileID, err)
	}
	defer rows.Close()

	var entries []HistoryEntry
	for rows.Next() {
		var h HistoryEntry
		var changedAt string
		if err := rows.Scan(
			&h.ID, &h.FileID, &h.Operation, &h.OldHash, &h.NewHash,
			&h.OldPath, &h.NewPath, &h.OldSize, &h.NewSize,
			&changedAt, &h.ChangedBy, &h.Reason,
		); err != nil {
			return nil, fmt.Errorf("scan history entry: %w", err)
		}
		var err error
		if h.ChangedAt, err = parseTime(changedAt); err != nil {
			return nil, err
		}
		entries = append(entries, h)
	}
	return entries, rows.Err()
}

// HistoryOperation enumerates the kinds of change file_history can record.
type HistoryOperation string

const (
	OperationCreate     HistoryOperation = "create"
	OperationUpdate     HistoryOperation = "update"
	OperationMove       HistoryOperation = "move"
	OperationDelete     HistoryOperation = "delete"
	OperationAccess     HistoryOperation = "access"
	OperationHashUpdate HistoryOperation = "hash_update"
)

// UpsertAccessStats increments a file's access counter by one and stamps
// last_accessed_at, creating the row on first access.
func UpsertAccessStats(ctx context.Context, ex Execer, fileID, accessedAt string) error {
	const stmt = `
		INSERT INTO file_access_stats (file_id, access_count, last_accessed_at)
		VALUES (?, 1, ?)
		ON CONFLICT(file_id) DO UPDATE SET
			access_count = access_count + 1,
			last_accessed_at = excluded.last_accessed_at
	`
	if _, err := ex.ExecContext(ctx, stmt, fileID, accessedAt); err != nil {
		return fmt.Errorf("upsert access stats for file %s: %w", fileID, err)
	}
	return nil
}

// GetMostAccessedFiles returns the file_access_stats rows with the highest
// access_count, most accessed first.
func GetMostAccessedFiles(ctx context.Context, q Queryer, limit int) ([]AccessStats, error) {
	rows, err := builder.Select("file_id", "access_count", "last_accessed_at").
		From("file_access_stats").OrderBy("access_count DESC").Limit(uint64(limit)).
		RunWith(q).QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("list most accessed files: %w", err)
	}
	defer rows.Close()

	var stats []AccessStats
	for rows.Next() {
		var s AccessStats
		var lastAccessedAt *string
		if err := rows.Scan(&s.FileID, &s.AccessCount, &lastAccessedAt); err != nil {
			return nil, fmt.Errorf("scan access stats: %w", err)
		}
		if lastAccessedAt != nil {
			t, err := parseTime(*lastAccessedAt)
			if err != nil {
				return nil, err
			}
			s.LastAccessedAt = &t
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
