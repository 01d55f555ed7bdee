// Package history records and queries the append-only audit trail of every
// change TagBox makes to a file: creation, metadata update, relocation,
// deletion, access, and hash recomputation.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

// Operation is reexported so callers never need to import internal/storage
// just to name one.
type Operation = storage.HistoryOperation

const (
	OperationCreate     = storage.OperationCreate
	OperationUpdate     = storage.OperationUpdate
	OperationMove       = storage.OperationMove
	OperationDelete     = storage.OperationDelete
	OperationAccess     = storage.OperationAccess
	OperationHashUpdate = storage.OperationHashUpdate
)

// Entry is one append-only file_history row, by value rather than pointer
// since callers build it field-by-field before recording.
type Entry struct {
	FileID    string
	Operation Operation
	OldHash   *string
	NewHash   *string
	OldPath   *string
	NewPath   *string
	OldSize   *int64
	NewSize   *int64
	ChangedBy *string
	Reason    *string
}

// Manager records and reads file_history / file_access_stats.
type Manager struct {
	db *storage.DB
}

// New builds a Manager over an opened library database.
func New(db *storage.DB) *Manager {
	return &Manager{db: db}
}

// Record appends one history entry and, for an Access operation, increments
// the file's access counter in the same transaction.
func (m *Manager) Record(ctx context.Context, e Entry) (string, error) {
	id := uuid.NewString()
	now := time.Now()

	err := storage.WithTx(ctx, m.db, func(tx *sql.Tx) error {
		if err := storage.InsertHistoryEntry(ctx, tx, &storage.HistoryEntry{
			ID: id, FileID: e.FileID, Operation: string(e.Operation),
			OldHash: e.OldHash, NewHash: e.NewHash,
			OldPath: e.OldPath, NewPath: e.NewPath,
			OldSize: e.OldSize, NewSize: e.NewSize,
			ChangedAt: now, ChangedBy: e.ChangedBy, Reason: e.Reason,
		}); err != nil {
			return err
		}
		if e.Operation == OperationAccess {
			return storage.UpsertAccessStats(ctx, tx, e.FileID, now.UTC().Format(time.RFC3339))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListForFile returns a file's history, most recent first.
func (m *Manager) ListForFile(ctx context.Context, fileID string) ([]storage.HistoryEntry, error) {
	return storage.ListHistoryForFile(ctx, m.db.Reader, fileID)
}

// MostAccessed returns up to limit file_access_stats rows, highest count
// first.
func (m *Manager) MostAccessed(ctx context.Context, limit int) ([]storage.AccessStats, error) {
	return storage.GetMostAccessedFiles(ctx, m.db.Reader, limit)
}
