package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

func openTestDB(t *testing.T) *storage.DB {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "tagbox.db"), storage.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func insertTestFile(t *testing.T, db *storage.DB) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now()
	f := &storage.File{
		ID: id, Title: "paper", OriginalFilename: "paper.pdf",
		InitialHash: "h-" + id, CurrentHash: "h-" + id,
		RelativePath: id + ".pdf", Size: 10, Category1: "uncategorized",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, storage.InsertFile(context.Background(), db.Writer, f))
	return id
}

func TestRecord_CreateEntryIsListed(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	fileID := insertTestFile(t, db)

	hash := "abc123"
	path := "papers/a.pdf"
	var size int64 = 1024
	_, err := m.Record(context.Background(), Entry{
		FileID: fileID, Operation: OperationCreate,
		NewHash: &hash, NewPath: &path, NewSize: &size,
	})
	require.NoError(t, err)

	entries, err := m.ListForFile(context.Background(), fileID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, string(OperationCreate), entries[0].Operation)
	require.Equal(t, "abc123", *entries[0].NewHash)
}

func TestRecord_AccessIncrementsStats(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	fileID := insertTestFile(t, db)

	for i := 0; i < 3; i++ {
		_, err := m.Record(context.Background(), Entry{FileID: fileID, Operation: OperationAccess})
		require.NoError(t, err)
	}

	stats, err := m.MostAccessed(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stats, 1)
	require.EqualValues(t, 3, stats[0].AccessCount)
}

func TestMostAccessed_OrdersByCountDescending(t *testing.T) {
	db := openTestDB(t)
	m := New(db)

	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, insertTestFile(t, db))
	}
	for i, id := range ids {
		for j := 0; j <= i; j++ {
			_, err := m.Record(context.Background(), Entry{FileID: id, Operation: OperationAccess})
			require.NoError(t, err)
		}
	}

	stats, err := m.MostAccessed(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	require.Equal(t, ids[2], stats[0].FileID)
	require.EqualValues(t, 3, stats[0].AccessCount)
}
