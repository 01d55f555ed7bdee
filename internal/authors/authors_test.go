package authors

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

func TestCreate_IsIdempotentByName(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	a, err := m.Create(ctx, "Jane Doe")
	require.NoError(t, err)
	b, err := m.Create(ctx, "Jane Doe")
	require.NoError(t, err)
	require.Equal(t, a.ID, b.ID)
}

func TestAddAlias_ConflictsWithExistingMapping(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	canonical, err := m.Create(ctx, "John Doe")
	require.NoError(t, err)
	other, err := m.Create(ctx, "J. Doe")
	require.NoError(t, err)
	third, err := m.Create(ctx, "Johnny Doe")
	require.NoError(t, err)

	require.NoError(t, m.AddAlias(ctx, canonical.ID, other.ID))
	require.NoError(t, m.AddAlias(ctx, canonical.ID, other.ID)) // idempotent

	err = m.AddAlias(ctx, third.ID, other.ID)
	require.ErrorIs(t, err, ErrAliasConflict)
}

func TestMerge_ReassignsFilesAndDeletesSource(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	source, err := m.Create(ctx, "J. Doe")
	require.NoError(t, err)
	target, err := m.Create(ctx, "John Doe")
	require.NoError(t, err)

	now := time.Now()
	fileID := uuid.NewString()
	f := &storage.File{
		ID: fileID, Title: "t", OriginalFilename: "t.pdf",
		InitialHash: "h1", CurrentHash: "h1", RelativePath: "t.pdf",
		Size: 1, Category1: "uncategorized", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, storage.InsertFile(ctx, db.Writer, f))
	require.NoError(t, storage.ReplaceFileAuthors(ctx, db.Writer, fileID, []string{source.ID}))

	require.NoError(t, m.Merge(ctx, source.ID, target.ID))

	fileAuthors, err := storage.ListAuthorsForFile(ctx, db.Reader, fileID)
	require.NoError(t, err)
	require.Len(t, fileAuthors, 1)
	require.Equal(t, target.ID, fileAuthors[0].ID)

	aliasIDs, err := storage.ListAuthorAliases(ctx, db.Reader, target.ID)
	require.NoError(t, err)
	require.Contains(t, aliasIDs, source.ID)

	_, err = storage.GetAuthorByID(ctx, db.Reader, source.ID)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFindDuplicates_DetectsNormalizedAndInitialMatches(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	_, err := m.Create(ctx, "John Smith")
	require.NoError(t, err)
	_, err = m.Create(ctx, "john smith")
	require.NoError(t, err)
	_, err = m.Create(ctx, "J. Smith")
	require.NoError(t, err)
	_, err = m.Create(ctx, "Unrelated Name")
	require.NoError(t, err)

	dupes, err := m.FindDuplicates(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, dupes)

	var sawNormalized bool
	for _, d := range dupes {
		if (d.AuthorA.Name == "John Smith" && d.AuthorB.Name == "john smith") ||
			(d.AuthorA.Name == "john smith" && d.AuthorB.Name == "John Smith") {
			sawNormalized = true
			require.InDelta(t, 0.95, d.Similarity, 0.001)
		}
	}
	require.True(t, sawNormalized)
}
