package editor

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

func newTestEditor(t *testing.T) (*Editor, *storage.DB, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.Open(filepath.Join(dir, "tagbox.db"), storage.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Import.Paths.StorageDir = filepath.Join(dir, "library")
	cfg.Hash.Algorithm = "sha256"

	return New(db, cfg), db, cfg
}

func insertTestFile(t *testing.T, db *storage.DB, cfg *config.Config, category string) *storage.File {
	t.Helper()
	ctx := context.Background()

	relPath := filepath.Join(category, "doc.txt")
	abs := filepath.Join(cfg.Import.Paths.StorageDir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0o755))
	require.NoError(t, os.WriteFile(abs, []byte("content"), 0o644))

	id := uuid.NewString()
	now := time.Now()
	f := &storage.File{
		ID: id, Title: "Old Title", OriginalFilename: "doc.txt",
		InitialHash: "h-" + id, CurrentHash: "h-" + id,
		RelativePath: relPath, OriginalPath: abs, Size: 7,
		Category1: category,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, storage.InsertFile(ctx, db.Writer, f))
	return f
}

func TestUpdate_SparsePatchOnlyTouchesGivenFields(t *testing.T) {
	e, db, cfg := newTestEditor(t)
	ctx := context.Background()
	f := insertTestFile(t, db, cfg, "books")

	newTitle := "New Title"
	updated, err := e.Update(ctx, f.ID, Patch{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "New Title", updated.Title)
	assert.Equal(t, "books", updated.Category1)
}

func TestUpdate_AuthorsAndTagsReplaceAndSyncFTS(t *testing.T) {
	e, db, cfg := newTestEditor(t)
	ctx := context.Background()
	f := insertTestFile(t, db, cfg, "books")

	authors := []string{"Alice", "Bob"}
	tags := []string{"golang"}
	updated, err := e.Update(ctx, f.ID, Patch{Authors: &authors, Tags: &tags})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Alice", "Bob"}, updated.Authors)
	assert.ElementsMatch(t, []string{"golang"}, updated.Tags)
}

func TestUpdate_UnknownFileReturnsErrInvalidFileID(t *testing.T) {
	e, _, _ := newTestEditor(t)
	ctx := context.Background()

	newTitle := "x"
	_, err := e.Update(ctx, "does-not-exist", Patch{Title: &newTitle})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidFileID)
}

func TestUpdateWithMove_RelocatesFileAndRecordsHistory(t *testing.T) {
	e, db, cfg := newTestEditor(t)
	ctx := context.Background()
	f := insertTestFile(t, db, cfg, "drafts")

	newCategory := "published"
	updated, err := e.UpdateWithMove(ctx, f.ID, Patch{Category1: &newCategory}, MoveOptions{Move: true})
	require.NoError(t, err)
	assert.Equal(t, "published", updated.Category1)
	assert.NotEqual(t, f.RelativePath, updated.RelativePath)

	newAbs := filepath.Join(cfg.Import.Paths.StorageDir, updated.RelativePath)
	_, statErr := os.Stat(newAbs)
	assert.NoError(t, statErr)

	oldAbs := filepath.Join(cfg.Import.Paths.StorageDir, f.RelativePath)
	_, oldStatErr := os.Stat(oldAbs)
	assert.True(t, os.IsNotExist(oldStatErr))

	entries, err := e.history.ListForFile(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "move", entries[0].Operation)
}

func TestUpdateWithMove_WithoutMoveFlagLeavesPathUnchanged(t *testing.T) {
	e, db, cfg := newTestEditor(t)
	ctx := context.Background()
	f := insertTestFile(t, db, cfg, "drafts")

	newCategory := "published"
	updated, err := e.UpdateWithMove(ctx, f.ID, Patch{Category1: &newCategory}, MoveOptions{Move: false})
	require.NoError(t, err)
	assert.Equal(t, f.RelativePath, updated.RelativePath)
}

func TestPreviewChanges_OnlyReportsActualDiffs(t *testing.T) {
	current := &storage.File{Title: "Same", Category1: "books"}
	sameTitle := "Same"
	newCategory := "papers"

	diffs := PreviewChanges(current, Patch{Title: &sameTitle, Category1: &newCategory})
	require.Len(t, diffs, 1)
	assert.Equal(t, "category1", diffs[0].Field)
	assert.Equal(t, "books", diffs[0].OldValue)
	assert.Equal(t, "papers", diffs[0].NewValue)
}
