package validate

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/importer"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

func newTestValidator(t *testing.T) (*Validator, *storage.DB, *config.Config) {
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

func seedImportedFile(t *testing.T, db *storage.DB, cfg *config.Config, srcDir, name, body string) *storage.File {
	t.Helper()
	path := filepath.Join(srcDir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	im := importer.New(db, cfg)
	res, err := im.Import(context.Background(), path, importer.Options{})
	require.NoError(t, err)
	return res.File
}

func TestValidateSingleFile_ReportsValidWhenUnchanged(t *testing.T) {
	v, db, cfg := newTestValidator(t)
	ctx := context.Background()
	srcDir := t.TempDir()

	f := seedImportedFile(t, db, cfg, srcDir, "doc.txt", "stable content")
	abs := filepath.Join(cfg.Import.Paths.StorageDir, f.RelativePath)

	result, err := v.ValidateSingleFile(ctx, abs)
	require.NoError(t, err)
	assert.Equal(t, StatusValid, result.Status)
	assert.Equal(t, f.ID, result.FileID)
}

func TestValidateSingleFile_ReportsNotInDatabaseForUnknownFile(t *testing.T) {
	v, _, cfg := newTestValidator(t)
	ctx := context.Background()

	require.NoError(t, os.MkdirAll(cfg.Import.Paths.StorageDir, 0o755))
	stray := filepath.Join(cfg.Import.Paths.StorageDir, "stray.txt")
	require.NoError(t, os.WriteFile(stray, []byte("nobody owns me"), 0o644))

	result, err := v.ValidateSingleFile(ctx, stray)
	require.NoError(t, err)
	assert.Equal(t, StatusNotInDatabase, result.Status)
}

func TestValidateSingleFile_DetectsSizeMismatchBeforeHashing(t *testing.T) {
	v, db, cfg := newTestValidator(t)
	ctx := context.Background()
	srcDir := t.TempDir()

	f := seedImportedFile(t, db, cfg, srcDir, "doc.txt", "original content")
	abs := filepath.Join(cfg.Import.Paths.StorageDir, f.RelativePath)
	require.NoError(t, os.WriteFile(abs, []byte("a much longer replacement body"), 0o644))

	result, err := v.ValidateSingleFile(ctx, abs)
	require.NoError(t, err)
	assert.Equal(t, StatusSizeMismatch, result.Status)
	assert.NotEqual(t, result.ExpectedSize, result.ActualSize)
}

func TestValidateSingleFile_ReportsFileNotFound(t *testing.T) {
	v, db, cfg := newTestValidator(t)
	ctx := context.Background()
	srcDir := t.TempDir()

	f := seedImportedFile(t, db, cfg, srcDir, "doc.txt", "will be removed")
	abs := filepath.Join(cfg.Import.Paths.StorageDir, f.RelativePath)
	require.NoError(t, os.Remove(abs))

	result, err := v.ValidateSingleFile(ctx, abs)
	require.NoError(t, err)
	assert.Equal(t, StatusFileNotFound, result.Status)
}

func TestUpdateFileHash_RecomputesHashAndRecordsHistory(t *testing.T) {
	v, db, cfg := newTestValidator(t)
	ctx := context.Background()
	srcDir := t.TempDir()

	f := seedImportedFile(t, db, cfg, srcDir, "doc.txt", "original content")
	abs := filepath.Join(cfg.Import.Paths.StorageDir, f.RelativePath)

	sameSizeReplacement := "original-CONTENT"
	require.Len(t, sameSizeReplacement, len("original content"))
	require.NoError(t, os.WriteFile(abs, []byte(sameSizeReplacement), 0o644))

	updated, err := v.UpdateFileHash(ctx, f.ID, "manual fix")
	require.NoError(t, err)
	assert.NotEqual(t, f.CurrentHash, updated.CurrentHash)
	assert.Equal(t, f.InitialHash, updated.InitialHash)

	result, err := v.ValidateSingleFile(ctx, abs)
	require.NoError(t, err)
	assert.Equal(t, StatusValid, result.Status)

	entries, err := v.history.ListForFile(ctx, f.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var sawHashUpdate bool
	for _, e := range entries {
		if e.Operation == "hash_update" {
			sawHashUpdate = true
		}
	}
	assert.True(t, sawHashUpdate)
}

func TestRebuildFTSIndex_RunsWithoutError(t *testing.T) {
	v, db, cfg := newTestValidator(t)
	ctx := context.Background()
	srcDir := t.TempDir()

	seedImportedFile(t, db, cfg, srcDir, "doc.txt", "indexed content")
	require.NoError(t, v.RebuildFTSIndex(ctx))
}

func TestRebuildPaths_DryRunMakesNoChanges(t *testing.T) {
	v, db, cfg := newTestValidator(t)
	ctx := context.Background()
	srcDir := t.TempDir()

	f := seedImportedFile(t, db, cfg, srcDir, "doc.txt", "content for rebuild")
	oldAbs := filepath.Join(cfg.Import.Paths.StorageDir, f.RelativePath)

	cfg.Import.Paths.ClassifyTemplate = "{category1}/archive/{filename}"
	v2 := New(db, cfg)

	plans, err := v2.RebuildPaths(ctx, false, 2)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.True(t, plans[0].NeedsMove)
	assert.False(t, plans[0].Applied)

	_, statErr := os.Stat(oldAbs)
	assert.NoError(t, statErr)

	reloaded, err := storage.GetFileByID(ctx, db.Reader, f.ID)
	require.NoError(t, err)
	assert.Equal(t, f.RelativePath, reloaded.RelativePath)
}

func TestRebuildPaths_ApplyMovesFileAndRecordsHistory(t *testing.T) {
	v, db, cfg := newTestValidator(t)
	ctx := context.Background()
	srcDir := t.TempDir()

	f := seedImportedFile(t, db, cfg, srcDir, "doc.txt", "content for rebuild")
	oldAbs := filepath.Join(cfg.Import.Paths.StorageDir, f.RelativePath)

	cfg.Import.Paths.ClassifyTemplate = "{category1}/archive/{filename}"
	v2 := New(db, cfg)

	plans, err := v2.RebuildPaths(ctx, true, 2)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	require.NoError(t, plans[0].Err)
	assert.True(t, plans[0].Applied)

	_, oldStatErr := os.Stat(oldAbs)
	assert.True(t, os.IsNotExist(oldStatErr))

	reloaded, err := storage.GetFileByID(ctx, db.Reader, f.ID)
	require.NoError(t, err)
	assert.Equal(t, plans[0].NewPath, reloaded.RelativePath)

	entries, err := v2.history.ListForFile(ctx, f.ID)
	require.NoError(t, err)
	var sawMove bool
	for _, e := range entries {
		if e.Operation == "move" {
			sawMove = true
		}
	}
	assert.True(t, sawMove)
}
