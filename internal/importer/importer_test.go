package importer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
	"github.com/nerdneilsfield/tagbox-go/internal/history"
	"github.com/nerdneilsfield/tagbox-go/internal/storage"
)

func newTestImporter(t *testing.T) (*Importer, *storage.DB, *config.Config) {
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

func writeSourceFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestImport_WritesFileAuthorsTagsAndHistory(t *testing.T) {
	im, db, _ := newTestImporter(t)
	ctx := context.Background()

	srcDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "Tokio Internals - Jane Doe (2023).txt", "# Tokio Internals\n\nbody")

	result, err := im.Import(ctx, src, Options{})
	require.NoError(t, err)
	require.NotNil(t, result.File)
	assert.False(t, result.AlreadyExisted)

	assert.Equal(t, "Tokio Internals", result.File.Title)
	require.Contains(t, result.File.Authors, "Jane Doe")
	require.NotNil(t, result.File.Year)
	assert.Equal(t, 2023, *result.File.Year)

	entries, err := im.history.ListForFile(ctx, result.File.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(history.OperationCreate), entries[0].Operation)

	copied, err := storage.GetFileByID(ctx, db.Reader, result.File.ID)
	require.NoError(t, err)
	assert.Equal(t, result.File.CurrentHash, copied.CurrentHash)
}

func TestImport_DuplicateContentShortCircuits(t *testing.T) {
	im, _, _ := newTestImporter(t)
	ctx := context.Background()

	srcDir := t.TempDir()
	src1 := writeSourceFile(t, srcDir, "a.txt", "identical content")
	src2 := writeSourceFile(t, srcDir, "b.txt", "identical content")

	first, err := im.Import(ctx, src1, Options{})
	require.NoError(t, err)
	assert.False(t, first.AlreadyExisted)

	second, err := im.Import(ctx, src2, Options{})
	require.NoError(t, err)
	assert.True(t, second.AlreadyExisted)
	assert.Equal(t, first.File.ID, second.File.ID)
}

func TestImport_DeleteOriginalOnlyAfterCommit(t *testing.T) {
	im, _, _ := newTestImporter(t)
	ctx := context.Background()

	srcDir := t.TempDir()
	src := writeSourceFile(t, srcDir, "gone.txt", "will be removed")

	_, err := im.Import(ctx, src, Options{DeleteOriginal: true})
	require.NoError(t, err)

	_, statErr := os.Stat(src)
	assert.True(t, os.IsNotExist(statErr))
}

func TestImport_DeleteOriginalSkippedOnDedupeShortCircuit(t *testing.T) {
	im, _, _ := newTestImporter(t)
	ctx := context.Background()

	srcDir := t.TempDir()
	src1 := writeSourceFile(t, srcDir, "a.txt", "same bytes")
	src2 := writeSourceFile(t, srcDir, "b.txt", "same bytes")

	_, err := im.Import(ctx, src1, Options{})
	require.NoError(t, err)

	_, err = im.Import(ctx, src2, Options{DeleteOriginal: true})
	require.NoError(t, err)

	_, statErr := os.Stat(src2)
	assert.NoError(t, statErr, "dedupe short-circuit must never delete the caller's source")
}

func TestImportBatch_OneFailureDoesNotStopOthers(t *testing.T) {
	im, _, _ := newTestImporter(t)
	ctx := context.Background()

	srcDir := t.TempDir()
	good1 := writeSourceFile(t, srcDir, "good1.txt", "one")
	good2 := writeSourceFile(t, srcDir, "good2.txt", "two")
	missing := filepath.Join(srcDir, "missing.txt")

	results := im.ImportBatch(ctx, []string{good1, missing, good2}, Options{}, 2)
	require.Len(t, results, 3)

	assert.NoError(t, results[0].Err)
	assert.Error(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}
