package search

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

func newTestLibrary(t *testing.T) (*storage.DB, *config.Config) {
	t.Helper()
	dir := t.TempDir()

	db, err := storage.Open(filepath.Join(dir, "tagbox.db"), storage.DefaultOptions())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := config.Default()
	cfg.Import.Paths.StorageDir = filepath.Join(dir, "library")
	cfg.Hash.Algorithm = "sha256"

	return db, cfg
}

func seedFile(t *testing.T, db *storage.DB, cfg *config.Config, srcDir, name, body string) *storage.File {
	t.Helper()
	path := filepath.Join(srcDir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	im := importer.New(db, cfg)
	res, err := im.Import(context.Background(), path, importer.Options{})
	require.NoError(t, err)
	return res.File
}

func TestParseQuery_SplitsPrefixedTokensFromFreeText(t *testing.T) {
	parsed := parseQuery(`tag:golang -tag:draft author:"Jane" year:2023 category1:books rust concurrency`)

	assert.Contains(t, parsed.includeTags, "golang")
	assert.Contains(t, parsed.excludeTags, "draft")
	require.NotNil(t, parsed.year)
	assert.Equal(t, 2023, *parsed.year)
	assert.Equal(t, "books", parsed.category1)
	assert.Equal(t, "rust concurrency", parsed.text)
}

func TestParseQuery_BareWildcardClearsFreeText(t *testing.T) {
	parsed := parseQuery("*")
	assert.Empty(t, parsed.text)
}

func TestParseQuery_CategoryAliasSetsCategory1(t *testing.T) {
	parsed := parseQuery("category:papers")
	assert.Equal(t, "papers", parsed.category1)
}

func TestSearchAdvanced_FiltersByIncludeAndExcludeTags(t *testing.T) {
	db, cfg := newTestLibrary(t)
	srcDir := t.TempDir()
	ctx := context.Background()

	f1 := seedFile(t, db, cfg, srcDir, "a.txt", "alpha content")
	f2 := seedFile(t, db, cfg, srcDir, "b.txt", "beta content")

	_, err := db.Writer.ExecContext(ctx,
		`INSERT INTO tags (id, name, path, created_at, updated_at) VALUES ('t1','golang','golang',datetime('now'),datetime('now'))`)
	require.NoError(t, err)
	_, err = db.Writer.ExecContext(ctx,
		`INSERT INTO file_tags (file_id, tag_id) VALUES (?, 't1')`, f1.ID)
	require.NoError(t, err)

	s := New(ctx, db, cfg.Search)
	result, err := s.SearchAdvanced(ctx, "tag:golang", Options{})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, f1.ID, result.Entries[0].ID)

	result, err = s.SearchAdvanced(ctx, "-tag:golang", Options{})
	require.NoError(t, err)
	var ids []string
	for _, e := range result.Entries {
		ids = append(ids, e.ID)
	}
	assert.NotContains(t, ids, f1.ID)
	assert.Contains(t, ids, f2.ID)
}

func TestSearchAdvanced_FreeTextUsesFTSAndReportsTotalCount(t *testing.T) {
	db, cfg := newTestLibrary(t)
	srcDir := t.TempDir()
	ctx := context.Background()

	seedFile(t, db, cfg, srcDir, "tokio.txt", "an overview of asynchronous runtimes")
	seedFile(t, db, cfg, srcDir, "unrelated.txt", "a completely different subject")

	s := New(ctx, db, cfg.Search)
	result, err := s.SearchAdvanced(ctx, "asynchronous", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, 1, result.TotalCount)
}

func TestSearchAdvanced_WildcardReturnsEveryFile(t *testing.T) {
	db, cfg := newTestLibrary(t)
	srcDir := t.TempDir()
	ctx := context.Background()

	seedFile(t, db, cfg, srcDir, "one.txt", "first document")
	seedFile(t, db, cfg, srcDir, "two.txt", "second document")

	s := New(ctx, db, cfg.Search)
	result, err := s.SearchAdvanced(ctx, "*", Options{Limit: 10})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
}

func TestSearchAdvanced_PaginationRespectsLimitAndOffset(t *testing.T) {
	db, cfg := newTestLibrary(t)
	srcDir := t.TempDir()
	ctx := context.Background()

	names := []string{"page-a.txt", "page-b.txt", "page-c.txt"}
	for _, name := range names {
		seedFile(t, db, cfg, srcDir, name, "paginated document")
	}

	s := New(ctx, db, cfg.Search)
	page1, err := s.SearchAdvanced(ctx, "*", Options{Limit: 2, Offset: 0})
	require.NoError(t, err)
	assert.Len(t, page1.Entries, 2)
	assert.Equal(t, 3, page1.TotalCount)

	page2, err := s.SearchAdvanced(ctx, "*", Options{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page2.Entries, 1)
}

func TestSearchAdvanced_RejectsUnknownSortField(t *testing.T) {
	db, cfg := newTestLibrary(t)
	ctx := context.Background()

	s := New(ctx, db, cfg.Search)
	_, err := s.SearchAdvanced(ctx, "*", Options{SortBy: "not_a_real_column"})
	require.Error(t, err)
}

func TestGenerateFuzzyTerms_ShortTermReturnsNil(t *testing.T) {
	assert.Nil(t, generateFuzzyTerms("abc"))
}

func TestGenerateFuzzyTerms_LongerTermProducesVariants(t *testing.T) {
	variants := generateFuzzyTerms("tokio")
	assert.NotEmpty(t, variants)
}

func TestBuildFTSQuery_MultiTermIncludesExactPhrase(t *testing.T) {
	db, cfg := newTestLibrary(t)
	ctx := context.Background()
	s := New(ctx, db, cfg.Search)

	q := s.buildFTSQuery("tokio runtime")
	assert.Contains(t, q, `"tokio runtime"`)
}
