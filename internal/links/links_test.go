package links

import (
	"context"
	"path/filepath"
	"strings"
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

func insertTestFile(t *testing.T, db *storage.DB, relPath string) string {
	t.Helper()
	id := uuid.NewString()
	now := time.Now()
	f := &storage.File{
		ID: id, Title: "t", OriginalFilename: "t.pdf",
		InitialHash: "h-" + id, CurrentHash: "h-" + id,
		RelativePath: relPath, Size: 1, Category1: "uncategorized",
		CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, storage.InsertFile(context.Background(), db.Writer, f))
	return id
}

func TestLinkUnlink_RoundTrip(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	a := insertTestFile(t, db, "a.pdf")
	b := insertTestFile(t, db, "b.pdf")

	require.NoError(t, m.Link(ctx, a, b, "related"))
	links, err := m.ListForFile(ctx, a)
	require.NoError(t, err)
	require.Len(t, links, 1)

	require.NoError(t, m.Unlink(ctx, a, b, "related"))
	links, err = m.ListForFile(ctx, a)
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestLink_RejectsSelfLink(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	a := insertTestFile(t, db, "a.pdf")
	err := m.Link(ctx, a, a, "related")
	require.ErrorIs(t, err, storage.ErrSelfLink)
}

func TestParseUnlinkPairs_SkipsBlankAndCommentLines(t *testing.T) {
	input := "a b related\n\n# a comment\n  \nc d supersedes\n"
	pairs, err := ParseUnlinkPairs(strings.NewReader(input))
	require.NoError(t, err)
	require.Equal(t, []UnlinkPair{
		{FileIDA: "a", FileIDB: "b", RelationType: "related"},
		{FileIDA: "c", FileIDB: "d", RelationType: "supersedes"},
	}, pairs)
}

func TestParseUnlinkPairs_RejectsMalformedLine(t *testing.T) {
	_, err := ParseUnlinkPairs(strings.NewReader("a b\n"))
	require.Error(t, err)
}

func TestUnlinkBatch_RemovesEachPairAndCollectsFailures(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	a := insertTestFile(t, db, "a.pdf")
	b := insertTestFile(t, db, "b.pdf")
	c := insertTestFile(t, db, "c.pdf")
	require.NoError(t, m.Link(ctx, a, b, "related"))
	require.NoError(t, m.Link(ctx, a, c, "related"))

	results := m.UnlinkBatch(ctx, []UnlinkPair{
		{FileIDA: a, FileIDB: b, RelationType: "related"},
		{FileIDA: a, FileIDB: c, RelationType: "related"},
	})
	require.Len(t, results, 2)
	require.NoError(t, results[0].Err)
	require.NoError(t, results[1].Err)

	links, err := m.ListForFile(ctx, a)
	require.NoError(t, err)
	require.Empty(t, links)
}

func TestUnlinkBatch_ReportsPerPairFailureAndKeepsLink(t *testing.T) {
	db := openTestDB(t)
	m := New(db)
	ctx := context.Background()

	a := insertTestFile(t, db, "a.pdf")
	b := insertTestFile(t, db, "b.pdf")
	require.NoError(t, m.Link(ctx, a, b, "related"))

	canceled, cancel := context.WithCancel(ctx)
	cancel()

	results := m.UnlinkBatch(canceled, []UnlinkPair{
		{FileIDA: a, FileIDB: b, RelationType: "related"},
	})
	require.Len(t, results, 1)
	require.Error(t, results[0].Err)

	links, err := m.ListForFile(ctx, a)
	require.NoError(t, err)
	require.Len(t, links, 1)
}
