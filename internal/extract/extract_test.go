package extract

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/tagbox-go/internal/config"
)

func TestExtractFromFilename_ParsesAuthorAndYear(t *testing.T) {
	meta := extractFromFilename("/lib/Tokio Internals - Jane Doe (2023).pdf", "uncategorized")
	assert.Equal(t, "Tokio Internals", meta.Title)
	require.Len(t, meta.Authors, 1)
	assert.Equal(t, "Jane Doe", meta.Authors[0])
	require.NotNil(t, meta.Year)
	assert.Equal(t, 2023, *meta.Year)
}

func TestExtractFromFilename_NoSeparatorFallsBackToStem(t *testing.T) {
	meta := extractFromFilename("/lib/readme.txt", "uncategorized")
	assert.Equal(t, "readme", meta.Title)
	assert.Empty(t, meta.Authors)
}

func TestMerge_PrefersOverrideNonEmptyFields(t *testing.T) {
	base := Metadata{Title: "base title", Category1: "base-cat", Tags: []string{"a"}}
	year := 2024
	override := Metadata{Year: &year, Tags: []string{"a", "b"}}

	merged := Merge(base, override)
	assert.Equal(t, "base title", merged.Title)
	assert.Equal(t, "base-cat", merged.Category1)
	require.NotNil(t, merged.Year)
	assert.Equal(t, 2024, *merged.Year)
	assert.Equal(t, []string{"a", "b"}, merged.Tags)
}

func TestMerge_AdditionalInfoIsRightBiased(t *testing.T) {
	base := Metadata{AdditionalInfo: map[string]string{"k": "base", "only_base": "x"}}
	override := Metadata{AdditionalInfo: map[string]string{"k": "override"}}

	merged := Merge(base, override)
	assert.Equal(t, "override", merged.AdditionalInfo["k"])
	assert.Equal(t, "x", merged.AdditionalInfo["only_base"])
}

func TestExtractor_UsesJSONSidecarOverFilename(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "Some Paper - A Author (2020).txt")
	require.NoError(t, os.WriteFile(docPath, []byte("body text"), 0o644))

	sidecar := filepath.Join(dir, "Some Paper - A Author (2020).meta.json")
	require.NoError(t, os.WriteFile(sidecar, []byte(`{"title": "Sidecar Title", "tags": ["x"]}`), 0o644))

	e := New(config.ImportMetadataConfig{PreferJSON: true, DefaultCategory: "uncategorized"})
	meta, err := e.Extract(docPath)
	require.NoError(t, err)
	assert.Equal(t, "Sidecar Title", meta.Title)
	assert.Contains(t, meta.Tags, "x")
}

func TestExtractor_DefaultsCategoryWhenUnset(t *testing.T) {
	dir := t.TempDir()
	docPath := filepath.Join(dir, "plain.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("just text"), 0o644))

	e := New(config.ImportMetadataConfig{DefaultCategory: "uncategorized"})
	meta, err := e.Extract(docPath)
	require.NoError(t, err)
	assert.Equal(t, "uncategorized", meta.Category1)
}

func TestDiscover_FiltersByIncludeAndExclude(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "drafts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.pdf"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "drafts", "c.pdf"), []byte("x"), 0o644))

	matches, err := Discover(dir, []string{"*.pdf", "drafts/*.pdf"}, []string{"drafts/*"})
	require.NoError(t, err)

	var relNames []string
	for _, m := range matches {
		relNames = append(relNames, filepath.Base(m))
	}
	assert.Contains(t, relNames, "a.pdf")
	assert.NotContains(t, relNames, "b.txt")
	assert.NotContains(t, relNames, "c.pdf")
}
