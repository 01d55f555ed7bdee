package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withCapturedStdout runs fn with os.Stdout redirected to a pipe and returns
// everything written to it.
func withCapturedStdout(t *testing.T, fn func()) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w

	var buf bytes.Buffer
	done := make(chan struct{})
	go func() {
		buf.ReadFrom(r)
		close(done)
	}()

	fn()

	w.Close()
	<-done
	os.Stdout = oldStdout
	return buf.String()
}

// writeTestConfig drops a tagbox.yaml into dir pointing the database and
// storage directory at absolute paths under dir, so tests never touch the
// process's working directory.
func writeTestConfig(t *testing.T, dir string) {
	t.Helper()
	yaml := "database:\n" +
		"  path: " + filepath.Join(dir, "tagbox.db") + "\n" +
		"  journal_mode: WAL\n" +
		"  max_connections: 5\n" +
		"  busy_timeout: 5000\n" +
		"  sync_mode: NORMAL\n" +
		"import:\n" +
		"  paths:\n" +
		"    storage_dir: " + filepath.Join(dir, "library") + "\n" +
		"    rename_template: \"{title}_{authors}_{year}\"\n" +
		"    classify_template: \"{category1}/{filename}\"\n" +
		"  metadata:\n" +
		"    prefer_json: true\n" +
		"    fallback_pdf: true\n" +
		"    default_category: uncategorized\n" +
		"search:\n" +
		"  default_limit: 20\n" +
		"  enable_fts: true\n" +
		"  fts_language: unicode61\n" +
		"  fuzzy_search_enabled: true\n" +
		"hash:\n" +
		"  algorithm: sha256\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tagbox.yaml"), []byte(yaml), 0o644))
}

func TestImportThenSearchCommand_RoundTrips(t *testing.T) {
	// Note: cannot use t.Parallel() because the test manipulates os.Stdout.
	root := t.TempDir()
	writeTestConfig(t, root)
	srcDir := t.TempDir()
	docPath := filepath.Join(srcDir, "doc.txt")
	require.NoError(t, os.WriteFile(docPath, []byte("searchable library contents"), 0o644))

	rootDir = root
	t.Cleanup(func() { rootDir = "" })

	importOutput := withCapturedStdout(t, func() {
		rootCmd.SetArgs([]string{"import", docPath})
		require.NoError(t, rootCmd.Execute())
	})
	assert.Contains(t, importOutput, "imported 1, duplicates 0, failed 0 (of 1)")

	searchOutput := withCapturedStdout(t, func() {
		rootCmd.SetArgs([]string{"search", "*"})
		require.NoError(t, rootCmd.Execute())
	})
	assert.Contains(t, searchOutput, "doc")
}

func TestConfigCheckCommand_ReportsCompatibleOnFreshLibrary(t *testing.T) {
	// Note: cannot use t.Parallel() because the test manipulates os.Stdout.
	root := t.TempDir()
	writeTestConfig(t, root)
	rootDir = root
	t.Cleanup(func() { rootDir = "" })

	output := withCapturedStdout(t, func() {
		rootCmd.SetArgs([]string{"config-check"})
		require.NoError(t, rootCmd.Execute())
	})
	assert.Contains(t, output, "compatible")
}
