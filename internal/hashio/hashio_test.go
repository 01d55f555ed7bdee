package hashio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile_BLAKE2bIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	d1, size1, err := HashFile(path, BLAKE2b)
	require.NoError(t, err)
	d2, _, err := HashFile(path, BLAKE2b)
	require.NoError(t, err)

	assert.Equal(t, d1, d2)
	assert.EqualValues(t, 5, size1)
}

func TestHashFile_DifferentAlgorithmsDiffer(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	blake, _, err := HashFile(path, BLAKE2b)
	require.NoError(t, err)
	sha, _, err := HashFile(path, SHA256)
	require.NoError(t, err)

	assert.NotEqual(t, blake, sha)
}

func TestHashFile_UnknownAlgorithm(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	_, _, err := HashFile(path, "md5")
	require.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestSafeCopyFile_ProducesMatchingDigestAndNoTempLeftover(t *testing.T) {
	srcDir := t.TempDir()
	dstDir := t.TempDir()
	src := filepath.Join(srcDir, "paper.pdf")
	require.NoError(t, os.WriteFile(src, []byte("hello"), 0o644))

	dst := filepath.Join(dstDir, "nested", "paper.pdf")
	result, err := SafeCopyFile(src, dst, BLAKE2b)
	require.NoError(t, err)

	wantDigest, wantSize, err := HashFile(src, BLAKE2b)
	require.NoError(t, err)
	assert.Equal(t, wantDigest, result.Digest)
	assert.Equal(t, wantSize, result.Size)

	_, err = os.Stat(dst)
	require.NoError(t, err)
	_, err = os.Stat(dst + ".tmp-import")
	assert.True(t, os.IsNotExist(err))
}
