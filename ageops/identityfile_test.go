package ageops

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIdentityFile(t *testing.T) {
	basedir := t.TempDir()
	key1 := writeSSHKey(t)
	key2 := writeSSHKey(t)

	path, err := WriteIdentityFile(basedir, []string{key1, key2})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(basedir, IdentityFileName), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(contents)), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "# age1"))
	assert.True(t, strings.HasPrefix(lines[1], "AGE-SECRET-KEY-1"))
	assert.True(t, strings.HasPrefix(lines[2], "# age1"))
	assert.True(t, strings.HasPrefix(lines[3], "AGE-SECRET-KEY-1"))
}

func TestWriteIdentityFileRemovesExisting(t *testing.T) {
	basedir := t.TempDir()
	stalePath := filepath.Join(basedir, IdentityFileName)
	require.NoError(t, os.WriteFile(stalePath, []byte("stale content\n"), 0600))

	key := writeSSHKey(t)
	path, err := WriteIdentityFile(basedir, []string{key})
	require.NoError(t, err)

	contents, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(contents), "stale content")
}
