package fileutil

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFileAtomicReplacesContents(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	target := filepath.Join(dir, "runs.json")

	require.NoError(t, WriteFileAtomic(target, []byte("first"), 0o644))
	require.NoError(t, WriteFileAtomic(target, []byte("second"), 0o600))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	info, err := os.Stat(target)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temporary files left behind")
	assert.Equal(t, "runs.json", entries[0].Name())
}

func TestWriteFileAtomicMissingDir(t *testing.T) {
	t.Parallel()

	err := WriteFileAtomic(filepath.Join(t.TempDir(), "missing", "runs.json"), []byte("x"), 0o644)
	assert.Error(t, err)
}

func TestWriteJSONAtomic(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "summary.json")
	require.NoError(t, WriteJSONAtomic(target, map[string]int{"runs": 3}, 0o644))

	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), data[len(data)-1])

	var got map[string]int
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, 3, got["runs"])

	assert.Error(t, WriteJSONAtomic(target, make(chan int), 0o644))
}
