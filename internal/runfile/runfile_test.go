package runfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTrip(t *testing.T) {
	f := In(filepath.Join(t.TempDir(), "cache"))

	_, err := f.Read()
	assert.ErrorIs(t, err, ErrNoRun)

	require.NoError(t, f.Write("0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b"))
	id, err := f.Read()
	require.NoError(t, err)
	assert.Equal(t, "0190a1b2-c3d4-7e5f-8a9b-0c1d2e3f4a5b", id)

	require.NoError(t, f.Write("run-2"))
	id, err = f.Read()
	require.NoError(t, err)
	assert.Equal(t, "run-2", id, "write replaces the previous run")

	require.NoError(t, f.Remove())
	_, err = f.Read()
	assert.ErrorIs(t, err, ErrNoRun)
	assert.NoError(t, f.Remove(), "removing twice is fine")
}

func TestReadTrimsWhitespace(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Name), []byte("run-1\n"), 0o644))

	id, err := In(dir).Read()
	require.NoError(t, err)
	assert.Equal(t, "run-1", id)
}

func TestReadEmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, Name), nil, 0o644))

	_, err := In(dir).Read()
	assert.ErrorIs(t, err, ErrNoRun)
}

func TestWriteRejectsInvalidID(t *testing.T) {
	f := In(t.TempDir())
	assert.Error(t, f.Write(""))
	assert.Error(t, f.Write("a\nb"))
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, In(dir).Write("run-1"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, Name, entries[0].Name())
}
