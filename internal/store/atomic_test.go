package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRaw(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

type fixture struct {
	Value int `json:"value"`
}

func TestCommitWritesBothFiles(t *testing.T) {
	dir := t.TempDir()
	active := filepath.Join(dir, "active.json")
	completed := filepath.Join(dir, "completed.json")

	err := Commit(
		Write{Path: active, Value: fixture{Value: 1}},
		Write{Path: completed, Value: fixture{Value: 2}},
	)
	require.NoError(t, err)

	var a, c fixture
	found, err := Load(active, &a)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, a.Value)

	found, err = Load(completed, &c)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 2, c.Value)
}

func TestLoadMissingFileIsNotFoundNotError(t *testing.T) {
	dir := t.TempDir()
	var dest fixture
	found, err := Load(filepath.Join(dir, "missing.json"), &dest)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLoadCorruptFileIsError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "corrupt.json")
	require.NoError(t, writeRaw(path, []byte("{not json")))

	var dest fixture
	_, err := Load(path, &dest)
	assert.Error(t, err)
}

func TestRoundTripReproducesStructure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f.json")
	in := fixture{Value: 42}

	require.NoError(t, Commit(Write{Path: path, Value: in}))

	var out fixture
	found, err := Load(path, &out)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, in, out)
}
