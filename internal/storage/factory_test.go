package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreBackends(t *testing.T) {
	dir := t.TempDir()

	store, err := NewStore("", dir, "")
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	store, err = NewStore("memory", "", "")
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
	assert.NoError(t, CloseIfSupported(store))

	store, err = NewStore("sqlite", dir, "")
	require.NoError(t, err)
	sqlite, ok := store.(*SQLiteStore)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(dir, DefaultDBFile), sqlite.path)
	assert.NoError(t, CloseIfSupported(store))
}

func TestNewStoreUnsupported(t *testing.T) {
	_, err := NewStore("unknown", "", "")
	assert.Error(t, err)

	_, err = NewStore("sqlite", "", "")
	assert.Error(t, err)
}
