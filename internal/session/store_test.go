package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorePreservesOtherKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "storage.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o700))
	require.NoError(t, os.WriteFile(path, []byte(`{"theme":"dark"}`), 0o600))

	store := NewFileStore(path)
	require.NoError(t, store.Save(ctx, "tok"))

	token, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "tok", token)

	require.NoError(t, store.Clear(ctx))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"theme":"dark"}`, string(data))
}

func TestFileStoreCorruptedFileIsMovedAside(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	store := NewFileStore(path)
	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.FileExists(t, path+".backup")
}

func TestFileStoreClearEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.NoError(t, store.Clear(ctx))
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "storage.db")

	store, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)

	_, ok, err := store.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Save(ctx, "first"))
	require.NoError(t, store.Save(ctx, "second"))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	token, ok, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "second", token)

	require.NoError(t, reopened.Clear(ctx))
	require.NoError(t, reopened.Clear(ctx))
	_, ok, err = reopened.Load(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenStore(t *testing.T) {
	dir := t.TempDir()

	for _, kind := range []string{"", StoreFile, StoreMemory, StoreSQLite} {
		store, closeFn, err := OpenStore(ctx, kind, filepath.Join(dir, "t-"+kind))
		require.NoError(t, err, kind)
		require.NotNil(t, store, kind)
		assert.NoError(t, closeFn(), kind)
	}

	_, closeFn, err := OpenStore(ctx, "redis", "")
	assert.Error(t, err)
	assert.NotNil(t, closeFn)
}
