package tokenstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	store := NewFileStore(path)

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)
	assert.NoError(t, store.CheckHealth(ctx))

	require.NoError(t, store.Save(ctx, testToken("gho_file")))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	current, err = store.Current(ctx)
	require.NoError(t, err)
	require.NotNil(t, current)
	assert.Equal(t, testToken("gho_file"), *current)

	require.NoError(t, store.Delete(ctx))
	current, err = store.Current(ctx)
	require.NoError(t, err)
	assert.Nil(t, current)

	// Deleting a missing file is not an error
	assert.NoError(t, store.Delete(ctx))
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := NewFileStore(path).Current(context.Background())
	assert.Error(t, err)
}

func TestFileStoreCheckHealthNotDirectory(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))

	err := NewFileStore(filepath.Join(blocker, "token.json")).CheckHealth(context.Background())
	assert.ErrorIs(t, err, ErrStoreUnhealthy)
}

func TestFileStoreSubscribe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "token.json")
	store := NewFileStore(path)

	ch, err := store.Subscribe(ctx)
	require.NoError(t, err)
	assert.Nil(t, receive(t, ch))

	require.NoError(t, store.Save(ctx, testToken("gho_watched")))
	got := receive(t, ch)
	require.NotNil(t, got)
	assert.Equal(t, "gho_watched", got.AccessToken)

	require.NoError(t, store.Delete(ctx))
	assert.Nil(t, receive(t, ch))
}

func TestFileStoreSubscribeObservesOtherWriters(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "token.json")
	ch, err := NewFileStore(path).Subscribe(ctx)
	require.NoError(t, err)
	assert.Nil(t, receive(t, ch))

	// A second store on the same path stands in for another process
	other := NewFileStore(path)
	require.NoError(t, other.Save(ctx, testToken("gho_external")))

	got := receive(t, ch)
	require.NotNil(t, got)
	assert.Equal(t, "gho_external", got.AccessToken)
}
