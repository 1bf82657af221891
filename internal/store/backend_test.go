package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-git/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vkcalls/vkcall/internal/config"
)

// exerciseBackend checks the Backend contract shared by every implementation.
func exerciseBackend(t *testing.T, b Backend) {
	t.Helper()
	ctx := context.Background()

	_, ok, err := b.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, b.Set(ctx, "k", "v1"))
	require.NoError(t, b.Set(ctx, "k", "v2"))
	v, ok, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, b.Delete(ctx, "k"))
	require.NoError(t, b.Delete(ctx, "k"))
	_, ok, err = b.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryBackend(t *testing.T) {
	exerciseBackend(t, NewMemoryBackend())
}

func TestFileBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	exerciseBackend(t, NewFileBackend(path))
}

func TestFileBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultFileName)

	first := NewTokenStore(NewFileBackend(path))
	require.NoError(t, first.SetTokens(ctx, TokenSet{AccessToken: "at", RefreshToken: "rt", ExpiresIn: 60}))
	require.NoError(t, first.SetUserID(ctx, "7"))
	require.NoError(t, first.Close())

	second := NewTokenStore(NewFileBackend(path))
	tokens, err := second.Tokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, "rt", tokens.RefreshToken)
	userID, err := second.UserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "7", userID)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	assert.NoFileExists(t, path+".tmp")
}

func TestFileBackendRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultFileName)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, _, err := NewFileBackend(path).Get(context.Background(), "k")
	require.ErrorContains(t, err, "file store")
}

func TestSQLiteBackend(t *testing.T) {
	b, err := NewSQLiteBackend(context.Background(), filepath.Join(t.TempDir(), DefaultSQLiteFileName))
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })
	exerciseBackend(t, b)
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DefaultSQLiteFileName)

	b, err := NewSQLiteBackend(ctx, path)
	require.NoError(t, err)
	require.NoError(t, b.Set(ctx, KeyDeviceID, "dev-1"))
	require.NoError(t, b.Close())

	_, _, err = b.Get(ctx, KeyDeviceID)
	require.ErrorIs(t, err, ErrNotInitialized)

	reopened, err := NewSQLiteBackend(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })
	v, ok, err := reopened.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "dev-1", v)
}

func TestGitBackendLocalCommits(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "git-store")

	b := NewGitBackend(dir, "", "", "")
	require.NoError(t, b.EnsureRepository())
	exerciseBackend(t, b)
	require.NoError(t, b.Set(ctx, KeyUserID, "99"))

	repo, err := git.PlainOpen(dir)
	require.NoError(t, err)
	head, err := repo.Head()
	require.NoError(t, err)
	commit, err := repo.CommitObject(head.Hash())
	require.NoError(t, err)
	assert.Contains(t, commit.Message, "Update vk_user_id")

	reopened := NewGitBackend(dir, "", "", "")
	v, ok, err := reopened.Get(ctx, KeyUserID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "99", v)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	authDir := t.TempDir()

	b, err := Open(ctx, config.StoreConfig{}, authDir)
	require.NoError(t, err)
	fb, ok := b.(*FileBackend)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(authDir, DefaultFileName), fb.Path())

	b, err = Open(ctx, config.StoreConfig{Type: "MEMORY"}, authDir)
	require.NoError(t, err)
	assert.IsType(t, &MemoryBackend{}, b)

	b, err = Open(ctx, config.StoreConfig{Type: config.StoreSQLite}, authDir)
	require.NoError(t, err)
	assert.IsType(t, &SQLiteBackend{}, b)
	require.NoError(t, b.Close())
	assert.FileExists(t, filepath.Join(authDir, DefaultSQLiteFileName))

	_, err = Open(ctx, config.StoreConfig{Type: "floppy"}, authDir)
	require.ErrorContains(t, err, "unknown store type")

	_, err = Open(ctx, config.StoreConfig{Type: config.StorePostgres}, authDir)
	require.ErrorContains(t, err, "DSN is required")
}
