package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, dir string) *SQLiteStore {
	t.Helper()
	key, err := LoadOrCreateDeviceKey(filepath.Join(dir, "device.key"))
	require.NoError(t, err)
	store, err := OpenSQLiteStore(context.Background(), filepath.Join(dir, "session.db"), key)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir())

	_, ok, err := store.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, KeyAuthToken, "token-1"))
	got, ok, err := store.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "token-1", got)

	require.NoError(t, store.Set(ctx, KeyAuthToken, "token-2"))
	got, _, err = store.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.Equal(t, "token-2", got)

	require.NoError(t, store.Delete(ctx, KeyAuthToken))
	_, ok, err = store.Get(ctx, KeyAuthToken)
	require.NoError(t, err)
	assert.False(t, ok)

	// deleting an absent key is fine
	require.NoError(t, store.Delete(ctx, KeyRememberMe))
}

func TestSQLiteStoreEncryptsValues(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t, t.TempDir())
	require.NoError(t, store.Set(ctx, KeyRefreshToken, "very-secret-refresh-token"))

	var raw []byte
	require.NoError(t, store.db.QueryRowContext(ctx, `SELECT value FROM session_entries WHERE key = ?`, KeyRefreshToken).Scan(&raw))
	assert.NotContains(t, string(raw), "very-secret-refresh-token")

	// a value copied under another key does not open
	_, err := store.db.ExecContext(ctx, `INSERT INTO session_entries (key, value) VALUES (?, ?)`, KeyAuthToken, raw)
	require.NoError(t, err)
	_, _, err = store.Get(ctx, KeyAuthToken)
	assert.ErrorIs(t, err, ErrCorruptEntry)
}

func TestSQLiteStoreSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	first := openTestStore(t, dir)
	m := NewManager(first, nil, nil)
	require.NoError(t, m.Login(ctx, "access-1", "refresh-1", true))
	require.NoError(t, first.Close())

	second := openTestStore(t, dir)
	restarted := NewManager(second, nil, nil)
	require.NoError(t, restarted.Load(ctx))
	assert.Equal(t, "access-1", restarted.AccessToken())

	require.NoError(t, restarted.Logout(ctx))
	for _, key := range []string{KeyAuthToken, KeyRefreshToken, KeyRememberMe} {
		_, ok, err := second.Get(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, key)
	}
}

func TestDeviceKeyIsStable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.key")

	a, err := LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	b, err := LoadOrCreateDeviceKey(path)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, os.WriteFile(path, []byte("short"), 0o600))
	_, err = LoadOrCreateDeviceKey(path)
	assert.Error(t, err)
}
