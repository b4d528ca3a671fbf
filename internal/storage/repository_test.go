package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/micro-ha/bloomin-presence/internal/domain/frame"
)

func newRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(context.Background(), filepath.Join(t.TempDir(), "bloomin.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestBLECacheSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bloomin.db")
	repo, err := New(ctx, path, nil)
	require.NoError(t, err)

	addr := frame.Address("AA:BB:CC:DD:EE:FF")
	_, err = repo.SyncFrame(ctx, "hall", "192.168.1.50", addr)
	require.NoError(t, err)
	want := frame.BLECache{
		ServiceUUID:        "0000ff00-0000-1000-8000-00805f9b34fb",
		CharacteristicUUID: "0000f001-0000-1000-8000-00805f9b34fb",
	}
	require.NoError(t, repo.SaveBLECache(ctx, "hall", want))
	require.NoError(t, repo.Close())

	reopened, err := New(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.SyncFrame(ctx, "hall", "192.168.1.51", addr)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	rec, err := reopened.LoadFrame(ctx, "hall")
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.51", rec.Host)
	assert.NotNil(t, rec.DiscoveredAt)
}

func TestSyncFrameDropsCacheOnAddressChange(t *testing.T) {
	ctx := context.Background()
	repo := newRepo(t)

	_, err := repo.SyncFrame(ctx, "hall", "h", frame.Address("AA:BB:CC:DD:EE:FF"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveBLECache(ctx, "hall", frame.BLECache{ServiceUUID: "s", CharacteristicUUID: "c"}))

	got, err := repo.SyncFrame(ctx, "hall", "h", frame.Address("11:22:33:44:55:66"))
	require.NoError(t, err)
	assert.True(t, got.Empty(), "cache = %+v, want empty after address change", got)
}

func TestClearBLECacheSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "bloomin.db")
	repo, err := New(ctx, path, nil)
	require.NoError(t, err)
	addr := frame.Address("AA:BB:CC:DD:EE:FF")

	_, err = repo.SyncFrame(ctx, "hall", "h", addr)
	require.NoError(t, err)
	require.NoError(t, repo.SaveBLECache(ctx, "hall", frame.BLECache{ServiceUUID: "s", CharacteristicUUID: "c"}))
	require.NoError(t, repo.ClearBLECache(ctx, "hall"))
	assert.ErrorIs(t, repo.ClearBLECache(ctx, "missing"), ErrNotFound)
	require.NoError(t, repo.Close())

	reopened, err := New(ctx, path, nil)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.SyncFrame(ctx, "hall", "h", addr)
	require.NoError(t, err)
	assert.True(t, got.Empty(), "cache = %+v, want empty after clear", got)

	rec, err := reopened.LoadFrame(ctx, "hall")
	require.NoError(t, err)
	assert.Nil(t, rec.DiscoveredAt)
}

func TestSaveBLECacheUnknownFrame(t *testing.T) {
	repo := newRepo(t)
	err := repo.SaveBLECache(context.Background(), "missing", frame.BLECache{ServiceUUID: "s", CharacteristicUUID: "c"})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = repo.LoadFrame(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
