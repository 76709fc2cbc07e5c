package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hsmss/go-console-auth/storage"
)

func newSQLiteBackend(t *testing.T, path string) *storage.SQLite {
	t.Helper()

	backend, err := storage.NewSQLite(context.Background(), storage.SQLiteConfig{
		Path:         path,
		PollInterval: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	return backend
}

func TestSQLiteRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t, filepath.Join(t.TempDir(), "console.db"))

	_, err := backend.Read(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	rec := &storage.Record{
		AccessToken:  "access",
		RefreshToken: "refresh",
		UserID:       7,
		Username:     "lib1",
	}
	require.NoError(t, backend.Write(ctx, rec, "a"))

	got, err := backend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec, got)

	// overwrite replaces wholesale
	rec.Username = "lib2"
	require.NoError(t, backend.Write(ctx, rec, "a"))

	got, err = backend.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "lib2", got.Username)
}

func TestSQLiteDeleteLeavesTombstone(t *testing.T) {
	ctx := context.Background()
	backend := newSQLiteBackend(t, filepath.Join(t.TempDir(), "console.db"))

	rec := &storage.Record{AccessToken: "access", RefreshToken: "refresh"}
	require.NoError(t, backend.Write(ctx, rec, "a"))
	require.NoError(t, backend.Delete(ctx, "a"))

	_, err := backend.Read(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	// deleting with nothing stored still works
	require.NoError(t, backend.Delete(ctx, "a"))
}

func TestSQLiteWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := filepath.Join(t.TempDir(), "console.db")
	writer := newSQLiteBackend(t, path)
	watcher := newSQLiteBackend(t, path)

	events, err := watcher.Watch(ctx, "b")
	require.NoError(t, err)

	rec := &storage.Record{AccessToken: "access", RefreshToken: "refresh"}
	require.NoError(t, writer.Write(ctx, rec, "a"))

	select {
	case ev := <-events:
		assert.Equal(t, "a", ev.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the poller to observe the write")
	}

	// a delete is a mutation too
	require.NoError(t, writer.Delete(ctx, "a"))

	select {
	case ev := <-events:
		assert.Equal(t, "a", ev.Origin)
	case <-time.After(2 * time.Second):
		t.Fatal("expected the poller to observe the delete")
	}
}

func TestSQLiteWatchDropsOwnWrites(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	backend := newSQLiteBackend(t, filepath.Join(t.TempDir(), "console.db"))

	events, err := backend.Watch(ctx, "a")
	require.NoError(t, err)

	rec := &storage.Record{AccessToken: "access", RefreshToken: "refresh"}
	require.NoError(t, backend.Write(ctx, rec, "a"))

	select {
	case ev := <-events:
		t.Fatalf("writer received its own event: %+v", ev)
	case <-time.After(200 * time.Millisecond):
	}
}
