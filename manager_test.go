package auth_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/hsmss/go-console-auth"
	"github.com/hsmss/go-console-auth/storage"
)

func newManager(t *testing.T) *auth.Manager {
	t.Helper()

	store, err := auth.OpenStore(context.Background(), storage.NewMemory())
	require.NoError(t, err)
	t.Cleanup(store.Close)

	return auth.NewManager(store)
}

func TestManagerLogin(t *testing.T) {
	ctx := context.Background()
	sessions := newManager(t)

	grant := liveGrant(t, 7)
	require.NoError(t, sessions.Login(ctx, grant, "lib1"))

	snapshot := sessions.Snapshot()
	require.True(t, snapshot.Authenticated())
	assert.Equal(t, int64(7), snapshot.Identity.UserID)
	assert.Equal(t, "lib1", snapshot.Identity.Username)
	assert.Equal(t, grant.AccessToken, snapshot.Credentials.AccessToken)
	assert.Equal(t, grant.RefreshToken, snapshot.Credentials.RefreshToken)
}

func TestManagerLoginRequiresIdentity(t *testing.T) {
	ctx := context.Background()
	sessions := newManager(t)

	grant := liveGrant(t, 0)
	assert.Error(t, sessions.Login(ctx, grant, "lib1"))

	grant = liveGrant(t, 7)
	assert.Error(t, sessions.Login(ctx, grant, ""))

	assert.False(t, sessions.Snapshot().Authenticated())
}

func TestManagerRenewKeepsIdentity(t *testing.T) {
	ctx := context.Background()
	sessions := newManager(t)

	require.NoError(t, sessions.Login(ctx, liveGrant(t, 7), "lib1"))

	renewal := liveGrant(t, 0)
	require.NoError(t, sessions.Renew(ctx, renewal))

	snapshot := sessions.Snapshot()
	require.True(t, snapshot.Authenticated())
	assert.Equal(t, "lib1", snapshot.Identity.Username)
	assert.Equal(t, int64(7), snapshot.Identity.UserID)
	assert.Equal(t, renewal.AccessToken, snapshot.Credentials.AccessToken)
	assert.Equal(t, renewal.RefreshToken, snapshot.Credentials.RefreshToken)
}

func TestManagerRenewWithoutSession(t *testing.T) {
	sessions := newManager(t)

	err := sessions.Renew(context.Background(), liveGrant(t, 7))
	assert.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestManagerLogoutIsIdempotent(t *testing.T) {
	ctx := context.Background()
	sessions := newManager(t)

	require.NoError(t, sessions.Login(ctx, liveGrant(t, 7), "lib1"))

	require.NoError(t, sessions.Logout(ctx))
	assert.False(t, sessions.Snapshot().Authenticated())

	require.NoError(t, sessions.Logout(ctx))
}

func TestManagerOnChange(t *testing.T) {
	ctx := context.Background()
	sessions := newManager(t)

	var seen []bool
	unsubscribe := sessions.OnChange(func(s auth.Session) {
		seen = append(seen, s.Authenticated())
	})
	defer unsubscribe()

	require.NoError(t, sessions.Login(ctx, liveGrant(t, 7), "lib1"))
	require.NoError(t, sessions.Logout(ctx))

	assert.Equal(t, []bool{true, false}, seen)
}
