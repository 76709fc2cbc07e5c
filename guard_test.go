package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	auth "github.com/hsmss/go-console-auth"
	"github.com/hsmss/go-console-auth/storage"
)

func testClassifier(path string) auth.RouteClass {
	switch path {
	case "/login":
		return auth.RoutePublicOnly
	case "/dashboard", "/book", "/student":
		return auth.RouteProtected
	default:
		return auth.RoutePublic
	}
}

func newGuard(t *testing.T) (*auth.Guard, *auth.Manager, *storage.Memory) {
	t.Helper()

	backend := storage.NewMemory()
	store, err := auth.OpenStore(context.Background(), backend)
	require.NoError(t, err)
	t.Cleanup(store.Close)

	sessions := auth.NewManager(store)
	guard := auth.NewGuard(sessions, testClassifier)

	return guard, sessions, backend
}

func TestGuardProtectedWhileAnonymous(t *testing.T) {
	guard, _, _ := newGuard(t)

	decision := guard.Evaluate(context.Background(), "/dashboard")

	assert.Equal(t, auth.StateUnauthenticated, decision.State)
	assert.Equal(t, "/login", decision.RedirectTo)
}

func TestGuardProtectedWhileAuthenticated(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	ctx := context.Background()

	require.NoError(t, sessions.Login(ctx, liveGrant(t, 7), "lib1"))

	decision := guard.Evaluate(ctx, "/dashboard")

	assert.Equal(t, auth.StateAuthenticated, decision.State)
	assert.Empty(t, decision.RedirectTo)
	require.NotNil(t, decision.Session.Identity)
	assert.Equal(t, "lib1", decision.Session.Identity.Username)
}

func TestGuardPublicOnlyWhileAuthenticated(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	ctx := context.Background()

	require.NoError(t, sessions.Login(ctx, liveGrant(t, 7), "lib1"))

	decision := guard.Evaluate(ctx, "/login")

	assert.Equal(t, auth.StateAuthenticated, decision.State)
	assert.Equal(t, "/dashboard", decision.RedirectTo)
}

func TestGuardPublicOnlyWhileAnonymous(t *testing.T) {
	guard, _, _ := newGuard(t)

	decision := guard.Evaluate(context.Background(), "/login")

	assert.Equal(t, auth.StateUnauthenticated, decision.State)
	assert.Empty(t, decision.RedirectTo)
}

func TestGuardPublicRoute(t *testing.T) {
	guard, _, _ := newGuard(t)

	decision := guard.Evaluate(context.Background(), "/about")

	assert.Equal(t, auth.StateUnauthenticated, decision.State)
	assert.Empty(t, decision.RedirectTo)
}

func TestGuardPurgesExpiredRefreshToken(t *testing.T) {
	_, sessions, backend := newGuard(t)
	ctx := context.Background()

	grant := auth.TokenGrant{
		AccessToken:  mintToken(t, "access", time.Now().Add(time.Hour)),
		RefreshToken: mintToken(t, "refresh", time.Now().Add(time.Minute)),
		UserID:       7,
	}
	require.NoError(t, sessions.Login(ctx, grant, "lib1"))

	// a guard whose clock sits past the refresh expiry
	stale := auth.NewGuard(sessions, testClassifier,
		auth.GuardWithClock(func() time.Time { return time.Now().Add(2 * time.Minute) }),
	)

	decision := stale.Evaluate(ctx, "/dashboard")

	assert.Equal(t, auth.StateUnauthenticated, decision.State)
	assert.Equal(t, "/login", decision.RedirectTo)

	assert.False(t, sessions.Snapshot().Authenticated())

	_, err := backend.Read(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestGuardToleratesExpiredAccessToken(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	ctx := context.Background()

	// a stale access token with a live refresh token still navigates;
	// renewal happens on the next api call, not here
	grant := auth.TokenGrant{
		AccessToken:  mintToken(t, "access", time.Now().Add(-time.Hour)),
		RefreshToken: mintToken(t, "refresh", time.Now().Add(24*time.Hour)),
		UserID:       7,
	}
	require.NoError(t, sessions.Login(ctx, grant, "lib1"))

	decision := guard.Evaluate(ctx, "/dashboard")

	assert.Equal(t, auth.StateAuthenticated, decision.State)
	assert.Empty(t, decision.RedirectTo)
}

func TestGuardCheckSupersession(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	ctx := context.Background()

	require.NoError(t, sessions.Login(ctx, liveGrant(t, 7), "lib1"))

	first := guard.StartCheck("/dashboard")
	second := guard.StartCheck("/book")

	assert.False(t, first.Current())
	assert.True(t, second.Current())

	// a superseded check must not surface its decision
	_, ok := first.Resolve(ctx)
	assert.False(t, ok)

	decision, ok := second.Resolve(ctx)
	require.True(t, ok)
	assert.Equal(t, auth.StateAuthenticated, decision.State)
}

func TestGuardCheckCancelled(t *testing.T) {
	guard, _, _ := newGuard(t)

	ctx, cancel := context.WithCancel(context.Background())
	check := guard.StartCheck("/dashboard")
	cancel()

	_, ok := check.Resolve(ctx)
	assert.False(t, ok)
}

func TestGuardOnSessionChange(t *testing.T) {
	guard, sessions, _ := newGuard(t)
	ctx := context.Background()

	decisions := make(chan auth.Decision, 4)
	unsubscribe := guard.OnSessionChange(ctx, func(d auth.Decision) {
		decisions <- d
	})
	defer unsubscribe()

	guard.StartCheck("/dashboard")

	require.NoError(t, sessions.Login(ctx, liveGrant(t, 7), "lib1"))

	select {
	case d := <-decisions:
		assert.Equal(t, auth.StateAuthenticated, d.State)
	case <-time.After(time.Second):
		t.Fatal("expected a re-check after login")
	}

	require.NoError(t, sessions.Logout(ctx))

	select {
	case d := <-decisions:
		assert.Equal(t, auth.StateUnauthenticated, d.State)
		assert.Equal(t, "/login", d.RedirectTo)
	case <-time.After(time.Second):
		t.Fatal("expected a re-check after logout")
	}
}
