package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
)

// Manager is the read/write facade over the session Store. It propagates
// state only: callers invoke Login after the remote endpoint has already
// accepted the credentials, never before.
type Manager struct {
	store  *Store
	logger Logger
}

type ManagerOption func(*Manager)

func ManagerWithLogger(logger Logger) ManagerOption {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

func NewManager(store *Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		logger: defLogger{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Login installs the issued grant as the current session. The user id
// comes from the grant, the username from the submitted form; neither is
// ever fetched independently.
func (m *Manager) Login(ctx context.Context, grant TokenGrant, username string) error {
	identity := Identity{UserID: grant.UserID, Username: username}
	if !identity.Valid() {
		return goerrors.New("login requires an issued user id and the submitted username", goerrors.CategoryValidation).
			WithTextCode("INVALID_IDENTITY")
	}

	if err := m.store.SetSession(ctx, grant.Pair(), identity); err != nil {
		return err
	}

	m.logger.Info("session established for %q", username)
	return nil
}

// Renew replaces the credential pair wholesale after a refresh, keeping
// the identity. Refreshing without a session is an error: renewal never
// conjures an identity.
func (m *Manager) Renew(ctx context.Context, grant TokenGrant) error {
	current := m.store.Current()
	if !current.Authenticated() {
		return ErrNotAuthenticated
	}

	identity := *current.Identity
	if grant.UserID >= 1 {
		identity.UserID = grant.UserID
	}

	return m.store.SetSession(ctx, grant.Pair(), identity)
}

// Logout destroys the session. It is idempotent: logging out while
// anonymous is a no-op that still purges any stale stored state.
func (m *Manager) Logout(ctx context.Context) error {
	return m.store.Clear(ctx)
}

// Snapshot returns the current session without blocking.
func (m *Manager) Snapshot() Session {
	return m.store.Current()
}

// OnChange registers fn for session changes from any origin. The returned
// function unsubscribes.
func (m *Manager) OnChange(fn func(Session)) func() {
	return m.store.Subscribe(fn)
}
