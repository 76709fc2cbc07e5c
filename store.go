package auth

import (
	"context"
	"sync"
	"time"

	evbus "github.com/asaskevich/EventBus"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/hsmss/go-console-auth/storage"
)

const sessionTopic = "session.changed"

// Store is the single source of truth for the current session. It keeps an
// in-process snapshot (the tab-scoped view), persists the tuple to a
// storage.Backend, and re-reads whenever another instance mutates storage.
//
// Only the Store writes the backend; everything else goes through Store or
// Manager so the credential/identity pair is never observed torn.
type Store struct {
	backend storage.Backend
	codec   *Codec
	logger  Logger
	bus     evbus.Bus
	id      string
	now     func() time.Time

	mu      sync.RWMutex
	current Session

	cancelWatch context.CancelFunc
}

type StoreOption func(*Store)

func StoreWithLogger(logger Logger) StoreOption {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func StoreWithCodec(codec *Codec) StoreOption {
	return func(s *Store) {
		if codec != nil {
			s.codec = codec
		}
	}
}

// StoreWithClock injects a custom clock (useful for tests).
func StoreWithClock(clock func() time.Time) StoreOption {
	return func(s *Store) {
		if clock != nil {
			s.now = clock
		}
	}
}

// OpenStore hydrates the store from durable storage and starts watching for
// mutations made by other instances. A stored refresh token that already
// expired is purged rather than surfaced as a stale identity.
func OpenStore(ctx context.Context, backend storage.Backend, opts ...StoreOption) (*Store, error) {
	s := &Store{
		backend: backend,
		codec:   NewCodec(),
		logger:  defLogger{},
		bus:     evbus.New(),
		id:      uuid.NewString(),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	if err := s.hydrate(ctx); err != nil {
		return nil, err
	}

	watchCtx, cancel := context.WithCancel(context.Background())
	events, err := backend.Watch(watchCtx, s.id)
	if err != nil {
		cancel()
		return nil, goerrors.Wrap(err, goerrors.CategoryOperation, "failed to watch session storage")
	}

	s.cancelWatch = cancel
	go s.watch(watchCtx, events)

	return s, nil
}

// InstanceID identifies this store in cross-instance change broadcasts.
func (s *Store) InstanceID() string {
	return s.id
}

// Current returns the present snapshot. It never blocks on I/O.
func (s *Store) Current() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// SetSession atomically replaces both halves of the session, persists the
// tuple, and notifies subscribers here and in other instances. The local
// snapshot reflects the change before any I/O completes.
func (s *Store) SetSession(ctx context.Context, pair CredentialPair, identity Identity) error {
	if !pair.Complete() || !identity.Valid() {
		return ErrSessionInconsistent
	}

	sess := NewSession(pair, identity)

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()

	s.bus.Publish(sessionTopic, sess)

	rec := &storage.Record{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		UserID:       identity.UserID,
		Username:     identity.Username,
	}
	if err := s.backend.Write(ctx, rec, s.id); err != nil {
		s.logger.Error("persist session: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to persist session")
	}

	return nil
}

// Clear atomically removes both halves, persists the removal, and notifies
// subscribers. Clearing an already-anonymous store is a no-op locally but
// still deletes the stored record, repairing any stale partial state.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	changed := s.current.Authenticated()
	s.current = Anonymous()
	s.mu.Unlock()

	if changed {
		s.bus.Publish(sessionTopic, Anonymous())
	}

	if err := s.backend.Delete(ctx, s.id); err != nil {
		s.logger.Error("clear session storage: %v", err)
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to clear session storage")
	}

	return nil
}

// Subscribe registers fn for every session change, local or remote. The
// returned function unsubscribes.
func (s *Store) Subscribe(fn func(Session)) func() {
	if err := s.bus.Subscribe(sessionTopic, fn); err != nil {
		s.logger.Error("subscribe session changes: %v", err)
		return func() {}
	}
	return func() {
		_ = s.bus.Unsubscribe(sessionTopic, fn)
	}
}

// Close stops the storage watcher. The backend itself belongs to the caller.
func (s *Store) Close() {
	if s.cancelWatch != nil {
		s.cancelWatch()
	}
}

func (s *Store) hydrate(ctx context.Context) error {
	rec, err := s.backend.Read(ctx)
	if goerrors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "failed to read session storage")
	}

	sess, reason := s.sessionFromRecord(rec)
	if !sess.Authenticated() {
		s.logger.Info("purging stored session: %s", reason)
		if err := s.backend.Delete(ctx, s.id); err != nil {
			s.logger.Warn("purge stored session: %v", err)
		}
		return nil
	}

	s.mu.Lock()
	s.current = sess
	s.mu.Unlock()
	return nil
}

func (s *Store) watch(ctx context.Context, events <-chan storage.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.logger.Debug("session storage changed by %s", ev.Origin)
			s.adoptRemote(ctx)
		}
	}
}

// adoptRemote re-reads the authoritative record after another instance
// wrote it. Last write observed wins; an unreadable or stale record is
// adopted as anonymous without fighting the writer over the stored value.
func (s *Store) adoptRemote(ctx context.Context) {
	var sess Session

	rec, err := s.backend.Read(ctx)
	switch {
	case goerrors.Is(err, storage.ErrNotFound):
		sess = Anonymous()
	case err != nil:
		s.logger.Warn("re-read session storage: %v", err)
		return
	default:
		var reason string
		sess, reason = s.sessionFromRecord(rec)
		if reason != "" {
			s.logger.Info("remote session not adopted: %s", reason)
		}
	}

	s.mu.Lock()
	changed := !s.current.Equal(sess)
	s.current = sess
	s.mu.Unlock()

	if changed {
		s.bus.Publish(sessionTopic, sess)
	}
}

// sessionFromRecord validates a stored record into a session. A record
// holding only one half of the tuple, or a refresh token already past its
// expiry, yields the anonymous session and a reason.
func (s *Store) sessionFromRecord(rec *storage.Record) (Session, string) {
	pair := CredentialPair{AccessToken: rec.AccessToken, RefreshToken: rec.RefreshToken}
	identity := Identity{UserID: rec.UserID, Username: rec.Username}

	if !pair.Complete() || !identity.Valid() {
		return Anonymous(), ErrSessionInconsistent.Message
	}
	if s.codec.IsExpired(pair.RefreshToken, s.now()) {
		return Anonymous(), "refresh token expired"
	}
	return NewSession(pair, identity), ""
}
