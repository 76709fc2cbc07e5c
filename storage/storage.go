package storage

import (
	"context"
	"errors"
)

// RecordKey is the single durable key a backend manages.
const RecordKey = "tokens"

// ErrNotFound is returned by Read when no record is stored.
var ErrNotFound = errors.New("storage: record not found")

// Record is the serialized session: the credential pair plus the identity
// fields a fresh instance needs to re-derive who is logged in.
type Record struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       int64  `json:"userId,omitempty"`
	Username     string `json:"username,omitempty"`
}

// Event signals that another instance mutated the record. The receiver
// re-reads the backend for the authoritative value; the event itself
// carries no payload beyond the writer's identity.
type Event struct {
	Origin string
}

// Backend persists the record and broadcasts mutations. Write and Delete
// take the caller's origin ID so Watch can suppress self-notifications.
type Backend interface {
	Read(ctx context.Context) (*Record, error)
	Write(ctx context.Context, rec *Record, origin string) error
	Delete(ctx context.Context, origin string) error

	// Watch delivers mutation events originated by instances other than
	// origin until ctx is done. The returned channel is closed afterwards.
	Watch(ctx context.Context, origin string) (<-chan Event, error)

	Close() error
}
