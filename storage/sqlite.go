package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// SQLiteConfig carries settings for the sqlite backend.
type SQLiteConfig struct {
	// Path is the database file; ":memory:" keeps everything in-process.
	Path string `yaml:"path"`
	// PollInterval bounds how quickly other instances observe a mutation.
	PollInterval time.Duration `yaml:"poll_interval"`
}

const defaultPollInterval = 500 * time.Millisecond

type sessionRow struct {
	bun.BaseModel `bun:"table:console_sessions"`

	Key       string    `bun:"key,pk"`
	Payload   []byte    `bun:"payload,nullzero"`
	Revision  int64     `bun:"revision,notnull"`
	Origin    string    `bun:"origin,notnull"`
	UpdatedAt time.Time `bun:"updated_at,notnull"`
}

// SQLite keeps the record in a single-row table. There is no push channel,
// so Watch polls the row's revision counter; a revision written by another
// origin becomes an Event. Deletes are tombstones (null payload) so their
// origin survives for the watcher.
type SQLite struct {
	db   *bun.DB
	poll time.Duration
}

var _ Backend = (*SQLite)(nil)

func NewSQLite(ctx context.Context, cfg SQLiteConfig) (*SQLite, error) {
	dsn := cfg.Path
	if dsn == "" {
		dsn = "file:console_session.db"
	}

	sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open sqlite: %w", err)
	}

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.NewCreateTable().
		Model((*sessionRow)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("storage: create sessions table: %w", err)
	}

	poll := cfg.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}

	return &SQLite{db: db, poll: poll}, nil
}

func (s *SQLite) Read(ctx context.Context) (*Record, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().
		Model(row).
		Where("key = ?", RecordKey).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read record: %w", err)
	}
	if len(row.Payload) == 0 {
		// tombstone left by Delete
		return nil, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal(row.Payload, &rec); err != nil {
		return nil, fmt.Errorf("storage: decode record: %w", err)
	}
	return &rec, nil
}

func (s *SQLite) Write(ctx context.Context, rec *Record, origin string) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: encode record: %w", err)
	}
	return s.upsert(ctx, payload, origin)
}

func (s *SQLite) Delete(ctx context.Context, origin string) error {
	return s.upsert(ctx, nil, origin)
}

func (s *SQLite) Watch(ctx context.Context, origin string) (<-chan Event, error) {
	lastRev, _, err := s.revision(ctx)
	if err != nil {
		return nil, err
	}

	events := make(chan Event, 8)
	ticker := time.NewTicker(s.poll)

	go func() {
		defer close(events)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rev, writer, err := s.revision(ctx)
				if err != nil || rev == lastRev {
					continue
				}
				lastRev = rev
				if writer == origin {
					continue
				}
				select {
				case events <- Event{Origin: writer}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) upsert(ctx context.Context, payload []byte, origin string) error {
	row := &sessionRow{
		Key:       RecordKey,
		Payload:   payload,
		Revision:  1,
		Origin:    origin,
		UpdatedAt: time.Now().UTC(),
	}

	_, err := s.db.NewInsert().
		Model(row).
		On("CONFLICT (key) DO UPDATE").
		Set("payload = EXCLUDED.payload").
		Set("revision = session_row.revision + 1").
		Set("origin = EXCLUDED.origin").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("storage: write record: %w", err)
	}
	return nil
}

func (s *SQLite) revision(ctx context.Context) (int64, string, error) {
	row := new(sessionRow)
	err := s.db.NewSelect().
		Model(row).
		Column("revision", "origin").
		Where("key = ?", RecordKey).
		Scan(ctx)
	if err == sql.ErrNoRows {
		return 0, "", nil
	}
	if err != nil {
		return 0, "", fmt.Errorf("storage: read revision: %w", err)
	}
	return row.Revision, row.Origin, nil
}
