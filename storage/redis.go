package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisConfig carries connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	// Prefix namespaces the record key and the notification channel so
	// several consoles can share one redis.
	Prefix string `yaml:"prefix"`
}

// Redis stores the record under {prefix}tokens and broadcasts mutations on
// the {prefix}session:events pub/sub channel. Messages carry the writer's
// origin ID, so subscribers drop their own broadcasts.
type Redis struct {
	client *redis.Client
	prefix string
}

var _ Backend = (*Redis)(nil)

func NewRedis(cfg RedisConfig) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewRedisWithClient(client, cfg.Prefix)
}

// NewRedisWithClient wraps an existing client; used by tests with miniredis.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key() string {
	return r.prefix + RecordKey
}

func (r *Redis) channel() string {
	return r.prefix + "session:events"
}

func (r *Redis) Read(ctx context.Context) (*Record, error) {
	raw, err := r.client.Get(ctx, r.key()).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("storage: decode record: %w", err)
	}
	return &rec, nil
}

func (r *Redis) Write(ctx context.Context, rec *Record, origin string) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("storage: encode record: %w", err)
	}

	// no TTL: session lifetime is governed by token expiry, which the
	// session store enforces on every hydrate
	if err := r.client.Set(ctx, r.key(), raw, 0).Err(); err != nil {
		return fmt.Errorf("storage: write record: %w", err)
	}

	return r.publish(ctx, origin)
}

func (r *Redis) Delete(ctx context.Context, origin string) error {
	if err := r.client.Del(ctx, r.key()).Err(); err != nil {
		return fmt.Errorf("storage: delete record: %w", err)
	}
	return r.publish(ctx, origin)
}

func (r *Redis) Watch(ctx context.Context, origin string) (<-chan Event, error) {
	sub := r.client.Subscribe(ctx, r.channel())
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("storage: subscribe: %w", err)
	}

	events := make(chan Event, 8)
	messages := sub.Channel()

	go func() {
		defer close(events)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				if msg.Payload == origin {
					continue
				}
				select {
				case events <- Event{Origin: msg.Payload}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return events, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) publish(ctx context.Context, origin string) error {
	if err := r.client.Publish(ctx, r.channel(), origin).Err(); err != nil {
		return fmt.Errorf("storage: publish change: %w", err)
	}
	return nil
}
