package roster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisOptions configures the redis backend.
type RedisOptions struct {
	Address  string
	Password string
	DB       int
	Key      string
}

// RedisBackend stores the roster document under a single key and publishes
// change events on "<key>:events".
type RedisBackend struct {
	client *redis.Client
	key    string
}

// NewRedisBackend dials lazily; call Ping to verify connectivity.
func NewRedisBackend(opts RedisOptions) *RedisBackend {
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Address,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	return NewRedisBackendWithClient(rdb, opts.Key)
}

// NewRedisBackendWithClient wraps an existing client.
func NewRedisBackendWithClient(client *redis.Client, key string) *RedisBackend {
	if key == "" {
		key = DefaultKey
	}
	return &RedisBackend{client: client, key: key}
}

// Key returns the roster key.
func (b *RedisBackend) Key() string { return b.key }

// Channel returns the pub/sub channel change events are published on.
func (b *RedisBackend) Channel() string { return b.key + ":events" }

// Ping tests the redis connection.
func (b *RedisBackend) Ping(ctx context.Context) error {
	if err := b.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close closes the redis connection.
func (b *RedisBackend) Close() error {
	if b.client != nil {
		return b.client.Close()
	}
	return nil
}

func (b *RedisBackend) Load(ctx context.Context) ([]byte, error) {
	data, err := b.client.Get(ctx, b.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %q: %w", b.key, err)
	}
	return data, nil
}

func (b *RedisBackend) Save(ctx context.Context, data []byte) error {
	if err := b.client.Set(ctx, b.key, data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", b.key, err)
	}
	return nil
}

func (b *RedisBackend) Notify(ctx context.Context, ev Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal roster event: %w", err)
	}
	if err := b.client.Publish(ctx, b.Channel(), payload).Err(); err != nil {
		return fmt.Errorf("redis publish %q: %w", b.Channel(), err)
	}
	return nil
}

// Watch subscribes to change events published by any process sharing the key.
// The returned channel closes when ctx is done.
func (b *RedisBackend) Watch(ctx context.Context) (<-chan Event, error) {
	sub := b.client.Subscribe(ctx, b.Channel())
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %q: %w", b.Channel(), err)
	}

	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}
