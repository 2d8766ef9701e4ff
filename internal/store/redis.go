package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores each collection as a JSON string key. Persist writes
// the three keys in one MULTI/EXEC transaction.
type RedisBackend struct {
	client redis.Cmdable
	closer func() error
	prefix string
}

var _ Backend = (*RedisBackend)(nil)

// RedisOptions configures NewRedisBackend.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// NewRedisBackend connects to Redis and verifies the connection.
func NewRedisBackend(ctx context.Context, opts RedisOptions) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping %s: %w", opts.Addr, err)
	}
	b := NewRedisBackendFromClient(client, opts.Prefix)
	b.closer = client.Close
	return b, nil
}

// NewRedisBackendFromClient wraps a client whose lifecycle the caller owns.
func NewRedisBackendFromClient(client redis.Cmdable, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "pipeassist"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

// Name implements Backend.
func (b *RedisBackend) Name() string { return "redis" }

func (b *RedisBackend) key(collection string) string {
	return b.prefix + ":" + collection
}

// Load implements Backend.
func (b *RedisBackend) Load(ctx context.Context) (*Snapshot, error) {
	vals, err := b.client.MGet(ctx, b.key("pipelines"), b.key("executions"), b.key("audit")).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: mget: %w", err)
	}
	snap := &Snapshot{}
	targets := []any{&snap.Pipelines, &snap.Executions, &snap.Audit}
	for i, v := range vals {
		if v == nil {
			continue
		}
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("redis: unexpected value type %T", v)
		}
		if err := json.Unmarshal([]byte(s), targets[i]); err != nil {
			return nil, fmt.Errorf("redis: decode: %w", err)
		}
	}
	return snap, nil
}

// Persist implements Backend.
func (b *RedisBackend) Persist(ctx context.Context, snap *Snapshot) error {
	docs := map[string]any{
		"pipelines":  snap.Pipelines,
		"executions": snap.Executions,
		"audit":      snap.Audit,
	}
	encoded := make(map[string][]byte, len(docs))
	for name, v := range docs {
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("redis: encode %s: %w", name, err)
		}
		encoded[name] = data
	}

	_, err := b.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for name, data := range encoded {
			pipe.Set(ctx, b.key(name), data, 0)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("redis: write snapshot: %w", err)
	}
	return nil
}

// Close implements Backend.
func (b *RedisBackend) Close() error {
	if b.closer != nil {
		return b.closer()
	}
	return nil
}
