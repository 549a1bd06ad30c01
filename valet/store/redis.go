package store

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a KeyValue implementation backed by Redis, for multi-instance
// deployments where pending actions and idempotency records must be shared
// across processes.
//
// Atomicity mapping:
//   - DeleteIfPresent -> GETDEL (single command, linearized by Redis)
//   - PutIfAbsent     -> SET NX with expiry
//
// Expiry is delegated to Redis TTLs, which agrees with the lazy
// expires_at check performed by callers on the decoded payload.
type Redis struct {
	client *redis.Client
	prefix string
}

// NewRedis creates a Redis-backed store.
// The prefix namespaces all keys so several deployments can share one DB.
func NewRedis(addr, password string, db int, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &Redis{client: client, prefix: prefix}
}

// NewRedisWithClient wraps an existing client. Useful for tests.
func NewRedisWithClient(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix}
}

func (r *Redis) key(k string) string {
	return r.prefix + k
}

// Put stores value under key.
func (r *Redis) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the value for key.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

// DeleteIfPresent atomically removes key and returns its value.
func (r *Redis) DeleteIfPresent(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.GetDel(ctx, r.key(key)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return val, true, nil
}

// PutIfAbsent stores value under key only if the key is absent.
func (r *Redis) PutIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	stored, err := r.client.SetNX(ctx, r.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return stored, nil
}

// Keys returns all live keys with the given prefix.
func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.key(prefix)+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val()[len(r.prefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return keys, nil
}

// Close releases the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ensure Redis implements KeyValue.
var _ KeyValue = (*Redis)(nil)
