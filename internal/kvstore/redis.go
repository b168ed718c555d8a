// Package kvstore adapts a Redis instance to the narrow key-value
// contract the permission cache consumes. Redis owns per-key expiry and
// linearizes operations on a key, which is all the cache requires.
package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a thin wrapper over a go-redis client.
type Redis struct {
	client *redis.Client
}

// NewRedis connects to the given address ("host:port").
func NewRedis(addr string) (*Redis, error) {
	if addr == "" {
		return nil, errors.New("kvstore: redis address is required")
	}
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr})}, nil
}

// Get returns the value and true, or false when the key is absent or
// expired.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return val, true, nil
}

// SetEx stores the value with a per-key TTL.
func (r *Redis) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

// Del removes the given keys.
func (r *Redis) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

// DelMatch removes every key matching a glob pattern, scanning in
// batches to avoid blocking the server.
func (r *Redis) DelMatch(ctx context.Context, pattern string) error {
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Ping reports whether the store is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close releases the client's connection pool.
func (r *Redis) Close() error {
	return r.client.Close()
}
