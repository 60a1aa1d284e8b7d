// Package lock provides the leader lock that keeps monitor passes from
// running on more than one instance at a time.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RedisLocker holds expiring keys tagged with a per-process owner id.
type RedisLocker struct {
	client *redis.Client
	owner  string
}

// acquireScript extends the key when this owner already holds it and
// otherwise takes it only if it is free.
var acquireScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
	return 1
end
return 0
`)

// releaseScript deletes the key only when this owner holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// NewRedisLocker connects to a Redis server.
func NewRedisLocker(addr, password string, db int) *RedisLocker {
	return NewRedisLockerFromClient(redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}))
}

// NewRedisLockerFromClient wraps an existing client.
func NewRedisLockerFromClient(client *redis.Client) *RedisLocker {
	return &RedisLocker{
		client: client,
		owner:  uuid.NewString(),
	}
}

// Owner identifies this instance in lock values.
func (l *RedisLocker) Owner() string {
	return l.owner
}

// Acquire takes key for ttl, or extends it when this owner already holds it.
// It returns false when another owner holds it.
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	n, err := acquireScript.Run(ctx, l.client, []string{key}, l.owner, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return n == 1, nil
}

// Release frees key if this owner still holds it.
func (l *RedisLocker) Release(ctx context.Context, key string) error {
	if err := releaseScript.Run(ctx, l.client, []string{key}, l.owner).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}

// Holder returns the owner currently holding key, or "" when it is free.
func (l *RedisLocker) Holder(ctx context.Context, key string) (string, error) {
	owner, err := l.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read lock %s: %w", key, err)
	}
	return owner, nil
}

// Ping checks the connection.
func (l *RedisLocker) Ping(ctx context.Context) error {
	if err := l.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

// Close closes the client.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
