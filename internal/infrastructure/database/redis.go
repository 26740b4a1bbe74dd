package database

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/you/walletgate/domain"
)

type RedisClient struct{ *redis.Client }

func NewRedis(addr, pass string, db int) *RedisClient {
	return &RedisClient{redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db})}
}

func (c *RedisClient) Ping(ctx context.Context) error { return c.Client.Ping(ctx).Err() }

// Helpers
func SetNX(ctx context.Context, r redis.Cmdable, key string, val any, ttl time.Duration) (bool, error) {
	return r.SetNX(ctx, key, val, ttl).Result()
}

// releaseScript deletes the lock only if it still carries our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker implements domain.Locker with SET NX and a compare-and-delete release
type RedisLocker struct {
	client *redis.Client
	prefix string
	wait   time.Duration
	retry  time.Duration
}

// NewRedisLocker creates a locker that polls for up to wait before giving up
func NewRedisLocker(client *redis.Client, wait time.Duration) domain.Locker {
	return &RedisLocker{
		client: client,
		prefix: "lock:",
		wait:   wait,
		retry:  25 * time.Millisecond,
	}
}

// Acquire implements domain.Locker
func (l *RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := SetNX(ctx, l.client, l.prefix+key, token, ttl)
		if err != nil {
			return "", fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return token, nil
		}
		if !time.Now().Before(deadline) {
			return "", domain.ErrLockNotAcquired
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

// Release implements domain.Locker
func (l *RedisLocker) Release(ctx context.Context, key, token string) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.prefix + key}, token).Err(); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", key, err)
	}
	return nil
}
