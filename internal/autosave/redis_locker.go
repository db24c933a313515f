package autosave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotHeld is returned when releasing a lock that expired or was taken over.
var ErrLockNotHeld = errors.New("lock not held")

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker is a Locker shared by every server replica. It takes the lock
// with SET NX PX and retries with capped backoff until the context ends.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisLocker creates a RedisLocker. ttl bounds how long a crashed holder can block others.
func NewRedisLocker(client redis.UniversalClient, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisLocker{client: client, keyPrefix: "bpls:save-lock:", ttl: ttl}
}

func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.keyPrefix + key
	token := uuid.New().String()
	backoff := 5 * time.Millisecond

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire save lock %s: %w", key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 200*time.Millisecond {
				backoff = 200 * time.Millisecond
			}
		}
	}

	return func() {
		// Release even when the caller's context is already done.
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := l.release(releaseCtx, lockKey, token); err != nil {
			slog.WarnContext(ctx, "failed to release save lock", "key", key, "error", err)
		}
	}, nil
}

func (l *RedisLocker) release(ctx context.Context, lockKey, token string) error {
	result, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int64()
	if err != nil {
		return err
	}
	if result == 0 {
		return ErrLockNotHeld
	}
	return nil
}
