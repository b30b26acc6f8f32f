package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRetryInterval = 50 * time.Millisecond
	defaultWaitTimeout   = 5 * time.Second
)

// RedisLocker acquires locks through redislock so that every server
// instance sharing the Redis database is serialized.
type RedisLocker struct {
	client      *redislock.Client
	prefix      string
	ttl         time.Duration
	waitTimeout time.Duration
}

// NewRedisLocker wraps rdb. ttl bounds how long a crashed holder keeps the key.
func NewRedisLocker(rdb redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{
		client:      redislock.New(rdb),
		prefix:      prefix,
		ttl:         ttl,
		waitTimeout: defaultWaitTimeout,
	}
}

// Obtain implements Locker. It retries until the lock is free, ctx is done
// or the wait timeout passes.
func (l *RedisLocker) Obtain(ctx context.Context, key string) (Lock, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.waitTimeout)
		defer cancel()
	}

	fullKey := l.prefix + key
	held, err := l.client.Obtain(ctx, fullKey, l.ttl, &redislock.Options{
		RetryStrategy: redislock.LinearBackoff(defaultRetryInterval),
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("%w: %s", ErrNotObtained, fullKey)
		}
		return nil, fmt.Errorf("obtaining lock %s: %w", fullKey, err)
	}
	return &redisLock{lock: held}, nil
}

type redisLock struct {
	lock *redislock.Lock
}

func (l *redisLock) Release(ctx context.Context) error {
	err := l.lock.Release(ctx)
	if errors.Is(err, redislock.ErrLockNotHeld) {
		return nil // expired under us; nothing left to release
	}
	return err
}
