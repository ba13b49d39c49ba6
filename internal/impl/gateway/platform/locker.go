package impl_platform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	port_platform "github.com/PedroCamargo-dev/core-bank-transfer-saga/internal/ports/gateway/platform"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var ErrLockNotAcquired = errors.New("platform: lock not acquired")

const (
	defaultLockExpiry     = 30 * time.Second
	defaultLockTries      = 32
	defaultLockRetryDelay = 100 * time.Millisecond
)

type LockConfig struct {
	Expiry     time.Duration
	Tries      int
	RetryDelay time.Duration
}

// RedisLocker is a redlock mutex per key, shared by every process that
// points at the same Redis.
type RedisLocker struct {
	rs     *redsync.Redsync
	cfg    LockConfig
	logger *zap.Logger
}

var _ port_platform.Locker = (*RedisLocker)(nil)

func NewRedisLocker(client redis.UniversalClient, cfg LockConfig, logger *zap.Logger) *RedisLocker {
	if cfg.Expiry <= 0 {
		cfg.Expiry = defaultLockExpiry
	}
	if cfg.Tries <= 0 {
		cfg.Tries = defaultLockTries
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultLockRetryDelay
	}

	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		cfg:    cfg,
		logger: logger,
	}
}

func (l *RedisLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	mutex := l.rs.NewMutex(key,
		redsync.WithExpiry(l.cfg.Expiry),
		redsync.WithTries(l.cfg.Tries),
		redsync.WithRetryDelay(l.cfg.RetryDelay),
	)

	if err := mutex.LockContext(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, key, err)
	}

	defer func() {
		ok, err := mutex.UnlockContext(context.WithoutCancel(ctx))
		if err != nil || !ok {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Bool("held", ok), zap.Error(err))
		}
	}()

	return fn(ctx)
}

// LocalLocker serializes keys inside a single process. It backs the
// in-memory deployment where no Redis is configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localLock
}

type localLock struct {
	ch   chan struct{}
	refs int
}

var _ port_platform.Locker = (*LocalLocker)(nil)

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*localLock{}}
}

func (l *LocalLocker) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	lock := l.acquireRef(key)
	defer l.releaseRef(key, lock)

	select {
	case lock.ch <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ErrLockNotAcquired, key, ctx.Err())
	}
	defer func() { <-lock.ch }()

	return fn(ctx)
}

func (l *LocalLocker) acquireRef(key string) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[key]
	if !ok {
		lock = &localLock{ch: make(chan struct{}, 1)}
		l.locks[key] = lock
	}
	lock.refs++

	return lock
}

func (l *LocalLocker) releaseRef(key string, lock *localLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, key)
	}
}
