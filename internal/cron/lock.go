package cron

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vendeo/vendeo-backend/pkg/instance"
)

const defaultLockTTL = 25 * time.Hour

// Lock keeps two workers from running the same tick.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type lockStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfEquals(ctx context.Context, key, value string) (bool, error)
}

// RedisLock is a SETNX lease whose value names the holder, so a worker whose
// lease expired cannot delete its successor's.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	held  string
}

func NewRedisLock(store lockStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("redis client required for lock")
	case strings.TrimSpace(key) == "":
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := instance.GetID() + "/" + uuid.NewString()
	ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	if ok {
		l.held = token
	}
	return ok, nil
}

// Release is a no-op unless this lock currently holds the lease.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.held == "" {
		return nil
	}
	token := l.held
	l.held = ""
	if _, err := l.store.DelIfEquals(ctx, l.key, token); err != nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
