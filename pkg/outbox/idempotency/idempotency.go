package idempotency

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store is the slice of the Redis client the manager uses.
type Store interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(scope, id string) string
}

// Manager records which events a consumer has already handled. Markers live
// at vd:idempotency:evt:processed:<consumer>:<event_id> and expire after ttl;
// a zero ttl keeps them forever.
type Manager struct {
	store Store
	ttl   time.Duration
	now   func() time.Time
}

func NewManager(store Store, ttl time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &Manager{store: store, ttl: ttl, now: time.Now}, nil
}

// CheckAndMarkProcessed claims eventID for consumer. It returns true when an
// earlier delivery already holds the claim.
func (m *Manager) CheckAndMarkProcessed(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return false, err
	}
	claimed, err := m.store.SetNX(ctx, key, m.now().UTC().Format(time.RFC3339), m.ttl)
	if err != nil {
		return false, err
	}
	return !claimed, nil
}

// Delete drops the claim so the next delivery is handled again.
func (m *Manager) Delete(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := m.key(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

func (m *Manager) key(consumer string, eventID uuid.UUID) (string, error) {
	switch {
	case consumer == "":
		return "", errors.New("consumer name is required")
	case eventID == uuid.Nil:
		return "", errors.New("event id is required")
	}
	return m.store.IdempotencyKey("evt:processed:"+consumer, eventID.String()), nil
}
