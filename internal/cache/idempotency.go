package cache

import (
	"context"
	"errors"
	"time"
)

const idempotencyPrefix = "idempotency:"

// IdempotencyStore records processed event ids in a Store so duplicate
// deliveries are skipped across worker restarts.
type IdempotencyStore struct {
	store Store
	ttl   time.Duration
}

// NewIdempotencyStore remembers ids for ttl.
func NewIdempotencyStore(store Store, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{store: store, ttl: ttl}
}

// Contains reports whether eventID was recorded.
func (s *IdempotencyStore) Contains(ctx context.Context, eventID string) (bool, error) {
	_, err := s.store.Get(ctx, idempotencyPrefix+eventID)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrMiss):
		return false, nil
	default:
		return false, err
	}
}

// Add records eventID.
func (s *IdempotencyStore) Add(ctx context.Context, eventID string) error {
	return s.store.Set(ctx, idempotencyPrefix+eventID, []byte("1"), s.ttl)
}
