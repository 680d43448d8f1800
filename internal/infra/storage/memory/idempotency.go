package memory

import (
	"context"
	"sync"

	"rentacar/internal/app/middleware"
)

// IdempotencyStore keeps records in a map. Expiry is judged by the caller's
// clock, passed in as the claim's OccurredAt.
type IdempotencyStore struct {
	mu    sync.Mutex
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	return rec, ok, nil
}

func (s *IdempotencyStore) Claim(ctx context.Context, rec middleware.IdempotencyRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[rec.Key]; ok && !cur.Expired(rec.OccurredAt) {
		return false, nil
	}
	s.items[rec.Key] = rec
	return true, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

func (s *IdempotencyStore) Release(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.items[key]; ok && cur.InFlight {
		delete(s.items, key)
	}
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
