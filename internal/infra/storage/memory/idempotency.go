package memory

import (
	"context"
	"sync"
	"time"

	"convo/internal/app/middleware"
)

// IdempotencyStore keeps send results in memory for TTL.
type IdempotencyStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	items map[string]middleware.IdempotencyRecord
}

func NewIdempotencyStore(ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{ttl: ttl, items: make(map[string]middleware.IdempotencyRecord)}
}

func (s *IdempotencyStore) Get(ctx context.Context, key string) (middleware.IdempotencyRecord, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.items[key]
	if ok && s.ttl > 0 && time.Since(rec.OccurredAt) > s.ttl {
		delete(s.items, key)
		return middleware.IdempotencyRecord{}, false, nil
	}
	return rec, ok, nil
}

func (s *IdempotencyStore) Save(ctx context.Context, rec middleware.IdempotencyRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[rec.Key] = rec
	return nil
}

// InboxStore remembers handled event ids per consumer.
type InboxStore struct {
	mu       sync.Mutex
	consumer string
	seen     map[string]struct{}
}

func NewInboxStore(consumer string) *InboxStore {
	return &InboxStore{consumer: consumer, seen: make(map[string]struct{})}
}

// Seen records eventID and reports whether it had been recorded before.
func (s *InboxStore) Seen(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := s.consumer + "/" + eventID
	if _, ok := s.seen[key]; ok {
		return true, nil
	}
	s.seen[key] = struct{}{}
	return false, nil
}

func (s *InboxStore) Release(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, s.consumer+"/"+eventID)
	return nil
}

var _ middleware.IdempotencyStore = (*IdempotencyStore)(nil)
