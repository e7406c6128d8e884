package cache

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/netbill/backend/internal/domain/shared"
)

// DefaultIdempotencyCapacity bounds the in-memory store; the least recently
// used key is evicted once it is full.
const DefaultIdempotencyCapacity = 100_000

type remembered struct {
	value     []byte
	expiresAt time.Time
}

// InMemoryIdempotencyStore keeps idempotency results in a process-local LRU.
// Entries carry their own deadline; the LRU's TTL only caps how long any of
// them can linger. Not shared across instances.
type InMemoryIdempotencyStore struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, remembered]
	now func() time.Time
}

// NewInMemoryIdempotencyStore creates a store holding at most capacity keys.
// A non-positive capacity selects DefaultIdempotencyCapacity.
func NewInMemoryIdempotencyStore(capacity ...int) *InMemoryIdempotencyStore {
	size := DefaultIdempotencyCapacity
	if len(capacity) > 0 && capacity[0] > 0 {
		size = capacity[0]
	}
	return &InMemoryIdempotencyStore{
		lru: expirable.NewLRU[string, remembered](size, nil, shared.DefaultIdempotencyTTL),
		now: time.Now,
	}
}

// Remember stores value unless a live value already exists.
func (s *InMemoryIdempotencyStore) Remember(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if _, live := s.live(key, now); live {
		return false, nil
	}
	s.lru.Add(key, remembered{value: clone(value), expiresAt: now.Add(ttl)})
	return true, nil
}

// Lookup returns a copy of the live value under key.
func (s *InMemoryIdempotencyStore) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.live(key, s.now())
	if !ok {
		return nil, false, nil
	}
	return clone(r.value), true, nil
}

// Forget removes key.
func (s *InMemoryIdempotencyStore) Forget(_ context.Context, key string) error {
	s.lru.Remove(key)
	return nil
}

// Close drops every entry. The store stays usable.
func (s *InMemoryIdempotencyStore) Close() error {
	s.lru.Purge()
	return nil
}

// Len reports how many keys are held, expired ones included until touched.
func (s *InMemoryIdempotencyStore) Len() int {
	return s.lru.Len()
}

// live returns the entry under key, evicting it when its deadline has passed.
// Caller holds s.mu.
func (s *InMemoryIdempotencyStore) live(key string, now time.Time) (remembered, bool) {
	r, ok := s.lru.Peek(key)
	if !ok {
		return remembered{}, false
	}
	if !now.Before(r.expiresAt) {
		s.lru.Remove(key)
		return remembered{}, false
	}
	return r, true
}

func clone(b []byte) []byte {
	if b == nil {
		return nil
	}
	return append(make([]byte, 0, len(b)), b...)
}

var _ shared.IdempotencyStore = (*InMemoryIdempotencyStore)(nil)
