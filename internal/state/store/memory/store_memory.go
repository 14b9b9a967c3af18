package memory

import (
	"context"
	"sync"
	"time"

	"travelguard/internal/state"
)

type item struct {
	value     any
	expiresAt time.Time // zero means no expiry
}

func (i item) expired(now time.Time) bool {
	return !i.expiresAt.IsZero() && !now.Before(i.expiresAt)
}

// InMemoryStore is a map with per-key TTL. Expired keys are removed lazily on
// read and actively by Sweep / RunSweeper, so memory tracks live entities
// rather than every entity ever seen.
type InMemoryStore struct {
	mu    sync.Mutex
	items map[string]item
	now   func() time.Time
}

type Option func(*InMemoryStore)

// WithClock replaces time.Now, for tests that simulate expiry.
func WithClock(now func() time.Time) Option {
	return func(s *InMemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

func New(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{
		items: make(map[string]item),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get returns the live value for key.
func (s *InMemoryStore) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return nil, false
	}
	if it.expired(s.now()) {
		delete(s.items, key)
		return nil, false
	}
	return it.value, true
}

// Set stores value under key. A non-positive ttl stores without expiry.
func (s *InMemoryStore) Set(key string, value any, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it := item{value: value}
	if ttl > 0 {
		it.expiresAt = s.now().Add(ttl)
	}
	s.items[key] = it
}

// TTL returns the time key has left to live. A key stored without expiry
// reports zero.
func (s *InMemoryStore) TTL(key string) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[key]
	if !ok {
		return 0, false
	}
	now := s.now()
	if it.expired(now) {
		delete(s.items, key)
		return 0, false
	}
	if it.expiresAt.IsZero() {
		return 0, true
	}
	return it.expiresAt.Sub(now), true
}

func (s *InMemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, key)
}

// Sweep drops every expired key and returns how many were removed.
func (s *InMemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, it := range s.items {
		if it.expired(now) {
			delete(s.items, k)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *InMemoryStore) RunSweeper(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// Len counts stored keys, including expired ones not yet swept.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *InMemoryStore) GetState(_ context.Context, entityID string) (state.EntityState, bool) {
	v, ok := s.Get(state.StateKey(entityID))
	if !ok {
		return state.EntityState{}, false
	}
	st, ok := v.(state.EntityState)
	return st, ok
}

func (s *InMemoryStore) SetState(_ context.Context, entityID string, st state.EntityState, ttl time.Duration) {
	s.Set(state.StateKey(entityID), st, ttl)
}

func (s *InMemoryStore) GetViolation(_ context.Context, entityID string) (state.ViolationRecord, bool) {
	v, ok := s.Get(state.ViolationKey(entityID))
	if !ok {
		return state.ViolationRecord{}, false
	}
	rec, ok := v.(state.ViolationRecord)
	return rec, ok
}

func (s *InMemoryStore) SetViolation(_ context.Context, entityID string, v state.ViolationRecord, ttl time.Duration) {
	s.Set(state.ViolationKey(entityID), v, ttl)
}

func (s *InMemoryStore) DeleteViolation(_ context.Context, entityID string) {
	s.Delete(state.ViolationKey(entityID))
}

var _ state.Store = (*InMemoryStore)(nil)
