package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStateStore implements StateStore using ttlcache. Suitable for
// single-instance deployments; use the Redis store when callbacks can land
// on a different instance than the one that issued the state.
type MemoryStateStore struct {
	mu    sync.Mutex
	cache *ttlcache.Cache[string, struct{}]
	ttl   time.Duration
}

// NewMemoryStateStore creates an in-memory state store with automatic
// expiry of unconsumed states.
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, struct{}](ttl),
		ttlcache.WithDisableTouchOnHit[string, struct{}](),
	)

	// Start the expired-entry reaper.
	go cache.Start()

	return &MemoryStateStore{
		cache: cache,
		ttl:   ttl,
	}
}

// Issue implements StateStore.Issue. On the (never expected) collision it
// regenerates rather than overwriting the existing record.
func (s *MemoryStateStore) Issue(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for {
		state, err := GenerateState()
		if err != nil {
			return "", err
		}
		if s.cache.Has(state) {
			continue
		}
		s.cache.Set(state, struct{}{}, s.ttl)
		return state, nil
	}
}

// Consume implements StateStore.Consume as a single atomic check-and-delete.
func (s *MemoryStateStore) Consume(_ context.Context, state string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.cache.Get(state)
	s.cache.Delete(state)
	if item == nil || item.IsExpired() {
		return false, nil
	}
	return true, nil
}

// Close stops the reaper goroutine.
func (s *MemoryStateStore) Close() error {
	s.cache.Stop()
	return nil
}

var _ StateStore = (*MemoryStateStore)(nil)
