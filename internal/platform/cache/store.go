package cache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/riskibarqy/castaway-league/internal/platform/resilience"
)

type entry struct {
	value     any
	expiresAt time.Time
}

// Store is a process-scoped TTL cache. Build one at startup and hand it to
// the consumers that need it; there is no package-level instance.
//
// generation advances on every invalidation. GetOrLoad drops a loaded value
// when the generation moved during the load, since the loader may have read
// state the invalidation was meant to evict.
type Store struct {
	mu         sync.RWMutex
	entries    map[string]entry
	generation uint64
	ttl        time.Duration
	flight     resilience.SingleFlight
	now        func() time.Time
}

func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (s *Store) Get(_ context.Context, key string) (any, bool) {
	if key == "" {
		return nil, false
	}

	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if s.expired(e) {
		s.mu.Lock()
		if current, still := s.entries[key]; still && s.expired(current) {
			delete(s.entries, key)
		}
		s.mu.Unlock()
		return nil, false
	}

	return e.value, true
}

func (s *Store) Set(_ context.Context, key string, value any) {
	if key == "" {
		return
	}

	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[key] = entry{value: value, expiresAt: expiresAt}
	s.mu.Unlock()
}

// setIfGeneration stores value only when no invalidation happened since gen
// was read.
func (s *Store) setIfGeneration(key string, value any, gen uint64) bool {
	expiresAt := time.Time{}
	if s.ttl > 0 {
		expiresAt = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen {
		return false
	}
	s.entries[key] = entry{value: value, expiresAt: expiresAt}
	return true
}

func (s *Store) currentGeneration() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

func (s *Store) Delete(_ context.Context, key string) {
	if key == "" {
		return
	}

	s.mu.Lock()
	delete(s.entries, key)
	s.generation++
	s.mu.Unlock()
}

// InvalidatePrefix drops every key starting with prefix and returns how many were removed.
func (s *Store) InvalidatePrefix(_ context.Context, prefix string) int {
	if prefix == "" {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	removed := 0
	for key := range s.entries {
		if strings.HasPrefix(key, prefix) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// Flush drops every entry.
func (s *Store) Flush(_ context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	removed := len(s.entries)
	s.entries = make(map[string]entry)
	return removed
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

func (s *Store) GetOrLoad(ctx context.Context, key string, loader func(context.Context) (any, error)) (any, error) {
	if loader == nil {
		return nil, fmt.Errorf("loader is required")
	}
	if key == "" {
		return loader(ctx)
	}

	if value, ok := s.Get(ctx, key); ok {
		return value, nil
	}

	value, err, _ := s.flight.Do(key, func() (any, error) {
		if cached, ok := s.Get(ctx, key); ok {
			return cached, nil
		}

		gen := s.currentGeneration()
		loaded, loadErr := loader(ctx)
		if loadErr != nil {
			return nil, loadErr
		}
		s.setIfGeneration(key, loaded, gen)
		return loaded, nil
	})
	if err != nil {
		return nil, err
	}

	return value, nil
}

func (s *Store) expired(e entry) bool {
	return s.ttl > 0 && !e.expiresAt.After(s.now())
}
