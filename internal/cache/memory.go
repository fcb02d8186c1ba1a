package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value     float64
	count     int64
	flag      bool
	expiresAt time.Time // zero = never expires
}

// MemoryStore is a process-local Store used in tests and when no REDIS_URL
// is configured. Entries expire lazily on read.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) live(key string) *memoryEntry {
	e, ok := s.entries[key]
	if !ok {
		return nil
	}
	if !e.expiresAt.IsZero() && s.now().After(e.expiresAt) {
		delete(s.entries, key)
		return nil
	}
	return e
}

func (s *MemoryStore) deadline(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return s.now().Add(ttl)
}

func (s *MemoryStore) Get(ctx context.Context, key string) (float64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		return 0, false, nil
	}
	return e.value, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value float64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{value: value, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore) GetBatch(ctx context.Context, prefix string, keys []string) (map[string]*float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make(map[string]*float64, len(keys))
	for _, k := range keys {
		result[k] = nil
		if e := s.live(joinKey(prefix, k)); e != nil {
			v := e.value
			result[k] = &v
		}
	}
	return result, nil
}

func (s *MemoryStore) SetBatch(ctx context.Context, prefix string, values map[string]float64, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	deadline := s.deadline(ttl)
	for k, v := range values {
		s.entries[joinKey(prefix, k)] = &memoryEntry{value: v, expiresAt: deadline}
	}
	return nil
}

func (s *MemoryStore) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.live(key)
	if e == nil {
		e = &memoryEntry{expiresAt: s.deadline(ttl)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

func (s *MemoryStore) SetFlag(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key] = &memoryEntry{flag: true, expiresAt: s.deadline(ttl)}
	return nil
}

func (s *MemoryStore) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.live(key) != nil, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, key)
	return nil
}
