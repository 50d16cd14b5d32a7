package idempotency

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	response  []byte
	expiresAt time.Time
}

// MemoryStore keeps records in process; used by tests and the CLI.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{entries: make(map[string]memoryEntry), now: now}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || !s.now().Before(e.expiresAt) {
		return nil, false, nil
	}
	return append([]byte(nil), e.response...), true, nil
}

func (s *MemoryStore) Put(ctx context.Context, key string, response []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = memoryEntry{
		response:  append([]byte(nil), response...),
		expiresAt: s.now().Add(ttl),
	}
	return nil
}

func (s *MemoryStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, e := range s.entries {
		if e.expiresAt.Before(before) {
			delete(s.entries, k)
			n++
		}
	}
	return n, nil
}
