package dedup

import "sync"

// Store suppresses records already emitted in this crawl (or, with a
// persisted backend, in earlier crawls). CheckAndSet is the one atomic
// operation the orchestrator needs: it marks the fingerprint and reports
// whether it had been seen before, in a single step safe across workers.
type Store interface {
	CheckAndSet(fp Fingerprint) (seen bool, err error)
}

// MemoryStore is an in-process Store with process lifetime
type MemoryStore struct {
	mu   sync.Mutex
	seen map[Fingerprint]struct{}
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[Fingerprint]struct{})}
}

// CheckAndSet marks fp and reports whether it was already present
func (s *MemoryStore) CheckAndSet(fp Fingerprint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[fp]; ok {
		return true, nil
	}
	s.seen[fp] = struct{}{}
	return false, nil
}

// Len returns the number of distinct fingerprints marked so far
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}
