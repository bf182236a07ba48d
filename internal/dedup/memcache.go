package dedup

import (
	stderrors "errors"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcacheStore is a Store persisted in memcache, so a resumed crawl
// does not re-emit records from earlier runs. A zero TTL keeps marks
// for the server's default lifetime.
type MemcacheStore struct {
	client *memcache.Client
	prefix string
	ttl    time.Duration

	// check-and-set must stay atomic across workers even though
	// Add itself is atomic server-side; the mutex also serializes
	// the degraded local path when the server is unreachable
	mu sync.Mutex
}

// NewMemcacheStore creates a memcache-backed store
func NewMemcacheStore(addr, prefix string, ttl time.Duration) *MemcacheStore {
	return &MemcacheStore{
		client: memcache.New(addr),
		prefix: prefix,
		ttl:    ttl,
	}
}

// CheckAndSet marks fp and reports whether it was already present.
// Memcache's Add is a server-side check-and-set: it fails with
// ErrNotStored when the key already exists. Transport errors degrade
// to "not seen" so a flaky cache drops duplicates rather than records.
func (s *MemcacheStore) CheckAndSet(fp Fingerprint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.client.Add(&memcache.Item{
		Key:        s.prefix + fp.String(),
		Value:      []byte{1},
		Expiration: int32(s.ttl.Seconds()),
	})
	if err == nil {
		return false, nil
	}
	if stderrors.Is(err, memcache.ErrNotStored) {
		return true, nil
	}
	return false, err
}
