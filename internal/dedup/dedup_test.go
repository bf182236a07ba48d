package dedup

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dealmungchi/marketcrawler/internal/record"
)

func TestFingerprintIgnoresNonIdentityFields(t *testing.T) {
	a := record.CanonicalRecord{"url": "https://example.com/1", "name": "A", "price": 10.0}
	b := record.CanonicalRecord{"url": "https://example.com/1", "name": "B", "price": 99.0}

	assert.Equal(t, NewFingerprint(a, []string{"url"}), NewFingerprint(b, []string{"url"}))
}

func TestFingerprintFieldOrderIndependent(t *testing.T) {
	rec := record.CanonicalRecord{"symbol": "PETR4", "name": "Petrobras"}

	fp1 := NewFingerprint(rec, []string{"symbol", "name"})
	fp2 := NewFingerprint(rec, []string{"name", "symbol"})
	assert.Equal(t, fp1, fp2)
}

func TestFingerprintDistinguishesValues(t *testing.T) {
	a := record.CanonicalRecord{"url": "https://example.com/1"}
	b := record.CanonicalRecord{"url": "https://example.com/2"}

	assert.NotEqual(t, NewFingerprint(a, []string{"url"}), NewFingerprint(b, []string{"url"}))
}

func TestFingerprintFraming(t *testing.T) {
	// ("a", "bc") must not collide with ("ab", "c")
	a := record.CanonicalRecord{"a": "bc"}
	b := record.CanonicalRecord{"ab": "c"}

	assert.NotEqual(t, NewFingerprint(a, []string{"a"}), NewFingerprint(b, []string{"ab"}))
}

func TestMemoryStoreCheckAndSet(t *testing.T) {
	s := NewMemoryStore()

	seen, err := s.CheckAndSet(Fingerprint(42))
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.CheckAndSet(Fingerprint(42))
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Equal(t, 1, s.Len())
}

func TestMemoryStoreConcurrentCheckAndSet(t *testing.T) {
	s := NewMemoryStore()
	const workers = 16

	var wg sync.WaitGroup
	unseen := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := s.CheckAndSet(Fingerprint(7))
			assert.NoError(t, err)
			if !seen {
				unseen <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(unseen)

	// Exactly one worker may win the check-and-set
	assert.Len(t, unseen, 1)
}
