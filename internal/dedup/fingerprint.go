package dedup

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"

	"github.com/dealmungchi/marketcrawler/internal/record"
)

// Fingerprint is a deterministic digest of a record's identity fields
type Fingerprint uint64

// NewFingerprint digests the identity fields of a canonical record.
// Fields are hashed in sorted name order, so two records with equal
// identity values produce equal fingerprints regardless of insertion
// order or differences in non-identity fields.
func NewFingerprint(rec record.CanonicalRecord, identityFields []string) Fingerprint {
	names := make([]string, len(identityFields))
	copy(names, identityFields)
	sort.Strings(names)

	d := xxhash.New()
	for _, name := range names {
		// \x1f separates name from value, \x1e terminates the pair,
		// keeping ("a", "bc") distinct from ("ab", "c")
		d.WriteString(name)
		d.WriteString("\x1f")
		d.WriteString(fmt.Sprint(rec[name]))
		d.WriteString("\x1e")
	}
	return Fingerprint(d.Sum64())
}

// String renders the fingerprint as a fixed-width hex key,
// usable as a cache key in persisted stores
func (f Fingerprint) String() string {
	return fmt.Sprintf("%016x", uint64(f))
}
