package publisher

import "github.com/dealmungchi/marketcrawler/internal/record"

// Publisher forwards emitted canonical records to a downstream consumer.
// Publishing is best-effort: failures are logged by the caller and never
// abort the crawl.
type Publisher interface {
	// Publish forwards one canonical record
	Publish(rec record.CanonicalRecord) error

	// Close closes the publisher connection
	Close() error
}
