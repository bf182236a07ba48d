package browser

import (
	"context"
	"sync"

	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

// FixtureDriver serves pre-rendered markup from memory, so the pipeline
// can run deterministically without a live browser. Errors queued for a
// URL are returned (and consumed) before its markup.
type FixtureDriver struct {
	mu      sync.Mutex
	pages   map[string]string
	errs    map[string][]error
	fetches map[string]int
	resets  int
}

// NewFixtureDriver creates a fixture driver serving the given pages
func NewFixtureDriver(pages map[string]string) *FixtureDriver {
	return &FixtureDriver{
		pages:   pages,
		errs:    make(map[string][]error),
		fetches: make(map[string]int),
	}
}

// QueueError makes the next Fetch calls for url fail with the given
// errors, in order, before markup is served
func (d *FixtureDriver) QueueError(url string, errs ...error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.errs[url] = append(d.errs[url], errs...)
}

// Fetch returns the fixture markup for url, or the next queued error
func (d *FixtureDriver) Fetch(_ context.Context, url string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.fetches[url]++

	if queue := d.errs[url]; len(queue) > 0 {
		err := queue[0]
		d.errs[url] = queue[1:]
		return "", err
	}

	markup, ok := d.pages[url]
	if !ok {
		return "", errors.NewNavigationRefused(url, nil)
	}
	return markup, nil
}

// Fetches returns how many times url was fetched
func (d *FixtureDriver) Fetches(url string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fetches[url]
}

// Resets returns how many times the session was reopened
func (d *FixtureDriver) Resets() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.resets
}

// Reset counts session reopens
func (d *FixtureDriver) Reset(context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resets++
	return nil
}

// Close is a no-op
func (d *FixtureDriver) Close() error {
	return nil
}
