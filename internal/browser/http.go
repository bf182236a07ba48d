package browser

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/net/html/charset"

	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

// HTTPDriver fetches pages with a plain GET. It renders nothing, so it
// only suits static listings, but it needs no browser process and
// ignores the wait condition.
type HTTPDriver struct {
	client  *http.Client
	timeout time.Duration
}

const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/112.0.0.0 Safari/537.36"

// NewHTTPDriver creates an HTTP fetch engine. Each fetch is bounded by
// timeout, the same budget the browser engine applies to navigation.
func NewHTTPDriver(timeout time.Duration) *HTTPDriver {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPDriver{client: &http.Client{}, timeout: timeout}
}

// Fetch GETs the URL with browser-like headers and returns the body
// converted to UTF-8
func (d *HTTPDriver) Fetch(ctx context.Context, url string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", errors.NewNavigationRefused(url, err)
	}

	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := d.client.Do(req)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return "", errors.NewRenderTimeout(url, err)
		}
		return "", errors.NewNavigationRefused(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.NewNavigationRefused(url, fmt.Errorf("unexpected status code: %d", resp.StatusCode))
	}

	// Convert legacy encodings (EUC-KR, ISO-8859-1, ...) to UTF-8
	utf8Body, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type"))
	if err != nil {
		return "", errors.NewUnparseableMarkup(url, err)
	}

	body, err := io.ReadAll(utf8Body)
	if err != nil {
		// A server that stalls mid-body runs out the same clock
		if stderrors.Is(err, context.DeadlineExceeded) {
			return "", errors.NewRenderTimeout(url, err)
		}
		return "", errors.NewNavigationRefused(url, err)
	}

	return string(body), nil
}

// Reset is a no-op: a stateless HTTP client has nothing to reopen
func (d *HTTPDriver) Reset(ctx context.Context) error {
	return nil
}

// Close is a no-op
func (d *HTTPDriver) Close() error {
	return nil
}
