package errors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a crawl error
type Kind string

const (
	// KindRenderTimeout means the page did not satisfy its wait condition in time
	KindRenderTimeout Kind = "render_timeout"
	// KindNavigationRefused means the navigation itself failed (DNS, connection, HTTP error)
	KindNavigationRefused Kind = "navigation_refused"
	// KindSessionCrashed means the browser session is unusable and must be reopened
	KindSessionCrashed Kind = "session_crashed"
	// KindUnparseableMarkup means the fetched markup could not be parsed at all
	KindUnparseableMarkup Kind = "unparseable_markup"
	// KindValidation means a record failed schema validation
	KindValidation Kind = "validation"
	// KindConfiguration represents configuration errors
	KindConfiguration Kind = "configuration"
	// KindSink represents output write errors
	KindSink Kind = "sink"
)

// CrawlError is a crawl-specific error carrying its kind and page context
type CrawlError struct {
	Kind    Kind
	URL     string
	Message string
	Err     error
	Time    time.Time
}

// Error implements the error interface
func (e *CrawlError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Kind, e.URL, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Kind, e.URL, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the orchestrator may retry the page
func (e *CrawlError) IsRetryable() bool {
	switch e.Kind {
	case KindRenderTimeout, KindNavigationRefused, KindSessionCrashed:
		return true
	default:
		return false
	}
}

// New creates a new CrawlError
func New(kind Kind, url, message string, err error) *CrawlError {
	return &CrawlError{
		Kind:    kind,
		URL:     url,
		Message: message,
		Err:     err,
		Time:    time.Now(),
	}
}

// NewRenderTimeout creates a render timeout error
func NewRenderTimeout(url string, err error) *CrawlError {
	return New(KindRenderTimeout, url, "wait condition not satisfied before deadline", err)
}

// NewNavigationRefused creates a navigation error
func NewNavigationRefused(url string, err error) *CrawlError {
	return New(KindNavigationRefused, url, "navigation failed", err)
}

// NewSessionCrashed creates a session crash error
func NewSessionCrashed(url string, err error) *CrawlError {
	return New(KindSessionCrashed, url, "browser session unusable", err)
}

// NewUnparseableMarkup creates a markup parse error
func NewUnparseableMarkup(url string, err error) *CrawlError {
	return New(KindUnparseableMarkup, url, "markup could not be parsed", err)
}

// NewValidation creates a record validation error
func NewValidation(field, message string) *CrawlError {
	return New(KindValidation, "", fmt.Sprintf("field %q: %s", field, message), nil)
}

// NewConfiguration creates a configuration error
func NewConfiguration(message string, err error) *CrawlError {
	return New(KindConfiguration, "", message, err)
}

// NewSink creates an output write error
func NewSink(message string, err error) *CrawlError {
	return New(KindSink, "", message, err)
}

// KindOf returns the Kind of err if it is (or wraps) a CrawlError,
// or an empty Kind otherwise
func KindOf(err error) Kind {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return ""
}

// IsRetryable reports whether err is a retryable CrawlError
func IsRetryable(err error) bool {
	var ce *CrawlError
	if errors.As(err, &ce) {
		return ce.IsRetryable()
	}
	return false
}
