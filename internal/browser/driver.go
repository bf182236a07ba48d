package browser

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Driver owns one fetch session and turns a URL into rendered markup.
// Implementations must leave the session reusable after every Fetch.
type Driver interface {
	// Fetch navigates to url and returns the rendered markup once the
	// configured wait condition is satisfied. Errors are typed
	// *errors.CrawlError values (RenderTimeout, NavigationRefused,
	// SessionCrashed).
	Fetch(ctx context.Context, url string) (string, error)

	// Reset reopens the session after a SessionCrashed error
	Reset(ctx context.Context) error

	// Close releases the session. Safe to call more than once.
	Close() error
}

// WaitMode selects how long Fetch blocks after navigation before
// sampling the DOM
type WaitMode string

const (
	// WaitImmediate samples the DOM as soon as navigation completes
	WaitImmediate WaitMode = "immediate"
	// WaitElement blocks until a selector is present
	WaitElement WaitMode = "element"
	// WaitDelay blocks for a fixed duration
	WaitDelay WaitMode = "delay"
	// WaitNetworkIdle blocks until the page stops issuing requests
	WaitNetworkIdle WaitMode = "networkidle"
)

// WaitCondition is a parsed wait configuration
type WaitCondition struct {
	Mode     WaitMode
	Selector string        // for WaitElement
	Delay    time.Duration // for WaitDelay
}

// ParseWaitCondition parses the config string form:
// "immediate", "element:<css>", "delay:<ms>" or "networkidle"
func ParseWaitCondition(s string) (WaitCondition, error) {
	mode, arg, _ := strings.Cut(strings.TrimSpace(s), ":")

	switch WaitMode(mode) {
	case WaitImmediate:
		return WaitCondition{Mode: WaitImmediate}, nil
	case WaitNetworkIdle:
		return WaitCondition{Mode: WaitNetworkIdle}, nil
	case WaitElement:
		if arg == "" {
			return WaitCondition{}, fmt.Errorf("wait condition %q is missing a selector", s)
		}
		return WaitCondition{Mode: WaitElement, Selector: arg}, nil
	case WaitDelay:
		ms, err := strconv.Atoi(arg)
		if err != nil || ms < 0 {
			return WaitCondition{}, fmt.Errorf("wait condition %q needs a delay in milliseconds", s)
		}
		return WaitCondition{Mode: WaitDelay, Delay: time.Duration(ms) * time.Millisecond}, nil
	default:
		return WaitCondition{}, fmt.Errorf("unknown wait condition %q", s)
	}
}
