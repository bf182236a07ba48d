package browser

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/dealmungchi/marketcrawler/logger"
	"github.com/dealmungchi/marketcrawler/pkg/errors"
)

// Options configures the rod browser session
type Options struct {
	Headless       bool
	NoSandbox      bool
	Bin            string
	Stealth        bool
	DismissDialogs bool
	NavTimeout     time.Duration
	Wait           WaitCondition
}

// RodDriver drives a headless Chromium session over CDP.
// One driver owns one browser process; it is not shared across crawls.
type RodDriver struct {
	opts Options
	log  *logger.Logger

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	closed  bool
}

// NewRodDriver launches the browser and connects to it
func NewRodDriver(opts Options) (*RodDriver, error) {
	d := &RodDriver{
		opts: opts,
		log:  logger.ForComponent("browser"),
	}
	if err := d.open(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *RodDriver) open() error {
	l := launcher.New().
		Headless(d.opts.Headless).
		NoSandbox(d.opts.NoSandbox)

	if d.opts.Bin != "" {
		l = l.Bin(d.opts.Bin)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return errors.NewSessionCrashed("", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return errors.NewSessionCrashed("", err)
	}

	d.browser = browser
	d.lnch = l
	d.closed = false
	d.log.Debug().Str("control_url", controlURL).Msg("browser launched")
	return nil
}

// Fetch navigates to url in a fresh page and returns the rendered markup
// once the wait condition holds. The page is always closed before return,
// so the session stays reusable.
func (d *RodDriver) Fetch(ctx context.Context, url string) (string, error) {
	d.mu.Lock()
	browser := d.browser
	closed := d.closed
	d.mu.Unlock()

	if closed || browser == nil {
		return "", errors.NewSessionCrashed(url, nil)
	}

	timeout := d.opts.NavTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		// Failing to even open a tab means the browser process is gone
		return "", errors.NewSessionCrashed(url, err)
	}
	defer func() { _ = page.Close() }()

	if d.opts.DismissDialogs {
		dismissDialogs(page)
	}

	// Stealth JS must be installed before navigation to take effect
	if d.opts.Stealth {
		if _, err := page.EvalOnNewDocument(stealth.JS); err != nil {
			d.log.Warn().Err(err).Msg("stealth injection failed, proceeding without it")
		}
	}

	p := page.Context(ctx)

	// The idle listener must be registered before Navigate, or in-flight
	// requests are missed and the wait returns instantly
	var waitIdle func()
	if d.opts.Wait.Mode == WaitNetworkIdle {
		waitIdle = p.WaitRequestIdle(300*time.Millisecond, nil, nil, nil)
	}

	if err := p.Navigate(url); err != nil {
		return "", classifyNavError(url, err)
	}

	if err := d.applyWait(ctx, p, waitIdle); err != nil {
		return "", errors.NewRenderTimeout(url, err)
	}

	markup, err := p.HTML()
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return "", errors.NewRenderTimeout(url, err)
		}
		return "", errors.NewSessionCrashed(url, err)
	}

	return markup, nil
}

// applyWait blocks per the configured wait condition
func (d *RodDriver) applyWait(ctx context.Context, p *rod.Page, waitIdle func()) error {
	switch d.opts.Wait.Mode {
	case WaitImmediate:
		return nil
	case WaitElement:
		_, err := p.Element(d.opts.Wait.Selector)
		return err
	case WaitDelay:
		select {
		case <-time.After(d.opts.Wait.Delay):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	case WaitNetworkIdle:
		if waitIdle != nil {
			waitIdle()
		}
		return ctx.Err()
	default:
		return nil
	}
}

// Reset kills the crashed browser process and launches a fresh one
func (d *RodDriver) Reset(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.browser != nil {
		_ = d.browser.Close()
	}
	if d.lnch != nil {
		d.lnch.Kill()
	}
	d.log.Warn().Msg("reopening browser session")
	return d.open()
}

// Close shuts the browser down. Safe to call repeatedly.
func (d *RodDriver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true

	var err error
	if d.browser != nil {
		err = d.browser.Close()
	}
	if d.lnch != nil {
		d.lnch.Kill()
	}
	return err
}

// dismissDialogs auto-accepts JavaScript dialogs so a blocking
// alert/confirm/prompt never wedges the session
func dismissDialogs(page *rod.Page) {
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		_ = proto.PageHandleJavaScriptDialog{Accept: true}.Call(page)
	})()
}

// classifyNavError maps a raw navigation error onto the retry taxonomy
func classifyNavError(url string, err error) error {
	switch {
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.NewRenderTimeout(url, err)
	case stderrors.Is(err, context.Canceled):
		return errors.NewNavigationRefused(url, err)
	default:
		return errors.NewNavigationRefused(url, err)
	}
}
