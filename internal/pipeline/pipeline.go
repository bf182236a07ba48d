package pipeline

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/dealmungchi/marketcrawler/config"
	"github.com/dealmungchi/marketcrawler/internal/browser"
	"github.com/dealmungchi/marketcrawler/internal/dedup"
	"github.com/dealmungchi/marketcrawler/internal/extract"
	"github.com/dealmungchi/marketcrawler/internal/normalize"
	"github.com/dealmungchi/marketcrawler/internal/sink"
	"github.com/dealmungchi/marketcrawler/logger"
	"github.com/dealmungchi/marketcrawler/pkg/errors"
	"github.com/dealmungchi/marketcrawler/services/publisher"
)

// Options configures one crawl
type Options struct {
	StartURL       string
	Region         string
	MaxPages       int
	MaxRecords     int
	MaxRetries     int
	Concurrency    int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	OnPageFailure  config.FailurePolicy
	IdentityFields []string
	RateLimitRPS   float64
}

// Pipeline coordinates driver -> extractor -> normalizer -> dedup -> sink
// for one crawl. Build one per crawl; it is not reusable.
type Pipeline struct {
	opts       Options
	driver     browser.Driver
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	store      dedup.Store
	out        sink.Sink
	pub        publisher.Publisher // optional
	log        *logger.Logger
	limiter    *rate.Limiter

	counters Counters

	// serializes Reset so concurrent workers don't reopen the
	// session on top of each other
	resetMu sync.Mutex
}

// New wires a pipeline from its collaborators. pub may be nil.
func New(
	opts Options,
	driver browser.Driver,
	extractor *extract.Extractor,
	normalizer *normalize.Normalizer,
	store dedup.Store,
	out sink.Sink,
	pub publisher.Publisher,
	log *logger.Logger,
) *Pipeline {
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.MaxRetries < 1 {
		opts.MaxRetries = 1
	}
	return &Pipeline{
		opts:       opts,
		driver:     driver,
		extractor:  extractor,
		normalizer: normalizer,
		store:      store,
		out:        out,
		pub:        pub,
		log:        log,
		limiter:    limiter,
	}
}

// pageResult is what a worker reports back for one processed cursor
type pageResult struct {
	cursor extract.PageCursor
	next   *extract.PageCursor
	err    error
}

// Run drives the crawl until the cursor chain ends, a budget is hit, the
// context is cancelled, or the failure policy aborts. The sink is flushed
// on every exit path, so partial results survive a failed crawl.
func (p *Pipeline) Run(ctx context.Context) Result {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	work := make(chan extract.PageCursor)
	results := make(chan pageResult)

	var wg sync.WaitGroup
	for i := 0; i < p.opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for cur := range work {
				next, err := p.processPage(ctx, cur)
				results <- pageResult{cursor: cur, next: next, err: err}
			}
		}()
	}

	p.log.Info().
		Str("start_url", p.opts.StartURL).
		Int("max_pages", p.opts.MaxPages).
		Int("max_records", p.opts.MaxRecords).
		Int("concurrency", p.opts.Concurrency).
		Msg("crawl started")

	state := StateDone
	queue := []extract.PageCursor{{URL: p.opts.StartURL, Page: 1}}
	dispatched := 0
	outstanding := 0
	stopped := false

	for {
		// Budgets and cancellation stop dispatch of new fetches, never
		// in-flight pages
		if !stopped {
			select {
			case <-ctx.Done():
				stopped = true
			default:
			}
		}
		if !stopped {
			if dispatched >= p.opts.MaxPages ||
				p.counters.RecordsEmitted.Load() >= int64(p.opts.MaxRecords) {
				stopped = true
			}
		}

		var dispatch chan<- extract.PageCursor
		var next extract.PageCursor
		if !stopped && len(queue) > 0 {
			dispatch = work
			next = queue[0]
		}

		if dispatch == nil && outstanding == 0 {
			break
		}

		var done <-chan struct{}
		if !stopped {
			done = ctx.Done()
		}

		select {
		case dispatch <- next:
			queue = queue[1:]
			dispatched++
			outstanding++

		case res := <-results:
			outstanding--
			if res.err != nil {
				p.counters.PagesFailed.Add(1)
				p.transition(res.cursor.URL, StateFailed)
				p.log.Error().
					Err(res.err).
					Str("url", res.cursor.URL).
					Int("page", res.cursor.Page).
					Msg("page failed")
				if p.opts.OnPageFailure == config.FailureAbort {
					state = StateFailed
					stopped = true
					cancel()
				}
				// skip policy: no cursor was recovered from this page, so
				// the crawl continues from whatever the queue still holds
				continue
			}
			if res.next != nil {
				queue = append(queue, *res.next)
			}

		case <-done:
			p.log.Warn().Msg("cancellation received, draining in-flight fetches")
			stopped = true
		}
	}

	close(work)
	wg.Wait()
	cancel()

	if err := p.out.Flush(); err != nil {
		p.log.Error().Err(err).Msg("final flush failed")
		if state == StateDone {
			state = StateFailed
		}
	}

	summary := p.counters.Snapshot()
	p.log.Info().
		Int64("pages_fetched", summary.PagesFetched).
		Int64("pages_failed", summary.PagesFailed).
		Int64("records_emitted", summary.RecordsEmitted).
		Int64("records_deduped", summary.RecordsDeduped).
		Int64("records_dropped", summary.RecordsDropped).
		Str("state", string(state)).
		Msg("crawl finished")

	return Result{State: state, Summary: summary}
}

// processPage runs one cursor through the whole state machine
func (p *Pipeline) processPage(ctx context.Context, cur extract.PageCursor) (*extract.PageCursor, error) {
	p.transition(cur.URL, StateFetching)
	markup, err := p.fetchWithRetry(ctx, cur.URL)
	if err != nil {
		return nil, err
	}
	p.counters.PagesFetched.Add(1)

	p.transition(cur.URL, StateExtracting)
	raws, next, err := p.extractor.Extract(markup, extract.PageContext{
		URL:    cur.URL,
		Page:   cur.Page,
		Region: p.opts.Region,
	})
	if err != nil {
		// Unparseable markup will not change on retry; the page is lost
		return nil, err
	}

	for _, raw := range raws {
		p.transition(cur.URL, StateNormalizing)
		rec, err := p.normalizer.Normalize(raw)
		if err != nil {
			p.counters.RecordsDropped.Add(1)
			p.log.Warn().
				Err(err).
				Str("url", cur.URL).
				Msg("record dropped")
			continue
		}

		// The budget slot is claimed before the fingerprint is marked, so
		// a record turned away by the budget is not remembered as seen by
		// a persistent store
		if !p.counters.ReserveRecord(int64(p.opts.MaxRecords)) {
			break
		}

		fp := dedup.NewFingerprint(rec, p.opts.IdentityFields)
		seen, err := p.store.CheckAndSet(fp)
		if err != nil {
			// A flaky store must not drop records; prefer duplicates
			p.log.Warn().Err(err).Msg("dedup store error, emitting anyway")
			seen = false
		}
		if seen {
			p.counters.RecordsEmitted.Add(-1)
			p.counters.RecordsDeduped.Add(1)
			continue
		}

		p.transition(cur.URL, StateSinking)
		if err := p.out.Append(rec); err != nil {
			p.counters.RecordsEmitted.Add(-1)
			return nil, err
		}

		if p.pub != nil {
			if err := p.pub.Publish(rec); err != nil {
				p.log.Warn().Err(err).Msg("publish failed")
			}
		}
	}

	return next, nil
}

// fetchWithRetry fetches one page, retrying retryable failures up to the
// MaxRetries budget with capped exponential backoff. A crashed session
// is reopened before the next attempt, on the same budget.
func (p *Pipeline) fetchWithRetry(ctx context.Context, url string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < p.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			p.transition(url, StateRetrying)
			if err := p.sleep(ctx, p.backoff(attempt)); err != nil {
				return "", lastErr
			}
			p.transition(url, StateFetching)
		}

		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return "", errors.NewNavigationRefused(url, err)
			}
		}

		markup, err := p.driver.Fetch(ctx, url)
		if err == nil {
			return markup, nil
		}
		lastErr = err

		if !errors.IsRetryable(err) {
			return "", err
		}

		p.log.Warn().
			Err(err).
			Str("url", url).
			Int("attempt", attempt+1).
			Int("max_retries", p.opts.MaxRetries).
			Msg("fetch attempt failed")

		if errors.KindOf(err) == errors.KindSessionCrashed {
			p.resetMu.Lock()
			resetErr := p.driver.Reset(ctx)
			p.resetMu.Unlock()
			if resetErr != nil {
				p.log.Error().Err(resetErr).Msg("session reopen failed")
			}
		}
	}

	return "", lastErr
}

// backoff returns base * 2^(attempt-1), capped
func (p *Pipeline) backoff(attempt int) time.Duration {
	d := p.opts.RetryBaseDelay
	if d <= 0 {
		return 0
	}
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.opts.RetryMaxDelay > 0 && d >= p.opts.RetryMaxDelay {
			return p.opts.RetryMaxDelay
		}
	}
	if p.opts.RetryMaxDelay > 0 && d > p.opts.RetryMaxDelay {
		return p.opts.RetryMaxDelay
	}
	return d
}

func (p *Pipeline) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pipeline) transition(url string, to State) {
	p.log.Debug().Str("url", url).Str("state", string(to)).Msg("state")
}

// Counters exposes the live counters, mainly for tests
func (p *Pipeline) Counters() *Counters {
	return &p.counters
}
