package pipeline

import "sync/atomic"

// State is one step of the per-page crawl state machine:
//
//	Idle -> Fetching -> Extracting -> Normalizing -> Sinking -> (Fetching | Done)
//	any state -> Failed | Retrying (-> Fetching)
type State string

const (
	StateIdle        State = "idle"
	StateFetching    State = "fetching"
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateSinking     State = "sinking"
	StateRetrying    State = "retrying"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

// Counters are the process-scoped crawl counters. Workers update them
// atomically; the orchestrator reads them for loop termination and the
// final summary.
type Counters struct {
	PagesFetched   atomic.Int64
	PagesFailed    atomic.Int64
	RecordsEmitted atomic.Int64
	RecordsDeduped atomic.Int64
	RecordsDropped atomic.Int64
}

// Summary is a plain snapshot of the counters for reporting
type Summary struct {
	PagesFetched   int64
	PagesFailed    int64
	RecordsEmitted int64
	RecordsDeduped int64
	RecordsDropped int64
}

// ReserveRecord claims one emission slot, or reports the budget spent.
// Claiming before sinking is what keeps concurrent workers from
// overshooting the cap; a claim for a record that is then deduped or
// fails to sink is released with RecordsEmitted.Add(-1).
func (c *Counters) ReserveRecord(max int64) bool {
	for {
		n := c.RecordsEmitted.Load()
		if n >= max {
			return false
		}
		if c.RecordsEmitted.CompareAndSwap(n, n+1) {
			return true
		}
	}
}

// Snapshot reads all counters at once
func (c *Counters) Snapshot() Summary {
	return Summary{
		PagesFetched:   c.PagesFetched.Load(),
		PagesFailed:    c.PagesFailed.Load(),
		RecordsEmitted: c.RecordsEmitted.Load(),
		RecordsDeduped: c.RecordsDeduped.Load(),
		RecordsDropped: c.RecordsDropped.Load(),
	}
}

// Result is the outcome of a whole crawl
type Result struct {
	// State is StateDone or StateFailed
	State State
	// Summary holds the final counter values
	Summary Summary
}

// ExitCode maps the crawl outcome to the process exit code:
// 0 clean, 1 done with skipped pages, 2 failed
func (r Result) ExitCode() int {
	if r.State == StateFailed {
		return 2
	}
	if r.Summary.PagesFailed > 0 {
		return 1
	}
	return 0
}
