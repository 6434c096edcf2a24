package stress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/go-multierror"
)

// Report is the outcome of one scenario run.
type Report struct {
	RunID        string
	Config       Config
	Acquisitions int64
	Timeouts     int64
	Interrupts   int64
	Elapsed      time.Duration

	// MaxQueueLength is the longest wait queue sampled during the run.
	MaxQueueLength int

	// Violations holds one error per broken property, nil if none.
	Violations *multierror.Error
}

// Err returns the violations as an error, or nil.
func (r *Report) Err() error { return r.Violations.ErrorOrNil() }

// Passed reports whether the run found no violations.
func (r *Report) Passed() bool { return r.Err() == nil }

func (r *Report) String() string {
	status := "PASS"
	if !r.Passed() {
		status = fmt.Sprintf("FAIL (%d violations)", len(r.Violations.Errors))
	}
	return fmt.Sprintf("%-9s %s goroutines=%d iterations=%d fair=%t acquisitions=%d timeouts=%d interrupts=%d elapsed=%s",
		r.Config.Scenario, status, r.Config.Goroutines, r.Config.Iterations, r.Config.Fair,
		r.Acquisitions, r.Timeouts, r.Interrupts, r.Elapsed.Round(time.Microsecond))
}

// tally collects counters and violations from concurrent contenders.
type tally struct {
	acquisitions atomic.Int64
	timeouts     atomic.Int64
	interrupts   atomic.Int64
	maxQueue     atomic.Int64

	mu         sync.Mutex
	violations *multierror.Error
}

func (t *tally) violate(format string, args ...any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.violations = multierror.Append(t.violations, fmt.Errorf(format, args...))
}

// sampleQueue records n if it is the longest queue seen so far.
func (t *tally) sampleQueue(n int) {
	for {
		cur := t.maxQueue.Load()
		if int64(n) <= cur || t.maxQueue.CompareAndSwap(cur, int64(n)) {
			return
		}
	}
}

func (t *tally) report(runID string, cfg Config, elapsed time.Duration) *Report {
	t.mu.Lock()
	defer t.mu.Unlock()
	return &Report{
		RunID:        runID,
		Config:       cfg,
		Acquisitions: t.acquisitions.Load(),
		Timeouts:     t.timeouts.Load(),
		Interrupts:   t.interrupts.Load(),
		Elapsed:      elapsed,
		Violations:   t.violations,

		MaxQueueLength: int(t.maxQueue.Load()),
	}
}
