// Package stress drives the lock types under heavy contention and checks the
// properties they promise: mutual exclusion, permit bounds, latch barriers,
// condition hand-off and clean cancellation.
package stress

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/a2y-d5l/go-qsync/locks"
	"github.com/a2y-d5l/go-qsync/observability"
	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// Runner executes scenarios.
type Runner struct {
	observer synchronizer.Observer
	logger   observability.Logger
	metrics  *observability.SyncMetrics
}

// Option configures a Runner.
type Option func(*Runner)

// WithObserver installs an observer on every lock a scenario creates.
func WithObserver(o synchronizer.Observer) Option { return func(r *Runner) { r.observer = o } }

// WithLogger sets the logger for scenario start and result lines.
func WithLogger(l observability.Logger) Option { return func(r *Runner) { r.logger = l } }

// WithMetrics records violations in m.
func WithMetrics(m *observability.SyncMetrics) Option { return func(r *Runner) { r.metrics = m } }

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = observability.Default()
	}
	if r.metrics == nil {
		r.metrics = observability.NewSyncMetrics(nil)
	}
	return r
}

type scenarioFunc func(ctx context.Context, cfg Config, lockOpts []locks.Option, t *tally) error

var scenarios = map[string]scenarioFunc{
	ScenarioMutex:     runMutex,
	ScenarioSemaphore: runSemaphore,
	ScenarioLatch:     runLatch,
	ScenarioCondition: runCondition,
	ScenarioCancel:    runCancel,
}

// Run executes one scenario. Property violations are returned in the
// Report; the error is reserved for invalid configs and aborted runs.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Report, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	ctx = observability.ContextWithRunID(ctx, runID)
	sl := observability.NewScenarioLogger(r.logger, cfg.Scenario)
	sl.LogStart(ctx, cfg.Goroutines, cfg.Iterations)

	lockOpts := []locks.Option{
		locks.WithFair(cfg.Fair),
		locks.WithName("stress-" + cfg.Scenario),
	}
	if r.observer != nil {
		lockOpts = append(lockOpts, locks.WithObserver(r.observer))
	}

	t := &tally{}
	start := time.Now()
	if err := scenarios[cfg.Scenario](ctx, cfg, lockOpts, t); err != nil {
		return nil, fmt.Errorf("stress: %s aborted: %w", cfg.Scenario, err)
	}
	report := t.report(runID, cfg, time.Since(start))

	r.metrics.RecordQueueLength("stress-"+cfg.Scenario, report.MaxQueueLength)
	if report.Violations != nil {
		for range report.Violations.Errors {
			r.metrics.RecordViolation(cfg.Scenario)
		}
	}
	sl.LogResult(ctx, report.Acquisitions, report.MaxQueueLength, report.Elapsed, report.Err())
	return report, nil
}

// RunAll executes cfgs in order. It stops at the first aborted run; the
// returned error also aggregates the violations of every completed run.
func (r *Runner) RunAll(ctx context.Context, cfgs []Config) ([]*Report, error) {
	var (
		reports []*Report
		result  *multierror.Error
	)
	for _, cfg := range cfgs {
		report, err := r.Run(ctx, cfg)
		if err != nil {
			return reports, multierror.Append(result, err).ErrorOrNil()
		}
		reports = append(reports, report)
		if verr := report.Err(); verr != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", cfg.Scenario, verr))
		}
	}
	return reports, result.ErrorOrNil()
}
