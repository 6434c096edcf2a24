package observability

import (
	"context"
	"log/slog"
	"time"

	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// Recorder is a synchronizer.Observer that logs queue events and records them
// as metrics. Routine events are logged at Debug; abandoned acquires at Warn.
// The MetricQueued gauge rises on every enqueue and falls when the queued
// goroutine acquires or gives up.
type Recorder struct {
	logger  Logger
	metrics *SyncMetrics
}

var _ synchronizer.Observer = (*Recorder)(nil)

// NewRecorder creates a Recorder. A nil logger or metrics falls back to the
// package defaults.
func NewRecorder(logger Logger, metrics *SyncMetrics) *Recorder {
	if logger == nil {
		logger = Default()
	}
	if metrics == nil {
		metrics = NewSyncMetrics(nil)
	}
	return &Recorder{logger: logger, metrics: metrics}
}

// Observe implements synchronizer.Observer
func (r *Recorder) Observe(e synchronizer.Event) {
	kind, mode := e.Kind.String(), e.Mode.String()
	r.metrics.RecordEvent(e.Synchronizer, kind, mode)

	fields := []slog.Attr{
		SyncName(e.Synchronizer),
		EventKind(kind),
		Mode(mode),
		Goroutine(e.Goroutine),
	}

	switch e.Kind {
	case synchronizer.EventEnqueued:
		r.metrics.RecordQueued(e.Synchronizer, 1)
		r.logger.Debug("queue event", fields...)
	case synchronizer.EventAcquired:
		r.metrics.RecordQueued(e.Synchronizer, -1)
		r.metrics.RecordWait(e.Synchronizer, mode, e.Waited)
		r.logger.Debug("queued goroutine acquired", append(fields, WaitDuration(e.Waited))...)
	case synchronizer.EventCancelled:
		r.metrics.RecordQueued(e.Synchronizer, -1)
		r.metrics.RecordWait(e.Synchronizer, mode, e.Waited)
		r.metrics.RecordCancellation(e.Synchronizer)
		r.logger.Warn("queued acquire abandoned", append(fields, WaitDuration(e.Waited))...)
	default:
		r.logger.Debug("queue event", fields...)
	}
}

// Fanout delivers every event to each observer in order
type Fanout []synchronizer.Observer

// Observe implements synchronizer.Observer
func (f Fanout) Observe(e synchronizer.Event) {
	for _, o := range f {
		if o != nil {
			o.Observe(e)
		}
	}
}

// ScenarioLogger provides observability-enhanced logging for stress runs
type ScenarioLogger struct {
	Logger
	scenario string
}

// NewScenarioLogger creates a logger scoped to one stress scenario
func NewScenarioLogger(logger Logger, scenario string) *ScenarioLogger {
	if logger == nil {
		logger = Default()
	}
	return &ScenarioLogger{
		Logger:   logger.With(Scenario(scenario)),
		scenario: scenario,
	}
}

// LogStart logs the start of a scenario run
func (sl *ScenarioLogger) LogStart(ctx context.Context, goroutines, iterations int) {
	sl.WithContext(ctx).Info("scenario started",
		WorkerCount(goroutines),
		slog.Int("iterations", iterations),
		Operation("scenario-start"),
	)
}

// LogResult logs a finished scenario with its outcome
func (sl *ScenarioLogger) LogResult(ctx context.Context, acquisitions int64, maxQueue int, elapsed time.Duration, err error) {
	logger := sl.WithContext(ctx).With(
		slog.Int64("acquisitions", acquisitions),
		QueueLength(maxQueue),
		Duration("elapsed", elapsed),
		Operation("scenario-result"),
	)

	if err != nil {
		logger.Error("scenario found violations",
			ErrorField(err),
			slog.String("failure_reason", "property_violation"),
		)
	} else {
		logger.Info("scenario passed")
	}
}
