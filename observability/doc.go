// Package observability provides structured logging and metrics for qsync
// synchronizers.
//
// # Structured Logging
//
// The logger is built on Go's slog package and adds sampling, context
// correlation and field helpers for synchronizer events:
//
//	logger := observability.NewLogger(observability.LoggerConfig{
//		Level:  slog.LevelInfo,
//		Format: observability.JSON,
//		Output: os.Stdout,
//	})
//
//	logger.Info("lock acquired",
//		observability.SyncName("orders"),
//		observability.WaitDuration(waited),
//	)
//
// # Context-Aware Logging
//
// WithContext adds the run id stored by ContextWithRunID:
//
//	ctx = observability.ContextWithRunID(ctx, runID)
//	logger.WithContext(ctx).Info("scenario started")
//
// # High-Volume Sampling
//
// Queue events can be frequent under contention. Sampling keeps Debug and
// Info volume bounded while warnings and errors are always written:
//
//	logger := observability.NewLogger(observability.LoggerConfig{
//		Level: slog.LevelDebug,
//		Sampling: &observability.SamplingConfig{
//			Enabled:      true,
//			Rate:         0.1,
//			MaxPerSecond: 100,
//		},
//	})
//
// # Recording Queue Events
//
// Recorder implements synchronizer.Observer. Install it on a lock to log
// every queue transition, count it in a MetricsCollector and keep the
// qsync_queued gauge at the number of goroutines currently waiting:
//
//	rec := observability.NewRecorder(logger, observability.NewSyncMetrics(collector))
//	mu := locks.NewMutex(locks.WithName("orders"), locks.WithObserver(rec))
//
// Fanout combines the Recorder with other observers such as the NATS
// exporter in the natsexport subpackage.
package observability
