package observability

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// LogFormat selects the slog handler.
type LogFormat int

const (
	// JSON writes one JSON object per line
	JSON LogFormat = iota
	// Text writes logfmt-style key=value lines
	Text
)

// Logger is the structured logger used across qsync.
type Logger interface {
	Debug(msg string, fields ...slog.Attr)
	Info(msg string, fields ...slog.Attr)
	Warn(msg string, fields ...slog.Attr)
	Error(msg string, fields ...slog.Attr)
	With(fields ...slog.Attr) Logger
	WithContext(ctx context.Context) Logger
	Log(ctx context.Context, level slog.Level, msg string, fields ...slog.Attr)
}

// LoggerConfig configures NewLogger. A nil Output writes to stderr.
type LoggerConfig struct {
	Level    slog.Level
	Format   LogFormat
	Output   io.Writer
	Sampling *SamplingConfig
}

// SamplingConfig thins Debug and Info records. Warn and above are never
// dropped.
type SamplingConfig struct {
	Enabled bool
	// Rate is the fraction of records kept, spread evenly. Values outside
	// (0, 1) keep everything.
	Rate float64
	// MaxPerSecond caps the records written in one wall-clock second. Zero
	// means no cap.
	MaxPerSecond int
}

var defaultLogger atomic.Pointer[Logger]

func init() {
	SetDefaultLogger(NewLogger(LoggerConfig{Level: slog.LevelInfo, Format: Text}))
}

// SetDefaultLogger replaces the logger returned by Default.
func SetDefaultLogger(l Logger) { defaultLogger.Store(&l) }

// Default returns the process-wide logger used when none is configured.
func Default() Logger { return *defaultLogger.Load() }

type slogLogger struct {
	sl      *slog.Logger
	sampler *sampler
}

// NewLogger creates a Logger backed by slog.
func NewLogger(cfg LoggerConfig) Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: cfg.Level}

	var h slog.Handler = slog.NewTextHandler(out, opts)
	if cfg.Format == JSON {
		h = slog.NewJSONHandler(out, opts)
	}

	l := &slogLogger{sl: slog.New(h)}
	if cfg.Sampling != nil && cfg.Sampling.Enabled {
		l.sampler = &sampler{rate: cfg.Sampling.Rate, perSecond: cfg.Sampling.MaxPerSecond}
	}
	return l
}

func (l *slogLogger) Debug(msg string, fields ...slog.Attr) {
	l.Log(context.Background(), slog.LevelDebug, msg, fields...)
}

func (l *slogLogger) Info(msg string, fields ...slog.Attr) {
	l.Log(context.Background(), slog.LevelInfo, msg, fields...)
}

func (l *slogLogger) Warn(msg string, fields ...slog.Attr) {
	l.Log(context.Background(), slog.LevelWarn, msg, fields...)
}

func (l *slogLogger) Error(msg string, fields ...slog.Attr) {
	l.Log(context.Background(), slog.LevelError, msg, fields...)
}

// With returns a child logger that adds fields to every record. The child
// shares the parent's sampler.
func (l *slogLogger) With(fields ...slog.Attr) Logger {
	if len(fields) == 0 {
		return l
	}
	args := make([]any, len(fields))
	for i, f := range fields {
		args[i] = f
	}
	return &slogLogger{sl: l.sl.With(args...), sampler: l.sampler}
}

type contextKey struct{ name string }

var runIDKey = contextKey{"run_id"}

// ContextWithRunID tags ctx with a stress run id. WithContext adds it as the
// run_id field.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey, id)
}

// RunID returns the run id stored in ctx, if any.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey).(string)
	return id, ok && id != ""
}

// WithContext returns a logger carrying the run id found in ctx, or l
// itself when there is none.
func (l *slogLogger) WithContext(ctx context.Context) Logger {
	id, ok := RunID(ctx)
	if !ok {
		return l
	}
	return l.With(slog.String(runIDKey.name, id))
}

func (l *slogLogger) Log(ctx context.Context, level slog.Level, msg string, fields ...slog.Attr) {
	if !l.sl.Enabled(ctx, level) {
		return
	}
	if l.sampler != nil && level < slog.LevelWarn && !l.sampler.keep(time.Now()) {
		return
	}
	l.sl.LogAttrs(ctx, level, msg, fields...)
}

type sampler struct {
	rate      float64
	perSecond int

	mu     sync.Mutex
	seen   uint64
	second int64
	inSec  int
}

// keep reports whether the next sampled record is written. The rate keeps
// record n when floor(n*rate) advances, so kept records are evenly spaced.
func (s *sampler) keep(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.perSecond > 0 {
		if sec := now.Unix(); sec != s.second {
			s.second, s.inSec = sec, 0
		}
		if s.inSec >= s.perSecond {
			return false
		}
	}
	if s.rate > 0 && s.rate < 1 {
		s.seen++
		if uint64(float64(s.seen)*s.rate) == uint64(float64(s.seen-1)*s.rate) {
			return false
		}
	}
	s.inSec++
	return true
}

// SyncName tags the synchronizer name.
func SyncName(name string) slog.Attr { return slog.String("sync.name", name) }

// Goroutine tags a goroutine id.
func Goroutine(id int64) slog.Attr { return slog.Int64("sync.goroutine", id) }

// Mode tags the acquire mode.
func Mode(mode string) slog.Attr { return slog.String("sync.mode", mode) }

// EventKind tags a queue event kind.
func EventKind(kind string) slog.Attr { return slog.String("sync.event", kind) }

// WaitDuration tags how long a goroutine spent queued.
func WaitDuration(d time.Duration) slog.Attr { return slog.Duration("sync.waited", d) }

// QueueLength tags a wait queue length.
func QueueLength(n int) slog.Attr { return slog.Int("sync.queue_length", n) }

// Duration tags an arbitrary duration.
func Duration(key string, d time.Duration) slog.Attr { return slog.Duration(key, d) }

// Operation tags the operation being logged.
func Operation(op string) slog.Attr { return slog.String("operation", op) }

// ErrorField tags an error message.
func ErrorField(err error) slog.Attr { return slog.String("error", err.Error()) }

// Scenario tags a stress scenario.
func Scenario(name string) slog.Attr { return slog.String("scenario", name) }

// WorkerCount tags the number of goroutines in a run.
func WorkerCount(count int) slog.Attr { return slog.Int("worker_count", count) }
