// Package natsexport publishes synchronizer queue events to NATS so they can
// be watched from outside the process.
package natsexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/a2y-d5l/go-qsync/observability"
	"github.com/a2y-d5l/go-qsync/synchronizer"
)

// DefaultSubject is the subject prefix events are published under.
const DefaultSubject = "qsync.events"

// DefaultFlushTimeout bounds Flush and Close when ctx has no deadline.
const DefaultFlushTimeout = 5 * time.Second

// HeaderMessageID carries the event id on every published message.
const HeaderMessageID = "X-Message-Id"

// ErrClosed is returned by Flush after Close.
var ErrClosed = errors.New("natsexport: exporter closed")

// Record is the JSON payload of one published event.
type Record struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	Seq          uint64    `json:"seq"`
	Synchronizer string    `json:"synchronizer"`
	Kind         string    `json:"kind"`
	Mode         string    `json:"mode"`
	Goroutine    int64     `json:"goroutine"`
	WaitedMs     float64   `json:"waited_ms,omitempty"`
	Time         time.Time `json:"time"`
}

// Decode parses a published payload.
func Decode(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("natsexport: decode: %w", err)
	}
	return r, nil
}

// Option configures an Exporter.
type Option func(*config)

type config struct {
	subject string
	source  string
	logger  observability.Logger
}

// WithSubject sets the subject prefix. Events go to
// <prefix>.<synchronizer>.<kind>.
func WithSubject(prefix string) Option {
	return func(c *config) { c.subject = strings.TrimSuffix(prefix, ".") }
}

// WithSource sets the source id stamped on every record. It defaults to a
// random UUID per exporter.
func WithSource(id string) Option { return func(c *config) { c.source = id } }

// WithLogger sets the logger used to report publish failures.
func WithLogger(l observability.Logger) Option { return func(c *config) { c.logger = l } }

// Exporter is a synchronizer.Observer that publishes every event as a JSON
// Record. Publishing only buffers in the NATS client, so Observe does not
// block on the network; failures are counted and logged, never returned.
type Exporter struct {
	nc     *nats.Conn
	owned  bool
	cfg    config
	seq    atomic.Uint64
	failed atomic.Uint64
	closed atomic.Bool
}

var _ synchronizer.Observer = (*Exporter)(nil)

// New creates an Exporter on an existing connection. Close does not close nc.
func New(nc *nats.Conn, opts ...Option) *Exporter {
	cfg := config{subject: DefaultSubject}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.source == "" {
		cfg.source = uuid.NewString()
	}
	if cfg.logger == nil {
		cfg.logger = observability.Default()
	}
	cfg.logger = cfg.logger.With(slog.String("exporter.source", cfg.source))
	return &Exporter{nc: nc, cfg: cfg}
}

// Connect dials url and creates an Exporter that owns the connection.
func Connect(url string, opts ...Option) (*Exporter, error) {
	nc, err := nats.Connect(url,
		nats.Name("qsync-exporter"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("natsexport: connect %s: %w", url, err)
	}
	x := New(nc, opts...)
	x.owned = true
	return x, nil
}

// Source returns the source id stamped on records.
func (x *Exporter) Source() string { return x.cfg.source }

// Subject returns the subject an event is published to.
func (x *Exporter) Subject(e synchronizer.Event) string {
	return x.cfg.subject + "." + token(e.Synchronizer) + "." + e.Kind.String()
}

// Observe implements synchronizer.Observer.
func (x *Exporter) Observe(e synchronizer.Event) {
	if x.closed.Load() {
		return
	}
	r := Record{
		ID:           uuid.NewString(),
		Source:       x.cfg.source,
		Seq:          x.seq.Add(1),
		Synchronizer: e.Synchronizer,
		Kind:         e.Kind.String(),
		Mode:         e.Mode.String(),
		Goroutine:    e.Goroutine,
		WaitedMs:     float64(e.Waited.Nanoseconds()) / 1e6,
		Time:         e.Time,
	}
	data, err := json.Marshal(r)
	if err != nil {
		x.fail(e, err)
		return
	}

	msg := &nats.Msg{
		Subject: x.Subject(e),
		Data:    data,
		Header:  nats.Header{},
	}
	msg.Header.Set(HeaderMessageID, r.ID)
	if err := x.nc.PublishMsg(msg); err != nil {
		x.fail(e, err)
	}
}

func (x *Exporter) fail(e synchronizer.Event, err error) {
	x.failed.Add(1)
	x.cfg.logger.Warn("event export failed",
		observability.SyncName(e.Synchronizer),
		observability.EventKind(e.Kind.String()),
		observability.ErrorField(err),
	)
}

// Published returns the number of events handed to the connection.
func (x *Exporter) Published() uint64 { return x.seq.Load() - x.failed.Load() }

// Failed returns the number of events that could not be published.
func (x *Exporter) Failed() uint64 { return x.failed.Load() }

// Flush waits until the server has received every buffered event.
func (x *Exporter) Flush(ctx context.Context) error {
	if x.closed.Load() {
		return ErrClosed
	}
	return x.flush(ctx)
}

func (x *Exporter) flush(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultFlushTimeout)
		defer cancel()
	}
	return x.nc.FlushWithContext(ctx)
}

// Close flushes pending events and, if the exporter dialled its own
// connection, closes it. Events observed after Close are dropped.
func (x *Exporter) Close(ctx context.Context) error {
	if !x.closed.CompareAndSwap(false, true) {
		return nil
	}
	var err error
	if x.nc.IsConnected() {
		err = x.flush(ctx)
	}
	if x.owned {
		x.nc.Close()
	}
	return err
}

// token makes a synchronizer name safe to use as one subject token.
func token(name string) string {
	if name == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, name)
}
