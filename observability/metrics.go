package observability

import (
	"maps"
	"slices"
	"strings"
	"sync"
	"time"
)

// MetricType represents the type of metric
type MetricType int

const (
	// Counter metrics only increase
	Counter MetricType = iota
	// Gauge metrics can go up or down
	Gauge
	// Histogram metrics summarize observed values
	Histogram
)

func (t MetricType) String() string {
	switch t {
	case Counter:
		return "counter"
	case Gauge:
		return "gauge"
	case Histogram:
		return "histogram"
	}
	return "unknown"
}

// Labels identify one series of a metric.
type Labels map[string]string

// Metric is a snapshot of one series. For histograms Value is the sum of
// the observations and Count, Min and Max summarize them.
type Metric struct {
	Name    string     `json:"name"`
	Type    MetricType `json:"type"`
	Value   float64    `json:"value"`
	Count   uint64     `json:"count,omitempty"`
	Min     float64    `json:"min,omitempty"`
	Max     float64    `json:"max,omitempty"`
	Labels  Labels     `json:"labels"`
	Updated time.Time  `json:"updated"`
}

// Mean returns the average histogram observation, or Value for other types.
func (m Metric) Mean() float64 {
	if m.Type != Histogram {
		return m.Value
	}
	if m.Count == 0 {
		return 0
	}
	return m.Value / float64(m.Count)
}

// MetricsCollector receives synchronizer metrics.
type MetricsCollector interface {
	AddCounter(name string, delta float64, labels Labels)
	AddGauge(name string, delta float64, labels Labels)
	SetGauge(name string, value float64, labels Labels)
	Observe(name string, value float64, labels Labels)

	Metrics() []Metric
	Metric(name string, labels Labels) (Metric, bool)
}

// InMemoryMetricsCollector keeps every series in memory.
type InMemoryMetricsCollector struct {
	mu     sync.RWMutex
	series map[string]*Metric
}

// NewInMemoryMetricsCollector creates an empty collector.
func NewInMemoryMetricsCollector() *InMemoryMetricsCollector {
	return &InMemoryMetricsCollector{series: make(map[string]*Metric)}
}

// AddCounter adds delta to a counter.
func (c *InMemoryMetricsCollector) AddCounter(name string, delta float64, labels Labels) {
	c.update(name, Counter, labels, func(m *Metric) { m.Value += delta })
}

// AddGauge moves a gauge by delta, which may be negative.
func (c *InMemoryMetricsCollector) AddGauge(name string, delta float64, labels Labels) {
	c.update(name, Gauge, labels, func(m *Metric) { m.Value += delta })
}

// SetGauge sets a gauge.
func (c *InMemoryMetricsCollector) SetGauge(name string, value float64, labels Labels) {
	c.update(name, Gauge, labels, func(m *Metric) { m.Value = value })
}

// Observe adds one observation to a histogram.
func (c *InMemoryMetricsCollector) Observe(name string, value float64, labels Labels) {
	c.update(name, Histogram, labels, func(m *Metric) {
		if m.Count == 0 || value < m.Min {
			m.Min = value
		}
		if m.Count == 0 || value > m.Max {
			m.Max = value
		}
		m.Count++
		m.Value += value
	})
}

func (c *InMemoryMetricsCollector) update(name string, typ MetricType, labels Labels, apply func(*Metric)) {
	key := seriesKey(name, labels)

	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.series[key]
	if !ok {
		m = &Metric{Name: name, Type: typ, Labels: maps.Clone(labels)}
		c.series[key] = m
	}
	apply(m)
	m.Updated = time.Now()
}

// Metrics returns a snapshot of every series ordered by series key.
func (c *InMemoryMetricsCollector) Metrics() []Metric {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Metric, 0, len(c.series))
	for _, key := range slices.Sorted(maps.Keys(c.series)) {
		out = append(out, snapshot(c.series[key]))
	}
	return out
}

// Metric returns a snapshot of one series.
func (c *InMemoryMetricsCollector) Metric(name string, labels Labels) (Metric, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.series[seriesKey(name, labels)]
	if !ok {
		return Metric{}, false
	}
	return snapshot(m), true
}

func snapshot(m *Metric) Metric {
	s := *m
	s.Labels = maps.Clone(m.Labels)
	return s
}

// seriesKey joins name and labels sorted by label name.
func seriesKey(name string, labels Labels) string {
	var b strings.Builder
	b.WriteString(name)
	for _, k := range slices.Sorted(maps.Keys(labels)) {
		b.WriteString("|" + k + "=" + labels[k])
	}
	return b.String()
}

var defaultCollector MetricsCollector = NewInMemoryMetricsCollector()

// Metric names recorded by SyncMetrics
const (
	MetricEvents        = "qsync_events_total"
	MetricWaitDuration  = "qsync_wait_duration_ms"
	MetricCancellations = "qsync_cancellations_total"
	MetricQueued        = "qsync_queued"
	MetricQueueLength   = "qsync_queue_length"
	MetricViolations    = "qsync_stress_violations_total"
)

// SyncMetrics records synchronizer queue metrics into a collector.
type SyncMetrics struct {
	collector MetricsCollector
}

// NewSyncMetrics wraps collector. A nil collector uses a process-wide
// in-memory one.
func NewSyncMetrics(collector MetricsCollector) *SyncMetrics {
	if collector == nil {
		collector = defaultCollector
	}
	return &SyncMetrics{collector: collector}
}

// Collector returns the underlying collector.
func (m *SyncMetrics) Collector() MetricsCollector { return m.collector }

// RecordEvent counts a queue event.
func (m *SyncMetrics) RecordEvent(sync, kind, mode string) {
	m.collector.AddCounter(MetricEvents, 1, Labels{"sync": sync, "kind": kind, "mode": mode})
}

// RecordWait observes how long a goroutine was queued before it acquired
// or gave up.
func (m *SyncMetrics) RecordWait(sync, mode string, waited time.Duration) {
	m.collector.Observe(MetricWaitDuration, float64(waited.Nanoseconds())/1e6,
		Labels{"sync": sync, "mode": mode})
}

// RecordCancellation counts an acquire abandoned through timeout or
// interruption.
func (m *SyncMetrics) RecordCancellation(sync string) {
	m.collector.AddCounter(MetricCancellations, 1, Labels{"sync": sync})
}

// RecordQueued moves the live count of queued goroutines by delta.
func (m *SyncMetrics) RecordQueued(sync string, delta int) {
	m.collector.AddGauge(MetricQueued, float64(delta), Labels{"sync": sync})
}

// RecordQueueLength records a sampled wait queue length.
func (m *SyncMetrics) RecordQueueLength(sync string, n int) {
	m.collector.SetGauge(MetricQueueLength, float64(n), Labels{"sync": sync})
}

// RecordViolation counts a property violation found by a stress scenario.
func (m *SyncMetrics) RecordViolation(scenario string) {
	m.collector.AddCounter(MetricViolations, 1, Labels{"scenario": scenario})
}
