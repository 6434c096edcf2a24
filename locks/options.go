package locks

import "github.com/a2y-d5l/go-qsync/synchronizer"

// Option configures a lock.
type Option func(*config)

// config holds the tunables shared by every lock type.
type config struct {
	Fair     bool
	Name     string
	Observer synchronizer.Observer
}

// WithFair selects FIFO acquisition: a goroutine only acquires when nobody
// has been queued longer. Non-fair locks let arriving goroutines barge, which
// gives higher throughput.
func WithFair(fair bool) Option { return func(c *config) { c.Fair = fair } }

// WithName sets the name reported to observers.
func WithName(name string) Option { return func(c *config) { c.Name = name } }

// WithObserver installs an observer for the lock's queue events.
func WithObserver(o synchronizer.Observer) Option { return func(c *config) { c.Observer = o } }

func newConfig(defaultName string, opts []Option) config {
	cfg := config{Name: defaultName}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func (c config) synchronizerOptions() []synchronizer.Option {
	opts := []synchronizer.Option{synchronizer.WithName(c.Name)}
	if c.Observer != nil {
		opts = append(opts, synchronizer.WithObserver(c.Observer))
	}
	return opts
}
