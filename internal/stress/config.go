package stress

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Scenario names.
const (
	ScenarioMutex     = "mutex"
	ScenarioSemaphore = "semaphore"
	ScenarioLatch     = "latch"
	ScenarioCondition = "condition"
	ScenarioCancel    = "cancel"
)

// Scenarios lists every scenario in the order RunAll reports them.
var Scenarios = []string{ScenarioMutex, ScenarioSemaphore, ScenarioLatch, ScenarioCondition, ScenarioCancel}

// Defaults applied to zero Config fields.
const (
	DefaultGoroutines = 8
	DefaultIterations = 1000
	DefaultPermits    = 3
	DefaultTimeout    = time.Millisecond
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("stress: invalid config")

// Config describes one scenario run.
type Config struct {
	Scenario   string        `yaml:"scenario"`
	Goroutines int           `yaml:"goroutines"`
	Iterations int           `yaml:"iterations"`
	Fair       bool          `yaml:"fair"`
	Permits    int32         `yaml:"permits"`
	Timeout    time.Duration `yaml:"timeout"`
}

// WithDefaults returns c with zero fields replaced by the defaults.
func (c Config) WithDefaults() Config {
	if c.Goroutines == 0 {
		c.Goroutines = DefaultGoroutines
	}
	if c.Iterations == 0 {
		c.Iterations = DefaultIterations
	}
	if c.Permits == 0 {
		c.Permits = DefaultPermits
	}
	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
	return c
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	switch {
	case !slices.Contains(Scenarios, c.Scenario):
		return fmt.Errorf("%w: unknown scenario %q", ErrInvalidConfig, c.Scenario)
	case c.Goroutines < 1:
		return fmt.Errorf("%w: goroutines must be positive, got %d", ErrInvalidConfig, c.Goroutines)
	case c.Scenario == ScenarioCondition && c.Goroutines < 2:
		return fmt.Errorf("%w: condition needs at least one producer and one consumer", ErrInvalidConfig)
	case c.Iterations < 1:
		return fmt.Errorf("%w: iterations must be positive, got %d", ErrInvalidConfig, c.Iterations)
	case c.Permits < 1:
		return fmt.Errorf("%w: permits must be positive, got %d", ErrInvalidConfig, c.Permits)
	case c.Timeout <= 0:
		return fmt.Errorf("%w: timeout must be positive, got %s", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

// File is the YAML layout of a scenario file. Defaults fill the zero fields of
// every entry in Runs.
type File struct {
	Defaults Config   `yaml:"defaults"`
	Runs     []Config `yaml:"runs"`
}

// Parse decodes a scenario file and returns its validated runs.
func Parse(data []byte) ([]Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("stress: parse scenario file: %w", err)
	}
	if len(f.Runs) == 0 {
		return nil, fmt.Errorf("%w: scenario file has no runs", ErrInvalidConfig)
	}

	runs := make([]Config, 0, len(f.Runs))
	for i, run := range f.Runs {
		run = merge(run, f.Defaults).WithDefaults()
		if err := run.Validate(); err != nil {
			return nil, fmt.Errorf("run %d: %w", i+1, err)
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// LoadFile reads and parses a scenario file.
func LoadFile(path string) ([]Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("stress: read scenario file: %w", err)
	}
	return Parse(data)
}

func merge(c, defaults Config) Config {
	if c.Scenario == "" {
		c.Scenario = defaults.Scenario
	}
	if c.Goroutines == 0 {
		c.Goroutines = defaults.Goroutines
	}
	if c.Iterations == 0 {
		c.Iterations = defaults.Iterations
	}
	if !c.Fair {
		c.Fair = defaults.Fair
	}
	if c.Permits == 0 {
		c.Permits = defaults.Permits
	}
	if c.Timeout == 0 {
		c.Timeout = defaults.Timeout
	}
	return c
}
