package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/a2y-d5l/go-qsync/internal/embeddednats"
	"github.com/a2y-d5l/go-qsync/internal/stress"
	"github.com/a2y-d5l/go-qsync/observability"
	"github.com/a2y-d5l/go-qsync/observability/natsexport"
)

const scenarioAll = "all"

type runOptions struct {
	stress.Config

	configFile   string
	natsURL      string
	subject      string
	embeddedNATS bool
	showMetrics  bool
}

// NewRunCmd creates the run command.
func NewRunCmd() *cobra.Command {
	o := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run stress scenarios against the lock types",
		Long: `Run one or all stress scenarios and report whether the locks kept their
guarantees. Runs can be described with flags or with a YAML scenario file.

Queue events can be exported to NATS, either to a server given by --nats-url or
to an embedded server started for the run.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return o.run(cmd.Context(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&o.Scenario, "scenario", "s", scenarioAll,
		fmt.Sprintf("Scenario to run (%s, %s)", strings.Join(stress.Scenarios, ", "), scenarioAll))
	flags.IntVarP(&o.Goroutines, "goroutines", "g", stress.DefaultGoroutines, "Contending goroutines")
	flags.IntVarP(&o.Iterations, "iterations", "n", stress.DefaultIterations, "Iterations per goroutine")
	flags.BoolVar(&o.Fair, "fair", false, "Use fair locks")
	flags.Int32Var(&o.Permits, "permits", stress.DefaultPermits, "Semaphore permits and buffer capacity")
	flags.DurationVar(&o.Timeout, "timeout", stress.DefaultTimeout, "Timeout for timed acquires")
	flags.StringVarP(&o.configFile, "config", "c", "", "YAML scenario file; overrides the scenario flags")
	flags.StringVar(&o.natsURL, "nats-url", "", "Export queue events to this NATS server")
	flags.StringVar(&o.subject, "nats-subject", natsexport.DefaultSubject, "Subject prefix for exported events")
	flags.BoolVar(&o.embeddedNATS, "embedded-nats", false, "Export queue events to an embedded NATS server")
	flags.BoolVar(&o.showMetrics, "metrics", false, "Print collected metrics after the runs")

	cmd.MarkFlagsMutuallyExclusive("nats-url", "embedded-nats")

	return cmd
}

func (o *runOptions) configs() ([]stress.Config, error) {
	if o.configFile != "" {
		return stress.LoadFile(o.configFile)
	}
	if o.Scenario != scenarioAll {
		return []stress.Config{o.Config}, nil
	}
	cfgs := make([]stress.Config, 0, len(stress.Scenarios))
	for _, s := range stress.Scenarios {
		cfg := o.Config
		cfg.Scenario = s
		cfgs = append(cfgs, cfg)
	}
	return cfgs, nil
}

func (o *runOptions) run(ctx context.Context, out io.Writer) (err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfgs, err := o.configs()
	if err != nil {
		return err
	}

	logger := observability.Default()
	collector := observability.NewInMemoryMetricsCollector()
	metrics := observability.NewSyncMetrics(collector)
	observers := observability.Fanout{observability.NewRecorder(logger, metrics)}

	url := o.natsURL
	if o.embeddedNATS {
		srv, err := embeddednats.StartLocal(ctx)
		if err != nil {
			return fmt.Errorf("start embedded nats: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), embeddednats.DefaultReadyTimeout)
			defer cancel()
			_ = srv.ShutdownAndWait(sctx, 5*time.Second)
		}()
		url = srv.ClientURL()
	}

	var exporter *natsexport.Exporter
	if url != "" {
		exporter, err = natsexport.Connect(url,
			natsexport.WithSubject(o.subject),
			natsexport.WithLogger(logger),
		)
		if err != nil {
			return err
		}
		defer func() {
			if cerr := exporter.Close(context.Background()); cerr != nil && err == nil {
				err = fmt.Errorf("close exporter: %w", cerr)
			}
		}()
		observers = append(observers, exporter)
	}

	runner := stress.NewRunner(
		stress.WithObserver(observers),
		stress.WithLogger(logger),
		stress.WithMetrics(metrics),
	)
	reports, err := runner.RunAll(ctx, cfgs)
	for _, r := range reports {
		fmt.Fprintln(out, r)
	}
	if exporter != nil {
		fmt.Fprintf(out, "exported %d events to %s (%d failed)\n", exporter.Published(), url, exporter.Failed())
	}
	if o.showMetrics {
		printMetrics(out, collector.Metrics())
	}
	return err
}

func printMetrics(out io.Writer, metrics []observability.Metric) {
	lines := make([]string, 0, len(metrics))
	for _, m := range metrics {
		labels := make([]string, 0, len(m.Labels))
		for _, k := range slices.Sorted(maps.Keys(m.Labels)) {
			labels = append(labels, fmt.Sprintf("%s=%q", k, m.Labels[k]))
		}
		series := fmt.Sprintf("%s{%s}", m.Name, strings.Join(labels, ","))
		if m.Type == observability.Histogram {
			lines = append(lines, fmt.Sprintf("%s count=%d mean=%g max=%g", series, m.Count, m.Mean(), m.Max))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s %g", series, m.Value))
	}
	slices.Sort(lines)
	for _, l := range lines {
		fmt.Fprintln(out, l)
	}
}

// NewScenariosCmd creates the command that lists scenario names.
func NewScenariosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the available stress scenarios",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, s := range stress.Scenarios {
				fmt.Fprintln(cmd.OutOrStdout(), s)
			}
		},
	}
}
