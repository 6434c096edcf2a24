// Package cli implements the qsync-stress command line.
package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/a2y-d5l/go-qsync/observability"
)

// NewRootCmd creates the root command with its subcommands.
func NewRootCmd(name, shortDesc, longDesc string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           name,
		Short:         shortDesc,
		Long:          longDesc,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().String("log-level", "error", "Set the log level (debug, info, warn, error)")
	cmd.PersistentFlags().String("log-format", "text", "Set the log format (text, json)")

	cmd.PersistentPreRunE = func(cc *cobra.Command, _ []string) error {
		flags := cc.Flags()

		var merr error

		logLevel, err := flags.GetString("log-level")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		logFormat, err := flags.GetString("log-format")
		if err != nil {
			merr = multierror.Append(merr, err)
		}

		if merr != nil {
			return fmt.Errorf("invalid argument: %w", merr)
		}

		logger, err := newLogger(cc, logLevel, logFormat)
		if err != nil {
			return fmt.Errorf("failed creating logger: %w", err)
		}
		observability.SetDefaultLogger(logger)

		return nil
	}

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewScenariosCmd())

	return cmd
}

func newLogger(cmd *cobra.Command, level, format string) (observability.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}

	var f observability.LogFormat
	switch strings.ToLower(format) {
	case "text":
		f = observability.Text
	case "json":
		f = observability.JSON
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}

	return observability.NewLogger(observability.LoggerConfig{
		Level:  lvl,
		Format: f,
		Output: cmd.ErrOrStderr(),
	}), nil
}
