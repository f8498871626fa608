package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
)

// globalFlags are shared by every subcommand
type globalFlags struct {
	logLevel  string
	logFormat string
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "thptune",
		Short: "Tune transparent huge page settings against a memory benchmark",
		Long: `thptune searches the kernel's transparent huge page knobs with a
multi-objective evolutionary algorithm. Every candidate is applied to the
host, measured with a benchmark and kept if it is Pareto-optimal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			level := flags.logLevel
			if level == "" {
				level = "info"
			}
			logger.SetDefault(logger.NewWithFormat(level, flags.logFormat, cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "log level (debug, info, warn, error); overrides the config")
	root.PersistentFlags().StringVar(&flags.logFormat, "log-format", "", "log format (json, text); overrides the config")

	root.AddCommand(newRunCmd(flags))
	root.AddCommand(newValidateCmd())
	root.AddCommand(newResultsCmd())

	return root
}

// configureLogging applies the config's logging section unless a flag overrides it
func configureLogging(cmd *cobra.Command, flags *globalFlags, cfg *config.Config) {
	level, format := cfg.LogLevel, cfg.LogFormat
	if flags.logLevel != "" {
		level = flags.logLevel
	}
	if flags.logFormat != "" {
		format = flags.logFormat
	}
	cfg.LogLevel, cfg.LogFormat = level, format
	logger.SetDefault(logger.NewWithFormat(level, format, cmd.ErrOrStderr()))
}

// fail prints err to stderr and returns it so Execute reports a non-zero exit
func fail(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return err
}
