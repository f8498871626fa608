package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/improvement"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/statusd"
	"github.com/GoSim-25-26J-441/thp-tuner/internal/telemetry"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/logger"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

type runOptions struct {
	configPath string
	outDir     string
	hostRoot   string
	httpAddr   string
	grpcAddr   string
	traceFile  string
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a tuning session",
		Long: `Run applies the setup writes, then evaluates the initial population and
every offspring generation on this host. The host must not run anything else
while tuning. Results are written to a new directory; an existing one is refused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTuning(cmd, flags, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "path to the run configuration (required)")
	cmd.Flags().StringVarP(&opts.outDir, "out", "o", "", "result directory; overrides output.dir")
	cmd.Flags().StringVar(&opts.hostRoot, "host-root", "", "prefix for every control file path; overrides host.root")
	cmd.Flags().StringVar(&opts.httpAddr, "http-addr", "", "HTTP status listen address; overrides status.http_addr")
	cmd.Flags().StringVar(&opts.grpcAddr, "grpc-addr", "", "gRPC health listen address; overrides status.grpc_addr")
	cmd.Flags().StringVar(&opts.traceFile, "trace-file", "", "write OpenTelemetry spans to this file")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func (o *runOptions) apply(cfg *config.Config) {
	if o.outDir != "" {
		cfg.Output.Dir = o.outDir
	}
	if o.hostRoot != "" {
		cfg.Host.Root = o.hostRoot
	}
	if o.httpAddr != "" {
		cfg.Status.HTTPAddr = o.httpAddr
	}
	if o.grpcAddr != "" {
		cfg.Status.GRPCAddr = o.grpcAddr
	}
}

func runTuning(cmd *cobra.Command, flags *globalFlags, opts *runOptions) error {
	cfg, err := config.LoadConfig(opts.configPath)
	if err != nil {
		return fail(cmd, err)
	}
	opts.apply(cfg)
	configureLogging(cmd, flags, cfg)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := utils.GenerateRunID()
	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    "thptune",
		ServiceVersion: version,
		RunID:          runID,
		TraceFile:      opts.traceFile,
	})
	if err != nil {
		return fail(cmd, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("trace shutdown failed", "error", err)
		}
	}()

	orchestrator, err := improvement.NewOrchestrator(cfg, improvement.OrchestratorOptions{RunID: runID})
	if err != nil {
		return fail(cmd, err)
	}

	servers, err := statusd.Start(orchestrator.Status(), statusd.Options{
		HTTPAddr: cfg.Status.HTTPAddr,
		GRPCAddr: cfg.Status.GRPCAddr,
		Registry: orchestrator.Collector().Registry(),
	})
	if err != nil {
		return fail(cmd, err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := servers.Shutdown(shutdownCtx); err != nil {
			logger.Error("status server shutdown error", "error", err)
		}
	}()
	statusd.NewNotifier(cfg.Status.CallbackURL, cfg.Status.CallbackSecret).Watch(orchestrator.Status())

	result, err := orchestrator.Run(ctx)
	if err != nil {
		return fail(cmd, fmt.Errorf("run %s: %w", runID, err))
	}

	summary := orchestrator.Collector().GetSummary()
	logger.Info("run summary",
		"run_id", runID,
		"trials", summary.Trials,
		"duration", utils.FormatDuration(summary.Duration),
		"front_size", len(result.Front))
	for _, phase := range sortedKeys(summary.Phases) {
		timing := summary.Phases[phase]
		logger.Info("phase timing", "phase", phase, "count", timing.Count, "total", utils.FormatDuration(timing.Total))
	}
	for _, name := range orchestrator.Collector().GetMetricNames() {
		if agg := orchestrator.Collector().GetAggregation(name); agg != nil {
			logger.Info("metric summary", "metric", name, "count", agg.Count,
				"min", agg.Min, "mean", agg.Mean, "p95", agg.P95, "max", agg.Max)
		}
	}
	printFront(cmd.OutOrStdout(), result)
	fmt.Fprintf(cmd.OutOrStdout(), "\nresults: %s\n", cfg.Output.Dir)
	return nil
}
