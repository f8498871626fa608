package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/improvement"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/config"
)

func newValidateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a run configuration without touching the host",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(configPath)
			if err != nil {
				return fail(cmd, err)
			}
			// Building the orchestrator checks that the workload can report every objective
			if _, err := improvement.NewOrchestrator(cfg, improvement.OrchestratorOptions{}); err != nil {
				return fail(cmd, err)
			}
			objectives := make([]string, len(cfg.Objectives))
			for i, o := range cfg.Objectives {
				objectives[i] = fmt.Sprintf("%s (%s)", o.Name, o.Direction)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "configuration OK\n")
			fmt.Fprintf(out, "  workload:    %s\n", cfg.Workload.Type)
			fmt.Fprintf(out, "  parameters:  %d\n", len(cfg.Parameters))
			fmt.Fprintf(out, "  objectives:  %s\n", strings.Join(objectives, ", "))
			fmt.Fprintf(out, "  search:      population %d, offspring %d, generations %d\n",
				cfg.Search.PopulationSize, cfg.Search.OffspringSize, cfg.Search.Generations)
			fmt.Fprintf(out, "  evaluations: %d\n", cfg.Search.PopulationSize+(cfg.Search.Generations-1)*cfg.Search.OffspringSize)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the run configuration (required)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
