package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/GoSim-25-26J-441/thp-tuner/internal/store"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/models"
	"github.com/GoSim-25-26J-441/thp-tuner/pkg/utils"
)

type resultsOptions struct {
	trials      bool
	generations bool
	asJSON      bool
}

func newResultsCmd() *cobra.Command {
	opts := &resultsOptions{}
	cmd := &cobra.Command{
		Use:   "results <dir>",
		Short: "Show the Pareto front and trials of a finished run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return showResults(cmd, args[0], opts)
		},
	}
	cmd.Flags().BoolVar(&opts.trials, "trials", false, "list every trial from the trial database")
	cmd.Flags().BoolVar(&opts.generations, "generations", false, "list per-generation progress from the trial database")
	cmd.Flags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func showResults(cmd *cobra.Command, dir string, opts *resultsOptions) error {
	artifacts, err := store.OpenRunDir(dir)
	if err != nil {
		return fail(cmd, err)
	}
	out := cmd.OutOrStdout()

	if opts.trials || opts.generations {
		db, err := store.OpenDB(store.DBConfig{Path: artifacts.Path(store.TrialsDB)})
		if err != nil {
			return fail(cmd, err)
		}
		defer db.Close()
		if opts.trials {
			trials, err := db.ListTrials()
			if err != nil {
				return fail(cmd, err)
			}
			if opts.asJSON {
				return writeJSON(out, trials)
			}
			printTrials(out, trials)
		}
		if opts.generations {
			gens, err := db.ListGenerations()
			if err != nil {
				return fail(cmd, err)
			}
			if opts.asJSON {
				return writeJSON(out, gens)
			}
			printGenerations(out, gens)
		}
		return nil
	}

	result, err := artifacts.ReadResult()
	if err != nil {
		return fail(cmd, err)
	}
	if opts.asJSON {
		return writeJSON(out, result)
	}
	printFront(out, result)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printFront prints one row per Pareto-optimal solution with the values the
// kernel would receive and the objectives in benchmark units
func printFront(w io.Writer, result *models.ResultSet) {
	fmt.Fprintf(w, "Pareto front: %d of %d solutions after %d evaluations\n\n",
		len(result.Front), len(result.Population), result.Evaluations)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"#"}
	for _, p := range result.Parameters {
		header = append(header, shortName(p.Name))
	}
	for _, o := range result.Objectives {
		header = append(header, fmt.Sprintf("%s (%s)", o.Name, o.Direction))
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))

	for i, s := range result.Front {
		row := []string{fmt.Sprint(i)}
		for j, p := range result.Parameters {
			value, err := p.Encoding.Encode(s.Vector[j])
			if err != nil {
				value = fmt.Sprintf("%g", s.Vector[j])
			}
			row = append(row, value)
		}
		for _, v := range models.RawObjectives(result.Objectives, s) {
			row = append(row, fmt.Sprintf("%.4g", v))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	_ = tw.Flush()
}

func printTrials(w io.Writer, trials []*models.Trial) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TRIAL\tDURATION\tPARAMETERS\tOBJECTIVES")
	for _, t := range trials {
		params := make([]string, 0, len(t.Encoded))
		for _, k := range sortedKeys(t.Encoded) {
			params = append(params, shortName(k)+"="+t.Encoded[k])
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n",
			utils.TrialID(t.Generation, t.Index),
			utils.FormatDuration(t.Duration()),
			strings.Join(params, " "),
			[]float64(t.Objectives))
	}
	_ = tw.Flush()
}

func printGenerations(w io.Writer, gens []*models.GenerationRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "GENERATION\tEVALUATIONS\tFRONT\tSTALLED")
	for _, g := range gens {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\n", g.Generation, g.Evaluations, len(g.Front), g.StalledGenerations)
	}
	_ = tw.Flush()
}

// shortName trims the common sysfs prefix from a control file path
func shortName(path string) string {
	return strings.TrimPrefix(path, "/sys/kernel/mm/transparent_hugepage/")
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
