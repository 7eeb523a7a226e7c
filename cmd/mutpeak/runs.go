package main

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/inodb/mutpeak/internal/duckdb"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect runs recorded in the DuckDB store",
		Long: `List, show and delete ranking runs recorded with --store. Runs are
addressed by ID or by any unambiguous ID prefix.`,
		Example: `  mutpeak runs list --store runs.duckdb
  mutpeak runs show 3f2a --limit 20
  mutpeak runs delete 3f2a`,
	}

	cmd.PersistentFlags().String("store", "", "DuckDB store (default: config store)")

	cmd.AddCommand(newRunsListCmd())
	cmd.AddCommand(newRunsShowCmd())
	cmd.AddCommand(newRunsDeleteCmd())

	return cmd
}

func newRunsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns()
			if err != nil {
				return err
			}
			return writeRunList(cmd.OutOrStdout(), runs)
		},
	}
}

func newRunsShowCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a run and its ranked candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(args[0])
			if err != nil {
				return runLookupError(err)
			}
			cands, err := store.Candidates(run.ID, limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			writeRunDetails(out, run)
			fmt.Fprintln(out)
			return writeStoredCandidates(out, cands)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum candidates to show (0 = all)")
	return cmd
}

func newRunsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a run and its candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			id, err := store.ResolveRunID(args[0])
			if err != nil {
				return runLookupError(err)
			}
			if err := store.DeleteRun(id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s\n", id)
			return nil
		},
	}
}

// openStore opens the store named by --store, falling back to the
// configured store.
func openStore(cmd *cobra.Command) (*duckdb.Store, error) {
	path, _ := cmd.Flags().GetString("store")
	if path == "" {
		path = viper.GetString("store")
	}
	if path == "" {
		return nil, usageErrorf("no store configured (use --store or set store in config)")
	}
	return duckdb.Open(path)
}

func runLookupError(err error) error {
	if errors.Is(err, duckdb.ErrRunNotFound) || errors.Is(err, duckdb.ErrAmbiguousRun) {
		return &usageError{err: err}
	}
	return err
}

func writeRunList(w io.Writer, runs []duckdb.Run) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tCALLER\tPREDICTOR\tPEAKS\tFAILED\tCANDIDATES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\n",
			shortID(r.ID),
			r.StartedAt.Local().Format(time.DateTime),
			r.Caller, r.Predictor,
			r.Peaks, r.FailedPeaks, r.Candidates)
	}
	return tw.Flush()
}

func writeRunDetails(w io.Writer, r *duckdb.Run) {
	fmt.Fprintf(w, "Run:        %s\n", r.ID)
	fmt.Fprintf(w, "Started:    %s\n", r.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(w, "Caller:     %s\n", r.Caller)
	fmt.Fprintf(w, "Predictor:  %s\n", r.Predictor)
	fmt.Fprintf(w, "Excluded:   %s\n", dashIfEmpty(strings.Join(r.ExcludeImpacts, ",")))
	fmt.Fprintf(w, "Peaks:      %d (%d failed)\n", r.Peaks, r.FailedPeaks)
	fmt.Fprintf(w, "Candidates: %d\n", r.Candidates)
	for _, in := range r.Inputs {
		fmt.Fprintf(w, "Input:      %-5s %s (%d bytes, modified %s)\n",
			in.Kind, in.Path, in.Size, in.ModTime.Local().Format(time.DateTime))
	}
}

func writeStoredCandidates(w io.Writer, cands []duckdb.StoredCandidate) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PEAK\tRANK\tLOCATION\tREF\tALT\tIMPACT\tDENSITY\tGENE\tCONSEQUENCE\tHGVSp")
	for _, c := range cands {
		fmt.Fprintf(tw, "%s\t%d\t%s:%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			c.Peak, c.Rank, c.Chrom, c.Pos, c.Ref, c.Alt,
			dashIfEmpty(c.Impact), formatDensity(c.Density),
			dashIfEmpty(c.Gene), dashIfEmpty(c.Consequence), dashIfEmpty(c.HGVSp))
	}
	return tw.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func dashIfEmpty(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func formatDensity(d float64) string {
	if math.IsNaN(d) {
		return "-"
	}
	return strconv.FormatFloat(d, 'g', 6, 64)
}
