package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/faisalraja/testhttp/packages/core/config"
	"github.com/faisalraja/testhttp/packages/history"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show runs recorded with --history",
	Long: `List recorded runs, newest first, or show the definitions of one run.

Examples:
  testhttp history --db runs.db
  testhttp history --db runs.db 12
  testhttp history --db runs.db --prune 100`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

var (
	historyDBFlag    string
	historyLimitFlag int
	historyPruneFlag int
)

func init() {
	historyCmd.Flags().StringVar(&historyDBFlag, "db", getEnvString("TESTHTTP_HISTORY", ""), "History database (default: history from config) (env: TESTHTTP_HISTORY)")
	historyCmd.Flags().StringVar(&configFlag, "config", getEnvString("TESTHTTP_CONFIG", ""), "Path to config file (env: TESTHTTP_CONFIG)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "l", getEnvInt("TESTHTTP_HISTORY_LIMIT", 20), "Number of runs to list (env: TESTHTTP_HISTORY_LIMIT)")
	historyCmd.Flags().IntVar(&historyPruneFlag, "prune", 0, "Delete all but the newest N runs")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path := historyDBFlag
	if path == "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		path = cfg.History
	}
	if path == "" {
		return fmt.Errorf("no history database: pass --db or set history in the config file")
	}

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if historyPruneFlag > 0 {
		n, err := store.Prune(ctx, historyPruneFlag)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Pruned %d run(s)\n", n)
		return nil
	}

	if len(args) == 1 {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid run id %q", args[0])
		}
		run, err := store.Get(ctx, id)
		if err != nil {
			return err
		}
		printRun(out, run)
		return nil
	}

	runs, err := store.List(ctx, historyLimitFlag)
	if err != nil {
		return err
	}
	printRuns(out, runs)
	return nil
}

func verdict(passed bool) string {
	if passed {
		return color.GreenString("PASS")
	}
	return color.RedString("FAIL")
}

func printRuns(w io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tRESULT\tPASSED\tFAILED\tP95\tDURATION\tFILES")
	for _, r := range runs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%d\t%dms\t%dms\t%s\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), verdict(r.Passed()),
			r.Success, r.Failures, r.P95.Milliseconds(), r.Duration.Milliseconds(),
			strings.Join(r.Files, ","))
	}
	tw.Flush()
}

func printRun(w io.Writer, r *history.Run) {
	fmt.Fprintf(w, "Run %d  %s  %s\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04:05"), verdict(r.Passed()))
	fmt.Fprintf(w, "Files: %s\n", strings.Join(r.Files, ", "))
	fmt.Fprintf(w, "Passed: %d  Failed: %d  Time: %dms\n", r.Success, r.Failures, r.Duration.Milliseconds())
	fmt.Fprintf(w, "Latency: p50 %dms, p95 %dms, p99 %dms\n", r.P50.Milliseconds(), r.P95.Milliseconds(), r.P99.Milliseconds())
	if r.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", r.Error)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\nNAME\tRESULT\tSTATUS\tDURATION\tREQUEST")
	for _, d := range r.Definitions {
		result := d.Result
		if d.Skipped {
			result = "skip"
		} else if d.Failed > 0 {
			result = fmt.Sprintf("%s (%d failed)", result, d.Failed)
		}
		name := d.Name
		if name == "" {
			name = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%dms\t%s %s\n", name, result, d.StatusCode, d.Duration.Milliseconds(), d.Method, d.URL)
	}
	tw.Flush()
}
