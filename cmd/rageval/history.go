package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

type historyOptions struct {
	dataset  string
	strategy string
	limit    int
	since    string
}

func newHistoryCmd(st *cliState) *cobra.Command {
	var opts historyOptions

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show stored evaluation runs",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "dataset name to filter")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "strategy name to filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max runs to list")
	cmd.Flags().StringVar(&opts.since, "since", "", "only runs since date (YYYY-MM-DD or RFC3339)")

	cmd.AddCommand(newHistoryShowCmd(st))
	cmd.AddCommand(newHistoryTrendCmd(st))
	return cmd
}

func newHistoryShowCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show details for a run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, st, args[0])
		},
	}
}

type trendOptions struct {
	dataset  string
	strategy string
	k        int
	limit    int
}

func newHistoryTrendCmd(st *cliState) *cobra.Command {
	var opts trendOptions

	cmd := &cobra.Command{
		Use:   "trend",
		Short: "Show the metric trend of a dataset across runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryTrend(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "dataset name (required)")
	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "strategy name to filter")
	cmd.Flags().IntVar(&opts.k, "k", 0, "cutoff depth to filter")
	cmd.Flags().IntVar(&opts.limit, "limit", 20, "max points to list")

	return cmd
}

func runHistoryList(cmd *cobra.Command, st *cliState, opts *historyOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}

	since, err := parseSince(opts.since)
	if err != nil {
		return err
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.RunReader = stor

	filter := store.RunFilter{
		Dataset:  strings.TrimSpace(opts.dataset),
		Strategy: strings.TrimSpace(opts.strategy),
		Since:    since,
		Limit:    opts.limit,
	}
	runs, err := reader.ListRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(runs) == 0 {
		_, _ = fmt.Fprintln(out, "No runs found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tDATASET\tSTARTED\tFINISHED\tSTRATEGIES\tKS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.Dataset,
			formatTime(r.StartedAt),
			formatTime(r.FinishedAt),
			strings.Join(r.Strategies, ","),
			joinInts(r.Ks),
		)
	}
	return tw.Flush()
}

func runHistoryShow(cmd *cobra.Command, st *cliState, runID string) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("history: missing run id")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var reader store.RunReader = stor

	run, err := reader.GetRun(cmd.Context(), runID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("history: run %q not found", runID)
		}
		return err
	}

	rows, err := reader.GetRows(cmd.Context(), runID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Run: %s\n", run.ID)
	_, _ = fmt.Fprintf(out, "Dataset: %s\n", run.Dataset)
	_, _ = fmt.Fprintf(out, "Started: %s\n", formatTime(run.StartedAt))
	_, _ = fmt.Fprintf(out, "Finished: %s\n", formatTime(run.FinishedAt))
	_, _ = fmt.Fprintf(out, "Strategies: %s\n", strings.Join(run.Strategies, ","))
	_, _ = fmt.Fprintf(out, "Ks: %s\n", joinInts(run.Ks))

	if len(rows) == 0 {
		return nil
	}

	_, _ = fmt.Fprintln(out)
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tK\tPRECISION\tRECALL\tMRR\tQUERIES\tFAILURES")
	for _, row := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\t%d\t%d\n",
			row.Strategy, row.K, row.Precision, row.Recall, row.MRR, row.Queries, row.Failures)
	}
	_ = tw.Flush()

	for _, row := range rows {
		if row.Failures == 0 {
			continue
		}
		for _, qr := range row.Records {
			if qr.Error == "" {
				continue
			}
			_, _ = fmt.Fprintf(out, "Failed: %s k=%d query=%s: %s\n", row.Strategy, row.K, qr.QueryID, qr.Error)
		}
	}

	return nil
}

func runHistoryTrend(cmd *cobra.Command, st *cliState, opts *trendOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("history: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("history: nil options")
	}
	if strings.TrimSpace(opts.dataset) == "" {
		return fmt.Errorf("history: missing --dataset")
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var analytics store.Analytics = stor

	filter := store.HistoryFilter{
		Dataset:  strings.TrimSpace(opts.dataset),
		Strategy: strings.TrimSpace(opts.strategy),
		K:        opts.k,
		Limit:    opts.limit,
	}
	points, err := analytics.History(cmd.Context(), filter)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(points) == 0 {
		_, _ = fmt.Fprintln(out, "No history found.")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN_ID\tFINISHED\tSTRATEGY\tK\tPRECISION\tRECALL\tMRR")
	for _, p := range points {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.3f\t%.3f\t%.3f\n",
			p.RunID, formatTime(p.FinishedAt), p.Strategy, p.K, p.Precision, p.Recall, p.MRR)
	}
	return tw.Flush()
}

func parseSince(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("history: invalid --since %q (expected YYYY-MM-DD or RFC3339)", s)
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.UTC().Format(time.RFC3339)
}

func joinInts(values []int) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, strconv.Itoa(v))
	}
	return strings.Join(parts, ",")
}
