package main

import (
	"bytes"
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/metrics"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

type breakdownOptions struct {
	strategy string
	k        int
	sort     string
	output   string
}

func newBreakdownCmd(st *cliState) *cobra.Command {
	var opts breakdownOptions

	cmd := &cobra.Command{
		Use:   "breakdown <run-id>",
		Short: "Show per-item recall for one (strategy, k) row of a stored run",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBreakdown(cmd, st, args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.strategy, "strategy", "", "strategy name (defaults when the run has only one row)")
	cmd.Flags().IntVar(&opts.k, "k", 0, "cutoff depth (defaults when the run has only one row)")
	cmd.Flags().StringVar(&opts.sort, "sort", "", "row order: expected|recall")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|csv")

	return cmd
}

func runBreakdown(cmd *cobra.Command, st *cliState, runID string, opts *breakdownOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("breakdown: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("breakdown: nil options")
	}

	order, err := metrics.ParseBreakdownOrder(opts.sort)
	if err != nil {
		return err
	}
	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return err
	}
	if output == FormatGitHub {
		return fmt.Errorf("breakdown: --output github is not supported")
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("breakdown: missing run id")
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
			return fmt.Errorf("breakdown: run %q not found", runID)
		}
		return err
	}
	rows, err := reader.GetRows(cmd.Context(), runID)
	if err != nil {
		return err
	}

	row, err := selectRow(rows, opts.strategy, opts.k)
	if err != nil {
		return err
	}

	outcomes := make([]metrics.Outcome, 0, len(row.Records))
	for _, qr := range row.Records {
		outcomes = append(outcomes, metrics.Outcome{Result: qr.Result, Expected: qr.Expected})
	}
	stats := metrics.Breakdown(outcomes, order)

	out := cmd.OutOrStdout()
	switch output {
	case FormatJSON:
		b, err := json.Marshal(stats)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
	case FormatCSV:
		fmt.Fprint(out, formatBreakdownCSV(stats))
	default:
		fmt.Fprintf(out, "Run: %s dataset=%s strategy=%s k=%d\n", run.ID, run.Dataset, row.Strategy, row.K)
		if len(stats) == 0 {
			fmt.Fprintln(out, "No expected items.")
			return nil
		}
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ITEM\tEXPECTED\tRETRIEVED\tRECALL")
		for _, s := range stats {
			fmt.Fprintf(tw, "%s\t%d\t%d\t%.3f\n", s.ItemID, s.Expected, s.Retrieved, s.Recall)
		}
		return tw.Flush()
	}
	return nil
}

// selectRow picks the (strategy, k) row the flags name. A run with a single
// row needs no flags at all.
func selectRow(rows []*store.RowRecord, strategyName string, k int) (*store.RowRecord, error) {
	strategyName = strings.ToLower(strings.TrimSpace(strategyName))

	var matches []*store.RowRecord
	for _, row := range rows {
		if row == nil {
			continue
		}
		if strategyName != "" && row.Strategy != strategyName {
			continue
		}
		if k > 0 && row.K != k {
			continue
		}
		matches = append(matches, row)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("breakdown: no row matches strategy=%q k=%d", strategyName, k)
	case 1:
		return matches[0], nil
	default:
		keys := make([]string, 0, len(matches))
		for _, row := range matches {
			keys = append(keys, fmt.Sprintf("%s@%d", row.Strategy, row.K))
		}
		return nil, fmt.Errorf("breakdown: %d rows match, narrow with --strategy and --k: %s",
			len(matches), strings.Join(keys, ", "))
	}
}

func formatBreakdownCSV(stats []metrics.ItemStat) string {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"item", "expected", "retrieved", "recall"})
	for _, s := range stats {
		_ = w.Write([]string{
			s.ItemID,
			fmt.Sprintf("%d", s.Expected),
			fmt.Sprintf("%d", s.Retrieved),
			fmt.Sprintf("%.4f", s.Recall),
		})
	}
	w.Flush()
	return buf.String()
}
