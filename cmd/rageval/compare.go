package main

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

var errRegression = errors.New("rag-eval: regression detected")

type compareOptions struct {
	epsilon float64
	output  string
}

func newCompareCmd(st *cliState) *cobra.Command {
	var opts compareOptions

	cmd := &cobra.Command{
		Use:   "compare <baseline-run-id> <candidate-run-id>",
		Short: "Compare two stored runs and flag metric regressions",
		Args:  cobra.ExactArgs(2),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompare(cmd, st, args[0], args[1], &opts)
		},
	}

	cmd.Flags().Float64Var(&opts.epsilon, "epsilon", -1, "metric movement below this magnitude is noise (overrides config)")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|github")

	return cmd
}

func runCompare(cmd *cobra.Command, st *cliState, baselineID, candidateID string, opts *compareOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("compare: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("compare: nil options")
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return err
	}
	if output == FormatCSV {
		return fmt.Errorf("compare: --output csv is not supported")
	}

	epsilon := st.cfg.Evaluation.Epsilon
	if opts.epsilon >= 0 {
		epsilon = opts.epsilon
	}

	stor, err := store.Open(st.cfg)
	if err != nil {
		return err
	}
	defer stor.Close()

	var analytics store.Analytics = stor

	cmp, err := analytics.CompareRuns(cmd.Context(), strings.TrimSpace(baselineID), strings.TrimSpace(candidateID), epsilon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("compare: run %q or %q not found", baselineID, candidateID)
		}
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), FormatCompareResult(cmp, output))

	if len(cmp.Regressions) > 0 {
		return errRegression
	}
	return nil
}
