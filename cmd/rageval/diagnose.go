package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/diagnose"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

type diagnoseOptions struct {
	suggest        bool
	maxSuggestions int
	output         string
}

func newDiagnoseCmd(st *cliState) *cobra.Command {
	var opts diagnoseOptions

	cmd := &cobra.Command{
		Use:   "diagnose <run-id>",
		Short: "Inspect a stored run for retrieval failure patterns",
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
			return runDiagnose(cmd, st, args[0], &opts)
		},
	}

	cmd.Flags().BoolVar(&opts.suggest, "suggest", false, "ask the configured LLM provider for fix suggestions")
	cmd.Flags().IntVar(&opts.maxSuggestions, "max-suggestions", 5, "max fix suggestions to request")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json")

	return cmd
}

func runDiagnose(cmd *cobra.Command, st *cliState, runID string, opts *diagnoseOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("diagnose: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("diagnose: nil options")
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return err
	}
	if output != FormatTable && output != FormatJSON {
		return fmt.Errorf("diagnose: --output %s is not supported", output)
	}

	runID = strings.TrimSpace(runID)
	if runID == "" {
		return fmt.Errorf("diagnose: missing run id")
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
			return fmt.Errorf("diagnose: run %q not found", runID)
		}
		return err
	}
	rows, err := reader.GetRows(cmd.Context(), runID)
	if err != nil {
		return err
	}

	advisor := &diagnose.Advisor{}
	if opts.suggest {
		provider, err := defaultProviderFromConfig(st.cfg)
		if err != nil {
			return err
		}
		advisor.Provider = provider
	}

	result, err := advisor.Diagnose(cmd.Context(), &diagnose.Request{
		Input: &diagnose.Input{
			Run:        run,
			Rows:       rows,
			Categories: loadQueryCategories(st.cfg, run.Dataset),
		},
		MaxSuggestions: opts.maxSuggestions,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if output == FormatJSON {
		b, err := json.Marshal(result)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, string(b))
		return nil
	}

	fmt.Fprintf(out, "Run: %s dataset=%s strategies=%s ks=%s\n",
		run.ID, run.Dataset, strings.Join(run.Strategies, ","), joinInts(run.Ks))

	if len(result.Findings) == 0 {
		fmt.Fprintln(out, "No failure patterns detected.")
	}
	for _, f := range result.Findings {
		title := f.Pattern
		if rule, ok := diagnose.RuleByID(f.Pattern); ok {
			title = rule.Title
		}
		fmt.Fprintf(out, "\n%s\n  %s\n", title, f.Detail)
		for _, ev := range f.Evidence {
			fmt.Fprintf(out, "  - %s\n", ev)
		}
	}

	if len(result.RootCauses) > 0 {
		fmt.Fprintln(out, "\nRoot causes:")
		for _, rc := range result.RootCauses {
			fmt.Fprintf(out, "  - %s\n", rc)
		}
	}
	for i, s := range result.Suggestions {
		if i == 0 {
			fmt.Fprintln(out, "\nSuggestions:")
		}
		fmt.Fprintf(out, "  %d. [%s] %s", s.Priority, s.Type, s.Description)
		if s.Impact != "" {
			fmt.Fprintf(out, " (impact: %s)", s.Impact)
		}
		fmt.Fprintln(out)
	}
	return nil
}

// loadQueryCategories maps query IDs to categories for the run's dataset.
// Diagnosis works without it, so loader problems just mean no category
// clustering.
func loadQueryCategories(cfg *config.Config, datasetName string) map[string]string {
	datasets, err := app.LoadDatasets(cfg.Paths.Datasets)
	if err != nil {
		return nil
	}
	ds, err := app.FindDataset(datasets, datasetName)
	if err != nil {
		return nil
	}

	out := make(map[string]string, len(ds.Queries))
	for _, q := range ds.Queries {
		if q.Category == "" {
			continue
		}
		out[q.ID] = q.Category
	}
	return out
}
