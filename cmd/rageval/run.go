package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/ci"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/harness"
	"github.com/stellarlinkco/rag-eval/internal/leaderboard"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

var errEvalFailed = errors.New("rag-eval: evaluation failed")

type runOptions struct {
	dataset     string
	corpus      string
	catalog     string
	strategies  string
	ks          string
	category    string
	output      string
	minRecall   float64
	minMRR      float64
	concurrency int
	timeout     time.Duration
	qps         float64
	ci          bool
}

func newRunCmd(st *cliState) *cobra.Command {
	var opts runOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate retrieval strategies against a dataset",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvaluation(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.dataset, "dataset", "", "dataset name (defaults when only one exists)")
	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "corpus name (defaults when only one exists)")
	cmd.Flags().StringVar(&opts.catalog, "tools", "", "tool catalog name for the toolselect strategy")
	cmd.Flags().StringVar(&opts.strategies, "strategies", "", "comma separated strategies: semantic|lexical|hybrid|toolselect")
	cmd.Flags().StringVar(&opts.ks, "k", "", "comma separated cutoff depths (overrides config)")
	cmd.Flags().StringVar(&opts.category, "category", "", "only evaluate queries in this category")
	cmd.Flags().StringVar(&opts.output, "output", "", "output format: table|json|csv|github")
	cmd.Flags().Float64Var(&opts.minRecall, "min-recall", -1, "fail when a row recall drops below this floor (overrides config)")
	cmd.Flags().Float64Var(&opts.minMRR, "min-mrr", -1, "fail when a row MRR drops below this floor (overrides config)")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", -1, "parallel evaluation workers (overrides config)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "per query timeout (overrides config)")
	cmd.Flags().Float64Var(&opts.qps, "qps", -1, "query rate limit, 0 disables (overrides config)")
	cmd.Flags().BoolVar(&opts.ci, "ci", false, "force CI mode (github output and summaries)")

	return cmd
}

func runEvaluation(cmd *cobra.Command, st *cliState, opts *runOptions) error {
	if st == nil {
		return fmt.Errorf("run: nil state")
	}
	if opts == nil {
		return fmt.Errorf("run: nil options")
	}
	cfg := st.cfg
	if cfg == nil {
		return fmt.Errorf("run: config not loaded")
	}

	ciMode := resolveCIMode(opts.ci)
	output, err := resolveOutputFormat(applyCIOutputDefault(opts.output, ciMode))
	if err != nil {
		return err
	}

	strategies := splitList(opts.strategies)
	if len(strategies) == 0 {
		strategies = []string{"semantic", "lexical"}
	}

	ks := cfg.Evaluation.Ks
	if strings.TrimSpace(opts.ks) != "" {
		ks, err = parseKs(opts.ks)
		if err != nil {
			return err
		}
	}

	minRecall, err := resolveFloor("min-recall", opts.minRecall, cfg.Evaluation.MinRecall)
	if err != nil {
		return err
	}
	minMRR, err := resolveFloor("min-mrr", opts.minMRR, cfg.Evaluation.MinMRR)
	if err != nil {
		return err
	}

	datasets, err := app.LoadDatasets(cfg.Paths.Datasets)
	if err != nil {
		return err
	}
	ds, err := app.FindDataset(datasets, opts.dataset)
	if err != nil {
		return err
	}
	if opts.category != "" {
		ds = app.FilterQueries(ds, opts.category)
		if len(ds.Queries) == 0 {
			return fmt.Errorf("run: dataset %q has no queries in category %q", ds.Name, opts.category)
		}
	}

	var corpus *dataset.Corpus
	if hasAnyStrategy(strategies, "semantic", "lexical", "hybrid") {
		corpora, err := app.LoadCorpora(cfg.Paths.Corpora)
		if err != nil {
			return err
		}
		corpus, err = app.FindCorpus(corpora, opts.corpus)
		if err != nil {
			return err
		}
	}

	builder := app.NewBuilder(cfg, corpus)
	defer func() { _ = builder.Close() }()

	if hasAnyStrategy(strategies, "toolselect") {
		catalogs, err := app.LoadCatalogs(cfg.Paths.Tools)
		if err != nil {
			return err
		}
		catalog, err := app.FindCatalog(catalogs, opts.catalog)
		if err != nil {
			return err
		}
		provider, err := defaultProviderFromConfig(cfg)
		if err != nil {
			return err
		}
		builder.Catalog = catalog
		builder.Provider = provider
	}

	warnMissingExpected(cmd, ds, knownIDs(corpus, builder.Catalog), ciMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	registry, err := builder.Build(ctx, strategies)
	if err != nil {
		return err
	}

	hcfg, err := app.HarnessConfig(cfg)
	if err != nil {
		return err
	}
	hcfg.Ks = ks
	if opts.concurrency > 0 {
		hcfg.Concurrency = opts.concurrency
	}
	if opts.timeout > 0 {
		hcfg.Timeout = opts.timeout
	}
	if opts.qps >= 0 {
		hcfg.QPS = opts.qps
	}

	h, err := harness.New(registry, hcfg)
	if err != nil {
		return err
	}
	report, err := h.Run(ctx, ds)
	if err != nil {
		return err
	}

	anyFailed, summary := app.Summarize(report)
	violations := app.Violations(report, minRecall, minMRR)

	out := cmd.OutOrStdout()
	fmt.Fprint(out, FormatReport(report, violations, output))
	if output == FormatTable {
		fmt.Fprintf(out, "Summary: dataset=%s rows=%d cells=%d failures=%d duration_ms=%d\n",
			summary.Dataset, summary.Rows, summary.Cells, summary.Failures, summary.DurationMs)
	}

	rec, err := persistRun(ctx, cfg, report, runConfigMap(opts, strategies, hcfg, minRecall, minMRR))
	if err != nil {
		return err
	}
	if rec != nil && output == FormatTable {
		fmt.Fprintf(out, "Saved run %s\n", rec.ID)
	}

	failed := anyFailed || len(violations) > 0
	if ciMode {
		writeCIArtifacts(cmd, report, violations, summary, rec, failed)
	}

	if failed {
		return errEvalFailed
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}

func parseKs(s string) ([]int, error) {
	var out []int
	seen := make(map[int]struct{})
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid --k %q: %q is not an integer", s, part)
		}
		if k <= 0 {
			return nil, fmt.Errorf("invalid --k %q: depths must be positive", s)
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("invalid --k %q: no depths", s)
	}
	sort.Ints(out)
	return out, nil
}

func resolveFloor(name string, flagValue, configValue float64) (float64, error) {
	v := configValue
	if flagValue >= 0 {
		v = flagValue
	}
	if v > 1 {
		return 0, fmt.Errorf("invalid --%s %v: floors are rates between 0 and 1", name, v)
	}
	return v, nil
}

func hasAnyStrategy(strategies []string, names ...string) bool {
	for _, s := range strategies {
		for _, name := range names {
			if s == name {
				return true
			}
		}
	}
	return false
}

func knownIDs(corpus *dataset.Corpus, catalog knownNamer) []string {
	var out []string
	if corpus != nil {
		out = append(out, corpus.IDs()...)
	}
	if catalog != nil {
		out = append(out, catalog.Names()...)
	}
	return out
}

type knownNamer interface {
	Names() []string
}

func warnMissingExpected(cmd *cobra.Command, ds *dataset.Dataset, known []string, ciMode bool) {
	if len(known) == 0 {
		return
	}
	missing := app.MissingExpected(ds, known)
	if len(missing) == 0 {
		return
	}
	msg := fmt.Sprintf("dataset %s expects %d IDs absent from the corpus: %s",
		ds.Name, len(missing), strings.Join(missing, ", "))
	fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %s\n", msg)
	if ciMode {
		ci.AddAnnotation("warning", "", 0, msg)
	}
}

func runConfigMap(opts *runOptions, strategies []string, hcfg harness.Config, minRecall, minMRR float64) map[string]any {
	return map[string]any{
		"strategies":   strategies,
		"ks":           hcfg.Ks,
		"category":     opts.category,
		"corpus":       opts.corpus,
		"tools":        opts.catalog,
		"concurrency":  hcfg.Concurrency,
		"timeout_ms":   hcfg.Timeout.Milliseconds(),
		"qps":          hcfg.QPS,
		"empty_policy": string(hcfg.EmptyPolicy),
		"min_recall":   minRecall,
		"min_mrr":      minMRR,
	}
}

func persistRun(ctx context.Context, cfg *config.Config, report *harness.Report, runConfig map[string]any) (*store.RunRecord, error) {
	if cfg == nil {
		return nil, fmt.Errorf("run: nil config")
	}

	s, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("run: open store: %w", err)
	}
	defer func() { _ = s.Close() }()

	rec, err := app.SaveReport(ctx, s, report, runConfig)
	if err != nil {
		return nil, err
	}

	if err := saveLeaderboardEntries(ctx, cfg, report, rec.ID); err != nil {
		return rec, err
	}
	return rec, nil
}

func saveLeaderboardEntries(ctx context.Context, cfg *config.Config, report *harness.Report, runID string) error {
	lb, err := openLeaderboardStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = lb.Close() }()

	for _, entry := range leaderboard.FromReport(report, runID) {
		e := entry
		if err := lb.Save(ctx, &e); err != nil {
			return fmt.Errorf("run: save leaderboard entry: %w", err)
		}
	}
	return nil
}
