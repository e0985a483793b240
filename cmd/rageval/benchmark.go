package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/rag-eval/internal/benchmark"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/dataset"
)

type benchmarkOptions struct {
	name       string
	split      string
	maxQueries int
	minScore   int
	datasetOut string
	corpusOut  string
}

func newBenchmarkCmd(st *cliState) *cobra.Command {
	var opts benchmarkOptions

	cmd := &cobra.Command{
		Use:   "benchmark <beir-dir>",
		Short: "Import a BEIR benchmark into the dataset and corpus directories",
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
			return runBenchmarkImport(cmd, st, args[0], &opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "dataset and corpus name (defaults to the directory base name)")
	cmd.Flags().StringVar(&opts.split, "split", "", "qrels split (defaults to test)")
	cmd.Flags().IntVar(&opts.maxQueries, "max-queries", 0, "keep only the first n labeled queries (0 keeps all)")
	cmd.Flags().IntVar(&opts.minScore, "min-score", 0, "minimum relevance score counted as a hit (defaults to 1)")
	cmd.Flags().StringVar(&opts.datasetOut, "dataset-out", "", "dataset output file (defaults into the configured datasets dir)")
	cmd.Flags().StringVar(&opts.corpusOut, "corpus-out", "", "corpus output file (defaults into the configured corpora dir)")

	return cmd
}

func runBenchmarkImport(cmd *cobra.Command, st *cliState, dir string, opts *benchmarkOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("benchmark: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("benchmark: nil options")
	}
	if opts.maxQueries < 0 {
		return fmt.Errorf("benchmark: --max-queries must be >= 0 (got %d)", opts.maxQueries)
	}
	if opts.minScore < 0 {
		return fmt.Errorf("benchmark: --min-score must be >= 0 (got %d)", opts.minScore)
	}

	ds, corpus, err := benchmark.ImportBEIR(cmd.Context(), dir, benchmark.BEIROptions{
		Name:       opts.name,
		Split:      opts.split,
		MaxQueries: opts.maxQueries,
		MinScore:   opts.minScore,
	})
	if err != nil {
		return err
	}

	datasetPath := strings.TrimSpace(opts.datasetOut)
	if datasetPath == "" {
		datasetPath = filepath.Join(st.cfg.Paths.Datasets, ds.Name+".yaml")
	}
	corpusPath := strings.TrimSpace(opts.corpusOut)
	if corpusPath == "" {
		corpusPath = filepath.Join(st.cfg.Paths.Corpora, corpus.Name+".yaml")
	}

	if err := writeImportFile(datasetPath, ds); err != nil {
		return err
	}
	if err := writeImportFile(corpusPath, corpus); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Imported %s: %d queries, %d documents\n", ds.Name, len(ds.Queries), len(corpus.Documents))
	fmt.Fprintf(out, "Wrote %s\n", datasetPath)
	fmt.Fprintf(out, "Wrote %s\n", corpusPath)
	return nil
}

// writeImportFile marshals a dataset or corpus by extension, creating parent
// directories as needed.
func writeImportFile(path string, v any) error {
	switch v.(type) {
	case *dataset.Dataset, *dataset.Corpus:
	default:
		return fmt.Errorf("benchmark: unsupported import type %T", v)
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	var (
		b   []byte
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		b, err = json.MarshalIndent(v, "", "  ")
	case ".yaml", ".yml":
		b, err = yaml.Marshal(v)
	default:
		return fmt.Errorf("benchmark: unsupported output extension %q (expected .yaml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
