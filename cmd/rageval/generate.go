package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/generator"
)

type generateOptions struct {
	corpus      string
	name        string
	count       int
	taskContext string
	examples    []string
	out         string
}

func newGenerateCmd(st *cliState) *cobra.Command {
	var opts generateOptions

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate synthetic labeled queries for a corpus",
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
			return runGenerate(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "corpus name (defaults when only one exists)")
	cmd.Flags().StringVar(&opts.name, "name", "", "dataset name (defaults to <corpus>-synthetic)")
	cmd.Flags().IntVar(&opts.count, "count", 0, "number of queries to generate")
	cmd.Flags().StringVar(&opts.taskContext, "context", "", "extra task context for the generator prompt")
	cmd.Flags().StringArrayVar(&opts.examples, "example", nil, "example query to steer generation (repeatable)")
	cmd.Flags().StringVar(&opts.out, "out", "", "output file (.yaml or .json), stdout when empty")

	return cmd
}

func runGenerate(cmd *cobra.Command, st *cliState, opts *generateOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("generate: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("generate: nil options")
	}

	corpora, err := app.LoadCorpora(st.cfg.Paths.Corpora)
	if err != nil {
		return err
	}
	corpus, err := app.FindCorpus(corpora, opts.corpus)
	if err != nil {
		return err
	}

	provider, err := defaultProviderFromConfig(st.cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	gen := &generator.Generator{Provider: provider}
	ds, err := gen.Generate(ctx, &generator.Request{
		Corpus:      corpus,
		TaskContext: opts.taskContext,
		Examples:    opts.examples,
		Count:       opts.count,
		Name:        opts.name,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if strings.TrimSpace(opts.out) == "" {
		b, err := yaml.Marshal(ds)
		if err != nil {
			return err
		}
		fmt.Fprint(out, string(b))
		return nil
	}

	if err := writeDatasetFile(opts.out, ds); err != nil {
		return err
	}
	fmt.Fprintf(out, "Generated %d queries for corpus %s\n", len(ds.Queries), corpus.Name)
	fmt.Fprintf(out, "Wrote %s\n", opts.out)
	return nil
}

func writeDatasetFile(path string, ds *dataset.Dataset) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("generate: empty output path")
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
		b, err = json.MarshalIndent(ds, "", "  ")
	case ".yaml", ".yml", "":
		b, err = yaml.Marshal(ds)
	default:
		return fmt.Errorf("generate: unsupported output extension %q (expected .yaml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
