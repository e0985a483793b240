package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/config"
)

type ingestOptions struct {
	corpus string
}

func newIngestCmd(st *cliState) *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Embed a corpus and load it into the vector index",
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
			return runIngest(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.corpus, "corpus", "", "corpus name (defaults when only one exists)")

	return cmd
}

func runIngest(cmd *cobra.Command, st *cliState, opts *ingestOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("ingest: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("ingest: nil options")
	}

	corpora, err := app.LoadCorpora(st.cfg.Paths.Corpora)
	if err != nil {
		return err
	}
	corpus, err := app.FindCorpus(corpora, opts.corpus)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	builder := app.NewBuilder(st.cfg, corpus)
	defer func() { _ = builder.Close() }()

	if _, err := builder.VectorIndex(ctx); err != nil {
		return err
	}

	indexType := strings.ToLower(strings.TrimSpace(st.cfg.Index.Type))
	if indexType == "" {
		indexType = "memory"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Ingested corpus %s: documents=%d index=%s\n", corpus.Name, len(corpus.Documents), indexType)
	if indexType == "memory" {
		fmt.Fprintln(out, "Note: the memory index is process local; configure a qdrant index to persist embeddings.")
	}
	return nil
}
