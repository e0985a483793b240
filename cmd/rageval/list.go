package main

import (
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/dataset"
)

func newListCmd(st *cliState) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List datasets, corpora, tool catalogs, or strategies",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(st.configPath)
			if err != nil {
				return err
			}
			st.cfg = cfg
			return nil
		},
	}

	cmd.AddCommand(newListDatasetsCmd(st))
	cmd.AddCommand(newListCorporaCmd(st))
	cmd.AddCommand(newListToolsCmd(st))
	cmd.AddCommand(newListStrategiesCmd())
	return cmd
}

func newListDatasetsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "datasets",
		Short: "List available datasets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("list: missing config (internal error)")
			}
			datasets, err := app.LoadDatasets(st.cfg.Paths.Datasets)
			if err != nil {
				return err
			}
			sort.Slice(datasets, func(i, j int) bool {
				return strings.ToLower(datasets[i].Name) < strings.ToLower(datasets[j].Name)
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tQUERIES\tCATEGORIES")
			for _, ds := range datasets {
				fmt.Fprintf(tw, "%s\t%d\t%s\n", ds.Name, len(ds.Queries), strings.Join(queryCategories(ds), ","))
			}
			return tw.Flush()
		},
	}
}

func newListCorporaCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "corpora",
		Short: "List available corpora",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("list: missing config (internal error)")
			}
			corpora, err := app.LoadCorpora(st.cfg.Paths.Corpora)
			if err != nil {
				return err
			}
			sort.Slice(corpora, func(i, j int) bool {
				return strings.ToLower(corpora[i].Name) < strings.ToLower(corpora[j].Name)
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDOCUMENTS")
			for _, c := range corpora {
				fmt.Fprintf(tw, "%s\t%d\n", c.Name, len(c.Documents))
			}
			return tw.Flush()
		},
	}
}

func newListToolsCmd(st *cliState) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List available tool catalogs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if st == nil || st.cfg == nil {
				return fmt.Errorf("list: missing config (internal error)")
			}
			catalogs, err := app.LoadCatalogs(st.cfg.Paths.Tools)
			if err != nil {
				return err
			}
			sort.Slice(catalogs, func(i, j int) bool {
				return strings.ToLower(catalogs[i].Name) < strings.ToLower(catalogs[j].Name)
			})

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tTOOLS")
			for _, c := range catalogs {
				fmt.Fprintf(tw, "%s\t%d\n", c.Name, len(c.Tools))
			}
			return tw.Flush()
		},
	}
}

func newListStrategiesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strategies",
		Short: "List available retrieval strategies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION")
			fmt.Fprintln(tw, "semantic\tembedding similarity search over the corpus")
			fmt.Fprintln(tw, "lexical\tBM25 keyword search over the corpus")
			fmt.Fprintln(tw, "hybrid\treciprocal rank fusion of semantic and lexical")
			fmt.Fprintln(tw, "toolselect\tLLM tool selection against a tool catalog")
			return tw.Flush()
		},
	}
}

func queryCategories(ds *dataset.Dataset) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range ds.Queries {
		c := strings.TrimSpace(q.Category)
		if c == "" {
			continue
		}
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
