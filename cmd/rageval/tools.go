package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/toolspec"
)

type toolsOptions struct {
	catalog string
	output  string
}

func newToolsCmd(st *cliState) *cobra.Command {
	var opts toolsOptions

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Render tool catalogs as function-call schemas",
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
			return runTools(cmd, st, &opts)
		},
	}

	cmd.Flags().StringVar(&opts.catalog, "catalog", "", "tool catalog name, all catalogs when empty")
	cmd.Flags().StringVar(&opts.output, "output", "json", "output format: table|json")

	return cmd
}

type toolCatalogSchemas struct {
	Name  string           `json:"name"`
	Tools []map[string]any `json:"tools"`
}

func runTools(cmd *cobra.Command, st *cliState, opts *toolsOptions) error {
	if st == nil || st.cfg == nil {
		return fmt.Errorf("tools: missing config (internal error)")
	}
	if opts == nil {
		return fmt.Errorf("tools: nil options")
	}

	output, err := resolveOutputFormat(opts.output)
	if err != nil {
		return err
	}
	if output != FormatJSON && output != FormatTable {
		return fmt.Errorf("tools: --output %s is not supported (expected table|json)", output)
	}

	catalogs, err := app.LoadCatalogs(st.cfg.Paths.Tools)
	if err != nil {
		return err
	}
	if strings.TrimSpace(opts.catalog) != "" {
		catalog, err := app.FindCatalog(catalogs, opts.catalog)
		if err != nil {
			return err
		}
		catalogs = []*toolspec.Catalog{catalog}
	}
	if len(catalogs) == 0 {
		return fmt.Errorf("tools: no catalogs found in %s", st.cfg.Paths.Tools)
	}

	out := cmd.OutOrStdout()
	if output == FormatJSON {
		rendered := make([]toolCatalogSchemas, 0, len(catalogs))
		for _, c := range catalogs {
			rendered = append(rendered, toolCatalogSchemas{Name: c.Name, Tools: c.Schemas()})
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rendered)
	}

	for i, c := range catalogs {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "Catalog: %s\n", c.Name)
		tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "TOOL\tPARAMS\tDESCRIPTION")
		for _, d := range c.Tools {
			params := make([]string, 0, len(d.Params))
			for _, p := range d.Params {
				params = append(params, p.Name)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Name, strings.Join(params, ","), d.Description)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}
