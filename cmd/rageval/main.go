package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/config"
)

type cliState struct {
	configPath string
	cfg        *config.Config
}

var (
	osExit                 = os.Exit
	stderrWriter io.Writer = os.Stderr
)

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		if errors.Is(err, errEvalFailed) || errors.Is(err, errRegression) {
			osExit(1)
			return
		}
		fmt.Fprintln(stderrWriter, err)
		osExit(1)
	}
}

func newRootCmd() *cobra.Command {
	st := &cliState{configPath: config.DefaultPath}

	root := &cobra.Command{
		Use:           "rag-eval",
		Short:         "Evaluate retrieval strategies against labeled query datasets",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&st.configPath, "config", st.configPath, "path to config file")

	root.AddCommand(newRunCmd(st))
	root.AddCommand(newBreakdownCmd(st))
	root.AddCommand(newCompareCmd(st))
	root.AddCommand(newGenerateCmd(st))
	root.AddCommand(newIngestCmd(st))
	root.AddCommand(newToolsCmd(st))
	root.AddCommand(newListCmd(st))
	root.AddCommand(newHistoryCmd(st))
	root.AddCommand(newDiagnoseCmd(st))
	root.AddCommand(newBenchmarkCmd(st))
	root.AddCommand(newLeaderboardCmd(st))
	return root
}
