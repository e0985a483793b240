package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/ci"
	"github.com/stellarlinkco/rag-eval/internal/harness"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

const ciReportPath = "data/ci-results.json"

type ciReport struct {
	RunID      string          `json:"run_id,omitempty"`
	Dataset    string          `json:"dataset"`
	StartedAt  string          `json:"started_at"`
	FinishedAt string          `json:"finished_at"`
	Failed     bool            `json:"failed"`
	Summary    app.Summary     `json:"summary"`
	Rows       []jsonReportRow `json:"rows"`
	Violations []string        `json:"violations,omitempty"`
}

func resolveCIMode(force bool) bool {
	if force {
		return true
	}
	return ci.DetectCI()
}

func applyCIOutputDefault(output string, ciMode bool) string {
	if ciMode && strings.TrimSpace(output) == "" {
		return string(FormatGitHub)
	}
	return output
}

func writeCIArtifacts(cmd *cobra.Command, report *harness.Report, violations []string, summary app.Summary, rec *store.RunRecord, failed bool) {
	errOut := cmd.ErrOrStderr()

	if err := ci.SetJobSummary(ci.ReportMarkdown(report, violations)); err != nil {
		fmt.Fprintf(errOut, "ci: write job summary: %v\n", err)
	}
	if err := writeCIReportFile(ciReportPath, buildCIReport(report, violations, summary, rec, failed)); err != nil {
		fmt.Fprintf(errOut, "ci: write report: %v\n", err)
	}

	if rec != nil {
		ci.SetOutput("run_id", rec.ID)
	}
	ci.SetOutput("failed", strconv.FormatBool(failed))
}

func buildCIReport(report *harness.Report, violations []string, summary app.Summary, rec *store.RunRecord, failed bool) ciReport {
	out := ciReport{
		Failed:     failed,
		Summary:    summary,
		Violations: violations,
	}
	if rec != nil {
		out.RunID = rec.ID
	}
	if report == nil {
		return out
	}

	out.Dataset = report.Dataset
	out.StartedAt = formatTime(report.StartedAt)
	out.FinishedAt = formatTime(report.FinishedAt)
	out.Rows = reportToJSON(report, nil).Rows
	return out
}

func writeCIReportFile(path string, report ciReport) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("ci: empty report path")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}
