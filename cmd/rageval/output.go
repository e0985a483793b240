package main

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/stellarlinkco/rag-eval/internal/harness"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

type OutputFormat string

const (
	FormatTable  OutputFormat = "table"
	FormatJSON   OutputFormat = "json"
	FormatCSV    OutputFormat = "csv"
	FormatGitHub OutputFormat = "github"
)

const (
	colorReset = "\033[0m"
	colorRed   = "\033[31m"
	colorGreen = "\033[32m"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "table":
		return FormatTable
	case "json", "jsonl":
		return FormatJSON
	case "csv":
		return FormatCSV
	case "github", "gh":
		return FormatGitHub
	default:
		return ""
	}
}

func resolveOutputFormat(flagValue string) (OutputFormat, error) {
	if strings.TrimSpace(flagValue) == "" {
		return FormatTable, nil
	}
	out := parseOutputFormat(flagValue)
	if out == "" {
		return "", fmt.Errorf("invalid --output %q (expected table|json|csv|github)", flagValue)
	}
	return out, nil
}

func coloredStatus(passed bool) string {
	if passed {
		return colorGreen + "PASS" + colorReset
	}
	return colorRed + "FAIL" + colorReset
}

func reportPassed(report *harness.Report, violations []string) bool {
	if report == nil || len(report.Rows) == 0 {
		return false
	}
	if len(violations) > 0 {
		return false
	}
	for _, row := range report.Rows {
		if row.Failures > 0 {
			return false
		}
	}
	return true
}

func FormatReport(report *harness.Report, violations []string, format OutputFormat) string {
	switch format {
	case FormatTable:
		return formatReportTable(report, violations)
	case FormatJSON:
		return formatReportJSON(report, violations)
	case FormatCSV:
		return formatReportCSV(report)
	case FormatGitHub:
		return formatReportGitHub(report, violations)
	default:
		return fmt.Sprintf("error: unknown output format %q\n", format)
	}
}

func formatReportTable(report *harness.Report, violations []string) string {
	if report == nil {
		return "Dataset: <nil> " + coloredStatus(false) + "\n\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Dataset: %s %s\n", report.Dataset, coloredStatus(reportPassed(report, violations)))
	fmt.Fprintf(&buf, "Cells: %d duration_ms=%d\n", len(report.Records), report.FinishedAt.Sub(report.StartedAt).Milliseconds())

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tK\tPRECISION\tRECALL\tMRR\tQUERIES\tFAILURES")
	for _, row := range report.Rows {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\t%.3f\t%d\t%d\n",
			row.Strategy, row.K, row.Precision, row.Recall, row.MRR, row.Queries, row.Failures)
	}
	_ = tw.Flush()

	failed := failedRecords(report)
	if len(failed) > 0 {
		buf.WriteString("\nFailed cells:\n")
		for _, rec := range failed {
			fmt.Fprintf(&buf, "  %s k=%d query=%s: %s\n", rec.Strategy, rec.K, rec.QueryID, rec.Err)
		}
	}

	if len(violations) > 0 {
		buf.WriteString("\nFloor violations:\n")
		for _, v := range violations {
			fmt.Fprintf(&buf, "  %s\n", v)
		}
	}

	buf.WriteByte('\n')
	return buf.String()
}

func failedRecords(report *harness.Report) []harness.MetricRecord {
	var out []harness.MetricRecord
	for _, rec := range report.Records {
		if rec.Err != "" {
			out = append(out, rec)
		}
	}
	return out
}

type jsonReport struct {
	Dataset    string          `json:"dataset"`
	Passed     bool            `json:"passed"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Rows       []jsonReportRow `json:"rows"`
	Cells      int             `json:"cells"`
	Violations []string        `json:"violations,omitempty"`
}

type jsonReportRow struct {
	Strategy  string  `json:"strategy"`
	K         int     `json:"k"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
	Queries   int     `json:"queries"`
	Failures  int     `json:"failures"`
}

func reportToJSON(report *harness.Report, violations []string) jsonReport {
	out := jsonReport{
		Dataset:    report.Dataset,
		Passed:     reportPassed(report, violations),
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Rows:       make([]jsonReportRow, 0, len(report.Rows)),
		Cells:      len(report.Records),
		Violations: violations,
	}
	for _, row := range report.Rows {
		out.Rows = append(out.Rows, jsonReportRow{
			Strategy:  row.Strategy,
			K:         row.K,
			Precision: row.Precision,
			Recall:    row.Recall,
			MRR:       row.MRR,
			Queries:   row.Queries,
			Failures:  row.Failures,
		})
	}
	return out
}

func formatReportJSON(report *harness.Report, violations []string) string {
	if report == nil {
		return "{\"error\":\"nil report\"}\n"
	}

	b, err := json.Marshal(reportToJSON(report, violations))
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}

func formatReportCSV(report *harness.Report) string {
	if report == nil {
		return ""
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write([]string{"strategy", "k", "precision", "recall", "mrr", "queries", "failures"})
	for _, row := range report.Rows {
		_ = w.Write([]string{
			row.Strategy,
			fmt.Sprintf("%d", row.K),
			fmt.Sprintf("%.4f", row.Precision),
			fmt.Sprintf("%.4f", row.Recall),
			fmt.Sprintf("%.4f", row.MRR),
			fmt.Sprintf("%d", row.Queries),
			fmt.Sprintf("%d", row.Failures),
		})
	}
	w.Flush()
	return buf.String()
}

func formatReportGitHub(report *harness.Report, violations []string) string {
	if report == nil {
		return "::error::nil report\n"
	}

	var buf strings.Builder
	for _, rec := range failedRecords(report) {
		msg := fmt.Sprintf("dataset=%s strategy=%s k=%d query=%s error=%s",
			report.Dataset, rec.Strategy, rec.K, rec.QueryID, rec.Err)
		buf.WriteString("::error::")
		buf.WriteString(sanitizeGitHubAnnotation(msg))
		buf.WriteByte('\n')
	}
	for _, v := range violations {
		buf.WriteString("::warning::")
		buf.WriteString(sanitizeGitHubAnnotation("floor violation dataset="+report.Dataset+" "+v))
		buf.WriteByte('\n')
	}

	failures := 0
	for _, row := range report.Rows {
		failures += row.Failures
	}
	buf.WriteString(fmt.Sprintf("Summary: dataset=%s rows=%d cells=%d failures=%d violations=%d\n",
		report.Dataset, len(report.Rows), len(report.Records), failures, len(violations)))
	return buf.String()
}

func sanitizeGitHubAnnotation(s string) string {
	// GitHub Actions commands treat CR/LF and percent-encoding specially.
	// Keep it simple: flatten newlines and carriage returns.
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func FormatCompareResult(cmp *store.RunComparison, format OutputFormat) string {
	switch format {
	case FormatTable:
		return formatCompareTable(cmp)
	case FormatJSON:
		return formatCompareJSON(cmp)
	case FormatGitHub:
		return formatCompareGitHub(cmp)
	default:
		return fmt.Sprintf("error: unknown output format %q\n", format)
	}
}

func formatCompareTable(cmp *store.RunComparison) string {
	if cmp == nil || cmp.Baseline == nil || cmp.Candidate == nil {
		return "Compare: <nil> " + coloredStatus(false) + "\n\n"
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Baseline:  %s dataset=%s finished=%s\n",
		cmp.Baseline.ID, cmp.Baseline.Dataset, formatTime(cmp.Baseline.FinishedAt))
	fmt.Fprintf(&buf, "Candidate: %s dataset=%s finished=%s\n",
		cmp.Candidate.ID, cmp.Candidate.Dataset, formatTime(cmp.Candidate.FinishedAt))

	tw := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STRATEGY\tK\tΔPRECISION\tΔRECALL\tΔMRR")
	for _, d := range cmp.Deltas {
		fmt.Fprintf(tw, "%s\t%d\t%+.3f\t%+.3f\t%+.3f\n", d.Strategy, d.K, d.Precision, d.Recall, d.MRR)
	}
	_ = tw.Flush()
	buf.WriteByte('\n')

	if len(cmp.Regressions) > 0 {
		fmt.Fprintf(&buf, "Regressions (%d):\n", len(cmp.Regressions))
		for _, r := range cmp.Regressions {
			fmt.Fprintf(&buf, "  %s\n", r)
		}
	}
	if len(cmp.Improvements) > 0 {
		fmt.Fprintf(&buf, "Improvements (%d):\n", len(cmp.Improvements))
		for _, r := range cmp.Improvements {
			fmt.Fprintf(&buf, "  %s\n", r)
		}
	}

	if len(cmp.Regressions) > 0 {
		fmt.Fprintf(&buf, "Regression: %s\n\n", coloredStatus(false))
	} else {
		fmt.Fprintf(&buf, "Regression: %s\n\n", coloredStatus(true))
	}
	return buf.String()
}

type jsonCompareResult struct {
	BaselineID   string          `json:"baseline_id"`
	CandidateID  string          `json:"candidate_id"`
	Dataset      string          `json:"dataset"`
	Deltas       []jsonRowDelta  `json:"deltas"`
	Regressions  []string        `json:"regressions,omitempty"`
	Improvements []string        `json:"improvements,omitempty"`
	Regressed    bool            `json:"regressed"`
	Rows         jsonCompareMeta `json:"meta"`
}

type jsonRowDelta struct {
	Strategy  string  `json:"strategy"`
	K         int     `json:"k"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
}

type jsonCompareMeta struct {
	BaselineRows  int `json:"baseline_rows"`
	CandidateRows int `json:"candidate_rows"`
	SharedRows    int `json:"shared_rows"`
}

func formatCompareJSON(cmp *store.RunComparison) string {
	if cmp == nil || cmp.Baseline == nil || cmp.Candidate == nil {
		return "{\"error\":\"nil comparison\"}\n"
	}

	out := jsonCompareResult{
		BaselineID:   cmp.Baseline.ID,
		CandidateID:  cmp.Candidate.ID,
		Dataset:      cmp.Candidate.Dataset,
		Deltas:       make([]jsonRowDelta, 0, len(cmp.Deltas)),
		Regressions:  cmp.Regressions,
		Improvements: cmp.Improvements,
		Regressed:    len(cmp.Regressions) > 0,
		Rows: jsonCompareMeta{
			BaselineRows:  len(cmp.BaselineRows),
			CandidateRows: len(cmp.CandidateRows),
			SharedRows:    len(cmp.Deltas),
		},
	}
	for _, d := range cmp.Deltas {
		out.Deltas = append(out.Deltas, jsonRowDelta{
			Strategy:  d.Strategy,
			K:         d.K,
			Precision: d.Precision,
			Recall:    d.Recall,
			MRR:       d.MRR,
		})
	}

	b, err := json.Marshal(out)
	if err != nil {
		return fmt.Sprintf("{\"error\":%q}\n", err.Error())
	}
	return string(b) + "\n"
}

func formatCompareGitHub(cmp *store.RunComparison) string {
	if cmp == nil || cmp.Baseline == nil || cmp.Candidate == nil {
		return "::error::nil comparison\n"
	}

	var buf strings.Builder
	for _, r := range cmp.Regressions {
		msg := fmt.Sprintf("regression baseline=%s candidate=%s %s", cmp.Baseline.ID, cmp.Candidate.ID, r)
		buf.WriteString("::warning::")
		buf.WriteString(sanitizeGitHubAnnotation(msg))
		buf.WriteByte('\n')
	}

	buf.WriteString(fmt.Sprintf("Summary: baseline=%s candidate=%s shared_rows=%d regressions=%d improvements=%d\n",
		cmp.Baseline.ID, cmp.Candidate.ID, len(cmp.Deltas), len(cmp.Regressions), len(cmp.Improvements)))
	return buf.String()
}
