// Package ci integrates evaluation runs with GitHub Actions: workflow
// command output, step outputs, and job summary markdown.
package ci

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/harness"
)

// DetectCI returns true if running in GitHub Actions.
func DetectCI() bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv("GITHUB_ACTIONS")), "true")
}

// SetOutput sets a GitHub Actions output variable.
func SetOutput(name, value string) {
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	if path := strings.TrimSpace(os.Getenv("GITHUB_OUTPUT")); path != "" {
		_ = appendCommandFile(path, fmt.Sprintf("%s<<EOF\n%s\nEOF\n", name, value))
		return
	}
	fmt.Printf("::set-output name=%s::%s\n", name, escapeCommandValue(value))
}

// AddAnnotation adds a GitHub Actions annotation (error, warning, notice).
func AddAnnotation(level, file string, line int, message string) {
	lvl := strings.ToLower(strings.TrimSpace(level))
	switch lvl {
	case "error", "warning", "notice":
	default:
		lvl = "notice"
	}

	msg := escapeCommandValue(message)
	file = strings.TrimSpace(file)

	if file == "" {
		fmt.Printf("::%s::%s\n", lvl, msg)
		return
	}
	if line > 0 {
		fmt.Printf("::%s file=%s,line=%d::%s\n", lvl, file, line, msg)
		return
	}
	fmt.Printf("::%s file=%s::%s\n", lvl, file, msg)
}

// SetJobSummary writes markdown to the job summary.
func SetJobSummary(markdown string) error {
	path := strings.TrimSpace(os.Getenv("GITHUB_STEP_SUMMARY"))
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if !strings.HasSuffix(markdown, "\n") {
		markdown += "\n"
	}
	return appendCommandFile(path, markdown)
}

// ReportMarkdown renders a run report as job summary markdown: one table row
// per (strategy, k) aggregate, then any metric floor violations.
func ReportMarkdown(report *harness.Report, violations []string) string {
	var buf strings.Builder
	buf.WriteString("## Retrieval Evaluation Results\n\n")

	if report == nil {
		buf.WriteString("_No report produced._\n")
		return buf.String()
	}

	if ds := strings.TrimSpace(report.Dataset); ds != "" {
		fmt.Fprintf(&buf, "Dataset: %s\n\n", escapeMarkdownCell(ds))
	}

	failures := 0
	for _, row := range report.Rows {
		failures += row.Failures
	}
	fmt.Fprintf(&buf, "Rows: %d | Cells: %d | Failures: %d\n\n",
		len(report.Rows), len(report.Records), failures)

	if len(report.Rows) == 0 {
		buf.WriteString("_No rows evaluated._\n")
		return buf.String()
	}

	buf.WriteString("| Strategy | K | Precision | Recall | MRR | Queries | Failures |\n")
	buf.WriteString("| --- | ---: | ---: | ---: | ---: | ---: | ---: |\n")
	for _, row := range report.Rows {
		fmt.Fprintf(&buf, "| %s | %d | %.3f | %.3f | %.3f | %d | %d |\n",
			escapeMarkdownCell(row.Strategy), row.K, row.Precision, row.Recall, row.MRR,
			row.Queries, row.Failures)
	}

	if len(violations) > 0 {
		buf.WriteString("\n### Metric floors\n\n")
		for _, v := range violations {
			fmt.Fprintf(&buf, "- %s\n", strings.TrimSpace(v))
		}
	}

	return buf.String()
}

func appendCommandFile(path, content string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(content)
	return err
}

func escapeCommandValue(s string) string {
	s = strings.ReplaceAll(s, "%", "%25")
	s = strings.ReplaceAll(s, "\r", "%0D")
	s = strings.ReplaceAll(s, "\n", "%0A")
	return s
}

func escapeMarkdownCell(s string) string {
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "|", "\\|")
	s = strings.TrimSpace(s)
	if s == "" {
		return "-"
	}
	return s
}
