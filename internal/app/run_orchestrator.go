package app

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/harness"
	"github.com/stellarlinkco/rag-eval/internal/metrics"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

// Summary condenses one report for display and exit-code decisions.
type Summary struct {
	Dataset    string `json:"dataset"`
	Rows       int    `json:"rows"`
	Cells      int    `json:"cells"`
	Failures   int    `json:"failures"`
	DurationMs int64  `json:"duration_ms"`
}

// HarnessConfig maps the evaluation section of the configuration onto the
// harness, parsing the empty-result policy.
func HarnessConfig(cfg *config.Config) (harness.Config, error) {
	if cfg == nil {
		return harness.Config{}, errors.New("run: nil config")
	}
	policy, err := metrics.ParseEmptyPolicy(cfg.Evaluation.EmptyPolicy)
	if err != nil {
		return harness.Config{}, fmt.Errorf("run: %w", err)
	}
	return harness.Config{
		Ks:          cfg.Evaluation.Ks,
		Concurrency: cfg.Evaluation.Concurrency,
		Timeout:     cfg.Evaluation.Timeout,
		QPS:         cfg.Evaluation.QPS,
		EmptyPolicy: policy,
	}, nil
}

// Summarize rolls a report up. anyFailed reports whether any evaluation cell
// errored; a nil report counts as failed.
func Summarize(report *harness.Report) (anyFailed bool, summary Summary) {
	if report == nil {
		return true, summary
	}

	summary.Dataset = report.Dataset
	summary.Rows = len(report.Rows)
	summary.Cells = len(report.Records)
	for i := range report.Records {
		if report.Records[i].Err != "" {
			summary.Failures++
		}
	}
	if !report.StartedAt.IsZero() && !report.FinishedAt.IsZero() {
		summary.DurationMs = report.FinishedAt.Sub(report.StartedAt).Milliseconds()
	}
	return summary.Failures > 0, summary
}

// Violations lists aggregate rows falling below the recall and MRR floors.
// A zero floor disables that check.
func Violations(report *harness.Report, minRecall, minMRR float64) []string {
	if report == nil {
		return nil
	}
	var out []string
	for _, row := range report.Rows {
		if minRecall > 0 && row.Recall < minRecall {
			out = append(out, fmt.Sprintf("%s@%d recall %.2f below %.2f", row.Strategy, row.K, row.Recall, minRecall))
		}
		if minMRR > 0 && row.MRR < minMRR {
			out = append(out, fmt.Sprintf("%s@%d mrr %.2f below %.2f", row.Strategy, row.K, row.MRR, minMRR))
		}
	}
	return out
}

// SaveReport persists a finished report: one run record plus one row per
// (strategy, k) aggregate, each carrying its per-query cells.
func SaveReport(ctx context.Context, writer store.RunWriter, report *harness.Report, runConfig map[string]any) (*store.RunRecord, error) {
	if writer == nil {
		return nil, errors.New("run: missing store")
	}
	if report == nil {
		return nil, errors.New("run: missing report")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID, err := newRunID()
	if err != nil {
		return nil, fmt.Errorf("run: generate run id: %w", err)
	}

	runRecord := &store.RunRecord{
		ID:         runID,
		Dataset:    report.Dataset,
		StartedAt:  report.StartedAt,
		FinishedAt: report.FinishedAt,
		Strategies: rowStrategies(report.Rows),
		Ks:         rowKs(report.Rows),
		Config:     runConfig,
	}
	if err := writer.SaveRun(ctx, runRecord); err != nil {
		return nil, fmt.Errorf("run: save run: %w", err)
	}

	rows := toRowRecords(runID, report)
	if len(rows) > 0 {
		if err := writer.SaveRows(ctx, rows); err != nil {
			return nil, fmt.Errorf("run: save rows: %w", err)
		}
	}
	return runRecord, nil
}

func toRowRecords(runID string, report *harness.Report) []*store.RowRecord {
	type key struct {
		strategy string
		k        int
	}
	cells := make(map[key][]store.QueryRecord, len(report.Rows))
	for i := range report.Records {
		rec := &report.Records[i]
		kk := key{strategy: rec.Strategy, k: rec.K}
		cells[kk] = append(cells[kk], store.QueryRecord{
			QueryID:   rec.QueryID,
			Precision: rec.Precision,
			Recall:    rec.Recall,
			MRR:       rec.MRR,
			Result:    rec.Result,
			Expected:  rec.Expected,
			LatencyMs: rec.LatencyMs,
			Error:     rec.Err,
		})
	}

	out := make([]*store.RowRecord, 0, len(report.Rows))
	for _, row := range report.Rows {
		out = append(out, &store.RowRecord{
			RunID:     runID,
			Strategy:  row.Strategy,
			K:         row.K,
			Precision: row.Precision,
			Recall:    row.Recall,
			MRR:       row.MRR,
			Queries:   row.Queries,
			Failures:  row.Failures,
			Records:   cells[key{strategy: row.Strategy, k: row.K}],
		})
	}
	return out
}

// rowStrategies keeps first-appearance order, which matches registration
// order because rows within one k block follow it.
func rowStrategies(rows []harness.AggregateRow) []string {
	seen := make(map[string]struct{}, len(rows))
	var out []string
	for _, row := range rows {
		if _, ok := seen[row.Strategy]; ok {
			continue
		}
		seen[row.Strategy] = struct{}{}
		out = append(out, row.Strategy)
	}
	return out
}

func rowKs(rows []harness.AggregateRow) []int {
	seen := make(map[int]struct{}, len(rows))
	var out []int
	for _, row := range rows {
		if _, ok := seen[row.K]; ok {
			continue
		}
		seen[row.K] = struct{}{}
		out = append(out, row.K)
	}
	return out
}

func newRunID() (string, error) {
	var buf [8]byte
	if _, err := io.ReadFull(rand.Reader, buf[:]); err != nil {
		return "", err
	}
	return fmt.Sprintf("run_%s_%x", time.Now().UTC().Format("20060102T150405Z"), buf), nil
}
