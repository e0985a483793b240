package harness

import (
	"time"

	"github.com/stellarlinkco/rag-eval/internal/metrics"
)

// MetricRecord is one scored evaluation cell: a single strategy answering a
// single query at a single depth. A cell that failed carries the error text
// and zero scores.
type MetricRecord struct {
	Strategy  string   `json:"strategy"`
	QueryID   string   `json:"query_id"`
	K         int      `json:"k"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	MRR       float64  `json:"reciprocal_rank"`
	Result    []string `json:"result,omitempty"`
	Expected  []string `json:"expected,omitempty"`
	LatencyMs int64    `json:"latency_ms"`
	Err       string   `json:"error,omitempty"`
}

// AggregateRow is the mean over all query cells of one (strategy, k) pair.
// Failed cells count toward the mean as zeros and are tallied in Failures.
type AggregateRow struct {
	Strategy  string  `json:"strategy"`
	K         int     `json:"k"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
	Queries   int     `json:"queries"`
	Failures  int     `json:"failures"`
}

// Report is the result of one evaluation run. Rows are ordered by ascending
// k and, within a k, by strategy registration order.
type Report struct {
	Dataset    string         `json:"dataset"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Rows       []AggregateRow `json:"rows"`
	Records    []MetricRecord `json:"records"`
}

// Row returns the aggregate for one (strategy, k) pair, or false when the
// report has no such row.
func (r *Report) Row(strategyName string, k int) (AggregateRow, bool) {
	if r == nil {
		return AggregateRow{}, false
	}
	for _, row := range r.Rows {
		if row.Strategy == strategyName && row.K == k {
			return row, true
		}
	}
	return AggregateRow{}, false
}

// Outcomes collects the per-query cells of one (strategy, k) pair for
// item-level breakdown. Failed cells contribute their expected items with an
// empty result, so every expectation the strategy missed still counts.
func (r *Report) Outcomes(strategyName string, k int) []metrics.Outcome {
	if r == nil {
		return nil
	}
	var out []metrics.Outcome
	for i := range r.Records {
		rec := &r.Records[i]
		if rec.Strategy != strategyName || rec.K != k {
			continue
		}
		out = append(out, metrics.Outcome{Result: rec.Result, Expected: rec.Expected})
	}
	return out
}

func aggregate(records []MetricRecord, ks []int, names []string) []AggregateRow {
	type key struct {
		strategy string
		k        int
	}
	sums := make(map[key]*AggregateRow, len(ks)*len(names))
	for i := range records {
		rec := &records[i]
		kk := key{strategy: rec.Strategy, k: rec.K}
		row, ok := sums[kk]
		if !ok {
			row = &AggregateRow{Strategy: rec.Strategy, K: rec.K}
			sums[kk] = row
		}
		row.Precision += rec.Precision
		row.Recall += rec.Recall
		row.MRR += rec.MRR
		row.Queries++
		if rec.Err != "" {
			row.Failures++
		}
	}

	rows := make([]AggregateRow, 0, len(ks)*len(names))
	for _, k := range ks {
		for _, name := range names {
			row, ok := sums[key{strategy: name, k: k}]
			if !ok {
				continue
			}
			n := float64(row.Queries)
			row.Precision /= n
			row.Recall /= n
			row.MRR /= n
			rows = append(rows, *row)
		}
	}
	return rows
}
