package store

import (
	"context"
	"time"
)

// RunWriter defines persistence for evaluation runs and their rows.
type RunWriter interface {
	SaveRun(ctx context.Context, run *RunRecord) error
	SaveRows(ctx context.Context, rows []*RowRecord) error
}

// RunReader defines read access to stored runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]*RunRecord, error)
	GetRows(ctx context.Context, runID string) ([]*RowRecord, error)
}

// Analytics defines query helpers over run history.
type Analytics interface {
	History(ctx context.Context, filter HistoryFilter) ([]*HistoryPoint, error)
	CompareRuns(ctx context.Context, baselineID, candidateID string, epsilon float64) (*RunComparison, error)
}

// Store defines persistence for evaluation history.
type Store interface {
	RunWriter
	RunReader
	Analytics
	Close() error
}

// RunRecord stores one evaluation run summary. Strategies keeps registration
// order and Ks the ascending depths, so stored rows replay in report order.
type RunRecord struct {
	ID         string
	Dataset    string
	StartedAt  time.Time
	FinishedAt time.Time
	Strategies []string
	Ks         []int
	Config     map[string]any // serialized run configuration
}

// RowRecord stores the aggregate for one (strategy, k) pair of a run, plus
// the per-query cells behind it (JSON serialized).
type RowRecord struct {
	RunID     string
	Strategy  string
	K         int
	Precision float64
	Recall    float64
	MRR       float64
	Queries   int
	Failures  int
	Records   []QueryRecord
}

// QueryRecord is one stored per-query cell.
type QueryRecord struct {
	QueryID   string   `json:"query_id"`
	Precision float64  `json:"precision"`
	Recall    float64  `json:"recall"`
	MRR       float64  `json:"reciprocal_rank"`
	Result    []string `json:"result,omitempty"`
	Expected  []string `json:"expected,omitempty"`
	LatencyMs int64    `json:"latency_ms"`
	Error     string   `json:"error,omitempty"`
}

// RunFilter filters run listings.
type RunFilter struct {
	Dataset  string
	Strategy string
	Since    time.Time
	Until    time.Time
	Limit    int
}

// HistoryFilter selects the metric trend of one dataset. Strategy and K
// narrow the rows when set.
type HistoryFilter struct {
	Dataset  string
	Strategy string
	K        int
	Limit    int
}

// HistoryPoint is one historical aggregate row.
type HistoryPoint struct {
	RunID      string
	Dataset    string
	FinishedAt time.Time
	Strategy   string
	K          int
	Precision  float64
	Recall     float64
	MRR        float64
}

// RunComparison summarizes metric movement between two stored runs. Deltas
// cover the (strategy, k) pairs both runs share; Regressions and Improvements
// name "strategy@k metric" keys that moved by more than epsilon.
type RunComparison struct {
	Baseline      *RunRecord
	Candidate     *RunRecord
	BaselineRows  []*RowRecord
	CandidateRows []*RowRecord
	Deltas        []RowDelta
	Regressions   []string
	Improvements  []string
}

// RowDelta is candidate minus baseline for one shared (strategy, k) pair.
type RowDelta struct {
	Strategy  string
	K         int
	Precision float64
	Recall    float64
	MRR       float64
}
