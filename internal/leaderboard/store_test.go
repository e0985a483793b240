package leaderboard

import (
	"context"
	"testing"
	"time"

	"github.com/stellarlinkco/rag-eval/internal/harness"
)

func TestStore_SaveAndGetLeaderboard(t *testing.T) {
	st, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	e1 := &Entry{
		Strategy:   "lexical",
		Dataset:    "support",
		K:          5,
		Precision:  0.60,
		Recall:     0.70,
		MRR:        0.55,
		AvgLatency: 12,
		RunID:      "run_a",
		EvalDate:   time.UnixMilli(1000).UTC(),
	}
	e2 := &Entry{
		Strategy:   "hybrid",
		Dataset:    "support",
		K:          5,
		Precision:  0.80,
		Recall:     0.90,
		MRR:        0.85,
		AvgLatency: 30,
		RunID:      "run_a",
		EvalDate:   time.UnixMilli(2000).UTC(),
	}

	if err := st.Save(ctx, e1); err != nil {
		t.Fatalf("Save e1: %v", err)
	}
	if err := st.Save(ctx, e2); err != nil {
		t.Fatalf("Save e2: %v", err)
	}
	if e1.ID == 0 || e2.ID == 0 {
		t.Fatalf("expected IDs to be set (got e1=%d e2=%d)", e1.ID, e2.ID)
	}

	got, err := st.GetLeaderboard(ctx, "support", 5, 10)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(entries): got %d want %d", len(got), 2)
	}
	if got[0].Strategy != "hybrid" {
		t.Fatalf("rank1 strategy: got %q want %q", got[0].Strategy, "hybrid")
	}
	if got[1].Strategy != "lexical" {
		t.Fatalf("rank2 strategy: got %q want %q", got[1].Strategy, "lexical")
	}
	if got[0].EvalDate != time.UnixMilli(2000).UTC() {
		t.Fatalf("eval date: got %v", got[0].EvalDate)
	}
}

func TestStore_GetLeaderboard_FiltersDepth(t *testing.T) {
	st, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	for _, e := range []*Entry{
		{Strategy: "semantic", Dataset: "support", K: 5, Recall: 0.80},
		{Strategy: "semantic", Dataset: "support", K: 10, Recall: 0.95},
		{Strategy: "semantic", Dataset: "billing", K: 5, Recall: 0.50},
	} {
		if err := st.Save(ctx, e); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	got, err := st.GetLeaderboard(ctx, "support", 10, 0)
	if err != nil {
		t.Fatalf("GetLeaderboard: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(entries): got %d want %d", len(got), 1)
	}
	if got[0].K != 10 || got[0].Recall != 0.95 {
		t.Fatalf("entry: got k=%d recall=%.2f", got[0].K, got[0].Recall)
	}

	all, err := st.GetLeaderboard(ctx, "support", 0, 0)
	if err != nil {
		t.Fatalf("GetLeaderboard all depths: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len(all): got %d want %d", len(all), 2)
	}
}

func TestStore_GetStrategyHistory_Order(t *testing.T) {
	st, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Save(ctx, &Entry{
		Strategy: "semantic",
		Dataset:  "support",
		K:        5,
		Recall:   0.20,
		EvalDate: time.UnixMilli(1000).UTC(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := st.Save(ctx, &Entry{
		Strategy: "semantic",
		Dataset:  "support",
		K:        5,
		Recall:   0.90,
		EvalDate: time.UnixMilli(2000).UTC(),
	}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := st.GetStrategyHistory(ctx, "semantic", "support")
	if err != nil {
		t.Fatalf("GetStrategyHistory: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(history): got %d want %d", len(got), 2)
	}
	if got[0].Recall != 0.90 {
		t.Fatalf("history[0].Recall: got %.2f want %.2f", got[0].Recall, 0.90)
	}
	if got[1].Recall != 0.20 {
		t.Fatalf("history[1].Recall: got %.2f want %.2f", got[1].Recall, 0.20)
	}
}

func TestStore_SaveValidation(t *testing.T) {
	st, err := NewStore(":memory:")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.Save(ctx, &Entry{Dataset: "support", K: 5}); err == nil {
		t.Fatalf("expected error for missing strategy")
	}
	if err := st.Save(ctx, &Entry{Strategy: "semantic", Dataset: "support"}); err == nil {
		t.Fatalf("expected error for k=0")
	}
	if err := st.Save(ctx, nil); err == nil {
		t.Fatalf("expected error for nil entry")
	}
}

func TestFromReport(t *testing.T) {
	finished := time.UnixMilli(5000).UTC()
	report := &harness.Report{
		Dataset:    "support",
		FinishedAt: finished,
		Rows: []harness.AggregateRow{
			{Strategy: "semantic", K: 5, Precision: 0.8, Recall: 0.9, MRR: 0.7, Queries: 2},
			{Strategy: "lexical", K: 5, Precision: 0.4, Recall: 0.5, MRR: 0.3, Queries: 2, Failures: 1},
		},
		Records: []harness.MetricRecord{
			{Strategy: "semantic", QueryID: "q1", K: 5, LatencyMs: 10},
			{Strategy: "semantic", QueryID: "q2", K: 5, LatencyMs: 30},
			{Strategy: "lexical", QueryID: "q1", K: 5, LatencyMs: 4},
			{Strategy: "lexical", QueryID: "q2", K: 5, LatencyMs: 5, Err: "index offline"},
		},
	}

	entries := FromReport(report, " run_x ")
	if len(entries) != 2 {
		t.Fatalf("len(entries): got %d want %d", len(entries), 2)
	}

	sem := entries[0]
	if sem.Strategy != "semantic" || sem.Dataset != "support" || sem.K != 5 {
		t.Fatalf("entry identity: got %+v", sem)
	}
	if sem.AvgLatency != 20 {
		t.Fatalf("avg latency: got %d want %d", sem.AvgLatency, 20)
	}
	if sem.RunID != "run_x" {
		t.Fatalf("run id: got %q want %q", sem.RunID, "run_x")
	}
	if sem.EvalDate != finished {
		t.Fatalf("eval date: got %v want %v", sem.EvalDate, finished)
	}
	if entries[1].AvgLatency != 4 {
		t.Fatalf("lexical avg latency: got %d want %d", entries[1].AvgLatency, 4)
	}

	if got := FromReport(nil, "run_x"); got != nil {
		t.Fatalf("nil report: got %v want nil", got)
	}
}
