package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

func TestParseSince(t *testing.T) {
	t.Parallel()

	if ts, err := parseSince(" "); err != nil || !ts.IsZero() {
		t.Fatalf("parseSince(empty): ts=%v err=%v", ts, err)
	}

	got, err := parseSince("2026-03-01")
	if err != nil {
		t.Fatalf("parseSince(YYYY-MM-DD): %v", err)
	}
	if got.Format("2006-01-02") != "2026-03-01" {
		t.Fatalf("parseSince(YYYY-MM-DD): got %v", got)
	}

	got, err = parseSince("2026-03-01T00:00:00Z")
	if err != nil {
		t.Fatalf("parseSince(RFC3339): %v", err)
	}
	if got.UTC().Format(time.RFC3339) != "2026-03-01T00:00:00Z" {
		t.Fatalf("parseSince(RFC3339): got %v", got)
	}

	if _, err := parseSince("nope"); err == nil {
		t.Fatalf("expected error for invalid since")
	}
}

func TestFormatTime(t *testing.T) {
	t.Parallel()

	if got := formatTime(time.Time{}); got != "-" {
		t.Fatalf("formatTime(zero): got %q", got)
	}

	ts := time.Date(2026, 3, 1, 1, 2, 3, 0, time.FixedZone("x", 3600))
	if got := formatTime(ts); got != "2026-03-01T00:02:03Z" {
		t.Fatalf("formatTime(non-zero): got %q", got)
	}
}

func TestJoinInts(t *testing.T) {
	t.Parallel()

	if got := joinInts(nil); got != "" {
		t.Fatalf("joinInts(nil): got %q", got)
	}
	if got := joinInts([]int{5, 10}); got != "5,10" {
		t.Fatalf("joinInts: got %q", got)
	}
}

func TestHistoryCommands(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "rag-eval.db")

	stor, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}

	rec, err := app.SaveReport(context.Background(), stor, sampleReport(), map[string]any{"strategies": []string{"semantic", "lexical"}})
	if err != nil {
		_ = stor.Close()
		t.Fatalf("SaveReport: %v", err)
	}
	_ = stor.Close()

	st := &cliState{cfg: &config.Config{Storage: config.StorageConfig{Type: "sqlite", Path: dbPath}}}

	t.Run("list", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)
		cmd.SetContext(context.Background())

		if err := runHistoryList(cmd, st, &historyOptions{limit: 20}); err != nil {
			t.Fatalf("runHistoryList: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "RUN_ID") || !strings.Contains(out, rec.ID) {
			t.Fatalf("unexpected list output: %q", out)
		}
		if !strings.Contains(out, "support") || !strings.Contains(out, "semantic,lexical") {
			t.Fatalf("expected dataset and strategies, got %q", out)
		}
	})

	t.Run("list filtered out", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)
		cmd.SetContext(context.Background())

		if err := runHistoryList(cmd, st, &historyOptions{dataset: "other", limit: 20}); err != nil {
			t.Fatalf("runHistoryList: %v", err)
		}
		if !strings.Contains(buf.String(), "No runs found.") {
			t.Fatalf("expected empty message, got %q", buf.String())
		}
	})

	t.Run("show", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)
		cmd.SetContext(context.Background())

		if err := runHistoryShow(cmd, st, rec.ID); err != nil {
			t.Fatalf("runHistoryShow: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "Run: "+rec.ID) {
			t.Fatalf("expected run header, got %q", out)
		}
		if !strings.Contains(out, "STRATEGY") || !strings.Contains(out, "semantic") {
			t.Fatalf("expected rows table, got %q", out)
		}
		if !strings.Contains(out, "index offline") {
			t.Fatalf("expected failed query line, got %q", out)
		}
	})

	t.Run("show missing", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetContext(context.Background())

		if err := runHistoryShow(cmd, st, "missing"); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Fatalf("expected not found error, got %v", err)
		}
	})

	t.Run("trend", func(t *testing.T) {
		var buf bytes.Buffer
		cmd := &cobra.Command{}
		cmd.SetOut(&buf)
		cmd.SetContext(context.Background())

		if err := runHistoryTrend(cmd, st, &trendOptions{dataset: "support", limit: 20}); err != nil {
			t.Fatalf("runHistoryTrend: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "RUN_ID") || !strings.Contains(out, "lexical") {
			t.Fatalf("unexpected trend output: %q", out)
		}
	})

	t.Run("trend missing dataset", func(t *testing.T) {
		cmd := &cobra.Command{}
		cmd.SetContext(context.Background())

		if err := runHistoryTrend(cmd, st, &trendOptions{}); err == nil || !strings.Contains(err.Error(), "missing --dataset") {
			t.Fatalf("expected missing dataset error, got %v", err)
		}
	})
}

func TestRunHistoryList_NoRuns(t *testing.T) {
	t.Parallel()

	dbPath := filepath.Join(t.TempDir(), "empty.db")
	st := &cliState{cfg: &config.Config{Storage: config.StorageConfig{Type: "sqlite", Path: dbPath}}}

	var buf bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&buf)
	cmd.SetContext(context.Background())

	if err := runHistoryList(cmd, st, &historyOptions{limit: 1}); err != nil {
		t.Fatalf("runHistoryList(empty): %v", err)
	}
	if !strings.Contains(buf.String(), "No runs found.") {
		t.Fatalf("expected empty message, got %q", buf.String())
	}
}
