package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/diagnose"
	"github.com/stellarlinkco/rag-eval/internal/llm"
)

// advisorStub answers tool selection like stubProvider but returns canned
// advisor JSON for plain completions.
type advisorStub struct {
	stubProvider
	adviceJSON string
}

func (p *advisorStub) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, context.Canceled
	}
	return stubTextResponse(p.adviceJSON), nil
}

func TestCLI_Diagnose(t *testing.T) {
	cliIntegrationMu.Lock()
	defer cliIntegrationMu.Unlock()

	t.Setenv("GITHUB_ACTIONS", "")
	t.Setenv("GITHUB_OUTPUT", "")
	t.Setenv("GITHUB_STEP_SUMMARY", "")
	t.Setenv("RAG_EVAL_DB", "")

	ws := setupEvalWorkspace(t)

	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(ws.dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(oldWD) })

	stub := &advisorStub{
		adviceJSON: `{"root_causes":["the agent never picks the weather tool"],` +
			`"suggestions":[{"id":"S1","type":"fix_labels","description":"Add weather phrasing examples to the tool description","impact":"high","priority":1}]}`,
	}
	stub.selectTools = func(*llm.Request) []string { return []string{"search_docs"} }

	origProvider := defaultProviderFromConfig
	defaultProviderFromConfig = func(*config.Config) (llm.Provider, error) { return stub, nil }
	t.Cleanup(func() { defaultProviderFromConfig = origProvider })

	out, err := runCLI(t, "run", "--category", "tools", "--strategies", "toolselect")
	if err != nil {
		t.Fatalf("seed run: %v\n%s", err, out)
	}
	runID := parseSavedRunID(t, out)

	t.Run("table", func(t *testing.T) {
		out, err := runCLI(t, "diagnose", runID)
		if err != nil {
			t.Fatalf("diagnose: %v", err)
		}
		if !strings.Contains(out, "Run: "+runID) {
			t.Fatalf("diagnose header:\n%s", out)
		}
		if !strings.Contains(out, "Queries with zero recall everywhere") {
			t.Fatalf("missing zero recall finding:\n%s", out)
		}
		if !strings.Contains(out, "Expected items never retrieved") || !strings.Contains(out, "get_weather") {
			t.Fatalf("missing never-retrieved finding:\n%s", out)
		}
		if strings.Contains(out, "Suggestions:") {
			t.Fatalf("suggestions without --suggest:\n%s", out)
		}
	})

	t.Run("json", func(t *testing.T) {
		out, err := runCLI(t, "diagnose", runID, "--output", "json")
		if err != nil {
			t.Fatalf("diagnose json: %v", err)
		}
		var result diagnose.Result
		if err := json.Unmarshal([]byte(out), &result); err != nil {
			t.Fatalf("unmarshal: %v\n%s", err, out)
		}
		patterns := make(map[string]bool, len(result.Findings))
		for _, f := range result.Findings {
			patterns[f.Pattern] = true
		}
		if !patterns["zero_recall_queries"] || !patterns["never_retrieved_items"] {
			t.Fatalf("findings = %+v", result.Findings)
		}
		if len(result.Suggestions) != 0 {
			t.Fatalf("suggestions = %+v", result.Suggestions)
		}
	})

	t.Run("suggest", func(t *testing.T) {
		out, err := runCLI(t, "diagnose", runID, "--suggest")
		if err != nil {
			t.Fatalf("diagnose suggest: %v", err)
		}
		if !strings.Contains(out, "Root causes:") || !strings.Contains(out, "never picks the weather tool") {
			t.Fatalf("root causes:\n%s", out)
		}
		if !strings.Contains(out, "[fix_labels]") || !strings.Contains(out, "(impact: high)") {
			t.Fatalf("suggestions:\n%s", out)
		}
	})

	t.Run("errors", func(t *testing.T) {
		if _, err := runCLI(t, "diagnose", "run_missing"); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Fatalf("missing run error = %v", err)
		}
		if _, err := runCLI(t, "diagnose", runID, "--output", "csv"); err == nil || !strings.Contains(err.Error(), "not supported") {
			t.Fatalf("csv error = %v", err)
		}
	})
}
