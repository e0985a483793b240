package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stellarlinkco/rag-eval/internal/config"
	"github.com/stellarlinkco/rag-eval/internal/llm"
)

// cliIntegrationMu serializes tests that mutate package globals, the working
// directory, or os.Args.
var cliIntegrationMu sync.Mutex

type stubProvider struct {
	name         string
	generateJSON string
	selectTools  func(req *llm.Request) []string
}

func (p *stubProvider) Name() string {
	if p.name == "" {
		return "stub"
	}
	return p.name
}

func (p *stubProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, errors.New("stub: nil request")
	}
	prompt := ""
	if len(req.Messages) > 0 {
		prompt = req.Messages[len(req.Messages)-1].Content
	}
	if strings.Contains(prompt, "You are building an evaluation dataset") {
		return stubTextResponse(p.generateJSON), nil
	}
	return stubTextResponse("ok"), nil
}

func (p *stubProvider) CompleteWithTools(_ context.Context, req *llm.Request) (*llm.CallResult, error) {
	if req == nil {
		return nil, errors.New("stub: nil request")
	}
	var names []string
	if p.selectTools != nil {
		names = p.selectTools(req)
	}
	calls := make([]llm.ToolUse, 0, len(names))
	for i, n := range names {
		calls = append(calls, llm.ToolUse{ID: fmt.Sprintf("call_%d", i+1), Name: n})
	}
	return &llm.CallResult{
		ToolCalls:    calls,
		LatencyMs:    1,
		InputTokens:  1,
		OutputTokens: 1,
	}, nil
}

func stubTextResponse(text string) *llm.Response {
	return &llm.Response{
		Content: []llm.ContentBlock{{Type: "text", Text: text}},
		Usage:   llm.Usage{InputTokens: 1, OutputTokens: 1},
	}
}

type evalWorkspace struct {
	dir   string
	runDB string
}

func setupEvalWorkspace(t *testing.T) evalWorkspace {
	t.Helper()

	dir := t.TempDir()

	writeFile(t, filepath.Join(dir, "configs", "config.yaml"), `embedding:
  provider: tfidf
index:
  type: memory
evaluation:
  ks: [5]
  concurrency: 2
  timeout: 5s
  epsilon: 0.01
storage:
  type: sqlite
  path: data/test.db
`)

	writeFile(t, filepath.Join(dir, "datasets", "support.yaml"), `name: support
queries:
  - id: q1
    query: how do I reset my account password
    expected: [doc-passwords]
  - id: q2
    query: where can I export billing invoices
    expected: [doc-billing]
    category: billing
  - id: q3
    query: what is the weather in Berlin today
    expected: [get_weather]
    category: tools
`)

	writeFile(t, filepath.Join(dir, "corpora", "docs.yaml"), `name: docs
documents:
  - id: doc-passwords
    title: Resetting your password
    text: Open account settings and choose reset password to receive a reset email.
  - id: doc-billing
    title: Billing and invoices
    text: The billing page lists invoices you can export as PDF or CSV.
  - id: doc-sso
    title: Single sign-on setup
    text: Administrators enable SSO from the security tab using a SAML identity provider.
`)

	writeFile(t, filepath.Join(dir, "tools", "assistant.yaml"), `name: assistant
tools:
  - name: get_weather
    description: Look up the current weather for a city
    params:
      - name: city
        type: string
        description: City name
        required: true
  - name: search_docs
    description: Search the documentation corpus
    params:
      - name: query
        type: string
        description: Search query
        required: true
`)

	return evalWorkspace{dir: dir, runDB: filepath.Join(dir, "data", "test.db")}
}

func mkdirAll(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	mkdirAll(t, filepath.Dir(path))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func parseSavedRunID(t *testing.T, out string) string {
	t.Helper()
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Saved run ") {
			return strings.TrimSpace(strings.TrimPrefix(line, "Saved run "))
		}
	}
	t.Fatalf("no saved run id in output:\n%s", out)
	return ""
}

func TestCLI_Integration(t *testing.T) {
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

	stub := &stubProvider{
		generateJSON: `{"queries":[` +
			`{"id":"g1","query":"how do I reset a password","expected":["doc-passwords"]},` +
			`{"id":"g2","query":"find my latest invoice","expected":["doc-billing"]}]}`,
	}
	origProvider := defaultProviderFromConfig
	defaultProviderFromConfig = func(*config.Config) (llm.Provider, error) { return stub, nil }
	t.Cleanup(func() { defaultProviderFromConfig = origProvider })

	var tableRunID, baselineID, candidateID string

	t.Run("main_help", func(t *testing.T) {
		oldArgs := os.Args
		os.Args = []string{"rag-eval", "--help"}
		defer func() { os.Args = oldArgs }()
		main()
	})

	t.Run("list", func(t *testing.T) {
		out, err := runCLI(t, "list", "datasets")
		if err != nil {
			t.Fatalf("list datasets: %v", err)
		}
		if !strings.Contains(out, "support") || !strings.Contains(out, "billing,tools") {
			t.Fatalf("list datasets output:\n%s", out)
		}

		out, err = runCLI(t, "list", "corpora")
		if err != nil {
			t.Fatalf("list corpora: %v", err)
		}
		if !strings.Contains(out, "docs") {
			t.Fatalf("list corpora output:\n%s", out)
		}

		out, err = runCLI(t, "list", "tools")
		if err != nil {
			t.Fatalf("list tools: %v", err)
		}
		if !strings.Contains(out, "assistant") {
			t.Fatalf("list tools output:\n%s", out)
		}

		out, err = runCLI(t, "list", "strategies")
		if err != nil {
			t.Fatalf("list strategies: %v", err)
		}
		for _, name := range []string{"semantic", "lexical", "hybrid", "toolselect"} {
			if !strings.Contains(out, name) {
				t.Fatalf("list strategies missing %q:\n%s", name, out)
			}
		}
	})

	t.Run("history_empty", func(t *testing.T) {
		out, err := runCLI(t, "history")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(out, "No runs found.") {
			t.Fatalf("history output:\n%s", out)
		}

		out, err = runCLI(t, "history", "trend", "--dataset", "support")
		if err != nil {
			t.Fatalf("history trend: %v", err)
		}
		if !strings.Contains(out, "No history found.") {
			t.Fatalf("history trend output:\n%s", out)
		}
	})

	t.Run("run_json", func(t *testing.T) {
		out, err := runCLI(t, "run", "--category", "billing", "--output", "json")
		if err != nil {
			t.Fatalf("run json: %v\n%s", err, out)
		}
		var report jsonReport
		if err := json.Unmarshal([]byte(out), &report); err != nil {
			t.Fatalf("unmarshal report: %v\n%s", err, out)
		}
		if report.Dataset != "support" {
			t.Fatalf("dataset = %q, want support", report.Dataset)
		}
		if !report.Passed {
			t.Fatalf("report not passed: %+v", report)
		}
		if report.Cells != 2 || len(report.Rows) != 2 {
			t.Fatalf("cells = %d rows = %d, want 2 and 2", report.Cells, len(report.Rows))
		}
		for _, row := range report.Rows {
			if row.Queries != 1 {
				t.Fatalf("row %s@%d queries = %d, want 1", row.Strategy, row.K, row.Queries)
			}
			if row.Recall != 1 {
				t.Fatalf("row %s@%d recall = %v, want 1", row.Strategy, row.K, row.Recall)
			}
		}
	})

	t.Run("run_table", func(t *testing.T) {
		out, err := runCLI(t, "run")
		if err != nil {
			t.Fatalf("run: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Dataset: support") || !strings.Contains(out, "PASS") {
			t.Fatalf("run output:\n%s", out)
		}
		if !strings.Contains(out, "Summary: dataset=support rows=2 cells=6 failures=0") {
			t.Fatalf("run summary:\n%s", out)
		}
		if !strings.Contains(out, "Warning: dataset support expects 1 IDs absent from the corpus: get_weather") {
			t.Fatalf("missing expected-id warning:\n%s", out)
		}
		tableRunID = parseSavedRunID(t, out)
	})

	t.Run("history_after_run", func(t *testing.T) {
		out, err := runCLI(t, "history")
		if err != nil {
			t.Fatalf("history: %v", err)
		}
		if !strings.Contains(out, tableRunID) || !strings.Contains(out, "support") {
			t.Fatalf("history output missing %s:\n%s", tableRunID, out)
		}

		out, err = runCLI(t, "history", "--since", "2000-01-02")
		if err != nil {
			t.Fatalf("history since: %v", err)
		}
		if !strings.Contains(out, tableRunID) {
			t.Fatalf("history since output:\n%s", out)
		}

		out, err = runCLI(t, "history", "show", tableRunID)
		if err != nil {
			t.Fatalf("history show: %v", err)
		}
		if !strings.Contains(out, "Run: "+tableRunID) || !strings.Contains(out, "semantic") {
			t.Fatalf("history show output:\n%s", out)
		}

		out, err = runCLI(t, "history", "trend", "--dataset", "support")
		if err != nil {
			t.Fatalf("history trend: %v", err)
		}
		if !strings.Contains(out, tableRunID) {
			t.Fatalf("history trend output:\n%s", out)
		}

		if _, err := runCLI(t, "history", "--since", "wat"); err == nil || !strings.Contains(err.Error(), "invalid --since") {
			t.Fatalf("history since error = %v", err)
		}

		if _, err := runCLI(t, "history", "show", "run_missing"); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Fatalf("history show error = %v", err)
		}
	})

	t.Run("run_ci_artifacts", func(t *testing.T) {
		mkdirAll(t, filepath.Join(ws.dir, "gh"))
		ghOut := filepath.Join(ws.dir, "gh", "output.txt")
		ghSummary := filepath.Join(ws.dir, "gh", "summary.md")
		t.Setenv("GITHUB_OUTPUT", ghOut)
		t.Setenv("GITHUB_STEP_SUMMARY", ghSummary)

		out, err := runCLI(t, "run", "--category", "billing", "--ci")
		if err != nil {
			t.Fatalf("run ci: %v\n%s", err, out)
		}
		if !strings.Contains(out, "Summary: dataset=support rows=2 cells=2 failures=0 violations=0") {
			t.Fatalf("github output:\n%s", out)
		}

		b, err := os.ReadFile(filepath.Join("data", "ci-results.json"))
		if err != nil {
			t.Fatalf("read ci results: %v", err)
		}
		var rep ciReport
		if err := json.Unmarshal(b, &rep); err != nil {
			t.Fatalf("unmarshal ci results: %v", err)
		}
		if rep.Failed {
			t.Fatalf("ci report failed: %+v", rep)
		}
		if rep.Dataset != "support" || !strings.HasPrefix(rep.RunID, "run_") {
			t.Fatalf("ci report run: %+v", rep)
		}
		if len(rep.Rows) != 2 {
			t.Fatalf("ci report rows = %d, want 2", len(rep.Rows))
		}

		gh, err := os.ReadFile(ghOut)
		if err != nil {
			t.Fatalf("read github output: %v", err)
		}
		if !strings.Contains(string(gh), "run_id<<EOF") || !strings.Contains(string(gh), "failed<<EOF\nfalse\nEOF") {
			t.Fatalf("github output file:\n%s", gh)
		}

		sum, err := os.ReadFile(ghSummary)
		if err != nil {
			t.Fatalf("read job summary: %v", err)
		}
		if !strings.Contains(string(sum), "## Retrieval Evaluation Results") {
			t.Fatalf("job summary:\n%s", sum)
		}
	})

	t.Run("run_floor_violation", func(t *testing.T) {
		out, err := runCLI(t, "run", "--min-recall", "0.99")
		if !errors.Is(err, errEvalFailed) {
			t.Fatalf("err = %v, want errEvalFailed", err)
		}
		if !strings.Contains(out, "Floor violations:") || !strings.Contains(out, "below 0.99") {
			t.Fatalf("violation output:\n%s", out)
		}
		if !strings.Contains(out, "FAIL") {
			t.Fatalf("missing FAIL status:\n%s", out)
		}
	})

	t.Run("run_toolselect", func(t *testing.T) {
		stub.selectTools = func(req *llm.Request) []string {
			prompt := ""
			if len(req.Messages) > 0 {
				prompt = req.Messages[len(req.Messages)-1].Content
			}
			if strings.Contains(strings.ToLower(prompt), "weather") {
				return []string{"get_weather"}
			}
			return []string{"search_docs"}
		}

		out, err := runCLI(t, "run", "--category", "tools", "--strategies", "toolselect")
		if err != nil {
			t.Fatalf("run toolselect: %v\n%s", err, out)
		}
		if !strings.Contains(out, "toolselect") || !strings.Contains(out, "PASS") {
			t.Fatalf("toolselect output:\n%s", out)
		}
		baselineID = parseSavedRunID(t, out)
	})

	t.Run("breakdown", func(t *testing.T) {
		out, err := runCLI(t, "breakdown", baselineID)
		if err != nil {
			t.Fatalf("breakdown: %v", err)
		}
		if !strings.Contains(out, "ITEM") || !strings.Contains(out, "get_weather") {
			t.Fatalf("breakdown output:\n%s", out)
		}

		if _, err := runCLI(t, "breakdown", tableRunID); err == nil || !strings.Contains(err.Error(), "narrow with") {
			t.Fatalf("ambiguous breakdown error = %v", err)
		}

		out, err = runCLI(t, "breakdown", tableRunID, "--strategy", "semantic", "--k", "5")
		if err != nil {
			t.Fatalf("breakdown semantic: %v", err)
		}
		if !strings.Contains(out, "doc-passwords") || !strings.Contains(out, "get_weather") {
			t.Fatalf("semantic breakdown output:\n%s", out)
		}
	})

	t.Run("compare_regression", func(t *testing.T) {
		stub.selectTools = func(*llm.Request) []string { return []string{"search_docs"} }

		out, err := runCLI(t, "run", "--category", "tools", "--strategies", "toolselect")
		if err != nil {
			t.Fatalf("candidate run: %v\n%s", err, out)
		}
		candidateID = parseSavedRunID(t, out)

		out, err = runCLI(t, "compare", baselineID, candidateID)
		if !errors.Is(err, errRegression) {
			t.Fatalf("compare err = %v, want errRegression", err)
		}
		if !strings.Contains(out, "toolselect@5 recall") || !strings.Contains(out, "Regressions") {
			t.Fatalf("compare output:\n%s", out)
		}

		out, err = runCLI(t, "compare", baselineID, candidateID, "--output", "json")
		if !errors.Is(err, errRegression) {
			t.Fatalf("compare json err = %v, want errRegression", err)
		}
		var cmp jsonCompareResult
		if err := json.Unmarshal([]byte(out), &cmp); err != nil {
			t.Fatalf("unmarshal compare: %v\n%s", err, out)
		}
		if !cmp.Regressed || cmp.BaselineID != baselineID || cmp.CandidateID != candidateID {
			t.Fatalf("compare result: %+v", cmp)
		}

		out, err = runCLI(t, "compare", baselineID, candidateID, "--output", "github")
		if !errors.Is(err, errRegression) {
			t.Fatalf("compare github err = %v, want errRegression", err)
		}
		if !strings.Contains(out, "Summary: baseline=") {
			t.Fatalf("compare github output:\n%s", out)
		}

		out, err = runCLI(t, "compare", baselineID, baselineID)
		if err != nil {
			t.Fatalf("self compare: %v", err)
		}
		if !strings.Contains(out, "PASS") {
			t.Fatalf("self compare output:\n%s", out)
		}

		if _, err := runCLI(t, "compare", "run_missing_a", "run_missing_b"); err == nil || !strings.Contains(err.Error(), "not found") {
			t.Fatalf("missing compare error = %v", err)
		}
	})

	t.Run("leaderboard", func(t *testing.T) {
		if _, err := runCLI(t, "leaderboard"); err == nil || !strings.Contains(err.Error(), "missing --dataset") {
			t.Fatalf("leaderboard error = %v", err)
		}

		out, err := runCLI(t, "leaderboard", "--dataset", "support")
		if err != nil {
			t.Fatalf("leaderboard: %v", err)
		}
		if !strings.Contains(out, "RANK") || !strings.Contains(out, "toolselect") {
			t.Fatalf("leaderboard output:\n%s", out)
		}

		out, err = runCLI(t, "leaderboard", "--dataset", "support", "--format", "json")
		if err != nil {
			t.Fatalf("leaderboard json: %v", err)
		}
		if !strings.Contains(out, `"Strategy"`) {
			t.Fatalf("leaderboard json output:\n%s", out)
		}

		if _, err := runCLI(t, "leaderboard", "--dataset", "support", "--format", "csv"); err == nil || !strings.Contains(err.Error(), "invalid --format") {
			t.Fatalf("leaderboard format error = %v", err)
		}
	})

	t.Run("tools_render", func(t *testing.T) {
		out, err := runCLI(t, "tools")
		if err != nil {
			t.Fatalf("tools: %v", err)
		}
		if !strings.Contains(out, "get_weather") || !strings.Contains(out, `"type": "function"`) {
			t.Fatalf("tools json output:\n%s", out)
		}

		out, err = runCLI(t, "tools", "--output", "table")
		if err != nil {
			t.Fatalf("tools table: %v", err)
		}
		if !strings.Contains(out, "Catalog: assistant") || !strings.Contains(out, "TOOL") {
			t.Fatalf("tools table output:\n%s", out)
		}

		if _, err := runCLI(t, "tools", "--output", "csv"); err == nil || !strings.Contains(err.Error(), "not supported") {
			t.Fatalf("tools csv error = %v", err)
		}
	})

	t.Run("ingest", func(t *testing.T) {
		out, err := runCLI(t, "ingest")
		if err != nil {
			t.Fatalf("ingest: %v", err)
		}
		if !strings.Contains(out, "Ingested corpus docs: documents=3 index=memory") {
			t.Fatalf("ingest output:\n%s", out)
		}
		if !strings.Contains(out, "Note:") {
			t.Fatalf("ingest note missing:\n%s", out)
		}
	})

	t.Run("generate", func(t *testing.T) {
		out, err := runCLI(t, "generate")
		if err != nil {
			t.Fatalf("generate: %v\n%s", err, out)
		}
		if !strings.Contains(out, "docs-synthetic") || !strings.Contains(out, "g1") {
			t.Fatalf("generate output:\n%s", out)
		}

		outPath := filepath.Join("out", "gen.yaml")
		out, err = runCLI(t, "generate", "--out", outPath, "--name", "synthetic-docs")
		if err != nil {
			t.Fatalf("generate out: %v", err)
		}
		if !strings.Contains(out, "Generated 2 queries for corpus docs") || !strings.Contains(out, "Wrote") {
			t.Fatalf("generate out output:\n%s", out)
		}
		b, err := os.ReadFile(outPath)
		if err != nil {
			t.Fatalf("read generated dataset: %v", err)
		}
		if !strings.Contains(string(b), "synthetic-docs") || !strings.Contains(string(b), "category: synthetic") {
			t.Fatalf("generated dataset:\n%s", b)
		}

		if _, err := runCLI(t, "generate", "--out", "gen.txt"); err == nil || !strings.Contains(err.Error(), "unsupported output extension") {
			t.Fatalf("generate extension error = %v", err)
		}
	})

	t.Run("generate_provider_error", func(t *testing.T) {
		orig := defaultProviderFromConfig
		defaultProviderFromConfig = func(*config.Config) (llm.Provider, error) {
			return nil, errors.New("boom")
		}
		defer func() { defaultProviderFromConfig = orig }()

		if _, err := runCLI(t, "generate"); err == nil || !strings.Contains(err.Error(), "boom") {
			t.Fatalf("generate error = %v", err)
		}
	})

	t.Run("run_validation_errors", func(t *testing.T) {
		cases := []struct {
			name string
			args []string
			want string
		}{
			{"bad_output", []string{"run", "--output", "wat"}, "invalid --output"},
			{"bad_k", []string{"run", "--k", "2,x"}, "is not an integer"},
			{"zero_k", []string{"run", "--k", "0"}, "depths must be positive"},
			{"bad_floor", []string{"run", "--min-recall", "1.5"}, "floors are rates"},
			{"unknown_dataset", []string{"run", "--dataset", "nope"}, "unknown dataset"},
			{"unknown_strategy", []string{"run", "--strategies", "wat"}, "unknown strategy"},
			{"empty_category", []string{"run", "--category", "nope"}, "has no queries in category"},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				_, err := runCLI(t, tc.args...)
				if err == nil || !strings.Contains(err.Error(), tc.want) {
					t.Fatalf("err = %v, want substring %q", err, tc.want)
				}
			})
		}
	})

	t.Run("missing_config", func(t *testing.T) {
		if _, err := runCLI(t, "--config", filepath.Join("configs", "missing.yaml"), "run"); err == nil || !strings.Contains(err.Error(), "config: read") {
			t.Fatalf("missing config error = %v", err)
		}
	})
}

func TestMain_ErrorPaths(t *testing.T) {
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

	stub := &stubProvider{
		selectTools: func(*llm.Request) []string { return []string{"get_weather"} },
	}
	origProvider := defaultProviderFromConfig
	defaultProviderFromConfig = func(*config.Config) (llm.Provider, error) { return stub, nil }
	t.Cleanup(func() { defaultProviderFromConfig = origProvider })

	var exits []int
	oldExit := osExit
	osExit = func(code int) { exits = append(exits, code) }
	t.Cleanup(func() { osExit = oldExit })

	var stderr bytes.Buffer
	oldStderr := stderrWriter
	stderrWriter = &stderr
	t.Cleanup(func() { stderrWriter = oldStderr })

	oldArgs := os.Args
	t.Cleanup(func() { os.Args = oldArgs })

	// Non-sentinel errors print to stderr before exiting.
	exits = nil
	stderr.Reset()
	os.Args = []string{"rag-eval", "run", "--dataset", "nope"}
	main()
	if len(exits) != 1 || exits[0] != 1 {
		t.Fatalf("exits = %v, want [1]", exits)
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected error on stderr")
	}

	// Evaluation failures exit 1 without an extra stderr line.
	exits = nil
	stderr.Reset()
	os.Args = []string{"rag-eval", "run", "--min-recall", "0.99"}
	main()
	if len(exits) != 1 || exits[0] != 1 {
		t.Fatalf("exits = %v, want [1]", exits)
	}
	if stderr.Len() != 0 {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}

	// Regressions exit 1 without an extra stderr line.
	out, err := runCLI(t, "run", "--category", "tools", "--strategies", "toolselect")
	if err != nil {
		t.Fatalf("baseline run: %v\n%s", err, out)
	}
	baseID := parseSavedRunID(t, out)

	stub.selectTools = func(*llm.Request) []string { return []string{"search_docs"} }
	out, err = runCLI(t, "run", "--category", "tools", "--strategies", "toolselect")
	if err != nil {
		t.Fatalf("candidate run: %v\n%s", err, out)
	}
	candID := parseSavedRunID(t, out)

	exits = nil
	stderr.Reset()
	os.Args = []string{"rag-eval", "compare", baseID, candID}
	main()
	if len(exits) != 1 || exits[0] != 1 {
		t.Fatalf("exits = %v, want [1]", exits)
	}
	if stderr.Len() != 0 {
		t.Fatalf("unexpected stderr: %s", stderr.String())
	}
}
