package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/toolspec"
)

func setupAPITestWorkspace(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	for _, sub := range []string{"datasets", "corpora", "tools"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			t.Fatalf("MkdirAll %s: %v", sub, err)
		}
	}

	datasetPayload := []byte(`name: support
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
	if err := os.WriteFile(filepath.Join(dir, "datasets", "support.yaml"), datasetPayload, 0o644); err != nil {
		t.Fatalf("WriteFile dataset: %v", err)
	}

	corpusPayload := []byte(`name: docs
documents:
  - id: doc-passwords
    title: Resetting your password
    text: Use the account settings page to reset your password and recover access.
  - id: doc-billing
    title: Billing and invoices
    text: Export billing invoices from the billing dashboard as PDF files.
  - id: doc-sso
    title: Single sign on
    text: Configure SAML single sign on for your organization.
`)
	if err := os.WriteFile(filepath.Join(dir, "corpora", "docs.yaml"), corpusPayload, 0o644); err != nil {
		t.Fatalf("WriteFile corpus: %v", err)
	}

	catalogPayload := []byte(`name: assistant
tools:
  - name: get_weather
    description: Look up the current weather for a city
    params:
      - name: city
        type: string
        required: true
  - name: search_docs
    description: Search the documentation corpus
    params:
      - name: query
        type: string
        required: true
`)
	if err := os.WriteFile(filepath.Join(dir, "tools", "assistant.yaml"), catalogPayload, 0o644); err != nil {
		t.Fatalf("WriteFile catalog: %v", err)
	}

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
}

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("RAG_EVAL_API_KEY", "")
	t.Setenv("RAG_EVAL_DISABLE_AUTH", "true")

	r := gin.New()
	s := &Server{router: r}
	if err := s.registerRoutes(); err != nil {
		t.Fatalf("registerRoutes: %v", err)
	}
	return r
}

func newTestRouterForServer(t *testing.T, s *Server) *gin.Engine {
	t.Helper()

	gin.SetMode(gin.TestMode)
	t.Setenv("RAG_EVAL_API_KEY", "")
	t.Setenv("RAG_EVAL_DISABLE_AUTH", "true")

	if s.router == nil {
		s.router = gin.New()
	}
	if err := s.registerRoutes(); err != nil {
		t.Fatalf("registerRoutes: %v", err)
	}
	return s.router
}

func TestHandlers_Health(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var body map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if body["status"] != "ok" {
		t.Fatalf("status field: got %v want %q", body["status"], "ok")
	}
}

func TestHandlers_ListDatasets(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var out []datasetSummary
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(datasets): got %d want %d", len(out), 1)
	}
	if out[0].Name != "support" {
		t.Fatalf("dataset[0].Name: got %q want %q", out[0].Name, "support")
	}
	if out[0].Queries != 3 {
		t.Fatalf("dataset[0].Queries: got %d want %d", out[0].Queries, 3)
	}
	if len(out[0].Categories) != 2 || out[0].Categories[0] != "billing" || out[0].Categories[1] != "tools" {
		t.Fatalf("dataset[0].Categories: got %v want [billing tools]", out[0].Categories)
	}
}

func TestHandlers_GetDataset(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/support", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var out dataset.Dataset
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != "support" {
		t.Fatalf("Name: got %q want %q", out.Name, "support")
	}
	if len(out.Queries) != 3 {
		t.Fatalf("len(Queries): got %d want %d", len(out.Queries), 3)
	}
	if out.Queries[0].ID != "q1" {
		t.Fatalf("Queries[0].ID: got %q want %q", out.Queries[0].ID, "q1")
	}
}

func TestHandlers_GetDataset_NotFound(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandlers_GetDataset_MissingName(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/datasets/%20", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestHandlers_ListCorpora(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/corpora", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var out []corpusSummary
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(corpora): got %d want %d", len(out), 1)
	}
	if out[0].Name != "docs" || out[0].Documents != 3 {
		t.Fatalf("corpus[0]: got %+v want {docs 3}", out[0])
	}
}

func TestHandlers_GetCorpus(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/corpora/docs", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var out dataset.Corpus
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != "docs" {
		t.Fatalf("Name: got %q want %q", out.Name, "docs")
	}
	if len(out.Documents) != 3 {
		t.Fatalf("len(Documents): got %d want %d", len(out.Documents), 3)
	}
}

func TestHandlers_GetCorpus_NotFound(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/corpora/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandlers_ListToolCatalogs(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var out []catalogSummary
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(catalogs): got %d want %d", len(out), 1)
	}
	if out[0].Name != "assistant" || out[0].Tools != 2 {
		t.Fatalf("catalog[0]: got %+v want {assistant 2}", out[0])
	}
}

func TestHandlers_GetToolCatalog(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tools/assistant", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusOK)
	}

	var out toolspec.Catalog
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if out.Name != "assistant" {
		t.Fatalf("Name: got %q want %q", out.Name, "assistant")
	}
	if len(out.Tools) != 2 || out.Tools[0].Name != "get_weather" {
		t.Fatalf("Tools: got %+v want get_weather first", out.Tools)
	}
}

func TestHandlers_GetToolCatalog_NotFound(t *testing.T) {
	setupAPITestWorkspace(t)
	r := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/tools/nope", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status: got %d want %d", rec.Code, http.StatusNotFound)
	}
}

func TestParseLimitParam(t *testing.T) {
	tests := []struct {
		raw      string
		fallback int
		want     int
		wantErr  bool
	}{
		{raw: "", fallback: 20, want: 20},
		{raw: "  ", fallback: 5, want: 5},
		{raw: "7", fallback: 20, want: 7},
		{raw: "wat", fallback: 20, wantErr: true},
		{raw: "0", fallback: 20, wantErr: true},
		{raw: "-3", fallback: 20, wantErr: true},
	}

	for _, tc := range tests {
		got, err := parseLimitParam(tc.raw, tc.fallback)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parseLimitParam(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseLimitParam(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parseLimitParam(%q): got %d want %d", tc.raw, got, tc.want)
		}
	}
}

func TestParseTimeParam(t *testing.T) {
	got, err := parseTimeParam("")
	if err != nil {
		t.Fatalf("parseTimeParam(empty): %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("parseTimeParam(empty): got %v want zero", got)
	}

	got, err = parseTimeParam("2026-03-01")
	if err != nil {
		t.Fatalf("parseTimeParam(date): %v", err)
	}
	want := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("parseTimeParam(date): got %v want %v", got, want)
	}

	if _, err := parseTimeParam("2026-03-01T10:00:00Z"); err != nil {
		t.Fatalf("parseTimeParam(rfc3339): %v", err)
	}

	if _, err := parseTimeParam("yesterday"); err == nil {
		t.Fatalf("parseTimeParam(invalid): expected error")
	}
}

func TestParsePositiveIntParam(t *testing.T) {
	tests := []struct {
		raw     string
		want    int
		wantErr bool
	}{
		{raw: "", want: 0},
		{raw: " 5 ", want: 5},
		{raw: "0", wantErr: true},
		{raw: "-1", wantErr: true},
		{raw: "wat", wantErr: true},
	}

	for _, tc := range tests {
		got, err := parsePositiveIntParam(tc.raw, "k")
		if tc.wantErr {
			if err == nil {
				t.Fatalf("parsePositiveIntParam(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parsePositiveIntParam(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("parsePositiveIntParam(%q): got %d want %d", tc.raw, got, tc.want)
		}
	}
}
