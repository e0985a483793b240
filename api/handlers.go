package api

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stellarlinkco/rag-eval/internal/app"
	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/harness"
	"github.com/stellarlinkco/rag-eval/internal/leaderboard"
	"github.com/stellarlinkco/rag-eval/internal/metrics"
	"github.com/stellarlinkco/rag-eval/internal/store"
	"github.com/stellarlinkco/rag-eval/internal/toolspec"
)

type runRequest struct {
	Dataset     string   `json:"dataset"`
	Corpus      string   `json:"corpus"`
	Tools       string   `json:"tools"`
	Strategies  []string `json:"strategies"`
	Ks          []int    `json:"ks,omitempty"`
	Category    string   `json:"category"`
	MinRecall   *float64 `json:"min_recall,omitempty"`
	MinMRR      *float64 `json:"min_mrr,omitempty"`
	Concurrency *int     `json:"concurrency,omitempty"`
}

type compareRequest struct {
	Baseline  string   `json:"baseline"`
	Candidate string   `json:"candidate"`
	Epsilon   *float64 `json:"epsilon,omitempty"`
}

type datasetSummary struct {
	Name       string   `json:"name"`
	Queries    int      `json:"queries"`
	Categories []string `json:"categories,omitempty"`
}

type corpusSummary struct {
	Name      string `json:"name"`
	Documents int    `json:"documents"`
}

type catalogSummary struct {
	Name  string `json:"name"`
	Tools int    `json:"tools"`
}

type runView struct {
	ID         string         `json:"id"`
	Dataset    string         `json:"dataset"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Strategies []string       `json:"strategies"`
	Ks         []int          `json:"ks"`
	Config     map[string]any `json:"config,omitempty"`
}

type rowView struct {
	Strategy  string              `json:"strategy"`
	K         int                 `json:"k"`
	Precision float64             `json:"precision"`
	Recall    float64             `json:"recall"`
	MRR       float64             `json:"mrr"`
	Queries   int                 `json:"queries"`
	Failures  int                 `json:"failures"`
	Records   []store.QueryRecord `json:"records,omitempty"`
}

type historyView struct {
	RunID      string    `json:"run_id"`
	Dataset    string    `json:"dataset"`
	FinishedAt time.Time `json:"finished_at"`
	Strategy   string    `json:"strategy"`
	K          int       `json:"k"`
	Precision  float64   `json:"precision"`
	Recall     float64   `json:"recall"`
	MRR        float64   `json:"mrr"`
}

type deltaView struct {
	Strategy  string  `json:"strategy"`
	K         int     `json:"k"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	MRR       float64 `json:"mrr"`
}

type compareView struct {
	Baseline     *runView    `json:"baseline"`
	Candidate    *runView    `json:"candidate"`
	Deltas       []deltaView `json:"deltas"`
	Regressions  []string    `json:"regressions,omitempty"`
	Improvements []string    `json:"improvements,omitempty"`
	Regressed    bool        `json:"regressed"`
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleListDatasets(c *gin.Context) {
	dir, _, _ := s.fixturePaths()
	datasets, err := app.LoadDatasets(dir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]datasetSummary, 0, len(datasets))
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		summaries = append(summaries, datasetSummary{
			Name:       ds.Name,
			Queries:    len(ds.Queries),
			Categories: datasetCategories(ds),
		})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].Name) < strings.ToLower(summaries[j].Name)
	})

	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetDataset(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing dataset name"))
		return
	}

	dir, _, _ := s.fixturePaths()
	datasets, err := app.LoadDatasets(dir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	ds := findDatasetByName(datasets, name)
	if ds == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("dataset %q not found", name))
		return
	}

	c.JSON(http.StatusOK, ds)
}

func (s *Server) handleListCorpora(c *gin.Context) {
	_, dir, _ := s.fixturePaths()
	corpora, err := app.LoadCorpora(dir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]corpusSummary, 0, len(corpora))
	for _, corpus := range corpora {
		if corpus == nil {
			continue
		}
		summaries = append(summaries, corpusSummary{Name: corpus.Name, Documents: len(corpus.Documents)})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].Name) < strings.ToLower(summaries[j].Name)
	})

	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetCorpus(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing corpus name"))
		return
	}

	_, dir, _ := s.fixturePaths()
	corpora, err := app.LoadCorpora(dir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	corpus := findCorpusByName(corpora, name)
	if corpus == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("corpus %q not found", name))
		return
	}

	c.JSON(http.StatusOK, corpus)
}

func (s *Server) handleListToolCatalogs(c *gin.Context) {
	_, _, dir := s.fixturePaths()
	catalogs, err := app.LoadCatalogs(dir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	summaries := make([]catalogSummary, 0, len(catalogs))
	for _, cat := range catalogs {
		if cat == nil {
			continue
		}
		summaries = append(summaries, catalogSummary{Name: cat.Name, Tools: len(cat.Tools)})
	}
	sort.Slice(summaries, func(i, j int) bool {
		return strings.ToLower(summaries[i].Name) < strings.ToLower(summaries[j].Name)
	})

	c.JSON(http.StatusOK, summaries)
}

func (s *Server) handleGetToolCatalog(c *gin.Context) {
	name := strings.TrimSpace(c.Param("name"))
	if name == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing catalog name"))
		return
	}

	_, _, dir := s.fixturePaths()
	catalogs, err := app.LoadCatalogs(dir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	cat := findCatalogByName(catalogs, name)
	if cat == nil {
		respondError(c, http.StatusNotFound, fmt.Errorf("catalog %q not found", name))
		return
	}

	c.JSON(http.StatusOK, cat)
}

func (s *Server) handleStartRun(c *gin.Context) {
	if s == nil || s.store == nil || s.config == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	strategies := normalizeStrategies(req.Strategies)
	if len(strategies) == 0 {
		strategies = []string{"semantic", "lexical"}
	}

	ks := s.config.Evaluation.Ks
	if len(req.Ks) > 0 {
		var err error
		ks, err = normalizeKs(req.Ks)
		if err != nil {
			respondError(c, http.StatusBadRequest, err)
			return
		}
	}

	minRecall := s.config.Evaluation.MinRecall
	if req.MinRecall != nil {
		minRecall = *req.MinRecall
	}
	if minRecall < 0 || minRecall > 1 {
		respondError(c, http.StatusBadRequest, fmt.Errorf("min_recall must be between 0 and 1 (got %v)", minRecall))
		return
	}

	minMRR := s.config.Evaluation.MinMRR
	if req.MinMRR != nil {
		minMRR = *req.MinMRR
	}
	if minMRR < 0 || minMRR > 1 {
		respondError(c, http.StatusBadRequest, fmt.Errorf("min_mrr must be between 0 and 1 (got %v)", minMRR))
		return
	}

	concurrency := s.config.Evaluation.Concurrency
	if req.Concurrency != nil {
		concurrency = *req.Concurrency
	}
	if concurrency <= 0 {
		concurrency = 1
	}

	datasetsDir, corporaDir, toolsDir := s.fixturePaths()

	datasets, err := app.LoadDatasets(datasetsDir)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	ds, err := app.FindDataset(datasets, req.Dataset)
	if err != nil {
		respondError(c, fixtureErrorStatus(err), err)
		return
	}

	category := strings.TrimSpace(req.Category)
	if category != "" {
		ds = app.FilterQueries(ds, category)
		if len(ds.Queries) == 0 {
			respondError(c, http.StatusBadRequest, fmt.Errorf("dataset %q has no queries in category %q", ds.Name, category))
			return
		}
	}

	var corpus *dataset.Corpus
	if hasAnyStrategy(strategies, "semantic", "lexical", "hybrid") {
		corpora, err := app.LoadCorpora(corporaDir)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		corpus, err = app.FindCorpus(corpora, req.Corpus)
		if err != nil {
			respondError(c, fixtureErrorStatus(err), err)
			return
		}
	}

	builder := app.NewBuilder(s.config, corpus)
	defer func() { _ = builder.Close() }()

	if hasAnyStrategy(strategies, "toolselect") {
		catalogs, err := app.LoadCatalogs(toolsDir)
		if err != nil {
			respondError(c, http.StatusInternalServerError, err)
			return
		}
		catalog, err := app.FindCatalog(catalogs, req.Tools)
		if err != nil {
			respondError(c, fixtureErrorStatus(err), err)
			return
		}
		builder.Catalog = catalog
		builder.Provider = s.provider
	}

	ctx := c.Request.Context()

	registry, err := builder.Build(ctx, strategies)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	hcfg, err := app.HarnessConfig(s.config)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}
	hcfg.Ks = ks
	hcfg.Concurrency = concurrency

	h, err := harness.New(registry, hcfg)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}
	report, err := h.Run(ctx, ds)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	anyFailed, summary := app.Summarize(report)
	violations := app.Violations(report, minRecall, minMRR)

	runConfig := map[string]any{
		"strategies":   strategies,
		"ks":           hcfg.Ks,
		"category":     category,
		"corpus":       req.Corpus,
		"tools":        req.Tools,
		"concurrency":  hcfg.Concurrency,
		"timeout_ms":   hcfg.Timeout.Milliseconds(),
		"qps":          hcfg.QPS,
		"empty_policy": string(hcfg.EmptyPolicy),
		"min_recall":   minRecall,
		"min_mrr":      minMRR,
	}

	rec, err := app.SaveReport(ctx, s.store, report, runConfig)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	if s.lbStore != nil {
		for _, entry := range leaderboard.FromReport(report, rec.ID) {
			e := entry
			if err := s.lbStore.Save(ctx, &e); err != nil {
				respondError(c, http.StatusInternalServerError, fmt.Errorf("save leaderboard entry: %w", err))
				return
			}
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"run":        newRunView(rec),
		"summary":    summary,
		"rows":       report.Rows,
		"violations": violations,
		"failed":     anyFailed || len(violations) > 0,
	})
}

func (s *Server) handleListRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	since, err := parseTimeParam(c.Query("since"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	until, err := parseTimeParam(c.Query("until"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	filter := store.RunFilter{
		Dataset:  strings.TrimSpace(c.Query("dataset")),
		Strategy: strings.TrimSpace(c.Query("strategy")),
		Since:    since,
		Until:    until,
		Limit:    limit,
	}

	runs, err := s.store.ListRuns(c.Request.Context(), filter)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	views := make([]*runView, 0, len(runs))
	for _, run := range runs {
		if run == nil {
			continue
		}
		views = append(views, newRunView(run))
	}

	c.JSON(http.StatusOK, views)
}

func (s *Server) handleGetRun(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, newRunView(run))
}

func (s *Server) handleGetRunRows(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	if _, err := s.store.GetRun(c.Request.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	rows, err := s.store.GetRows(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	c.JSON(http.StatusOK, newRowViews(rows))
}

func (s *Server) handleGetRunBreakdown(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing run id"))
		return
	}

	k, err := parsePositiveIntParam(c.Query("k"), "k")
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	order, err := metrics.ParseBreakdownOrder(c.Query("sort"))
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	run, err := s.store.GetRun(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q not found", id))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	rows, err := s.store.GetRows(c.Request.Context(), id)
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	row, err := selectRow(rows, c.Query("strategy"), k)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	outcomes := make([]metrics.Outcome, 0, len(row.Records))
	for _, qr := range row.Records {
		outcomes = append(outcomes, metrics.Outcome{Result: qr.Result, Expected: qr.Expected})
	}
	stats := metrics.Breakdown(outcomes, order)

	c.JSON(http.StatusOK, gin.H{
		"run_id":   run.ID,
		"dataset":  run.Dataset,
		"strategy": row.Strategy,
		"k":        row.K,
		"items":    stats,
	})
}

func (s *Server) handleGetDatasetHistory(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	datasetName := strings.TrimSpace(c.Param("dataset"))
	if datasetName == "" {
		respondError(c, http.StatusBadRequest, errors.New("missing dataset name"))
		return
	}

	limit, err := parseLimitParam(c.Query("limit"), 20)
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	k, err := parsePositiveIntParam(c.Query("k"), "k")
	if err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	points, err := s.store.History(c.Request.Context(), store.HistoryFilter{
		Dataset:  datasetName,
		Strategy: strings.TrimSpace(c.Query("strategy")),
		K:        k,
		Limit:    limit,
	})
	if err != nil {
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	views := make([]historyView, 0, len(points))
	for _, p := range points {
		if p == nil {
			continue
		}
		views = append(views, historyView{
			RunID:      p.RunID,
			Dataset:    p.Dataset,
			FinishedAt: p.FinishedAt,
			Strategy:   p.Strategy,
			K:          p.K,
			Precision:  p.Precision,
			Recall:     p.Recall,
			MRR:        p.MRR,
		})
	}

	c.JSON(http.StatusOK, views)
}

func (s *Server) handleCompareRuns(c *gin.Context) {
	if s == nil || s.store == nil {
		respondError(c, http.StatusInternalServerError, errors.New("server not initialized"))
		return
	}

	var req compareRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err)
		return
	}

	baseline := strings.TrimSpace(req.Baseline)
	candidate := strings.TrimSpace(req.Candidate)
	if baseline == "" || candidate == "" {
		respondError(c, http.StatusBadRequest, errors.New("baseline and candidate are required"))
		return
	}

	epsilon := 0.0
	if s.config != nil {
		epsilon = s.config.Evaluation.Epsilon
	}
	if req.Epsilon != nil {
		epsilon = *req.Epsilon
	}
	if epsilon < 0 {
		respondError(c, http.StatusBadRequest, fmt.Errorf("epsilon must be >= 0 (got %v)", epsilon))
		return
	}

	cmp, err := s.store.CompareRuns(c.Request.Context(), baseline, candidate, epsilon)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			respondError(c, http.StatusNotFound, fmt.Errorf("run %q or %q not found", baseline, candidate))
			return
		}
		respondError(c, http.StatusInternalServerError, err)
		return
	}

	deltas := make([]deltaView, 0, len(cmp.Deltas))
	for _, d := range cmp.Deltas {
		deltas = append(deltas, deltaView{
			Strategy:  d.Strategy,
			K:         d.K,
			Precision: d.Precision,
			Recall:    d.Recall,
			MRR:       d.MRR,
		})
	}

	c.JSON(http.StatusOK, compareView{
		Baseline:     newRunView(cmp.Baseline),
		Candidate:    newRunView(cmp.Candidate),
		Deltas:       deltas,
		Regressions:  cmp.Regressions,
		Improvements: cmp.Improvements,
		Regressed:    len(cmp.Regressions) > 0,
	})
}

// fixturePaths resolves the dataset, corpus, and tool catalog directories,
// falling back to the conventional layout when no config is present.
func (s *Server) fixturePaths() (datasets, corpora, tools string) {
	datasets, corpora, tools = "datasets", "corpora", "tools"
	if s == nil || s.config == nil {
		return datasets, corpora, tools
	}
	if v := strings.TrimSpace(s.config.Paths.Datasets); v != "" {
		datasets = v
	}
	if v := strings.TrimSpace(s.config.Paths.Corpora); v != "" {
		corpora = v
	}
	if v := strings.TrimSpace(s.config.Paths.Tools); v != "" {
		tools = v
	}
	return datasets, corpora, tools
}

func respondError(c *gin.Context, status int, err error) {
	if err == nil {
		c.Status(status)
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// fixtureErrorStatus maps lookup failures to 404 and every other fixture
// resolution problem (ambiguous name, nothing loaded) to 400.
func fixtureErrorStatus(err error) int {
	if err != nil && strings.Contains(err.Error(), "unknown") {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

func parseLimitParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	if v <= 0 {
		return 0, fmt.Errorf("limit must be > 0")
	}
	return v, nil
}

func parseTimeParam(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	layouts := []string{time.RFC3339, "2006-01-02"}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q (expected RFC3339 or YYYY-MM-DD)", raw)
}

func parsePositiveIntParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return v, nil
}

func normalizeStrategies(names []string) []string {
	var out []string
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			continue
		}
		out = append(out, name)
	}
	return out
}

func normalizeKs(ks []int) ([]int, error) {
	var out []int
	seen := make(map[int]struct{})
	for _, k := range ks {
		if k <= 0 {
			return nil, fmt.Errorf("ks must be positive (got %d)", k)
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	if len(out) == 0 {
		return nil, errors.New("ks must not be empty")
	}
	sort.Ints(out)
	return out, nil
}

func hasAnyStrategy(strategies []string, names ...string) bool {
	for _, s := range strategies {
		for _, name := range names {
			if s == name {
				return true
			}
		}
	}
	return false
}

func findDatasetByName(datasets []*dataset.Dataset, name string) *dataset.Dataset {
	for _, ds := range datasets {
		if ds == nil {
			continue
		}
		if strings.TrimSpace(ds.Name) == name {
			return ds
		}
	}
	return nil
}

func findCorpusByName(corpora []*dataset.Corpus, name string) *dataset.Corpus {
	for _, corpus := range corpora {
		if corpus == nil {
			continue
		}
		if strings.TrimSpace(corpus.Name) == name {
			return corpus
		}
	}
	return nil
}

func findCatalogByName(catalogs []*toolspec.Catalog, name string) *toolspec.Catalog {
	for _, cat := range catalogs {
		if cat == nil {
			continue
		}
		if strings.TrimSpace(cat.Name) == name {
			return cat
		}
	}
	return nil
}

func datasetCategories(ds *dataset.Dataset) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, q := range ds.Queries {
		category := strings.TrimSpace(q.Category)
		if category == "" {
			continue
		}
		if _, ok := seen[category]; ok {
			continue
		}
		seen[category] = struct{}{}
		out = append(out, category)
	}
	sort.Strings(out)
	return out
}

func newRunView(rec *store.RunRecord) *runView {
	if rec == nil {
		return nil
	}
	return &runView{
		ID:         rec.ID,
		Dataset:    rec.Dataset,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
		Strategies: rec.Strategies,
		Ks:         rec.Ks,
		Config:     rec.Config,
	}
}

func newRowViews(rows []*store.RowRecord) []rowView {
	views := make([]rowView, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		views = append(views, rowView{
			Strategy:  row.Strategy,
			K:         row.K,
			Precision: row.Precision,
			Recall:    row.Recall,
			MRR:       row.MRR,
			Queries:   row.Queries,
			Failures:  row.Failures,
			Records:   row.Records,
		})
	}
	return views
}

// selectRow picks the (strategy, k) row the query parameters name. A run with
// a single row needs no parameters at all.
func selectRow(rows []*store.RowRecord, strategyName string, k int) (*store.RowRecord, error) {
	strategyName = strings.ToLower(strings.TrimSpace(strategyName))

	var matches []*store.RowRecord
	for _, row := range rows {
		if row == nil {
			continue
		}
		if strategyName != "" && row.Strategy != strategyName {
			continue
		}
		if k > 0 && row.K != k {
			continue
		}
		matches = append(matches, row)
	}

	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no row matches strategy=%q k=%d", strategyName, k)
	case 1:
		return matches[0], nil
	default:
		keys := make([]string, 0, len(matches))
		for _, row := range matches {
			keys = append(keys, fmt.Sprintf("%s@%d", row.Strategy, row.K))
		}
		return nil, fmt.Errorf("%d rows match, narrow with strategy and k parameters: %s",
			len(matches), strings.Join(keys, ", "))
	}
}
