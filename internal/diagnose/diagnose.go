// Package diagnose inspects a stored evaluation run for recurring retrieval
// failure patterns and, given an LLM provider, turns the evidence into
// targeted fix suggestions.
package diagnose

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/metrics"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

// Rule describes one detectable failure pattern.
type Rule struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Rules is the catalog of patterns Analyze can detect, in report order.
var Rules = []Rule{
	{
		ID:          "errored_cells",
		Title:       "Evaluation cells errored",
		Description: "Strategy calls failed or timed out and their cells scored zero. Check adapter connectivity and the per-call timeout before reading anything else into the numbers.",
	},
	{
		ID:          "empty_results",
		Title:       "Queries returned nothing",
		Description: "Queries produced no results at all even though items were expected. Usually an ingestion gap or query sanitization stripping every meaningful term.",
	},
	{
		ID:          "zero_recall_queries",
		Title:       "Queries with zero recall everywhere",
		Description: "No strategy retrieved any expected item for these queries at any depth. Either the labels are wrong or the corpus does not cover the question.",
	},
	{
		ID:          "never_retrieved_items",
		Title:       "Expected items never retrieved",
		Description: "Items expected by at least one query never appeared in any result list. Check their text and titles, and that they were ingested at all.",
	},
	{
		ID:          "buried_hits",
		Title:       "Relevant items ranked late",
		Description: "Recall is healthy but reciprocal rank is poor: expected items surface, just far from the top. Fusion weights or a reranking pass usually help.",
	},
	{
		ID:          "category_cluster",
		Title:       "Failures cluster in one category",
		Description: "Most failing queries share a category, pointing at one content area rather than the retrieval setup as a whole.",
	},
	{
		ID:          "strategy_gap",
		Title:       "Large gap between strategies",
		Description: "One strategy clearly dominates another at the same depth. Consider the hybrid strategy, or stop paying for the laggard.",
	},
}

// RuleByID returns the catalog entry for id.
func RuleByID(id string) (Rule, bool) {
	for _, r := range Rules {
		if r.ID == id {
			return r, true
		}
	}
	return Rule{}, false
}

// Finding is one detected pattern with its supporting evidence.
type Finding struct {
	Pattern  string   `json:"pattern"`
	Detail   string   `json:"detail"`
	Evidence []string `json:"evidence,omitempty"`
}

// Input is the stored run material Analyze works on. Categories maps query
// IDs to their dataset category and may be nil when the dataset fixture is
// unavailable.
type Input struct {
	Run        *store.RunRecord
	Rows       []*store.RowRecord
	Categories map[string]string
}

const maxEvidence = 8

// Analyze detects failure patterns in a stored run. Findings come back in
// Rules order; a run with nothing wrong yields none.
func Analyze(in *Input) ([]Finding, error) {
	if in == nil {
		return nil, errors.New("diagnose: nil input")
	}
	if len(in.Rows) == 0 {
		return nil, errors.New("diagnose: no rows to analyze")
	}

	var findings []Finding
	add := func(f Finding, ok bool) {
		if ok {
			findings = append(findings, f)
		}
	}

	add(detectErroredCells(in.Rows))
	add(detectEmptyResults(in.Rows))

	failing := zeroRecallQueries(in.Rows)
	add(detectZeroRecall(failing))
	add(detectNeverRetrieved(in.Rows))
	add(detectBuriedHits(in.Rows))
	add(detectCategoryCluster(failing, in.Categories))
	add(detectStrategyGap(in.Rows))

	return findings, nil
}

func detectErroredCells(rows []*store.RowRecord) (Finding, bool) {
	var evidence []string
	total := 0
	for _, row := range rows {
		if row == nil {
			continue
		}
		for _, rec := range row.Records {
			total++
			if rec.Error == "" {
				continue
			}
			evidence = append(evidence, fmt.Sprintf("%s@%d %s", row.Strategy, row.K, rec.QueryID))
		}
	}
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Pattern:  "errored_cells",
		Detail:   fmt.Sprintf("%d of %d cells failed", len(evidence), total),
		Evidence: capEvidence(evidence),
	}, true
}

func detectEmptyResults(rows []*store.RowRecord) (Finding, bool) {
	var evidence []string
	for _, row := range rows {
		if row == nil {
			continue
		}
		for _, rec := range row.Records {
			if rec.Error != "" || len(rec.Result) > 0 || len(rec.Expected) == 0 {
				continue
			}
			evidence = append(evidence, fmt.Sprintf("%s@%d %s", row.Strategy, row.K, rec.QueryID))
		}
	}
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Pattern:  "empty_results",
		Detail:   fmt.Sprintf("%d cells returned no results despite expected items", len(evidence)),
		Evidence: capEvidence(evidence),
	}, true
}

// zeroRecallQueries returns the IDs of queries that have at least one clean
// cell with a non-empty expected set and zero recall in every such cell.
func zeroRecallQueries(rows []*store.RowRecord) []string {
	type state struct {
		judged bool
		hit    bool
	}
	byQuery := make(map[string]*state)
	for _, row := range rows {
		if row == nil {
			continue
		}
		for _, rec := range row.Records {
			if rec.Error != "" || len(rec.Expected) == 0 {
				continue
			}
			st := byQuery[rec.QueryID]
			if st == nil {
				st = &state{}
				byQuery[rec.QueryID] = st
			}
			st.judged = true
			if rec.Recall > 0 {
				st.hit = true
			}
		}
	}

	var out []string
	for id, st := range byQuery {
		if st.judged && !st.hit {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func detectZeroRecall(failing []string) (Finding, bool) {
	if len(failing) == 0 {
		return Finding{}, false
	}
	return Finding{
		Pattern:  "zero_recall_queries",
		Detail:   fmt.Sprintf("%d queries never surfaced any expected item", len(failing)),
		Evidence: capEvidence(failing),
	}, true
}

func detectNeverRetrieved(rows []*store.RowRecord) (Finding, bool) {
	var outcomes []metrics.Outcome
	for _, row := range rows {
		if row == nil {
			continue
		}
		for _, rec := range row.Records {
			if rec.Error != "" {
				continue
			}
			outcomes = append(outcomes, metrics.Outcome{Result: rec.Result, Expected: rec.Expected})
		}
	}

	var missing []string
	for _, stat := range metrics.Breakdown(outcomes, metrics.OrderByExpected) {
		if stat.Retrieved == 0 {
			missing = append(missing, stat.ItemID)
		}
	}
	if len(missing) == 0 {
		return Finding{}, false
	}
	sort.Strings(missing)
	return Finding{
		Pattern:  "never_retrieved_items",
		Detail:   fmt.Sprintf("%d expected items never appeared in any result", len(missing)),
		Evidence: capEvidence(missing),
	}, true
}

func detectBuriedHits(rows []*store.RowRecord) (Finding, bool) {
	var evidence []string
	for _, row := range rows {
		if row == nil {
			continue
		}
		if row.Recall >= 0.5 && row.MRR <= row.Recall*0.5 {
			evidence = append(evidence, fmt.Sprintf("%s@%d recall %.2f mrr %.2f", row.Strategy, row.K, row.Recall, row.MRR))
		}
	}
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Pattern:  "buried_hits",
		Detail:   fmt.Sprintf("%d rows find the right items but rank them deep", len(evidence)),
		Evidence: capEvidence(evidence),
	}, true
}

func detectCategoryCluster(failing []string, categories map[string]string) (Finding, bool) {
	if len(failing) < 2 || len(categories) == 0 {
		return Finding{}, false
	}

	counts := make(map[string]int)
	labeled := 0
	for _, id := range failing {
		cat := strings.TrimSpace(categories[id])
		if cat == "" {
			continue
		}
		labeled++
		counts[cat]++
	}
	if labeled < 2 {
		return Finding{}, false
	}

	top := ""
	topCount := 0
	for cat, n := range counts {
		if n > topCount || (n == topCount && cat < top) {
			top = cat
			topCount = n
		}
	}
	if topCount < 2 || float64(topCount) < 0.6*float64(labeled) {
		return Finding{}, false
	}

	return Finding{
		Pattern: "category_cluster",
		Detail:  fmt.Sprintf("%d of %d failing queries belong to category %q", topCount, labeled, top),
	}, true
}

func detectStrategyGap(rows []*store.RowRecord) (Finding, bool) {
	byK := make(map[int][]*store.RowRecord)
	ks := make([]int, 0)
	for _, row := range rows {
		if row == nil {
			continue
		}
		if _, ok := byK[row.K]; !ok {
			ks = append(ks, row.K)
		}
		byK[row.K] = append(byK[row.K], row)
	}
	sort.Ints(ks)

	var evidence []string
	for _, k := range ks {
		group := byK[k]
		if len(group) < 2 {
			continue
		}
		best, worst := group[0], group[0]
		for _, row := range group[1:] {
			if row.Recall > best.Recall {
				best = row
			}
			if row.Recall < worst.Recall {
				worst = row
			}
		}
		if best.Recall-worst.Recall >= 0.3 {
			evidence = append(evidence, fmt.Sprintf("k=%d: %s %.2f vs %s %.2f", k, best.Strategy, best.Recall, worst.Strategy, worst.Recall))
		}
	}
	if len(evidence) == 0 {
		return Finding{}, false
	}
	return Finding{
		Pattern:  "strategy_gap",
		Detail:   fmt.Sprintf("recall differs by 0.30 or more at %d depths", len(evidence)),
		Evidence: capEvidence(evidence),
	}, true
}

func capEvidence(items []string) []string {
	if len(items) <= maxEvidence {
		return items
	}
	out := make([]string, 0, maxEvidence+1)
	out = append(out, items[:maxEvidence]...)
	return append(out, fmt.Sprintf("+%d more", len(items)-maxEvidence))
}
