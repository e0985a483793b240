package diagnose

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/llm"
	"github.com/stellarlinkco/rag-eval/internal/store"
)

// Advisor turns run findings into prioritized fix suggestions. A nil Provider
// limits Diagnose to the deterministic findings.
type Advisor struct {
	Provider llm.Provider
}

// Request carries the run material and limits for one diagnosis.
type Request struct {
	Input          *Input
	MaxSuggestions int // default 5, capped at 20
}

// Suggestion is one proposed fix.
type Suggestion struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Impact      string `json:"impact,omitempty"`
	Priority    int    `json:"priority"`
}

// Result is the diagnosis output. RootCauses and Suggestions are only
// populated when an LLM provider analyzed the findings.
type Result struct {
	Findings    []Finding    `json:"findings"`
	RootCauses  []string     `json:"root_causes,omitempty"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
}

const diagnosePromptTemplate = `You are a retrieval quality advisor. Analyze the evaluation findings and propose the smallest effective configuration or content changes.

## Run
{{RUN}}

## Detected Failure Patterns
{{FINDINGS}}

## Pattern Catalog
{{RULES}}

## Failing Cells (sample)
{{FAILURES}}

## Your Task
1. Explain the root causes (short bullets, concrete).
2. Propose up to {{MAX_SUGGESTIONS}} fix suggestions.

## Suggestion Rules
- Allowed types: adjust_k, enable_hybrid, tune_fusion, switch_strategy, improve_documents, fix_labels, tune_tokenizer, raise_timeout.
- Each suggestion must include: id, type, description, impact, priority.
- priority: integer 1 (highest) to 5 (lowest).
- impact: low|medium|high.

## Output Format
Return ONLY valid JSON, no markdown, no code fences:
{
  "root_causes": ["..."],
  "suggestions": [
    {
      "id": "S1",
      "type": "adjust_k",
      "description": "...",
      "impact": "low|medium|high",
      "priority": 1
    }
  ]
}`

// Diagnose analyzes the run and, when a provider is configured, asks it for
// root causes and fixes grounded on the detected patterns.
func (a *Advisor) Diagnose(ctx context.Context, req *Request) (*Result, error) {
	if ctx == nil {
		return nil, errors.New("diagnose: nil context")
	}
	if req == nil || req.Input == nil {
		return nil, errors.New("diagnose: nil request")
	}

	findings, err := Analyze(req.Input)
	if err != nil {
		return nil, err
	}
	if a == nil || a.Provider == nil {
		return &Result{Findings: findings}, nil
	}

	maxSuggestions := req.MaxSuggestions
	if maxSuggestions <= 0 {
		maxSuggestions = 5
	}
	if maxSuggestions > 20 {
		maxSuggestions = 20
	}

	prompt := strings.ReplaceAll(diagnosePromptTemplate, "{{RUN}}", formatRun(req.Input.Run))
	prompt = strings.ReplaceAll(prompt, "{{FINDINGS}}", formatFindings(findings))
	prompt = strings.ReplaceAll(prompt, "{{RULES}}", formatRules(Rules))
	prompt = strings.ReplaceAll(prompt, "{{FAILURES}}", formatFailureSamples(req.Input.Rows))
	prompt = strings.ReplaceAll(prompt, "{{MAX_SUGGESTIONS}}", fmt.Sprintf("%d", maxSuggestions))

	resp, err := a.Provider.Complete(ctx, &llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: 4096,
	})
	if err != nil {
		return nil, fmt.Errorf("diagnose: %w", err)
	}
	if resp == nil {
		return nil, errors.New("diagnose: nil llm response")
	}

	var parsed struct {
		RootCauses  []string     `json:"root_causes"`
		Suggestions []Suggestion `json:"suggestions"`
	}
	raw := strings.TrimSpace(llm.Text(resp))
	if err := llm.ParseJSON(raw, &parsed); err != nil {
		return nil, fmt.Errorf("diagnose: parse response: %w (response length %d)", err, len(raw))
	}

	return &Result{
		Findings:    findings,
		RootCauses:  trimStrings(parsed.RootCauses),
		Suggestions: normalizeSuggestions(parsed.Suggestions, maxSuggestions),
	}, nil
}

func formatRun(run *store.RunRecord) string {
	if run == nil {
		return "(unknown run)"
	}
	return fmt.Sprintf("id=%s dataset=%s strategies=%s ks=%v",
		run.ID, run.Dataset, strings.Join(run.Strategies, ","), run.Ks)
}

func formatFindings(findings []Finding) string {
	if len(findings) == 0 {
		return "No failure patterns detected."
	}
	var sb strings.Builder
	for _, f := range findings {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", f.Pattern, f.Detail))
		for _, ev := range f.Evidence {
			sb.WriteString(fmt.Sprintf("  - %s\n", ev))
		}
	}
	return strings.TrimSpace(sb.String())
}

func formatRules(rules []Rule) string {
	var sb strings.Builder
	for _, r := range rules {
		sb.WriteString(fmt.Sprintf("- %s: %s\n  %s\n", r.ID, r.Title, r.Description))
	}
	return strings.TrimSpace(sb.String())
}

const maxFailureSamples = 10

func formatFailureSamples(rows []*store.RowRecord) string {
	var sb strings.Builder
	n := 0
	for _, row := range rows {
		if row == nil {
			continue
		}
		for _, rec := range row.Records {
			if n >= maxFailureSamples {
				break
			}
			if rec.Error != "" {
				sb.WriteString(fmt.Sprintf("- %s@%d %s: error: %s\n", row.Strategy, row.K, rec.QueryID, rec.Error))
				n++
				continue
			}
			if rec.Recall > 0 || len(rec.Expected) == 0 {
				continue
			}
			sb.WriteString(fmt.Sprintf("- %s@%d %s: expected %s, got %s\n",
				row.Strategy, row.K, rec.QueryID, idList(rec.Expected), idList(rec.Result)))
			n++
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "No failing cells."
	}
	return out
}

const maxListedIDs = 5

func idList(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	if len(ids) <= maxListedIDs {
		return "[" + strings.Join(ids, " ") + "]"
	}
	return fmt.Sprintf("[%s +%d]", strings.Join(ids[:maxListedIDs], " "), len(ids)-maxListedIDs)
}

func trimStrings(in []string) []string {
	out := in[:0]
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}

func normalizeSuggestions(in []Suggestion, max int) []Suggestion {
	out := in[:0]
	for _, s := range in {
		s.ID = strings.TrimSpace(s.ID)
		s.Type = strings.TrimSpace(s.Type)
		s.Description = strings.TrimSpace(s.Description)
		s.Impact = strings.TrimSpace(s.Impact)
		if s.ID == "" || s.Type == "" || s.Description == "" {
			continue
		}
		if s.Priority <= 0 {
			s.Priority = 3
		}
		if s.Priority > 5 {
			s.Priority = 5
		}
		out = append(out, s)
		if max > 0 && len(out) >= max {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})

	return out
}
