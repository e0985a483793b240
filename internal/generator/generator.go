// Package generator synthesizes labeled evaluation queries from a document
// corpus by prompting an LLM and validating its output against that corpus.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/dataset"
	"github.com/stellarlinkco/rag-eval/internal/llm"
)

const (
	defaultCount      = 10
	maxCount          = 50
	maxSnippetRunes   = 400
	generateMaxTokens = 2048
)

// Generator prompts an LLM provider for synthetic labeled queries.
type Generator struct {
	Provider llm.Provider
}

// Request describes one generation call. TaskContext tells the model what the
// retrieval system is for, Examples seed the query style. Count defaults to
// 10 and is capped at 50.
type Request struct {
	Corpus      *dataset.Corpus
	TaskContext string
	Examples    []string
	Count       int
	Name        string
}

type generatedQuery struct {
	ID       string   `json:"id"`
	Query    string   `json:"query"`
	Expected []string `json:"expected"`
}

type generatorOutput struct {
	Queries []generatedQuery `json:"queries"`
}

// Generate asks the provider for labeled queries over the request corpus.
// Expected IDs the corpus does not contain are rejected; a query left with no
// valid expected ID is dropped.
func (g *Generator) Generate(ctx context.Context, req *Request) (*dataset.Dataset, error) {
	if g == nil {
		return nil, errors.New("generator: nil generator")
	}
	if ctx == nil {
		return nil, errors.New("generator: nil context")
	}
	if g.Provider == nil {
		return nil, errors.New("generator: nil llm provider")
	}
	if req == nil {
		return nil, errors.New("generator: nil request")
	}
	if req.Corpus == nil || len(req.Corpus.Documents) == 0 {
		return nil, errors.New("generator: empty corpus")
	}

	count := req.Count
	if count <= 0 {
		count = defaultCount
	}
	if count > maxCount {
		count = maxCount
	}

	prompt := buildPrompt(req.Corpus, strings.TrimSpace(req.TaskContext), req.Examples, count)
	resp, err := g.Provider.Complete(ctx, &llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens: generateMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("generator: llm: %w", err)
	}
	if resp == nil {
		return nil, errors.New("generator: nil llm response")
	}

	raw := strings.TrimSpace(llm.Text(resp))
	var out generatorOutput
	if err := llm.ParseJSON(raw, &out); err != nil {
		// Some models answer with a bare array instead of the wrapper object.
		var arr []generatedQuery
		if llm.ParseJSON(raw, &arr) != nil {
			return nil, fmt.Errorf("generator: parse output: %w", err)
		}
		out.Queries = arr
	}
	if len(out.Queries) == 0 {
		return nil, errors.New("generator: no queries returned")
	}

	known := make(map[string]struct{}, len(req.Corpus.Documents))
	for _, doc := range req.Corpus.Documents {
		known[doc.ID] = struct{}{}
	}

	seen := make(map[string]int, len(out.Queries))
	queries := make([]dataset.Query, 0, len(out.Queries))
	for i, q := range out.Queries {
		text := strings.TrimSpace(q.Query)
		if text == "" {
			continue
		}
		expected := validExpected(q.Expected, known)
		if len(expected) == 0 {
			continue
		}

		id := sanitizeQueryID(q.ID)
		if id == "" {
			id = fmt.Sprintf("q_%02d", i+1)
		}
		seen[id]++
		if seen[id] > 1 {
			id = fmt.Sprintf("%s_%d", id, seen[id])
		}

		queries = append(queries, dataset.Query{
			ID:       id,
			Text:     text,
			Expected: expected,
			Category: "synthetic",
		})
	}
	if len(queries) == 0 {
		return nil, errors.New("generator: all queries invalid")
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(req.Corpus.Name)
		if name == "" {
			name = "synthetic"
		} else {
			name += "-synthetic"
		}
	}
	return &dataset.Dataset{Name: name, Queries: queries}, nil
}

func validExpected(ids []string, known map[string]struct{}) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := known[id]; !ok {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func buildPrompt(corpus *dataset.Corpus, taskContext string, examples []string, count int) string {
	var sb strings.Builder
	sb.WriteString("You are building an evaluation dataset for a document retrieval system. Write realistic user queries that the documents below can answer.\n\n")
	if taskContext != "" {
		sb.WriteString("## Task Context\n")
		sb.WriteString(taskContext)
		sb.WriteString("\n\n")
	}
	sb.WriteString("## Documents\n")
	for _, doc := range corpus.Documents {
		sb.WriteString("- id: ")
		sb.WriteString(doc.ID)
		if doc.Title != "" {
			sb.WriteString(" | title: ")
			sb.WriteString(doc.Title)
		}
		sb.WriteString("\n  ")
		sb.WriteString(snippet(doc.Text, maxSnippetRunes))
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	if len(examples) > 0 {
		sb.WriteString("## Example Queries\n")
		for _, ex := range examples {
			ex = strings.TrimSpace(ex)
			if ex == "" {
				continue
			}
			sb.WriteString("- ")
			sb.WriteString(ex)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString("## Requirements\n")
	fmt.Fprintf(&sb, "- Generate %d diverse queries.\n", count)
	sb.WriteString("- Every query must be answerable from the documents above.\n")
	sb.WriteString("- expected lists the ids of every document that answers the query; use only ids from the list above.\n")
	sb.WriteString("- Vary phrasing and length; do not copy document sentences verbatim.\n")
	sb.WriteString("- Output ONLY valid JSON in the exact format below.\n\n")
	sb.WriteString("{\"queries\":[{\"id\":\"<id>\",\"query\":\"<user query>\",\"expected\":[\"<doc id>\"]}]}\n")
	return sb.String()
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func sanitizeQueryID(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '_' || r == '-':
			b.WriteRune('_')
		default:
			// drop
		}
	}
	out := strings.Trim(b.String(), "_")
	out = strings.ReplaceAll(out, "__", "_")
	return out
}
