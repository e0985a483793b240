// Package benchmark imports public retrieval benchmarks into the dataset and
// corpus shapes the harness evaluates.
//
// Supported layout is the BEIR distribution format: corpus.jsonl and
// queries.jsonl at the benchmark root plus qrels/<split>.tsv relevance
// judgments.
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/dataset"
)

// BEIROptions controls an import. The zero value imports the full test split.
type BEIROptions struct {
	Name       string // dataset and corpus name, defaults to the directory base name
	Split      string // qrels split, defaults to "test"
	MaxQueries int    // keep only the first n labeled queries, 0 keeps all
	MinScore   int    // minimum relevance score counted as a hit, defaults to 1
}

type beirDoc struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

type beirQuery struct {
	ID   string `json:"_id"`
	Text string `json:"text"`
}

// ImportBEIR reads a BEIR-format benchmark directory and converts it into a
// labeled dataset plus its corpus. Queries without relevance judgments are
// dropped; judged documents missing from corpus.jsonl are dropped from the
// expected set, and a query whose entire expected set is missing is dropped
// with it.
func ImportBEIR(ctx context.Context, dir string, opts BEIROptions) (*dataset.Dataset, *dataset.Corpus, error) {
	if ctx == nil {
		return nil, nil, errors.New("benchmark: nil context")
	}
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, nil, errors.New("benchmark: empty benchmark directory")
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = filepath.Base(filepath.Clean(dir))
	}
	split := strings.TrimSpace(opts.Split)
	if split == "" {
		split = "test"
	}
	minScore := opts.MinScore
	if minScore <= 0 {
		minScore = 1
	}

	docs, err := readJSONL[beirDoc](ctx, filepath.Join(dir, "corpus.jsonl"))
	if err != nil {
		return nil, nil, fmt.Errorf("benchmark: corpus: %w", err)
	}
	corpus := &dataset.Corpus{Name: name}
	known := make(map[string]struct{}, len(docs))
	for _, d := range docs {
		id := strings.TrimSpace(d.ID)
		if id == "" {
			continue
		}
		if _, dup := known[id]; dup {
			return nil, nil, fmt.Errorf("benchmark: duplicate document id %q", id)
		}
		known[id] = struct{}{}
		corpus.Documents = append(corpus.Documents, dataset.Document{
			ID:    id,
			Title: strings.TrimSpace(d.Title),
			Text:  strings.TrimSpace(d.Text),
		})
	}
	if len(corpus.Documents) == 0 {
		return nil, nil, fmt.Errorf("benchmark: no documents in %q", dir)
	}

	queries, err := readJSONL[beirQuery](ctx, filepath.Join(dir, "queries.jsonl"))
	if err != nil {
		return nil, nil, fmt.Errorf("benchmark: queries: %w", err)
	}

	qrels, err := readQrels(filepath.Join(dir, "qrels", split+".tsv"), minScore)
	if err != nil {
		return nil, nil, err
	}

	ds := &dataset.Dataset{Name: name}
	for _, q := range queries {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		id := strings.TrimSpace(q.ID)
		text := strings.TrimSpace(q.Text)
		if id == "" || text == "" {
			continue
		}
		judged, ok := qrels[id]
		if !ok {
			continue
		}

		expected := make([]string, 0, len(judged))
		for _, docID := range judged {
			if _, inCorpus := known[docID]; inCorpus {
				expected = append(expected, docID)
			}
		}
		if len(expected) == 0 {
			continue
		}

		ds.Queries = append(ds.Queries, dataset.Query{ID: id, Text: text, Expected: expected})
		if opts.MaxQueries > 0 && len(ds.Queries) >= opts.MaxQueries {
			break
		}
	}
	if len(ds.Queries) == 0 {
		return nil, nil, fmt.Errorf("benchmark: no labeled queries in %q (split %s)", dir, split)
	}

	if err := dataset.Validate(ds); err != nil {
		return nil, nil, fmt.Errorf("benchmark: %w", err)
	}
	if err := dataset.ValidateCorpus(corpus); err != nil {
		return nil, nil, fmt.Errorf("benchmark: %w", err)
	}

	return ds, corpus, nil
}
