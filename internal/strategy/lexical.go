package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarlinkco/rag-eval/internal/index"
)

// Lexical ranks documents with BM25 term scoring over the ingested corpus.
type Lexical struct {
	index *index.BM25
}

func NewLexical(idx *index.BM25) *Lexical {
	return &Lexical{index: idx}
}

func (s *Lexical) Name() string { return "lexical" }

func (s *Lexical) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if s == nil || s.index == nil {
		return nil, errors.New("strategy: lexical: nil index")
	}
	if k <= 0 {
		return nil, nil
	}

	q := Sanitize(query)
	if q == "" {
		return nil, nil
	}

	hits, err := s.index.Search(ctx, q, k)
	if err != nil {
		return nil, fmt.Errorf("strategy: lexical: search: %w", err)
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}
