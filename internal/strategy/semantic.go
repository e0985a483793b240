package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarlinkco/rag-eval/internal/embed"
	"github.com/stellarlinkco/rag-eval/internal/index"
)

// Semantic embeds the query and searches a vector index for the nearest
// documents. The embedder must be the one the index was ingested with.
type Semantic struct {
	embedder embed.Embedder
	index    index.VectorIndex
}

func NewSemantic(embedder embed.Embedder, idx index.VectorIndex) *Semantic {
	return &Semantic{embedder: embedder, index: idx}
}

func (s *Semantic) Name() string { return "semantic" }

func (s *Semantic) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if s == nil || s.embedder == nil || s.index == nil {
		return nil, errors.New("strategy: semantic: nil embedder or index")
	}
	if k <= 0 {
		return nil, nil
	}

	q := Sanitize(query)
	if q == "" {
		return nil, nil
	}

	vec, err := embed.One(ctx, s.embedder, q)
	if err != nil {
		return nil, fmt.Errorf("strategy: semantic: embed: %w", err)
	}

	hits, err := s.index.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("strategy: semantic: search: %w", err)
	}

	ids := make([]string, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.ID)
	}
	return ids, nil
}
