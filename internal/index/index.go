package index

import "context"

// Hit is one ranked retrieval candidate, best-first.
type Hit struct {
	ID    string
	Score float32
}

// Entry is a document ready for indexing: its identifier, its embedding, and
// optional payload fields persisted alongside (title, category).
type Entry struct {
	ID     string
	Vector []float32
	Fields map[string]string
}

// VectorIndex is a dense retrieval backend. Search must be safe for
// concurrent use; Upsert is expected to run before evaluation starts.
type VectorIndex interface {
	Name() string
	Upsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
	Close() error
}
