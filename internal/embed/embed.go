package embed

import "context"

// Embedder turns text into fixed-width vectors. Implementations must be safe
// for concurrent use once constructed, so one embedder can serve many
// parallel evaluation calls.
type Embedder interface {
	Name() string

	// Dimension is the width of every vector Embed returns.
	Dimension() int

	// Embed vectorizes texts in order: out[i] corresponds to texts[i].
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// One embeds a single text, a convenience wrapper over the batch call.
func One(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vecs, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, errBatchShape
	}
	return vecs[0], nil
}
