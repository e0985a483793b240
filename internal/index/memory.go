package index

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Memory is an in-process vector index using brute-force dot product. With
// unit-length vectors the dot product equals cosine similarity, which is
// exact and plenty fast at evaluation-corpus sizes.
type Memory struct {
	mu      sync.RWMutex
	dim     int
	ids     []string
	vectors [][]float32
	byID    map[string]int
}

// NewMemory builds an empty index for vectors of the given width.
func NewMemory(dimension int) (*Memory, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("index: memory dimension must be positive, got %d", dimension)
	}
	return &Memory{dim: dimension, byID: make(map[string]int)}, nil
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Upsert(_ context.Context, entries []Entry) error {
	if m == nil {
		return fmt.Errorf("index: nil memory index")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("index: memory upsert with empty id")
		}
		if len(e.Vector) != m.dim {
			return fmt.Errorf("index: memory upsert %q: vector width %d, index width %d", e.ID, len(e.Vector), m.dim)
		}
		vec := append([]float32(nil), e.Vector...)
		if pos, ok := m.byID[e.ID]; ok {
			m.vectors[pos] = vec
			continue
		}
		m.byID[e.ID] = len(m.ids)
		m.ids = append(m.ids, e.ID)
		m.vectors = append(m.vectors, vec)
	}
	return nil
}

func (m *Memory) Search(_ context.Context, vector []float32, k int) ([]Hit, error) {
	if m == nil {
		return nil, fmt.Errorf("index: nil memory index")
	}
	if len(vector) != m.dim {
		return nil, fmt.Errorf("index: memory search: vector width %d, index width %d", len(vector), m.dim)
	}
	if k <= 0 {
		return nil, nil
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	hits := make([]Hit, len(m.ids))
	for i, vec := range m.vectors {
		var score float32
		for j := range vec {
			score += vec[j] * vector[j]
		}
		hits[i] = Hit{ID: m.ids[i], Score: score}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *Memory) Close() error { return nil }

// Len reports how many documents the index holds.
func (m *Memory) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.ids)
}
