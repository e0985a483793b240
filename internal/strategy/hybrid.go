package strategy

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

const defaultRRFConstant = 60

type fusionKind int

const (
	fusionRRF fusionKind = iota
	fusionWeighted
)

// Hybrid fuses the ranked output of two inner strategies into one ranked,
// deduplicated list of at most k items.
//
// Fusion rules:
//   - Reciprocal rank fusion (default): an item at 1-indexed rank r in a
//     list contributes 1/(c+r) to its score, c=60 unless overridden.
//   - Weighted: each list scores its items by reciprocal rank, so the top
//     item gets 1.0, and the lists combine as alpha*first + (1-alpha)*second.
//
// Ties break on item ID ascending so runs stay deterministic.
type Hybrid struct {
	first  Strategy
	second Strategy
	kind   fusionKind
	c      int
	alpha  float64
}

type HybridOption func(*Hybrid)

// WithRRF selects reciprocal rank fusion with the given constant.
// Non-positive values keep the default of 60.
func WithRRF(c int) HybridOption {
	return func(h *Hybrid) {
		h.kind = fusionRRF
		if c > 0 {
			h.c = c
		}
	}
}

// WithWeighted selects weighted fusion. alpha is the first strategy's
// share, clamped to [0, 1].
func WithWeighted(alpha float64) HybridOption {
	return func(h *Hybrid) {
		h.kind = fusionWeighted
		if alpha < 0 {
			alpha = 0
		}
		if alpha > 1 {
			alpha = 1
		}
		h.alpha = alpha
	}
}

func NewHybrid(first, second Strategy, opts ...HybridOption) *Hybrid {
	h := &Hybrid{
		first:  first,
		second: second,
		kind:   fusionRRF,
		c:      defaultRRFConstant,
		alpha:  0.5,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

func (h *Hybrid) Name() string { return "hybrid" }

func (h *Hybrid) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if h == nil || h.first == nil || h.second == nil {
		return nil, errors.New("strategy: hybrid: nil inner strategy")
	}
	if k <= 0 {
		return nil, nil
	}

	firstIDs, err := h.first.Retrieve(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("strategy: hybrid: %s: %w", h.first.Name(), err)
	}
	secondIDs, err := h.second.Retrieve(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("strategy: hybrid: %s: %w", h.second.Name(), err)
	}

	scores := make(map[string]float64, len(firstIDs)+len(secondIDs))
	order := make([]string, 0, len(firstIDs)+len(secondIDs))

	// Duplicates within one list count once, at their best rank.
	accumulate := func(ids []string, weight float64) {
		seen := make(map[string]bool, len(ids))
		for i, id := range ids {
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true

			var s float64
			if h.kind == fusionWeighted {
				s = weight / float64(i+1)
			} else {
				s = 1.0 / float64(h.c+i+1)
			}
			if _, ok := scores[id]; !ok {
				order = append(order, id)
			}
			scores[id] += s
		}
	}

	if h.kind == fusionWeighted {
		accumulate(firstIDs, h.alpha)
		accumulate(secondIDs, 1-h.alpha)
	} else {
		accumulate(firstIDs, 0)
		accumulate(secondIDs, 0)
	}

	sort.SliceStable(order, func(i, j int) bool {
		si, sj := scores[order[i]], scores[order[j]]
		if si != sj {
			return si > sj
		}
		return order[i] < order[j]
	})

	if len(order) > k {
		order = order[:k]
	}
	return order, nil
}
