package metrics

import (
	"fmt"
	"sort"
	"strings"
)

// Outcome is one scored query: the ranked result a strategy produced and the
// ground-truth set it was judged against.
type Outcome struct {
	Result   []string
	Expected []string
}

// ItemStat aggregates how one item fared across every query that expected it.
// Incidental retrievals, where the item shows up in a result without being
// expected, do not count toward either column.
type ItemStat struct {
	ItemID    string  `json:"item_id"`
	Expected  int     `json:"expected_calls"`
	Retrieved int     `json:"correct_calls"`
	Recall    float64 `json:"recall"`
}

// BreakdownOrder selects the sort applied to breakdown rows.
type BreakdownOrder string

const (
	// OrderByExpected puts the most frequently expected items first.
	OrderByExpected BreakdownOrder = "expected"

	// OrderByRecall puts the worst-recalled items first.
	OrderByRecall BreakdownOrder = "recall"
)

// ParseBreakdownOrder maps a flag value to a BreakdownOrder. The empty string
// selects OrderByExpected.
func ParseBreakdownOrder(s string) (BreakdownOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(OrderByExpected):
		return OrderByExpected, nil
	case string(OrderByRecall):
		return OrderByRecall, nil
	default:
		return "", fmt.Errorf("metrics: unknown breakdown order %q", s)
	}
}

// Breakdown computes per-item recall across outcomes. Items that never appear
// in any expected set get no row, so every returned ratio has a nonzero
// denominator. Ties break on item ID to keep repeated runs comparable
// line-by-line.
func Breakdown(outcomes []Outcome, order BreakdownOrder) []ItemStat {
	stats := make(map[string]*ItemStat)
	for _, o := range outcomes {
		got := toSet(o.Result)
		for _, id := range Normalize(o.Expected) {
			st, ok := stats[id]
			if !ok {
				st = &ItemStat{ItemID: id}
				stats[id] = st
			}
			st.Expected++
			if _, hit := got[id]; hit {
				st.Retrieved++
			}
		}
	}

	out := make([]ItemStat, 0, len(stats))
	for _, st := range stats {
		st.Recall = float64(st.Retrieved) / float64(st.Expected)
		out = append(out, *st)
	}

	switch order {
	case OrderByRecall:
		sort.Slice(out, func(i, j int) bool {
			if out[i].Recall != out[j].Recall {
				return out[i].Recall < out[j].Recall
			}
			if out[i].Expected != out[j].Expected {
				return out[i].Expected > out[j].Expected
			}
			return out[i].ItemID < out[j].ItemID
		})
	default:
		sort.Slice(out, func(i, j int) bool {
			if out[i].Expected != out[j].Expected {
				return out[i].Expected > out[j].Expected
			}
			if out[i].Recall != out[j].Recall {
				return out[i].Recall < out[j].Recall
			}
			return out[i].ItemID < out[j].ItemID
		})
	}
	return out
}
