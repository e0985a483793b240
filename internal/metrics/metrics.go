// Package metrics scores retrieval output against labeled ground truth.
//
// All functions are pure: inputs are never mutated, and result lists are
// normalized to first-occurrence order with duplicates and blanks removed
// before any ratio is computed, so division by zero cannot occur.
package metrics

import (
	"fmt"
	"math"
	"strings"
)

// EmptyPolicy controls how precision scores an empty result list.
type EmptyPolicy string

const (
	// EmptyZero scores an empty result 0.0 even when nothing was expected.
	// This mirrors the convention that taking no action is never rewarded.
	EmptyZero EmptyPolicy = "zero"

	// EmptyVacuous scores an empty result 1.0 when the expected set is also
	// empty, treating "correctly did nothing" as a success.
	EmptyVacuous EmptyPolicy = "vacuous"
)

// ParseEmptyPolicy maps a config string to an EmptyPolicy. The empty string
// selects EmptyZero.
func ParseEmptyPolicy(s string) (EmptyPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(EmptyZero):
		return EmptyZero, nil
	case string(EmptyVacuous):
		return EmptyVacuous, nil
	default:
		return "", fmt.Errorf("metrics: unknown empty policy %q", s)
	}
}

// Normalize returns ids with surrounding whitespace trimmed, blanks dropped,
// and duplicates removed keeping the first occurrence. Rank order of the
// survivors is preserved.
func Normalize(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
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

// Precision is the fraction of produced results that are correct, using the
// default EmptyZero policy: an empty result always scores 0.0.
func Precision(result, expected []string) float64 {
	return PrecisionWithPolicy(result, expected, EmptyZero)
}

// PrecisionWithPolicy computes |result ∩ expected| / |result| after
// normalization. The policy only matters when the normalized result is empty.
func PrecisionWithPolicy(result, expected []string, policy EmptyPolicy) float64 {
	result = Normalize(result)
	want := toSet(expected)
	if len(result) == 0 {
		if policy == EmptyVacuous && len(want) == 0 {
			return 1.0
		}
		return 0.0
	}
	hits := 0
	for _, id := range result {
		if _, ok := want[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(result))
}

// Recall is the fraction of expected items that were produced. An empty
// expected set is vacuously satisfied and scores 1.0.
func Recall(result, expected []string) float64 {
	want := toSet(expected)
	if len(want) == 0 {
		return 1.0
	}
	result = Normalize(result)
	if len(result) == 0 {
		return 0.0
	}
	hits := 0
	for _, id := range result {
		if _, ok := want[id]; ok {
			hits++
		}
	}
	return float64(hits) / float64(len(want))
}

// ReciprocalRank returns 1/rank of the first correct item, scanning the
// normalized result in rank order (1-indexed), or 0.0 when no item matches.
func ReciprocalRank(result, expected []string) float64 {
	want := toSet(expected)
	if len(want) == 0 {
		return 0.0
	}
	for i, id := range Normalize(result) {
		if _, ok := want[id]; ok {
			return 1.0 / float64(i+1)
		}
	}
	return 0.0
}

// Round2 rounds to two decimal places. Display only; aggregation always runs
// on the full-precision values.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		set[id] = struct{}{}
	}
	return set
}
