package index

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

type bm25Doc struct {
	id    string
	terms map[string]int
	len   int
}

// BM25 is an in-process keyword index scoring with Okapi BM25 (k1=1.2,
// b=0.75). It takes query text directly rather than a vector, so the lexical
// strategy uses it without an embedder. Search is safe for concurrent use
// once the corpus is added.
type BM25 struct {
	mu        sync.RWMutex
	docs      []bm25Doc
	byID      map[string]int
	docFreqs  map[string]int
	totalLen  int
	avgDocLen float64
}

func NewBM25() *BM25 {
	return &BM25{
		byID:     make(map[string]int),
		docFreqs: make(map[string]int),
	}
}

func (b *BM25) Name() string { return "bm25" }

// Add indexes one document, replacing any previous document with the same id.
func (b *BM25) Add(id, text string) error {
	if b == nil {
		return fmt.Errorf("index: nil bm25 index")
	}
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("index: bm25 add with empty id")
	}

	terms := make(map[string]int)
	count := 0
	for _, tok := range bm25Tokenize(text) {
		terms[tok]++
		count++
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if pos, ok := b.byID[id]; ok {
		old := b.docs[pos]
		for term := range old.terms {
			b.docFreqs[term]--
			if b.docFreqs[term] <= 0 {
				delete(b.docFreqs, term)
			}
		}
		b.totalLen -= old.len
		b.docs[pos] = bm25Doc{id: id, terms: terms, len: count}
	} else {
		b.byID[id] = len(b.docs)
		b.docs = append(b.docs, bm25Doc{id: id, terms: terms, len: count})
	}

	for term := range terms {
		b.docFreqs[term]++
	}
	b.totalLen += count
	if len(b.docs) > 0 {
		b.avgDocLen = float64(b.totalLen) / float64(len(b.docs))
	}
	return nil
}

// Search scores every document against the tokenized query and returns the
// top k, ties broken by id so repeated runs rank identically.
func (b *BM25) Search(_ context.Context, query string, k int) ([]Hit, error) {
	if b == nil {
		return nil, fmt.Errorf("index: nil bm25 index")
	}
	if k <= 0 {
		return nil, nil
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	n := float64(len(b.docs))
	if n == 0 {
		return nil, nil
	}

	scores := make(map[string]float64)
	for _, term := range bm25Tokenize(query) {
		df, ok := b.docFreqs[term]
		if !ok {
			continue
		}
		idf := bm25LogN((n-float64(df)+0.5)/(float64(df)+0.5) + 1)
		for _, doc := range b.docs {
			tf, ok := doc.terms[term]
			if !ok {
				continue
			}
			norm := 1 - bm25B + bm25B*(float64(doc.len)/b.avgDocLen)
			tfScore := (float64(tf) * (bm25K1 + 1)) / (float64(tf) + bm25K1*norm)
			scores[doc.id] += idf * tfScore
		}
	}

	hits := make([]Hit, 0, len(scores))
	for id, score := range scores {
		hits = append(hits, Hit{ID: id, Score: float32(score)})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

// Len reports how many documents the index holds.
func (b *BM25) Len() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.docs)
}

func bm25Tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, ".,!?;:\"'()[]{}#$%&*+-/<>=@\\^_`|~")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func bm25LogN(x float64) float64 {
	if x <= 0 {
		return 0
	}
	return math.Log(x)
}
