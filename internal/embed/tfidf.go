package embed

import (
	"context"
	"errors"
	"math"
	"regexp"
	"sort"
	"strings"
)

// TFIDF is an offline embedder: it vectorizes text against a vocabulary
// fitted from the evaluation corpus, so local runs need no API credentials.
// Fit must be called once before Embed; after that the embedder is read-only
// and safe for concurrent use.
type TFIDF struct {
	vocab     map[string]int
	idf       []float64
	dim       int
	fitted    bool
	tokenRe   *regexp.Regexp
	stopwords map[string]struct{}
}

func NewTFIDF() *TFIDF {
	return &TFIDF{
		vocab:     make(map[string]int),
		tokenRe:   regexp.MustCompile(`\p{L}+(?:'\p{L}+)*`),
		stopwords: stopwordSet(),
	}
}

func (e *TFIDF) Name() string { return "tfidf" }

func (e *TFIDF) Dimension() int {
	if e == nil {
		return 0
	}
	return e.dim
}

// Fit builds the vocabulary and smoothed IDF weights from the corpus. Terms
// are ordered lexicographically so the same corpus always yields the same
// vector layout.
func (e *TFIDF) Fit(corpus []string) error {
	if e == nil {
		return errors.New("embed: nil tfidf embedder")
	}
	if len(corpus) == 0 {
		return errors.New("embed: tfidf fit on empty corpus")
	}

	df := make(map[string]int)
	for _, text := range corpus {
		seen := make(map[string]struct{})
		for _, tok := range e.tokenize(text) {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}
	if len(df) == 0 {
		return errors.New("embed: tfidf corpus produced no tokens")
	}

	terms := make([]string, 0, len(df))
	for term := range df {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	n := float64(len(corpus))
	e.vocab = make(map[string]int, len(terms))
	e.idf = make([]float64, len(terms))
	for i, term := range terms {
		e.vocab[term] = i
		e.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1.0
	}
	e.dim = len(terms)
	e.fitted = true
	return nil
}

func (e *TFIDF) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e == nil || !e.fitted {
		return nil, errors.New("embed: tfidf not fitted")
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vectorize(text)
	}
	return out, nil
}

func (e *TFIDF) vectorize(text string) []float32 {
	vec := make([]float32, e.dim)
	counts := make(map[int]int)
	total := 0
	for _, tok := range e.tokenize(text) {
		if idx, ok := e.vocab[tok]; ok {
			counts[idx]++
			total++
		}
	}
	if total == 0 {
		return vec
	}

	var norm float64
	for idx, count := range counts {
		w := (float64(count) / float64(total)) * e.idf[idx]
		vec[idx] = float32(w)
		norm += w * w
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for idx := range counts {
			vec[idx] *= inv
		}
	}
	return vec
}

func (e *TFIDF) tokenize(text string) []string {
	raw := e.tokenRe.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, tok := range raw {
		if _, stop := e.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

func stopwordSet() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "for", "to",
		"of", "in", "on", "at", "by", "with", "as", "is", "are", "was",
		"were", "be", "been", "it", "this", "that", "these", "those",
		"from", "into", "about", "than", "so", "such", "do", "does",
		"can", "will", "just", "not", "no", "my", "your", "i", "you",
		"he", "she", "we", "they", "what", "which", "who", "how",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
