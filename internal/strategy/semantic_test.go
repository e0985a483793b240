package strategy

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stellarlinkco/rag-eval/internal/index"
)

type fakeEmbedder struct {
	vec      []float32
	err      error
	gotTexts []string
}

func (f *fakeEmbedder) Name() string    { return "fake" }
func (f *fakeEmbedder) Dimension() int  { return len(f.vec) }
func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.gotTexts = append(f.gotTexts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

type fakeVectorIndex struct {
	hits []index.Hit
	err  error
	gotK int
}

func (f *fakeVectorIndex) Name() string { return "fake" }
func (f *fakeVectorIndex) Upsert(_ context.Context, _ []index.Entry) error {
	return nil
}
func (f *fakeVectorIndex) Search(_ context.Context, _ []float32, k int) ([]index.Hit, error) {
	f.gotK = k
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}
func (f *fakeVectorIndex) Close() error { return nil }

func TestSemantic_Retrieve(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vec: []float32{1, 0}}
	idx := &fakeVectorIndex{hits: []index.Hit{{ID: "doc-a", Score: 0.9}, {ID: "doc-b", Score: 0.5}}}
	s := NewSemantic(emb, idx)

	if s.Name() != "semantic" {
		t.Fatalf("Name: got %q", s.Name())
	}

	ids, err := s.Retrieve(context.Background(), `how do "refunds" work`, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(ids) != 2 || ids[0] != "doc-a" || ids[1] != "doc-b" {
		t.Fatalf("ids: got %#v", ids)
	}
	if idx.gotK != 2 {
		t.Fatalf("search k: got %d want %d", idx.gotK, 2)
	}
	if len(emb.gotTexts) != 1 || emb.gotTexts[0] != "how do refunds work" {
		t.Fatalf("embedded text: got %#v", emb.gotTexts)
	}
}

func TestSemantic_EmptyCases(t *testing.T) {
	t.Parallel()

	s := NewSemantic(&fakeEmbedder{vec: []float32{1}}, &fakeVectorIndex{})

	if ids, err := s.Retrieve(context.Background(), "query", 0); err != nil || ids != nil {
		t.Fatalf("Retrieve(k=0): ids=%#v err=%v", ids, err)
	}
	if ids, err := s.Retrieve(context.Background(), ` " \ `, 3); err != nil || ids != nil {
		t.Fatalf("Retrieve(blank after sanitize): ids=%#v err=%v", ids, err)
	}
}

func TestSemantic_Errors(t *testing.T) {
	t.Parallel()

	var snil *Semantic
	if _, err := snil.Retrieve(context.Background(), "q", 1); err == nil {
		t.Fatalf("Retrieve(nil strategy): expected error")
	}
	if _, err := NewSemantic(nil, &fakeVectorIndex{}).Retrieve(context.Background(), "q", 1); err == nil {
		t.Fatalf("Retrieve(nil embedder): expected error")
	}

	s := NewSemantic(&fakeEmbedder{err: errors.New("boom")}, &fakeVectorIndex{})
	_, err := s.Retrieve(context.Background(), "q", 1)
	if err == nil || !strings.Contains(err.Error(), "strategy: semantic: embed:") {
		t.Fatalf("embed error: got %v", err)
	}

	s = NewSemantic(&fakeEmbedder{vec: []float32{1}}, &fakeVectorIndex{err: errors.New("down")})
	_, err = s.Retrieve(context.Background(), "q", 1)
	if err == nil || !strings.Contains(err.Error(), "strategy: semantic: search:") {
		t.Fatalf("search error: got %v", err)
	}
}

func TestSemantic_WithMemoryIndex(t *testing.T) {
	t.Parallel()

	mem, err := index.NewMemory(2)
	if err != nil {
		t.Fatalf("NewMemory: %v", err)
	}
	err = mem.Upsert(context.Background(), []index.Entry{
		{ID: "north", Vector: []float32{1, 0}},
		{ID: "east", Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	s := NewSemantic(&fakeEmbedder{vec: []float32{1, 0.1}}, mem)
	ids, err := s.Retrieve(context.Background(), "northern docs", 1)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(ids) != 1 || ids[0] != "north" {
		t.Fatalf("ids: got %#v", ids)
	}
}
