package strategy

import (
	"context"
	"testing"

	"github.com/stellarlinkco/rag-eval/internal/index"
)

func TestLexical_Retrieve(t *testing.T) {
	t.Parallel()

	idx := index.NewBM25()
	docs := map[string]string{
		"refund":   "Refund policy. Customers can request a refund within 30 days of purchase.",
		"shipping": "Shipping times. Orders ship within two business days.",
		"returns":  "Returns are accepted for store credit or refund after inspection.",
	}
	for id, text := range docs {
		if err := idx.Add(id, text); err != nil {
			t.Fatalf("Add(%q): %v", id, err)
		}
	}

	s := NewLexical(idx)
	if s.Name() != "lexical" {
		t.Fatalf("Name: got %q", s.Name())
	}

	ids, err := s.Retrieve(context.Background(), `how do I get a "refund"`, 2)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("len(ids): got %d want %d", len(ids), 2)
	}
	if ids[0] != "refund" {
		t.Fatalf("ids[0]: got %q want %q", ids[0], "refund")
	}
}

func TestLexical_EmptyAndErrors(t *testing.T) {
	t.Parallel()

	var snil *Lexical
	if _, err := snil.Retrieve(context.Background(), "q", 1); err == nil {
		t.Fatalf("Retrieve(nil strategy): expected error")
	}
	if _, err := NewLexical(nil).Retrieve(context.Background(), "q", 1); err == nil {
		t.Fatalf("Retrieve(nil index): expected error")
	}

	s := NewLexical(index.NewBM25())
	if ids, err := s.Retrieve(context.Background(), "anything", 3); err != nil || ids != nil {
		t.Fatalf("Retrieve(empty index): ids=%#v err=%v", ids, err)
	}
	if ids, err := s.Retrieve(context.Background(), "q", 0); err != nil || ids != nil {
		t.Fatalf("Retrieve(k=0): ids=%#v err=%v", ids, err)
	}
	if ids, err := s.Retrieve(context.Background(), ` \" `, 3); err != nil || ids != nil {
		t.Fatalf("Retrieve(blank after sanitize): ids=%#v err=%v", ids, err)
	}
}
