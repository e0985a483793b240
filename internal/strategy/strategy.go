// Package strategy defines retrieval strategies and the registry the
// evaluation driver runs them from.
package strategy

import (
	"context"
	"fmt"
	"strings"
	"unicode"
)

// Strategy retrieves up to k candidate item IDs for a query, best first.
// Implementations own their input sanitization; the driver passes queries
// through untouched.
type Strategy interface {
	Name() string
	Retrieve(ctx context.Context, query string, k int) ([]string, error)
}

// Registry stores strategies by name and preserves registration order.
// Report rows follow that order, so it is part of the output contract.
type Registry struct {
	order  []string
	byName map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]Strategy),
	}
}

func (r *Registry) Register(s Strategy) error {
	if r == nil {
		return fmt.Errorf("strategy: register on nil registry")
	}
	if s == nil {
		return fmt.Errorf("strategy: register nil strategy")
	}
	name := strings.TrimSpace(s.Name())
	if name == "" {
		return fmt.Errorf("strategy: strategy has empty name")
	}
	if r.byName == nil {
		r.byName = make(map[string]Strategy)
	}
	if _, ok := r.byName[name]; ok {
		return fmt.Errorf("strategy: duplicate strategy %q", name)
	}
	r.byName[name] = s
	r.order = append(r.order, name)
	return nil
}

func (r *Registry) Get(name string) (Strategy, bool) {
	if r == nil || r.byName == nil {
		return nil, false
	}
	s, ok := r.byName[strings.TrimSpace(name)]
	return s, ok
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	if r == nil || len(r.order) == 0 {
		return nil
	}
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns the strategies in registration order.
func (r *Registry) All() []Strategy {
	if r == nil || len(r.order) == 0 {
		return nil
	}
	out := make([]Strategy, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.byName[name])
	}
	return out
}

func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

// Sanitize strips characters that break external query syntax (double
// quotes, backslashes, backticks) along with control characters, and
// collapses the remaining whitespace.
func Sanitize(query string) string {
	mapped := strings.Map(func(r rune) rune {
		switch r {
		case '"', '\\', '`':
			return ' '
		}
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, query)
	return strings.Join(strings.Fields(mapped), " ")
}
