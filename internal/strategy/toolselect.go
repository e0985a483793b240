package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/stellarlinkco/rag-eval/internal/llm"
	"github.com/stellarlinkco/rag-eval/internal/toolspec"
)

const toolSelectMaxTokens = 4096

const defaultToolSelectSystem = "Select and call the tools needed to handle the user's request. " +
	"Call only the tools that are necessary. If no tool applies, answer in plain text without calling any tool."

// ToolSelect presents a tool catalog to an LLM provider with the query as
// the user message and returns the names of the tools the model invoked,
// in call order. The result has set semantics; call order matters only for
// rank-sensitive scoring.
type ToolSelect struct {
	provider llm.Provider
	tools    []llm.ToolDefinition
	system   string
}

type ToolSelectOption func(*ToolSelect)

// WithSystemPrompt replaces the default selection instructions.
func WithSystemPrompt(system string) ToolSelectOption {
	return func(s *ToolSelect) {
		if system != "" {
			s.system = system
		}
	}
}

func NewToolSelect(provider llm.Provider, defs []toolspec.Definition, opts ...ToolSelectOption) *ToolSelect {
	s := &ToolSelect{
		provider: provider,
		tools:    toolspec.ToLLMTools(defs),
		system:   defaultToolSelectSystem,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *ToolSelect) Name() string { return "toolselect" }

func (s *ToolSelect) Retrieve(ctx context.Context, query string, k int) ([]string, error) {
	if s == nil || s.provider == nil {
		return nil, errors.New("strategy: toolselect: nil provider")
	}
	if len(s.tools) == 0 {
		return nil, errors.New("strategy: toolselect: empty tool catalog")
	}
	if k <= 0 {
		return nil, nil
	}

	req := &llm.Request{
		Messages:  []llm.Message{{Role: "user", Content: query}},
		MaxTokens: toolSelectMaxTokens,
		System:    s.system,
		Tools:     s.tools,
	}

	res, err := s.provider.CompleteWithTools(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("strategy: toolselect: %w", err)
	}
	if res == nil {
		return nil, errors.New("strategy: toolselect: nil result")
	}

	names := res.ToolNames()
	if len(names) > k {
		names = names[:k]
	}
	return names, nil
}
