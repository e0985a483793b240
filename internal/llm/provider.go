package llm

import "context"

// Provider is a chat-completion backend used for tool-selection evaluation
// and synthetic query generation. Evaluation is single-turn throughout: the
// interesting output is which tools the model picked, not a conversation.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req *Request) (*Response, error)
	CompleteWithTools(ctx context.Context, req *Request) (*CallResult, error)
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	InputSchema map[string]any `json:"input_schema"`
}

type ToolUse struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

type Request struct {
	Messages    []Message
	System      string
	MaxTokens   int
	Temperature float64
	Tools       []ToolDefinition
}

type ContentBlock struct {
	Type  string         `json:"type"` // "text" or "tool_use"
	Text  string         `json:"text,omitempty"`
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`
}

type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type Response struct {
	Content    []ContentBlock
	Usage      Usage
	StopReason string
}

// CallResult is one completed call with its extracted text, tool calls, and
// accounting. ToolNames is what tool-selection strategies score against the
// expected set.
type CallResult struct {
	Response     *Response
	TextContent  string
	ToolCalls    []ToolUse
	LatencyMs    int64
	InputTokens  int
	OutputTokens int
	Error        error
}

// ToolNames returns the distinct called tool names in call order.
func (r *CallResult) ToolNames() []string {
	if r == nil || len(r.ToolCalls) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(r.ToolCalls))
	out := make([]string, 0, len(r.ToolCalls))
	for _, tc := range r.ToolCalls {
		if tc.Name == "" {
			continue
		}
		if _, ok := seen[tc.Name]; ok {
			continue
		}
		seen[tc.Name] = struct{}{}
		out = append(out, tc.Name)
	}
	return out
}
