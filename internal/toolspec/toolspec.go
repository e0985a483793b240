// Package toolspec describes tool catalogs for tool-selection evaluation.
// Definitions are declared in YAML or JSON and rendered into OpenAI-style
// function schemas, so the same catalog drives every provider.
package toolspec

import (
	"fmt"
	"strings"

	"github.com/stellarlinkco/rag-eval/internal/llm"
)

// Param describes one input parameter of a tool.
type Param struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty" json:"required,omitempty"`
	Items       *Param `yaml:"items,omitempty" json:"items,omitempty"`
}

// Definition is one callable tool. With Strict set, the rendered schema
// carries the required list, additionalProperties:false, and nullable type
// arrays on optional parameters.
type Definition struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description,omitempty" json:"description,omitempty"`
	Strict      bool    `yaml:"strict,omitempty" json:"strict,omitempty"`
	Params      []Param `yaml:"params,omitempty" json:"params,omitempty"`
}

// Catalog is a named set of tool definitions evaluated together.
type Catalog struct {
	Name  string       `yaml:"name" json:"name"`
	Tools []Definition `yaml:"tools" json:"tools"`
}

var validParamTypes = map[string]bool{
	"string":  true,
	"integer": true,
	"number":  true,
	"boolean": true,
	"array":   true,
	"object":  true,
}

func (d Definition) describe() string {
	if desc := strings.TrimSpace(d.Description); desc != "" {
		return desc
	}
	return fmt.Sprintf("Function %s", d.Name)
}

// InputSchema renders the parameters object of the function schema.
func (d Definition) InputSchema() map[string]any {
	properties := make(map[string]any, len(d.Params))
	required := make([]string, 0, len(d.Params))
	for _, p := range d.Params {
		properties[p.Name] = p.schema(d.Strict)
		if d.Strict && p.Required {
			required = append(required, p.Name)
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if d.Strict {
		out["required"] = required
		out["additionalProperties"] = false
	}
	return out
}

// Schema renders the full OpenAI-style function schema.
func (d Definition) Schema() map[string]any {
	return map[string]any{
		"type":        "function",
		"name":        d.Name,
		"description": d.describe(),
		"parameters":  d.InputSchema(),
		"strict":      d.Strict,
	}
}

func (p Param) schema(strict bool) map[string]any {
	var out map[string]any
	switch p.Type {
	case "array":
		items := map[string]any{"type": "object"}
		if p.Items != nil {
			items = p.Items.schema(false)
		}
		out = map[string]any{"type": "array", "items": items}
	case "object", "":
		out = map[string]any{"type": "object"}
	default:
		out = map[string]any{"type": p.Type}
	}

	if desc := strings.TrimSpace(p.Description); desc != "" {
		out["description"] = desc
	}

	// Optional parameters accept null under strict schemas. Objects stay
	// plain, mirroring how untyped inputs are rendered.
	if strict && !p.Required {
		if t, ok := out["type"].(string); ok && t != "object" {
			out["type"] = []string{t, "null"}
		}
	}

	return out
}

// Names returns the tool names in catalog order.
func (c *Catalog) Names() []string {
	if c == nil || len(c.Tools) == 0 {
		return nil
	}
	out := make([]string, 0, len(c.Tools))
	for _, d := range c.Tools {
		out = append(out, d.Name)
	}
	return out
}

// Schemas renders every tool in catalog order.
func (c *Catalog) Schemas() []map[string]any {
	if c == nil || len(c.Tools) == 0 {
		return nil
	}
	out := make([]map[string]any, 0, len(c.Tools))
	for _, d := range c.Tools {
		out = append(out, d.Schema())
	}
	return out
}

// ToLLMTools bridges the catalog into provider tool definitions.
func ToLLMTools(defs []Definition) []llm.ToolDefinition {
	if len(defs) == 0 {
		return nil
	}
	out := make([]llm.ToolDefinition, 0, len(defs))
	for _, d := range defs {
		out = append(out, llm.ToolDefinition{
			Name:        d.Name,
			Description: d.describe(),
			InputSchema: d.InputSchema(),
		})
	}
	return out
}
