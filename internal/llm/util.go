package llm

import (
	"encoding/json"
	"errors"
	"strings"
)

// Text concatenates the text blocks of a response.
func Text(resp *Response) string {
	if resp == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range resp.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// ParseJSON extracts the first JSON object or array from raw output into out.
// Markdown code fences around the payload are stripped first.
func ParseJSON(raw string, out any) error {
	s := strings.TrimSpace(raw)
	if s == "" {
		return errors.New("empty output")
	}

	if strings.HasPrefix(s, "```") {
		s = strings.TrimSpace(strings.TrimPrefix(s, "```"))
		if strings.HasPrefix(s, "json") {
			s = strings.TrimSpace(strings.TrimPrefix(s, "json"))
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = strings.TrimSpace(s[:idx])
		}
	}

	start, end := jsonSpan(s)
	if start < 0 || end < 0 || start >= end {
		return errors.New("missing JSON payload")
	}

	s = s[start : end+1]
	return json.Unmarshal([]byte(s), out)
}

// jsonSpan locates the outermost object or array, whichever opens first.
func jsonSpan(s string) (int, int) {
	objStart := strings.Index(s, "{")
	arrStart := strings.Index(s, "[")

	switch {
	case objStart < 0 && arrStart < 0:
		return -1, -1
	case arrStart < 0 || (objStart >= 0 && objStart < arrStart):
		return objStart, strings.LastIndex(s, "}")
	default:
		return arrStart, strings.LastIndex(s, "]")
	}
}
