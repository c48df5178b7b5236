package connector

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FlattenToolUse renders a tool invocation as searchable prose:
// "[Tool: Read] path=/foo key=val". Keys are sorted for determinism.
func FlattenToolUse(name string, input map[string]any) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[Tool: %s]", name)

	keys := make([]string, 0, len(input))
	for k := range input {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		fmt.Fprintf(&b, " %s=%s", k, formatToolValue(input[k]))
	}
	return b.String()
}

// FlattenToolResult renders a tool's result as searchable prose.
func FlattenToolResult(name string, isError bool, content string) string {
	status := ""
	if isError {
		status = " (error)"
	}
	return fmt.Sprintf("[Tool Result: %s]%s %s", name, status, content)
}

func formatToolValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

// ExtractTextContent handles the common shape where tool-result content is
// either a bare string or an array of {"type":"text","text":"..."} objects,
// the same ambiguity the Claude Code format exhibits.
func ExtractTextContent(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case []any:
		var parts []string
		for _, item := range c {
			if m, ok := item.(map[string]any); ok {
				if text, ok := m["text"].(string); ok {
					parts = append(parts, text)
				}
			}
		}
		return strings.Join(parts, "\n")
	case nil:
		return ""
	default:
		b, err := json.Marshal(c)
		if err != nil {
			return fmt.Sprintf("%v", c)
		}
		return string(b)
	}
}
