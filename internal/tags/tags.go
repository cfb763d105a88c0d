// Package tags extracts tagged blocks and embedded JSON from LLM output.
//
// Agent outputs are free-form text that should contain blocks like
// <tool_call>{...}</tool_call> or <write_outline>...</write_outline>, but
// models routinely wrap them in prose, markdown fences, or forget the tags
// entirely. The helpers here are deliberately forgiving: they return the
// best candidate they can find and signal failure with ok=false / nil
// instead of errors, so callers can fall through to the next parse strategy.
package tags

import (
	"encoding/json"
	"regexp"
	"strings"
	"sync"
)

var (
	fencedJSONRe = regexp.MustCompile("(?is)```json\\s*\\n?(.*?)\\n?```")
	fencedAnyRe  = regexp.MustCompile("(?s)```\\s*\\n?(.*?)\\n?```")
	// First balanced {...} allowing one level of nesting. Deeper payloads do
	// not occur in tool-call arguments produced by the agents.
	braceRe = regexp.MustCompile(`(?s)\{[^{}]*(?:\{[^{}]*\}[^{}]*)*\}`)

	tagReMu sync.Mutex
	tagRes  = map[string]*regexp.Regexp{}
)

func tagRe(name string) *regexp.Regexp {
	tagReMu.Lock()
	defer tagReMu.Unlock()
	re, ok := tagRes[name]
	if !ok {
		q := regexp.QuoteMeta(name)
		re = regexp.MustCompile(`(?is)<` + q + `>(.*?)</` + q + `>`)
		tagRes[name] = re
	}
	return re
}

// FindTagBlock returns the trimmed body of the first <name>...</name> block.
// Matching is case-insensitive and spans lines.
func FindTagBlock(text, name string) (string, bool) {
	if text == "" {
		return "", false
	}
	m := tagRe(name).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// ExtractJSONObject pulls a single JSON object out of free-form text.
// Strategies, strict to loose: the whole trimmed text if it is brace-delimited,
// a markdown-fenced code block, then the first balanced {...} substring.
// Returns nil when nothing parses as a JSON object.
func ExtractJSONObject(text string) []byte {
	cleaned := strings.TrimSpace(text)
	if cleaned == "" {
		return nil
	}
	if strings.HasPrefix(cleaned, "{") && strings.HasSuffix(cleaned, "}") {
		if isJSONObject(cleaned) {
			return []byte(cleaned)
		}
	}
	m := fencedJSONRe.FindStringSubmatch(cleaned)
	if m == nil {
		m = fencedAnyRe.FindStringSubmatch(cleaned)
	}
	if m != nil {
		inner := strings.TrimSpace(m[1])
		if strings.HasPrefix(inner, "{") && strings.HasSuffix(inner, "}") && isJSONObject(inner) {
			return []byte(inner)
		}
	}
	if cand := braceRe.FindString(cleaned); cand != "" && isJSONObject(cand) {
		return []byte(cand)
	}
	return nil
}

func isJSONObject(s string) bool {
	var v map[string]json.RawMessage
	return json.Unmarshal([]byte(s), &v) == nil
}

// ToolCall is the decoded payload of a <tool_call> block.
type ToolCall struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ParseToolCall decodes a tool-call payload from LLM output. It first looks
// inside <tool_call>...</tool_call>, then falls back to any JSON object in
// the text (models sometimes drop the tags). Returns nil when no valid
// payload is found.
func ParseToolCall(text string) *ToolCall {
	if text == "" {
		return nil
	}
	if block, ok := FindTagBlock(text, "tool_call"); ok {
		if raw := ExtractJSONObject(block); raw != nil {
			var tc ToolCall
			if err := json.Unmarshal(raw, &tc); err == nil {
				return &tc
			}
		}
	}
	if raw := ExtractJSONObject(text); raw != nil {
		var tc ToolCall
		if err := json.Unmarshal(raw, &tc); err == nil {
			return &tc
		}
	}
	return nil
}
