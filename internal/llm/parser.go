package llm

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

const fence = "```"

// ExtractBlock returns the body of the first fenced block tagged lang.
// Without one it falls back to the first fenced block of any language,
// and finally to the whole trimmed text.
func ExtractBlock(text, lang string) string {
	if lang != "" {
		if body, ok := taggedBlock(text, lang); ok {
			return body
		}
	}
	if body, ok := anyBlock(text); ok {
		return body
	}
	return strings.TrimSpace(text)
}

// ExtractMarkdown pulls the recognized document text out of a vision response.
// The block content is returned verbatim apart from surrounding whitespace.
func ExtractMarkdown(text string) string {
	return ExtractBlock(text, "markdown")
}

// ParseJSON leniently decodes a JSON object from a model response.
// It never fails: unparseable content yields an empty map, and a non-object
// payload is wrapped as {"data": payload}.
func ParseJSON(text string) map[string]any {
	payload := ExtractBlock(text, "json")
	if payload == "" {
		return map[string]any{}
	}

	value, ok := decodeStrict(payload)
	if !ok {
		value, ok = decodeLenient(payload)
	}
	if !ok {
		return map[string]any{}
	}

	if obj, isObj := value.(map[string]any); isObj {
		return obj
	}
	return map[string]any{"data": value}
}

func taggedBlock(text, lang string) (string, bool) {
	open := fence + lang
	start := strings.Index(text, open)
	for start >= 0 {
		rest := text[start+len(open):]
		// Reject ```jsonc when asked for ```json.
		if rest == "" || rest[0] == '\n' || rest[0] == '\r' || rest[0] == ' ' || rest[0] == '\t' {
			end := strings.Index(rest, fence)
			if end < 0 {
				return "", false
			}
			return strings.TrimSpace(rest[:end]), true
		}
		next := strings.Index(rest, open)
		if next < 0 {
			break
		}
		start = start + len(open) + next
	}
	return "", false
}

func anyBlock(text string) (string, bool) {
	start := strings.Index(text, fence)
	if start < 0 {
		return "", false
	}
	rest := text[start+len(fence):]

	// Skip an info string such as "JSON" or "yaml" on the opening line.
	if nl := strings.IndexByte(rest, '\n'); nl >= 0 && isInfoString(rest[:nl]) {
		rest = rest[nl+1:]
	}

	end := strings.Index(rest, fence)
	if end < 0 {
		return "", false
	}
	return strings.TrimSpace(rest[:end]), true
}

func isInfoString(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-' || r == '_' || r == '+') {
			return false
		}
	}
	return true
}

func decodeStrict(payload string) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(payload)))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, false
	}
	return normalizeNumbers(value), true
}

func decodeLenient(payload string) (any, bool) {
	var value any
	if err := json5.Unmarshal([]byte(doubleQuote(payload)), &value); err != nil {
		return nil, false
	}
	return value, true
}

// doubleQuote rewrites single-quoted strings as double-quoted ones, which the
// json5 decoder does not read on its own. Double-quoted strings and line
// comments pass through untouched.
func doubleQuote(payload string) string {
	if !strings.ContainsRune(payload, '\'') {
		return payload
	}

	var b strings.Builder
	b.Grow(len(payload) + 8)
	runes := []rune(payload)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '"':
			end := stringEnd(runes, i, '"')
			b.WriteString(string(runes[i:end]))
			i = end - 1
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			end := i
			for end < len(runes) && runes[end] != '\n' {
				end++
			}
			b.WriteString(string(runes[i:end]))
			i = end - 1
		case r == '\'':
			end := stringEnd(runes, i, '\'')
			b.WriteByte('"')
			for j := i + 1; j < end; j++ {
				c := runes[j]
				switch {
				case c == '\\' && j+1 < end && runes[j+1] == '\'':
					b.WriteRune('\'')
					j++
				case c == '\\' && j+1 < end:
					b.WriteRune(c)
					b.WriteRune(runes[j+1])
					j++
				case c == '"':
					b.WriteString(`\"`)
				case c == '\'' && j == end-1:
					// closing quote
				default:
					b.WriteRune(c)
				}
			}
			b.WriteByte('"')
			i = end - 1
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stringEnd returns the index just past the quote closing the string that
// opens at start. An unterminated string runs to the end of input.
func stringEnd(runes []rune, start int, quote rune) int {
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			i++
		case quote:
			return i + 1
		}
	}
	return len(runes)
}

// normalizeNumbers converts json.Number leaves to float64 so both decoders
// hand back the same shapes.
func normalizeNumbers(v any) any {
	switch val := v.(type) {
	case json.Number:
		f, err := val.Float64()
		if err != nil {
			return val.String()
		}
		return f
	case map[string]any:
		for k, item := range val {
			val[k] = normalizeNumbers(item)
		}
		return val
	case []any:
		for i, item := range val {
			val[i] = normalizeNumbers(item)
		}
		return val
	default:
		return v
	}
}

// String reads a string field, returning def when absent or mistyped.
func String(m map[string]any, key, def string) string {
	if s, ok := m[key].(string); ok {
		return s
	}
	return def
}

// Bool reads a boolean field. String values "true"/"false" are accepted.
func Bool(m map[string]any, key string, def bool) bool {
	switch v := m[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			return true
		case "false", "no", "0":
			return false
		}
	}
	return def
}

// StringSlice reads an array of strings, skipping non-string members.
// A bare string is treated as a one-element list.
func StringSlice(m map[string]any, key string) []string {
	switch v := m[key].(type) {
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case []string:
		return v
	case string:
		if strings.TrimSpace(v) != "" {
			return []string{strings.TrimSpace(v)}
		}
	}
	return nil
}

// Map reads a nested object.
func Map(m map[string]any, key string) map[string]any {
	if obj, ok := m[key].(map[string]any); ok {
		return obj
	}
	return nil
}

// Slice reads an array of arbitrary values.
func Slice(m map[string]any, key string) []any {
	if arr, ok := m[key].([]any); ok {
		return arr
	}
	return nil
}
