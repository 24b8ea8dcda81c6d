package oplog

import "strings"

// DecodeSpec names the payload keys used by one list flavor in model output.
type DecodeSpec struct {
	// PayloadKey holds the object carrying the new text, e.g. "rule".
	PayloadKey string
	// TextKey is the text field inside the payload object, e.g. "rule_text".
	TextKey string
	// TextFallback allows Delete to address an entry by its text when the id is unusable.
	TextFallback bool
}

// RuleDecodeSpec matches {"type": "...", "rule_id": "rule_N", "rule": {"rule_text": "..."}, "merge_rule_ids": [...]}.
var RuleDecodeSpec = DecodeSpec{PayloadKey: "rule", TextKey: "rule_text", TextFallback: true}

// ProfileDecodeSpec matches {"type": "...", "profile_id": "profile_N", "profile_item": {"text": "..."}, "merge_profile_ids": [...]}.
var ProfileDecodeSpec = DecodeSpec{PayloadKey: "profile_item", TextKey: "text"}

// Decode converts the "operations" array of a model response into Operations.
// Unknown kinds and unusable ids are dropped.
func (e Engine) Decode(raw []any, keys DecodeSpec) []Operation {
	ops := make([]Operation, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if op, ok := e.decodeOne(m, keys); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

func (e Engine) decodeOne(m map[string]any, keys DecodeSpec) (Operation, bool) {
	kind := Kind(strings.ToLower(strings.TrimSpace(stringValue(m["type"]))))
	text := payloadText(m, keys)
	id := stringValue(m[e.Prefix+"_id"])

	switch kind {
	case Add:
		return Operation{Kind: Add, Text: text}, text != ""
	case Delete:
		if idx, ok := e.ParseID(id); ok {
			return Operation{Kind: Delete, Index: idx}, true
		}
		if keys.TextFallback && text != "" {
			return Operation{Kind: Delete, Index: -1, Text: text}, true
		}
		return Operation{}, false
	case Modify:
		idx, ok := e.ParseID(id)
		if !ok || text == "" {
			return Operation{}, false
		}
		return Operation{Kind: Modify, Index: idx, Text: text}, true
	case Merge:
		ids, _ := m["merge_"+e.Prefix+"_ids"].([]any)
		var indices []int
		for _, v := range ids {
			if idx, ok := e.ParseID(stringValue(v)); ok {
				indices = append(indices, idx)
			}
		}
		if len(indices) == 0 || text == "" {
			return Operation{}, false
		}
		return Operation{Kind: Merge, Indices: indices, Text: text}, true
	default:
		return Operation{}, false
	}
}

// Texts returns the new text carried by Add, Modify and Merge operations.
func Texts(ops []Operation) []string {
	var out []string
	for _, op := range ops {
		switch op.Kind {
		case Add, Modify, Merge:
			if op.Text != "" {
				out = append(out, op.Text)
			}
		}
	}
	return out
}

func payloadText(m map[string]any, keys DecodeSpec) string {
	payload, ok := m[keys.PayloadKey].(map[string]any)
	if !ok {
		return ""
	}
	return strings.TrimSpace(stringValue(payload[keys.TextKey]))
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}
