// Package oplog applies model-generated edit operations to short, positionally
// addressed text lists such as classification rules and profile items.
package oplog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind is the type of an edit operation.
type Kind string

// Operation kinds.
const (
	Add    Kind = "add"
	Delete Kind = "delete"
	Modify Kind = "modify"
	Merge  Kind = "merge"
)

// Operation is one edit against the list as it stands when the operation runs.
// Index addresses Delete and Modify; Indices addresses Merge. A Delete with a
// negative Index removes the entry whose text equals Text.
type Operation struct {
	Kind    Kind   `json:"type" yaml:"type"`
	Text    string `json:"text,omitempty" yaml:"text,omitempty"`
	Indices []int  `json:"indices,omitempty" yaml:"indices,omitempty"`
	Index   int    `json:"index" yaml:"index"`
}

// Engine applies operations for one list flavor.
type Engine struct {
	// Prefix names positional ids, e.g. "rule" renders "rule_0".
	Prefix string
	// Cap truncates the list after a batch. Zero means unbounded.
	Cap int
	// DedupAdds makes Add and Merge skip text already present.
	DedupAdds bool
}

// RuleEngine edits classification rules: duplicates allowed, at most 20 entries.
var RuleEngine = Engine{Prefix: "rule", Cap: 20}

// ProfileEngine edits profile items: duplicate text is never appended.
var ProfileEngine = Engine{Prefix: "profile", DedupAdds: true}

// Apply returns a new list with ops applied in order. current is not modified.
// Out-of-bounds indices are skipped rather than reported; indices are never
// renormalized mid-batch, so a stale index after an earlier removal addresses
// whatever now sits at that position.
func (e Engine) Apply(current []string, ops []Operation) []string {
	list := slices.Clone(current)
	if list == nil {
		list = []string{}
	}

	for _, op := range ops {
		switch op.Kind {
		case Add:
			list = e.appendText(list, op.Text)
		case Delete:
			list = e.delete(list, op)
		case Modify:
			if op.Text != "" && inBounds(list, op.Index) {
				list[op.Index] = op.Text
			}
		case Merge:
			list = e.merge(list, op)
		}
	}

	if e.Cap > 0 && len(list) > e.Cap {
		list = list[:e.Cap]
	}
	return list
}

func (e Engine) appendText(list []string, text string) []string {
	if text == "" {
		return list
	}
	if e.DedupAdds && slices.Contains(list, text) {
		return list
	}
	return append(list, text)
}

func (e Engine) delete(list []string, op Operation) []string {
	if op.Index < 0 {
		if op.Text == "" {
			return list
		}
		if i := slices.Index(list, op.Text); i >= 0 {
			return slices.Delete(list, i, i+1)
		}
		return list
	}
	if !inBounds(list, op.Index) {
		return list
	}
	return slices.Delete(list, op.Index, op.Index+1)
}

func (e Engine) merge(list []string, op Operation) []string {
	if op.Text == "" {
		return list
	}

	var valid []int
	for _, idx := range op.Indices {
		if inBounds(list, idx) && !slices.Contains(valid, idx) {
			valid = append(valid, idx)
		}
	}
	if len(valid) == 0 {
		return list
	}

	slices.Sort(valid)
	slices.Reverse(valid)
	for _, idx := range valid {
		list = slices.Delete(list, idx, idx+1)
	}
	return e.appendText(list, op.Text)
}

func inBounds(list []string, idx int) bool {
	return idx >= 0 && idx < len(list)
}

// ID renders the positional id for index i.
func (e Engine) ID(i int) string {
	return fmt.Sprintf("%s_%d", e.Prefix, i)
}

// ParseID extracts the index from a positional id such as "rule_3".
func (e Engine) ParseID(id string) (int, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(id), e.Prefix+"_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Format renders the list with positional ids, one entry per line.
func (e Engine) Format(list []string) string {
	var b strings.Builder
	for i, item := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", e.ID(i), item)
	}
	return b.String()
}
