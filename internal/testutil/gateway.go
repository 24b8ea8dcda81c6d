package testutil

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Veraticus/receipt-flow/internal/llm"
)

// Substrings that identify each prompt, for use with MockGateway.On*.
const (
	PromptCheck     = `"is_document"`
	PromptRecognize = "票据文本识别助手"
	PromptClassify  = `"professional_category"`
	PromptIntent    = `"has_explicit_classification"`
	PromptTags      = "子标签"
	PromptStructure = `"structured_data"`
	PromptFeedback  = `"feedback"`
	PromptRules     = `"rule_text"`
	PromptProfile   = `"profile_item"`
)

// Call kinds recorded by MockGateway.
const (
	KindText   = "text"
	KindVision = "vision"
	KindAudio  = "audio"
)

// ErrNoMockResponse is returned for a prompt no rule matches.
var ErrNoMockResponse = errors.New("no mock response configured")

// MockCall records one gateway request.
type MockCall struct {
	Kind   string
	Prompt string
	Format llm.Format
}

type mockRule struct {
	err      error
	respond  func(prompt string) (string, error)
	kind     string
	contains string
	reply    string
}

// MockGateway is a scripted llm.Gateway. Rules match on call kind and a prompt
// substring; the first matching rule answers. It is safe for concurrent use.
type MockGateway struct {
	rules []mockRule
	calls []MockCall
	mu    sync.Mutex
}

// NewMockGateway creates an empty mock.
func NewMockGateway() *MockGateway {
	return &MockGateway{}
}

func (m *MockGateway) add(r mockRule) *MockGateway {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, r)
	return m
}

// OnText answers text completions whose prompt contains substr.
func (m *MockGateway) OnText(substr, reply string) *MockGateway {
	return m.add(mockRule{kind: KindText, contains: substr, reply: reply})
}

// OnTextError fails text completions whose prompt contains substr.
func (m *MockGateway) OnTextError(substr string, err error) *MockGateway {
	return m.add(mockRule{kind: KindText, contains: substr, err: err})
}

// OnTextFunc answers text completions whose prompt contains substr with fn.
func (m *MockGateway) OnTextFunc(substr string, fn func(prompt string) (string, error)) *MockGateway {
	return m.add(mockRule{kind: KindText, contains: substr, respond: fn})
}

// OnVision answers vision requests whose prompt contains substr.
func (m *MockGateway) OnVision(substr, reply string) *MockGateway {
	return m.add(mockRule{kind: KindVision, contains: substr, reply: reply})
}

// OnVisionError fails vision requests whose prompt contains substr.
func (m *MockGateway) OnVisionError(substr string, err error) *MockGateway {
	return m.add(mockRule{kind: KindVision, contains: substr, err: err})
}

// OnAudio answers every transcription request.
func (m *MockGateway) OnAudio(reply string, err error) *MockGateway {
	return m.add(mockRule{kind: KindAudio, reply: reply, err: err})
}

// Extend appends other's rules after the receiver's, so existing rules take precedence.
func (m *MockGateway) Extend(other *MockGateway) *MockGateway {
	other.mu.Lock()
	rules := append([]mockRule(nil), other.rules...)
	other.mu.Unlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, rules...)
	return m
}

// CompleteText implements llm.Gateway.
func (m *MockGateway) CompleteText(_ context.Context, messages []llm.Message, format llm.Format) (string, error) {
	var parts []string
	for _, msg := range messages {
		parts = append(parts, msg.Content)
	}
	return m.answer(KindText, strings.Join(parts, "\n"), format)
}

// CompleteVision implements llm.Gateway.
func (m *MockGateway) CompleteVision(_ context.Context, _, prompt string, format llm.Format) (string, error) {
	return m.answer(KindVision, prompt, format)
}

// TranscribeAudio implements llm.Gateway.
func (m *MockGateway) TranscribeAudio(_ context.Context, audioPath string) (string, error) {
	return m.answer(KindAudio, audioPath, llm.FormatText)
}

func (m *MockGateway) answer(kind, prompt string, format llm.Format) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, MockCall{Kind: kind, Prompt: prompt, Format: format})
	var match *mockRule
	for i := range m.rules {
		r := m.rules[i]
		if r.kind == kind && strings.Contains(prompt, r.contains) {
			match = &r
			break
		}
	}
	m.mu.Unlock()

	switch {
	case match == nil:
		return "", fmt.Errorf("%w for %s prompt", ErrNoMockResponse, kind)
	case match.respond != nil:
		return match.respond(prompt)
	case match.err != nil:
		return "", match.err
	default:
		return match.reply, nil
	}
}

// Calls returns a copy of every recorded request.
func (m *MockGateway) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount counts recorded requests of a kind whose prompt contains substr.
// An empty substr counts every request of the kind.
func (m *MockGateway) CallCount(kind, substr string) int {
	n := 0
	for _, c := range m.Calls() {
		if c.Kind == kind && strings.Contains(c.Prompt, substr) {
			n++
		}
	}
	return n
}
