// Package prompts renders the model prompts used by the document pipeline and
// the learners from embedded templates.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"github.com/Veraticus/receipt-flow/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names.
const (
	tmplCheck     = "check"
	tmplRecognize = "recognize"
	tmplClassify  = "classify"
	tmplIntent    = "intent"
	tmplTags      = "tags"
	tmplStructure = "structure"
	tmplFeedback  = "feedback"
	tmplRules     = "rules"
	tmplProfile   = "profile"
)

// Builder renders prompts from the embedded templates.
type Builder struct {
	templates map[string]*template.Template
}

// NewBuilder parses every embedded template.
func NewBuilder() (*Builder, error) {
	b := &Builder{
		templates: make(map[string]*template.Template),
	}

	funcMap := template.FuncMap{
		"join":         strings.Join,
		"joinOr":       joinOr,
		"inc":          func(i int) int { return i + 1 },
		"formatAmount": formatAmount,
	}

	names := []string{
		tmplCheck, tmplRecognize, tmplClassify, tmplIntent, tmplTags,
		tmplStructure, tmplFeedback, tmplRules, tmplProfile,
	}
	for _, name := range names {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		tmpl, err := template.New(name + ".tmpl").Funcs(funcMap).ParseFS(templateFS, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		b.templates[name] = tmpl
	}

	return b, nil
}

// MustNewBuilder is NewBuilder for package-level initialization.
func MustNewBuilder() *Builder {
	b, err := NewBuilder()
	if err != nil {
		panic(err)
	}
	return b
}

func (b *Builder) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := b.templates[name].ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

type labeled struct {
	Name        string
	Description string
}

func documentTypes() []labeled {
	out := make([]labeled, len(model.DocumentTypes))
	for i, t := range model.DocumentTypes {
		out[i] = labeled{Name: string(t), Description: t.Description()}
	}
	return out
}

func userCategories() []labeled {
	out := make([]labeled, len(model.UserCategories))
	for i, c := range model.UserCategories {
		out[i] = labeled{Name: string(c), Description: c.Description()}
	}
	return out
}

// Check asks the vision model whether the image is a receipt at all.
func (b *Builder) Check() (string, error) {
	return b.render(tmplCheck, struct{ Types []labeled }{Types: documentTypes()})
}

// Recognize asks the vision model to transcribe the receipt into a markdown block.
func (b *Builder) Recognize(extraContext string) (string, error) {
	return b.render(tmplRecognize, struct{ Context string }{Context: extraContext})
}

// Classify asks for the professional and user category of recognized text.
func (b *Builder) Classify(content string) (string, error) {
	typeNames := make([]string, len(model.DocumentTypes))
	for i, t := range model.DocumentTypes {
		typeNames[i] = string(t)
	}
	categoryNames := make([]string, len(model.UserCategories))
	for i, c := range model.UserCategories {
		categoryNames[i] = string(c)
	}

	return b.render(tmplClassify, struct {
		Content       string
		Types         []labeled
		Categories    []labeled
		TypeNames     []string
		CategoryNames []string
	}{
		Content:       content,
		Types:         documentTypes(),
		Categories:    userCategories(),
		TypeNames:     typeNames,
		CategoryNames: categoryNames,
	})
}

// Intent asks for the user's intent behind their accompanying text.
func (b *Builder) Intent(userText string) (string, error) {
	return b.render(tmplIntent, struct{ Text string }{Text: userText})
}

// TagData feeds the tag assignment prompt.
type TagData struct {
	Profile  string
	Content  string
	Intent   string
	Category model.UserCategory
	Rules    []string
	Tags     []string
}

// Tags asks for sub-tags within an already chosen user category.
func (b *Builder) Tags(data TagData) (string, error) {
	return b.render(tmplTags, data)
}

// Structure asks for structured fields. An empty schema requests free-form key/value extraction.
func (b *Builder) Structure(content, schema string) (string, error) {
	return b.render(tmplStructure, struct {
		Content string
		Schema  string
	}{Content: content, Schema: schema})
}

// FeedbackCase describes one user correction for analysis.
type FeedbackCase struct {
	OCRText          string
	TypeReasoning    string
	TagReasoning     string
	OriginalCategory model.UserCategory
	NewCategory      model.UserCategory
	OriginalTags     []string
	NewTags          []string
}

// Feedback asks why the original classification missed the user's expectation.
func (b *Builder) Feedback(c FeedbackCase) (string, error) {
	return b.render(tmplFeedback, c)
}

// RuleCase pairs a case summary with its analysis.
type RuleCase struct {
	Summary  string
	Analysis string
}

// RuleData feeds the rule operation prompt. Rules is the positional listing.
type RuleData struct {
	Rules          string
	Cases          []RuleCase
	RuleCount      int
	MaxRules       int
	NeedsReduction bool
}

// Rules asks for rule list edit operations.
func (b *Builder) Rules(data RuleData) (string, error) {
	if data.MaxRules == 0 {
		data.MaxRules = model.MaxRules
	}
	return b.render(tmplRules, data)
}

// DocumentSummary is the per-document view sent to the profile optimizer.
type DocumentSummary struct {
	Amount   *float64
	OCRText  string
	Type     string
	Category string
	Tags     []string
}

// ProfileData feeds the profile operation prompt. Profile is the positional listing.
type ProfileData struct {
	Profile      string
	Statistics   string
	Documents    []DocumentSummary
	ProfileCount int
}

// Profile asks for profile list edit operations.
func (b *Builder) Profile(data ProfileData) (string, error) {
	return b.render(tmplProfile, data)
}

func joinOr(items []string, sep, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, sep)
}

func formatAmount(amount *float64) string {
	if amount == nil {
		return "未知"
	}
	return "¥" + strconv.FormatFloat(*amount, 'f', 2, 64)
}
