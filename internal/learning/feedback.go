package learning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/oplog"
	"github.com/Veraticus/receipt-flow/internal/prompts"
)

// Feedback learning defaults.
const (
	DefaultMaxFeedbacks = 50
	DefaultBatchSize    = 10
)

// DefaultLearningSummary is reported when no window produced a summary.
const DefaultLearningSummary = "已生成分类规则"

// Options tunes a feedback learning run.
type Options struct {
	// Progress is called after each window with the number of windows done and the total.
	Progress     func(done, total int)
	MaxFeedbacks int
	BatchSize    int
}

// LearningResult reports what a run changed.
type LearningResult struct {
	Summary string `json:"summary" yaml:"summary"`
	// Rules is the rule list after the run.
	Rules []string `json:"rules" yaml:"rules"`
	// NewRules holds the text of every added, modified or merged rule.
	NewRules []string `json:"new_rules" yaml:"new_rules"`
	// FeedbackCount is the number of usable cases analyzed.
	FeedbackCount int `json:"feedback_count" yaml:"feedback_count"`
	// Requests is the number of rule-operation requests issued.
	Requests int `json:"requests" yaml:"requests"`
	// Cleared is the number of queued feedback records consumed.
	Cleared int `json:"cleared" yaml:"cleared"`
}

// FeedbackLearner induces classification rules from a user's corrections.
type FeedbackLearner struct {
	gateway llm.Gateway
	docs    Documents
	prompts *prompts.Builder
	logger  *slog.Logger
	now     func() time.Time
}

// NewFeedbackLearner creates a learner. gateway should be the secondary backend.
func NewFeedbackLearner(gateway llm.Gateway, docs Documents, builder *prompts.Builder, logger *slog.Logger) *FeedbackLearner {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedbackLearner{
		gateway: gateway,
		docs:    docs,
		prompts: builder,
		logger:  logger,
		now:     time.Now,
	}
}

type feedbackCase struct {
	doc      *model.Document
	feedback model.ClassificationFeedback
}

// Run consumes the user's feedback queue and updates user.Rules in place.
// The queue is cleared even when individual requests fail; the caller persists the user.
func (l *FeedbackLearner) Run(ctx context.Context, user *model.User, opts Options) (*LearningResult, error) {
	if opts.MaxFeedbacks <= 0 {
		opts.MaxFeedbacks = DefaultMaxFeedbacks
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	logger := l.logger.With("user_id", user.ID)

	cases, err := l.loadCases(ctx, user, opts.MaxFeedbacks)
	if err != nil {
		return nil, err
	}
	logger.Info("Starting feedback learning", "cases", len(cases), "batch_size", opts.BatchSize)

	result := &LearningResult{FeedbackCount: len(cases)}
	rules := slices.Clone(user.Rules)
	var summaries []string

	total := windows(len(cases), opts.BatchSize)
	for w := range total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := w * opts.BatchSize
		window := cases[start:min(start+opts.BatchSize, len(cases))]

		analyses := l.analyzeWindow(ctx, window)
		if len(analyses) == 0 {
			logger.Warn("No analyses in window, skipping", "window", w+1)
			l.progress(opts, w+1, total)
			continue
		}

		result.Requests++
		ops, summary, err := l.requestRules(ctx, rules, analyses)
		if err != nil {
			logger.Error("Rule operation request failed, skipping window", "window", w+1, "error", err)
			l.progress(opts, w+1, total)
			continue
		}

		rules = oplog.RuleEngine.Apply(rules, ops)
		result.NewRules = append(result.NewRules, oplog.Texts(ops)...)
		if summary != "" {
			summaries = append(summaries, summary)
		}
		logger.Info("Applied rule operations", "window", w+1, "cases", len(window), "operations", len(ops), "rules", len(rules))
		l.progress(opts, w+1, total)
	}

	user.SetRules(rules, l.now())
	result.Rules = slices.Clone(rules)
	result.Cleared = user.History.Clear()
	result.Summary = DefaultLearningSummary
	if len(summaries) > 0 {
		result.Summary = strings.Join(summaries, "\n\n")
	}

	logger.Info("Feedback learning complete", "rules", len(rules), "requests", result.Requests, "cleared", result.Cleared)
	return result, nil
}

func (l *FeedbackLearner) progress(opts Options, done, total int) {
	if opts.Progress != nil {
		opts.Progress(done, total)
	}
}

// loadCases pairs the newest feedback with its document. Feedback whose
// document cannot be loaded or lacks either reasoning string is dropped.
func (l *FeedbackLearner) loadCases(ctx context.Context, user *model.User, limit int) ([]feedbackCase, error) {
	var cases []feedbackCase
	for _, f := range user.History.Recent(limit) {
		doc, err := l.docs.LoadDocument(ctx, user.ID, f.DocumentID)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			l.logger.Warn("Skipping feedback with unloadable document", "document_id", f.DocumentID, "error", err)
			continue
		}
		if doc.TypeReasoning == "" || doc.TagReasoning == "" {
			l.logger.Debug("Skipping feedback without reasoning", "document_id", f.DocumentID)
			continue
		}
		cases = append(cases, feedbackCase{feedback: f, doc: doc})
	}
	return cases, nil
}

// analyzeWindow asks for one analysis per case concurrently and keeps the
// successful ones in case order.
func (l *FeedbackLearner) analyzeWindow(ctx context.Context, window []feedbackCase) []prompts.RuleCase {
	analyses := make([]string, len(window))
	var g errgroup.Group
	for i, c := range window {
		g.Go(func() error {
			analysis, err := l.analyze(ctx, c)
			if err != nil {
				l.logger.Warn("Feedback analysis failed", "document_id", c.doc.ID, "error", err)
				return nil
			}
			analyses[i] = analysis
			return nil
		})
	}
	_ = g.Wait()

	var out []prompts.RuleCase
	for i, analysis := range analyses {
		if analysis == "" {
			continue
		}
		out = append(out, prompts.RuleCase{Summary: caseSummary(window[i]), Analysis: analysis})
	}
	return out
}

func (l *FeedbackLearner) analyze(ctx context.Context, c feedbackCase) (string, error) {
	prompt, err := l.prompts.Feedback(prompts.FeedbackCase{
		OCRText:          c.doc.RecognizedText,
		TypeReasoning:    c.doc.TypeReasoning,
		TagReasoning:     c.doc.TagReasoning,
		OriginalCategory: c.feedback.OriginalUserCategory,
		NewCategory:      c.feedback.NewUserCategory,
		OriginalTags:     c.feedback.OriginalTags,
		NewTags:          c.feedback.NewTags,
	})
	if err != nil {
		return "", err
	}
	data, err := complete(ctx, l.gateway, learnerAnalysis, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(llm.String(data, "feedback", "")), nil
}

func (l *FeedbackLearner) requestRules(ctx context.Context, rules []string, cases []prompts.RuleCase) ([]oplog.Operation, string, error) {
	prompt, err := l.prompts.Rules(prompts.RuleData{
		Rules:          oplog.RuleEngine.Format(rules),
		Cases:          cases,
		RuleCount:      len(rules),
		MaxRules:       model.MaxRules,
		NeedsReduction: len(rules) >= model.MaxRules,
	})
	if err != nil {
		return nil, "", err
	}
	ops, data, err := requestOperations(ctx, l.gateway, learnerRules, prompt, oplog.RuleEngine, oplog.RuleDecodeSpec)
	if err != nil {
		return nil, "", err
	}
	return ops, llm.String(data, "summary", ""), nil
}

func caseSummary(c feedbackCase) string {
	f := c.feedback
	return fmt.Sprintf("票据类型：%s；原分类：%s（%s）；用户修改为：%s（%s）",
		c.doc.Type,
		orUnclassified(string(f.OriginalUserCategory)), joinTags(f.OriginalTags),
		orUnclassified(string(f.NewUserCategory)), joinTags(f.NewTags))
}

func joinTags(tags []string) string {
	if len(tags) == 0 {
		return "无标签"
	}
	return strings.Join(tags, ", ")
}

func orUnclassified(s string) string {
	if s == "" {
		return "未分类"
	}
	return s
}
