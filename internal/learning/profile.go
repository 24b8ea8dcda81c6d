package learning

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sort"
	"time"

	"github.com/Veraticus/receipt-flow/internal/llm"
	"github.com/Veraticus/receipt-flow/internal/model"
	"github.com/Veraticus/receipt-flow/internal/oplog"
	"github.com/Veraticus/receipt-flow/internal/prompts"
)

// Profile optimization defaults.
const (
	DefaultMaxDocuments     = 100
	DefaultDocumentBatch    = 10
	ReasonManual            = "手动触发"
	ReasonNotTriggered      = "不满足触发条件，仅支持手动触发"
	ReasonNothingToLearn    = "画像更新后没有新的票据"
	ReasonNoChanges         = "未发现需要优化的地方"
	ReasonProfileOptimized  = "画像已更新"
	unknownDocumentProperty = "未知"
)

// OptimizationResult reports a profile optimization attempt.
type OptimizationResult struct {
	Statistics     *Statistics       `json:"statistics,omitempty" yaml:"statistics,omitempty"`
	Reason         string            `json:"reason" yaml:"reason"`
	UpdatedProfile []string          `json:"updated_profile" yaml:"updated_profile"`
	Operations     []oplog.Operation `json:"operations" yaml:"operations"`
	Requests       int               `json:"requests" yaml:"requests"`
	Triggered      bool              `json:"triggered" yaml:"triggered"`
	Skipped        bool              `json:"skipped" yaml:"skipped"`
	Applied        bool              `json:"applied" yaml:"applied"`
}

// ProfileOptimizer rewrites a user's profile from their recent documents.
type ProfileOptimizer struct {
	gateway llm.Gateway
	docs    Documents
	prompts *prompts.Builder
	logger  *slog.Logger
	now     func() time.Time
	// MaxDocuments bounds how many recent documents are sent to the model.
	MaxDocuments int
	// BatchSize is the number of documents per request.
	BatchSize int
}

// NewProfileOptimizer creates an optimizer. gateway should be the secondary backend.
func NewProfileOptimizer(gateway llm.Gateway, docs Documents, builder *prompts.Builder, logger *slog.Logger) *ProfileOptimizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileOptimizer{
		gateway:      gateway,
		docs:         docs,
		prompts:      builder,
		logger:       logger,
		now:          time.Now,
		MaxDocuments: DefaultMaxDocuments,
		BatchSize:    DefaultDocumentBatch,
	}
}

// Optimize runs a manual optimization. It updates user.Profile in place when
// any operation was applied; the caller persists the user.
func (o *ProfileOptimizer) Optimize(ctx context.Context, user *model.User, manual bool) (*OptimizationResult, error) {
	if !manual {
		return &OptimizationResult{Reason: ReasonNotTriggered, UpdatedProfile: slices.Clone(user.Profile.Items)}, nil
	}
	logger := o.logger.With("user_id", user.ID)
	result := &OptimizationResult{Triggered: true, Reason: ReasonManual}

	docs, err := o.loadDocuments(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	since := user.Profile.UpdatedAt
	stats := CollectStatistics(docs, since)
	result.Statistics = &stats
	if stats.TotalDocuments == 0 {
		logger.Info("No documents since last profile update, skipping optimization", "since", since)
		result.Skipped = true
		result.Reason = ReasonNothingToLearn
		result.UpdatedProfile = slices.Clone(user.Profile.Items)
		return result, nil
	}

	recent := recentSince(docs, since, o.maxDocuments())
	batch := o.batchSize()
	profile := slices.Clone(user.Profile.Items)
	statistics := stats.Format()

	total := windows(len(recent), batch)
	for w := range total {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := w * batch
		window := recent[start:min(start+batch, len(recent))]

		result.Requests++
		ops, err := o.requestProfile(ctx, profile, statistics, window)
		if err != nil {
			logger.Error("Profile operation request failed, skipping window", "window", w+1, "error", err)
			continue
		}
		profile = oplog.ProfileEngine.Apply(profile, ops)
		result.Operations = append(result.Operations, ops...)
		logger.Info("Applied profile operations", "window", w+1, "documents", len(window), "operations", len(ops), "items", len(profile))
	}

	result.UpdatedProfile = profile
	if len(result.Operations) == 0 {
		result.Reason = ReasonNoChanges
		return result, nil
	}

	now := o.now()
	user.Profile.Replace(profile, now)
	user.LastProfileOptimization = &now
	result.Applied = true
	result.Reason = ReasonProfileOptimized
	logger.Info("Profile optimized", "operations", len(result.Operations), "items", len(profile))
	return result, nil
}

func (o *ProfileOptimizer) maxDocuments() int {
	if o.MaxDocuments <= 0 {
		return DefaultMaxDocuments
	}
	return o.MaxDocuments
}

func (o *ProfileOptimizer) batchSize() int {
	if o.BatchSize <= 0 {
		return DefaultDocumentBatch
	}
	return o.BatchSize
}

func (o *ProfileOptimizer) loadDocuments(ctx context.Context, userID string) ([]*model.Document, error) {
	ids, err := o.docs.ListUserDocuments(ctx, userID)
	if err != nil {
		return nil, err
	}
	docs := make([]*model.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := o.docs.LoadDocument(ctx, userID, id)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			o.logger.Warn("Skipping unloadable document", "document_id", id, "error", err)
			continue
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// recentSince returns up to limit documents uploaded after since, newest first.
func recentSince(docs []*model.Document, since time.Time, limit int) []*model.Document {
	var out []*model.Document
	for _, doc := range docs {
		if doc.UploadTime.After(since) {
			out = append(out, doc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].UploadTime.After(out[j].UploadTime)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (o *ProfileOptimizer) requestProfile(ctx context.Context, profile []string, statistics string, window []*model.Document) ([]oplog.Operation, error) {
	summaries := make([]prompts.DocumentSummary, len(window))
	for i, doc := range window {
		summaries[i] = prompts.DocumentSummary{
			OCRText:  doc.RecognizedText,
			Type:     orUnknown(string(doc.Type)),
			Category: orUnknown(string(doc.UserCategory)),
			Tags:     doc.Tags,
			Amount:   doc.Amount,
		}
	}
	prompt, err := o.prompts.Profile(prompts.ProfileData{
		Profile:      oplog.ProfileEngine.Format(profile),
		Statistics:   statistics,
		Documents:    summaries,
		ProfileCount: len(profile),
	})
	if err != nil {
		return nil, err
	}
	ops, _, err := requestOperations(ctx, o.gateway, learnerProfile, prompt, oplog.ProfileEngine, oplog.ProfileDecodeSpec)
	return ops, err
}

func orUnknown(s string) string {
	if s == "" {
		return unknownDocumentProperty
	}
	return s
}
