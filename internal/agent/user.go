package agent

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Veraticus/receipt-flow/internal/learning"
	"github.com/Veraticus/receipt-flow/internal/model"
)

// TriggerFeedbackLearning turns the user's queued corrections into rules.
// Non-positive limits fall back to the configured defaults.
func (a *Agent) TriggerFeedbackLearning(ctx context.Context, userID string, maxFeedbacks, batchSize int, progress func(done, total int)) (*learning.LearningResult, error) {
	if maxFeedbacks <= 0 {
		maxFeedbacks = a.config.MaxFeedbacks
	}
	if batchSize <= 0 {
		batchSize = a.config.FeedbackBatchSize
	}

	unlock := a.lockUser(userID)
	defer unlock()

	user, err := a.storage.LoadUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	result, err := a.feedback.Run(ctx, user, learning.Options{
		MaxFeedbacks: maxFeedbacks,
		BatchSize:    batchSize,
		Progress:     progress,
	})
	if err != nil {
		return nil, err
	}
	if err := a.storage.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to save rules: %w", err)
	}
	return result, nil
}

// OptimizeProfile rewrites the user's profile from documents uploaded since it last changed.
func (a *Agent) OptimizeProfile(ctx context.Context, userID string, manual bool) (*learning.OptimizationResult, error) {
	unlock := a.lockUser(userID)
	defer unlock()

	user, err := a.storage.LoadUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	result, err := a.optimizer.Optimize(ctx, user, manual)
	if err != nil {
		return nil, err
	}
	if result.Applied {
		if err := a.storage.SaveUser(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to save profile: %w", err)
		}
	}
	return result, nil
}

// UserSummary is a read-only view of a user's learned state.
type UserSummary struct {
	ProfileUpdatedAt        time.Time                       `json:"profile_updated_at" yaml:"profile_updated_at"`
	RulesUpdatedAt          *time.Time                      `json:"rules_updated_at,omitempty" yaml:"rules_updated_at,omitempty"`
	LastProfileOptimization *time.Time                      `json:"last_profile_optimization,omitempty" yaml:"last_profile_optimization,omitempty"`
	Categories              map[model.UserCategory][]string `json:"categories" yaml:"categories"`
	ID                      string                          `json:"user_id" yaml:"user_id"`
	Profile                 []string                        `json:"profile" yaml:"profile"`
	Rules                   []string                        `json:"rules" yaml:"rules"`
	Learning                model.LearningSummary           `json:"learning" yaml:"learning"`
	DocumentCount           int                             `json:"document_count" yaml:"document_count"`
	PendingFeedbacks        int                             `json:"pending_feedbacks" yaml:"pending_feedbacks"`
	ActiveSessions          int                             `json:"active_sessions" yaml:"active_sessions"`
}

// UserSummary reports the user's profile, rules, categories and learning queue.
func (a *Agent) UserSummary(ctx context.Context, userID string) (*UserSummary, error) {
	user, err := a.storage.LoadUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	ids, err := a.storage.ListUserDocuments(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	categories := make(map[model.UserCategory][]string, len(model.UserCategories))
	for _, c := range model.UserCategories {
		categories[c] = user.Categories.Tags(c)
	}

	return &UserSummary{
		ID:                      user.ID,
		Profile:                 slices.Clone(user.Profile.Items),
		ProfileUpdatedAt:        user.Profile.UpdatedAt,
		Rules:                   slices.Clone(user.Rules),
		RulesUpdatedAt:          user.RulesUpdatedAt,
		LastProfileOptimization: user.LastProfileOptimization,
		Categories:              categories,
		Learning:                user.History.Summary(time.Time{}),
		DocumentCount:           len(ids),
		PendingFeedbacks:        len(user.History.Feedbacks),
		ActiveSessions:          len(a.sessions.UserSessions(userID, true)),
	}, nil
}

// CategoryTags returns the user's sub-tags for every category, creating the user if needed.
func (a *Agent) CategoryTags(ctx context.Context, userID string) (model.CategoryTemplate, error) {
	user, err := a.loadOrCreateUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Categories, nil
}

// AddCategoryTag adds a sub-tag to one of the user's categories.
func (a *Agent) AddCategoryTag(ctx context.Context, userID string, category model.UserCategory, tag string) error {
	return a.editCategories(ctx, userID, category, func(t model.CategoryTemplate, c model.UserCategory) error {
		return t.AddTag(c, tag)
	})
}

// RemoveCategoryTag removes a sub-tag from one of the user's categories.
func (a *Agent) RemoveCategoryTag(ctx context.Context, userID string, category model.UserCategory, tag string) error {
	return a.editCategories(ctx, userID, category, func(t model.CategoryTemplate, c model.UserCategory) error {
		return t.RemoveTag(c, tag)
	})
}

func (a *Agent) editCategories(ctx context.Context, userID string, category model.UserCategory, edit func(model.CategoryTemplate, model.UserCategory) error) error {
	c, ok := model.ParseUserCategory(string(category))
	if !ok {
		return fmt.Errorf("%w: %s", model.ErrUnknownCategory, category)
	}

	unlock := a.lockUser(userID)
	defer unlock()

	user, err := a.loadOrCreateUser(ctx, userID)
	if err != nil {
		return err
	}
	if err := edit(user.Categories, c); err != nil {
		return err
	}
	if err := a.storage.SaveUser(ctx, user); err != nil {
		return fmt.Errorf("failed to save categories: %w", err)
	}
	a.logger.Info("Updated category tags", "user_id", userID, "category", c, "tags", len(user.Categories[c]))
	return nil
}
