package model

import (
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
)

// FeedbackSource records who produced a classification change.
type FeedbackSource string

// Feedback sources.
const (
	SourceManual     FeedbackSource = "用户手动"
	SourceSuggestion FeedbackSource = "AI建议"
)

// ClassificationFeedback records a user's correction of a proposed classification.
type ClassificationFeedback struct {
	Timestamp            time.Time      `json:"timestamp"`
	ID                   string         `json:"id"`
	DocumentID           string         `json:"document_id"`
	OriginalCategory     DocumentType   `json:"original_category"`
	OriginalUserCategory UserCategory   `json:"original_user_category,omitempty"`
	NewCategory          DocumentType   `json:"new_category"`
	NewUserCategory      UserCategory   `json:"new_user_category,omitempty"`
	Source               FeedbackSource `json:"source"`
	OriginalTags         []string       `json:"original_tags"`
	NewTags              []string       `json:"new_tags"`
}

// NewFeedback creates a feedback record stamped with a fresh id and the current time.
func NewFeedback(documentID string, source FeedbackSource) ClassificationFeedback {
	return ClassificationFeedback{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Timestamp:  time.Now(),
		Source:     source,
	}
}

// CategoryChanged reports whether the professional category changed.
func (f ClassificationFeedback) CategoryChanged() bool {
	return f.OriginalCategory != f.NewCategory
}

// UserCategoryChanged reports whether the user category changed.
func (f ClassificationFeedback) UserCategoryChanged() bool {
	return f.OriginalUserCategory != f.NewUserCategory
}

// TagsChanged compares tags as sets.
func (f ClassificationFeedback) TagsChanged() bool {
	a := slices.Clone(f.OriginalTags)
	b := slices.Clone(f.NewTags)
	slices.Sort(a)
	slices.Sort(b)
	return !slices.Equal(slices.Compact(a), slices.Compact(b))
}

// Changed reports whether any part of the classification differs.
func (f ClassificationFeedback) Changed() bool {
	return f.CategoryChanged() || f.UserCategoryChanged() || f.TagsChanged()
}

// AddedTags returns tags present only in the new classification.
func (f ClassificationFeedback) AddedTags() []string {
	var added []string
	for _, tag := range f.NewTags {
		if !slices.Contains(f.OriginalTags, tag) {
			added = append(added, tag)
		}
	}
	return added
}

// RemovedTags returns tags dropped by the user.
func (f ClassificationFeedback) RemovedTags() []string {
	var removed []string
	for _, tag := range f.OriginalTags {
		if !slices.Contains(f.NewTags, tag) {
			removed = append(removed, tag)
		}
	}
	return removed
}

// LearningHistory is the queue of feedback awaiting rule induction.
type LearningHistory struct {
	Feedbacks []ClassificationFeedback `json:"feedbacks"`
}

// Add appends a feedback record.
func (h *LearningHistory) Add(f ClassificationFeedback) {
	h.Feedbacks = append(h.Feedbacks, f)
}

// Recent returns up to limit records, newest first. A non-positive limit returns all.
func (h *LearningHistory) Recent(limit int) []ClassificationFeedback {
	out := slices.Clone(h.Feedbacks)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Clear drops every queued record and reports how many were removed.
func (h *LearningHistory) Clear() int {
	n := len(h.Feedbacks)
	h.Feedbacks = nil
	return n
}

// TagUsage counts how often each tag appears in corrected classifications since a point in time.
// A zero since counts everything.
func (h *LearningHistory) TagUsage(since time.Time) map[string]int {
	usage := make(map[string]int)
	for _, f := range h.Feedbacks {
		if !since.IsZero() && f.Timestamp.Before(since) {
			continue
		}
		for _, tag := range f.NewTags {
			usage[tag]++
		}
	}
	return usage
}

// LearningSummary aggregates the feedback queue.
type LearningSummary struct {
	SourceCounts        map[FeedbackSource]int `json:"source_counts" yaml:"source_counts"`
	TopTags             []string               `json:"top_tags" yaml:"top_tags"`
	TotalFeedbacks      int                    `json:"total_feedbacks" yaml:"total_feedbacks"`
	CategoryChanges     int                    `json:"category_changes" yaml:"category_changes"`
	UserCategoryChanges int                    `json:"user_category_changes" yaml:"user_category_changes"`
	TagChanges          int                    `json:"tag_changes" yaml:"tag_changes"`
}

// Summary reports what the queue contains for feedback recorded since a point in time.
func (h *LearningHistory) Summary(since time.Time) LearningSummary {
	summary := LearningSummary{SourceCounts: make(map[FeedbackSource]int)}
	for _, f := range h.Feedbacks {
		if !since.IsZero() && f.Timestamp.Before(since) {
			continue
		}
		summary.TotalFeedbacks++
		summary.SourceCounts[f.Source]++
		if f.CategoryChanged() {
			summary.CategoryChanges++
		}
		if f.UserCategoryChanged() {
			summary.UserCategoryChanges++
		}
		if f.TagsChanged() {
			summary.TagChanges++
		}
	}
	summary.TopTags = TopCounts(h.TagUsage(since), 10)
	return summary
}

// TopCounts returns up to n keys ordered by count descending, ties broken by key.
func TopCounts(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if n > 0 && len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
