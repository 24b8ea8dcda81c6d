package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassificationFeedback_Changes(t *testing.T) {
	f := ClassificationFeedback{
		OriginalCategory:     DocumentReceiptSlip,
		NewCategory:          DocumentReceiptSlip,
		OriginalUserCategory: CategoryDining,
		NewUserCategory:      CategorySocial,
		OriginalTags:         []string{"a", "b"},
		NewTags:              []string{"b", "c"},
	}

	assert.False(t, f.CategoryChanged())
	assert.True(t, f.UserCategoryChanged())
	assert.True(t, f.TagsChanged())
	assert.True(t, f.Changed())
	assert.Equal(t, []string{"c"}, f.AddedTags())
	assert.Equal(t, []string{"a"}, f.RemovedTags())

	same := ClassificationFeedback{OriginalTags: []string{"x", "y"}, NewTags: []string{"y", "x"}}
	assert.False(t, same.TagsChanged())
	assert.False(t, same.Changed())
}

func TestLearningHistory(t *testing.T) {
	base := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	var h LearningHistory
	for i := range 5 {
		f := NewFeedback("doc", SourceManual)
		f.Timestamp = base.Add(time.Duration(i) * time.Hour)
		f.NewTags = []string{"t"}
		h.Add(f)
	}

	recent := h.Recent(3)
	assert.Len(t, recent, 3)
	assert.Equal(t, base.Add(4*time.Hour), recent[0].Timestamp)
	assert.Equal(t, base.Add(2*time.Hour), recent[2].Timestamp)

	assert.Equal(t, map[string]int{"t": 2}, h.TagUsage(base.Add(3*time.Hour)))

	summary := h.Summary(time.Time{})
	assert.Equal(t, 5, summary.TotalFeedbacks)
	assert.Equal(t, 5, summary.SourceCounts[SourceManual])
	assert.Equal(t, []string{"t"}, summary.TopTags)

	assert.Equal(t, 5, h.Clear())
	assert.Empty(t, h.Feedbacks)
}

func TestTopCounts(t *testing.T) {
	counts := map[string]int{"b": 2, "a": 2, "c": 5, "d": 1}
	assert.Equal(t, []string{"c", "a", "b"}, TopCounts(counts, 3))
	assert.Len(t, TopCounts(counts, 0), 4)
}
