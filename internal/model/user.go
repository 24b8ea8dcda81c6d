package model

import (
	"slices"
	"strings"
	"time"
)

// MaxRules bounds the classification rule list.
const MaxRules = 20

// NoProfileSummary is rendered when a user has no profile items yet.
const NoProfileSummary = "无用户画像信息"

// Profile is an ordered list of short natural-language facts about a user.
type Profile struct {
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Items     []string  `json:"items"`
}

// Summary renders the profile as a bulleted list for prompts.
func (p Profile) Summary() string {
	if len(p.Items) == 0 {
		return NoProfileSummary
	}
	lines := make([]string, len(p.Items))
	for i, item := range p.Items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// Replace swaps in a new item list and stamps UpdatedAt.
func (p *Profile) Replace(items []string, now time.Time) {
	p.Items = slices.Clone(items)
	p.UpdatedAt = now
}

// User is the long-lived aggregate that owns profile, categories, feedback and rules.
type User struct {
	CreatedAt               time.Time        `json:"created_at"`
	RulesUpdatedAt          *time.Time       `json:"rules_updated_at,omitempty"`
	LastProfileOptimization *time.Time       `json:"last_profile_optimization,omitempty"`
	Categories              CategoryTemplate `json:"categories"`
	ID                      string           `json:"id"`
	History                 LearningHistory  `json:"history"`
	DocumentIDs             []string         `json:"document_ids"`
	Rules                   []string         `json:"rules"`
	Profile                 Profile          `json:"profile"`
}

// NewUser creates a user with the default category template.
func NewUser(id string, profileItems ...string) *User {
	now := time.Now()
	return &User{
		ID:         id,
		CreatedAt:  now,
		Categories: NewCategoryTemplate(),
		Profile: Profile{
			Items:     slices.Clone(profileItems),
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// AddDocument records ownership of a document id.
func (u *User) AddDocument(id string) {
	if id != "" && !slices.Contains(u.DocumentIDs, id) {
		u.DocumentIDs = append(u.DocumentIDs, id)
	}
}

// RemoveDocument drops a document id.
func (u *User) RemoveDocument(id string) bool {
	idx := slices.Index(u.DocumentIDs, id)
	if idx < 0 {
		return false
	}
	u.DocumentIDs = slices.Delete(u.DocumentIDs, idx, idx+1)
	return true
}

// RecordFeedback appends a correction to the learning queue and returns its id.
func (u *User) RecordFeedback(f ClassificationFeedback) string {
	u.History.Add(f)
	return f.ID
}

// SetRules replaces the rule list and stamps RulesUpdatedAt.
func (u *User) SetRules(rules []string, now time.Time) {
	u.Rules = slices.Clone(rules)
	u.RulesUpdatedAt = &now
}

// RecommendedTags returns the category's allowed tags ranked by how often corrections used them.
func (u *User) RecommendedTags(c UserCategory, n int) []string {
	usage := u.History.TagUsage(time.Time{})
	allowed := make(map[string]int)
	for _, tag := range u.Categories.Tags(c) {
		if count := usage[tag]; count > 0 {
			allowed[tag] = count
		}
	}
	return TopCounts(allowed, n)
}
