package model

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// MaxTagsPerCategory bounds the sub-tag vocabulary of a single user category.
const MaxTagsPerCategory = 7

// Category template errors.
var (
	ErrTooManyTags     = errors.New("category tag limit reached")
	ErrTagExists       = errors.New("tag already exists")
	ErrTagNotFound     = errors.New("tag not found")
	ErrUnknownCategory = errors.New("unknown user category")
)

// DefaultCategoryTags seeds every new user's category template.
var DefaultCategoryTags = map[UserCategory][]string{
	CategoryDining:                 {"日常用餐消费", "社交聚餐支出", "商务招待费用", "节日庆典餐饮"},
	CategoryShopping:               {"日常生活用品", "服饰鞋帽消费", "数码家电采购", "家居个护支出"},
	CategoryTransportation:         {"日常通勤出行", "差旅商务出行", "长途旅行交通", "车辆维护费用"},
	CategoryHousing:                {"住房固定支出", "生活能源费用", "网络通讯费用", "房屋维修维护"},
	CategoryMedical:                {"诊疗医药支出", "健康保健消费", "医疗保险费用", "紧急医疗支出"},
	CategoryEducationEntertainment: {"学习教育投入", "文化娱乐消费", "运动休闲活动", "兴趣爱好支出"},
	CategorySocial:                 {"礼金礼物支出", "请客孝敬费用", "社交关系维护", "公益捐赠支出"},
	CategoryIncome:                 {"固定工作收入", "额外劳务收入", "投资理财收益", "资金返还收入"},
	CategoryOtherExpense:           {"通讯服务费用", "金融服务支出", "个人生活服务", "特殊意外支出"},
}

// CategoryTemplate maps each user category to its ordered set of allowed sub-tags.
type CategoryTemplate map[UserCategory][]string

// NewCategoryTemplate returns a template seeded with DefaultCategoryTags.
func NewCategoryTemplate() CategoryTemplate {
	t := make(CategoryTemplate, len(DefaultCategoryTags))
	t.Reset("")
	return t
}

// Tags returns a copy of the sub-tags allowed for a category.
func (t CategoryTemplate) Tags(c UserCategory) []string {
	return slices.Clone(t[c])
}

// HasTag reports whether the category allows the tag.
func (t CategoryTemplate) HasTag(c UserCategory, tag string) bool {
	return slices.Contains(t[c], tag)
}

// AddTag adds a sub-tag to a category, enforcing MaxTagsPerCategory.
func (t CategoryTemplate) AddTag(c UserCategory, tag string) error {
	tag = strings.TrimSpace(tag)
	if _, ok := DefaultCategoryTags[c]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownCategory, c)
	}
	if tag == "" {
		return fmt.Errorf("tag cannot be empty")
	}
	if t.HasTag(c, tag) {
		return fmt.Errorf("%w: %s", ErrTagExists, tag)
	}
	if len(t[c]) >= MaxTagsPerCategory {
		return fmt.Errorf("%w: %s already has %d tags", ErrTooManyTags, c, MaxTagsPerCategory)
	}
	t[c] = append(t[c], tag)
	return nil
}

// RemoveTag removes a sub-tag from a category.
func (t CategoryTemplate) RemoveTag(c UserCategory, tag string) error {
	idx := slices.Index(t[c], tag)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTagNotFound, tag)
	}
	t[c] = slices.Delete(t[c], idx, idx+1)
	return nil
}

// RenameTag replaces a sub-tag in place.
func (t CategoryTemplate) RenameTag(c UserCategory, oldTag, newTag string) error {
	idx := slices.Index(t[c], oldTag)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrTagNotFound, oldTag)
	}
	if oldTag != newTag && t.HasTag(c, newTag) {
		return fmt.Errorf("%w: %s", ErrTagExists, newTag)
	}
	t[c][idx] = newTag
	return nil
}

// Reset restores the defaults for one category, or for all of them when c is empty.
func (t CategoryTemplate) Reset(c UserCategory) {
	if c != "" {
		t[c] = slices.Clone(DefaultCategoryTags[c])
		return
	}
	for cat, tags := range DefaultCategoryTags {
		t[cat] = slices.Clone(tags)
	}
}
