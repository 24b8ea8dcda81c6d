package prompts

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/receipt-flow/internal/model"
)

func TestBuilder(t *testing.T) {
	b, err := NewBuilder()
	require.NoError(t, err)

	t.Run("check lists every document type", func(t *testing.T) {
		p, err := b.Check()
		require.NoError(t, err)
		for _, dt := range model.DocumentTypes {
			assert.Contains(t, p, string(dt))
		}
		assert.Contains(t, p, "is_document")
	})

	t.Run("recognize appends context only when present", func(t *testing.T) {
		p, err := b.Recognize("")
		require.NoError(t, err)
		assert.NotContains(t, p, "额外信息")

		p, err = b.Recognize("高铁票")
		require.NoError(t, err)
		assert.Contains(t, p, "额外信息")
		assert.Contains(t, p, "高铁票")
	})

	t.Run("classify offers all categories", func(t *testing.T) {
		p, err := b.Classify("西安北 -> 绵阳")
		require.NoError(t, err)
		assert.Contains(t, p, "西安北 -> 绵阳")
		assert.Contains(t, p, "发票/行程单/小票/收据")
		for _, c := range model.UserCategories {
			assert.Contains(t, p, string(c))
		}
	})

	t.Run("tags falls back to defaults", func(t *testing.T) {
		p, err := b.Tags(TagData{Content: "content", Category: model.CategoryTransportation})
		require.NoError(t, err)
		assert.Contains(t, p, "无用户画像信息")
		assert.Contains(t, p, "暂无历史规则")
		assert.Contains(t, p, "交通出行: 暂无标签")

		p, err = b.Tags(TagData{
			Content:  "content",
			Category: model.CategoryTransportation,
			Rules:    []string{"高铁归交通"},
			Tags:     []string{"火车", "打车"},
			Intent:   "出差",
		})
		require.NoError(t, err)
		assert.Contains(t, p, "1. 高铁归交通")
		assert.Contains(t, p, "交通出行: 火车, 打车")
		assert.Contains(t, p, "出差")
	})

	t.Run("structure with and without schema", func(t *testing.T) {
		p, err := b.Structure("text", `{"title":"Itinerary"}`)
		require.NoError(t, err)
		assert.Contains(t, p, "JSON Schema")
		assert.Contains(t, p, `{"title":"Itinerary"}`)

		p, err = b.Structure("text", "")
		require.NoError(t, err)
		assert.Contains(t, p, "未识别到具体票据类型")
	})

	t.Run("rules reduction hint", func(t *testing.T) {
		p, err := b.Rules(RuleData{Cases: []RuleCase{{Summary: "case", Analysis: "why"}}, NeedsReduction: true})
		require.NoError(t, err)
		assert.Contains(t, p, "案例 1")
		assert.Contains(t, p, "暂无现有规则")
		assert.Contains(t, p, "超过20条")

		p, err = b.Rules(RuleData{Rules: "rule_0: a", RuleCount: 1})
		require.NoError(t, err)
		assert.Contains(t, p, "rule_0: a")
		assert.Contains(t, p, "暂无反馈分析")
		assert.Contains(t, p, "未达上限")
	})

	t.Run("profile documents", func(t *testing.T) {
		amount := 12.5
		p, err := b.Profile(ProfileData{
			Documents: []DocumentSummary{{OCRText: "coffee", Type: "小票", Category: "餐饮消费", Amount: &amount}},
		})
		require.NoError(t, err)
		assert.Contains(t, p, "暂无用户画像")
		assert.Contains(t, p, "票据 1")
		assert.Contains(t, p, "¥12.50")
		assert.Contains(t, p, "标签：无")
	})
}
