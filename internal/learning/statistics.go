package learning

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/receipt-flow/internal/model"
)

// AmountBuckets are the single-document amount ranges, in display order.
var AmountBuckets = []string{"0-50", "50-100", "100-500", "500-1000", "1000+"}

const (
	frequentTagLimit   = 20
	promptTagLimit     = 10
	daysPerMonth       = 30.0
	minimumMonthWindow = 1.0
)

// CategoryShare is a category's document count and its share of its group.
type CategoryShare struct {
	Count      int     `json:"count" yaml:"count"`
	Percentage float64 `json:"percentage" yaml:"percentage"`
}

// Statistics aggregates the documents uploaded since the profile last changed.
type Statistics struct {
	Earliest            time.Time                            `json:"earliest" yaml:"earliest"`
	Latest              time.Time                            `json:"latest" yaml:"latest"`
	ExpenseDistribution map[model.UserCategory]CategoryShare `json:"expense_distribution" yaml:"expense_distribution"`
	IncomeDistribution  map[model.UserCategory]CategoryShare `json:"income_distribution" yaml:"income_distribution"`
	AmountDistribution  map[string]int                       `json:"amount_distribution" yaml:"amount_distribution"`
	FrequentTags        []string                             `json:"frequent_tags" yaml:"frequent_tags"`
	TotalDocuments      int                                  `json:"total_documents" yaml:"total_documents"`
	MonthlyExpense      float64                              `json:"monthly_expense" yaml:"monthly_expense"`
	MonthlyIncome       float64                              `json:"monthly_income" yaml:"monthly_income"`
	Months              float64                              `json:"months" yaml:"months"`
}

// CollectStatistics aggregates documents uploaded strictly after since.
// Amounts only count when positive; the month span is at least one.
func CollectStatistics(docs []*model.Document, since time.Time) Statistics {
	stats := Statistics{
		ExpenseDistribution: make(map[model.UserCategory]CategoryShare),
		IncomeDistribution:  make(map[model.UserCategory]CategoryShare),
		AmountDistribution:  make(map[string]int, len(AmountBuckets)),
		Months:              minimumMonthWindow,
	}
	for _, bucket := range AmountBuckets {
		stats.AmountDistribution[bucket] = 0
	}

	var (
		expenseCounts = make(map[model.UserCategory]int)
		incomeCounts  = make(map[model.UserCategory]int)
		tagCounts     = make(map[string]int)
		totalExpense  float64
		totalIncome   float64
	)

	for _, doc := range docs {
		if !doc.UploadTime.After(since) {
			continue
		}
		stats.TotalDocuments++

		if doc.UserCategory != "" {
			if doc.UserCategory.IsIncome() {
				incomeCounts[doc.UserCategory]++
			} else {
				expenseCounts[doc.UserCategory]++
			}
		}
		for _, tag := range doc.Tags {
			tagCounts[tag]++
		}

		if doc.Amount != nil && *doc.Amount > 0 {
			if doc.UserCategory.IsIncome() {
				totalIncome += *doc.Amount
			} else {
				totalExpense += *doc.Amount
			}
			stats.AmountDistribution[amountBucket(*doc.Amount)]++
		}

		if stats.Earliest.IsZero() || doc.UploadTime.Before(stats.Earliest) {
			stats.Earliest = doc.UploadTime
		}
		if doc.UploadTime.After(stats.Latest) {
			stats.Latest = doc.UploadTime
		}
	}

	if stats.TotalDocuments == 0 {
		return stats
	}

	days := float64(int(stats.Latest.Sub(stats.Earliest).Hours() / 24))
	stats.Months = max(minimumMonthWindow, days/daysPerMonth)
	stats.MonthlyExpense = totalExpense / stats.Months
	stats.MonthlyIncome = totalIncome / stats.Months
	stats.ExpenseDistribution = shares(expenseCounts)
	stats.IncomeDistribution = shares(incomeCounts)
	stats.FrequentTags = model.TopCounts(tagCounts, frequentTagLimit)
	return stats
}

func amountBucket(amount float64) string {
	switch {
	case amount < 50:
		return "0-50"
	case amount < 100:
		return "50-100"
	case amount < 500:
		return "100-500"
	case amount < 1000:
		return "500-1000"
	default:
		return "1000+"
	}
}

func shares(counts map[model.UserCategory]int) map[model.UserCategory]CategoryShare {
	total := 0
	for _, n := range counts {
		total += n
	}
	out := make(map[model.UserCategory]CategoryShare, len(counts))
	for c, n := range counts {
		out[c] = CategoryShare{Count: n, Percentage: float64(n) / float64(total) * 100}
	}
	return out
}

// Format renders the statistics for the profile prompt.
func (s Statistics) Format() string {
	var b strings.Builder
	fmt.Fprintf(&b, "总票据数：%d\n", s.TotalDocuments)

	writeShares := func(title string, dist map[model.UserCategory]CategoryShare) {
		if len(dist) == 0 {
			return
		}
		fmt.Fprintf(&b, "\n%s：\n", title)
		for _, c := range sortedCategories(dist) {
			share := dist[c]
			fmt.Fprintf(&b, "  - %s: %d张 (%.1f%%)\n", c, share.Count, share.Percentage)
		}
	}
	writeShares("支出类别分布", s.ExpenseDistribution)
	writeShares("收入类别分布", s.IncomeDistribution)

	fmt.Fprintf(&b, "\n月均总支出：¥%.2f\n", s.MonthlyExpense)
	fmt.Fprintf(&b, "月均总收入：¥%.2f\n", s.MonthlyIncome)

	b.WriteString("\n单笔金额分布：\n")
	for _, bucket := range AmountBuckets {
		fmt.Fprintf(&b, "  - %s元: %d张\n", bucket, s.AmountDistribution[bucket])
	}

	if len(s.FrequentTags) > 0 {
		tags := s.FrequentTags[:min(promptTagLimit, len(s.FrequentTags))]
		fmt.Fprintf(&b, "\n高频标签（前%d）：%s\n", promptTagLimit, strings.Join(tags, ", "))
	}
	return strings.TrimRight(b.String(), "\n")
}

// sortedCategories orders categories by count descending, then by display order.
func sortedCategories(dist map[model.UserCategory]CategoryShare) []model.UserCategory {
	cats := make([]model.UserCategory, 0, len(dist))
	for c := range dist {
		cats = append(cats, c)
	}
	order := make(map[model.UserCategory]int, len(model.UserCategories))
	for i, c := range model.UserCategories {
		order[c] = i
	}
	sort.Slice(cats, func(i, j int) bool {
		if dist[cats[i]].Count != dist[cats[j]].Count {
			return dist[cats[i]].Count > dist[cats[j]].Count
		}
		return order[cats[i]] < order[cats[j]]
	})
	return cats
}
