package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Veraticus/receipt-flow/internal/agent"
	"github.com/Veraticus/receipt-flow/internal/cli"
	"github.com/Veraticus/receipt-flow/internal/learning"
	"github.com/Veraticus/receipt-flow/internal/session"
)

func renderSession(w io.Writer, sess *session.Session) {
	lines := []string{
		cli.FormatField("会话", sess.ID),
		cli.FormatField("状态", string(sess.State)),
	}

	if sess.State == session.StateError {
		lines = append(lines, cli.FormatError(sess.Error))
		fmt.Fprintln(w, cli.RenderBox("处理失败", strings.Join(lines, "\n")))
		return
	}

	if doc := sess.Document; doc != nil {
		amount := ""
		if doc.Amount != nil {
			amount = strconv.FormatFloat(*doc.Amount, 'f', 2, 64)
		}
		date := ""
		if doc.IssuedDate != nil {
			date = *doc.IssuedDate
		}
		lines = append(lines,
			cli.FormatField("票据", doc.ID),
			cli.FormatField("类型", string(doc.Type)),
			cli.FormatField("分类", string(doc.UserCategory)),
			cli.FormatField("标签", strings.Join(doc.Tags, "、")),
			cli.FormatField("金额", amount),
			cli.FormatField("日期", date),
			cli.FormatField("依据", doc.TypeReasoning),
		)
	}
	for _, stage := range sess.Degraded {
		lines = append(lines, cli.FormatWarning(fmt.Sprintf("%s 阶段失败，已使用默认结果", stage)))
	}

	fmt.Fprintln(w, cli.RenderBox("识别结果", strings.Join(lines, "\n")))
}

func renderLearningResult(w io.Writer, result *learning.LearningResult) {
	if result.FeedbackCount == 0 {
		fmt.Fprintln(w, cli.FormatWarning("没有可用于学习的反馈"))
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "反馈 %d 条，请求 %d 次，清空队列 %d 条\n", result.FeedbackCount, result.Requests, result.Cleared)
	if result.Summary != "" {
		b.WriteString(result.Summary + "\n")
	}
	b.WriteString(cli.TitleStyle.Render("当前规则") + "\n")
	writeNumbered(&b, result.Rules)
	fmt.Fprintln(w, cli.RenderBox("规则学习完成", strings.TrimRight(b.String(), "\n")))
}

func renderOptimization(w io.Writer, result *learning.OptimizationResult) {
	if !result.Triggered || result.Skipped {
		fmt.Fprintln(w, cli.FormatWarning(result.Reason))
		return
	}

	var b strings.Builder
	if result.Statistics != nil {
		b.WriteString(result.Statistics.Format() + "\n")
	}
	fmt.Fprintf(&b, "请求 %d 次，操作 %d 条：%s\n", result.Requests, len(result.Operations), result.Reason)
	b.WriteString(cli.TitleStyle.Render("用户画像") + "\n")
	writeNumbered(&b, result.UpdatedProfile)
	fmt.Fprintln(w, cli.RenderBox(cli.ChartIcon+" 画像优化", strings.TrimRight(b.String(), "\n")))
}

func renderUserSummary(w io.Writer, s *agent.UserSummary) {
	var b strings.Builder
	b.WriteString(cli.FormatField("票据", strconv.Itoa(s.DocumentCount)) + "\n")
	b.WriteString(cli.FormatField("待学习", strconv.Itoa(s.PendingFeedbacks)) + "\n")
	b.WriteString(cli.FormatField("活跃会话", strconv.Itoa(s.ActiveSessions)) + "\n")
	b.WriteString(cli.TitleStyle.Render("用户画像") + "\n")
	writeNumbered(&b, s.Profile)
	b.WriteString(cli.TitleStyle.Render("分类规则") + "\n")
	writeNumbered(&b, s.Rules)
	if len(s.Learning.TopTags) > 0 {
		b.WriteString(cli.FormatField("常改标签", strings.Join(s.Learning.TopTags, "、")) + "\n")
	}
	fmt.Fprintln(w, cli.RenderBox("用户 "+s.ID, strings.TrimRight(b.String(), "\n")))
}

func writeNumbered(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString(cli.SubtleStyle.Render("  (空)") + "\n")
		return
	}
	for i, item := range items {
		fmt.Fprintf(b, "  %d. %s\n", i+1, item)
	}
}
