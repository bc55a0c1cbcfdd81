// Package report 组装发给模型的提示词，并把模型输出整理成可推送的消息或 HTML 报告。
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/6tail/lunar-go/calendar"

	"github.com/iabetor/dailynews/internal/rss"
)

// NoContentNotice 所有来源都没有当日新闻时推送的提示。
const NoContentNotice = "⚠️ 今天無法抓取新聞，請檢查 RSS 來源。"

// DateLabel 返回形如 2026/02/19 (Thursday) 的日期。
func DateLabel(t time.Time) string {
	return t.Format("2006/01/02 (Monday)")
}

// LunarLabel 返回农历日期及干支生肖，例如 "二〇二六年正月初三 丙午马年"。
func LunarLabel(t time.Time) string {
	lunar := calendar.NewSolarFromDate(t).GetLunar()
	return fmt.Sprintf("%s %s%s年", lunar.String(), lunar.GetYearInGanZhi(), lunar.GetYearShengXiao())
}

// DigestPrompt 把各分类的新闻组合成摘要提示词。now 应为参考时区的当前时间。
func DigestPrompt(d rss.Digest, now time.Time) string {
	var news strings.Builder
	for _, cat := range d.Categories {
		fmt.Fprintf(&news, "\n\n## %s\n", cat.Name)
		for i, it := range cat.Items {
			fmt.Fprintf(&news, "%d. %s\n", i+1, it.Title)
			if it.Description != "" {
				fmt.Fprintf(&news, "   %s\n", it.Description)
			}
		}
	}

	today := DateLabel(now)
	return fmt.Sprintf(`你是一位專業的新聞編輯。以下是今天（%s，農曆 %s）從各大媒體抓取的新聞標題與摘要。

請幫我：
1. 每個分類挑出 3-5 則最重要的新聞
2. 用繁體中文撰寫簡短摘要（每則 1-2 句話）
3. 格式使用 Telegram 支援的 HTML 格式

輸出格式範例：
<b>📰 每日新聞摘要 — %s</b>

<b>🇹🇼 台灣綜合</b>
• <b>標題</b>：一句話摘要
• <b>標題</b>：一句話摘要

（其他分類同上）

結尾加上一句鼓勵的話。

以下是今天的原始新聞：
%s
`, today, LunarLabel(now), today, news.String())
}
