package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iabetor/dailynews/internal/llm"
	"github.com/iabetor/dailynews/internal/report"
	"github.com/iabetor/dailynews/internal/telegram"
)

const pagesURL = "https://example.github.io/dailynews/reports"

func newTestReports(t *testing.T, gen *stubGenerator) (*Reports, *stubSender, *stubRecorder, string) {
	t.Helper()
	dir := t.TempDir()
	sender := &stubSender{}
	recorder := &stubRecorder{}
	r := NewReports(gen, sender, report.NewPublisher(dir, pagesURL), ReportOptions{
		Location: taipei,
		Now:      fixedNow,
	})
	r.SetRecorder(recorder)
	return r, sender, recorder, dir
}

func dailyPage() string {
	return "<!DOCTYPE html>\n<html><head><title>VoteFlux</title></head><body>" +
		strings.Repeat("<p>市場分析</p>", 40) + "</body></html>"
}

func TestDailyReportPublishesAndSendsLink(t *testing.T) {
	gen := &stubGenerator{reply: "```html\n" + dailyPage() + "\n```"}
	r, sender, recorder, dir := newTestReports(t, gen)

	res, err := r.Daily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)
	assert.Equal(t, StageDone, res.Stage)

	require.Len(t, gen.calls, 1)
	assert.Contains(t, gen.calls[0][0].Content, "2026/02/19")

	page, err := os.ReadFile(filepath.Join(dir, "voteflux-2026-02-19.html"))
	require.NoError(t, err)
	assert.Equal(t, dailyPage(), string(page))

	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(index), "voteflux-2026-02-19.html")
	assert.Contains(t, string(index), "VoteFlux 最新戰報")

	assert.Equal(t, pagesURL+"/voteflux-2026-02-19.html", res.Published.URL)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "🤖 <b>VoteFlux 每日戰報 — 2026/02/19</b>\n\n🔗 <a href=\""+res.Published.URL+"\">📖 查看完整報告</a>", msg.Text)
	assert.False(t, msg.DisablePreview)

	require.Len(t, recorder.runs, 1)
	assert.Equal(t, "daily", recorder.runs[0].Kind)
	assert.Equal(t, "delivered", recorder.runs[0].Outcome)
}

func TestDailyReportRefusalSendsNotice(t *testing.T) {
	gen := &stubGenerator{reply: "I'm sorry, I can't help with that."}
	r, sender, recorder, dir := newTestReports(t, gen)

	res, err := r.Daily(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	assert.Equal(t, StageDone, res.Stage)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "⚠️ <b>VoteFlux 每日戰報 — 2026/02/19</b>\n\n報告產生失敗，請手動檢查。", sender.sent[0].Text)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Equal(t, "rejected", recorder.runs[0].Outcome)
}

func TestDailyReportGenerationError(t *testing.T) {
	gen := &stubGenerator{err: &llm.APIError{Provider: "gemini", StatusCode: 500, Body: "boom"}}
	r, sender, _, _ := newTestReports(t, gen)

	res, err := r.Daily(context.Background())
	require.Error(t, err)
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, StageFailed, res.Stage)
	assert.Empty(t, sender.sent)
}

func TestDailyReportNoticeDeliveryFailure(t *testing.T) {
	gen := &stubGenerator{reply: "抱歉"}
	r, sender, _, _ := newTestReports(t, gen)
	sender.err = telegram.ErrAllRecipientsFailed

	_, err := r.Daily(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, telegram.ErrAllRecipientsFailed)
}

const weeklyJSON = "```json\n" + `{
  "weekly_vibe": {"headline": "資金往體育盤集中", "details": ["NBA 盤口流動性創新高", "選舉盤降溫"]},
  "price_comparison": [{"topic": "Fed 三月降息", "comparison": "Polymarket 32% / Kalshi 29%", "verdict": "價差 3%，可套利"}],
  "social_noise": [{"title": "鯨魚出貨", "story": "某地址單日賣出 200 萬美元"}],
  "veteran_strategy": [{"event": "超級盃", "signal": "賠率異動", "verdict": "可以埋伏：小注試水"}]
}` + "\n```"

func TestWeeklyReportPublishesAndSendsLink(t *testing.T) {
	gen := &stubGenerator{reply: weeklyJSON}
	r, sender, recorder, dir := newTestReports(t, gen)

	res, err := r.Weekly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeDelivered, res.Outcome)

	require.Len(t, gen.calls, 1)
	require.Len(t, gen.calls[0], 2)
	assert.Equal(t, report.WeeklySystemPrompt, gen.calls[0][0].Content)

	page, err := os.ReadFile(filepath.Join(dir, "weekly-2026-02-19.html"))
	require.NoError(t, err)
	assert.Contains(t, string(page), "資金往體育盤集中")
	assert.Contains(t, string(page), "2026/02/13 ~ 2026/02/19")

	latest, err := os.ReadFile(filepath.Join(dir, "weekly-latest.html"))
	require.NoError(t, err)
	assert.Contains(t, string(latest), "weekly-2026-02-19.html")
	assert.Contains(t, string(latest), "預測市場週報 最新一期")

	require.Len(t, sender.sent, 1)
	assert.Equal(t,
		"🎰 <b>預測市場週報：老司機的真心話</b>\n📅 2026/02/13 ~ 2026/02/19\n\n🔗 <a href=\""+pagesURL+"/weekly-2026-02-19.html\">📖 查看完整週報</a>",
		sender.sent[0].Text)
	assert.Equal(t, "weekly", recorder.runs[0].Kind)
}

func TestWeeklyReportBadJSONSendsNotice(t *testing.T) {
	gen := &stubGenerator{reply: "這週沒什麼好說的"}
	r, sender, _, dir := newTestReports(t, gen)

	res, err := r.Weekly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "⚠️ <b>預測市場週報 — 2026/02/13 ~ 2026/02/19</b>\n\n週報產生失敗，請手動檢查 Action log。", sender.sent[0].Text)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestWeeklyReportMissingVibeSendsNotice(t *testing.T) {
	gen := &stubGenerator{reply: `{"price_comparison": []}`}
	r, sender, _, _ := newTestReports(t, gen)

	res, err := r.Weekly(context.Background())
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, res.Outcome)
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "週報產生失敗")
}
