package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/dailynews/internal/database"
	"github.com/iabetor/dailynews/internal/llm"
	"github.com/iabetor/dailynews/internal/logger"
	"github.com/iabetor/dailynews/internal/report"
	"github.com/iabetor/dailynews/internal/telegram"
)

const (
	dailyIndex   = "index.html"
	dailyTitle   = "VoteFlux 最新戰報"
	weeklyPrefix = "weekly"
	weeklyLatest = "weekly-latest.html"
	weeklyTitle  = "預測市場週報 最新一期"
)

// ReportOptions 市场报告运行参数。
type ReportOptions struct {
	// Prefix 每日戰報的文件名前缀。
	Prefix string
	// DisablePreview 报告链接消息是否关闭网页预览。
	DisablePreview bool
	Location       *time.Location
	Now            func() time.Time
}

// ReportResult 一次报告运行的结果。
type ReportResult struct {
	RunID     string
	Outcome   Outcome
	Published report.Published
	Stage     Stage
}

// Reports 生成并发布每日戰報和週報。
type Reports struct {
	generator llm.Generator
	sender    Sender
	publisher *report.Publisher
	recorder  RunRecorder
	opts      ReportOptions
}

// NewReports 创建报告流程。
func NewReports(generator llm.Generator, sender Sender, publisher *report.Publisher, opts ReportOptions) *Reports {
	if opts.Prefix == "" {
		opts.Prefix = "voteflux"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Reports{
		generator: generator,
		sender:    sender,
		publisher: publisher,
		opts:      opts,
	}
}

// SetRecorder 设置运行记录的保存位置，可为 nil。
func (r *Reports) SetRecorder(rec RunRecorder) {
	r.recorder = rec
}

// Daily 生成每日戰報。模型拒答或输出不完整时推送失败提示并正常结束。
func (r *Reports) Daily(ctx context.Context) (res ReportResult, err error) {
	started := time.Now()
	res = ReportResult{RunID: uuid.NewString()}
	log := logger.With("run_id", res.RunID, "report", "daily")
	sm := newTrackedStageMachine(log)
	defer func() { res.Stage = sm.Current() }()
	defer func() { r.record(ctx, "daily", res, started) }()

	now := r.opts.Now().In(r.opts.Location)
	date := now.Format("2006/01/02")

	sm.Transition(StageGenerating)
	log.Info("[report] 正在生成每日戰報...")
	raw, err := r.generator.Generate(ctx, []llm.Message{llm.User(report.DailyPrompt(now))})
	if err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("生成每日戰報失败: %w", err)
	}

	page := report.StripFence(raw)
	if err := report.CheckHTML(page); err != nil {
		log.Warnf("[report] %v", err)
		res.Outcome = OutcomeRejected
		notice := fmt.Sprintf("⚠️ <b>VoteFlux 每日戰報 — %s</b>\n\n報告產生失敗，請手動檢查。", date)
		return res, r.deliverNotice(ctx, sm, notice)
	}

	pub, err := r.publisher.Publish(r.opts.Prefix, now, page, dailyIndex, dailyTitle)
	if err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		return res, err
	}
	res.Published = pub

	sm.Transition(StageDelivering)
	msg := fmt.Sprintf("🤖 <b>VoteFlux 每日戰報 — %s</b>\n\n🔗 <a href=\"%s\">📖 查看完整報告</a>", date, pub.URL)
	if _, err := r.sender.Send(ctx, telegram.Message{Text: msg, DisablePreview: r.opts.DisablePreview}); err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("推送每日戰報失败: %w", err)
	}
	res.Outcome = OutcomeDelivered
	sm.Transition(StageDone)
	log.Infof("[report] 每日戰報已推送: %s", pub.URL)
	return res, nil
}

// Weekly 生成週報。JSON 无法解析时推送失败提示并正常结束。
func (r *Reports) Weekly(ctx context.Context) (res ReportResult, err error) {
	started := time.Now()
	res = ReportResult{RunID: uuid.NewString()}
	log := logger.With("run_id", res.RunID, "report", "weekly")
	sm := newTrackedStageMachine(log)
	defer func() { res.Stage = sm.Current() }()
	defer func() { r.record(ctx, "weekly", res, started) }()

	now := r.opts.Now().In(r.opts.Location)
	weekRange := report.WeekRange(now)

	sm.Transition(StageGenerating)
	log.Infof("[report] 正在生成週報 (%s)...", weekRange)
	raw, err := r.generator.Generate(ctx, []llm.Message{
		llm.System(report.WeeklySystemPrompt),
		llm.User(report.WeeklyPrompt(now)),
	})
	if err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("生成週報失败: %w", err)
	}

	data, err := report.ParseWeekly(raw)
	if err != nil {
		log.Warnf("[report] %v", err)
		res.Outcome = OutcomeRejected
		notice := fmt.Sprintf("⚠️ <b>預測市場週報 — %s</b>\n\n週報產生失敗，請手動檢查 Action log。", weekRange)
		return res, r.deliverNotice(ctx, sm, notice)
	}

	page, err := report.RenderWeekly(data, now)
	if err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		return res, err
	}
	pub, err := r.publisher.Publish(weeklyPrefix, now, page, weeklyLatest, weeklyTitle)
	if err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		return res, err
	}
	res.Published = pub

	sm.Transition(StageDelivering)
	msg := fmt.Sprintf("🎰 <b>預測市場週報：老司機的真心話</b>\n📅 %s\n\n🔗 <a href=\"%s\">📖 查看完整週報</a>", weekRange, pub.URL)
	if _, err := r.sender.Send(ctx, telegram.Message{Text: msg, DisablePreview: r.opts.DisablePreview}); err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		return res, fmt.Errorf("推送週報失败: %w", err)
	}
	res.Outcome = OutcomeDelivered
	sm.Transition(StageDone)
	log.Infof("[report] 週報已推送: %s", pub.URL)
	return res, nil
}

// deliverNotice 推送失败提示。提示本身发送失败时才返回错误。
func (r *Reports) deliverNotice(ctx context.Context, sm *StageMachine, notice string) error {
	sm.Transition(StageDelivering)
	if _, err := r.sender.Send(ctx, telegram.Message{Text: notice}); err != nil {
		sm.Transition(StageFailed)
		return errors.Join(errors.New("推送失败提示失败"), err)
	}
	sm.Transition(StageDone)
	return nil
}

func (r *Reports) record(ctx context.Context, kind string, res ReportResult, started time.Time) {
	recordRun(ctx, r.recorder, logger.With("run_id", res.RunID), database.Run{
		ID:        res.RunID,
		Kind:      kind,
		Outcome:   string(res.Outcome),
		StartedAt: started,
	})
}
