// Package pipeline 串联抓取、去重、生成和推送，对应一次由外部定时触发的运行。
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iabetor/dailynews/internal/database"
	"github.com/iabetor/dailynews/internal/llm"
	"github.com/iabetor/dailynews/internal/logger"
	"github.com/iabetor/dailynews/internal/report"
	"github.com/iabetor/dailynews/internal/rss"
	"github.com/iabetor/dailynews/internal/seen"
	"github.com/iabetor/dailynews/internal/telegram"
)

// Outcome 一次运行的结果类型。
type Outcome string

const (
	// OutcomeDelivered 摘要已推送。
	OutcomeDelivered Outcome = "delivered"
	// OutcomeNoContent 没有任何当日新闻，已推送提示而未调用模型。
	OutcomeNoContent Outcome = "no_content"
	// OutcomeRejected 模型输出不可用，已推送失败提示。
	OutcomeRejected Outcome = "rejected"
	// OutcomeFailed 生成或推送失败。
	OutcomeFailed Outcome = "failed"
)

// Sender 推送消息。*telegram.Sender 实现了该接口。
type Sender interface {
	Send(ctx context.Context, msg telegram.Message) (telegram.Result, error)
}

// RunRecorder 保存运行记录。*database.DB 实现了该接口。
type RunRecorder interface {
	RecordRun(ctx context.Context, r database.Run) error
}

// Collector 按分类收集新闻。*rss.Aggregator 实现了该接口。
type Collector interface {
	Collect(ctx context.Context, categories []rss.CategoryFeeds, filter rss.ItemFilter) rss.Digest
}

// DigestOptions 新闻摘要运行参数。
type DigestOptions struct {
	Categories []rss.CategoryFeeds
	// Manual 手动触发：不过滤已推播标题，也不写入记录。
	Manual       bool
	SystemPrompt string
	Location     *time.Location
	// Now 为 nil 时使用 time.Now。
	Now func() time.Time
}

// Result 一次运行的结果。
type Result struct {
	RunID   string
	Outcome Outcome
	Digest  rss.Digest
	// Recorded 本次推送的标题是否已写入已推播记录。
	Recorded bool
	Stage    Stage
}

// Digest 每日新闻摘要。
type Digest struct {
	collector Collector
	dedup     *seen.Deduplicator
	generator llm.Generator
	sender    Sender
	recorder  RunRecorder
	opts      DigestOptions
}

// NewDigest 创建新闻摘要流程。
func NewDigest(collector Collector, dedup *seen.Deduplicator, generator llm.Generator, sender Sender, opts DigestOptions) *Digest {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Digest{
		collector: collector,
		dedup:     dedup,
		generator: generator,
		sender:    sender,
		opts:      opts,
	}
}

// SetRecorder 设置运行记录的保存位置，可为 nil。
func (d *Digest) SetRecorder(r RunRecorder) {
	d.recorder = r
}

// Run 执行一次完整运行：
// 读取记录 → 抓取过滤 → 没有内容时推送提示 → 生成摘要 → 推送 → 推送成功后保存记录。
// 推送失败时已推播记录保持不变。
func (d *Digest) Run(ctx context.Context) (res Result, err error) {
	started := time.Now()
	res = Result{RunID: uuid.NewString()}
	log := logger.With("run_id", res.RunID)
	sm := newTrackedStageMachine(log)
	defer func() { res.Stage = sm.Current() }()

	sm.Transition(StageCollecting)
	seenSet := d.dedup.Load(ctx)
	log.Infof("[pipeline] 已记录 %d 则推播过的新闻", seenSet.Len())

	var filter rss.ItemFilter
	if d.opts.Manual {
		log.Info("[pipeline] 手动触发模式，不做去重")
	} else {
		filter = func(items []rss.Item) []rss.Item { return seen.Filter(items, seenSet) }
	}

	res.Digest = d.collector.Collect(ctx, d.opts.Categories, filter)
	total := res.Digest.Total()
	log.Infof("[pipeline] 今天共抓取 %d 则新闻，%d 个来源失败", total, len(res.Digest.Failed))

	if total == 0 {
		sm.Transition(StageDelivering)
		res.Outcome = OutcomeNoContent
		_, err := d.sender.Send(ctx, telegram.Message{Text: report.NoContentNotice, DisablePreview: true})
		if err != nil {
			sm.Transition(StageFailed)
			res.Outcome = OutcomeFailed
			d.record(ctx, log, res, started)
			return res, fmt.Errorf("推送无内容提示失败: %w", err)
		}
		sm.Transition(StageDone)
		d.record(ctx, log, res, started)
		return res, nil
	}

	sm.Transition(StageGenerating)
	now := d.opts.Now().In(d.opts.Location)
	messages := []llm.Message{
		llm.System(d.opts.SystemPrompt),
		llm.User(report.DigestPrompt(res.Digest, now)),
	}
	summary, err := d.generator.Generate(ctx, messages)
	if err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		d.record(ctx, log, res, started)
		return res, fmt.Errorf("生成摘要失败: %w", err)
	}

	sm.Transition(StageDelivering)
	if _, err := d.sender.Send(ctx, telegram.Message{Text: telegram.Truncate(summary), DisablePreview: true}); err != nil {
		sm.Transition(StageFailed)
		res.Outcome = OutcomeFailed
		d.record(ctx, log, res, started)
		return res, fmt.Errorf("推送摘要失败: %w", err)
	}
	res.Outcome = OutcomeDelivered

	if d.opts.Manual {
		log.Info("[pipeline] 手动测试模式，不记录推播标题")
		sm.Transition(StageDone)
		d.record(ctx, log, res, started)
		return res, nil
	}

	sm.Transition(StageRecording)
	seen.Mark(res.Digest.Items(), seenSet)
	if err := d.dedup.Save(ctx, seenSet); err != nil {
		sm.Transition(StageFailed)
		d.record(ctx, log, res, started)
		return res, fmt.Errorf("保存已推播记录失败: %w", err)
	}
	res.Recorded = true
	sm.Transition(StageDone)
	d.record(ctx, log, res, started)
	return res, nil
}

func (d *Digest) record(ctx context.Context, log *zap.SugaredLogger, res Result, started time.Time) {
	recordRun(ctx, d.recorder, log, database.Run{
		ID:            res.RunID,
		Kind:          "digest",
		Outcome:       string(res.Outcome),
		Items:         res.Digest.Total(),
		FailedSources: len(res.Digest.Failed),
		StartedAt:     started,
	})
}

func recordRun(ctx context.Context, recorder RunRecorder, log *zap.SugaredLogger, run database.Run) {
	if recorder == nil {
		return
	}
	if err := recorder.RecordRun(ctx, run); err != nil {
		log.Warnf("[pipeline] 保存运行记录失败: %v", err)
	}
}

// newTrackedStageMachine 创建把阶段变化写入日志的状态机。
func newTrackedStageMachine(log *zap.SugaredLogger) *StageMachine {
	sm := NewStageMachine()
	sm.SetOnChange(func(from, to Stage) {
		log.Debugf("[pipeline] 阶段 %s → %s", from, to)
	})
	return sm
}
