package rss

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/iabetor/dailynews/internal/logger"
)

// FeedFetcher 获取订阅源原文。*Fetcher 实现了该接口，测试中可替换。
type FeedFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// ItemFilter 在日期过滤之后、最终截断之前对单个来源的条目再过滤一次（用于跨次去重）。
// 并发抓取时会被多个 goroutine 同时调用，实现不能修改共享状态。
type ItemFilter func([]Item) []Item

// CategoryFeeds 一个分类及其有序来源列表。
type CategoryFeeds struct {
	Name    string
	Sources []Source
}

// Aggregator 按分类汇总各来源的当日条目。
type Aggregator struct {
	fetcher     FeedFetcher
	parser      *Parser
	dates       *DateFilter
	finalCap    int
	concurrency int
}

// NewAggregator 创建汇总器。finalCap 为过滤后每个来源保留的条数，
// concurrency 为同一分类内同时抓取的来源数。
func NewAggregator(fetcher FeedFetcher, parser *Parser, dates *DateFilter, finalCap, concurrency int) *Aggregator {
	if finalCap <= 0 {
		finalCap = 5
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Aggregator{
		fetcher:     fetcher,
		parser:      parser,
		dates:       dates,
		finalCap:    finalCap,
		concurrency: concurrency,
	}
}

// sourceResult 单个来源的处理结果。
type sourceResult struct {
	items  []Item
	failed bool
}

// Collect 逐个分类抓取并过滤。任何来源失败都只记日志并按 0 条处理，不会中断汇总。
// 分类内条目顺序与来源配置顺序一致，与是否并发无关。
func (a *Aggregator) Collect(ctx context.Context, categories []CategoryFeeds, filter ItemFilter) Digest {
	var digest Digest
	for _, cat := range categories {
		results := make([]sourceResult, len(cat.Sources))

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.concurrency)
		for i, src := range cat.Sources {
			i, src := i, src
			g.Go(func() error {
				results[i] = a.collectSource(gctx, src, filter)
				// 单个来源失败不影响其他来源
				return nil
			})
		}
		_ = g.Wait()

		bucket := Category{Name: cat.Name}
		for i, r := range results {
			if r.failed {
				digest.Failed = append(digest.Failed, cat.Sources[i].URL)
			}
			bucket.Items = append(bucket.Items, r.items...)
		}
		logger.Infof("[rss] 分类 %s: %d 条", cat.Name, len(bucket.Items))
		digest.Categories = append(digest.Categories, bucket)
	}
	return digest
}

func (a *Aggregator) collectSource(ctx context.Context, src Source, filter ItemFilter) sourceResult {
	text, err := a.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		logger.Warnf("[rss] 无法抓取 %s: %v", src.Label(), err)
		return sourceResult{failed: true}
	}

	parsed, err := a.parser.Parse(text)
	if err != nil {
		logger.Warnf("[rss] 解析 %s 失败: %v", src.Label(), err)
		return sourceResult{failed: true}
	}

	kept := make([]Item, 0, len(parsed))
	for _, it := range parsed {
		if a.dates.KeepItem(it, src.SkipDateFilter) {
			kept = append(kept, it)
		}
	}
	if filter != nil {
		kept = filter(kept)
	}
	if len(kept) > a.finalCap {
		kept = kept[:a.finalCap]
	}

	logger.Debugf("[rss] %s: 解析 %d 条，保留 %d 条", src.Label(), len(parsed), len(kept))
	return sourceResult{items: kept}
}
