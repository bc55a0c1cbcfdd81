// Package rss 提供订阅源抓取、RSS/Atom 解析、当日过滤和分类汇总。
package rss

import "time"

// DateFormat 标记条目日期来自哪种格式，决定日期的解析规则。
type DateFormat int

const (
	// DateRSS RSS 2.0 的 pubDate，RFC 2822 格式。
	DateRSS DateFormat = iota
	// DateAtom Atom 的 published/updated，ISO 8601 格式。
	DateAtom
)

func (f DateFormat) String() string {
	if f == DateAtom {
		return "atom"
	}
	return "rss"
}

// Source 订阅源，来自静态配置，运行期间不可变。
type Source struct {
	URL            string
	Name           string
	Category       string
	SkipDateFilter bool
}

// Label 返回用于日志的来源名称。
func (s Source) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return s.URL
}

// Item 单条新闻，由 Parser 生成，只在一次运行内使用。
type Item struct {
	Title       string
	Link        string
	Description string
	// RawDate 原始日期字符串，保留来源时区直到过滤时才换算。
	RawDate string
	Format  DateFormat
}

// Published 解析发布时间，无日期或无法解析时返回 false。
// 不带时区的日期按 loc 解释。
func (it Item) Published(loc *time.Location) (time.Time, bool) {
	t, err := ParseDate(it.RawDate, it.Format, loc)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Category 一个分类的汇总结果，条目顺序即来源顺序。
type Category struct {
	Name  string
	Items []Item
}

// Digest 一次运行的全部分类结果。
type Digest struct {
	Categories []Category
	// Failed 抓取或解析失败的来源地址，仅用于日志和统计。
	Failed []string
}

// Total 返回所有分类的条目总数。
func (d Digest) Total() int {
	n := 0
	for _, c := range d.Categories {
		n += len(c.Items)
	}
	return n
}

// Items 按分类顺序返回全部条目。
func (d Digest) Items() []Item {
	all := make([]Item, 0, d.Total())
	for _, c := range d.Categories {
		all = append(all, c.Items...)
	}
	return all
}
