package rss

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// RFC 2822 及常见变体。星期和秒可省略，日可为一位数。
var rfc2822Layouts = []string{
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
	"Mon, 2 Jan 06 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04 -0700",
	"Monday, 2 Jan 2006 15:04:05 -0700",
	"Monday, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04:05",
}

// ISO 8601 常见写法。不带时区的按参考时区解释。
var iso8601Layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999-0700",
	"2006-01-02T15:04Z07:00",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// RFC 2822 允许的时区缩写。其余缩写由 Go 按 0 偏移处理。
var rfc2822Zones = map[string]int{
	"UT": 0, "UTC": 0, "GMT": 0, "Z": 0,
	"EST": -5 * 3600, "EDT": -4 * 3600,
	"CST": -6 * 3600, "CDT": -5 * 3600,
	"MST": -7 * 3600, "MDT": -6 * 3600,
	"PST": -8 * 3600, "PDT": -7 * 3600,
}

// 例如 "+0000 (UTC)" 尾部的注释
var trailingCommentRe = regexp.MustCompile(`\s*\([^)]*\)\s*$`)

// ParseDate 按格式解析原始日期。不带时区的日期按 loc 解释。
func ParseDate(raw string, format DateFormat, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("日期为空")
	}
	if loc == nil {
		loc = time.UTC
	}
	if format == DateAtom {
		return parseWithLayouts(raw, iso8601Layouts, loc)
	}

	raw = trailingCommentRe.ReplaceAllString(raw, "")
	t, err := parseWithLayouts(strings.Join(strings.Fields(raw), " "), rfc2822Layouts, loc)
	if err != nil {
		return t, err
	}
	// 统一处理时区缩写，避免受本机时区影响（例如亚洲服务器上的 CST）。
	if name, _ := t.Zone(); name != "" {
		if off, ok := rfc2822Zones[strings.ToUpper(name)]; ok {
			t = time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
				time.FixedZone(name, off))
		}
	}
	return t, nil
}

func parseWithLayouts(raw string, layouts []string, loc *time.Location) (time.Time, error) {
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("无法解析日期: %q", raw)
}

// DateFilter 判断条目是否为参考时区的"今天"。
type DateFilter struct {
	loc *time.Location
	now func() time.Time
}

// NewDateFilter 创建日期过滤器。now 为 nil 时使用 time.Now。
func NewDateFilter(loc *time.Location, now func() time.Time) *DateFilter {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &DateFilter{loc: loc, now: now}
}

// Keep 返回是否保留该条目。
// skip 为 true、日期为空或无法解析时一律保留，宁可多留旧闻也不误删。
func (f *DateFilter) Keep(raw string, format DateFormat, skip bool) bool {
	if skip {
		return true
	}
	if strings.TrimSpace(raw) == "" {
		return true
	}
	t, err := ParseDate(raw, format, f.loc)
	if err != nil {
		return true
	}
	return sameDay(t.In(f.loc), f.now().In(f.loc))
}

// KeepItem 是 Keep 的便捷形式。
func (f *DateFilter) KeepItem(it Item, skip bool) bool {
	return f.Keep(it.RawDate, it.Format, skip)
}

// Today 返回参考时区的当前时间。
func (f *DateFilter) Today() time.Time {
	return f.now().In(f.loc)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
