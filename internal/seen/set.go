// Package seen 记录已推播过的新闻标题指纹，用于跨次运行去重。
package seen

import (
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/iabetor/dailynews/internal/rss"
)

// DefaultLimit 持久化时最多保留的指纹数。
const DefaultLimit = 500

// Fingerprint 返回标题去除首尾空白后的 md5 十六进制串。
// 与历史记录文件的格式保持一致，不能更换算法。
func Fingerprint(title string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(title)))
	return hex.EncodeToString(sum[:])
}

// Set 按插入顺序保存指纹的集合。
type Set struct {
	order []string
	index map[string]struct{}
}

// NewSet 按给定顺序创建集合，重复项只保留第一次出现。
func NewSet(fingerprints ...string) *Set {
	s := &Set{index: make(map[string]struct{}, len(fingerprints))}
	for _, fp := range fingerprints {
		s.Add(fp)
	}
	return s
}

// Add 加入指纹，已存在时不改变其位置并返回 false。
func (s *Set) Add(fp string) bool {
	if _, ok := s.index[fp]; ok {
		return false
	}
	s.index[fp] = struct{}{}
	s.order = append(s.order, fp)
	return true
}

// Contains 判断指纹是否存在。
func (s *Set) Contains(fp string) bool {
	_, ok := s.index[fp]
	return ok
}

// Len 返回指纹数。
func (s *Set) Len() int {
	return len(s.order)
}

// List 按插入顺序返回指纹副本，最早加入的在前。
func (s *Set) List() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Truncate 只保留最近加入的 limit 个指纹，最早的先淘汰。
func (s *Set) Truncate(limit int) {
	if limit < 0 || len(s.order) <= limit {
		return
	}
	drop := len(s.order) - limit
	for _, fp := range s.order[:drop] {
		delete(s.index, fp)
	}
	s.order = append([]string(nil), s.order[drop:]...)
}

// Filter 返回指纹不在 seen 中的条目，保持原有顺序。
func Filter(items []rss.Item, seen *Set) []rss.Item {
	out := make([]rss.Item, 0, len(items))
	for _, it := range items {
		if !seen.Contains(Fingerprint(it.Title)) {
			out = append(out, it)
		}
	}
	return out
}

// Mark 将条目的指纹按顺序加入 seen。
func Mark(items []rss.Item, seen *Set) {
	for _, it := range items {
		seen.Add(Fingerprint(it.Title))
	}
}
