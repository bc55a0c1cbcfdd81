package seen

import (
	"context"

	"github.com/iabetor/dailynews/internal/logger"
)

// Deduplicator 负责一次运行中指纹集合的读取和保存。
type Deduplicator struct {
	store Store
	limit int
}

// NewDeduplicator 创建去重器。limit <= 0 时使用 DefaultLimit。
func NewDeduplicator(store Store, limit int) *Deduplicator {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Deduplicator{store: store, limit: limit}
}

// Load 读取已推播的指纹集合。存储缺失或损坏时返回空集合，本次运行不做历史去重。
func (d *Deduplicator) Load(ctx context.Context) *Set {
	fps, err := d.store.Load(ctx)
	if err != nil {
		logger.Warnf("[seen] 读取已推播记录失败（将使用空集合）: %v", err)
		return NewSet()
	}
	logger.Debugf("[seen] 已载入 %d 个指纹", len(fps))
	return NewSet(fps...)
}

// Save 截断到最近 limit 个指纹后持久化。只应在推播成功后调用。
func (d *Deduplicator) Save(ctx context.Context, seen *Set) error {
	seen.Truncate(d.limit)
	if err := d.store.Save(ctx, seen.List()); err != nil {
		return err
	}
	logger.Infof("[seen] 已保存 %d 个指纹", seen.Len())
	return nil
}

// Limit 返回持久化上限。
func (d *Deduplicator) Limit() int {
	return d.limit
}
