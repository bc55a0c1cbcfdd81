package database

import (
	"context"
	"fmt"
	"time"
)

// Run 一次运行的记录。
type Run struct {
	ID            string
	Kind          string // digest、daily、weekly
	Outcome       string
	Items         int
	FailedSources int
	StartedAt     time.Time
	FinishedAt    time.Time
}

// RecordRun 写入一次运行记录。
func (db *DB) RecordRun(ctx context.Context, r Run) error {
	finished := r.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, outcome, items, failed_sources, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Outcome, r.Items, r.FailedSources, r.StartedAt.UTC(), finished.UTC())
	if err != nil {
		return fmt.Errorf("写入运行记录失败: %w", err)
	}
	return nil
}

// RecentRuns 按开始时间倒序返回最近 limit 条运行记录。
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.QueryContext(ctx,
		`SELECT id, kind, outcome, items, failed_sources, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询运行记录失败: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.Outcome, &r.Items, &r.FailedSources, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("读取运行记录失败: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
