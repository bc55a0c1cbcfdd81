package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "test.db"))
	if err != nil {
		t.Fatalf("Open 失败: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("Migrate 失败: %v", err)
	}
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("重复迁移失败: %v", err)
	}
	var n int
	if err := db.QueryRow("SELECT COUNT(*) FROM seen_titles").Scan(&n); err != nil {
		t.Fatalf("seen_titles 表应存在: %v", err)
	}
}

func TestRecordAndRecentRuns(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	base := time.Date(2026, 2, 19, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"r1", "r2", "r3"} {
		err := db.RecordRun(ctx, Run{
			ID:        id,
			Kind:      "digest",
			Outcome:   "delivered",
			Items:     i + 1,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		})
		if err != nil {
			t.Fatalf("RecordRun 失败: %v", err)
		}
	}

	runs, err := db.RecentRuns(ctx, 2)
	if err != nil {
		t.Fatalf("RecentRuns 失败: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("期望 2 条，得到 %d", len(runs))
	}
	if runs[0].ID != "r3" || runs[1].ID != "r2" {
		t.Errorf("顺序不正确: %s, %s", runs[0].ID, runs[1].ID)
	}
	if runs[0].Items != 3 || runs[0].Kind != "digest" {
		t.Errorf("字段不匹配: %+v", runs[0])
	}
}
