package seen

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iabetor/dailynews/internal/database"
)

// Store 指纹列表的持久化存储。列表按插入顺序排列，最早的在前。
type Store interface {
	Load(ctx context.Context) ([]string, error)
	Save(ctx context.Context, fingerprints []string) error
	Reset(ctx context.Context) error
}

// FileStore 将指纹列表保存为 JSON 数组文件。
type FileStore struct {
	filePath string
}

// NewFileStore 创建文件存储。
func NewFileStore(path string) *FileStore {
	return &FileStore{filePath: path}
}

// Load 读取指纹列表，文件不存在时返回空列表。
func (s *FileStore) Load(_ context.Context) ([]string, error) {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var fps []string
	if err := json.Unmarshal(data, &fps); err != nil {
		return nil, fmt.Errorf("解析 %s 失败: %w", s.filePath, err)
	}
	return fps, nil
}

// Save 先写临时文件再重命名，中途失败不会留下半个文件。
func (s *FileStore) Save(_ context.Context, fingerprints []string) error {
	if fingerprints == nil {
		fingerprints = []string{}
	}
	if dir := filepath.Dir(s.filePath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("创建目录失败: %w", err)
		}
	}
	data, err := json.Marshal(fingerprints)
	if err != nil {
		return err
	}
	tmp := s.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("写入 %s 失败: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.filePath); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("替换 %s 失败: %w", s.filePath, err)
	}
	return nil
}

// Reset 删除记录文件。
func (s *FileStore) Reset(_ context.Context) error {
	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// SQLiteStore 将指纹保存在 seen_titles 表中，seq 表示插入顺序。
type SQLiteStore struct {
	db *database.DB
}

// NewSQLiteStore 创建 SQLite 存储，db 需已完成迁移。
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Load 按插入顺序读取全部指纹。
func (s *SQLiteStore) Load(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT fingerprint FROM seen_titles ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("查询 seen_titles 失败: %w", err)
	}
	defer rows.Close()

	var fps []string
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		fps = append(fps, fp)
	}
	return fps, rows.Err()
}

// Save 在一个事务里整体替换指纹列表。
func (s *SQLiteStore) Save(ctx context.Context, fingerprints []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("开始事务失败: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM seen_titles`); err != nil {
		return fmt.Errorf("清空 seen_titles 失败: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT OR IGNORE INTO seen_titles (fingerprint) VALUES (?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, fp := range fingerprints {
		if _, err := stmt.ExecContext(ctx, fp); err != nil {
			return fmt.Errorf("写入指纹失败: %w", err)
		}
	}
	return tx.Commit()
}

// Reset 清空指纹表。
func (s *SQLiteStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM seen_titles`)
	return err
}
