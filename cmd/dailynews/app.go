package main

import (
	"fmt"
	"time"

	"github.com/iabetor/dailynews/internal/config"
	"github.com/iabetor/dailynews/internal/database"
	"github.com/iabetor/dailynews/internal/llm"
	"github.com/iabetor/dailynews/internal/logger"
	"github.com/iabetor/dailynews/internal/rss"
	"github.com/iabetor/dailynews/internal/seen"
	"github.com/iabetor/dailynews/internal/telegram"
)

// app 一次命令执行所需的组件。
type app struct {
	cfg   *config.Config
	db    *database.DB
	store seen.Store
}

// loadApp 读取配置、初始化日志并打开已推播记录存储。
func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("加载配置失败: %w", err)
	}
	if manualFlag {
		cfg.Manual = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置无效: %w", err)
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
	}); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}

	a := &app{cfg: cfg}
	switch cfg.Seen.Backend {
	case "sqlite":
		db, err := database.Open(cfg.Seen.Path)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		a.db = db
		a.store = seen.NewSQLiteStore(db)
	default:
		a.store = seen.NewFileStore(cfg.Seen.Path)
	}
	return a, nil
}

// Close 释放数据库连接。
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
}

func (a *app) categories() []rss.CategoryFeeds {
	return categoryFeeds(a.cfg.Categories)
}

// categoryFeeds 把配置里的分类转换为汇总器的输入，保持配置顺序。
func categoryFeeds(cats []config.CategoryConfig) []rss.CategoryFeeds {
	out := make([]rss.CategoryFeeds, 0, len(cats))
	for _, c := range cats {
		cf := rss.CategoryFeeds{Name: c.Name}
		for _, f := range c.Feeds {
			cf.Sources = append(cf.Sources, rss.Source{
				URL:            f.URL,
				Name:           f.Name,
				Category:       c.Name,
				SkipDateFilter: f.SkipDateFilter,
			})
		}
		out = append(out, cf)
	}
	return out
}

func (a *app) aggregator() *rss.Aggregator {
	f := a.cfg.Fetch
	return rss.NewAggregator(
		rss.NewFetcher(f.Timeout(), f.UserAgent),
		rss.NewParser(f.OversampleCap, a.cfg.Blacklist),
		rss.NewDateFilter(a.cfg.Location(), nil),
		f.FinalCap,
		f.Concurrency,
	)
}

func (a *app) generator() (llm.Generator, error) {
	c := a.cfg.LLM
	models := make([]llm.ModelConfig, 0, len(c.Models))
	for _, m := range c.Models {
		models = append(models, llm.ModelConfig(m))
	}
	opts := llm.Options{MaxTokens: c.MaxTokens, Temperature: c.Temperature}
	return llm.NewMultiProvider(models, opts, time.Duration(c.TimeoutSeconds)*time.Second)
}

func (a *app) sender() *telegram.Sender {
	c := a.cfg.Telegram
	return telegram.NewSender(telegram.Config{
		APIURL:        c.APIURL,
		BotToken:      c.BotToken,
		ChatIDs:       c.ChatIDs,
		Timeout:       time.Duration(c.TimeoutSeconds) * time.Second,
		RatePerSecond: c.RatePerSecond,
	})
}
