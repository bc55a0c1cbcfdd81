package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是 dailynews 的顶层配置结构。
type Config struct {
	Log LogConfig `yaml:"log"`

	// TimezoneOffsetHours 判断"今天"所用的固定时区偏移（台湾 UTC+8）。
	TimezoneOffsetHours int `yaml:"timezone_offset_hours"`

	// Manual 手动触发模式：不去重，也不记录已推播标题。
	Manual bool `yaml:"manual"`

	Fetch      FetchConfig      `yaml:"fetch"`
	Categories []CategoryConfig `yaml:"categories"`
	Blacklist  []string         `yaml:"blacklist"`
	Seen       SeenConfig       `yaml:"seen"`
	LLM        LLMConfig        `yaml:"llm"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Report     ReportConfig     `yaml:"report"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
}

// FetchConfig 抓取与数量上限配置。
type FetchConfig struct {
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	UserAgent      string `yaml:"user_agent"`
	// OversampleCap 过滤前每个来源最多解析的条目数。
	OversampleCap int `yaml:"oversample_cap"`
	// FinalCap 过滤后每个来源最多保留的条目数。
	FinalCap int `yaml:"final_cap"`
	// Concurrency 同一分类内并发抓取的来源数，1 表示逐个抓取。
	Concurrency int `yaml:"concurrency"`
}

// Timeout 返回单个来源的抓取超时。
func (f FetchConfig) Timeout() time.Duration {
	return time.Duration(f.TimeoutSeconds) * time.Second
}

// CategoryConfig 一个新闻分类及其来源。
type CategoryConfig struct {
	Name  string       `yaml:"name"`
	Feeds []FeedConfig `yaml:"feeds"`
}

// FeedConfig 单个订阅源。
type FeedConfig struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
	// SkipDateFilter 英文来源发布时间落后台湾时间，早上跑时文章日期仍是昨天，不做日期过滤。
	SkipDateFilter bool `yaml:"skip_date_filter"`
}

// SeenConfig 已推播标题记录配置。
type SeenConfig struct {
	Backend string `yaml:"backend"` // file 或 sqlite
	Path    string `yaml:"path"`
	Limit   int    `yaml:"limit"`
}

// LLMConfig 生成模型配置。
type LLMConfig struct {
	Models         []ModelConfig `yaml:"models"`
	SystemPrompt   string        `yaml:"system_prompt"`
	MaxTokens      int           `yaml:"max_tokens"`
	Temperature    float64       `yaml:"temperature"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
}

// ModelConfig 一个模型的连接信息，按列表顺序降级。
type ModelConfig struct {
	Name     string `yaml:"name"`
	Provider string `yaml:"provider"` // openai 或 gemini
	APIURL   string `yaml:"api_url"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// TelegramConfig 推播配置。
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	// ChatIDs 支持逗号分隔字符串（对应 TELEGRAM_CHAT_ID 环境变量）或列表。
	ChatIDs        ChatIDList `yaml:"chat_ids"`
	APIURL         string     `yaml:"api_url"`
	TimeoutSeconds int        `yaml:"timeout_seconds"`
	// DisablePreview 作用于报告链接消息。新闻摘要总是关闭预览。
	DisablePreview bool    `yaml:"disable_preview"`
	RatePerSecond  float64 `yaml:"rate_per_second"`
}

// ReportConfig HTML 报告输出配置。
type ReportConfig struct {
	Dir      string `yaml:"dir"`
	PagesURL string `yaml:"pages_url"`
	// Prefix 每日戰報的文件名前缀。
	Prefix string `yaml:"prefix"`
}

// ChatIDList 可从 "a, b" 或 [a, b] 解码。
type ChatIDList []string

// UnmarshalYAML 实现 yaml.Unmarshaler。
func (c *ChatIDList) UnmarshalYAML(value *yaml.Node) error {
	var raw []string
	switch value.Kind {
	case yaml.ScalarNode:
		raw = strings.Split(value.Value, ",")
	case yaml.SequenceNode:
		if err := value.Decode(&raw); err != nil {
			return err
		}
	default:
		return fmt.Errorf("chat_ids 格式错误（第 %d 行）", value.Line)
	}
	ids := make([]string, 0, len(raw))
	for _, id := range raw {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	*c = ids
	return nil
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}
	return Parse(data)
}

// Parse 解析 YAML 内容，展开环境变量并填充默认值。
func Parse(data []byte) (*Config, error) {
	expanded := os.Expand(string(data), os.Getenv)

	// 时区偏移允许显式设为 0，因此在解码前预置默认值。
	cfg := &Config{TimezoneOffsetHours: 8}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	setDefaults(cfg)
	return cfg, nil
}

// Location 返回参考时区。
func (c *Config) Location() *time.Location {
	return time.FixedZone(fmt.Sprintf("UTC%+d", c.TimezoneOffsetHours), c.TimezoneOffsetHours*3600)
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Fetch.TimeoutSeconds == 0 {
		cfg.Fetch.TimeoutSeconds = 15
	}
	if cfg.Fetch.UserAgent == "" {
		cfg.Fetch.UserAgent = "Mozilla/5.0 DailyNewsBot/1.0"
	}
	if cfg.Fetch.OversampleCap == 0 {
		cfg.Fetch.OversampleCap = 20
	}
	if cfg.Fetch.FinalCap == 0 {
		cfg.Fetch.FinalCap = 5
	}
	if cfg.Fetch.Concurrency == 0 {
		cfg.Fetch.Concurrency = 1
	}
	if cfg.Seen.Backend == "" {
		cfg.Seen.Backend = "file"
	}
	if cfg.Seen.Path == "" {
		if cfg.Seen.Backend == "sqlite" {
			cfg.Seen.Path = "dailynews.db"
		} else {
			cfg.Seen.Path = "seen_titles.json"
		}
	}
	if cfg.Seen.Limit == 0 {
		cfg.Seen.Limit = 500
	}
	if cfg.LLM.MaxTokens == 0 {
		cfg.LLM.MaxTokens = 2048
	}
	if cfg.LLM.TimeoutSeconds == 0 {
		cfg.LLM.TimeoutSeconds = 60
	}
	if cfg.LLM.SystemPrompt == "" {
		cfg.LLM.SystemPrompt = "你是一位專業的繁體中文新聞編輯。"
	}
	for i := range cfg.LLM.Models {
		m := &cfg.LLM.Models[i]
		// 去除 API Key 两端可能的空白（环境变量展开后常见）
		m.APIKey = strings.TrimSpace(m.APIKey)
		if m.Provider == "" {
			m.Provider = "openai"
		}
		if m.Name == "" {
			m.Name = m.Model
		}
	}
	if cfg.Telegram.APIURL == "" {
		cfg.Telegram.APIURL = "https://api.telegram.org"
	}
	if cfg.Telegram.TimeoutSeconds == 0 {
		cfg.Telegram.TimeoutSeconds = 15
	}
	if cfg.Telegram.RatePerSecond == 0 {
		cfg.Telegram.RatePerSecond = 1
	}
	cfg.Telegram.BotToken = strings.TrimSpace(cfg.Telegram.BotToken)
	if cfg.Report.Dir == "" {
		cfg.Report.Dir = "reports"
	}
	if cfg.Report.Prefix == "" {
		cfg.Report.Prefix = "voteflux"
	}
	cfg.Report.PagesURL = strings.TrimRight(cfg.Report.PagesURL, "/")
}

// Validate 检查运行新闻摘要所需的配置。
func (c *Config) Validate() error {
	if c.Fetch.OversampleCap < c.Fetch.FinalCap {
		return fmt.Errorf("fetch.oversample_cap (%d) 不能小于 fetch.final_cap (%d)", c.Fetch.OversampleCap, c.Fetch.FinalCap)
	}
	if c.Fetch.FinalCap < 0 || c.Fetch.Concurrency < 1 {
		return fmt.Errorf("fetch.final_cap 与 fetch.concurrency 必须为正数")
	}
	if c.TimezoneOffsetHours < -12 || c.TimezoneOffsetHours > 14 {
		return fmt.Errorf("timezone_offset_hours 超出范围: %d", c.TimezoneOffsetHours)
	}
	switch c.Seen.Backend {
	case "file", "sqlite":
	default:
		return fmt.Errorf("不支持的 seen.backend: %s", c.Seen.Backend)
	}
	if c.Seen.Limit <= 0 {
		return fmt.Errorf("seen.limit 必须为正数")
	}
	for _, cat := range c.Categories {
		if cat.Name == "" {
			return fmt.Errorf("分类名称不能为空")
		}
		for _, f := range cat.Feeds {
			if _, err := url.ParseRequestURI(f.URL); err != nil {
				return fmt.Errorf("分类 %s 的订阅源地址无效: %q", cat.Name, f.URL)
			}
		}
	}
	for _, m := range c.LLM.Models {
		switch m.Provider {
		case "openai", "gemini":
		default:
			return fmt.Errorf("模型 %s 的 provider 不支持: %s", m.Name, m.Provider)
		}
	}
	return nil
}

// ValidateDelivery 检查需要调用模型和推播时的必填项。
func (c *Config) ValidateDelivery() error {
	if len(c.LLM.Models) == 0 {
		return fmt.Errorf("llm.models 至少需要一个模型")
	}
	if c.Telegram.BotToken == "" {
		return fmt.Errorf("telegram.bot_token 未设置")
	}
	if len(c.Telegram.ChatIDs) == 0 {
		return fmt.Errorf("telegram.chat_ids 未设置")
	}
	return nil
}
