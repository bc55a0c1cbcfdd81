package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iabetor/dailynews/internal/logger"
)

// ModelConfig 描述一个 LLM 模型的连接信息。
type ModelConfig struct {
	Name     string // 显示名称
	Provider string // openai 或 gemini
	APIURL   string // API 地址，为空时使用官方地址
	APIKey   string // API Key
	Model    string // 模型名称
}

// providerEntry 是一个 Generator 及其名称的组合。
type providerEntry struct {
	name      string
	generator Generator
}

// MultiProvider 实现多 LLM 自动降级。
// 按列表顺序尝试，额度耗尽、限流、服务不可用或超时时切换到下一个。
type MultiProvider struct {
	entries []providerEntry
}

// NewMultiProvider 根据模型配置列表创建 MultiProvider。
func NewMultiProvider(configs []ModelConfig, opts Options, timeout time.Duration) (*MultiProvider, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("至少需要一个 LLM 模型配置")
	}

	entries := make([]providerEntry, 0, len(configs))
	for _, cfg := range configs {
		var g Generator
		switch cfg.Provider {
		case "gemini":
			g = NewGeminiProvider(cfg.APIURL, cfg.APIKey, cfg.Model, opts, timeout)
		case "openai", "":
			g = NewOpenAIProvider(cfg.APIURL, cfg.APIKey, cfg.Model, opts, timeout)
		default:
			return nil, fmt.Errorf("不支持的 LLM provider: %s", cfg.Provider)
		}
		name := cfg.Name
		if name == "" {
			name = cfg.Model
		}
		entries = append(entries, providerEntry{name: name, generator: g})
	}

	logger.Infof("[llm] 多模型已初始化，共 %d 个模型：%s",
		len(entries), formatModelNames(entries))

	return &MultiProvider{entries: entries}, nil
}

// newMultiProviderFrom 用现成的 Generator 组装，供测试使用。
func newMultiProviderFrom(names []string, gens []Generator) *MultiProvider {
	m := &MultiProvider{}
	for i := range gens {
		m.entries = append(m.entries, providerEntry{name: names[i], generator: gens[i]})
	}
	return m
}

// Generate 实现 Generator 接口，按顺序尝试各模型。
func (m *MultiProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	var lastErr error
	total := len(m.entries)

	for idx, entry := range m.entries {
		logger.Debugf("[llm] 尝试模型 [%s] (%d/%d)", entry.name, idx+1, total)

		text, err := entry.generator.Generate(ctx, messages)
		if err == nil {
			if idx > 0 {
				logger.Infof("[llm] 已降级到模型 [%s]", entry.name)
			}
			return text, nil
		}

		lastErr = err
		logger.Warnf("[llm] 模型 [%s] 请求失败: %v", entry.name, err)

		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if shouldFallback(err) {
			logger.Infof("[llm] 模型 [%s] 触发降级，尝试下一个模型", entry.name)
			continue
		}

		// 非降级类错误（如 400 参数错误），直接返回
		return "", err
	}

	return "", fmt.Errorf("所有 LLM 模型均不可用，最后错误: %w", lastErr)
}

// shouldFallback 判断错误是否应该触发降级到下一个模型。
func shouldFallback(err error) bool {
	if err == nil {
		return false
	}

	// 余额不足
	if IsInsufficientBalance(err) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 402, 429, 500, 502, 503, 504:
			return true
		}
	}

	if errors.Is(err, ErrEmptyResponse) {
		return true
	}

	errMsg := strings.ToLower(err.Error())

	// 关键词匹配
	fallbackKeywords := []string{
		"insufficient", "balance", "quota",
		"rate limit", "too many requests", "resource_exhausted",
		"余额不足", "额度", "限流",
	}
	for _, kw := range fallbackKeywords {
		if strings.Contains(errMsg, kw) {
			return true
		}
	}

	// 网络/超时类错误
	if strings.Contains(errMsg, "timeout") ||
		strings.Contains(errMsg, "deadline exceeded") ||
		strings.Contains(errMsg, "connection refused") {
		return true
	}

	return false
}

// formatModelNames 格式化模型名称列表用于日志。
func formatModelNames(entries []providerEntry) string {
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.name
	}
	return strings.Join(names, " → ")
}
