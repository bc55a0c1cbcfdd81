package rss

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultFetchTimeout = 15 * time.Second
	defaultUserAgent    = "Mozilla/5.0 DailyNewsBot/1.0"
	maxBodyBytes        = 10 << 20
)

// Fetcher 通过 HTTP 获取订阅源原文。
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher 创建抓取器。timeout 或 userAgent 为空时使用默认值。
func NewFetcher(timeout time.Duration, userAgent string) *Fetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Fetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
	}
}

// Fetch 获取 url 的内容并按 UTF-8 解码，非法字节替换为 U+FFFD。
// 网络错误、超时和非 2xx 状态码都作为该来源的错误返回。
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}
	// 明确的 UA，避免被当作通用爬虫拦截
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", fmt.Errorf("读取响应失败: %w", err)
	}
	return strings.ToValidUTF8(string(body), "�"), nil
}
