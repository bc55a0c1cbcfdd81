package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Message 表示与 LLM 对话中的一条消息。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator 一次性生成完整回复的 LLM 后端。
type Generator interface {
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Options 生成参数。
type Options struct {
	MaxTokens   int
	Temperature float64
}

// ErrEmptyResponse 模型返回了空内容。
var ErrEmptyResponse = errors.New("[llm] 模型返回空内容")

// APIError 模型接口返回的非 200 响应。
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500]
	}
	return fmt.Sprintf("[llm] %s API 返回状态码 %d: %s", e.Provider, e.StatusCode, strings.TrimSpace(body))
}

// IsInsufficientBalance 判断是否为余额不足类错误。
func IsInsufficientBalance(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == 402 {
		return true
	}
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "insufficient") || strings.Contains(msg, "余额不足")
}

// System 和 User 构造消息的便捷函数。
func System(content string) Message { return Message{Role: "system", Content: content} }
func User(content string) Message   { return Message{Role: "user", Content: content} }
