package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIProvider 通过 OpenAI 兼容的 chat completions 接口生成回复。
type OpenAIProvider struct {
	apiURL     string
	apiKey     string
	model      string
	opts       Options
	httpClient *http.Client
}

// NewOpenAIProvider 创建一个新的 OpenAI 兼容 LLM 提供者。apiURL 为空时使用官方地址。
func NewOpenAIProvider(apiURL, apiKey, model string, opts Options, timeout time.Duration) *OpenAIProvider {
	if apiURL == "" {
		apiURL = defaultOpenAIURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OpenAIProvider{
		apiURL: strings.TrimRight(apiURL, "/"),
		apiKey: apiKey,
		model:  model,
		opts:   opts,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// chatRequest 是发送到 chat completions 接口的 JSON 请求体。
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate 向 OpenAI 兼容 API 发送对话消息并返回完整回复。
func (p *OpenAIProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	reqBody := chatRequest{
		Model:     p.model,
		Messages:  messages,
		MaxTokens: p.opts.MaxTokens,
	}
	if p.opts.Temperature > 0 {
		temp := p.opts.Temperature
		reqBody.Temperature = &temp
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("[llm] 序列化请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.apiURL+"/chat/completions", bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("[llm] 创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("[llm] 请求失败: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("[llm] 读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: "openai", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out chatResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("[llm] 解析响应失败: %w", err)
	}
	if len(out.Choices) == 0 || strings.TrimSpace(out.Choices[0].Message.Content) == "" {
		return "", ErrEmptyResponse
	}
	return out.Choices[0].Message.Content, nil
}
