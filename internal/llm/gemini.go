package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultGeminiURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiProvider 通过 Google Gemini generateContent 接口生成回复。
type GeminiProvider struct {
	apiURL     string
	apiKey     string
	model      string
	opts       Options
	httpClient *http.Client
}

// NewGeminiProvider 创建 Gemini 提供者。apiURL 为空时使用官方地址。
func NewGeminiProvider(apiURL, apiKey, model string, opts Options, timeout time.Duration) *GeminiProvider {
	if apiURL == "" {
		apiURL = defaultGeminiURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &GeminiProvider{
		apiURL:     strings.TrimRight(apiURL, "/"),
		apiKey:     apiKey,
		model:      model,
		opts:       opts,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig struct {
		MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
		Temperature     *float64 `json:"temperature,omitempty"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate 将 system 消息拼到第一条用户消息前面，其余消息按角色映射为 user/model。
func (p *GeminiProvider) Generate(ctx context.Context, messages []Message) (string, error) {
	var reqBody geminiRequest
	reqBody.GenerationConfig.MaxOutputTokens = p.opts.MaxTokens
	if p.opts.Temperature > 0 {
		temp := p.opts.Temperature
		reqBody.GenerationConfig.Temperature = &temp
	}

	var system []string
	for _, m := range messages {
		switch m.Role {
		case "system":
			system = append(system, m.Content)
		case "assistant":
			reqBody.Contents = append(reqBody.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			text := m.Content
			if len(system) > 0 {
				text = strings.Join(system, "\n\n") + "\n\n" + text
				system = nil
			}
			reqBody.Contents = append(reqBody.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: text}}})
		}
	}
	if len(reqBody.Contents) == 0 {
		return "", fmt.Errorf("[llm] 没有可发送的消息")
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("[llm] 序列化请求体失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", p.apiURL, url.PathEscape(p.model), url.QueryEscape(p.apiKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", fmt.Errorf("[llm] 创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		// 错误信息里包含带 key 的 URL，不能原样记录
		return "", fmt.Errorf("[llm] 请求失败: %s", redactKey(err.Error(), p.apiKey))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("[llm] 读取响应失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &APIError{Provider: "gemini", StatusCode: resp.StatusCode, Body: string(body)}
	}

	var out geminiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("[llm] 解析响应失败: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	var sb strings.Builder
	for _, part := range out.Candidates[0].Content.Parts {
		sb.WriteString(part.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

func redactKey(s, key string) string {
	if key == "" {
		return s
	}
	s = strings.ReplaceAll(s, url.QueryEscape(key), "***")
	return strings.ReplaceAll(s, key, "***")
}
