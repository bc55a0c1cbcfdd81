// Package telegram 通过 Bot API 向一个或多个聊天推送消息。
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"github.com/iabetor/dailynews/internal/logger"
)

const (
	// MaxMessageLen Telegram 单条消息的字符上限。
	MaxMessageLen = 4096
	truncateAt    = 4090
	truncateMark  = "\n..."

	defaultAPIURL = "https://api.telegram.org"
)

// ErrAllRecipientsFailed 没有任何一个聊天收到消息。
var ErrAllRecipientsFailed = errors.New("telegram: 所有聊天均发送失败")

var (
	anchorRe = regexp.MustCompile(`<a\s+href="([^"]+)"[^>]*>[^<]*</a>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
)

// Config 推送配置。
type Config struct {
	APIURL        string
	BotToken      string
	ChatIDs       []string
	Timeout       time.Duration
	RatePerSecond float64
}

// Message 一条待发送的消息，Text 为 Telegram HTML。
type Message struct {
	Text           string
	DisablePreview bool
}

// Result 发送结果。
type Result struct {
	Delivered []string
	Failed    []string
}

// Sender 向配置的所有聊天发送消息。
type Sender struct {
	apiURL  string
	token   string
	chatIDs []string
	client  *http.Client
	limiter *rate.Limiter
}

// NewSender 创建发送器。
func NewSender(cfg Config) *Sender {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	return &Sender{
		apiURL:  strings.TrimRight(cfg.APIURL, "/"),
		token:   cfg.BotToken,
		chatIDs: cfg.ChatIDs,
		client:  &http.Client{Timeout: cfg.Timeout},
		// Bot API 对同一 bot 的群发有频率限制
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}
}

// Truncate 超过 MaxMessageLen 个字符时截断并加上省略标记。
func Truncate(text string) string {
	if utf8.RuneCountInString(text) <= MaxMessageLen {
		return text
	}
	return string([]rune(text)[:truncateAt]) + truncateMark
}

// PlainText 把 HTML 消息转为纯文本，链接替换为 URL 本身。
func PlainText(text string) string {
	text = anchorRe.ReplaceAllString(text, "$1")
	text = tagRe.ReplaceAllString(text, "")
	return html.UnescapeString(text)
}

// Send 依次发送到每个聊天。HTML 发送失败时改用纯文本重试一次。
// 至少一个聊天收到即视为成功；全部失败时返回 ErrAllRecipientsFailed 及各聊天的错误。
func (s *Sender) Send(ctx context.Context, msg Message) (Result, error) {
	var res Result
	if len(s.chatIDs) == 0 {
		return res, fmt.Errorf("%w: 没有配置聊天", ErrAllRecipientsFailed)
	}

	text := Truncate(msg.Text)
	var errs []error
	for _, chatID := range s.chatIDs {
		err := s.sendOne(ctx, chatID, text, "HTML", msg.DisablePreview)
		if err != nil {
			logger.Warnf("[telegram] HTML 发送失败 (chat_id: %s): %v，改用纯文本", chatID, err)
			err = s.sendOne(ctx, chatID, PlainText(text), "", msg.DisablePreview)
		}
		if err != nil {
			logger.Warnf("[telegram] 发送失败 (chat_id: %s): %v", chatID, err)
			res.Failed = append(res.Failed, chatID)
			errs = append(errs, fmt.Errorf("chat %s: %w", chatID, err))
			continue
		}
		logger.Infof("[telegram] 消息已发送到 %s", chatID)
		res.Delivered = append(res.Delivered, chatID)
	}

	if len(res.Delivered) == 0 {
		return res, errors.Join(append([]error{ErrAllRecipientsFailed}, errs...)...)
	}
	return res, nil
}

type sendRequest struct {
	ChatID                string `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode,omitempty"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview,omitempty"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (s *Sender) sendOne(ctx context.Context, chatID, text, parseMode string, disablePreview bool) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(sendRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             parseMode,
		DisableWebPagePreview: disablePreview,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.apiURL, s.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// 错误信息里带有 token
		if s.token == "" {
			return err
		}
		return errors.New(strings.ReplaceAll(err.Error(), s.token, "***"))
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var out apiResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("HTTP %d: 无法解析响应", resp.StatusCode)
	}
	if !out.OK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, out.Description)
	}
	return nil
}
