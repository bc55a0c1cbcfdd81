package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGenerate_OpenAI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-key" {
			t.Errorf("unexpected auth header: %s", r.Header.Get("Authorization"))
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "test-model" || req.MaxTokens != 2048 {
			t.Errorf("unexpected request: %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		if req.Temperature != nil {
			t.Errorf("temperature should be omitted when zero, got %v", *req.Temperature)
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices":[{"message":{"role":"assistant","content":"<b>摘要</b>"}}]}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "test-key", "test-model", Options{MaxTokens: 2048}, time.Second)
	text, err := provider.Generate(context.Background(), []Message{System("你是编辑"), User("hi")})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "<b>摘要</b>" {
		t.Errorf("got %q", text)
	}
}

func TestGenerate_OpenAINon200(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":"rate limited"}`)
	}))
	defer server.Close()

	provider := NewOpenAIProvider(server.URL, "key", "model", Options{}, time.Second)
	_, err := provider.Generate(context.Background(), []Message{User("hi")})
	if err == nil {
		t.Fatal("expected error for non-200 status")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != 429 {
		t.Errorf("expected APIError with 429, got %v", err)
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should contain status code 429: %v", err)
	}
}

func TestGenerate_OpenAIEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[]}`)
	}))
	defer server.Close()

	_, err := NewOpenAIProvider(server.URL, "key", "model", Options{}, time.Second).
		Generate(context.Background(), []Message{User("hi")})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Errorf("expected ErrEmptyResponse, got %v", err)
	}
}

func TestGenerate_Gemini(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-1.5-flash:generateContent" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "g-key" {
			t.Errorf("unexpected key: %s", r.URL.Query().Get("key"))
		}

		body, _ := io.ReadAll(r.Body)
		var req struct {
			Contents []struct {
				Role  string `json:"role"`
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"contents"`
			GenerationConfig struct {
				MaxOutputTokens int      `json:"maxOutputTokens"`
				Temperature     *float64 `json:"temperature"`
			} `json:"generationConfig"`
		}
		if err := json.Unmarshal(body, &req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if len(req.Contents) != 1 || req.Contents[0].Role != "user" {
			t.Fatalf("unexpected contents: %s", body)
		}
		if got := req.Contents[0].Parts[0].Text; got != "你是编辑\n\n今天的新闻" {
			t.Errorf("system prompt should be prepended, got %q", got)
		}
		if req.GenerationConfig.MaxOutputTokens != 8192 {
			t.Errorf("maxOutputTokens: %d", req.GenerationConfig.MaxOutputTokens)
		}
		if req.GenerationConfig.Temperature == nil || *req.GenerationConfig.Temperature != 0.7 {
			t.Errorf("temperature not sent: %s", body)
		}

		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"第一段"},{"text":"第二段"}]}}]}`)
	}))
	defer server.Close()

	provider := NewGeminiProvider(server.URL, "g-key", "gemini-1.5-flash", Options{MaxTokens: 8192, Temperature: 0.7}, time.Second)
	text, err := provider.Generate(context.Background(), []Message{System("你是编辑"), User("今天的新闻")})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "第一段第二段" {
		t.Errorf("got %q", text)
	}
}

func TestGenerate_GeminiErrorHidesKey(t *testing.T) {
	provider := NewGeminiProvider("http://127.0.0.1:1", "secret-key", "m", Options{}, time.Second)
	_, err := provider.Generate(context.Background(), []Message{User("hi")})
	if err == nil {
		t.Fatal("expected connection error")
	}
	if strings.Contains(err.Error(), "secret-key") {
		t.Errorf("error leaks api key: %v", err)
	}
}
