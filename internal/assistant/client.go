// Package assistant はノートアプリ用チャットアシスタントの外部API連携を提供する。
// OpenAI互換のchat completions APIへ会話を中継するだけで、会話内容は保存しない。
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

const (
	// DefaultEndpoint はGroqのOpenAI互換chat completionsエンドポイント。
	DefaultEndpoint = "https://api.groq.com/openai/v1/chat/completions"
	// DefaultModel は既定のモデル名。
	DefaultModel = "llama-3.1-8b-instant"
	// SystemPrompt は会話の先頭に付与するシステムプロンプト。
	SystemPrompt = "You are a helpful assistant for a personal notes app."
	// FallbackReply は応答本文が空だった場合の返答。
	FallbackReply = "Sorry, I could not generate a response."

	temperature = 0.7
	maxTokens   = 512
	// maxResponseBytes はレスポンスボディの読み取り上限。
	maxResponseBytes = 1 << 20
)

// ロール名
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

var (
	// ErrDisabled はAPIキー未設定でアシスタントが無効であることを示す。
	ErrDisabled = errors.New("chat assistant is not configured")
	// ErrRateLimited は外部APIがレート制限（429）を返したことを示す。
	ErrRateLimited = errors.New("chat provider rate limit hit")
)

// Message は会話履歴の1件。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Config はクライアントの接続設定。
type Config struct {
	APIKey   string
	Endpoint string
	Model    string
}

// Client はchat completions APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string
	model      string
}

// NewClient はClientの新しいインスタンスを生成する。
// EndpointとModelが空の場合は既定値を使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, cfg Config) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		model:      model,
	}
}

// Enabled はAPIキーが設定されているかを返す。
func (c *Client) Enabled() bool {
	return c.apiKey != ""
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
}

type completionResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// BuildMessages はシステムプロンプト、履歴、今回のメッセージを連結する。
// 履歴のロールは"user"以外をすべて"assistant"として扱う。
func BuildMessages(message string, history []Message) []Message {
	messages := make([]Message, 0, len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt})
	for _, m := range history {
		role := RoleAssistant
		if m.Role == RoleUser {
			role = RoleUser
		}
		messages = append(messages, Message{Role: role, Content: m.Content})
	}
	return append(messages, Message{Role: RoleUser, Content: message})
}

// Complete は会話を外部APIへ送信し、最初の候補の本文を返す。
// 外部APIが429を返した場合はErrRateLimitedを返す。再試行は行わない。
func (c *Client) Complete(ctx context.Context, message string, history []Message) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	payload, err := json.Marshal(completionRequest{
		Model:       c.model,
		Messages:    BuildMessages(message, history),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", "Noteman/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("chat API call failed",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("chat API call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		c.logger.Warn("chat API rate limited",
			slog.Int("http_status", resp.StatusCode),
		)
		return "", ErrRateLimited
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Error("chat API returned error status",
			slog.Int("http_status", resp.StatusCode),
			slog.String("body", truncate(string(body), 512)),
		)
		return "", fmt.Errorf("chat API returned status %d", resp.StatusCode)
	}

	var result completionResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("failed to parse chat API response",
			slog.String("error", err.Error()),
		)
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return FallbackReply, nil
	}
	return result.Choices[0].Message.Content, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
