package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/noteman/internal/assistant"
	"github.com/hitoshi/noteman/internal/metrics"
	"github.com/hitoshi/noteman/internal/model"
)

// ChatClient はチャットハンドラーが必要とする外部APIクライアントのインターフェース。
type ChatClient interface {
	Enabled() bool
	Complete(ctx context.Context, message string, history []assistant.Message) (string, error)
}

// ChatHandler はチャットアシスタントのHTTPハンドラー。
// 会話は外部APIへ中継するだけで保存しない。
type ChatHandler struct {
	client    ChatClient
	collector metrics.MetricsCollector
}

// NewChatHandler はChatHandlerを生成する。collectorはnilでもよい。
func NewChatHandler(client ChatClient, collector metrics.MetricsCollector) *ChatHandler {
	return &ChatHandler{
		client:    client,
		collector: collector,
	}
}

type chatRequest struct {
	Message string              `json:"message"`
	History []assistant.Message `json:"history"`
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Chat はメッセージと会話履歴を外部APIへ送り、返答を返す。
// POST /api/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req chatRequest
	if apiErr := decodeJSON(r, &req); apiErr != nil {
		handleServiceError(w, r, apiErr)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		handleServiceError(w, r, model.NewValidationError("Message is required"))
		return
	}

	if !h.client.Enabled() {
		h.record(metrics.ResultFailure)
		handleServiceError(w, r, model.NewAssistantDisabledError())
		return
	}

	reply, err := h.client.Complete(r.Context(), req.Message, req.History)
	if err != nil {
		h.record(metrics.ResultFailure)
		slog.Warn("chat request failed",
			slog.String("user_id", identity.UserID),
			slog.String("error", err.Error()),
		)
		switch {
		case errors.Is(err, assistant.ErrRateLimited):
			handleServiceError(w, r, model.NewUpstreamRateLimitedError())
		case errors.Is(err, assistant.ErrDisabled):
			handleServiceError(w, r, model.NewAssistantDisabledError())
		default:
			handleServiceError(w, r, model.NewAssistantFailedError())
		}
		return
	}

	h.record(metrics.ResultSuccess)
	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}

func (h *ChatHandler) record(result string) {
	if h.collector != nil {
		h.collector.RecordChatRequest(result)
	}
}
