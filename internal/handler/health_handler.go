package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/repository"
)

const healthCheckTimeout = 2 * time.Second

// HealthHandler はヘルスチェックのHTTPハンドラー。
type HealthHandler struct {
	pinger repository.Pinger
	now    func() time.Time
}

// NewHealthHandler はHealthHandlerを生成する。
// pingerがnilの場合（インメモリストア）はストアの疎通確認を行わない。
func NewHealthHandler(pinger repository.Pinger) *HealthHandler {
	return &HealthHandler{
		pinger: pinger,
		now:    time.Now,
	}
}

type healthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Health はサーバーとストアの状態を返す。
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if h.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()

		if err := h.pinger.PingContext(ctx); err != nil {
			slog.Error("health check failed", slog.String("error", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, healthResponse{
				Status:    "unhealthy",
				Timestamp: h.now().UTC(),
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: h.now().UTC(),
	})
}

// NotFound は未定義ルートへのリクエストに404を返す。
func NotFound(w http.ResponseWriter, r *http.Request) {
	handleServiceError(w, r, model.NewRouteNotFoundError(r.Method, r.URL.Path))
}

// MethodNotAllowed は定義済みパスへの未対応メソッドを未定義ルートとして扱う。
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	NotFound(w, r)
}
