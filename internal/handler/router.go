package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/noteman/internal/metrics"
	"github.com/hitoshi/noteman/internal/middleware"
	"github.com/hitoshi/noteman/internal/repository"
	"github.com/hitoshi/noteman/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	MaxBodyBytes      int64

	// メトリクス（nilの場合は/metricsを公開しない）
	Collector metrics.MetricsCollector
	Gatherer  prometheus.Gatherer

	// ヘルスチェック（nilの場合はストアの疎通確認を行わない）
	Pinger repository.Pinger

	AuthService AuthServiceInterface
	NoteService NoteServiceInterface
	Excerpter   security.Excerpter
	ChatClient  ChatClient
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → Metrics → SecurityHeaders → CORS → BodyLimit → (Auth)
//
// /health と /metrics、サインアップ・ログインは認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.Collector != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Collector))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewBodyLimitMiddleware(deps.MaxBodyBytes))

	r.NotFound(NotFound)
	r.MethodNotAllowed(MethodNotAllowed)

	authHandler := NewAuthHandler(deps.AuthService)
	noteHandler := NewNoteHandler(deps.NoteService, deps.Excerpter)
	chatHandler := NewChatHandler(deps.ChatClient, deps.Collector)
	healthHandler := NewHealthHandler(deps.Pinger)
	requireAuth := middleware.NewAuthMiddleware(deps.TokenValidator)

	// --- 認証不要のルート ---
	r.Get("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/signup", authHandler.Signup)
			r.Post("/login", authHandler.Login)
			r.With(requireAuth).Post("/verify", authHandler.Verify)
		})

		// --- 認証が必要なルート ---
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Route("/notes", func(r chi.Router) {
				r.Get("/", noteHandler.ListNotes)
				r.Post("/", noteHandler.CreateNote)
				r.Get("/stats", noteHandler.GetStats)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", noteHandler.GetNote)
					r.Put("/", noteHandler.UpdateNote)
					r.Delete("/", noteHandler.DeleteNote)
				})
			})

			r.Post("/chat", chatHandler.Chat)
		})
	})

	return r
}
