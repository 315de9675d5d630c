// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/token"
)

const bearerScheme = "Bearer"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// identityContextKey はリクエストコンテキストに認証済み主体を格納するためのキー。
var identityContextKey = contextKey("identity")

// TokenValidator はBearerトークンの検証に必要なインターフェース。
// token.Serviceの部分集合として定義する。
type TokenValidator interface {
	Validate(tokenString string) (*token.Claims, error)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 認証済みの主体をリクエストコンテキストに注入するミドルウェアを返す。
// ヘッダーは "Bearer <token>" の形式でなければならない。
// 失敗時は統一エラーフォーマットで401を返し、後続のハンドラーは呼ばない。
func NewAuthMiddleware(validator TokenValidator) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				rejectUnauthorized(w, r, "Missing Authorization header")
				return
			}

			parts := strings.Split(header, " ")
			if len(parts) != 2 || parts[0] != bearerScheme || parts[1] == "" {
				rejectUnauthorized(w, r, "Invalid Authorization header format")
				return
			}

			claims, err := validator.Validate(parts[1])
			if err != nil {
				message := "Invalid token"
				if errors.Is(err, token.ErrExpiredToken) {
					message = "Token expired"
				}
				rejectUnauthorized(w, r, message)
				return
			}

			ctx := ContextWithIdentity(r.Context(), model.Identity{
				UserID: claims.UserID(),
				Email:  claims.Email,
			})
			setLogUserID(ctx, claims.UserID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// rejectUnauthorized は認証失敗をWARNで記録し、401を返す。
// トークンやヘッダーの値はログに含めない。
func rejectUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	slog.Warn("authentication failed",
		slog.String("method", r.Method),
		slog.String("path", r.URL.Path),
		slog.String("reason", message),
	)
	WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError(message))
}

// IdentityFromContext はリクエストコンテキストから認証済みの主体を取得する。
// 認証ミドルウェアを通過したリクエストでのみokがtrueになる。
func IdentityFromContext(ctx context.Context) (model.Identity, bool) {
	id, ok := ctx.Value(identityContextKey).(model.Identity)
	if !ok || id.UserID == "" {
		return model.Identity{}, false
	}
	return id, true
}

// ContextWithIdentity はコンテキストに認証済みの主体を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithIdentity(ctx context.Context, id model.Identity) context.Context {
	return context.WithValue(ctx, identityContextKey, id)
}
