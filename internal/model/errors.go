// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, notes, assistant, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeConflict            = "CONFLICT"
	ErrCodeAuthentication      = "AUTHENTICATION_ERROR"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeUpstreamRateLimited = "UPSTREAM_RATE_LIMITED"
	ErrCodeAssistantDisabled   = "ASSISTANT_DISABLED"
	ErrCodeAssistantFailed     = "ASSISTANT_FAILED"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// ErrEmailTaken はメールアドレスが既に登録済みであることを示す。
// リポジトリ層の条件付き書き込みが失敗した場合に返される。
var ErrEmailTaken = errors.New("email already registered")

// NewValidationError は入力不備エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Check the request fields and try again.",
	}
}

// NewConflictError はメールアドレス重複エラーを生成する。
func NewConflictError() *APIError {
	return &APIError{
		Code:     ErrCodeConflict,
		Message:  "User with this email already exists",
		Category: "auth",
		Action:   "Log in with the existing account or use another email address.",
	}
}

// NewAuthenticationError はログイン時の資格情報不一致エラーを生成する。
// メールアドレスの存在有無を区別しない。
func NewAuthenticationError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthentication,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "Check your email and password.",
	}
}

// NewUnauthorizedError はBearerトークンの欠落・不正・期限切れエラーを生成する。
func NewUnauthorizedError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  message,
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewNoteNotFoundError はノート未検出エラーを生成する。
// 他ユーザーのノートも同じエラーになる。
func NewNoteNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "Note not found",
		Category: "notes",
		Action:   "Reload the note list.",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "User not found",
		Category: "auth",
		Action:   "Log in again.",
	}
}

// NewRouteNotFoundError は未定義ルートへのリクエストに対するエラーを生成する。
func NewRouteNotFoundError(method, path string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("Route %s %s not found", method, path),
		Category: "system",
		Action:   "Check the request URL.",
	}
}

// NewUpstreamRateLimitedError はチャットAPIのレート制限エラーを生成する。
func NewUpstreamRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeUpstreamRateLimited,
		Message:  "Chat provider rate limit hit. Please wait and try again.",
		Category: "assistant",
		Action:   "Wait a moment before sending another message.",
	}
}

// NewAssistantDisabledError はチャット機能が未設定の場合のエラーを生成する。
func NewAssistantDisabledError() *APIError {
	return &APIError{
		Code:     ErrCodeAssistantDisabled,
		Message:  "Chat assistant is not configured",
		Category: "assistant",
		Action:   "Ask the administrator to set CHAT_API_KEY.",
	}
}

// NewAssistantFailedError はチャットAPI呼び出し失敗エラーを生成する。
func NewAssistantFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAssistantFailed,
		Message:  "Chat request failed",
		Category: "assistant",
		Action:   "Try again later.",
	}
}

// NewInternalError は内部エラーの統一レスポンス用エラーを生成する。
// 詳細はログのみに記録する。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal Server Error",
		Category: "system",
		Action:   "Try again later.",
	}
}
