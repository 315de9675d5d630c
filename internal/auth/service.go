// Package auth はメールアドレスとパスワードによるサインアップ、ログイン、トークン確認を提供する。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/hitoshi/noteman/internal/metrics"
	"github.com/hitoshi/noteman/internal/model"
	"github.com/hitoshi/noteman/internal/passhash"
	"github.com/hitoshi/noteman/internal/repository"
)

// MinPasswordLength はパスワードの最小文字数（Unicodeコードポイント数）。
const MinPasswordLength = 6

// TokenIssuer はBearerトークンを発行する。
type TokenIssuer interface {
	Issue(userID, email string) (string, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	userRepo repository.UserRepository
	tokens   TokenIssuer
	metrics  metrics.MetricsCollector
	now      func() time.Time
}

// NewService はServiceを生成する。collectorはnilでもよい。
func NewService(userRepo repository.UserRepository, tokens TokenIssuer, collector metrics.MetricsCollector) *Service {
	return &Service{
		userRepo: userRepo,
		tokens:   tokens,
		metrics:  collector,
		now:      time.Now,
	}
}

// Signup はユーザーを登録し、登録したユーザーとトークンを返す。
// メールアドレスは大文字小文字を区別してそのまま保存する。
func (s *Service) Signup(ctx context.Context, email, password string) (*model.User, string, error) {
	user, token, err := s.signup(ctx, email, password)
	s.recordResult(metrics.AuthEventSignup, err)
	return user, token, err
}

func (s *Service) signup(ctx context.Context, email, password string) (*model.User, string, error) {
	if email == "" || password == "" {
		return nil, "", model.NewValidationError("Email and password are required")
	}
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return nil, "", model.NewValidationError(
			fmt.Sprintf("Password must be at least %d characters", MinPasswordLength))
	}

	// 重複時にハッシュ計算を省くための事前確認。一意性はCreateの条件付き書き込みで保証する
	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to check existing user: %w", err)
	}
	if exists {
		return nil, "", model.NewConflictError()
	}

	hash, err := passhash.Hash(password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, model.ErrEmailTaken) {
			return nil, "", model.NewConflictError()
		}
		return nil, "", fmt.Errorf("failed to create user: %w", err)
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user signed up", slog.String("user_id", user.ID))
	return user, token, nil
}

// Login は資格情報を検証し、ユーザーとトークンを返す。
// メールアドレスが未登録の場合とパスワード不一致の場合は同じエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, token, err := s.login(ctx, email, password)
	s.recordResult(metrics.AuthEventLogin, err)
	return user, token, err
}

func (s *Service) login(ctx context.Context, email, password string) (*model.User, string, error) {
	if email == "" || password == "" {
		return nil, "", model.NewValidationError("Email and password are required")
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		passhash.VerifyDummy(password)
		return nil, "", model.NewAuthenticationError()
	}

	ok, err := passhash.Verify(user.PasswordHash, password)
	if err != nil {
		return nil, "", fmt.Errorf("failed to verify password for user %s: %w", user.ID, err)
	}
	if !ok {
		slog.Warn("login failed: password mismatch", slog.String("user_id", user.ID))
		return nil, "", model.NewAuthenticationError()
	}

	token, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("failed to issue token: %w", err)
	}

	slog.Info("user logged in", slog.String("user_id", user.ID))
	return user, token, nil
}

// Verify は認証ゲートが解決したIdentityのユーザーが存在することを確認する。
func (s *Service) Verify(ctx context.Context, identity model.Identity) (*model.User, error) {
	user, err := s.verify(ctx, identity)
	s.recordResult(metrics.AuthEventVerify, err)
	return user, err
}

func (s *Service) verify(ctx context.Context, identity model.Identity) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

func (s *Service) recordResult(event string, err error) {
	if s.metrics == nil {
		return
	}
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultFailure
	}
	s.metrics.RecordAuthEvent(event, result)
}
