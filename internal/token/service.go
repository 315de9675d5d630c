// Package token はBearerトークン（HS256署名JWT）の発行と検証を提供する。
// サーバー側に失効リストは持たず、有効性は署名と有効期限のみで判定する。
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTTL はトークンの有効期間（7日）。
const DefaultTTL = 7 * 24 * time.Hour

// expiryLeeway はexpクレームの秒精度に合わせた猶予。
const expiryLeeway = time.Second

var (
	// ErrInvalidToken は形式不正・署名不一致・必須クレーム欠落を示す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken は有効期限切れを示す。
	ErrExpiredToken = errors.New("token expired")
)

// Claims はトークンに埋め込むクレーム。subにユーザーIDを格納する。
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserID はsubクレームのユーザーIDを返す。
func (c *Claims) UserID() string {
	return c.Subject
}

// Option はServiceの設定を変更する。
type Option func(*Service)

// WithTTL は有効期間を差し替える。0以下は無視する。
func WithTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock は現在時刻の取得関数を差し替える（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// Service はトークンの発行と検証を行う。
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewService はServiceを生成する。secretはサーバーのみが保持する署名鍵。
func NewService(secret []byte, opts ...Option) *Service {
	s := &Service{
		secret: secret,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Issue はiat=現在時刻、exp=現在時刻+TTLのトークンを発行する。
func (s *Service) Issue(userID, email string) (string, error) {
	if len(s.secret) == 0 {
		return "", errors.New("token signing secret is not configured")
	}

	now := s.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Validate は署名を検証したうえでクレームを返す。
// 現在時刻がexpを過ぎていればErrExpiredToken（expちょうどは有効）、それ以外の失敗はすべてErrInvalidTokenになる。
func (s *Service) Validate(tokenString string) (*Claims, error) {
	if tokenString == "" || len(s.secret) == 0 {
		return nil, ErrInvalidToken
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(tokenString, claims,
		func(t *jwt.Token) (interface{}, error) {
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(s.now),
		// jwtはnow==expを期限切れとみなす。expちょうどは有効とし、expを過ぎてから拒否する
		jwt.WithLeeway(expiryLeeway),
	)
	if err != nil {
		// 署名検証はクレーム検証より先に行われるため、
		// ErrTokenExpiredは正しく署名されたトークンでのみ返る
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if !parsed.Valid || claims.Subject == "" || claims.Email == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
