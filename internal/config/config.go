package config

import (
	"crypto/rand"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/noteman/internal/security"
)

// 実行環境
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// ストアのバックエンド
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendDynamoDB = "dynamodb"
)

// MinJWTSecretLength は本番環境で要求する署名鍵の最小バイト数。
const MinJWTSecretLength = 32

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	AppEnv string

	// Server
	ServerPort   string
	MaxBodyBytes int64

	// Token
	JWTSecret []byte
	// JWTSecretGenerated はJWT_SECRET未設定のためプロセスごとの乱数鍵を生成したことを示す。
	// 再起動で発行済みトークンはすべて無効になる。
	JWTSecretGenerated bool
	TokenTTL           time.Duration

	// Store
	StoreBackend string
	DatabaseURL  string

	// DynamoDB
	DynamoRegion     string
	DynamoEndpoint   string
	DynamoUsersTable string
	DynamoNotesTable string

	// CORS
	CORSAllowedOrigin string

	// Logging
	LogLevel string

	// Chat
	ChatAPIKey   string
	ChatEndpoint string
	ChatModel    string
	ChatTimeout  time.Duration
}

// IsProduction は本番環境で動作しているかを返す。
func (c *Config) IsProduction() bool {
	return c.AppEnv == EnvProduction
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数の未設定や不正な値はまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	p := &envParser{}
	cfg := &Config{}

	cfg.AppEnv = p.oneOf("APP_ENV", EnvDevelopment, EnvDevelopment, EnvProduction)
	cfg.ServerPort = p.port("SERVER_PORT", "8081")
	cfg.MaxBodyBytes = p.positiveInt64("MAX_BODY_BYTES", 10<<20)
	cfg.TokenTTL = p.duration("TOKEN_TTL", 7*24*time.Hour)

	cfg.StoreBackend = p.oneOf("STORE_BACKEND", BackendMemory, BackendMemory, BackendPostgres, BackendDynamoDB)
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.StoreBackend == BackendPostgres && cfg.DatabaseURL == "" {
		p.missing = append(p.missing, "DATABASE_URL")
	}

	cfg.DynamoRegion = getEnvString("DYNAMODB_REGION", "us-east-1")
	cfg.DynamoEndpoint = os.Getenv("DYNAMODB_ENDPOINT")
	cfg.DynamoUsersTable = getEnvString("DYNAMODB_USERS_TABLE", "Users")
	cfg.DynamoNotesTable = getEnvString("DYNAMODB_NOTES_TABLE", "Notes")

	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "*")
	cfg.LogLevel = p.oneOf("LOG_LEVEL", "info", "debug", "info", "warn", "error")

	cfg.ChatAPIKey = os.Getenv("CHAT_API_KEY")
	cfg.ChatEndpoint = getEnvString("CHAT_ENDPOINT", "https://api.groq.com/openai/v1/chat/completions")
	cfg.ChatModel = getEnvString("CHAT_MODEL", "llama-3.1-8b-instant")
	cfg.ChatTimeout = p.duration("CHAT_TIMEOUT", 30*time.Second)

	secret := os.Getenv("JWT_SECRET")
	switch {
	case secret != "":
		if cfg.IsProduction() && len(secret) < MinJWTSecretLength {
			p.invalid = append(p.invalid, fmt.Sprintf("JWT_SECRET (must be at least %d bytes)", MinJWTSecretLength))
		}
		cfg.JWTSecret = []byte(secret)
	case cfg.IsProduction():
		p.missing = append(p.missing, "JWT_SECRET")
	default:
		generated := make([]byte, MinJWTSecretLength)
		if _, err := rand.Read(generated); err != nil {
			return nil, fmt.Errorf("failed to generate development JWT secret: %w", err)
		}
		cfg.JWTSecret = generated
		cfg.JWTSecretGenerated = true
	}

	if cfg.IsProduction() && cfg.ChatAPIKey != "" {
		if err := security.ValidateEgressEndpoint(cfg.ChatEndpoint); err != nil {
			p.invalid = append(p.invalid, fmt.Sprintf("CHAT_ENDPOINT (%v)", err))
		}
	}

	if err := p.err(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envParser は環境変数の読み取りエラーを蓄積する。
type envParser struct {
	missing []string
	invalid []string
}

func (p *envParser) err() error {
	var parts []string
	if len(p.missing) > 0 {
		parts = append(parts, fmt.Sprintf("required environment variables are not set: %v", p.missing))
	}
	if len(p.invalid) > 0 {
		parts = append(parts, fmt.Sprintf("invalid environment variables: %v", p.invalid))
	}
	if len(parts) == 0 {
		return nil
	}
	return fmt.Errorf("%s", strings.Join(parts, "; "))
}

func (p *envParser) oneOf(key, defaultVal string, allowed ...string) string {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	v = strings.ToLower(v)
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	p.invalid = append(p.invalid, fmt.Sprintf("%s (must be one of %s)", key, strings.Join(allowed, "/")))
	return defaultVal
}

func (p *envParser) port(key, defaultVal string) string {
	v := getEnvString(key, defaultVal)
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 || n > 65535 {
		p.invalid = append(p.invalid, key)
		return defaultVal
	}
	return v
}

func (p *envParser) positiveInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil || i <= 0 {
		p.invalid = append(p.invalid, key)
		return defaultVal
	}
	return i
}

func (p *envParser) duration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		p.invalid = append(p.invalid, key)
		return defaultVal
	}
	return d
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}
