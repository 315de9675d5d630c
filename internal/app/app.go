package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/noteman/internal/assistant"
	"github.com/hitoshi/noteman/internal/auth"
	"github.com/hitoshi/noteman/internal/config"
	"github.com/hitoshi/noteman/internal/database"
	"github.com/hitoshi/noteman/internal/handler"
	"github.com/hitoshi/noteman/internal/logger"
	"github.com/hitoshi/noteman/internal/metrics"
	"github.com/hitoshi/noteman/internal/note"
	"github.com/hitoshi/noteman/internal/repository"
	"github.com/hitoshi/noteman/internal/security"
	"github.com/hitoshi/noteman/internal/token"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, "info")

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再構成する
	logger.SetupDefault(w, cfg.LogLevel)

	if cfg.JWTSecretGenerated {
		slog.Warn("JWT_SECRET is not set; using a random per-process secret",
			slog.String("app_env", cfg.AppEnv),
		)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8081"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("app_env", cfg.AppEnv),
		slog.String("port", cfg.ServerPort),
		slog.String("store", cfg.StoreBackend),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return runServe(ctx, cfg)
	}
}

// Stores は選択されたバックエンドのリポジトリ群。
type Stores struct {
	Users  repository.UserRepository
	Notes  repository.NoteRepository
	Pinger repository.Pinger // memoryの場合はnil
	Close  func() error
}

// OpenStores はSTORE_BACKENDに応じてリポジトリを構築する。
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")
		return &Stores{
			Users:  repository.NewPostgresUserRepo(db),
			Notes:  repository.NewPostgresNoteRepo(db),
			Pinger: db,
			Close:  db.Close,
		}, nil

	case config.BackendDynamoDB:
		client, err := repository.NewDynamoClient(ctx, repository.DynamoConfig{
			Region:   cfg.DynamoRegion,
			Endpoint: cfg.DynamoEndpoint,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("dynamodb client configured",
			slog.String("region", cfg.DynamoRegion),
			slog.String("users_table", cfg.DynamoUsersTable),
			slog.String("notes_table", cfg.DynamoNotesTable),
		)
		return &Stores{
			Users:  repository.NewDynamoUserRepo(client, cfg.DynamoUsersTable),
			Notes:  repository.NewDynamoNoteRepo(client, cfg.DynamoNotesTable),
			Pinger: repository.NewDynamoPinger(client, cfg.DynamoUsersTable),
			Close:  func() error { return nil },
		}, nil

	default:
		slog.Warn("using in-memory store; data is lost on restart")
		return &Stores{
			Users: repository.NewMemoryUserRepo(),
			Notes: repository.NewMemoryNoteRepo(),
			Close: func() error { return nil },
		}, nil
	}
}

// NewHandler は全依存関係をワイヤリングしたHTTPハンドラーを返す。
func NewHandler(cfg *config.Config, stores *Stores) http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	tokens := token.NewService(cfg.JWTSecret, token.WithTTL(cfg.TokenTTL))

	// 本番では外部LLMへの接続をパブリックなHTTPSに限定する
	httpClient := &http.Client{Timeout: cfg.ChatTimeout}
	if cfg.IsProduction() {
		httpClient = security.NewEgressClient(cfg.ChatTimeout)
	}
	chat := assistant.NewClient(httpClient, slog.Default(), assistant.Config{
		APIKey:   cfg.ChatAPIKey,
		Endpoint: cfg.ChatEndpoint,
		Model:    cfg.ChatModel,
	})
	if !chat.Enabled() {
		slog.Info("chat assistant disabled; CHAT_API_KEY is not set")
	}

	return handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		TokenValidator:    tokens,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		MaxBodyBytes:      cfg.MaxBodyBytes,
		Collector:         collector,
		Gatherer:          registry,
		Pinger:            stores.Pinger,
		AuthService:       auth.NewService(stores.Users, tokens, collector),
		NoteService:       note.NewService(stores.Notes, collector),
		Excerpter:         security.NewExcerptBuilder(security.DefaultExcerptLength),
		ChatClient:        chat,
	})
}

// runServe はAPIサーバーモードで起動する。
// ストアを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      NewHandler(cfg, stores),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.ChatTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// postgres以外のバックエンドでは何もしない。
func runMigrate(cfg *config.Config) error {
	if cfg.StoreBackend != config.BackendPostgres {
		slog.Info("migrations skipped", slog.String("store", cfg.StoreBackend))
		return nil
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("schema_version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
