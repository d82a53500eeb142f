// Package app はコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"database/sql"
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

	"github.com/hitoshi/helpdesk/internal/auth"
	"github.com/hitoshi/helpdesk/internal/cache"
	"github.com/hitoshi/helpdesk/internal/config"
	"github.com/hitoshi/helpdesk/internal/database"
	"github.com/hitoshi/helpdesk/internal/handler"
	"github.com/hitoshi/helpdesk/internal/identity"
	"github.com/hitoshi/helpdesk/internal/logger"
	"github.com/hitoshi/helpdesk/internal/metrics"
	"github.com/hitoshi/helpdesk/internal/middleware"
	"github.com/hitoshi/helpdesk/internal/repository"
	"github.com/hitoshi/helpdesk/internal/security"
	"github.com/hitoshi/helpdesk/internal/ticket"
	"github.com/hitoshi/helpdesk/internal/view"
)

// dbPingTimeout はヘルスチェックでのDB疎通確認のタイムアウト。
const dbPingTimeout = 2 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, cfg.LogLevel)
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
			port = "8080"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はWebサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := database.Ping(ctx, db, 5*time.Second); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established")

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	views, closeCache, err := newViewCache(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer closeCache()

	router, limiter, err := buildRouter(cfg, db, views, collector, registry)
	if err != nil {
		return err
	}
	defer limiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-stop:
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// newViewCache はREDIS_ADDRが設定されていればRedisビューキャッシュを、なければNopを返す。
func newViewCache(ctx context.Context, cfg *config.Config, mc metrics.MetricsCollector) (cache.ViewCache, func(), error) {
	if !cfg.CacheEnabled() {
		slog.Info("view cache disabled")
		return cache.Nop{}, func() {}, nil
	}

	client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		return nil, nil, err
	}
	slog.Info("view cache enabled", slog.String("addr", cfg.RedisAddr))

	closeFn := func() {
		if err := client.Close(); err != nil {
			slog.Warn("failed to close redis client", slog.String("error", err.Error()))
		}
	}
	return cache.NewRedisViewCache(client, cfg.ViewCacheTTL, mc), closeFn, nil
}

// buildRouter はリポジトリからハンドラーまでを組み立て、ルーターを返す。
// 返されたRateLimiterは停止時にStopを呼ぶこと。
func buildRouter(
	cfg *config.Config,
	db *sql.DB,
	views cache.ViewCache,
	collector *metrics.Collector,
	gatherer prometheus.Gatherer,
) (http.Handler, *middleware.RateLimiter, error) {
	renderer, err := view.New()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse templates: %w", err)
	}

	ticketRepo := repository.NewPostgresTicketRepo(db)
	ticketService := ticket.NewService(ticketRepo, views, security.NewTextSanitizer(), collector)

	identityClient := identity.NewGoTrueClient(identity.ClientConfig{
		BaseURL: cfg.IdentityURL,
		AnonKey: cfg.IdentityAnonKey,
		Timeout: cfg.IdentityTimeout,
	}, collector)
	authService := auth.NewService(identityClient)
	sessions := auth.NewManager(authService, auth.NewCookieStore(auth.CookieConfig{
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
		MaxAge: cfg.SessionMaxAge,
	}))

	limiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitAuth))

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:      slog.Default(),
		Sessions:    sessions,
		RateLimiter: limiter,
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Metrics: collector,

		Views: renderer,

		AuthService: authService,
		AuthConfig:  handler.AuthHandlerConfig{CallbackURL: cfg.CallbackURL()},

		TicketService: ticketService,

		Health: func(ctx context.Context) error {
			return database.Ping(ctx, db, dbPingTimeout)
		},
		MetricsHandler: metrics.Handler(gatherer),
	})

	return router, limiter, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
func runHealthcheck(target string) error {
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

// maskDatabaseURL はデータベースURLのパスワードを伏せ字にする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
