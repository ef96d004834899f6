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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/blogdesk/internal/auth"
	"github.com/hitoshi/blogdesk/internal/config"
	"github.com/hitoshi/blogdesk/internal/database"
	"github.com/hitoshi/blogdesk/internal/feed"
	"github.com/hitoshi/blogdesk/internal/handler"
	"github.com/hitoshi/blogdesk/internal/logger"
	"github.com/hitoshi/blogdesk/internal/metrics"
	"github.com/hitoshi/blogdesk/internal/middleware"
	"github.com/hitoshi/blogdesk/internal/post"
	"github.com/hitoshi/blogdesk/internal/repository"
	"github.com/hitoshi/blogdesk/internal/security"
	"github.com/hitoshi/blogdesk/internal/taxonomy"
	"github.com/hitoshi/blogdesk/internal/waitlist"
	"github.com/hitoshi/blogdesk/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 設定読み込み前にログを使えるようにする
	logger.SetupDefault(w, "info")

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
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.Bool("admin_enabled", cfg.AdminEnabled()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.DefaultPoolOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)

	// リポジトリ
	postRepo := repository.NewPostgresPostRepo(db, collector)
	postTagRepo := repository.NewPostgresPostTagRepo(db, collector)
	categoryRepo := repository.NewPostgresCategoryRepo(db, collector)
	tagRepo := repository.NewPostgresTagRepo(db, collector)
	waitlistRepo := repository.NewPostgresWaitlistRepo(db, collector)

	// ドメインサービス
	images := security.NewFeaturedImageValidator(cfg.MaxFeaturedImageBytes)
	postService := post.NewService(postRepo, postTagRepo, post.Options{
		TagMode:   post.TagMode(cfg.TagAssignmentMode),
		ListLimit: cfg.PublicListLimit,
		Sanitizer: security.NewContentSanitizer(),
		Images:    images,
		Metrics:   collector,
		Logger:    slog.Default(),
	})
	taxonomyService := taxonomy.NewService(categoryRepo, tagRepo, images)
	waitlistService := waitlist.NewService(waitlistRepo, collector)

	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(
		cfg.RateLimitPublic, cfg.RateLimitAdmin, cfg.RateLimitImport,
	))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: strings.HasPrefix(cfg.BaseURL, "https://"),
		},
		HTTPMetrics: collector,

		BlogService: handler.NewBlogServiceAdapter(postService),
		Site: feed.Site{
			Title:       cfg.SiteTitle,
			Description: cfg.SiteDescription,
			BaseURL:     cfg.BaseURL,
		},
		DB:      db,
		Metrics: metrics.Handler(prometheus.DefaultGatherer),

		PostService:     postService,
		TaxonomyService: taxonomyService,
		WaitlistService: waitlistService,
	}
	if cfg.AdminEnabled() {
		deps.Verifier = auth.NewTokenVerifier(cfg.JWTSecret, cfg.JWTAudience)
	} else {
		slog.Warn("AUTH_JWT_SECRET is not set; admin API is disabled")
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
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

// runWorker はワーカーモードで起動する。
// 孤立した記事タグと存在しないカテゴリ参照の掃除をCLEANUP_INTERVALごとに実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	job := cleanup.NewOrphanCleanupJob(db, collector, slog.Default())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("worker starting", slog.Duration("cleanup_interval", cfg.CleanupInterval))

	// ctxがキャンセルされるまでブロックする
	job.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
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

// maskDatabaseURL はデータベースURLのパスワード（ストアのアクセスキー）をマスクする。
// 解析できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
