// Package app はアプリケーションの起動とサブコマンドごとの依存関係のワイヤリングを行う。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/jovenes/internal/auth"
	"github.com/hitoshi/jovenes/internal/config"
	"github.com/hitoshi/jovenes/internal/content"
	"github.com/hitoshi/jovenes/internal/database"
	"github.com/hitoshi/jovenes/internal/handler"
	"github.com/hitoshi/jovenes/internal/logger"
	"github.com/hitoshi/jovenes/internal/metrics"
	"github.com/hitoshi/jovenes/internal/middleware"
	"github.com/hitoshi/jovenes/internal/repository"
	"github.com/hitoshi/jovenes/internal/security"
	"github.com/hitoshi/jovenes/internal/storage"
	"github.com/hitoshi/jovenes/internal/worker/cleanup"
)

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定に従ってログレベルを変更する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		slog.Warn("invalid LOG_LEVEL, using info", slog.String("error", err.Error()))
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, err := ParseCommand(args)
	if err != nil {
		return err
	}
	if cmd == CommandHelp {
		Usage(w)
		return nil
	}

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
		slog.String("storage_backend", cfg.StorageBackend),
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

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	contentRepo := repository.NewPostgresContentRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	// 3. メトリクスの初期化
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 4. 添付ファイルストアの初期化
	blobs, err := buildBlobStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	attachments := storage.NewAttachmentStore(blobs)

	// 5. ドメインサービスの初期化
	verifier, err := auth.NewBcryptVerifier(cfg.AdminUsername, cfg.AdminPasswordHash)
	if err != nil {
		return fmt.Errorf("invalid admin credentials config: %w", err)
	}
	authService := auth.NewService(verifier, sessionRepo, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})
	contentService := content.NewService(contentRepo, attachments, collector)

	// 6. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitLogin),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		StatusRecorder: collector,
		MaxUploadSize:  cfg.MaxUploadSize,
		LoginURL:       cfg.LoginURL(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		ContentService: handler.NewContentServiceAdapter(contentService, attachments, security.NewContentSanitizer()),

		HealthPinger:   db,
		MetricsHandler: metrics.Handler(reg),
	}
	if cfg.StorageBackend == config.StorageBackendLocal {
		deps.UploadDir = cfg.UploadDir
		deps.UploadURLPrefix = cfg.UploadURLPrefix
	}

	router := handler.NewRouter(deps)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return serveUntilSignal(server, "API server")
}

// runWorker はワーカーモードで起動する。
// 孤児ファイルの回収と期限切れセッションの削除を定期実行し、
// /metrics と /health を公開する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	// 2. リポジトリとストアの初期化
	contentRepo := repository.NewPostgresContentRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)

	blobs, err := buildBlobStore(context.Background(), cfg)
	if err != nil {
		return err
	}

	// 3. セッション削除はauth.Serviceを経由する（認証情報の検証は使わない）
	verifier, err := auth.NewBcryptVerifier(cfg.AdminUsername, cfg.AdminPasswordHash)
	if err != nil {
		return fmt.Errorf("invalid admin credentials config: %w", err)
	}
	authService := auth.NewService(verifier, sessionRepo, auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge})

	// 4. メトリクスの初期化
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 5. クリーンアップジョブの初期化
	job := cleanup.NewCleanupJob(blobs, contentRepo, authService, collector, slog.Default())
	job.GracePeriod = cfg.OrphanGracePeriod

	// SIGINT/SIGTERMでctxがキャンセルされる。stopでシグナルの購読を解除する
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// メトリクスとヘルスチェックの公開
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.Handle("/health", handler.NewHealthHandler(db))
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
		slog.Duration("orphan_grace_period", cfg.OrphanGracePeriod),
	)

	runWorkerUntilDone(ctx, job, server, cfg.CleanupInterval)
	return nil
}

// periodicJob はctxがキャンセルされるまでブロックして定期実行するジョブ。
type periodicJob interface {
	Start(ctx context.Context, interval time.Duration)
}

// runWorkerUntilDone はメトリクスサーバーを起動してjobを実行し、
// ctxのキャンセル後にサーバーを停止する。
func runWorkerUntilDone(ctx context.Context, job periodicJob, server *http.Server, interval time.Duration) {
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", slog.String("error", err.Error()))
		}
	}()

	job.Start(ctx, interval)
	slog.Info("shutting down worker...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("worker metrics server shutdown failed", slog.String("error", err.Error()))
	}

	slog.Info("worker stopped gracefully")
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
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// serveUntilSignal はサーバーを起動し、SIGINTまたはSIGTERMで停止する。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}

	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// buildBlobStore は設定に従ってBlobストアを構築する。
func buildBlobStore(ctx context.Context, cfg *config.Config) (storage.BlobStore, error) {
	switch cfg.StorageBackend {
	case config.StorageBackendS3:
		blobs, err := storage.NewS3Blobs(ctx, storage.S3Options{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			PublicBaseURL:   cfg.S3PublicBaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 storage: %w", err)
		}
		return blobs, nil
	default:
		blobs, err := storage.NewLocalBlobs(cfg.UploadDir, cfg.UploadURLPrefix)
		if err != nil {
			return nil, fmt.Errorf("failed to init local storage: %w", err)
		}
		return blobs, nil
	}
}

// newRegistry はGoランタイムとプロセスのコレクターを登録したレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
