package app

import (
	"context"
	"database/sql"
	"errors"
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

	"github.com/hitoshi/growthsession/internal/auth"
	"github.com/hitoshi/growthsession/internal/config"
	"github.com/hitoshi/growthsession/internal/database"
	"github.com/hitoshi/growthsession/internal/growthsession"
	"github.com/hitoshi/growthsession/internal/handler"
	"github.com/hitoshi/growthsession/internal/logger"
	"github.com/hitoshi/growthsession/internal/metrics"
	"github.com/hitoshi/growthsession/internal/middleware"
	"github.com/hitoshi/growthsession/internal/repository"
	"github.com/hitoshi/growthsession/internal/security"
	"github.com/hitoshi/growthsession/internal/webhook"
	"github.com/hitoshi/growthsession/internal/worker/autoschedule"
	"github.com/hitoshi/growthsession/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、LOG_LEVELに従ってJSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
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
		slog.String("timezone", cfg.Location.String()),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandAutoSchedule:
		return runAutoSchedule(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := database.Open(cfg.DatabaseURL, database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return db, nil
}

// engine はグロースセッションサービスとその依存をまとめたもの。
type engine struct {
	service    *growthsession.Service
	dispatcher *webhook.Dispatcher
}

// newEngine はWebhook配信とサニタイザーを組み込んだグロースセッションサービスを構築する。
// 送信先URLが不正な場合はエラーを返す。
func newEngine(cfg *config.Config, db *sql.DB, collector metrics.MetricsCollector) (*engine, error) {
	guard := security.NewWebhookGuard(cfg.WebhookAllowHTTP)
	for kind, url := range cfg.WebhookEndpoints {
		if err := guard.ValidateURL(url); err != nil {
			return nil, fmt.Errorf("invalid webhook URL for %s: %w", kind, err)
		}
	}

	dispatcher := webhook.NewDispatcher(webhook.Config{
		Endpoints:   cfg.WebhookEndpoints,
		MaxAttempts: cfg.WebhookMaxAttempts,
		QueueSize:   cfg.WebhookQueueSize,
		Workers:     cfg.WebhookWorkers,
	}, guard.NewSafeClient(cfg.WebhookTimeout), collector, slog.Default())

	service := growthsession.NewService(
		repository.NewPostgresGrowthSessionRepo(db),
		repository.NewPostgresCommentRepo(db),
		dispatcher,
		security.NewTextSanitizer(),
		growthsession.Config{
			Location: cfg.Location,
			Window: growthsession.NotificationWindow{
				Start: cfg.WebhookStartTime,
				End:   cfg.WebhookEndTime,
			},
		},
	)
	return &engine{service: service, dispatcher: dispatcher}, nil
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

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 2. メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 3. ドメインサービスの初期化
	eng, err := newEngine(cfg, db, collector)
	if err != nil {
		return err
	}

	userRepo := repository.NewPostgresUserRepo(db)
	identRepo := repository.NewPostgresIdentityRepo(db)
	loginSessionRepo := repository.NewPostgresLoginSessionRepo(db)

	oauthProvider := auth.NewGitHubOAuthProvider(auth.GitHubOAuthConfig{
		ClientID:     cfg.GitHubClientID,
		ClientSecret: cfg.GitHubClientSecret,
		RedirectURL:  cfg.GitHubRedirectURL,
	})
	authService := auth.NewService(
		oauthProvider, userRepo, identRepo, loginSessionRepo,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)

	// 4. ルーターの構築
	// configのレート制限はreq/min単位
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitWrite))
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     loginSessionRepo,
		BotToken:          cfg.SlackBotToken,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Metrics:        collector,
		HealthChecker:  db,
		MetricsHandler: metrics.Handler(reg),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		GrowthSessionService: eng.service,
	})

	// 5. Webhook配信ワーカーの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	eng.dispatcher.Start(ctx)
	defer eng.dispatcher.Close()

	// 6. HTTPサーバーの起動
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

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-stop:
	case err := <-serverErr:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 定期セッションの自動作成と期限切れログインセッションの削除をバックグラウンドで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	eng, err := newEngine(cfg, db, collector)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	eng.dispatcher.Start(ctx)
	defer eng.dispatcher.Close()

	if cfg.WorkerMetricsPort != "" {
		go serveWorkerMetrics(ctx, cfg.WorkerMetricsPort, reg)
	}

	cleanupJob := cleanup.NewCleanupJob(repository.NewPostgresLoginSessionRepo(db), collector, slog.Default())
	cleanupJob.RetentionDays = cfg.LoginSessionRetentionDays

	slog.Info("worker starting",
		slog.Duration("auto_session_interval", cfg.AutoSessionInterval),
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	if cfg.AutoSessionHostEmail == "" {
		slog.Warn("AUTO_SESSION_HOST_EMAIL is not set; auto scheduling is disabled")
		cleanupJob.Start(ctx, cfg.CleanupInterval)
	} else {
		job := autoschedule.NewJob(
			repository.NewPostgresUserRepo(db), eng.service, collector, slog.Default(),
			cfg.AutoSessionHostEmail, autoschedule.DefaultTemplates(),
		)
		go cleanupJob.Start(ctx, cfg.CleanupInterval)

		// 自動作成ジョブをメインgoroutineで実行（ブロッキング）
		job.Start(ctx, cfg.AutoSessionInterval)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// serveWorkerMetrics はワーカーのメトリクスを公開するHTTPサーバーを起動し、ctxのキャンセルで停止する。
func serveWorkerMetrics(ctx context.Context, port string, gatherer prometheus.Gatherer) {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           metrics.SetupMetricsRoute(gatherer),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	slog.Info("worker metrics server starting", slog.String("addr", server.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("worker metrics server error", slog.String("error", err.Error()))
	}
}

// runAutoSchedule は定期セッションの自動作成を1回だけ実行する。
func runAutoSchedule(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	// 自動作成では通知を行わないため、ディスパッチャーは起動しない
	eng, err := newEngine(cfg, db, nil)
	if err != nil {
		return err
	}

	job := autoschedule.NewJob(
		repository.NewPostgresUserRepo(db), eng.service, nil, slog.Default(),
		cfg.AutoSessionHostEmail, autoschedule.DefaultTemplates(),
	)
	created, err := job.Run(context.Background())
	if err != nil {
		return fmt.Errorf("auto schedule failed: %w", err)
	}

	slog.Info("auto schedule completed", slog.Int("created_count", created))
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

	slog.Info("database migrations completed successfully",
		slog.Uint64("schema_version", uint64(version)),
	)
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
