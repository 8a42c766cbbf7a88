package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/hitoshi/digestman/internal/article"
	"github.com/hitoshi/digestman/internal/config"
	"github.com/hitoshi/digestman/internal/database"
	"github.com/hitoshi/digestman/internal/digest"
	"github.com/hitoshi/digestman/internal/extract"
	"github.com/hitoshi/digestman/internal/feed"
	"github.com/hitoshi/digestman/internal/fetch"
	"github.com/hitoshi/digestman/internal/handler"
	"github.com/hitoshi/digestman/internal/logger"
	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/middleware"
	"github.com/hitoshi/digestman/internal/repository"
	"github.com/hitoshi/digestman/internal/security"
	"github.com/hitoshi/digestman/internal/summarize"
	"github.com/hitoshi/digestman/internal/worker/cleanup"
	"github.com/hitoshi/digestman/internal/worker/pipeline"
)

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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開いて疎通を確認する。
func openDatabase(databaseURL string) (*sql.DB, error) {
	db, err := database.Open(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, nil
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	sourceRepo := repository.NewPostgresSourceRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	digestRepo := repository.NewPostgresDigestRepo(db)

	// 3. メトリクスとセキュリティサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	ssrfGuard := security.NewSSRFGuard()

	// 4. ドメインサービスの初期化
	fetcher := fetch.NewFetcher(ssrfGuard, slog.Default(), collector, cfg.FetchTimeout, cfg.FetchMaxSize)
	detector := feed.NewDetector()
	validationService := feed.NewValidationService(fetcher, detector, slog.Default())
	starter := pipeline.NewStarter(taskRepo, sourceRepo, slog.Default())

	// 5. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		TaskService: starter,
		TaskFinder:  taskRepo,

		DigestReader: digestRepo,

		ValidationService: validationService,

		DB:              db,
		MetricsGatherer: registry,
	}

	router := handler.NewRouter(deps)

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

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、タスクスケジューラと後始末ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := openDatabase(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリの初期化
	sourceRepo := repository.NewPostgresSourceRepo(db)
	articleRepo := repository.NewPostgresArticleRepo(db)
	summaryRepo := repository.NewPostgresSummaryRepo(db)
	taskRepo := repository.NewPostgresTaskRepo(db)
	digestRepo := repository.NewPostgresDigestRepo(db)

	// 3. メトリクスとセキュリティサービスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewContentSanitizer()

	// 4. パイプライン部品の初期化
	fetcher := fetch.NewFetcher(ssrfGuard, slog.Default(), collector, cfg.FetchTimeout, cfg.FetchMaxSize)
	detector := feed.NewDetector()

	parserOpts := feed.DefaultParserOptions()
	parserOpts.MaxArticles = cfg.MaxArticlesPerSource
	parser := feed.NewParser(sanitizer, slog.Default(), parserOpts)

	extractorOpts := extract.DefaultOptions()
	extractorOpts.MinContentLength = cfg.MinContentLength
	extractorOpts.MaxContentLength = cfg.MaxContentLength
	extractor := extract.NewExtractor(extractorOpts)

	resolver := article.NewDeduplicator(articleRepo, summaryRepo, slog.Default(), cfg.MinContentLength)

	// 5. 要約サービスの初期化
	client := summarize.NewClient(
		&http.Client{Timeout: cfg.SummaryCallTimeout},
		slog.Default(), cfg.SummaryAPIURL, cfg.SummaryAPIKey, cfg.SummaryMaxTokens,
	)
	summaryService := summarize.NewService(
		summaryRepo, articleRepo, client, slog.Default(), collector,
		summarize.ServiceConfig{
			Models:              cfg.SummaryModels,
			APIKeyConfigured:    cfg.SummaryAPIKey != "",
			CallTimeout:         cfg.SummaryCallTimeout,
			PromptContentBudget: cfg.PromptContentBudget,
			RatePerSec:          cfg.SummaryRatePerSec,
		},
	)
	batcher := summarize.NewBatcher(summaryService, slog.Default(), summarize.BatchConfig{
		BatchSize:  cfg.SummaryBatchSize,
		BatchDelay: cfg.SummaryBatchDelay,
	})

	// 6. オーケストレータとスケジューラの初期化
	aggregator := digest.NewAggregator(digestRepo, summaryRepo, slog.Default())
	orchestrator := pipeline.NewOrchestrator(
		taskRepo, sourceRepo, articleRepo,
		fetcher, detector, parser, extractor, resolver, batcher, aggregator,
		slog.Default(), collector,
	)
	scheduler := pipeline.NewScheduler(taskRepo, orchestrator, slog.Default(), cfg.FetchMaxConcurrent)

	// 7. 後始末ジョブの初期化
	janitor := cleanup.NewJanitor(taskRepo, slog.Default(), cfg.TaskStaleAfter)

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("poll_interval", cfg.TaskPollInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// 後始末ジョブをバックグラウンドで起動
	go janitor.Start(ctx, cfg.CleanupInterval)

	// タスクスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.TaskPollInterval)

	slog.Info("worker stopped gracefully")
	return nil
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
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
