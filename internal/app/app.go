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
	"golang.org/x/time/rate"

	"github.com/hitoshi/interviewman/internal/candidate"
	"github.com/hitoshi/interviewman/internal/config"
	"github.com/hitoshi/interviewman/internal/database"
	"github.com/hitoshi/interviewman/internal/gateway"
	"github.com/hitoshi/interviewman/internal/handler"
	"github.com/hitoshi/interviewman/internal/interview"
	"github.com/hitoshi/interviewman/internal/logger"
	"github.com/hitoshi/interviewman/internal/metrics"
	"github.com/hitoshi/interviewman/internal/middleware"
	"github.com/hitoshi/interviewman/internal/notify"
	"github.com/hitoshi/interviewman/internal/repository"
	"github.com/hitoshi/interviewman/internal/security"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
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
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// 起動時に永続化済みの進行中セッションのクロックを再開する。
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
	candidateRepo := repository.NewPostgresCandidateRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	stateRepo := repository.NewPostgresStateRepo(db)

	// 3. セキュリティサービスとメトリクスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. LLMゲートウェイの初期化
	// APIキー未設定の場合、すべての呼び出しはフォールバック値で完結する
	llmClient := gateway.NewGeminiClient(gateway.GeminiConfig{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
	}, &http.Client{Timeout: cfg.LLMTimeout})

	questionGen := gateway.NewQuestionGenerator(llmClient, slog.Default(), collector, cfg.LLMTimeout)
	evaluator := gateway.NewAnswerEvaluator(llmClient, slog.Default(), collector, cfg.LLMTimeout)
	finalizer := gateway.NewSessionFinalizer(llmClient, slog.Default(), collector, cfg.LLMTimeout)
	resumeParser := gateway.NewResumeParser(llmClient, slog.Default(), collector, cfg.LLMTimeout)

	// 5. ドメインサービスの初期化
	plan, err := interview.LoadPlan(cfg.PlanPath)
	if err != nil {
		return fmt.Errorf("failed to load interview plan: %w", err)
	}

	interviewService := interview.NewService(
		candidateRepo, sessionRepo, stateRepo,
		questionGen, evaluator, finalizer,
		sanitizer, collector, slog.Default(),
		interview.ServiceConfig{
			Plan:          plan,
			ClockInterval: cfg.ClockInterval,
			RearmDelay:    cfg.SubmitRearmDelay,
		},
	)
	defer interviewService.Shutdown()

	candidateService := candidate.NewService(candidateRepo, resumeParser, sanitizer, slog.Default())
	reportSender := notify.NewReportSender(ssrfGuard, cfg.WebhookTimeout, slog.Default())

	// 6. 起動時復旧: 進行中セッションのクロックを再開する
	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := interviewService.ResumeClocks(bootCtx); err != nil {
		bootCancel()
		return fmt.Errorf("failed to resume in-progress sessions: %w", err)
	}
	bootCancel()

	// 7. ルーターの構築
	// configのRateLimitGeneral/Submitはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
	rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	rateLimiterCfg.SubmitRate = rate.Limit(float64(cfg.RateLimitSubmit) / 60.0)
	rateLimiterCfg.SubmitBurst = cfg.RateLimitSubmit

	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),

		InterviewService: interviewService,
		ReportSender:     reportSender,
		CandidateService: candidateService,

		TimerService:  interviewService,
		TimerInterval: cfg.ClockInterval,
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
