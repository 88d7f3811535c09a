package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/interviewman/internal/middleware"
)

// HealthChecker はヘルスチェックで疎通確認する依存のインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	Ping() error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// ヘルスチェック・メトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 面接セッション
	InterviewService InterviewServiceInterface
	ReportSender     ReportDeliveryInterface

	// 候補者
	CandidateService CandidateServiceInterface

	// タイマー配信
	TimerService  TimerSnapshotInterface
	TimerInterval time.Duration
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	CORSMiddleware → RecoveryMiddleware → LoggingMiddleware → RateLimitMiddleware(General)
//
// /health と /metrics はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	// CORS ミドルウェアを最上位に適用（全ルートに効く）
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))

	sessionHandler := NewSessionHandler(deps.InterviewService, deps.ReportSender)
	candidateHandler := NewCandidateHandler(deps.CandidateService)
	timerHandler := NewTimerStreamHandler(deps.TimerService, deps.Logger, deps.TimerInterval, nil)

	// --- 運用ルート（レート制限の外） ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if err := deps.HealthChecker.Ping(); err != nil {
			http.Error(w, "unhealthy", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// セッション管理
		r.Route("/api/sessions", func(r chi.Router) {
			r.Post("/", sessionHandler.CreateSession)
			r.Get("/", sessionHandler.ListSessions)
			r.Get("/current", sessionHandler.GetCurrentSession)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.GetSession)
				r.Delete("/", sessionHandler.DeleteSession)

				// 状態遷移
				r.Post("/start", sessionHandler.Start)
				r.Post("/pause", sessionHandler.Pause)
				r.Post("/resume", sessionHandler.Resume)
				r.Post("/end", sessionHandler.End)

				// POST /api/sessions/{id}/answers - 回答提出（提出専用レート制限を追加）
				r.With(deps.RateLimiter.SubmitMiddleware()).Post("/answers", sessionHandler.SubmitAnswer)

				r.Get("/question", sessionHandler.GetCurrentQuestion)
				r.Get("/timeline", sessionHandler.GetTimeline)

				// 評価・レポート
				r.Post("/reevaluate", sessionHandler.ReEvaluate)
				r.Post("/finalize", sessionHandler.Finalize)
				r.Post("/report/send", sessionHandler.SendReport)

				// タイマー配信（WebSocket）
				r.Get("/timer/ws", timerHandler.Stream)
			})
		})

		// 候補者管理
		r.Route("/api/candidates/{id}", func(r chi.Router) {
			r.Get("/", candidateHandler.GetCandidate)
			r.Patch("/", candidateHandler.UpdateProfile)
			r.Post("/resume", candidateHandler.UploadResume)
		})
	})

	return r
}
