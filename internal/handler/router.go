package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/digestman/internal/metrics"
	"github.com/hitoshi/digestman/internal/middleware"
)

// Pinger はヘルスチェックで使うDB疎通確認のインターフェース。
type Pinger interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter

	// タスク
	TaskService TaskServiceInterface
	TaskFinder  TaskFinder

	// ダイジェスト
	DigestReader DigestReaderInterface

	// ソース検証
	ValidationService ValidationServiceInterface

	// 運用エンドポイント
	DB              Pinger
	MetricsGatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → RateLimit(General)
//
// 運用エンドポイント（/healthz, /metrics）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	taskHandler := NewTaskHandler(deps.TaskService, deps.TaskFinder)
	digestHandler := NewDigestHandler(deps.DigestReader)
	sourceHandler := NewSourceHandler(deps.ValidationService)

	// --- 運用エンドポイント ---

	r.Get("/healthz", newHealthzHandler(deps.DB))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- APIルート ---
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// タスク管理
		r.Route("/api/tasks", func(r chi.Router) {
			// POST /api/tasks - タスク開始（開始専用レート制限を追加）
			r.With(deps.RateLimiter.TaskStartMiddleware()).Post("/", taskHandler.StartTask)
			r.Get("/{id}", taskHandler.GetTask)
		})

		// ダイジェスト
		r.Route("/api/digests", func(r chi.Router) {
			r.Get("/", digestHandler.ListDigests)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", digestHandler.GetDigest)
				r.Post("/read", digestHandler.MarkDigestRead)
			})
		})

		// ソース検証
		r.Post("/api/sources/validate", sourceHandler.ValidateSource)
	})

	return r
}

// newHealthzHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthzHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{
					"status": "unhealthy",
					"error":  "database unreachable",
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
