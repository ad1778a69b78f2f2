package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/growthsession/internal/metrics"
	"github.com/hitoshi/growthsession/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	BotToken          string
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Metrics           metrics.MetricsCollector

	// ヘルスチェックとメトリクス
	HealthChecker  HealthChecker
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// グロースセッション
	GrowthSessionService GrowthSessionServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → Viewer → RateLimit(General) → CSRF
//
// 閲覧系のエンドポイントは匿名でも利用でき、変更系のエンドポイントはログインを必須とする。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, middleware.ErrorResponseBody{
			Kind:    "not_found",
			Code:    "ROUTE_NOT_FOUND",
			Message: "The requested resource does not exist.",
		})
	})

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	sessionHandler := NewGrowthSessionHandler(deps.GrowthSessionService)
	commentHandler := NewCommentHandler(deps.GrowthSessionService)

	// --- 運用エンドポイント（ミドルウェアチェーンの外） ---
	if deps.HealthChecker != nil {
		r.Get("/health", NewHealthHandler(deps.HealthChecker))
	}
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// 認証ルート（OAuthフロー）
	r.Route("/auth", func(r chi.Router) {
		r.Get("/github/login", authHandler.Login)
		r.Get("/github/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- API ---
	// ミドルウェアスタック: Viewer → RateLimit(General) → CSRF
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewViewerMiddleware(deps.SessionFinder, deps.BotToken))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

		r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

		requireAuth := middleware.NewRequireAuthMiddleware()
		writeLimit := deps.RateLimiter.WriteMiddleware()

		r.Route("/api/growth_sessions", func(r chi.Router) {
			r.Get("/week", sessionHandler.Week)
			r.Get("/day", sessionHandler.Day)
			r.With(requireAuth, writeLimit).Post("/", sessionHandler.Create)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", sessionHandler.Show)
				r.Get("/comments", commentHandler.List)

				r.Group(func(r chi.Router) {
					r.Use(requireAuth)

					r.Put("/", sessionHandler.Update)
					r.Delete("/", sessionHandler.Delete)
					r.Post("/join", sessionHandler.Join)
					r.Post("/leave", sessionHandler.Leave)
					r.With(writeLimit).Post("/comments", commentHandler.Create)
					r.Delete("/comments/{commentID}", commentHandler.Delete)
				})
			})
		})
	})

	return r
}
