package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/flagfinder/internal/metrics"
	"github.com/hitoshi/flagfinder/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Metrics           metrics.MetricsCollector
	MetricsGatherer   prometheus.Gatherer

	// ヘルスチェック
	HealthChecker HealthChecker

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// 取得・解析・削除
	ScrapeService   ScrapeServiceInterface
	AnalysisService AnalysisServiceInterface
	DeletionService DeletionServiceInterface
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Session → Logging → RateLimit(取得系のみ)
//
// Sessionはアクセスログにinstagram_user_idを載せるためLoggingより先に置く。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	scrapeHandler := NewScrapeHandler(deps.ScrapeService)
	analysisHandler := NewAnalysisHandler(deps.AnalysisService, deps.AuthConfig.BaseURL)
	deletionHandler := NewDeletionHandler(deps.DeletionService)
	pageHandler := NewPageHandler(deps.AnalysisService)

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- Instagram認証 ---
	r.Get("/api/check-auth", authHandler.CheckAuth)
	r.Route("/api/instagram", func(r chi.Router) {
		r.Get("/auth", authHandler.Login)
		r.Get("/callback", authHandler.Callback)
		r.Post("/logout", authHandler.Logout)
		r.Post("/data-deletion", deletionHandler.DataDeletion)
	})

	// --- プロフィール取得と解析 ---
	// ヘッドレスブラウザを起動するルートのみレート制限を掛ける
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.ScrapeMiddleware())
		}
		r.Post("/api/scrape", scrapeHandler.Scrape)
		r.Post("/api/analyses", analysisHandler.Create)
	})
	r.Get("/api/analyses/{id}", analysisHandler.Get)

	// --- HTMLページ ---
	r.Get("/results", pageHandler.Results)
	r.Get("/data-deletion-confirmation", pageHandler.DeletionConfirmation)

	return r
}
