package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/cropmap/internal/auth"
	"github.com/hitoshi/cropmap/internal/metrics"
	"github.com/hitoshi/cropmap/internal/middleware"
	"github.com/hitoshi/cropmap/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     auth.TokenVerifier
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// メトリクス。nilの場合は/metricsエンドポイントを公開しない。
	MetricsCollector metrics.MetricsCollector
	MetricsGatherer  prometheus.Gatherer

	// サービス
	AuthService    AuthServiceInterface
	PointService   PointServiceInterface
	PolygonService PolygonServiceInterface
	ProjectService ProjectServiceInterface
	UserService    UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
//
// /api配下はsignup/loginを除き全ルートで AuthMiddleware → RateLimit(General) を
// 通過し、観測データの作成はさらに投稿専用レート制限がかかる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	}
	if deps.MetricsCollector != nil {
		r.Use(metrics.HTTPMiddleware(deps.MetricsCollector))
	}

	authMW := middleware.NewAuthMiddleware(deps.TokenVerifier)
	generalLimit := deps.RateLimiter.GeneralMiddleware()
	submitLimit := deps.RateLimiter.SubmitMiddleware()

	authHandler := NewAuthHandler(deps.AuthService)
	pointHandler := NewPointHandler(deps.PointService, deps.MetricsCollector)
	polygonHandler := NewPolygonHandler(deps.PolygonService, deps.MetricsCollector)
	projectHandler := NewProjectHandler(deps.ProjectService)
	userHandler := NewUserHandler(deps.UserService)

	// 運用エンドポイント
	r.Get("/health", healthCheck)
	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// 認証
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(authMW)
			r.Get("/me", authHandler.Me)
			r.Get("/verify", authHandler.Verify)
		})
	})

	// 観測ポイント（閲覧を含む全ルートで認証必須）
	r.Route("/api/points", func(r chi.Router) {
		r.Use(authMW, generalLimit)

		r.Get("/", pointHandler.List)
		r.Post("/within-bounds", pointHandler.WithinBounds)
		r.Get("/{id}", pointHandler.Get)
		r.With(submitLimit).Post("/", pointHandler.Create)
		r.Put("/{id}", pointHandler.Update)
		r.Delete("/{id}", pointHandler.Delete)
	})

	// 観測ポリゴン（閲覧を含む全ルートで認証必須）
	r.Route("/api/polygons", func(r chi.Router) {
		r.Use(authMW, generalLimit)

		r.Get("/", polygonHandler.List)
		r.Post("/within-bounds", polygonHandler.WithinBounds)
		r.Get("/{id}", polygonHandler.Get)
		r.With(submitLimit).Post("/", polygonHandler.Create)
		r.Put("/{id}", polygonHandler.Update)
		r.Delete("/{id}", polygonHandler.Delete)
	})

	// 収集プロジェクト（閲覧を含む全ルートで認証必須）
	r.Route("/api/projects", func(r chi.Router) {
		r.Use(authMW, generalLimit)

		r.Get("/", projectHandler.List)
		r.Get("/{id}", projectHandler.Get)
		r.Post("/", projectHandler.Create)
		r.Put("/{id}", projectHandler.Update)
		r.Delete("/{id}", projectHandler.Delete)
		r.Post("/{id}/contributors", projectHandler.AddContributor)
		r.Delete("/{id}/contributors/{userId}", projectHandler.RemoveContributor)
	})

	// ユーザー管理（全ルート認証必須。一覧と削除は管理者専用）
	r.Route("/api/users", func(r chi.Router) {
		r.Use(authMW, generalLimit)

		r.With(middleware.RequireAdmin).Get("/", userHandler.List)
		r.Get("/{id}", userHandler.Get)
		r.Get("/{id}/stats", userHandler.Stats)
		r.Put("/{id}", userHandler.Update)
		r.With(middleware.RequireAdmin).Delete("/{id}", userHandler.Delete)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
			Code:     model.ErrCodeNotFound,
			Message:  "指定されたエンドポイントが見つかりません。",
			Category: "resource",
			Action:   "URLを確認してください。",
		})
	})

	return r
}

// healthCheck は稼働確認エンドポイント。
// GET /health
func healthCheck(w http.ResponseWriter, r *http.Request) {
	writeData(w, http.StatusOK, map[string]string{"status": "ok"})
}
