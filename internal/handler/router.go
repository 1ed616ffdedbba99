package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/petfinder/internal/middleware"
)

// HealthChecker はDB疎通確認を抽象化するインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker     HealthChecker
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger
	MetricsRecorder   middleware.HTTPMetricsRecorder

	// サービス
	AuthService     AuthServiceInterface
	AuthConfig      AuthHandlerConfig
	RecoveryService RecoveryServiceInterface
	ListingService  ListingServiceInterface
	SightingService SightingServiceInterface
	UserService     UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → CORS → CSRF →（認証ルートのみ）Session → RateLimit(General)
//
// 認証不要ルート（/auth/*、GET /api/listings）はセッションミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.MetricsRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	recoveryHandler := NewRecoveryHandler(deps.RecoveryService)
	listingHandler := NewListingHandler(deps.ListingService)
	sightingHandler := NewSightingHandler(deps.SightingService)
	userHandler := NewUserHandler(deps.UserService, deps.AuthConfig)

	// --- 認証不要のルート ---

	// Dockerヘルスチェック用。DB疎通まで確認する
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	})

	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)

		// パスワード再設定（未ログイン状態から利用する）
		r.Post("/recovery", recoveryHandler.Request)
		r.Get("/recovery/status", recoveryHandler.Status)
		r.Post("/recovery/clear-message", recoveryHandler.ClearMessage)
	})

	// 掲載の閲覧は未ログインでも可能
	r.Get("/api/listings", listingHandler.Browse)
	r.Get("/api/listings/{id}", listingHandler.Get)

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Session → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 掲載管理
		r.Post("/api/listings", listingHandler.Publish)
		r.Get("/api/listings/mine", listingHandler.Mine)
		r.Put("/api/listings/{id}", listingHandler.Update)
		r.Delete("/api/listings/{id}", listingHandler.Close)

		// 目撃報告（報告の投稿には専用レート制限を追加）
		r.With(deps.RateLimiter.ReportMiddleware()).Post("/api/sightings", sightingHandler.Report)
		r.Get("/api/sightings/notices", sightingHandler.Notices)
		r.Get("/api/sightings/mine", sightingHandler.Mine)

		// アカウント管理
		r.Route("/api/users/me", func(r chi.Router) {
			r.Get("/", userHandler.Profile)
			r.Delete("/", userHandler.Withdraw)
			r.Put("/email", authHandler.UpdateEmail)
			r.Put("/display-name", authHandler.UpdateDisplayName)
		})
	})

	return r
}
