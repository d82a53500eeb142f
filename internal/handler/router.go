package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/helpdesk/internal/metrics"
	"github.com/hitoshi/helpdesk/internal/middleware"
	"github.com/hitoshi/helpdesk/internal/view"
)

// SessionAuthenticator はゲートウェイと変更ハンドラーの両方が使うセッション解決の依存。
// auth.Managerが実装する。
type SessionAuthenticator interface {
	Authenticator
	middleware.SessionResolver
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger      *slog.Logger
	Sessions    SessionAuthenticator
	RateLimiter *middleware.RateLimiter
	CSRF        middleware.CSRFConfig
	Metrics     metrics.MetricsCollector

	// 描画
	Views *view.Renderer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// チケット
	TicketService TicketServiceInterface

	// 運用
	Health         PingFunc
	MetricsHandler http.Handler
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → RealIP → Logging → Recovery → SecurityHeaders → Session → RateLimit(General) → CSRF
//
// /health、/metrics、/static/* はセッション解決とCSRF検証の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	home := NewHomeHandler(deps.Views)
	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions.Cookies(), deps.Views, deps.AuthConfig)
	tickets := NewTicketHandler(deps.TicketService, deps.Sessions, deps.Views)

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.NewLoggingMiddleware(logger, deps.Metrics))
	r.Use(middleware.NewRecoveryMiddleware(home.InternalError))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.Health))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}
	r.Handle("/static/*", view.StaticHandler())

	// --- ページ ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.Sessions, deps.Metrics))
		r.Use(deps.RateLimiter.GeneralMiddleware())
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		r.Get("/", home.Dashboard)

		r.Get("/login", authHandler.LoginForm)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/login", authHandler.Login)
		r.Get("/signup", authHandler.SignupForm)
		r.With(deps.RateLimiter.AuthMiddleware()).Post("/signup", authHandler.Signup)
		r.Get("/verify", authHandler.Verify)
		r.Post("/logout", authHandler.Logout)

		// セッションミドルウェアは /auth/* を解決しない
		r.Route("/auth", func(r chi.Router) {
			r.Get("/callback", authHandler.Callback)
			r.Get("/auth-code-error", authHandler.AuthCodeError)
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Get("/", tickets.List)
			r.Post("/", tickets.Create)
			r.Get("/create", tickets.CreateForm)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", tickets.Show)
				r.Get("/edit", tickets.EditForm)
				r.Post("/edit", tickets.Update)
				r.Post("/delete", tickets.Delete)
			})
		})

		r.NotFound(home.NotFound)
	})

	return r
}
