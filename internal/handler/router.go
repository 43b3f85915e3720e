package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/plastudo/internal/metrics"
	"github.com/hitoshi/plastudo/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ヘルスチェック
	HealthChecker HealthChecker

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	CSRFConfig        middleware.CSRFConfig
	Logger            *slog.Logger

	// メトリクス（nilの場合は/metricsを公開しない）
	Metrics        *metrics.Collector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// アンケート・講師プロフィール作成
	Onboarding OnboardingServiceInterface

	// 講師一覧・プロフィール
	Tutors TutorServiceInterface

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Recovery → SecurityHeaders → CORS → Metrics
//	→ Session → Logging → RateLimit(General) → CSRF
//
// Sessionはユーザーの特定のみを行い、認証必須のルートはRequireAuthで保護する。
// アカウント作成・サインインを伴うルートにはIP単位の認証用レート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware)
	}
	r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(deps.RateLimiter.GeneralMiddleware())
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))

	cookie := deps.AuthConfig.Cookie
	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig)
	questionnaireHandler := NewQuestionnaireHandler(deps.Onboarding, deps.Tutors, cookie)
	tutorHandler := NewTutorHandler(deps.Tutors)
	userHandler := NewUserHandler(deps.UserService, cookie)
	authLimit := deps.RateLimiter.AuthMiddleware()

	// --- 運用系 ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証 ---
	r.Route("/auth", func(r chi.Router) {
		r.With(authLimit).Post("/signup", authHandler.SignUp)
		r.With(authLimit).Post("/login", authHandler.SignIn)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)

		// OAuthフロー
		r.With(authLimit).Get("/google/login", authHandler.GoogleLogin)
		r.With(authLimit).Get("/google/callback", authHandler.GoogleCallback)
	})

	// --- アンケート ---
	r.Route("/api/questionnaires", func(r chi.Router) {
		r.Post("/student/matches", questionnaireHandler.StudentMatches)

		r.Route("/tutor/attempts", func(r chi.Router) {
			r.Post("/", questionnaireHandler.StartAttempt)

			r.Route("/{sessionID}", func(r chi.Router) {
				r.Get("/", questionnaireHandler.GetAttempt)
				r.Put("/answers", questionnaireHandler.SubmitAnswer)
				r.With(authLimit).Post("/register", questionnaireHandler.Register)
				r.With(middleware.RequireAuth).Post("/complete", questionnaireHandler.Complete)
			})
		})

		r.Get("/{kind}", questionnaireHandler.GetQuestionnaire)
	})

	// --- 講師一覧・プロフィール ---
	r.Route("/api/tutors", func(r chi.Router) {
		r.Get("/", tutorHandler.List)
		r.With(middleware.RequireAuth).Get("/me", tutorHandler.Mine)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", tutorHandler.Get)
			r.With(middleware.RequireAuth).Patch("/", tutorHandler.Update)
			r.Get("/picture", tutorHandler.Picture)
			r.Get("/contact", tutorHandler.Contact)
		})
	})

	// --- ユーザー管理 ---
	r.Route("/api/users", func(r chi.Router) {
		r.With(middleware.RequireAuth).Delete("/me", userHandler.Withdraw)
	})

	return r
}
