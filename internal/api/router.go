package api

import (
	"log/slog"
	"net/http"

	"fileshelf/internal/auth"
	"fileshelf/internal/config"
	fsmiddleware "fileshelf/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers 汇总路由需要的处理器，为 nil 的部分不注册。
type Handlers struct {
	Files         *FileHandler
	Uploads       *UploadHandler
	Status        *StatusHandler
	Analytics     *AnalyticsHandler
	AdminAuth     *AuthHandler
	AnalyticsAuth *AuthHandler

	// Sessions 在 session 模式下校验 cookie；为 nil 时统计接口沿用管理端鉴权。
	Sessions fsmiddleware.SessionVerifier
	Limiter  fsmiddleware.Limiter
	// Objects 仅本地存储驱动使用，挂载在 /objects 下提供公开读。
	Objects http.Handler
}

// NewRouter 构建 HTTP 路由，集中注册所有对外服务的端点。
func NewRouter(cfg *config.Config, h Handlers, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(fsmiddleware.CORS(cfg.CORSAllowedOrigins))
	r.Use(fsmiddleware.RateLimit(h.Limiter, cfg.RateLimitWindow))
	r.Use(fsmiddleware.Metrics())

	// 健康检查不需要鉴权
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	if h.Objects != nil {
		r.Handle("/objects/*", http.StripPrefix("/objects", h.Objects))
	}

	adminAuth := adminMiddleware(cfg, h.Sessions, logger)

	r.Route("/api", func(r chi.Router) {
		if h.Files != nil {
			h.Files.RegisterRoutes(r)
		}
		if h.Analytics != nil {
			r.Post("/pageviews", h.Analytics.RecordPageView)
		}

		r.Route("/admin", func(r chi.Router) {
			if h.AdminAuth != nil {
				h.AdminAuth.RegisterRoutes(r)
			}
			r.Group(func(r chi.Router) {
				r.Use(adminAuth)
				if h.Uploads != nil {
					h.Uploads.RegisterRoutes(r)
				}
				if h.Files != nil {
					h.Files.RegisterAdminRoutes(r)
				}
				if h.Status != nil {
					r.Get("/status", h.Status.Status)
				}
			})
		})

		r.Route("/analytics", func(r chi.Router) {
			if h.AnalyticsAuth != nil {
				h.AnalyticsAuth.RegisterRoutes(r)
			}
			if h.Analytics != nil {
				r.Group(func(r chi.Router) {
					if h.Sessions != nil {
						r.Use(fsmiddleware.SessionAuth(h.Sessions, AnalyticsCookieName, auth.ScopeAnalytics))
					} else {
						r.Use(adminAuth)
					}
					r.Get("/summary", h.Analytics.Summary)
				})
			}
		})
	})

	return r
}

// adminMiddleware 按 AUTH_MODE 选择管理端鉴权方式。
func adminMiddleware(cfg *config.Config, sessions fsmiddleware.SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	switch cfg.AuthMode {
	case config.AuthModeSession:
		if sessions != nil {
			return fsmiddleware.SessionAuth(sessions, AdminCookieName, auth.ScopeAdmin)
		}
	case config.AuthModeAPIKey:
		return fsmiddleware.APIKeyAuth(cfg.APIKeys)
	case config.AuthModeSupabase:
		return fsmiddleware.SupabaseAuth(fsmiddleware.SupabaseConfig{
			ProjectURL: cfg.SupabaseURL,
			AnonKey:    cfg.SupabaseAnonKey,
			JWTSecret:  cfg.SupabaseJWTSecret,
		}, logger)
	case config.AuthModeNone:
		// 仅用于本地开发
		return func(next http.Handler) http.Handler { return next }
	}
	// 配置不完整时拒绝所有管理请求
	return func(http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusServiceUnavailable, "admin authentication is not configured")
		})
	}
}
