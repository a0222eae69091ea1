package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/obsvault/authgate"
	"github.com/obsvault/authgate/middleware"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

type Config struct {
	Cookies middleware.CookieConfig
	Logger  *slog.Logger
	// TrustProxy takes the client address from X-Forwarded-For / X-Real-IP.
	TrustProxy bool
	// HealthChecks are run by GET /healthz, keyed by dependency name.
	HealthChecks map[string]HealthCheck
	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
	// AllowedOrigins enables credentialed CORS for these origins. Empty
	// disables CORS handling.
	AllowedOrigins []string
	// RequestTimeout defaults to 30s.
	RequestTimeout time.Duration
}

const defaultRequestTimeout = 30 * time.Second

type handlers struct {
	svc     *authgate.Service
	cookies middleware.CookieConfig
	logger  *slog.Logger
	checks  map[string]HealthCheck
}

// NewRouter wires every route onto a chi router.
func NewRouter(svc *authgate.Service, cfg Config) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{svc: svc, cookies: cfg.Cookies, logger: logger, checks: cfg.HealthChecks}
	opts := []middleware.Option{
		middleware.WithLogger(logger),
		middleware.WithCarriers(middleware.CookieCarrier{Config: cfg.Cookies}, middleware.HeaderCarrier{}),
	}

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	if cfg.TrustProxy {
		r.Use(chimw.RealIP)
	}
	r.Use(chimw.Recoverer)
	if len(cfg.AllowedOrigins) > 0 {
		r.Use(corsHandler(cfg.AllowedOrigins))
	}
	requestTimeout := cfg.RequestTimeout
	if requestTimeout <= 0 {
		requestTimeout = defaultRequestTimeout
	}
	r.Use(timeout(requestTimeout))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		middleware.WriteJSON(w, http.StatusNotFound, middleware.MessageBody{Message: authgate.MessageNotFound})
	})

	r.Get("/healthz", h.health)
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/signup", h.signup)
		r.Post("/auth/login", h.login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authenticate(svc, opts...))

			r.Post("/auth/logout", h.logout)
			r.Get("/auth/me", h.me)
			r.Get("/usage", h.usage)

			r.With(middleware.RequireCallBudget(svc, opts...)).Post("/obs-vault/chat", h.chat)

			r.With(middleware.Authorize(svc, authgate.UserTypeAdmin, opts...)).
				Patch("/admin/users/{id}", h.updateUser)
		})
	})

	return r
}

// corsHandler lets browser clients on other origins send the auth cookies.
func corsHandler(origins []string) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.RefreshTokenHeader},
		ExposedHeaders: []string{
			middleware.AccessTokenHeader,
			middleware.CallsUsedHeader,
			middleware.CallsLimitHeader,
		},
		AllowCredentials: true,
		MaxAge:           300,
	})
}

// timeout cancels the request context after d. A handler that gives up
// without writing is answered with 504 and the JSON envelope.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			if ww.Status() == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				middleware.WriteJSON(ww, http.StatusGatewayTimeout,
					middleware.MessageBody{Message: authgate.MessageRequestTimeout})
			}
		})
	}
}
