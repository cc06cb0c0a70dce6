package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tokengate/tokengate-go/internal/middleware"
	"github.com/tokengate/tokengate-go/internal/service"
)

// RouterConfig collects what the HTTP surface is built from.
type RouterConfig struct {
	Auth         *service.AuthService
	Logger       *slog.Logger
	RateLimiter  *middleware.RateLimiter
	Metrics      http.Handler                    // optional
	Health       func(ctx context.Context) error // optional store check
	Upstream     http.Handler                    // optional; unmatched paths 404 without it
	Locales      []string
	SecureCookie bool
}

// NewRouter wires the API routes and puts the route guard in front of
// everything the API does not serve.
func NewRouter(cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(cfg.Auth, cfg.SecureCookie)
	exampleHandler := NewExampleHandler()

	r := chi.NewRouter()
	r.Use(middleware.Logger(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Health != nil {
			if err := cfg.Health(r.Context()); err != nil {
				cfg.Logger.Error("health check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, errorResponse("store unavailable"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if cfg.RateLimiter != nil {
				r.Use(cfg.RateLimiter.Middleware)
			}
			r.Post("/login", authHandler.HandleLogin)
			r.Post("/phone/code", authHandler.HandleSendPhoneCode)
			r.Post("/phone/login", authHandler.HandlePhoneLogin)
			r.Post("/signup", authHandler.HandleSignUp)
			r.Post("/refresh", authHandler.HandleRefresh)
		})

		r.Post("/logout", authHandler.HandleLogout)
		r.Get("/me", authHandler.HandleMe)
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireUser(cfg.Auth))
		r.Get("/api/example", exampleHandler.HandleGet)
		r.Post("/api/example", exampleHandler.HandlePost)
	})

	fallback := cfg.Upstream
	if fallback == nil {
		fallback = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusNotFound, errorResponse("not found"))
		})
	}
	r.NotFound(middleware.NewRouteGuard(cfg.Auth, cfg.Locales).Middleware(fallback).ServeHTTP)

	return r
}
