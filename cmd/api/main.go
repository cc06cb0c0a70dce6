package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/tokengate/tokengate-go/internal/config"
	"github.com/tokengate/tokengate-go/internal/crypto"
	"github.com/tokengate/tokengate-go/internal/handler"
	"github.com/tokengate/tokengate-go/internal/logging"
	"github.com/tokengate/tokengate-go/internal/metrics"
	"github.com/tokengate/tokengate-go/internal/middleware"
	"github.com/tokengate/tokengate-go/internal/repository"
	"github.com/tokengate/tokengate-go/internal/service"
)

var version = "dev"

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, using environment variables")
	}

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		slog.Error("loading config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err, "hint", "generate a secret with: tokenctl gen-secret")
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Service: "tokengate",
		Version: version,
		Env:     cfg.Env,
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
	})

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return fmt.Errorf("opening %s store: %w", cfg.Store.Driver, err)
	}
	defer store.Close()

	if cfg.Store.SeedDemo {
		if err := service.SeedDemoAccount(ctx, store.Users, time.Now()); err != nil {
			return fmt.Errorf("seeding demo account: %w", err)
		}
		logger.Info("demo account available", "username", service.DemoUsername)
	}

	tokens, err := crypto.NewTokenService(cfg.JWTSecret)
	if err != nil {
		return err
	}
	codes, err := crypto.NewCodeGenerator(cfg.JWTSecret)
	if err != nil {
		return err
	}

	registry := metrics.NewRegistry()
	authService := service.NewAuthService(store.Users, tokens, codes,
		service.WithRecorder(registry),
		service.WithLogger(logger),
	)

	var upstream http.Handler
	if cfg.UpstreamURL != "" {
		upstream, err = handler.NewUpstreamProxy(cfg.UpstreamURL)
		if err != nil {
			return err
		}
	}

	proxies, err := cfg.RateLimit.TrustedPrefixes()
	if err != nil {
		return err
	}
	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst,
		middleware.WithTrustedProxies(proxies))
	defer limiter.Stop()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handler.NewRouter(handler.RouterConfig{
			Auth:         authService,
			Logger:       logger,
			RateLimiter:  limiter,
			Metrics:      registry.Handler(),
			Health:       store.Ping,
			Upstream:     upstream,
			Locales:      cfg.Locales,
			SecureCookie: cfg.IsProduction(),
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.Port, "store", store.Driver(), "upstream", cfg.UpstreamURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
