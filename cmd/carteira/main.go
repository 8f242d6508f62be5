package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/carteira-app/carteira-bfa-go/internal/config"
	"github.com/carteira-app/carteira-bfa-go/internal/domain"
	"github.com/carteira-app/carteira-bfa-go/internal/handler"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/backend"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/cache"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/observability"
	"github.com/carteira-app/carteira-bfa-go/internal/infra/resilience"
	"github.com/carteira-app/carteira-bfa-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("backend_api_url", cfg.BackendAPIURL),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int64("max_upload_bytes", cfg.MaxUploadBytes),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("jwt_refresh_ttl", cfg.JWTRefreshTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "carteira-bfa")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	positionsCache := cache.New[[]domain.Position](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("portfolio-backend")
	uploadBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Backend client ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	backendClient := backend.NewClient(httpClient, cfg.BackendAPIURL, cfg.BackendAPIKey, cb, resilienceCfg, logger)

	// --- Services ---
	portfolioSvc := service.NewPortfolioService(backendClient, positionsCache, metrics, logger)
	userSvc := service.NewUserService(backendClient, cfg.JWTSecret, cfg.JWTAccessTTL, cfg.JWTRefreshTTL, logger)
	noteSvc := service.NewNoteService(backendClient, positionsCache, uploadBulkhead, metrics, logger, cfg.MaxUploadBytes)
	eventSvc := service.NewEventService(backendClient, positionsCache, metrics, logger)
	rebalanceSvc := service.NewRebalanceService(backendClient, logger)

	// --- Router ---
	router := handler.NewRouter(portfolioSvc, userSvc, noteSvc, eventSvc, rebalanceSvc, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
