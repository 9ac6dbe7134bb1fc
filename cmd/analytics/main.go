package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fzanetti/ledger-analytics-go/internal/config"
	"github.com/fzanetti/ledger-analytics-go/internal/domain"
	"github.com/fzanetti/ledger-analytics-go/internal/handler"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/cache"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/observability"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/postgrest"
	"github.com/fzanetti/ledger-analytics-go/internal/infra/resilience"
	"github.com/fzanetti/ledger-analytics-go/internal/service"

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
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Int("max_concurrency", cfg.MaxConcurrency),
	)

	if cfg.StoreURL == "" {
		logger.Fatal("STORE_URL is required")
	}

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "ledger-analytics")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache (fast tier) ---
	summaryCache := cache.New[*domain.Summary](cfg.CacheTTL)
	staleAccounts := cache.NewStaleSet()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("summary-store")
	ingestBulkhead := resilience.NewBulkhead(cfg.MaxConcurrency)

	// --- Store (durable tier) ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
	store := postgrest.NewClient(
		httpClient,
		cfg.StoreURL,
		cfg.StoreAnonKey,
		cfg.StoreServiceKey,
		cb,
		resilienceCfg,
		logger,
	)

	// --- Services ---
	events := service.NewEventHandler(store, summaryCache, staleAccounts, metrics, logger)
	queries := service.NewQueryService(store, summaryCache, staleAccounts, metrics, logger)

	// --- Router ---
	router := handler.NewRouter(events, queries, store, ingestBulkhead, metrics, logger)

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
