package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"webhook-gateway/config"
	httpHandler "webhook-gateway/internal/adapter/http/handler"
	promMetrics "webhook-gateway/internal/adapter/metrics"
	pgStorage "webhook-gateway/internal/adapter/storage/postgres"
	redisStorage "webhook-gateway/internal/adapter/storage/redis"
	"webhook-gateway/internal/core/ports"
	"webhook-gateway/internal/service"
	"webhook-gateway/internal/worker"
	"webhook-gateway/pkg/logger"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Webhook Gateway")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// Initialize repositories and stores
	endpointRepo := pgStorage.NewEndpointRepo(pool)
	auditRepo := pgStorage.NewAuditRepository(pool)
	queue := redisStorage.NewQueue(rdb, redisStorage.RetryPolicy{
		MaxAttempts: cfg.Webhook.RetryAttempts,
		BaseDelay:   cfg.Webhook.RetryBaseDelay,
		Multiplier:  2.0,
	})
	dlqStore := redisStorage.NewDeadLetterStore(rdb)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	metrics := promMetrics.NewPrometheus(registry)

	// Initialize core services
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2HashService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, log)

	// Initialize business services
	registrySvc := service.NewEndpointService(endpointRepo, auditSvc, log)
	deliverySvc := service.NewDeliveryService(endpointRepo, queue, dlqStore, sigSvc, auditSvc, log)

	// Start the delivery worker pool
	dispatcher := worker.NewDispatcher(endpointRepo, dlqStore, auditSvc, metrics, worker.DispatcherConfig{
		FailureThreshold: cfg.Webhook.FailureThreshold,
		Cooldown:         cfg.Webhook.Cooldown(),
		DeliveryTimeout:  cfg.Webhook.DeliveryTimeout,
	}, log)
	workerPool := worker.NewPool(queue, dispatcher, cfg.Webhook.Workers, log)
	workerPool.Start(ctx)

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		Registry:        registrySvc,
		Delivery:        deliverySvc,
		TokenSvc:        tokenSvc,
		HashSvc:         hashSvc,
		IngestTokenHash: cfg.Ingest.TokenHash,
		HealthCheckers:  []ports.HealthChecker{pgHealth, redisHealth},
		MetricsGatherer: registry,
		Logger:          log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight deliveries finish before closing the stores.
	workerPool.Stop()

	log.Info().Msg("Server exited")
}
