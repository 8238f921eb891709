package handler

import (
	"webhook-gateway/internal/adapter/http/middleware"
	"webhook-gateway/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	Registry        ports.EndpointRegistry
	Delivery        ports.DeliveryService
	TokenSvc        ports.TokenService
	HashSvc         ports.HashService
	IngestTokenHash string // empty = event ingest disabled
	HealthCheckers  []ports.HealthChecker
	MetricsGatherer prometheus.Gatherer // nil = /metrics disabled
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Health check, deep: verifies PostgreSQL and Redis
	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	if deps.MetricsGatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.MetricsGatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")

	// --- Tenant management surface (JWT-authenticated) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	webhookHandler := NewWebhookHandler(deps.Registry, deps.Delivery)

	webhooks := v1.Group("/webhooks", jwtAuth)
	{
		webhooks.POST("", webhookHandler.Create)
		webhooks.GET("", webhookHandler.List)
		webhooks.GET("/dlq", webhookHandler.ListDeadLetters)
		webhooks.POST("/dlq/:jobId/replay", webhookHandler.Replay)
		webhooks.GET("/:id", webhookHandler.Get)
		webhooks.PATCH("/:id", webhookHandler.Update)
		webhooks.DELETE("/:id", webhookHandler.Disable)
	}

	// --- Internal event ingest (service-token authenticated) ---
	if deps.IngestTokenHash != "" {
		eventHandler := NewEventHandler(deps.Delivery)
		serviceAuth := middleware.ServiceTokenAuth(deps.HashSvc, deps.IngestTokenHash, deps.Logger)
		v1.POST("/events", serviceAuth, eventHandler.Ingest)
	}

	return r
}
