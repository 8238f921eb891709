package handler

import (
	"net/http"

	"webhook-gateway/internal/adapter/http/dto"
	"webhook-gateway/internal/core/ports"
	"webhook-gateway/pkg/apperror"
	"webhook-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventHandler accepts internal domain events and triggers webhook fan-out.
type EventHandler struct {
	delivery ports.DeliveryService
}

// NewEventHandler creates a new event handler.
func NewEventHandler(delivery ports.DeliveryService) *EventHandler {
	return &EventHandler{delivery: delivery}
}

// Ingest handles POST /api/v1/events. The fan-out is asynchronous: a 202 only
// means deliveries were enqueued, not delivered.
func (h *EventHandler) Ingest(c *gin.Context) {
	var req dto.IngestEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		response.Error(c, apperror.Validation("tenant_id must be a UUID"))
		return
	}

	if err := h.delivery.EnqueueDelivery(c.Request.Context(), tenantID, req.Event, req.Payload); err != nil {
		response.Error(c, err)
		return
	}

	response.Accepted(c, gin.H{"accepted": true})
}

// HealthCheck handles GET /health, verifying every registered dependency.
func HealthCheck(checkers ...ports.HealthChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		type depStatus struct {
			Status string `json:"status"`
			Error  string `json:"error,omitempty"`
		}

		deps := make(map[string]depStatus)
		allHealthy := true

		for _, checker := range checkers {
			if err := checker.Ping(c.Request.Context()); err != nil {
				deps[checker.Name()] = depStatus{Status: "unhealthy", Error: err.Error()}
				allHealthy = false
			} else {
				deps[checker.Name()] = depStatus{Status: "healthy"}
			}
		}

		status := "healthy"
		httpCode := http.StatusOK
		if !allHealthy {
			status = "degraded"
			httpCode = http.StatusServiceUnavailable
		}

		c.JSON(httpCode, gin.H{
			"status":       status,
			"dependencies": deps,
		})
	}
}
