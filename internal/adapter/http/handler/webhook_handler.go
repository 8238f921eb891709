package handler

import (
	"strconv"

	"webhook-gateway/internal/adapter/http/dto"
	"webhook-gateway/internal/adapter/http/middleware"
	"webhook-gateway/internal/core/ports"
	"webhook-gateway/pkg/apperror"
	"webhook-gateway/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WebhookHandler exposes the tenant-facing endpoint registry and the
// dead-letter surface.
type WebhookHandler struct {
	registry ports.EndpointRegistry
	delivery ports.DeliveryService
}

// NewWebhookHandler creates a new webhook handler.
func NewWebhookHandler(registry ports.EndpointRegistry, delivery ports.DeliveryService) *WebhookHandler {
	return &WebhookHandler{registry: registry, delivery: delivery}
}

// Create handles POST /api/v1/webhooks.
func (h *WebhookHandler) Create(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	var req dto.CreateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.registry.Create(c.Request.Context(), tenantID, ports.CreateEndpointParams{
		URL:    req.URL,
		Events: req.Events,
		Secret: req.Secret,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto.CreateWebhookResponse{
		ID:     result.ID.String(),
		Secret: result.Secret,
	})
}

// Get handles GET /api/v1/webhooks/:id.
func (h *WebhookHandler) Get(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrWebhookNotFound())
		return
	}

	endpoint, err := h.registry.Get(c.Request.Context(), tenantID, id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.NewWebhookResponse(endpoint))
}

// Update handles PATCH /api/v1/webhooks/:id.
func (h *WebhookHandler) Update(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrWebhookNotFound())
		return
	}

	var req dto.UpdateWebhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	result, err := h.registry.Update(c.Request.Context(), tenantID, id, ports.UpdateEndpointParams{
		URL:          req.URL,
		Events:       req.Events,
		RotateSecret: req.RotateSecret,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, dto.UpdateWebhookResponse{
		Updated: result.Updated,
		Secret:  result.NewSecret,
	})
}

// Disable handles DELETE /api/v1/webhooks/:id. The endpoint is suspended, not
// removed; its configuration and history remain.
func (h *WebhookHandler) Disable(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, apperror.ErrWebhookNotFound())
		return
	}

	if err := h.registry.Disable(c.Request.Context(), tenantID, id); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"disabled": true})
}

// List handles GET /api/v1/webhooks.
func (h *WebhookHandler) List(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

	endpoints, total, err := h.registry.List(c.Request.Context(), tenantID, ports.ListParams{
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.WebhookResponse, 0, len(endpoints))
	for i := range endpoints {
		items = append(items, dto.NewWebhookResponse(&endpoints[i]))
	}

	response.OK(c, dto.ListWebhooksResponse{
		Webhooks: items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
	})
}

// ListDeadLetters handles GET /api/v1/webhooks/dlq.
func (h *WebhookHandler) ListDeadLetters(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}

	entries, err := h.delivery.ListDeadLetters(c.Request.Context(), tenantID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.DeadLetterResponse, 0, len(entries))
	for i := range entries {
		items = append(items, dto.NewDeadLetterResponse(&entries[i]))
	}

	response.OK(c, items)
}

// Replay handles POST /api/v1/webhooks/dlq/:jobId/replay.
func (h *WebhookHandler) Replay(c *gin.Context) {
	tenantID, ok := tenantFromContext(c)
	if !ok {
		return
	}
	entryID, err := uuid.Parse(c.Param("jobId"))
	if err != nil {
		response.Error(c, apperror.ErrDeadLetterNotFound())
		return
	}

	if err := h.delivery.Replay(c.Request.Context(), tenantID, entryID); err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, gin.H{"replayed": true})
}

func tenantFromContext(c *gin.Context) (uuid.UUID, bool) {
	val, ok := c.Get(middleware.CtxTenantID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	id, ok := val.(uuid.UUID)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
		return uuid.Nil, false
	}
	return id, true
}
