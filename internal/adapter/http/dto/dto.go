package dto

import (
	"encoding/json"
	"time"

	"webhook-gateway/internal/core/domain"
)

// CreateWebhookRequest is the request body for endpoint registration.
type CreateWebhookRequest struct {
	URL    string   `json:"url" binding:"required,max=2048"`
	Events []string `json:"events" binding:"required,min=1,dive,min=1,max=128"`
	Secret string   `json:"secret,omitempty"`
}

// UpdateWebhookRequest is the request body for partial endpoint updates.
type UpdateWebhookRequest struct {
	URL          *string  `json:"url,omitempty"`
	Events       []string `json:"events,omitempty"`
	RotateSecret bool     `json:"rotate_secret,omitempty"`
}

// CreateWebhookResponse carries the raw secret, shown exactly once.
type CreateWebhookResponse struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

// UpdateWebhookResponse reports the update outcome. Secret is present only
// after a rotation.
type UpdateWebhookResponse struct {
	Updated bool   `json:"updated"`
	Secret  string `json:"secret,omitempty"`
}

// WebhookResponse is the public view of an endpoint. The secret hash never
// leaves the server.
type WebhookResponse struct {
	ID              string     `json:"id"`
	URL             string     `json:"url"`
	Events          []string   `json:"events"`
	IsActive        bool       `json:"is_active"`
	FailureCount    int        `json:"failure_count"`
	CircuitOpenedAt *time.Time `json:"circuit_opened_at,omitempty"`
	NextRetryAt     *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// NewWebhookResponse maps a domain endpoint to its public view.
func NewWebhookResponse(e *domain.WebhookEndpoint) WebhookResponse {
	return WebhookResponse{
		ID:              e.ID.String(),
		URL:             e.URL,
		Events:          e.Events,
		IsActive:        e.IsActive,
		FailureCount:    e.FailureCount,
		CircuitOpenedAt: e.CircuitOpenedAt,
		NextRetryAt:     e.NextRetryAt,
		CreatedAt:       e.CreatedAt,
		UpdatedAt:       e.UpdatedAt,
	}
}

// ListWebhooksResponse is a page of endpoints.
type ListWebhooksResponse struct {
	Webhooks []WebhookResponse `json:"webhooks"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// DeadLetterData holds the inspectable parts of a dead-lettered job.
type DeadLetterData struct {
	Original  domain.DeliveryJob `json:"original"`
	Failures  int                `json:"failures"`
	LastError string             `json:"last_error"`
}

// DeadLetterResponse is one dead-lettered job.
type DeadLetterResponse struct {
	ID        string         `json:"id"`
	Data      DeadLetterData `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// NewDeadLetterResponse maps a dead-letter entry to its public view.
func NewDeadLetterResponse(e *domain.DeadLetterEntry) DeadLetterResponse {
	return DeadLetterResponse{
		ID: e.ID.String(),
		Data: DeadLetterData{
			Original:  e.Original,
			Failures:  e.Failures,
			LastError: e.LastError,
		},
		CreatedAt: e.CreatedAt,
	}
}

// IngestEventRequest is the internal request that triggers webhook fan-out.
type IngestEventRequest struct {
	TenantID string          `json:"tenant_id" binding:"required,uuid"`
	Event    string          `json:"event" binding:"required,min=1,max=128"`
	Payload  json.RawMessage `json:"payload" binding:"required"`
}
