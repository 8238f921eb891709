package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWebhookCreated   AuditAction = "WEBHOOK_CREATED"
	AuditActionWebhookUpdated   AuditAction = "WEBHOOK_UPDATED"
	AuditActionWebhookDisabled  AuditAction = "WEBHOOK_DISABLED"
	AuditActionWebhookReenabled AuditAction = "WEBHOOK_AUTO_REENABLED"
	AuditActionDelivered        AuditAction = "WEBHOOK_DELIVERED"
	AuditActionDeliveryFailed   AuditAction = "WEBHOOK_DELIVERY_FAILED"
	AuditActionDeliveryRetried  AuditAction = "WEBHOOK_DELIVERY_RETRIED"
	AuditActionReplayed         AuditAction = "WEBHOOK_REPLAYED"
)

// AuditLog records a single audited action in the system.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	TenantID     *uuid.UUID  `json:"tenant_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	CreatedAt    time.Time   `json:"created_at"`
}
