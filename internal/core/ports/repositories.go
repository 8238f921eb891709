package ports

import (
	"context"

	"webhook-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// ListParams holds pagination for listing endpoints.
type ListParams struct {
	Page     int
	PageSize int
}

// EndpointRepository defines persistence operations for webhook endpoints.
// The delivery worker interacts with this interface only; circuit state is
// persisted via Save with last-write-wins semantics.
type EndpointRepository interface {
	Create(ctx context.Context, endpoint *domain.WebhookEndpoint) error
	// GetByID fetches an endpoint scoped to a tenant. Returns nil, nil when absent.
	GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WebhookEndpoint, error)
	Save(ctx context.Context, endpoint *domain.WebhookEndpoint) error
	ListByTenant(ctx context.Context, tenantID uuid.UUID, params ListParams) ([]domain.WebhookEndpoint, int64, error)
	ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.WebhookEndpoint, error)
}

// AuditRepository defines persistence for audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
