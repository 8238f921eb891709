package ports

import (
	"context"
	"encoding/json"
	"time"

	"webhook-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// CreateEndpointParams holds validated input for endpoint registration.
type CreateEndpointParams struct {
	URL    string
	Events []string
	Secret string // optional; generated when empty
}

// CreateEndpointResult carries the raw secret, shown exactly once.
type CreateEndpointResult struct {
	ID     uuid.UUID
	Secret string
}

// UpdateEndpointParams holds partial updates for an endpoint.
type UpdateEndpointParams struct {
	URL          *string
	Events       []string
	RotateSecret bool
}

// UpdateEndpointResult reports the outcome of an update. NewSecret is set
// only when the secret was rotated, and is never retrievable again.
type UpdateEndpointResult struct {
	Updated   bool
	NewSecret string
}

// EndpointRegistry defines the management operations over webhook endpoints.
type EndpointRegistry interface {
	Create(ctx context.Context, tenantID uuid.UUID, params CreateEndpointParams) (*CreateEndpointResult, error)
	Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.WebhookEndpoint, error)
	Update(ctx context.Context, tenantID, id uuid.UUID, params UpdateEndpointParams) (*UpdateEndpointResult, error)
	Disable(ctx context.Context, tenantID, id uuid.UUID) error
	List(ctx context.Context, tenantID uuid.UUID, params ListParams) ([]domain.WebhookEndpoint, int64, error)
}

// DeliveryService fans out domain events to subscribed endpoints and exposes
// the dead-letter surface.
type DeliveryService interface {
	// EnqueueDelivery is fire-and-forget: queue unavailability is logged and
	// swallowed so the triggering business operation never fails.
	EnqueueDelivery(ctx context.Context, tenantID uuid.UUID, event string, payload json.RawMessage) error
	ListDeadLetters(ctx context.Context, tenantID uuid.UUID) ([]domain.DeadLetterEntry, error)
	Replay(ctx context.Context, tenantID, entryID uuid.UUID) error
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(key string, payload string) string
	Verify(key string, payload string, signature string) bool
}

// HashService handles operator token hashing (Argon2id).
type HashService interface {
	Hash(token string) (string, error)
	Verify(token string, hash string) (bool, error)
}

// TokenService handles JWT token operations for the management surface.
type TokenService interface {
	Generate(tenantID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	TenantID uuid.UUID
}

// AuditService records structured events for every state transition.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// MetricsSink receives delivery outcome counters.
type MetricsSink interface {
	DeliverySucceeded(event string)
	DeliveryFailed(event string)
	DeliveryRetried(event string)
	DeadLettered(event string)
}
