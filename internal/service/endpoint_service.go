package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"webhook-gateway/internal/core/domain"
	"webhook-gateway/internal/core/ports"
	"webhook-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const secretByteLen = 24

// endpointService implements ports.EndpointRegistry.
type endpointService struct {
	repo  ports.EndpointRepository
	audit ports.AuditService
	log   zerolog.Logger
}

// NewEndpointService creates the webhook endpoint registry.
func NewEndpointService(repo ports.EndpointRepository, audit ports.AuditService, log zerolog.Logger) ports.EndpointRegistry {
	return &endpointService{repo: repo, audit: audit, log: log}
}

// Create registers a new endpoint and returns the raw signing secret exactly
// once. Only the SHA-256 hash of the secret is stored.
func (s *endpointService) Create(ctx context.Context, tenantID uuid.UUID, params ports.CreateEndpointParams) (*ports.CreateEndpointResult, error) {
	if err := validateURL(params.URL); err != nil {
		return nil, err
	}
	if len(params.Events) == 0 {
		return nil, apperror.Validation("events required")
	}
	if len(params.Events) > domain.MaxSubscribedEvents {
		return nil, apperror.ErrTooManyEvents(domain.MaxSubscribedEvents)
	}

	secret := params.Secret
	if secret == "" {
		generated, err := generateSecret()
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		secret = generated
	}
	secretHash := hashSecret(secret)

	now := time.Now().UTC()
	endpoint := &domain.WebhookEndpoint{
		ID:         uuid.New(),
		TenantID:   tenantID,
		URL:        params.URL,
		Events:     params.Events,
		SecretHash: &secretHash,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.repo.Create(ctx, endpoint); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.auditLog(ctx, tenantID, domain.AuditActionWebhookCreated, endpoint.ID, map[string]any{
		"url":    endpoint.URL,
		"events": endpoint.Events,
	})

	return &ports.CreateEndpointResult{ID: endpoint.ID, Secret: secret}, nil
}

// Get returns a single endpoint scoped to the tenant.
func (s *endpointService) Get(ctx context.Context, tenantID, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	endpoint, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if endpoint == nil {
		return nil, apperror.ErrWebhookNotFound()
	}
	return endpoint, nil
}

// Update applies partial changes and optionally rotates the signing secret,
// returning the new raw secret once.
func (s *endpointService) Update(ctx context.Context, tenantID, id uuid.UUID, params ports.UpdateEndpointParams) (*ports.UpdateEndpointResult, error) {
	endpoint, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if endpoint == nil {
		return nil, apperror.ErrWebhookNotFound()
	}

	if params.URL != nil {
		if err := validateURL(*params.URL); err != nil {
			return nil, err
		}
		endpoint.URL = *params.URL
	}
	if len(params.Events) > 0 {
		if len(params.Events) > domain.MaxSubscribedEvents {
			return nil, apperror.ErrTooManyEvents(domain.MaxSubscribedEvents)
		}
		endpoint.Events = params.Events
	}

	result := &ports.UpdateEndpointResult{Updated: true}
	if params.RotateSecret {
		secret, err := generateSecret()
		if err != nil {
			return nil, apperror.InternalError(err)
		}
		secretHash := hashSecret(secret)
		endpoint.SecretHash = &secretHash
		result.NewSecret = secret
	}

	endpoint.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, endpoint); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}

	s.auditLog(ctx, tenantID, domain.AuditActionWebhookUpdated, endpoint.ID, map[string]any{
		"url":     endpoint.URL,
		"events":  endpoint.Events,
		"rotated": params.RotateSecret,
	})

	return result, nil
}

// Disable suspends delivery without touching the failure counter or circuit
// timestamps. This is the manual disable, distinct from a circuit-breaker
// disable; re-enabling requires an explicit update or the auto-retry path.
func (s *endpointService) Disable(ctx context.Context, tenantID, id uuid.UUID) error {
	endpoint, err := s.repo.GetByID(ctx, tenantID, id)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}
	if endpoint == nil {
		return apperror.ErrWebhookNotFound()
	}

	endpoint.IsActive = false
	endpoint.UpdatedAt = time.Now().UTC()
	if err := s.repo.Save(ctx, endpoint); err != nil {
		return apperror.ErrDatabaseError(err)
	}

	s.auditLog(ctx, tenantID, domain.AuditActionWebhookDisabled, endpoint.ID, nil)
	return nil
}

// List returns the tenant's endpoints with pagination.
func (s *endpointService) List(ctx context.Context, tenantID uuid.UUID, params ports.ListParams) ([]domain.WebhookEndpoint, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 || params.PageSize > 100 {
		params.PageSize = 20
	}

	endpoints, total, err := s.repo.ListByTenant(ctx, tenantID, params)
	if err != nil {
		return nil, 0, apperror.ErrDatabaseError(err)
	}
	return endpoints, total, nil
}

func (s *endpointService) auditLog(ctx context.Context, tenantID uuid.UUID, action domain.AuditAction, endpointID uuid.UUID, details map[string]any) {
	if s.audit == nil {
		return
	}
	var detailsJSON string
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			detailsJSON = string(b)
		}
	}
	tid := tenantID
	s.audit.Log(ctx, &domain.AuditLog{
		TenantID:     &tid,
		Action:       action,
		ResourceType: "Webhook",
		ResourceID:   endpointID.String(),
		Details:      detailsJSON,
	})
}

func validateURL(raw string) error {
	if raw == "" {
		return apperror.Validation("url required")
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return apperror.Validation("url must be a valid http(s) URL")
	}
	return nil
}

// generateSecret returns 24 random bytes, hex-encoded.
func generateSecret() (string, error) {
	buf := make([]byte, secretByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// hashSecret derives the stored key material. The hex SHA-256 digest doubles
// as the HMAC signing key on delivery.
func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
