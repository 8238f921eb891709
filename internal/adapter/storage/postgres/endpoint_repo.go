package postgres

import (
	"context"
	"errors"
	"fmt"

	"webhook-gateway/internal/core/domain"
	"webhook-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const endpointColumns = `id, tenant_id, url, events, secret_hash, is_active, failure_count, circuit_opened_at, next_retry_at, created_at, updated_at`

// EndpointRepo implements ports.EndpointRepository.
type EndpointRepo struct {
	pool Pool
}

// NewEndpointRepo creates a new EndpointRepo.
func NewEndpointRepo(pool Pool) *EndpointRepo {
	return &EndpointRepo{pool: pool}
}

// Create inserts a new webhook endpoint.
func (r *EndpointRepo) Create(ctx context.Context, e *domain.WebhookEndpoint) error {
	query := `INSERT INTO webhook_endpoints (` + endpointColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		e.ID, e.TenantID, e.URL, e.Events, e.SecretHash,
		e.IsActive, e.FailureCount, e.CircuitOpenedAt, e.NextRetryAt,
		e.CreatedAt, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook endpoint: %w", err)
	}
	return nil
}

// GetByID fetches an endpoint scoped to the tenant. Returns nil, nil when the
// endpoint does not exist or belongs to another tenant.
func (r *EndpointRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints WHERE id = $1 AND tenant_id = $2`

	e, err := scanEndpoint(r.pool.QueryRow(ctx, query, id, tenantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get webhook endpoint by id: %w", err)
	}
	return e, nil
}

// Save persists the mutable endpoint fields, circuit state included.
func (r *EndpointRepo) Save(ctx context.Context, e *domain.WebhookEndpoint) error {
	query := `UPDATE webhook_endpoints
		SET url=$1, events=$2, secret_hash=$3, is_active=$4, failure_count=$5,
		    circuit_opened_at=$6, next_retry_at=$7, updated_at=$8
		WHERE id=$9 AND tenant_id=$10`

	_, err := r.pool.Exec(ctx, query,
		e.URL, e.Events, e.SecretHash, e.IsActive, e.FailureCount,
		e.CircuitOpenedAt, e.NextRetryAt, e.UpdatedAt,
		e.ID, e.TenantID,
	)
	if err != nil {
		return fmt.Errorf("update webhook endpoint: %w", err)
	}
	return nil
}

// ListByTenant returns a page of the tenant's endpoints plus the total count.
func (r *EndpointRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, params ports.ListParams) ([]domain.WebhookEndpoint, int64, error) {
	var total int64
	countQuery := `SELECT COUNT(*) FROM webhook_endpoints WHERE tenant_id = $1`
	if err := r.pool.QueryRow(ctx, countQuery, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count webhook endpoints: %w", err)
	}

	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints
		WHERE tenant_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	offset := (params.Page - 1) * params.PageSize
	rows, err := r.pool.Query(ctx, query, tenantID, params.PageSize, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list webhook endpoints: %w", err)
	}
	defer rows.Close()

	endpoints, err := collectEndpoints(rows)
	if err != nil {
		return nil, 0, err
	}
	return endpoints, total, nil
}

// ListActiveByTenant returns the endpoints eligible for delivery fan-out:
// active ones plus circuit-disabled ones, which may be due for an auto-retry
// probe. Manually disabled endpoints never appear.
func (r *EndpointRepo) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	query := `SELECT ` + endpointColumns + ` FROM webhook_endpoints
		WHERE tenant_id = $1 AND (is_active = TRUE OR circuit_opened_at IS NOT NULL)`

	rows, err := r.pool.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("list active webhook endpoints: %w", err)
	}
	defer rows.Close()

	return collectEndpoints(rows)
}

func scanEndpoint(row pgx.Row) (*domain.WebhookEndpoint, error) {
	e := &domain.WebhookEndpoint{}
	err := row.Scan(
		&e.ID, &e.TenantID, &e.URL, &e.Events, &e.SecretHash,
		&e.IsActive, &e.FailureCount, &e.CircuitOpenedAt, &e.NextRetryAt,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func collectEndpoints(rows pgx.Rows) ([]domain.WebhookEndpoint, error) {
	var endpoints []domain.WebhookEndpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("scan webhook endpoint: %w", err)
		}
		endpoints = append(endpoints, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook endpoints: %w", err)
	}
	return endpoints, nil
}
