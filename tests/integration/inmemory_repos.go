package integration

import (
	"context"
	"fmt"
	"sync"

	"webhook-gateway/internal/core/domain"
	"webhook-gateway/internal/core/ports"

	"github.com/google/uuid"
)

// --- In-Memory Endpoint Repo ---

type inMemoryEndpointRepo struct {
	mu        sync.RWMutex
	endpoints map[uuid.UUID]*domain.WebhookEndpoint
}

func newInMemoryEndpointRepo() *inMemoryEndpointRepo {
	return &inMemoryEndpointRepo{endpoints: make(map[uuid.UUID]*domain.WebhookEndpoint)}
}

func (r *inMemoryEndpointRepo) Create(ctx context.Context, e *domain.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	clone := *e
	r.endpoints[e.ID] = &clone
	return nil
}

func (r *inMemoryEndpointRepo) GetByID(ctx context.Context, tenantID, id uuid.UUID) (*domain.WebhookEndpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.endpoints[id]
	if !ok || e.TenantID != tenantID {
		return nil, nil
	}
	clone := *e
	return &clone, nil
}

func (r *inMemoryEndpointRepo) Save(ctx context.Context, e *domain.WebhookEndpoint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.endpoints[e.ID]; !ok {
		return fmt.Errorf("endpoint not found")
	}
	clone := *e
	r.endpoints[e.ID] = &clone
	return nil
}

func (r *inMemoryEndpointRepo) ListByTenant(ctx context.Context, tenantID uuid.UUID, params ports.ListParams) ([]domain.WebhookEndpoint, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var all []domain.WebhookEndpoint
	for _, e := range r.endpoints {
		if e.TenantID == tenantID {
			all = append(all, *e)
		}
	}
	total := int64(len(all))

	start := (params.Page - 1) * params.PageSize
	if start >= len(all) {
		return nil, total, nil
	}
	end := start + params.PageSize
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, nil
}

func (r *inMemoryEndpointRepo) ListActiveByTenant(ctx context.Context, tenantID uuid.UUID) ([]domain.WebhookEndpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.WebhookEndpoint
	for _, e := range r.endpoints {
		if e.TenantID != tenantID {
			continue
		}
		if e.IsActive || e.CircuitOpenedAt != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

// --- In-Memory Audit Repo ---

type inMemoryAuditRepo struct {
	mu      sync.Mutex
	entries []domain.AuditLog
}

func newInMemoryAuditRepo() *inMemoryAuditRepo {
	return &inMemoryAuditRepo{}
}

func (r *inMemoryAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, *entry)
	return nil
}

// --- Counting Metrics Sink ---

type countingMetrics struct {
	mu          sync.Mutex
	succeeded   int
	failed      int
	retried     int
	deadLetters int
}

func (m *countingMetrics) DeliverySucceeded(string) { m.mu.Lock(); m.succeeded++; m.mu.Unlock() }
func (m *countingMetrics) DeliveryFailed(string)    { m.mu.Lock(); m.failed++; m.mu.Unlock() }
func (m *countingMetrics) DeliveryRetried(string)   { m.mu.Lock(); m.retried++; m.mu.Unlock() }
func (m *countingMetrics) DeadLettered(string)      { m.mu.Lock(); m.deadLetters++; m.mu.Unlock() }

func (m *countingMetrics) snapshot() (succeeded, failed, retried, deadLetters int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.succeeded, m.failed, m.retried, m.deadLetters
}
