package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"webhook-gateway/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// fakeAuditRepo records entries and signals on create.
type fakeAuditRepo struct {
	mu      sync.Mutex
	entries []*domain.AuditLog
	created chan struct{}
	err     error
}

func newFakeAuditRepo() *fakeAuditRepo {
	return &fakeAuditRepo{created: make(chan struct{}, 16)}
}

func (r *fakeAuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()
	r.created <- struct{}{}
	return r.err
}

func TestAuditService_Log_PersistsAsync(t *testing.T) {
	repo := newFakeAuditRepo()
	svc := NewAuditService(repo, newTestLogger())

	tenantID := uuid.New()
	svc.Log(context.Background(), &domain.AuditLog{
		TenantID:     &tenantID,
		Action:       domain.AuditActionWebhookCreated,
		ResourceType: "Webhook",
	})

	select {
	case <-repo.created:
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry was not persisted")
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Len(t, repo.entries, 1)
	assert.NotEqual(t, uuid.Nil, repo.entries[0].ID)
	assert.False(t, repo.entries[0].CreatedAt.IsZero())
}

func TestAuditService_Log_NilRepo(t *testing.T) {
	svc := NewAuditService(nil, newTestLogger())

	// Must not panic.
	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionDelivered})
}

func TestAuditService_Log_RepoErrorSwallowed(t *testing.T) {
	repo := newFakeAuditRepo()
	repo.err = errors.New("db down")
	svc := NewAuditService(repo, newTestLogger())

	svc.Log(context.Background(), &domain.AuditLog{Action: domain.AuditActionDeliveryFailed})

	select {
	case <-repo.created:
	case <-time.After(2 * time.Second):
		t.Fatal("audit entry was not attempted")
	}
}
