package service

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"webhook-gateway/internal/core/domain"
	"webhook-gateway/internal/core/ports"
	"webhook-gateway/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// isoMillis matches the wire timestamp format inside the delivery body.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type deliveryService struct {
	repo  ports.EndpointRepository
	queue ports.DeliveryQueue
	dlq   ports.DeadLetterStore
	sig   ports.SignatureService
	audit ports.AuditService
	log   zerolog.Logger
	now   func() time.Time
}

// NewDeliveryService creates the event fan-out service.
func NewDeliveryService(
	repo ports.EndpointRepository,
	queue ports.DeliveryQueue,
	dlq ports.DeadLetterStore,
	sig ports.SignatureService,
	audit ports.AuditService,
	log zerolog.Logger,
) ports.DeliveryService {
	return &deliveryService{
		repo:  repo,
		queue: queue,
		dlq:   dlq,
		sig:   sig,
		audit: audit,
		log:   log,
		now:   time.Now,
	}
}

// EnqueueDelivery builds one delivery job per matching endpoint and submits
// them to the webhooks lane. The timestamp and signature are fixed here and
// travel with the job; retries reuse them as-is.
//
// Queue submission failures are logged and swallowed so the triggering
// business operation never fails because of webhook infrastructure.
func (s *deliveryService) EnqueueDelivery(ctx context.Context, tenantID uuid.UUID, event string, payload json.RawMessage) error {
	endpoints, err := s.repo.ListActiveByTenant(ctx, tenantID)
	if err != nil {
		return apperror.ErrDatabaseError(err)
	}

	now := s.now().UTC()
	for i := range endpoints {
		endpoint := &endpoints[i]
		if !endpoint.SubscribedTo(event) {
			continue
		}
		if endpoint.CircuitCooling(now) {
			s.log.Debug().
				Str("endpoint_id", endpoint.ID.String()).
				Str("event", event).
				Time("next_retry_at", *endpoint.NextRetryAt).
				Msg("skipping delivery, circuit cooling down")
			continue
		}

		job, err := s.buildJob(endpoint, event, payload, now)
		if err != nil {
			s.log.Error().Err(err).
				Str("endpoint_id", endpoint.ID.String()).
				Str("event", event).
				Msg("failed to build delivery job")
			continue
		}

		if err := s.queue.Enqueue(ctx, ports.LaneWebhooks, *job); err != nil {
			s.log.Error().Err(err).
				Str("endpoint_id", endpoint.ID.String()).
				Str("event", event).
				Msg("failed to enqueue webhook delivery")
			continue
		}

		s.log.Info().
			Str("endpoint_id", endpoint.ID.String()).
			Str("event", event).
			Msg("webhook delivery enqueued")
	}

	return nil
}

func (s *deliveryService) buildJob(endpoint *domain.WebhookEndpoint, event string, payload json.RawMessage, now time.Time) (*domain.DeliveryJob, error) {
	body := domain.DeliveryBody{
		Event:     event,
		Payload:   payload,
		Timestamp: now.Format(isoMillis),
	}
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)

	job := &domain.DeliveryJob{
		EndpointID: endpoint.ID,
		TenantID:   endpoint.TenantID,
		Event:      event,
		Body:       body,
		Timestamp:  timestamp,
	}

	if endpoint.SecretHash != nil {
		bodyJSON, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		sig := s.sig.Sign(*endpoint.SecretHash, string(bodyJSON)+timestamp)
		job.Signature = &sig
	}

	return job, nil
}

// ListDeadLetters returns the tenant's dead-lettered jobs. Tenant scoping is
// applied at read time since the store itself is shared.
func (s *deliveryService) ListDeadLetters(ctx context.Context, tenantID uuid.UUID) ([]domain.DeadLetterEntry, error) {
	entries, err := s.dlq.List(ctx)
	if err != nil {
		return nil, apperror.ErrQueueError(err)
	}

	scoped := make([]domain.DeadLetterEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Original.TenantID == tenantID {
			scoped = append(scoped, entry)
		}
	}
	return scoped, nil
}

// Replay resubmits a dead-lettered job verbatim, original timestamp and
// signature included, and removes the entry only once the resubmit succeeded.
func (s *deliveryService) Replay(ctx context.Context, tenantID, entryID uuid.UUID) error {
	entry, err := s.dlq.Get(ctx, entryID)
	if err != nil {
		return apperror.ErrQueueError(err)
	}
	if entry == nil || entry.Original.TenantID != tenantID {
		return apperror.ErrDeadLetterNotFound()
	}

	if err := s.queue.Enqueue(ctx, ports.LaneWebhooks, entry.Original); err != nil {
		return apperror.ErrQueueError(err)
	}

	if err := s.dlq.Remove(ctx, entryID); err != nil {
		// Job is already resubmitted; a stale entry is preferable to a lost one.
		s.log.Warn().Err(err).Str("entry_id", entryID.String()).Msg("failed to remove replayed dead-letter entry")
	}

	if s.audit != nil {
		tid := tenantID
		s.audit.Log(ctx, &domain.AuditLog{
			TenantID:     &tid,
			Action:       domain.AuditActionReplayed,
			ResourceType: "Webhook",
			ResourceID:   entry.Original.EndpointID.String(),
			Details:      `{"entry_id":"` + entryID.String() + `"}`,
		})
	}

	s.log.Info().
		Str("entry_id", entryID.String()).
		Str("endpoint_id", entry.Original.EndpointID.String()).
		Msg("dead-lettered webhook replayed")
	return nil
}
