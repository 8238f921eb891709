package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"webhook-gateway/internal/core/domain"
	"webhook-gateway/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// maxJobAge bounds how old a leased job may be before it is failed without an
// HTTP attempt. Receivers apply the same window when verifying X-Timestamp, so
// delivering an older job would only burn their replay check.
const maxJobAge = 5 * time.Minute

// DispatcherConfig holds the circuit breaker and HTTP tunables.
type DispatcherConfig struct {
	FailureThreshold int
	Cooldown         time.Duration
	DeliveryTimeout  time.Duration
}

// Dispatcher executes a single leased delivery job: it resolves the endpoint,
// runs the circuit breaker transitions, performs the HTTP POST and records the
// outcome. A returned error tells the queue to reschedule the message.
type Dispatcher struct {
	repo    ports.EndpointRepository
	dlq     ports.DeadLetterStore
	audit   ports.AuditService
	metrics ports.MetricsSink
	client  *http.Client
	cfg     DispatcherConfig
	log     zerolog.Logger
	now     func() time.Time
}

// NewDispatcher creates a delivery dispatcher.
func NewDispatcher(
	repo ports.EndpointRepository,
	dlq ports.DeadLetterStore,
	audit ports.AuditService,
	metrics ports.MetricsSink,
	cfg DispatcherConfig,
	log zerolog.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:    repo,
		dlq:     dlq,
		audit:   audit,
		metrics: metrics,
		client:  &http.Client{Timeout: cfg.DeliveryTimeout},
		cfg:     cfg,
		log:     log,
		now:     time.Now,
	}
}

// Process handles one leased message. A nil return means the message is done
// (delivered or dropped); an error means the queue should retry it.
func (d *Dispatcher) Process(ctx context.Context, msg *ports.QueueMessage) error {
	job := &msg.Job
	log := d.log.With().
		Str("endpoint_id", job.EndpointID.String()).
		Str("event", job.Event).
		Int("attempt", msg.Attempt).
		Logger()

	endpoint, err := d.repo.GetByID(ctx, job.TenantID, job.EndpointID)
	if err != nil {
		return fmt.Errorf("loading endpoint: %w", err)
	}
	if endpoint == nil {
		log.Debug().Msg("endpoint gone, dropping delivery")
		return nil
	}

	if !endpoint.IsActive {
		if endpoint.CircuitOpenedAt != nil && !endpoint.CircuitCooling(d.now()) {
			// Cooldown elapsed: re-enable and let this job probe the endpoint.
			if err := d.reenable(ctx, endpoint); err != nil {
				return err
			}
			log.Info().Msg("circuit cooldown elapsed, endpoint re-enabled")
		} else {
			log.Debug().Msg("endpoint inactive, dropping delivery")
			return nil
		}
	}

	var deliveryErr error
	if age := job.Age(d.now()); age > maxJobAge {
		// Receivers reject deliveries outside their timestamp window, so an
		// HTTP attempt would be wasted. Still counts against the circuit.
		deliveryErr = fmt.Errorf("delivery window expired (job age %s)", age.Truncate(time.Second))
	} else {
		deliveryErr = d.post(ctx, endpoint, job)
	}

	if deliveryErr != nil {
		return d.recordFailure(ctx, endpoint, job, msg.Attempt, deliveryErr)
	}
	return d.recordSuccess(ctx, endpoint, job, msg.Attempt)
}

func (d *Dispatcher) post(ctx context.Context, endpoint *domain.WebhookEndpoint, job *domain.DeliveryJob) error {
	bodyJSON, err := json.Marshal(job.Body)
	if err != nil {
		return fmt.Errorf("marshaling delivery body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(bodyJSON))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Timestamp", job.Timestamp)
	if job.Signature != nil {
		req.Header.Set("X-Signature", *job.Signature)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("destination returned status %d", resp.StatusCode)
	}
	return nil
}

func (d *Dispatcher) reenable(ctx context.Context, endpoint *domain.WebhookEndpoint) error {
	endpoint.IsActive = true
	endpoint.CircuitOpenedAt = nil
	endpoint.NextRetryAt = nil
	endpoint.UpdatedAt = d.now().UTC()
	if err := d.repo.Save(ctx, endpoint); err != nil {
		return fmt.Errorf("re-enabling endpoint: %w", err)
	}
	d.auditEndpoint(ctx, endpoint, domain.AuditActionWebhookReenabled, "")
	return nil
}

func (d *Dispatcher) recordSuccess(ctx context.Context, endpoint *domain.WebhookEndpoint, job *domain.DeliveryJob, attempt int) error {
	d.metrics.DeliverySucceeded(job.Event)
	d.auditEndpoint(ctx, endpoint, domain.AuditActionDelivered, job.Event)
	if attempt > 1 {
		d.metrics.DeliveryRetried(job.Event)
		d.auditEndpoint(ctx, endpoint, domain.AuditActionDeliveryRetried, job.Event)
	}

	if endpoint.FailureCount > 0 {
		endpoint.CloseCircuit()
		endpoint.UpdatedAt = d.now().UTC()
		if err := d.repo.Save(ctx, endpoint); err != nil {
			d.log.Warn().Err(err).
				Str("endpoint_id", endpoint.ID.String()).
				Msg("failed to reset failure counter after successful delivery")
		}
	}

	d.log.Info().
		Str("endpoint_id", endpoint.ID.String()).
		Str("event", job.Event).
		Int("attempt", attempt).
		Msg("webhook delivered")
	return nil
}

func (d *Dispatcher) recordFailure(ctx context.Context, endpoint *domain.WebhookEndpoint, job *domain.DeliveryJob, attempt int, cause error) error {
	endpoint.FailureCount++
	d.metrics.DeliveryFailed(job.Event)
	d.auditEndpoint(ctx, endpoint, domain.AuditActionDeliveryFailed, job.Event)

	tripped := endpoint.FailureCount >= d.cfg.FailureThreshold
	if tripped {
		endpoint.OpenCircuit(d.now().UTC(), d.cfg.Cooldown)
	}
	endpoint.UpdatedAt = d.now().UTC()
	if err := d.repo.Save(ctx, endpoint); err != nil {
		return fmt.Errorf("persisting failure state: %w", err)
	}

	if tripped {
		d.auditEndpoint(ctx, endpoint, domain.AuditActionWebhookDisabled, job.Event)
		d.metrics.DeadLettered(job.Event)
		entry := &domain.DeadLetterEntry{
			ID:        uuid.New(),
			Original:  *job,
			Failures:  endpoint.FailureCount,
			LastError: cause.Error(),
			CreatedAt: d.now().UTC(),
		}
		if err := d.dlq.Add(ctx, entry); err != nil {
			d.log.Error().Err(err).
				Str("endpoint_id", endpoint.ID.String()).
				Msg("failed to dead-letter webhook job")
		}
		d.log.Warn().
			Str("endpoint_id", endpoint.ID.String()).
			Int("failure_count", endpoint.FailureCount).
			Time("next_retry_at", *endpoint.NextRetryAt).
			Msg("circuit opened, endpoint disabled")
	} else {
		d.log.Warn().Err(cause).
			Str("endpoint_id", endpoint.ID.String()).
			Str("event", job.Event).
			Int("attempt", attempt).
			Int("failure_count", endpoint.FailureCount).
			Msg("webhook delivery failed")
	}

	return fmt.Errorf("delivering webhook: %w", cause)
}

func (d *Dispatcher) auditEndpoint(ctx context.Context, endpoint *domain.WebhookEndpoint, action domain.AuditAction, event string) {
	if d.audit == nil {
		return
	}
	var details string
	if event != "" {
		details = `{"event":"` + event + `"}`
	}
	tid := endpoint.TenantID
	d.audit.Log(ctx, &domain.AuditLog{
		TenantID:     &tid,
		Action:       action,
		ResourceType: "Webhook",
		ResourceID:   endpoint.ID.String(),
		Details:      details,
	})
}
