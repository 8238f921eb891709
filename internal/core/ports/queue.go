package ports

import (
	"context"

	"webhook-gateway/internal/core/domain"

	"github.com/google/uuid"
)

// Queue lane names. The dead-letter store is just another named lane.
const (
	LaneWebhooks = "webhooks"
	LaneDead     = "webhooks-dlq"
)

// QueueMessage is one lease of a delivery job from a lane.
type QueueMessage struct {
	ID      string             `json:"id"`
	Attempt int                `json:"attempt"` // 1-based attempt ordinal
	Job     domain.DeliveryJob `json:"job"`
}

// DeliveryQueue is a durable, at-least-once job queue with named lanes and
// per-job retry scheduling.
type DeliveryQueue interface {
	// Enqueue submits a job for immediate processing.
	Enqueue(ctx context.Context, lane string, job domain.DeliveryJob) error
	// Dequeue leases the next due message. Returns nil, nil when nothing is due.
	Dequeue(ctx context.Context, lane string) (*QueueMessage, error)
	// Ack removes a leased message permanently.
	Ack(ctx context.Context, lane string, msg *QueueMessage) error
	// Retry reschedules a leased message according to the lane's backoff
	// policy. Returns false when the message has exhausted its attempts.
	Retry(ctx context.Context, lane string, msg *QueueMessage) (bool, error)
}

// DeadLetterStore holds jobs that tripped an endpoint circuit, for operator
// inspection and replay. Entries are retained until explicitly removed.
type DeadLetterStore interface {
	Add(ctx context.Context, entry *domain.DeadLetterEntry) error
	// Get returns nil, nil when the entry does not exist.
	Get(ctx context.Context, id uuid.UUID) (*domain.DeadLetterEntry, error)
	List(ctx context.Context) ([]domain.DeadLetterEntry, error)
	Remove(ctx context.Context, id uuid.UUID) error
}
