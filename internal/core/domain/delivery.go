package domain

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DeliveryBody is the JSON document POSTed to the destination URL.
// Field order matters: the signature is computed over the serialized body.
type DeliveryBody struct {
	Event     string          `json:"event"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp string          `json:"timestamp"` // ISO-8601, fixed at enqueue time
}

// DeliveryJob is the queue payload for a single endpoint delivery.
// Timestamp and Signature are fixed at enqueue time and never regenerated on
// retry; the receiver uses the timestamp for its anti-replay check.
type DeliveryJob struct {
	EndpointID uuid.UUID    `json:"endpoint_id"`
	TenantID   uuid.UUID    `json:"tenant_id"`
	Event      string       `json:"event"`
	Body       DeliveryBody `json:"body"`
	Timestamp  string       `json:"timestamp"` // epoch millis
	Signature  *string      `json:"signature,omitempty"`
}

// Age returns how far the job's enqueue timestamp lies from now, in either
// direction. Returns a large duration if the timestamp is unparseable.
func (j *DeliveryJob) Age(now time.Time) time.Duration {
	millis, err := strconv.ParseInt(j.Timestamp, 10, 64)
	if err != nil {
		return time.Duration(1<<63 - 1)
	}
	age := now.Sub(time.UnixMilli(millis))
	if age < 0 {
		age = -age
	}
	return age
}

// DeadLetterEntry wraps a delivery job that tripped its endpoint's circuit.
// Exactly one entry is written per circuit-open episode.
type DeadLetterEntry struct {
	ID        uuid.UUID   `json:"id"`
	Original  DeliveryJob `json:"original"`
	Failures  int         `json:"failures"`
	LastError string      `json:"last_error"`
	CreatedAt time.Time   `json:"created_at"`
}
