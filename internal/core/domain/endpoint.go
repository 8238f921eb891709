package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxSubscribedEvents bounds the number of event names an endpoint may subscribe to.
const MaxSubscribedEvents = 32

// WebhookEndpoint is a tenant-registered delivery destination.
// The raw signing secret is returned once at creation/rotation; only its
// SHA-256 hash is retained, and that hash is the HMAC key used on delivery.
type WebhookEndpoint struct {
	ID              uuid.UUID  `json:"id"`
	TenantID        uuid.UUID  `json:"tenant_id"`
	URL             string     `json:"url"`
	Events          []string   `json:"events"`
	SecretHash      *string    `json:"-"` // Never expose
	IsActive        bool       `json:"is_active"`
	FailureCount    int        `json:"failure_count"`
	CircuitOpenedAt *time.Time `json:"circuit_opened_at,omitempty"`
	NextRetryAt     *time.Time `json:"next_retry_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// SubscribedTo reports whether the endpoint subscribes to the given event name.
func (e *WebhookEndpoint) SubscribedTo(event string) bool {
	for _, name := range e.Events {
		if name == event {
			return true
		}
	}
	return false
}

// CircuitCooling reports whether the circuit is open and its cooldown window
// has not yet elapsed. Deliveries must be skipped while this holds.
func (e *WebhookEndpoint) CircuitCooling(now time.Time) bool {
	return e.CircuitOpenedAt != nil && e.NextRetryAt != nil && e.NextRetryAt.After(now)
}

// OpenCircuit disables the endpoint and records the cooldown window.
func (e *WebhookEndpoint) OpenCircuit(now time.Time, cooldown time.Duration) {
	e.IsActive = false
	opened := now
	next := now.Add(cooldown)
	e.CircuitOpenedAt = &opened
	e.NextRetryAt = &next
}

// CloseCircuit resets the failure counter and clears the circuit fields.
func (e *WebhookEndpoint) CloseCircuit() {
	e.IsActive = true
	e.FailureCount = 0
	e.CircuitOpenedAt = nil
	e.NextRetryAt = nil
}
