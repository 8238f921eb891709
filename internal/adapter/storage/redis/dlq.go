package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"webhook-gateway/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const deadLetterKey = "webhooks:dead-letters"

// DeadLetterStore implements ports.DeadLetterStore on a Redis hash keyed by
// entry ID. Entries are retained until explicitly removed by a replay.
type DeadLetterStore struct {
	client *goredis.Client
}

// NewDeadLetterStore creates a Redis-backed dead-letter store.
func NewDeadLetterStore(client *goredis.Client) *DeadLetterStore {
	return &DeadLetterStore{client: client}
}

// Add stores a dead-letter entry.
func (s *DeadLetterStore) Add(ctx context.Context, entry *domain.DeadLetterEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding dead-letter entry: %w", err)
	}
	if err := s.client.HSet(ctx, deadLetterKey, entry.ID.String(), raw).Err(); err != nil {
		return fmt.Errorf("redis dead-letter add: %w", err)
	}
	return nil
}

// Get returns nil, nil when the entry does not exist.
func (s *DeadLetterStore) Get(ctx context.Context, id uuid.UUID) (*domain.DeadLetterEntry, error) {
	raw, err := s.client.HGet(ctx, deadLetterKey, id.String()).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("redis dead-letter get: %w", err)
	}

	var entry domain.DeadLetterEntry
	if err := json.Unmarshal(raw, &entry); err != nil {
		return nil, fmt.Errorf("decoding dead-letter entry: %w", err)
	}
	return &entry, nil
}

// List returns all dead-letter entries across tenants. Tenant scoping happens
// in the service layer.
func (s *DeadLetterStore) List(ctx context.Context) ([]domain.DeadLetterEntry, error) {
	raw, err := s.client.HGetAll(ctx, deadLetterKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis dead-letter list: %w", err)
	}

	entries := make([]domain.DeadLetterEntry, 0, len(raw))
	for _, val := range raw {
		var entry domain.DeadLetterEntry
		if err := json.Unmarshal([]byte(val), &entry); err != nil {
			return nil, fmt.Errorf("decoding dead-letter entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Remove deletes an entry. Removing a missing entry is not an error.
func (s *DeadLetterStore) Remove(ctx context.Context, id uuid.UUID) error {
	if err := s.client.HDel(ctx, deadLetterKey, id.String()).Err(); err != nil {
		return fmt.Errorf("redis dead-letter remove: %w", err)
	}
	return nil
}
