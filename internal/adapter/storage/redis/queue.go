package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"webhook-gateway/internal/core/domain"
	"webhook-gateway/internal/core/ports"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// RetryPolicy describes exponential backoff for a queue lane.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// DefaultRetryPolicy matches the delivery retry schedule: 5 attempts with
// exponential backoff starting at 2s (2s, 4s, 8s, 16s).
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 5, BaseDelay: 2 * time.Second, Multiplier: 2.0}
}

// Delay returns the backoff before the given attempt number runs.
// Attempt numbers are 1-based; the first attempt has no delay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	return time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-2)))
}

// Queue implements ports.DeliveryQueue on a Redis sorted set per lane.
// The member is the serialized message and the score its due time, so delayed
// retries come for free via ZRANGEBYSCORE. Leased messages are parked in a
// per-lane processing hash until acked or rescheduled.
type Queue struct {
	client *goredis.Client
	policy RetryPolicy
	now    func() time.Time
}

// NewQueue creates a Redis-backed delivery queue.
func NewQueue(client *goredis.Client, policy RetryPolicy) *Queue {
	return &Queue{client: client, policy: policy, now: time.Now}
}

func laneKey(lane string) string       { return "queue:" + lane }
func processingKey(lane string) string { return "queue:" + lane + ":processing" }

// Enqueue submits a job for immediate processing as attempt 1.
func (q *Queue) Enqueue(ctx context.Context, lane string, job domain.DeliveryJob) error {
	msg := ports.QueueMessage{
		ID:      uuid.NewString(),
		Attempt: 1,
		Job:     job,
	}
	return q.schedule(ctx, lane, &msg, q.now())
}

// Dequeue leases the next due message. Returns nil, nil when nothing is due.
// The claim is a ZREM race: whichever worker removes the member owns it.
func (q *Queue) Dequeue(ctx context.Context, lane string) (*ports.QueueMessage, error) {
	now := q.now()
	candidates, err := q.client.ZRangeByScore(ctx, laneKey(lane), &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixNano()),
		Count: 8,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis queue range: %w", err)
	}

	for _, raw := range candidates {
		removed, err := q.client.ZRem(ctx, laneKey(lane), raw).Result()
		if err != nil {
			return nil, fmt.Errorf("redis queue claim: %w", err)
		}
		if removed == 0 {
			continue // another worker got it
		}

		var msg ports.QueueMessage
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return nil, fmt.Errorf("decoding queue message: %w", err)
		}

		if err := q.client.HSet(ctx, processingKey(lane), msg.ID, raw).Err(); err != nil {
			return nil, fmt.Errorf("redis queue lease: %w", err)
		}
		return &msg, nil
	}
	return nil, nil
}

// Ack removes a leased message permanently.
func (q *Queue) Ack(ctx context.Context, lane string, msg *ports.QueueMessage) error {
	if err := q.client.HDel(ctx, processingKey(lane), msg.ID).Err(); err != nil {
		return fmt.Errorf("redis queue ack: %w", err)
	}
	return nil
}

// Retry reschedules a leased message with backoff. Returns false when the
// message has exhausted its attempts, in which case it is dropped.
func (q *Queue) Retry(ctx context.Context, lane string, msg *ports.QueueMessage) (bool, error) {
	if err := q.client.HDel(ctx, processingKey(lane), msg.ID).Err(); err != nil {
		return false, fmt.Errorf("redis queue retry unlease: %w", err)
	}

	next := msg.Attempt + 1
	if next > q.policy.MaxAttempts {
		return false, nil
	}

	rescheduled := *msg
	rescheduled.Attempt = next
	due := q.now().Add(q.policy.Delay(next))
	if err := q.schedule(ctx, lane, &rescheduled, due); err != nil {
		return false, err
	}
	return true, nil
}

func (q *Queue) schedule(ctx context.Context, lane string, msg *ports.QueueMessage, due time.Time) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding queue message: %w", err)
	}
	err = q.client.ZAdd(ctx, laneKey(lane), goredis.Z{
		Score:  float64(due.UnixNano()),
		Member: string(raw),
	}).Err()
	if err != nil {
		return fmt.Errorf("redis queue add: %w", err)
	}
	return nil
}
