package worker

import (
	"context"
	"sync"
	"time"

	"webhook-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

const pollInterval = 250 * time.Millisecond

// Pool runs a fixed set of workers that lease delivery jobs from the webhooks
// lane and hand them to the dispatcher. Failed jobs go back through the
// queue's retry policy; exhausted jobs are dropped by the queue itself.
type Pool struct {
	queue      ports.DeliveryQueue
	dispatcher *Dispatcher
	workers    int
	log        zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPool creates a worker pool with the given concurrency.
func NewPool(queue ports.DeliveryQueue, dispatcher *Dispatcher, workers int, log zerolog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{
		queue:      queue,
		dispatcher: dispatcher,
		workers:    workers,
		log:        log,
	}
}

// Start launches the workers. They run until Stop is called or the parent
// context is cancelled.
func (p *Pool) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run(ctx, i)
	}
	p.log.Info().Int("workers", p.workers).Msg("delivery worker pool started")
}

// Stop signals the workers and waits for in-flight jobs to finish.
func (p *Pool) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
	p.log.Info().Msg("delivery worker pool stopped")
}

func (p *Pool) run(ctx context.Context, id int) {
	defer p.wg.Done()
	log := p.log.With().Int("worker", id).Logger()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		msg, err := p.queue.Dequeue(ctx, ports.LaneWebhooks)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error().Err(err).Msg("failed to dequeue delivery job")
			p.sleep(ctx, pollInterval)
			continue
		}
		if msg == nil {
			p.sleep(ctx, pollInterval)
			continue
		}

		if err := p.dispatcher.Process(ctx, msg); err != nil {
			rescheduled, retryErr := p.queue.Retry(ctx, ports.LaneWebhooks, msg)
			if retryErr != nil {
				log.Error().Err(retryErr).Str("message_id", msg.ID).Msg("failed to reschedule delivery job")
				continue
			}
			if !rescheduled {
				log.Warn().Str("message_id", msg.ID).Int("attempt", msg.Attempt).Msg("delivery job exhausted retries")
			}
			continue
		}

		if err := p.queue.Ack(ctx, ports.LaneWebhooks, msg); err != nil {
			log.Error().Err(err).Str("message_id", msg.ID).Msg("failed to ack delivery job")
		}
	}
}

func (p *Pool) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
