package store

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ismaiel54/match-arena/internal/msg"
	"github.com/ismaiel54/match-arena/internal/observability"
)

// Publisher drains the outbox to the event bus
type Publisher struct {
	store     *Store
	sink      msg.Sink
	logger    *zap.Logger
	metrics   *observability.Metrics
	interval  time.Duration
	batchSize int
}

// NewPublisher creates an outbox publisher
func NewPublisher(store *Store, sink msg.Sink, logger *zap.Logger, metrics *observability.Metrics) *Publisher {
	return &Publisher{
		store:     store,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
		interval:  250 * time.Millisecond,
		batchSize: 100,
	}
}

// Run publishes on every interval until ctx is done
func (p *Publisher) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := p.PublishBatch(ctx); err != nil {
				p.logger.Error("failed to publish batch", zap.Error(err))
			}
		}
	}
}

// PublishBatch publishes up to one batch and returns how many were sent.
// A failed event stays unpublished and is retried on the next batch.
func (p *Publisher) PublishBatch(ctx context.Context) (int, error) {
	events, err := p.store.ListUnpublished(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to list unpublished events: %w", err)
	}
	if len(events) == 0 {
		return 0, nil
	}

	now := time.Now().UnixMilli()
	published := 0

	for _, event := range events {
		err := p.sink.Publish(ctx, msg.Event{
			ID:      event.EventID,
			Topic:   event.Topic,
			Key:     event.Key,
			Payload: []byte(event.PayloadJSON),
		})
		if err != nil {
			p.logger.Error("failed to publish event",
				zap.String("event_id", event.EventID),
				zap.String("match_id", event.MatchID),
				zap.Error(err),
			)
			// later events wait so the bus sees each match in order
			break
		}

		if err := p.store.MarkPublished(ctx, event.EventID, now); err != nil {
			// the event is republished next batch; consumers dedupe by event id
			p.logger.Error("failed to mark event as published",
				zap.String("event_id", event.EventID),
				zap.Error(err),
			)
			continue
		}

		published++
		p.metrics.OutboxEventPublished()
	}

	if published > 0 {
		p.logger.Debug("published outbox batch",
			zap.Int("published", published),
			zap.Int("total", len(events)),
		)
	}
	return published, nil
}
