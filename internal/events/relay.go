package events

import (
	"context"
	"encoding/json"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/repository"
)

type envelope struct {
	EventID       int64           `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// Relay переносит неопубликованные события outbox в брокер
type Relay struct {
	tx        repository.TxManager
	outbox    repository.OutboxRepository
	producer  Producer
	metrics   *metrics.Metrics
	logger    *zap.Logger
	batchSize int
	interval  time.Duration
	tracer    trace.Tracer
}

func NewRelay(
	tx repository.TxManager,
	outbox repository.OutboxRepository,
	producer Producer,
	m *metrics.Metrics,
	logger *zap.Logger,
	batchSize int,
	interval time.Duration,
) *Relay {
	if batchSize <= 0 {
		batchSize = 50
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	return &Relay{
		tx:        tx,
		outbox:    outbox,
		producer:  producer,
		metrics:   m,
		logger:    logger,
		batchSize: batchSize,
		interval:  interval,
		tracer:    otel.Tracer("outbox-relay"),
	}
}

func (r *Relay) Start(ctx context.Context) {
	logging.Info(ctx, r.logger, "Starting outbox relay")

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info(ctx, r.logger, "Outbox relay stopping")
			return
		case <-ticker.C:
			if err := r.ProcessBatch(ctx); err != nil {
				logging.Error(ctx, r.logger, "Error processing outbox batch", zap.Error(err))
			}
		}
	}
}

// ProcessBatch публикует одну пачку; неудачные события получают attempts+1 и ждут следующего тика
func (r *Relay) ProcessBatch(ctx context.Context) error {
	ctx, span := r.tracer.Start(ctx, "Relay.ProcessBatch")
	defer span.End()

	return r.tx.WithTransaction(ctx, func(ctx context.Context) error {
		batch, err := r.outbox.FetchUnpublished(ctx, r.batchSize)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}

		logging.Debug(ctx, r.logger, "Processing outbox events", zap.Int("count", len(batch)))

		for _, e := range batch {
			value, err := json.Marshal(envelope{
				EventID:       e.ID,
				EventType:     e.EventType,
				AggregateType: e.AggregateType,
				AggregateID:   e.AggregateID,
				OccurredAt:    e.CreatedAt,
				Payload:       e.Payload,
			})
			if err == nil {
				err = r.producer.Produce(ctx, e.Topic, e.AggregateID, value)
			}
			if err != nil {
				r.count("failed")
				logging.Error(ctx, r.logger, "Outbox event publish failed", zap.Int64("id", e.ID), zap.Error(err))
				if dbErr := r.outbox.MarkFailed(ctx, e.ID, err.Error()); dbErr != nil {
					return dbErr
				}
				continue
			}

			if err := r.outbox.MarkPublished(ctx, e.ID); err != nil {
				return err
			}
			r.count("published")
		}
		return nil
	})
}

func (r *Relay) count(result string) {
	if r.metrics != nil {
		r.metrics.OutboxPublished.WithLabelValues(result).Inc()
	}
}
