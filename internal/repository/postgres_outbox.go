package repository

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
)

type pgOutbox struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ OutboxRepository = (*pgOutbox)(nil)

func (r *pgOutbox) Save(ctx context.Context, e *domain.OutboxEvent) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.Save")
	defer span.End()

	span.SetAttributes(
		attribute.String("aggregate_id", e.AggregateID),
		attribute.String("aggregate_type", e.AggregateType),
		attribute.String("event_type", e.EventType),
	)

	query := `
		INSERT INTO outbox (aggregate_type, aggregate_id, event_type, payload, topic)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query, e.AggregateType, e.AggregateID, e.EventType, []byte(e.Payload), e.Topic).
		Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		return fmt.Errorf("save outbox event: %w", mapError(span, err))
	}
	return nil
}

// FetchUnpublished должен вызываться внутри транзакции: строки остаются заблокированными до коммита
func (r *pgOutbox) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.FetchUnpublished")
	defer span.End()
	span.SetAttributes(attribute.Int("batch_size", limit))

	query := `
		SELECT id, aggregate_type, aggregate_id, event_type, payload, topic, created_at, attempts, last_error
		FROM outbox
		WHERE published_at IS NULL AND attempts < $1
		ORDER BY created_at ASC
		LIMIT $2
		FOR UPDATE SKIP LOCKED
	`
	rows, err := r.db.q(ctx).Query(ctx, query, maxOutboxAttempts, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query unpublished events: %w", mapError(span, err))
	}
	defer rows.Close()

	out := make([]domain.OutboxEvent, 0)
	for rows.Next() {
		var (
			e       domain.OutboxEvent
			payload []byte
		)
		if err := rows.Scan(&e.ID, &e.AggregateType, &e.AggregateID, &e.EventType, &payload, &e.Topic, &e.CreatedAt, &e.Attempts, &e.LastError); err != nil {
			return nil, fmt.Errorf("error scanning event: %w", mapError(span, err))
		}
		e.Payload = payload
		out = append(out, e)
	}
	span.SetAttributes(attribute.Int("result_count", len(out)))
	return out, rows.Err()
}

func (r *pgOutbox) MarkPublished(ctx context.Context, id int64) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkPublished")
	defer span.End()
	span.SetAttributes(attribute.Int64("event_id", id))

	query := `
		UPDATE outbox
		SET published_at = NOW(), last_error = NULL
		WHERE id = $1
	`
	if _, err := r.db.q(ctx).Exec(ctx, query, id); err != nil {
		return mapError(span, err)
	}
	return nil
}

func (r *pgOutbox) MarkFailed(ctx context.Context, id int64, reason string) error {
	ctx, span := r.tracer.Start(ctx, "OutboxRepository.MarkFailed")
	defer span.End()
	span.SetAttributes(
		attribute.Int64("event_id", id),
		attribute.String("outbox.error_message", reason),
	)

	query := `
		UPDATE outbox
		SET last_error = $1, attempts = attempts + 1
		WHERE id = $2
	`
	if _, err := r.db.q(ctx).Exec(ctx, query, reason, id); err != nil {
		return mapError(span, err)
	}
	return nil
}
