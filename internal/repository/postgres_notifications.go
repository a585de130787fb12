package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
)

const notificationColumns = `id, target_user_id, title, message, type, is_read, created_at, updated_at`

type pgNotifications struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ NotificationRepository = (*pgNotifications)(nil)

func (r *pgNotifications) Create(ctx context.Context, n *domain.Notification) error {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.Create")
	defer span.End()
	span.SetAttributes(
		attribute.String("user_id", n.UserID.String()),
		attribute.String("type", string(n.Type)),
	)

	n.ID = uuid.New()
	query := `
		INSERT INTO notifications (id, target_user_id, title, message, type, is_read)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query, n.ID, n.UserID, n.Title, n.Message, n.Type, n.IsRead).
		Scan(&n.CreatedAt, &n.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert notification: %w", mapError(span, err))
	}
	return nil
}

func (r *pgNotifications) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.GetByID")
	defer span.End()

	n, err := scanNotification(r.db.q(ctx).QueryRow(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(span, err)
	}
	return n, nil
}

func (r *pgNotifications) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.ListByUser")
	defer span.End()

	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE target_user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, span, query, userID)
}

func (r *pgNotifications) List(ctx context.Context) ([]domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.List")
	defer span.End()

	return r.list(ctx, span, `SELECT `+notificationColumns+` FROM notifications ORDER BY created_at DESC`)
}

func (r *pgNotifications) list(ctx context.Context, span trace.Span, query string, args ...any) ([]domain.Notification, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(span, err)
	}
	defer rows.Close()

	out := make([]domain.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, mapError(span, err)
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

func (r *pgNotifications) MarkRead(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	ctx, span := r.tracer.Start(ctx, "NotificationRepository.MarkRead")
	defer span.End()

	query := `
		UPDATE notifications
		SET is_read = TRUE, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + notificationColumns
	n, err := scanNotification(r.db.q(ctx).QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapError(span, err)
	}
	return n, nil
}

func scanNotification(row pgx.Row) (*domain.Notification, error) {
	var n domain.Notification
	if err := row.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.IsRead, &n.CreatedAt, &n.UpdatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}
