package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
)

const deliveryColumns = `id, order_id, address, courier, status, created_at, updated_at`

type pgDeliveries struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ DeliveryRepository = (*pgDeliveries)(nil)

func (r *pgDeliveries) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Delivery, error) {
	ctx, span := r.tracer.Start(ctx, "DeliveryRepository.GetByOrderID")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID.String()))

	query := `SELECT ` + deliveryColumns + ` FROM deliveries WHERE order_id = $1`
	d, err := scanDelivery(r.db.q(ctx).QueryRow(ctx, query, orderID))
	if err != nil {
		return nil, mapError(span, err)
	}
	return d, nil
}

// GetOrCreate опирается на UNIQUE(order_id): конкурентная вставка ждёт первую и уходит в DO NOTHING
func (r *pgDeliveries) GetOrCreate(ctx context.Context, d *domain.Delivery) (*domain.Delivery, bool, error) {
	ctx, span := r.tracer.Start(ctx, "DeliveryRepository.GetOrCreate")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", d.OrderID.String()))

	query := `
		INSERT INTO deliveries (id, order_id, address, courier, status)
		SELECT $1, $2, $3, $4, $5
		WHERE EXISTS (SELECT 1 FROM orders WHERE id = $2)
		ON CONFLICT (order_id) DO NOTHING
		RETURNING ` + deliveryColumns

	created, err := scanDelivery(r.db.q(ctx).QueryRow(ctx, query, uuid.New(), d.OrderID, d.Address, d.Courier, d.Status))
	if err == nil {
		span.SetAttributes(attribute.Bool("created", true))
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert delivery: %w", mapError(span, err))
	}

	existing, err := scanDelivery(r.db.q(ctx).QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, d.OrderID))
	if err != nil {
		// строки нет и после вставки, значит нет самого заказа
		return nil, false, mapError(span, err)
	}
	return existing, false, nil
}

func (r *pgDeliveries) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.DeliveryStatus) (*domain.Delivery, error) {
	ctx, span := r.tracer.Start(ctx, "DeliveryRepository.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("status", string(status)),
	)

	query := `
		UPDATE deliveries
		SET status = $1, updated_at = NOW()
		WHERE order_id = $2
		RETURNING ` + deliveryColumns
	d, err := scanDelivery(r.db.q(ctx).QueryRow(ctx, query, status, orderID))
	if err != nil {
		return nil, mapError(span, err)
	}
	return d, nil
}

func (r *pgDeliveries) UpdateCourier(ctx context.Context, orderID uuid.UUID, courier string) (*domain.Delivery, error) {
	ctx, span := r.tracer.Start(ctx, "DeliveryRepository.UpdateCourier")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("courier", courier),
	)

	query := `
		UPDATE deliveries
		SET courier = $1, updated_at = NOW()
		WHERE order_id = $2
		RETURNING ` + deliveryColumns
	d, err := scanDelivery(r.db.q(ctx).QueryRow(ctx, query, courier, orderID))
	if err != nil {
		return nil, mapError(span, err)
	}
	return d, nil
}

func (r *pgDeliveries) List(ctx context.Context) ([]domain.DeliveryView, error) {
	ctx, span := r.tracer.Start(ctx, "DeliveryRepository.List")
	defer span.End()

	query := `
		SELECT d.id, d.order_id, d.address, d.courier, d.status, d.created_at, d.updated_at,
			o.user_id, o.total_amount, o.status, COALESCE(u.name, ''), COALESCE(u.email, '')
		FROM deliveries d
		JOIN orders o ON o.id = d.order_id
		LEFT JOIN users u ON u.id = o.user_id
		ORDER BY d.created_at DESC
	`
	rows, err := r.db.q(ctx).Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", mapError(span, err))
	}
	defer rows.Close()

	out := make([]domain.DeliveryView, 0)
	for rows.Next() {
		var v domain.DeliveryView
		if err := rows.Scan(
			&v.ID, &v.OrderID, &v.Address, &v.Courier, &v.Status, &v.CreatedAt, &v.UpdatedAt,
			&v.UserID, &v.OrderTotal, &v.OrderStatus, &v.CustomerName, &v.CustomerEmail,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", mapError(span, err))
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *pgDeliveries) Couriers(ctx context.Context) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "DeliveryRepository.Couriers")
	defer span.End()

	rows, err := r.db.q(ctx).Query(ctx, `SELECT DISTINCT courier FROM deliveries WHERE courier <> '' ORDER BY courier`)
	if err != nil {
		return nil, mapError(span, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, mapError(span, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanDelivery(row pgx.Row) (*domain.Delivery, error) {
	var d domain.Delivery
	if err := row.Scan(&d.ID, &d.OrderID, &d.Address, &d.Courier, &d.Status, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
