package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
)

const orderColumns = `id, user_id, total_amount, payment_method, payment_channel, payment_reference,
	address, is_premium, estimated_delivery, status, created_at, updated_at`

type pgOrders struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ OrderRepository = (*pgOrders)(nil)

// Create вставляет заказ и позиции; вне внешней транзакции открывает свою
func (r *pgOrders) Create(ctx context.Context, o *domain.Order) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Create")
	defer span.End()

	o.ID = uuid.New()
	span.SetAttributes(
		attribute.String("order_id", o.ID.String()),
		attribute.Int("items", len(o.Items)),
	)

	return NewPostgresTx(r.db.pool, r.db.logger).WithTransaction(ctx, func(ctx context.Context) error {
		query := `
			INSERT INTO orders (id, user_id, total_amount, payment_method, payment_channel, payment_reference,
				address, is_premium, estimated_delivery, status)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
			RETURNING created_at, updated_at
		`
		err := r.db.q(ctx).QueryRow(ctx, query,
			o.ID, o.UserID, o.TotalAmount, o.PaymentMethod, o.PaymentChannel, o.PaymentReference,
			o.Address, o.IsPremium, o.EstimatedDelivery, o.Status,
		).Scan(&o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert order: %w", mapError(span, err))
		}

		itemQuery := `
			INSERT INTO order_items (id, order_id, position, product_id, quantity, price)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		for i := range o.Items {
			o.Items[i].ID = uuid.New()
			o.Items[i].OrderID = o.ID
			it := o.Items[i]
			if _, err := r.db.q(ctx).Exec(ctx, itemQuery, it.ID, o.ID, i, it.ProductID, it.Quantity, it.Price); err != nil {
				return fmt.Errorf("insert order item %d: %w", i, mapError(span, err))
			}
		}
		return nil
	})
}

func (r *pgOrders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByID")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", id.String()))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.getOne(ctx, span, query, id)
}

func (r *pgOrders) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.GetByPaymentReference")
	defer span.End()
	span.SetAttributes(attribute.String("payment_reference", reference))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE payment_reference = $1`
	return r.getOne(ctx, span, query, reference)
}

func (r *pgOrders) getOne(ctx context.Context, span trace.Span, query string, arg any) (*domain.Order, error) {
	o, err := scanOrder(r.db.q(ctx).QueryRow(ctx, query, arg))
	if err != nil {
		return nil, mapError(span, err)
	}
	orders := []domain.Order{*o}
	if err := r.attachItems(ctx, span, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

func (r *pgOrders) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.ListByUser")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", userID.String()))

	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`
	return r.list(ctx, span, query, userID)
}

func (r *pgOrders) List(ctx context.Context) ([]domain.Order, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	query := `SELECT ` + orderColumns + ` FROM orders ORDER BY created_at DESC`
	return r.list(ctx, span, query)
}

func (r *pgOrders) list(ctx context.Context, span trace.Span, query string, args ...any) ([]domain.Order, error) {
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", mapError(span, err))
	}
	defer rows.Close()

	orders := make([]domain.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", mapError(span, err))
		}
		orders = append(orders, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError(span, err)
	}

	if err := r.attachItems(ctx, span, orders); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("result_count", len(orders)))
	return orders, nil
}

// attachItems одним запросом подтягивает позиции для всех заказов
func (r *pgOrders) attachItems(ctx context.Context, span trace.Span, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]string, len(orders))
	index := make(map[uuid.UUID]int, len(orders))
	for i, o := range orders {
		ids[i] = o.ID.String()
		index[o.ID] = i
		orders[i].Items = make([]domain.OrderItem, 0)
	}

	query := `
		SELECT id, order_id, product_id, quantity, price
		FROM order_items
		WHERE order_id = ANY($1::uuid[])
		ORDER BY order_id, position
	`
	rows, err := r.db.q(ctx).Query(ctx, query, ids)
	if err != nil {
		return fmt.Errorf("query order items: %w", mapError(span, err))
	}
	defer rows.Close()

	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price); err != nil {
			return fmt.Errorf("scan order item: %w", mapError(span, err))
		}
		i := index[it.OrderID]
		orders[i].Items = append(orders[i].Items, it)
	}
	return rows.Err()
}

func (r *pgOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", id.String()),
		attribute.String("status", status),
	)

	query := `
		UPDATE orders
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	tag, err := r.db.q(ctx).Exec(ctx, query, status, id)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", mapError(span, err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgOrders) Count(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.Count")
	defer span.End()

	var n int64
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&n); err != nil {
		return 0, mapError(span, err)
	}
	return n, nil
}

func (r *pgOrders) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	ctx, span := r.tracer.Start(ctx, "OrderRepository.TotalSales")
	defer span.End()

	query := `
		SELECT COALESCE(SUM(total_amount), 0)
		FROM orders
		WHERE status NOT IN ('cancelled', 'failed', 'refunded', 'returned')
	`
	var total decimal.Decimal
	if err := r.db.q(ctx).QueryRow(ctx, query).Scan(&total); err != nil {
		return decimal.Zero, mapError(span, err)
	}
	return total, nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var o domain.Order
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.TotalAmount,
		&o.PaymentMethod,
		&o.PaymentChannel,
		&o.PaymentReference,
		&o.Address,
		&o.IsPremium,
		&o.EstimatedDelivery,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}
