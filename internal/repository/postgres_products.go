package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
)

const productColumns = `id, name, sku, description, price, stock, created_at, updated_at`

type pgProducts struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ ProductRepository = (*pgProducts)(nil)

func (r *pgProducts) Create(ctx context.Context, p *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Create")
	defer span.End()

	p.ID = uuid.New()
	query := `
		INSERT INTO products (id, name, sku, description, price, stock)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query, p.ID, p.Name, p.SKU, p.Description, p.Price, p.Stock).
		Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert product: %w", mapError(span, err))
	}
	return nil
}

func (r *pgProducts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.GetByID")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", id.String()))

	p, err := scanProduct(r.db.q(ctx).QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(span, err)
	}
	return p, nil
}

func (r *pgProducts) Update(ctx context.Context, p *domain.Product) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Update")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", p.ID.String()))

	query := `
		UPDATE products
		SET name = $1, description = $2, price = $3, stock = $4, updated_at = NOW()
		WHERE id = $5
		RETURNING ` + productColumns
	updated, err := scanProduct(r.db.q(ctx).QueryRow(ctx, query, p.Name, p.Description, p.Price, p.Stock, p.ID))
	if err != nil {
		return mapError(span, err)
	}
	*p = *updated
	return nil
}

func (r *pgProducts) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Delete")
	defer span.End()

	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapError(span, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.List")
	defer span.End()

	var (
		conds []string
		args  []any
	)
	if f.NameSubstring != "" {
		args = append(args, "%"+f.NameSubstring+"%")
		conds = append(conds, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		conds = append(conds, fmt.Sprintf("price >= $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		conds = append(conds, fmt.Sprintf("price <= $%d", len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(span, err)
	}
	defer rows.Close()

	out := make([]domain.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, mapError(span, err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (r *pgProducts) Count(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "ProductRepository.Count")
	defer span.End()

	var n int64
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM products`).Scan(&n); err != nil {
		return 0, mapError(span, err)
	}
	return n, nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var p domain.Product
	if err := row.Scan(&p.ID, &p.Name, &p.SKU, &p.Description, &p.Price, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}
