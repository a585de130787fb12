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

const reviewSelect = `
	SELECT r.id, r.product_id, r.user_id, COALESCE(u.name, ''), r.rating, r.comment, r.created_at, r.updated_at
	FROM reviews r
	LEFT JOIN users u ON u.id = r.user_id`

type pgReviews struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ ReviewRepository = (*pgReviews)(nil)

func (r *pgReviews) Create(ctx context.Context, rev *domain.Review) error {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.Create")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", rev.ProductID.String()))

	rev.ID = uuid.New()
	query := `
		INSERT INTO reviews (id, product_id, user_id, rating, comment)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query, rev.ID, rev.ProductID, rev.UserID, rev.Rating, rev.Comment).
		Scan(&rev.CreatedAt, &rev.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert review: %w", mapError(span, err))
	}
	return nil
}

func (r *pgReviews) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.GetByID")
	defer span.End()

	rev, err := scanReview(r.db.q(ctx).QueryRow(ctx, reviewSelect+` WHERE r.id = $1`, id))
	if err != nil {
		return nil, mapError(span, err)
	}
	return rev, nil
}

func (r *pgReviews) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Review, error) {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.ListByProduct")
	defer span.End()

	rows, err := r.db.q(ctx).Query(ctx, reviewSelect+` WHERE r.product_id = $1 ORDER BY r.created_at DESC`, productID)
	if err != nil {
		return nil, mapError(span, err)
	}
	defer rows.Close()

	out := make([]domain.Review, 0)
	for rows.Next() {
		rev, err := scanReview(rows)
		if err != nil {
			return nil, mapError(span, err)
		}
		out = append(out, *rev)
	}
	return out, rows.Err()
}

func (r *pgReviews) Update(ctx context.Context, rev *domain.Review) error {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.Update")
	defer span.End()

	query := `
		WITH upd AS (
			UPDATE reviews SET rating = $1, comment = $2, updated_at = NOW()
			WHERE id = $3
			RETURNING *
		)
		SELECT r.id, r.product_id, r.user_id, COALESCE(u.name, ''), r.rating, r.comment, r.created_at, r.updated_at
		FROM upd r
		LEFT JOIN users u ON u.id = r.user_id
	`
	updated, err := scanReview(r.db.q(ctx).QueryRow(ctx, query, rev.Rating, rev.Comment, rev.ID))
	if err != nil {
		return mapError(span, err)
	}
	*rev = *updated
	return nil
}

func (r *pgReviews) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "ReviewRepository.Delete")
	defer span.End()

	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM reviews WHERE id = $1`, id)
	if err != nil {
		return mapError(span, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanReview(row pgx.Row) (*domain.Review, error) {
	var r domain.Review
	if err := row.Scan(&r.ID, &r.ProductID, &r.UserID, &r.UserName, &r.Rating, &r.Comment, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

type pgWishlists struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ WishlistRepository = (*pgWishlists)(nil)

const wishlistProjection = `w.id, w.user_id, COALESCE(u.name, ''), w.product_id, COALESCE(p.name, ''), COALESCE(p.price, 0), w.created_at`

// Add вставка и выборка товара одним запросом; пустой результат означает, что позиция уже есть
func (r *pgWishlists) Add(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	ctx, span := r.tracer.Start(ctx, "WishlistRepository.Add")
	defer span.End()
	span.SetAttributes(attribute.String("product_id", productID.String()))

	query := `
		WITH w AS (
			INSERT INTO wishlists (id, user_id, product_id)
			VALUES ($1, $2, $3)
			ON CONFLICT (user_id, product_id) DO NOTHING
			RETURNING id, user_id, product_id, created_at
		)
		SELECT ` + wishlistProjection + `
		FROM w
		JOIN products p ON p.id = w.product_id
		LEFT JOIN users u ON u.id = w.user_id
	`
	item, err := scanWishlistItem(r.db.q(ctx).QueryRow(ctx, query, uuid.New(), userID, productID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDuplicate
	}
	if err != nil {
		return nil, fmt.Errorf("insert wishlist item: %w", mapError(span, err))
	}
	return item, nil
}

func (r *pgWishlists) Remove(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	ctx, span := r.tracer.Start(ctx, "WishlistRepository.Remove")
	defer span.End()

	query := `
		WITH w AS (
			DELETE FROM wishlists
			WHERE user_id = $1 AND product_id = $2
			RETURNING id, user_id, product_id, created_at
		)
		SELECT ` + wishlistProjection + `
		FROM w
		LEFT JOIN products p ON p.id = w.product_id
		LEFT JOIN users u ON u.id = w.user_id
	`
	item, err := scanWishlistItem(r.db.q(ctx).QueryRow(ctx, query, userID, productID))
	if err != nil {
		return nil, mapError(span, err)
	}
	return item, nil
}

func (r *pgWishlists) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WishlistItem, error) {
	return r.list(ctx, "WishlistRepository.ListByUser", ` WHERE w.user_id = $1`, userID)
}

func (r *pgWishlists) List(ctx context.Context) ([]domain.WishlistItem, error) {
	return r.list(ctx, "WishlistRepository.List", "")
}

func (r *pgWishlists) list(ctx context.Context, spanName, where string, args ...any) ([]domain.WishlistItem, error) {
	ctx, span := r.tracer.Start(ctx, spanName)
	defer span.End()

	query := `
		SELECT ` + wishlistProjection + `
		FROM wishlists w
		JOIN products p ON p.id = w.product_id
		LEFT JOIN users u ON u.id = w.user_id` + where + `
		ORDER BY w.created_at DESC`
	rows, err := r.db.q(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(span, err)
	}
	defer rows.Close()

	out := make([]domain.WishlistItem, 0)
	for rows.Next() {
		item, err := scanWishlistItem(rows)
		if err != nil {
			return nil, mapError(span, err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func scanWishlistItem(row pgx.Row) (*domain.WishlistItem, error) {
	var w domain.WishlistItem
	if err := row.Scan(&w.ID, &w.UserID, &w.UserName, &w.ProductID, &w.Name, &w.Price, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

const promotionColumns = `id, code, description, discount_type, discount_value, starts_at, ends_at, active, usage_limit, created_at, updated_at`

type pgPromotions struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ PromotionRepository = (*pgPromotions)(nil)

func (r *pgPromotions) Create(ctx context.Context, p *domain.Promotion) error {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.Create")
	defer span.End()
	span.SetAttributes(attribute.String("code", p.Code))

	p.ID = uuid.New()
	query := `
		INSERT INTO promotions (id, code, description, discount_type, discount_value, starts_at, ends_at, active, usage_limit)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query,
		p.ID, p.Code, p.Description, string(p.DiscountType), p.DiscountValue, p.StartsAt, p.EndsAt, p.Active, p.UsageLimit,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert promotion: %w", mapError(span, err))
	}
	return nil
}

func (r *pgPromotions) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.GetByID")
	defer span.End()

	p, err := scanPromotion(r.db.q(ctx).QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(span, err)
	}
	return p, nil
}

func (r *pgPromotions) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.GetByCode")
	defer span.End()

	p, err := scanPromotion(r.db.q(ctx).QueryRow(ctx, `SELECT `+promotionColumns+` FROM promotions WHERE code = UPPER($1)`, code))
	if err != nil {
		return nil, mapError(span, err)
	}
	return p, nil
}

func (r *pgPromotions) Update(ctx context.Context, p *domain.Promotion) error {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.Update")
	defer span.End()
	span.SetAttributes(attribute.String("promotion_id", p.ID.String()))

	query := `
		UPDATE promotions
		SET code = $1, description = $2, discount_type = $3, discount_value = $4,
		    starts_at = $5, ends_at = $6, active = $7, usage_limit = $8, updated_at = NOW()
		WHERE id = $9
		RETURNING ` + promotionColumns
	updated, err := scanPromotion(r.db.q(ctx).QueryRow(ctx, query,
		p.Code, p.Description, string(p.DiscountType), p.DiscountValue, p.StartsAt, p.EndsAt, p.Active, p.UsageLimit, p.ID,
	))
	if err != nil {
		return mapError(span, err)
	}
	*p = *updated
	return nil
}

func (r *pgPromotions) Delete(ctx context.Context, id uuid.UUID) error {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.Delete")
	defer span.End()

	tag, err := r.db.q(ctx).Exec(ctx, `DELETE FROM promotions WHERE id = $1`, id)
	if err != nil {
		return mapError(span, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *pgPromotions) List(ctx context.Context) ([]domain.Promotion, error) {
	ctx, span := r.tracer.Start(ctx, "PromotionRepository.List")
	defer span.End()

	rows, err := r.db.q(ctx).Query(ctx, `SELECT `+promotionColumns+` FROM promotions ORDER BY created_at DESC`)
	if err != nil {
		return nil, mapError(span, err)
	}
	defer rows.Close()

	out := make([]domain.Promotion, 0)
	for rows.Next() {
		p, err := scanPromotion(rows)
		if err != nil {
			return nil, mapError(span, err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPromotion(row pgx.Row) (*domain.Promotion, error) {
	var (
		p            domain.Promotion
		discountType string
	)
	err := row.Scan(&p.ID, &p.Code, &p.Description, &discountType, &p.DiscountValue,
		&p.StartsAt, &p.EndsAt, &p.Active, &p.UsageLimit, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	p.DiscountType = domain.DiscountType(discountType)
	return &p, nil
}
