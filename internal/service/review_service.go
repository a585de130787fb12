package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

// ReviewService отзывы о товарах. Изменять и удалять отзыв может автор или администратор.
type ReviewService struct {
	reviews  repository.ReviewRepository
	products repository.ProductRepository
	logger   *zap.Logger
}

func NewReviewService(repos repository.Repositories, logger *zap.Logger) *ReviewService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReviewService{reviews: repos.Reviews, products: repos.Products, logger: logger}
}

// ReviewPatch nil поле не меняется
type ReviewPatch struct {
	Rating  *int
	Comment *string
}

func validateReview(verr *ValidationError, rating *int, comment *string) {
	if rating != nil && (*rating < domain.MinRating || *rating > domain.MaxRating) {
		verr.add("rating", fmt.Sprintf("must be between %d and %d", domain.MinRating, domain.MaxRating))
	}
	if comment != nil {
		n := utf8.RuneCountInString(*comment)
		if n == 0 {
			verr.add("comment", "is required")
		} else if n > domain.MaxCommentLength {
			verr.add("comment", fmt.Sprintf("must be at most %d characters", domain.MaxCommentLength))
		}
	}
}

func (s *ReviewService) Add(ctx context.Context, actor Actor, productID uuid.UUID, rating int, comment string) (*domain.Review, error) {
	comment = sanitizeText(comment)

	var verr ValidationError
	if productID == uuid.Nil {
		verr.add("productId", "is required")
	}
	validateReview(&verr, &rating, &comment)
	if err := verr.err(); err != nil {
		return nil, err
	}

	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}

	r := domain.Review{ProductID: productID, UserID: actor.UserID, Rating: rating, Comment: comment}
	if err := s.reviews.Create(ctx, &r); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: product already reviewed", ErrConflict)
		}
		return nil, err
	}
	logging.Info(ctx, s.logger, "Review created",
		zap.String("review_id", r.ID.String()),
		zap.String("product_id", productID.String()),
		zap.String("user_id", actor.UserID.String()),
	)
	return &r, nil
}

func (s *ReviewService) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Review, error) {
	if productID == uuid.Nil {
		return nil, invalidField("productId", "is required")
	}
	return s.reviews.ListByProduct(ctx, productID)
}

func (s *ReviewService) Update(ctx context.Context, actor Actor, id uuid.UUID, patch ReviewPatch) (*domain.Review, error) {
	if patch.Comment != nil {
		c := sanitizeText(*patch.Comment)
		patch.Comment = &c
	}
	var verr ValidationError
	if patch.Rating == nil && patch.Comment == nil {
		verr.add("rating", "rating or comment is required")
	}
	validateReview(&verr, patch.Rating, patch.Comment)
	if err := verr.err(); err != nil {
		return nil, err
	}

	r, err := s.owned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if patch.Rating != nil {
		r.Rating = *patch.Rating
	}
	if patch.Comment != nil {
		r.Comment = *patch.Comment
	}
	if err := s.reviews.Update(ctx, r); err != nil {
		return nil, err
	}
	logging.Info(ctx, s.logger, "Review updated", zap.String("review_id", id.String()), zap.String("user_id", actor.UserID.String()))
	return r, nil
}

func (s *ReviewService) Delete(ctx context.Context, actor Actor, id uuid.UUID) error {
	if _, err := s.owned(ctx, actor, id); err != nil {
		return err
	}
	if err := s.reviews.Delete(ctx, id); err != nil {
		return err
	}
	logging.Info(ctx, s.logger, "Review deleted", zap.String("review_id", id.String()), zap.String("user_id", actor.UserID.String()))
	return nil
}

func (s *ReviewService) owned(ctx context.Context, actor Actor, id uuid.UUID) (*domain.Review, error) {
	r, err := s.reviews.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return r, nil
}
