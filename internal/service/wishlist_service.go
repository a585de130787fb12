package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

type WishlistService struct {
	wishlists repository.WishlistRepository
	products  repository.ProductRepository
	logger    *zap.Logger
}

func NewWishlistService(repos repository.Repositories, logger *zap.Logger) *WishlistService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WishlistService{wishlists: repos.Wishlists, products: repos.Products, logger: logger}
}

func (s *WishlistService) Add(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	if productID == uuid.Nil {
		return nil, invalidField("productId", "is required")
	}
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		return nil, err
	}
	item, err := s.wishlists.Add(ctx, userID, productID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: product already in wishlist", ErrConflict)
		}
		return nil, err
	}
	logging.Info(ctx, s.logger, "Product added to wishlist", zap.String("user_id", userID.String()), zap.String("product_id", productID.String()))
	return item, nil
}

// Remove ErrNotFound, если товара нет в списке
func (s *WishlistService) Remove(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	if productID == uuid.Nil {
		return nil, invalidField("productId", "is required")
	}
	item, err := s.wishlists.Remove(ctx, userID, productID)
	if err != nil {
		return nil, err
	}
	logging.Info(ctx, s.logger, "Product removed from wishlist", zap.String("user_id", userID.String()), zap.String("product_id", productID.String()))
	return item, nil
}

func (s *WishlistService) List(ctx context.Context, userID uuid.UUID) ([]domain.WishlistItem, error) {
	return s.wishlists.ListByUser(ctx, userID)
}

func (s *WishlistService) ListAll(ctx context.Context) ([]domain.WishlistItem, error) {
	return s.wishlists.List(ctx)
}
