package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/cache"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

const productListKey = "products:all"

type cachedCatalog struct {
	next     Catalog
	store    cache.Store
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewCachedCatalog кэширует карточку товара и полный список без фильтров.
// Любая запись сбрасывает затронутые ключи.
func NewCachedCatalog(next Catalog, store cache.Store, logger *zap.Logger) Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &cachedCatalog{
		next:     next,
		store:    store,
		cacheTTL: 10 * time.Minute,
		logger:   logger,
	}
}

func productKey(id uuid.UUID) string {
	return "product:" + id.String()
}

func (s *cachedCatalog) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	created, err := s.next.Create(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productListKey)
	return created, nil
}

func (s *cachedCatalog) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	key := productKey(id)

	var cached domain.Product
	if ok, err := s.store.Get(ctx, key, &cached); err == nil && ok {
		return &cached, nil
	}

	product, err := s.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, key, product, s.cacheTTL); err != nil {
		logging.Debug(ctx, s.logger, "Failed to cache product", zap.String("key", key), zap.Error(err))
	}
	return product, nil
}

func (s *cachedCatalog) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	updated, err := s.next.Update(ctx, p)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, productKey(p.ID), productListKey)
	return updated, nil
}

func (s *cachedCatalog) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.next.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, productKey(id), productListKey)
	return nil
}

func (s *cachedCatalog) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	unfiltered := f.NameSubstring == "" && f.MinPrice == nil && f.MaxPrice == nil
	if !unfiltered {
		return s.next.List(ctx, f)
	}

	var cached []domain.Product
	if ok, err := s.store.Get(ctx, productListKey, &cached); err == nil && ok {
		return cached, nil
	}

	products, err := s.next.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, productListKey, products, s.cacheTTL); err != nil {
		logging.Debug(ctx, s.logger, "Failed to cache product list", zap.Error(err))
	}
	return products, nil
}

func (s *cachedCatalog) invalidate(ctx context.Context, keys ...string) {
	if err := s.store.Delete(ctx, keys...); err != nil {
		logging.Warn(ctx, s.logger, "Failed to invalidate product cache", zap.Strings("keys", keys), zap.Error(err))
	}
}
