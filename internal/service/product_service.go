package service

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

// Catalog операции каталога, общие для сервиса и его кэширующей обёртки
type Catalog interface {
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error)
}

// ProductService инкапсулирует бизнес-логику вокруг товаров
type ProductService struct {
	repo repository.ProductRepository
}

var _ Catalog = (*ProductService)(nil)

func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

func validateProduct(p domain.Product, requireSKU bool) error {
	var verr ValidationError
	if strings.TrimSpace(p.Name) == "" {
		verr.add("name", "is required")
	}
	if requireSKU && strings.TrimSpace(p.SKU) == "" {
		verr.add("sku", "is required")
	}
	if p.Price.IsNegative() {
		verr.add("price", "must not be negative")
	}
	if p.Stock < 0 {
		verr.add("stock", "must not be negative")
	}
	return verr.err()
}

func (s *ProductService) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(p, true); err != nil {
		return nil, err
	}
	cp := p
	cp.Name = strings.TrimSpace(cp.Name)
	cp.SKU = strings.TrimSpace(cp.SKU)
	if err := s.repo.Create(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidInput
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ProductService) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if p.ID == uuid.Nil {
		return nil, ErrInvalidInput
	}
	if err := validateProduct(p, false); err != nil {
		return nil, err
	}
	cp := p
	if err := s.repo.Update(ctx, &cp); err != nil {
		return nil, err
	}
	return &cp, nil
}

func (s *ProductService) Delete(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return ErrInvalidInput
	}
	return s.repo.Delete(ctx, id)
}

func (s *ProductService) List(ctx context.Context, f repository.ProductFilter) ([]domain.Product, error) {
	return s.repo.List(ctx, f)
}
