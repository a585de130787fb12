package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

var promoCodePattern = regexp.MustCompile(`^[A-Z0-9_-]{3,32}$`)

// PromotionService управление промокодами и расчёт скидки по коду.
// Коды хранятся в верхнем регистре, поиск без учёта регистра.
type PromotionService struct {
	repo   repository.PromotionRepository
	logger *zap.Logger
	now    func() time.Time
}

func NewPromotionService(repo repository.PromotionRepository, logger *zap.Logger) *PromotionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotionService{repo: repo, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// PromotionPatch частичное обновление промокода
type PromotionPatch struct {
	Code          *string
	Description   *string
	DiscountType  *domain.DiscountType
	DiscountValue *decimal.Decimal
	StartsAt      *time.Time
	EndsAt        *time.Time
	Active        *bool
	UsageLimit    *int64
}

// PromotionQuote результат проверки кода для суммы заказа
type PromotionQuote struct {
	Promotion domain.Promotion `json:"promotion"`
	Discount  decimal.Decimal  `json:"discount"`
	Total     decimal.Decimal  `json:"total"`
}

func normalizePromotion(p *domain.Promotion) {
	p.Code = strings.ToUpper(strings.TrimSpace(p.Code))
	p.Description = sanitizeText(p.Description)
}

func validatePromotion(p domain.Promotion) error {
	var verr ValidationError
	if !promoCodePattern.MatchString(p.Code) {
		verr.add("code", "must be 3-32 characters of A-Z, 0-9, '_' or '-'")
	}
	if !p.DiscountType.Valid() {
		verr.add("discount_type", "must be percentage or fixed")
	}
	if !p.DiscountValue.IsPositive() {
		verr.add("discount_value", "must be positive")
	} else if p.DiscountType == domain.DiscountPercentage && p.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		verr.add("discount_value", "percentage must not exceed 100")
	}
	if p.StartsAt.IsZero() || p.EndsAt.IsZero() {
		verr.add("ends_at", "start and end dates are required")
	} else if !p.EndsAt.After(p.StartsAt) {
		verr.add("ends_at", "must be after starts_at")
	}
	if p.UsageLimit != nil && *p.UsageLimit < 0 {
		verr.add("usage_limit", "must not be negative")
	}
	return verr.err()
}

func (s *PromotionService) Create(ctx context.Context, p domain.Promotion) (*domain.Promotion, error) {
	normalizePromotion(&p)
	if err := validatePromotion(p); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, &p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: promotion code already exists", ErrConflict)
		}
		return nil, err
	}
	logging.Info(ctx, s.logger, "Promotion created", zap.String("promotion_id", p.ID.String()), zap.String("code", p.Code))
	return &p, nil
}

func (s *PromotionService) Update(ctx context.Context, id uuid.UUID, patch PromotionPatch) (*domain.Promotion, error) {
	if id == uuid.Nil {
		return nil, ErrInvalidInput
	}
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if patch.Code != nil {
		p.Code = *patch.Code
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.DiscountType != nil {
		p.DiscountType = *patch.DiscountType
	}
	if patch.DiscountValue != nil {
		p.DiscountValue = *patch.DiscountValue
	}
	if patch.StartsAt != nil {
		p.StartsAt = *patch.StartsAt
	}
	if patch.EndsAt != nil {
		p.EndsAt = *patch.EndsAt
	}
	if patch.Active != nil {
		p.Active = *patch.Active
	}
	if patch.UsageLimit != nil {
		limit := *patch.UsageLimit
		p.UsageLimit = &limit
	}
	normalizePromotion(p)
	if err := validatePromotion(*p); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, p); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, fmt.Errorf("%w: promotion code already exists", ErrConflict)
		}
		return nil, err
	}
	logging.Info(ctx, s.logger, "Promotion updated", zap.String("promotion_id", id.String()))
	return p, nil
}

func (s *PromotionService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	logging.Info(ctx, s.logger, "Promotion deleted", zap.String("promotion_id", id.String()))
	return nil
}

func (s *PromotionService) List(ctx context.Context) ([]domain.Promotion, error) {
	return s.repo.List(ctx)
}

// Validate проверяет код на текущий момент. amount nil: скидка не считается.
// Неизвестный и недействующий код дают одну и ту же ошибку валидации.
func (s *PromotionService) Validate(ctx context.Context, code string, amount *decimal.Decimal) (*PromotionQuote, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, invalidField("code", "is required")
	}
	if amount != nil && amount.IsNegative() {
		return nil, invalidField("amount", "must not be negative")
	}
	p, err := s.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, invalidField("code", "invalid or expired promotion code")
		}
		return nil, err
	}
	if !p.RedeemableAt(s.now()) {
		return nil, invalidField("code", "invalid or expired promotion code")
	}

	q := PromotionQuote{Promotion: *p, Discount: decimal.Zero}
	if amount != nil {
		q.Discount = p.Discount(*amount)
		q.Total = amount.Sub(q.Discount)
	}
	return &q, nil
}
