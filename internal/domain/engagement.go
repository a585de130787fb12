package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	MinRating        = 1
	MaxRating        = 5
	MaxCommentLength = 1000
)

// Review отзыв покупателя о товаре; один на пару (товар, пользователь)
type Review struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"product_id"`
	UserID    uuid.UUID `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// WishlistItem позиция списка желаний вместе с данными товара
type WishlistItem struct {
	ID        uuid.UUID       `json:"id"`
	UserID    uuid.UUID       `json:"user_id"`
	UserName  string          `json:"user_name,omitempty"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

type DiscountType string

const (
	DiscountPercentage DiscountType = "percentage"
	DiscountFixed      DiscountType = "fixed"
)

func (t DiscountType) Valid() bool {
	return t == DiscountPercentage || t == DiscountFixed
}

// Promotion промокод. UsageLimit nil означает без ограничения.
type Promotion struct {
	ID            uuid.UUID       `json:"id"`
	Code          string          `json:"code"`
	Description   string          `json:"description"`
	DiscountType  DiscountType    `json:"discount_type"`
	DiscountValue decimal.Decimal `json:"discount_value"`
	StartsAt      time.Time       `json:"starts_at"`
	EndsAt        time.Time       `json:"ends_at"`
	Active        bool            `json:"active"`
	UsageLimit    *int64          `json:"usage_limit,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// RedeemableAt код активен, окно действия открыто и лимит не исчерпан
func (p Promotion) RedeemableAt(t time.Time) bool {
	if !p.Active || t.Before(p.StartsAt) || !t.Before(p.EndsAt) {
		return false
	}
	return p.UsageLimit == nil || *p.UsageLimit > 0
}

// Discount скидка для суммы заказа, не больше самой суммы
func (p Promotion) Discount(total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}
	var d decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		d = total.Mul(p.DiscountValue).Div(decimal.NewFromInt(100)).Round(2)
	case DiscountFixed:
		d = p.DiscountValue
	}
	if d.GreaterThan(total) {
		return total
	}
	return d
}
