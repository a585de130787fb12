package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Начальные статусы заказа. Дальше статус приходит из доставки и не ограничен.
const (
	OrderStatusPending         = "pending"
	OrderStatusAwaitingPayment = "awaiting_payment"
)

// OrderItem позиция в заказе, цена зафиксирована на момент покупки
type OrderItem struct {
	ID        uuid.UUID       `json:"id"`
	OrderID   uuid.UUID       `json:"order_id"`
	ProductID string          `json:"product_id"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// Order сущность заказа
type Order struct {
	ID                uuid.UUID       `json:"id"`
	UserID            uuid.UUID       `json:"user_id"`
	Items             []OrderItem     `json:"items"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaymentMethod     string          `json:"payment_method"`
	PaymentChannel    string          `json:"payment_channel"`
	PaymentReference  *string         `json:"payment_reference"`
	Address           string          `json:"address"`
	IsPremium         bool            `json:"is_premium"`
	EstimatedDelivery *time.Time      `json:"estimated_delivery,omitempty"`
	Status            string          `json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Reference возвращает платёжную ссылку или пустую строку для COD
func (o Order) Reference() string {
	if o.PaymentReference == nil {
		return ""
	}
	return *o.PaymentReference
}

// Clone копирует заказ вместе с позициями
func (o Order) Clone() Order {
	cp := o
	if o.Items != nil {
		cp.Items = make([]OrderItem, len(o.Items))
		copy(cp.Items, o.Items)
	}
	if o.PaymentReference != nil {
		ref := *o.PaymentReference
		cp.PaymentReference = &ref
	}
	if o.EstimatedDelivery != nil {
		eta := *o.EstimatedDelivery
		cp.EstimatedDelivery = &eta
	}
	return cp
}
