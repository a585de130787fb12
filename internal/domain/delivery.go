package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DeliveryStatus статус доставки, только из фиксированного набора
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "pending"
	DeliveryProcessing DeliveryStatus = "processing"
	DeliveryShipped    DeliveryStatus = "shipped"
	DeliveryCompleted  DeliveryStatus = "completed"
	DeliveryCancelled  DeliveryStatus = "cancelled"
	DeliveryFailed     DeliveryStatus = "failed"
	DeliveryReturned   DeliveryStatus = "returned"
	DeliveryRefunded   DeliveryStatus = "refunded"
)

const (
	DefaultCourier     = "Default Courier"
	AddressNotProvided = "No address provided"
)

var deliveryStatuses = []DeliveryStatus{
	DeliveryPending,
	DeliveryProcessing,
	DeliveryShipped,
	DeliveryCompleted,
	DeliveryCancelled,
	DeliveryFailed,
	DeliveryReturned,
	DeliveryRefunded,
}

// DeliveryStatuses возвращает допустимые статусы в каноническом порядке
func DeliveryStatuses() []DeliveryStatus {
	out := make([]DeliveryStatus, len(deliveryStatuses))
	copy(out, deliveryStatuses)
	return out
}

// ParseDeliveryStatus принимает только значения из набора, регистр важен
func ParseDeliveryStatus(s string) (DeliveryStatus, bool) {
	for _, st := range deliveryStatuses {
		if string(st) == s {
			return st, true
		}
	}
	return "", false
}

// Delivery запись о доставке, ровно одна на заказ
type Delivery struct {
	ID        uuid.UUID      `json:"id"`
	OrderID   uuid.UUID      `json:"order_id"`
	Address   string         `json:"address"`
	Courier   string         `json:"courier"`
	Status    DeliveryStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// DeliveryView доставка вместе с данными заказа и покупателя для админки
type DeliveryView struct {
	Delivery
	UserID        uuid.UUID       `json:"user_id"`
	OrderTotal    decimal.Decimal `json:"total_amount"`
	OrderStatus   string          `json:"order_status"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
}
