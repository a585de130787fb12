package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	AggregateOrder    = "order"
	AggregateDelivery = "delivery"

	EventOrderPlaced           = "order.placed"
	EventPaymentVerified       = "payment.verified"
	EventDeliveryStatusChanged = "delivery.status_changed"
	EventCourierAssigned       = "delivery.courier_assigned"
)

// OutboxEvent событие, записанное в той же транзакции, что и изменение
type OutboxEvent struct {
	ID            int64           `json:"id"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Topic         string          `json:"topic"`
	CreatedAt     time.Time       `json:"created_at"`
	PublishedAt   *time.Time      `json:"published_at,omitempty"`
	Attempts      int             `json:"attempts"`
	LastError     *string         `json:"last_error,omitempty"`
}

type OrderPlacedEvent struct {
	OrderID       uuid.UUID       `json:"order_id"`
	UserID        uuid.UUID       `json:"user_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	PaymentMethod string          `json:"payment_method"`
	Reference     string          `json:"reference,omitempty"`
}

type PaymentVerifiedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	Reference  string    `json:"reference"`
	DeliveryID uuid.UUID `json:"delivery_id"`
}

type DeliveryStatusChangedEvent struct {
	OrderID    uuid.UUID      `json:"order_id"`
	DeliveryID uuid.UUID      `json:"delivery_id"`
	Status     DeliveryStatus `json:"status"`
}

type CourierAssignedEvent struct {
	OrderID    uuid.UUID `json:"order_id"`
	DeliveryID uuid.UUID `json:"delivery_id"`
	Courier    string    `json:"courier"`
}
