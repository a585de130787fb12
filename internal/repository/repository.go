package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

var (
	// ErrNotFound возвращается, когда сущность не найдена
	ErrNotFound = errors.New("not found")
	// ErrDuplicate нарушение уникальности (email, sku, device token)
	ErrDuplicate = errors.New("duplicate")
)

// ProductFilter параметры фильтрации списка товаров
type ProductFilter struct {
	NameSubstring string
	MinPrice      *decimal.Decimal
	MaxPrice      *decimal.Decimal
}

// ProductRepository интерфейс репозитория товаров
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	Update(ctx context.Context, p *domain.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, f ProductFilter) ([]domain.Product, error)
	Count(ctx context.Context) (int64, error)
}

// OrderRepository интерфейс репозитория заказов. Create сохраняет заказ вместе с позициями.
type OrderRepository interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error)
	List(ctx context.Context) ([]domain.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) error
	Count(ctx context.Context) (int64, error)
	TotalSales(ctx context.Context) (decimal.Decimal, error)
}

// DeliveryRepository хранит доставки. GetOrCreate должен быть атомарным по order_id.
type DeliveryRepository interface {
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Delivery, error)
	// GetOrCreate вставляет d, если для заказа ещё нет доставки; иначе возвращает существующую.
	// Второе значение true, если запись создана этим вызовом.
	GetOrCreate(ctx context.Context, d *domain.Delivery) (*domain.Delivery, bool, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.DeliveryStatus) (*domain.Delivery, error)
	UpdateCourier(ctx context.Context, orderID uuid.UUID, courier string) (*domain.Delivery, error)
	List(ctx context.Context) ([]domain.DeliveryView, error)
	Couriers(ctx context.Context) ([]string, error)
}

// NotificationRepository уведомления пользователей
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error)
	List(ctx context.Context) ([]domain.Notification, error)
	MarkRead(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
}

// UserRepository учётные записи
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Count(ctx context.Context) (int64, error)
}

// DeviceRepository токены устройств для push
type DeviceRepository interface {
	Register(ctx context.Context, userID uuid.UUID, token string) error
	ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error)
	Deactivate(ctx context.Context, token string) error
}

// ReviewRepository отзывы. Create возвращает ErrDuplicate на второй отзыв того же пользователя о товаре.
type ReviewRepository interface {
	Create(ctx context.Context, r *domain.Review) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error)
	ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Review, error)
	Update(ctx context.Context, r *domain.Review) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// WishlistRepository списки желаний. Add возвращает ErrDuplicate, если товар уже в списке.
type WishlistRepository interface {
	Add(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error)
	Remove(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WishlistItem, error)
	List(ctx context.Context) ([]domain.WishlistItem, error)
}

// PromotionRepository промокоды; код уникален
type PromotionRepository interface {
	Create(ctx context.Context, p *domain.Promotion) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error)
	GetByCode(ctx context.Context, code string) (*domain.Promotion, error)
	Update(ctx context.Context, p *domain.Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.Promotion, error)
}

// OutboxRepository события для публикации в Kafka
type OutboxRepository interface {
	Save(ctx context.Context, e *domain.OutboxEvent) error
	FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, reason string) error
}

// TxManager абстракция транзакции. In-memory берёт глобальную блокировку записи, Postgres кладёт pgx.Tx в контекст.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Repositories набор репозиториев одного хранилища
type Repositories struct {
	Products      ProductRepository
	Orders        OrderRepository
	Deliveries    DeliveryRepository
	Notifications NotificationRepository
	Users         UserRepository
	Devices       DeviceRepository
	Reviews       ReviewRepository
	Wishlists     WishlistRepository
	Promotions    PromotionRepository
	Outbox        OutboxRepository
	Tx            TxManager
	Ping          func(ctx context.Context) error
}

// maxOutboxAttempts после стольких неудач событие больше не выбирается
const maxOutboxAttempts = 10

// helper: case-insensitive contains
func containsIgnoreCase(s, substr string) bool {
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// countsTowardSales отменённые и возвращённые заказы не входят в выручку
func countsTowardSales(status string) bool {
	switch domain.DeliveryStatus(status) {
	case domain.DeliveryCancelled, domain.DeliveryFailed, domain.DeliveryRefunded, domain.DeliveryReturned:
		return false
	}
	return true
}
