package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/realtime"
	"storefront/internal/repository"
)

// Notifier отправка уведомления пользователю (notify.Dispatcher)
type Notifier interface {
	Send(ctx context.Context, msg notify.Message) (*domain.Notification, error)
}

// TaskRunner запуск побочных эффектов вне запроса (tasks.Queue)
type TaskRunner interface {
	Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) bool
}

// Actor кто выполняет запрос
type Actor struct {
	UserID uuid.UUID
	Role   domain.Role
}

func (a Actor) IsAdmin() bool { return a.Role == domain.RoleAdmin }
func (a Actor) IsStaff() bool { return a.Role == domain.RoleAdmin || a.Role == domain.RoleManager }

type DeliveryDeps struct {
	Repos    repository.Repositories
	Notifier Notifier
	Broker   realtime.Broker
	Tasks    TaskRunner
	Topic    string
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
}

// DeliveryService единственное место, где создаются доставки
type DeliveryService struct {
	orders     repository.OrderRepository
	deliveries repository.DeliveryRepository
	outbox     repository.OutboxRepository
	tx         repository.TxManager
	notifier   Notifier
	broker     realtime.Broker
	tasks      TaskRunner
	topic      string
	metrics    *metrics.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
}

func NewDeliveryService(d DeliveryDeps) *DeliveryService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &DeliveryService{
		orders:     d.Repos.Orders,
		deliveries: d.Repos.Deliveries,
		outbox:     d.Repos.Outbox,
		tx:         d.Repos.Tx,
		notifier:   d.Notifier,
		broker:     d.Broker,
		tasks:      d.Tasks,
		topic:      d.Topic,
		metrics:    d.Metrics,
		logger:     d.Logger,
		tracer:     otel.Tracer("delivery-service"),
	}
}

// GetOrCreate возвращает доставку заказа, создавая её при первом обращении.
// Второе значение true, если запись создана этим вызовом.
func (s *DeliveryService) GetOrCreate(ctx context.Context, orderID uuid.UUID) (*domain.Delivery, bool, error) {
	ctx, span := s.tracer.Start(ctx, "DeliveryService.GetOrCreate")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID.String()))

	var (
		d       *domain.Delivery
		created bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		d, created, err = s.provision(ctx, orderID, "", "")
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, false, err
	}
	return d, created, nil
}

// Create явное создание доставки администратором. Существующая доставка возвращается без изменений.
func (s *DeliveryService) Create(ctx context.Context, orderID uuid.UUID, address, courier string) (*domain.Delivery, bool, error) {
	if orderID == uuid.Nil {
		return nil, false, invalidField("orderId", "is required")
	}

	var (
		d       *domain.Delivery
		created bool
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		var err error
		d, created, err = s.provision(ctx, orderID, strings.TrimSpace(address), strings.TrimSpace(courier))
		return err
	})
	if err != nil {
		return nil, false, err
	}
	return d, created, nil
}

// provision вызывается внутри транзакции
func (s *DeliveryService) provision(ctx context.Context, orderID uuid.UUID, address, courier string) (*domain.Delivery, bool, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, false, fmt.Errorf("load order %s: %w", orderID, err)
	}

	if address == "" {
		address = strings.TrimSpace(order.Address)
	}
	if address == "" {
		address = domain.AddressNotProvided
	}
	if courier == "" {
		courier = domain.DefaultCourier
	}

	d, created, err := s.deliveries.GetOrCreate(ctx, &domain.Delivery{
		OrderID: orderID,
		Address: address,
		Courier: courier,
		Status:  domain.DeliveryPending,
	})
	if err != nil {
		return nil, false, fmt.Errorf("provision delivery for order %s: %w", orderID, err)
	}
	if created {
		logging.Info(ctx, s.logger, "Delivery auto-created",
			zap.String("order_id", orderID.String()),
			zap.String("delivery_id", d.ID.String()),
		)
	}
	return d, created, nil
}

// UpdateStatus меняет статус доставки и копирует его в заказ.
// Недопустимый статус отклоняется до любых записей.
func (s *DeliveryService) UpdateStatus(ctx context.Context, orderID uuid.UUID, status string) (*domain.Delivery, error) {
	st, ok := domain.ParseDeliveryStatus(strings.TrimSpace(status))
	if !ok {
		return nil, invalidField("status", "must be one of "+joinStatuses())
	}

	ctx, span := s.tracer.Start(ctx, "DeliveryService.UpdateStatus")
	defer span.End()
	span.SetAttributes(
		attribute.String("order_id", orderID.String()),
		attribute.String("status", string(st)),
	)

	var (
		updated *domain.Delivery
		userID  uuid.UUID
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, _, err := s.provision(ctx, orderID, "", ""); err != nil {
			return err
		}
		d, err := s.deliveries.UpdateStatus(ctx, orderID, st)
		if err != nil {
			return fmt.Errorf("update delivery status: %w", err)
		}
		if err := s.orders.UpdateStatus(ctx, orderID, string(st)); err != nil {
			return fmt.Errorf("mirror order status: %w", err)
		}
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := events.Record(ctx, s.outbox, s.topic, domain.AggregateDelivery, d.ID.String(),
			domain.EventDeliveryStatusChanged, domain.DeliveryStatusChangedEvent{
				OrderID:    orderID,
				DeliveryID: d.ID,
				Status:     st,
			}); err != nil {
			return err
		}
		updated, userID = d, order.UserID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		logging.Warn(ctx, s.logger, "Failed to update delivery status",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(st)),
			zap.Error(err),
		)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.DeliveryStatusChanges.WithLabelValues(string(st)).Inc()
	}

	payload := map[string]any{
		"orderId":    orderID,
		"deliveryId": updated.ID,
		"status":     st,
		"updatedAt":  updated.UpdatedAt,
	}
	s.publish(ctx, userID, realtime.EventDeliveryStatusUpdate, payload)
	s.notify(ctx, notify.Message{
		UserID:  userID,
		Title:   "Delivery Status Updated",
		Body:    fmt.Sprintf("Your delivery for order #%s is now %s.", orderID, st),
		Channel: domain.NotificationEmail,
	})

	return updated, nil
}

// AssignCourier меняет только курьера; пустое имя отклоняется без записей
func (s *DeliveryService) AssignCourier(ctx context.Context, orderID uuid.UUID, courier string) (*domain.Delivery, error) {
	courier = strings.TrimSpace(courier)
	if courier == "" {
		return nil, invalidField("courier", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "DeliveryService.AssignCourier")
	defer span.End()
	span.SetAttributes(attribute.String("order_id", orderID.String()))

	var (
		updated *domain.Delivery
		userID  uuid.UUID
	)
	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if _, _, err := s.provision(ctx, orderID, "", ""); err != nil {
			return err
		}
		d, err := s.deliveries.UpdateCourier(ctx, orderID, courier)
		if err != nil {
			return fmt.Errorf("update courier: %w", err)
		}
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return err
		}
		if err := events.Record(ctx, s.outbox, s.topic, domain.AggregateDelivery, d.ID.String(),
			domain.EventCourierAssigned, domain.CourierAssignedEvent{
				OrderID:    orderID,
				DeliveryID: d.ID,
				Courier:    courier,
			}); err != nil {
			return err
		}
		updated, userID = d, order.UserID
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.publish(ctx, userID, realtime.EventCourierAssigned, map[string]any{
		"orderId":    orderID,
		"deliveryId": updated.ID,
		"courier":    courier,
	})
	return updated, nil
}

// Get доставка заказа; покупатель видит только свои
func (s *DeliveryService) Get(ctx context.Context, orderID uuid.UUID, actor Actor) (*domain.Delivery, error) {
	if !actor.IsStaff() {
		order, err := s.orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if order.UserID != actor.UserID {
			return nil, ErrForbidden
		}
	}
	return s.deliveries.GetByOrderID(ctx, orderID)
}

func (s *DeliveryService) byOrder(ctx context.Context, orderID uuid.UUID) (*domain.Delivery, error) {
	return s.deliveries.GetByOrderID(ctx, orderID)
}

func (s *DeliveryService) List(ctx context.Context) ([]domain.DeliveryView, error) {
	return s.deliveries.List(ctx)
}

func (s *DeliveryService) Couriers(ctx context.Context) ([]string, error) {
	return s.deliveries.Couriers(ctx)
}

// publish и notify вызываются только после коммита, с контекстом вне транзакции
func (s *DeliveryService) publish(ctx context.Context, userID uuid.UUID, event string, payload any) {
	if s.broker == nil || s.tasks == nil || userID == uuid.Nil {
		return
	}
	room := realtime.UserRoom(userID)
	s.tasks.Enqueue(ctx, "realtime:"+event, func(ctx context.Context) error {
		return s.broker.Publish(ctx, room, event, payload)
	})
}

func (s *DeliveryService) notify(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	if _, err := s.notifier.Send(ctx, msg); err != nil {
		logging.Warn(ctx, s.logger, "Failed to save notification", zap.String("title", msg.Title), zap.Error(err))
	}
}

func joinStatuses() string {
	all := domain.DeliveryStatuses()
	parts := make([]string, len(all))
	for i, st := range all {
		parts[i] = string(st)
	}
	return strings.Join(parts, ", ")
}

// isNotFound ошибка хранилища "не найдено" в любой обёртке
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}
