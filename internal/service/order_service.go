package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/events"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/repository"
)

const (
	// fallbackPayerEmail шлюз требует email плательщика
	fallbackPayerEmail = "customer@example.com"

	webhookChargeSuccess = "charge.success"

	reasonOrderNotFound     = "order not found"
	reasonReferenceMismatch = "reference mismatch"
	reasonAmountMismatch    = "amount mismatch"

	premiumDeliveryDays  = 2
	standardDeliveryDays = 5
)

// PlaceOrderInput проверенный запрос на оформление заказа
type PlaceOrderInput struct {
	UserID      uuid.UUID
	Items       []domain.OrderItem
	TotalAmount decimal.Decimal
	Payment     domain.PaymentMethod
	Address     string
	Email       string
	Phone       string
	IsPremium   bool
}

// PaymentHandoff данные для перехода клиента на страницу оплаты
type PaymentHandoff struct {
	Method           string `json:"method"`
	Channel          string `json:"channel"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorizationUrl"`
	AccessCode       string `json:"accessCode"`
	CallbackURL      string `json:"callbackUrl"`
}

type PlaceOrderResult struct {
	Order       *domain.Order    `json:"order"`
	Delivery    *domain.Delivery `json:"delivery,omitempty"`
	Payment     *PaymentHandoff  `json:"payment,omitempty"`
	RedirectURL string           `json:"redirectUrl,omitempty"`
}

// VerificationResult итог сверки платежа. OrderID пустой, если заказ не найден.
type VerificationResult struct {
	Success     bool             `json:"success"`
	OrderID     uuid.UUID        `json:"orderId"`
	Reference   string           `json:"reference"`
	Delivery    *domain.Delivery `json:"delivery,omitempty"`
	Reason      string           `json:"reason,omitempty"`
	RedirectURL string           `json:"redirectUrl"`
}

// TrackingInfo публичное состояние заказа для отслеживания
type TrackingInfo struct {
	OrderID           uuid.UUID        `json:"orderId"`
	Status            string           `json:"status"`
	EstimatedDelivery *time.Time       `json:"estimatedDelivery"`
	IsPremium         bool             `json:"isPremium"`
	Delivery          *domain.Delivery `json:"delivery,omitempty"`
}

type OrderDeps struct {
	Repos      repository.Repositories
	Payments   payment.Provider
	Deliveries *DeliveryService
	Notifier   Notifier
	Tasks      TaskRunner
	URLs       config.URLs
	Currency   string
	Topic      string
	Metrics    *metrics.Metrics
	Logger     *zap.Logger
}

// OrderService оформление заказа, сверка платежей и отслеживание
type OrderService struct {
	orders     repository.OrderRepository
	users      repository.UserRepository
	outbox     repository.OutboxRepository
	tx         repository.TxManager
	payments   payment.Provider
	deliveries *DeliveryService
	notifier   Notifier
	tasks      TaskRunner
	urls       config.URLs
	currency   string
	topic      string
	metrics    *metrics.Metrics
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

func NewOrderService(d OrderDeps) *OrderService {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Currency == "" {
		d.Currency = "GHS"
	}
	return &OrderService{
		orders:     d.Repos.Orders,
		users:      d.Repos.Users,
		outbox:     d.Repos.Outbox,
		tx:         d.Repos.Tx,
		payments:   d.Payments,
		deliveries: d.Deliveries,
		notifier:   d.Notifier,
		tasks:      d.Tasks,
		urls:       d.URLs,
		currency:   d.Currency,
		topic:      d.Topic,
		metrics:    d.Metrics,
		logger:     d.Logger,
		tracer:     otel.Tracer("order-service"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func validatePlaceOrder(in PlaceOrderInput) error {
	var verr ValidationError
	if in.UserID == uuid.Nil {
		verr.add("userId", "is required")
	}
	if len(in.Items) == 0 {
		verr.add("items", "must contain at least one item")
	}
	for i, it := range in.Items {
		field := fmt.Sprintf("items[%d]", i)
		if strings.TrimSpace(it.ProductID) == "" {
			verr.add(field+".productId", "is required")
		}
		if it.Quantity < 1 {
			verr.add(field+".quantity", "must be at least 1")
		}
		if !it.Price.IsPositive() {
			verr.add(field+".price", "must be greater than 0")
		}
	}
	if !in.TotalAmount.IsPositive() {
		verr.add("totalAmount", "must be greater than 0")
	}
	if in.Payment == nil {
		verr.add("paymentMethod", "is required")
	}
	return verr.err()
}

// ParsePayment собирает способ оплаты из полей запроса; ошибки канала становятся ошибками валидации
func ParsePayment(method, channel, phone string) (domain.PaymentMethod, error) {
	pm, err := domain.ParsePaymentMethod(method, channel, phone)
	switch {
	case err == nil:
		return pm, nil
	case errors.Is(err, domain.ErrUnknownPaymentMethod):
		return nil, invalidField("paymentMethod", err.Error())
	case errors.Is(err, domain.ErrInvalidPaymentChannel):
		return nil, invalidField("paymentChannel", err.Error())
	case errors.Is(err, domain.ErrPhoneRequired):
		return nil, invalidField("phone", err.Error())
	default:
		return nil, err
	}
}

func (s *OrderService) newReference() string {
	return fmt.Sprintf("ORD-%d-%d", s.now().UnixMilli(), rand.IntN(10000))
}

// PlaceOrder сохраняет заказ атомарно, затем для COD создаёт доставку,
// а для карты и мобильных денег инициализирует платёж.
func (s *OrderService) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*PlaceOrderResult, error) {
	if err := validatePlaceOrder(in); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "OrderService.PlaceOrder")
	defer span.End()

	_, isCOD := in.Payment.(domain.Cod)

	now := s.now()
	days := standardDeliveryDays
	if in.IsPremium {
		days = premiumDeliveryDays
	}
	eta := now.AddDate(0, 0, days)

	order := &domain.Order{
		UserID:            in.UserID,
		Items:             make([]domain.OrderItem, len(in.Items)),
		TotalAmount:       in.TotalAmount,
		PaymentMethod:     in.Payment.Method(),
		PaymentChannel:    in.Payment.Channel(),
		Address:           strings.TrimSpace(in.Address),
		IsPremium:         in.IsPremium,
		EstimatedDelivery: &eta,
		Status:            domain.OrderStatusAwaitingPayment,
	}
	copy(order.Items, in.Items)
	for i := range order.Items {
		order.Items[i].ProductID = strings.TrimSpace(order.Items[i].ProductID)
	}
	if isCOD {
		order.Status = domain.OrderStatusPending
	} else {
		ref := s.newReference()
		order.PaymentReference = &ref
	}

	err := s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := s.orders.Create(ctx, order); err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		return events.Record(ctx, s.outbox, s.topic, domain.AggregateOrder, order.ID.String(),
			domain.EventOrderPlaced, domain.OrderPlacedEvent{
				OrderID:       order.ID,
				UserID:        order.UserID,
				TotalAmount:   order.TotalAmount,
				PaymentMethod: order.PaymentMethod,
				Reference:     order.Reference(),
			})
	})
	if err != nil {
		span.RecordError(err)
		logging.Error(ctx, s.logger, "Failed to place order", zap.String("user_id", in.UserID.String()), zap.Error(err))
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order_id", order.ID.String()),
		attribute.String("payment_method", order.PaymentMethod),
	)
	if s.metrics != nil {
		s.metrics.OrdersPlaced.WithLabelValues(order.PaymentMethod).Inc()
	}
	logging.Info(ctx, s.logger, "Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("payment_method", order.PaymentMethod),
	)

	result := &PlaceOrderResult{Order: order}

	if isCOD {
		s.notifyUser(ctx, notify.Message{
			UserID: order.UserID,
			Title:  "Order Placed (Cash on Delivery)",
			Body:   fmt.Sprintf("Your order #%s has been placed and will be paid on delivery.", order.ID),
			Email:  in.Email,
		})

		d, _, err := s.deliveries.GetOrCreate(ctx, order.ID)
		if err != nil {
			return nil, err
		}
		result.Delivery = d
		result.RedirectURL = s.frontendURL("/payment-success", url.Values{"orderId": {order.ID.String()}})
		return result, nil
	}

	s.notifyUser(ctx, notify.Message{
		UserID: order.UserID,
		Title:  "Order Placed - Pending Payment",
		Body:   fmt.Sprintf("Your order #%s has been placed. Complete the payment to confirm it.", order.ID),
		Email:  in.Email,
	})

	handoff, err := s.initializePayment(ctx, order, in)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	result.Payment = handoff
	return result, nil
}

func (s *OrderService) initializePayment(ctx context.Context, order *domain.Order, in PlaceOrderInput) (*PaymentHandoff, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" && s.users != nil {
		if u, err := s.users.GetByID(ctx, order.UserID); err == nil {
			email = u.Email
		}
	}
	if email == "" {
		email = fallbackPayerEmail
	}

	req := payment.InitializeRequest{
		Email:       email,
		AmountMinor: minorUnits(order.TotalAmount),
		Currency:    s.currency,
		Reference:   order.Reference(),
		Metadata: payment.Metadata{
			OrderID:       order.ID.String(),
			UserID:        order.UserID.String(),
			PaymentMethod: order.PaymentMethod,
		},
		CallbackURL: s.frontendURL("/order-success", nil),
	}
	switch pm := in.Payment.(type) {
	case domain.Card:
		req.Channels = []string{payment.ChannelCard}
	case domain.Momo:
		req.Channels = []string{payment.ChannelMobileMoney}
		req.MobileMoney = &payment.MobileMoney{Phone: pm.Phone, Provider: pm.Provider}
	}

	auth, err := s.payments.Initialize(ctx, req)
	if err != nil {
		logging.Error(ctx, s.logger, "Payment initialization failed",
			zap.String("order_id", order.ID.String()),
			zap.String("reference", req.Reference),
			zap.String("provider", s.payments.Name()),
			zap.Error(err),
		)
		if !errors.Is(err, payment.ErrInitializeFailed) {
			err = fmt.Errorf("%w: %w", payment.ErrInitializeFailed, err)
		}
		return nil, err
	}

	return &PaymentHandoff{
		Method:           order.PaymentMethod,
		Channel:          order.PaymentChannel,
		Reference:        req.Reference,
		AuthorizationURL: auth.AuthorizationURL,
		AccessCode:       auth.AccessCode,
		CallbackURL:      strings.TrimRight(s.urls.Backend, "/") + "/api/orders/paystack/callback",
	}, nil
}

// VerifyPayment сверяет ссылку со шлюзом и заказом и при успехе обеспечивает доставку.
// Повторные вызовы оставляют ровно одну доставку; статус заказа не меняется.
func (s *OrderService) VerifyPayment(ctx context.Context, reference string) (*VerificationResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, invalidField("reference", "is required")
	}

	ctx, span := s.tracer.Start(ctx, "OrderService.VerifyPayment")
	defer span.End()
	span.SetAttributes(attribute.String("reference", reference))

	result := &VerificationResult{
		Reference:   reference,
		RedirectURL: s.frontendURL("/payment-failed", nil),
	}

	v, err := s.payments.Verify(ctx, reference)
	if err != nil {
		span.RecordError(err)
		s.countVerification("error")
		logging.Error(ctx, s.logger, "Payment verification request failed", zap.String("reference", reference), zap.Error(err))
		return nil, err
	}
	if !v.Successful() {
		s.countVerification("failed")
		result.Reason = "payment status " + v.Status
		if order, err := s.findVerifiedOrder(ctx, reference, v.Metadata.OrderID); err == nil {
			result.OrderID = order.ID
			result.RedirectURL = s.frontendURL("/payment-failed", url.Values{"orderId": {order.ID.String()}})
		}
		return result, nil
	}

	order, err := s.findVerifiedOrder(ctx, reference, v.Metadata.OrderID)
	if err != nil {
		if isNotFound(err) {
			s.countVerification("order_not_found")
			logging.Warn(ctx, s.logger, "Verified payment has no matching order", zap.String("reference", reference))
			result.Reason = reasonOrderNotFound
			return result, nil
		}
		return nil, err
	}
	result.OrderID = order.ID

	if order.Reference() != reference {
		s.countVerification("reference_mismatch")
		logging.Warn(ctx, s.logger, "Payment reference mismatch",
			zap.String("order_id", order.ID.String()),
			zap.String("expected", order.Reference()),
			zap.String("got", reference),
		)
		result.Reason = reasonReferenceMismatch
		return result, nil
	}

	// шлюз должен подтвердить ровно ту сумму и валюту, что ушли при инициализации
	if want := minorUnits(order.TotalAmount); v.AmountMinor != want || (v.Currency != "" && !strings.EqualFold(v.Currency, s.currency)) {
		s.countVerification("amount_mismatch")
		logging.Warn(ctx, s.logger, "Payment amount mismatch",
			zap.String("order_id", order.ID.String()),
			zap.Int64("expected_minor", want),
			zap.Int64("got_minor", v.AmountMinor),
			zap.String("currency", v.Currency),
		)
		result.Reason = reasonAmountMismatch
		return result, nil
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		d, created, err := s.deliveries.GetOrCreate(ctx, order.ID)
		if err != nil {
			return err
		}
		result.Delivery = d
		if !created {
			return nil
		}
		return events.Record(ctx, s.outbox, s.topic, domain.AggregateOrder, order.ID.String(),
			domain.EventPaymentVerified, domain.PaymentVerifiedEvent{
				OrderID:    order.ID,
				Reference:  reference,
				DeliveryID: d.ID,
			})
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	s.countVerification("success")
	result.Success = true
	result.RedirectURL = s.frontendURL("/payment-success", url.Values{"orderId": {order.ID.String()}})
	return result, nil
}

// minorUnits сумма в минорных единицах валюты (pesewas для GHS)
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

func (s *OrderService) findVerifiedOrder(ctx context.Context, reference, metadataOrderID string) (*domain.Order, error) {
	if id, err := uuid.Parse(metadataOrderID); err == nil {
		order, err := s.orders.GetByID(ctx, id)
		if err == nil || !isNotFound(err) {
			return order, err
		}
	}
	return s.orders.GetByPaymentReference(ctx, reference)
}

type webhookPayload struct {
	Event string `json:"event"`
	Data  struct {
		Reference string `json:"reference"`
	} `json:"data"`
}

// HandleWebhook проверяет подпись до любых действий. Возвращает nil результат для событий,
// которые не требуют обработки.
func (s *OrderService) HandleWebhook(ctx context.Context, body []byte, signature string) (*VerificationResult, error) {
	if err := s.payments.VerifyWebhookSignature(body, signature); err != nil {
		logging.Warn(ctx, s.logger, "Rejected webhook with invalid signature")
		return nil, err
	}

	var p webhookPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, invalidField("body", "malformed webhook payload")
	}
	if p.Event != webhookChargeSuccess {
		logging.Debug(ctx, s.logger, "Ignoring webhook event", zap.String("event", p.Event))
		return nil, nil
	}
	if strings.TrimSpace(p.Data.Reference) == "" {
		return nil, invalidField("reference", "is required")
	}

	res, err := s.VerifyPayment(ctx, p.Data.Reference)
	if err != nil {
		return nil, err
	}
	if res.Reason == reasonOrderNotFound {
		return res, fmt.Errorf("order for reference %s: %w", res.Reference, repository.ErrNotFound)
	}
	if !res.Success {
		return res, fmt.Errorf("%w: %s", ErrPaymentNotVerified, res.Reason)
	}
	return res, nil
}

func (s *OrderService) ListMyOrders(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	return s.orders.ListByUser(ctx, userID)
}

func (s *OrderService) ListOrders(ctx context.Context) ([]domain.Order, error) {
	return s.orders.List(ctx)
}

// GetOrder заказ виден владельцу и администратору
func (s *OrderService) GetOrder(ctx context.Context, id uuid.UUID, actor Actor) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != actor.UserID && !actor.IsAdmin() {
		return nil, ErrForbidden
	}
	return order, nil
}

func (s *OrderService) TrackOrder(ctx context.Context, id uuid.UUID, actor Actor) (*TrackingInfo, error) {
	order, err := s.GetOrder(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	info := &TrackingInfo{
		OrderID:           order.ID,
		Status:            order.Status,
		EstimatedDelivery: order.EstimatedDelivery,
		IsPremium:         order.IsPremium,
	}
	d, err := s.deliveries.byOrder(ctx, order.ID)
	switch {
	case err == nil:
		info.Delivery = d
	case !isNotFound(err):
		return nil, err
	}
	return info, nil
}

// notifyUser пишет уведомление сразу; ретрансляцию по каналу Notifier уводит в фон сам
func (s *OrderService) notifyUser(ctx context.Context, msg notify.Message) {
	if s.notifier == nil {
		return
	}
	msg.Channel = domain.NotificationEmail
	if _, err := s.notifier.Send(ctx, msg); err != nil {
		logging.Warn(ctx, s.logger, "Failed to save notification", zap.String("title", msg.Title), zap.Error(err))
	}
}

func (s *OrderService) countVerification(result string) {
	if s.metrics != nil {
		s.metrics.PaymentVerifications.WithLabelValues(result).Inc()
	}
}

func (s *OrderService) frontendURL(path string, q url.Values) string {
	u := strings.TrimRight(s.urls.Frontend, "/") + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	return u
}
