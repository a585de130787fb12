// Package notify пишет уведомления пользователям и ретранслирует их по email, SMS и push
package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/metrics"
	"storefront/internal/repository"
)

var (
	ErrNoProvider   = errors.New("no notification provider configured")
	ErrNotOwner     = errors.New("notification belongs to another user")
	ErrInvalidToken = errors.New("device token is required")
)

// Message что отправить. Email и Phone необязательны: берутся из профиля пользователя.
type Message struct {
	UserID  uuid.UUID
	Title   string
	Body    string
	Channel domain.NotificationType
	Email   string
	Phone   string
}

// TaskRunner фоновый исполнитель для ретрансляции (tasks.Queue)
type TaskRunner interface {
	Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) bool
}

type Deps struct {
	Notifications repository.NotificationRepository
	Users         repository.UserRepository
	Devices       repository.DeviceRepository
	Email         EmailSender
	SMS           SMSSender
	Push          PushSender
	// Tasks если задан, ретрансляция уходит в фон; строка уведомления пишется всегда синхронно
	Tasks         TaskRunner
	RelayTimeout  time.Duration
	Metrics       *metrics.Metrics
	Logger        *zap.Logger
}

type Dispatcher struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	devices       repository.DeviceRepository
	email         EmailSender
	sms           SMSSender
	push          PushSender
	tasks         TaskRunner
	relayTimeout  time.Duration
	metrics       *metrics.Metrics
	logger        *zap.Logger
	tracer        trace.Tracer
}

func NewDispatcher(d Deps) *Dispatcher {
	if d.RelayTimeout <= 0 {
		d.RelayTimeout = 10 * time.Second
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Dispatcher{
		notifications: d.Notifications,
		users:         d.Users,
		devices:       d.Devices,
		email:         d.Email,
		sms:           d.SMS,
		push:          d.Push,
		tasks:         d.Tasks,
		relayTimeout:  d.RelayTimeout,
		metrics:       d.Metrics,
		logger:        d.Logger,
		tracer:        otel.Tracer("notify"),
	}
}

// Send сохраняет уведомление и пытается доставить его по каналу.
// Без получателя, заголовка или текста ничего не делает и возвращает (nil, nil).
// Ошибки доставки только логируются. Отброшенная очередью ретрансляция строку не отменяет.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (*domain.Notification, error) {
	if msg.UserID == uuid.Nil || strings.TrimSpace(msg.Title) == "" || strings.TrimSpace(msg.Body) == "" {
		return nil, nil
	}

	ctx, span := d.tracer.Start(ctx, "Dispatcher.Send")
	defer span.End()

	channel := msg.Channel
	if channel == "" {
		channel = domain.NotificationEmail
	}
	if !channel.Valid() {
		logging.Warn(ctx, d.logger, "Unknown notification channel, using email", zap.String("channel", string(channel)))
		channel = domain.NotificationEmail
	}
	span.SetAttributes(
		attribute.String("user_id", msg.UserID.String()),
		attribute.String("channel", string(channel)),
	)

	n := &domain.Notification{
		UserID:  msg.UserID,
		Title:   msg.Title,
		Message: msg.Body,
		Type:    channel,
	}
	if err := d.notifications.Create(ctx, n); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("save notification: %w", err)
	}

	if d.tasks == nil {
		d.deliver(ctx, n, msg)
		return n, nil
	}
	d.tasks.Enqueue(ctx, "notify:"+string(channel), func(ctx context.Context) error {
		d.deliver(ctx, n, msg)
		return nil
	})
	return n, nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *domain.Notification, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.relayTimeout)
	defer cancel()

	if err := d.relay(ctx, n.Type, msg); err != nil {
		trace.SpanFromContext(ctx).RecordError(err)
		if d.metrics != nil {
			d.metrics.NotificationFailures.WithLabelValues(string(n.Type)).Inc()
		}
		logging.Warn(ctx, d.logger, "Notification relay failed",
			zap.String("notification_id", n.ID.String()),
			zap.String("channel", string(n.Type)),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) relay(ctx context.Context, channel domain.NotificationType, msg Message) error {
	switch channel {
	case domain.NotificationSMS:
		return d.relaySMS(ctx, msg)
	case domain.NotificationPush:
		return d.relayPush(ctx, msg)
	default:
		return d.relayEmail(ctx, msg)
	}
}

func (d *Dispatcher) recipient(ctx context.Context, msg *Message) {
	if (msg.Email != "" && msg.Phone != "") || d.users == nil {
		return
	}
	u, err := d.users.GetByID(ctx, msg.UserID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			logging.Warn(ctx, d.logger, "Recipient lookup failed", zap.String("user_id", msg.UserID.String()), zap.Error(err))
		}
		return
	}
	if msg.Email == "" {
		msg.Email = u.Email
	}
	if msg.Phone == "" {
		msg.Phone = u.Phone
	}
}

func (d *Dispatcher) relayEmail(ctx context.Context, msg Message) error {
	if d.email == nil {
		return ErrNoProvider
	}
	d.recipient(ctx, &msg)
	if msg.Email == "" {
		return errors.New("recipient has no email address")
	}
	return d.email.SendEmail(ctx, Email{
		To:      msg.Email,
		Subject: msg.Title,
		Text:    msg.Body,
		HTML:    "<p>" + html.EscapeString(msg.Body) + "</p>",
	})
}

func (d *Dispatcher) relaySMS(ctx context.Context, msg Message) error {
	d.recipient(ctx, &msg)

	var smsErr error
	switch {
	case d.sms == nil:
		smsErr = ErrNoProvider
	case msg.Phone == "":
		smsErr = ErrInvalidPhone
	default:
		smsErr = d.sms.SendSMS(ctx, msg.Phone, msg.Body)
	}
	if smsErr == nil {
		return nil
	}

	logging.Warn(ctx, d.logger, "SMS failed, falling back to email", zap.String("user_id", msg.UserID.String()), zap.Error(smsErr))
	if err := d.relayEmail(ctx, msg); err != nil {
		return errors.Join(smsErr, err)
	}
	return nil
}

func (d *Dispatcher) relayPush(ctx context.Context, msg Message) error {
	if d.push == nil {
		return ErrNoProvider
	}
	tokens, err := d.devices.ActiveTokens(ctx, msg.UserID)
	if err != nil {
		return fmt.Errorf("load device tokens: %w", err)
	}
	if len(tokens) == 0 {
		logging.Debug(ctx, d.logger, "Push skipped: no active device tokens", zap.String("user_id", msg.UserID.String()))
		return nil
	}

	res, err := d.push.SendMulticast(ctx, tokens, msg.Title, msg.Body, nil)
	if err != nil {
		return err
	}
	for _, tok := range res.Invalid {
		if err := d.devices.Deactivate(ctx, tok); err != nil && !errors.Is(err, repository.ErrNotFound) {
			logging.Warn(ctx, d.logger, "Failed to deactivate device token", zap.Error(err))
		}
	}
	logging.Info(ctx, d.logger, "Push sent",
		zap.String("user_id", msg.UserID.String()),
		zap.Int("success", res.Success),
		zap.Int("failure", res.Failure),
	)
	return nil
}

func (d *Dispatcher) List(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	return d.notifications.ListByUser(ctx, userID)
}

func (d *Dispatcher) ListAll(ctx context.Context) ([]domain.Notification, error) {
	return d.notifications.List(ctx)
}

// MarkRead отметить может только адресат или администратор
func (d *Dispatcher) MarkRead(ctx context.Context, id, userID uuid.UUID, isAdmin bool) (*domain.Notification, error) {
	n, err := d.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID && !isAdmin {
		return nil, ErrNotOwner
	}
	return d.notifications.MarkRead(ctx, id)
}

func (d *Dispatcher) RegisterDevice(ctx context.Context, userID uuid.UUID, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	return d.devices.Register(ctx, userID, token)
}
