// Package payment адаптер платёжного шлюза: инициализация транзакции, проверка и подпись вебхуков
package payment

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"storefront/internal/config"
)

var (
	ErrInitializeFailed = errors.New("payment initialization failed")
	ErrVerifyFailed     = errors.New("payment verification failed")
	ErrInvalidSignature = errors.New("invalid webhook signature")
)

const (
	ChannelCard        = "card"
	ChannelMobileMoney = "mobile_money"

	StatusSuccess = "success"
)

// Metadata уходит в шлюз и возвращается при проверке
type Metadata struct {
	OrderID       string `json:"orderId"`
	UserID        string `json:"userId"`
	PaymentMethod string `json:"paymentMethod"`
}

type MobileMoney struct {
	Phone    string `json:"phone"`
	Provider string `json:"provider"`
}

// InitializeRequest сумма в минорных единицах (pesewas для GHS)
type InitializeRequest struct {
	Email       string
	AmountMinor int64
	Currency    string
	Reference   string
	Metadata    Metadata
	CallbackURL string
	Channels    []string
	MobileMoney *MobileMoney
}

type Authorization struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type Verification struct {
	Status      string   `json:"status"`
	Reference   string   `json:"reference"`
	AmountMinor int64    `json:"amount"`
	Currency    string   `json:"currency"`
	Metadata    Metadata `json:"metadata"`
}

func (v Verification) Successful() bool {
	return v.Status == StatusSuccess
}

// Provider платёжный шлюз. Выбирается один раз при старте.
type Provider interface {
	Name() string
	Initialize(ctx context.Context, req InitializeRequest) (*Authorization, error)
	Verify(ctx context.Context, reference string) (*Verification, error)
	// VerifyWebhookSignature проверяет подпись сырого тела запроса
	VerifyWebhookSignature(body []byte, signature string) error
}

// New собирает провайдера по payment.provider
func New(cfg config.Payment, logger *zap.Logger) (Provider, error) {
	switch cfg.Provider {
	case "paystack":
		if cfg.SecretKey == "" {
			return nil, errors.New("paystack secret key is not configured")
		}
		return NewPaystack(cfg, logger), nil
	case "sandbox", "":
		return NewSandbox(cfg.SecretKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}
