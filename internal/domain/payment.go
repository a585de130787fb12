package domain

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

const (
	MethodCOD  = "cod"
	MethodCard = "card"
	MethodMomo = "momo"

	ChannelCODPickup = "cod_pickup"
)

var (
	ErrUnknownPaymentMethod  = errors.New("unknown payment method")
	ErrInvalidPaymentChannel = errors.New("invalid payment channel")
	ErrPhoneRequired         = errors.New("phone is required for mobile money")
)

var (
	cardNetworks  = []string{"visa", "mastercard", "verve"}
	momoProviders = []string{"mtn", "vodafone", "airteltigo", "telecel"}
)

// PaymentMethod закрытое множество способов оплаты: Cod, Card, Momo
type PaymentMethod interface {
	Method() string
	Channel() string
	isPaymentMethod()
}

// Cod оплата при получении
type Cod struct{}

func (Cod) Method() string { return MethodCOD }
func (Cod) Channel() string { return ChannelCODPickup }
func (Cod) isPaymentMethod() {}

// Card оплата картой через шлюз
type Card struct {
	Network string
}

func (Card) Method() string { return MethodCard }
func (c Card) Channel() string { return c.Network }
func (Card) isPaymentMethod() {}

// Momo мобильные деньги через шлюз
type Momo struct {
	Provider string
	Phone    string
}

func (Momo) Method() string { return MethodMomo }
func (m Momo) Channel() string { return m.Provider }
func (Momo) isPaymentMethod() {}

// ParsePaymentMethod собирает способ оплаты из полей запроса и проверяет канал
func ParsePaymentMethod(method, channel, phone string) (PaymentMethod, error) {
	method = strings.ToLower(strings.TrimSpace(method))
	channel = strings.ToLower(strings.TrimSpace(channel))

	switch method {
	case MethodCOD:
		if channel != ChannelCODPickup {
			return nil, fmt.Errorf("%w: cod requires %s", ErrInvalidPaymentChannel, ChannelCODPickup)
		}
		return Cod{}, nil
	case MethodCard:
		if !slices.Contains(cardNetworks, channel) {
			return nil, fmt.Errorf("%w: card requires one of %s", ErrInvalidPaymentChannel, strings.Join(cardNetworks, ", "))
		}
		return Card{Network: channel}, nil
	case MethodMomo:
		if !slices.Contains(momoProviders, channel) {
			return nil, fmt.Errorf("%w: momo requires one of %s", ErrInvalidPaymentChannel, strings.Join(momoProviders, ", "))
		}
		phone = strings.TrimSpace(phone)
		if phone == "" {
			return nil, ErrPhoneRequired
		}
		return Momo{Provider: channel, Phone: phone}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaymentMethod, method)
	}
}
