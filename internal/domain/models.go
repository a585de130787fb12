package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func init() {
	// деньги отдаём числами, а не строками
	decimal.MarshalJSONWithoutQuotes = true
}

// Role роль пользователя
type Role string

const (
	RoleCustomer Role = "customer"
	RoleManager  Role = "manager"
	RoleAdmin    Role = "admin"
)

// User учётная запись покупателя или сотрудника
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	Role         Role      `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// IsStaff admin и manager видят чужие заказы и доставки
func (u User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleManager
}

// Product товар каталога
type Product struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	SKU         string          `json:"sku"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Stock       int64           `json:"stock"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Device токен устройства для push-уведомлений
type Device struct {
	UserID    uuid.UUID `json:"user_id"`
	Token     string    `json:"device_token"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}
