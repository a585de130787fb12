package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType канал, по которому уведомление ретранслируется
type NotificationType string

const (
	NotificationEmail NotificationType = "email"
	NotificationSMS   NotificationType = "sms"
	NotificationPush  NotificationType = "push"
)

// Valid проверяет, что канал известен
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationEmail, NotificationSMS, NotificationPush:
		return true
	}
	return false
}

// Notification уведомление внутри приложения
type Notification struct {
	ID        uuid.UUID        `json:"id"`
	UserID    uuid.UUID        `json:"target_user_id"`
	Title     string           `json:"title"`
	Message   string           `json:"message"`
	Type      NotificationType `json:"type"`
	IsRead    bool             `json:"is_read"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
