package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storefront/internal/auth"
	"storefront/internal/domain"
	"storefront/internal/logging"
	"storefront/internal/repository"
)

const minPasswordLength = 8

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Phone    string
}

// AuthResult токен и пользователь после входа или регистрации
type AuthResult struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// UserService регистрация и вход по email и паролю
type UserService struct {
	users  repository.UserRepository
	issuer *auth.Issuer
	logger *zap.Logger
}

func NewUserService(users repository.UserRepository, issuer *auth.Issuer, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{users: users, issuer: issuer, logger: logger}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	var verr ValidationError
	name := strings.TrimSpace(in.Name)
	email := normalizeEmail(in.Email)
	if name == "" {
		verr.add("name", "is required")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		verr.add("email", "must be a valid email address")
	}
	if len(in.Password) < minPasswordLength {
		verr.add("password", "must be at least 8 characters")
	}
	if err := verr.err(); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Phone:        strings.TrimSpace(in.Phone),
		Role:         domain.RoleCustomer,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, invalidField("email", "is already registered")
		}
		return nil, err
	}
	logging.Info(ctx, s.logger, "User registered", zap.String("user_id", u.ID.String()))

	token, err := s.issuer.Issue(*u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

// Login неизвестный email и неверный пароль неразличимы для клиента
func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !u.IsActive || !auth.CheckPassword(u.PasswordHash, password) {
		return nil, ErrInvalidCredentials
	}

	token, err := s.issuer.Issue(*u)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: u}, nil
}

func (s *UserService) Me(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.GetByID(ctx, id)
}
