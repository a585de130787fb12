package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"storefront/internal/domain"
)

const userColumns = `id, name, email, password_hash, phone, role, is_active, created_at, updated_at`

type pgUsers struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ UserRepository = (*pgUsers)(nil)

func (r *pgUsers) Create(ctx context.Context, u *domain.User) error {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Create")
	defer span.End()

	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	query := `
		INSERT INTO users (id, name, email, password_hash, phone, role, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.q(ctx).QueryRow(ctx, query, u.ID, u.Name, u.Email, u.PasswordHash, u.Phone, u.Role, u.IsActive).
		Scan(&u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", mapError(span, err))
	}
	return nil
}

func (r *pgUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByID")
	defer span.End()
	span.SetAttributes(attribute.String("user_id", id.String()))

	u, err := scanUser(r.db.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(span, err)
	}
	return u, nil
}

func (r *pgUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.GetByEmail")
	defer span.End()

	u, err := scanUser(r.db.q(ctx).QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email))
	if err != nil {
		return nil, mapError(span, err)
	}
	return u, nil
}

func (r *pgUsers) Count(ctx context.Context) (int64, error) {
	ctx, span := r.tracer.Start(ctx, "UserRepository.Count")
	defer span.End()

	var n int64
	if err := r.db.q(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, mapError(span, err)
	}
	return n, nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Phone, &u.Role, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

type pgDevices struct {
	db     *pgStore
	tracer trace.Tracer
}

var _ DeviceRepository = (*pgDevices)(nil)

func (r *pgDevices) Register(ctx context.Context, userID uuid.UUID, token string) error {
	ctx, span := r.tracer.Start(ctx, "DeviceRepository.Register")
	defer span.End()

	query := `
		INSERT INTO user_devices (device_token, user_id, active)
		VALUES ($1, $2, TRUE)
		ON CONFLICT (device_token) DO UPDATE SET user_id = EXCLUDED.user_id, active = TRUE
	`
	if _, err := r.db.q(ctx).Exec(ctx, query, token, userID); err != nil {
		return mapError(span, err)
	}
	return nil
}

func (r *pgDevices) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	ctx, span := r.tracer.Start(ctx, "DeviceRepository.ActiveTokens")
	defer span.End()

	rows, err := r.db.q(ctx).Query(ctx, `SELECT device_token FROM user_devices WHERE user_id = $1 AND active ORDER BY device_token`, userID)
	if err != nil {
		return nil, mapError(span, err)
	}
	defer rows.Close()

	out := make([]string, 0)
	for rows.Next() {
		var token string
		if err := rows.Scan(&token); err != nil {
			return nil, mapError(span, err)
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

func (r *pgDevices) Deactivate(ctx context.Context, token string) error {
	ctx, span := r.tracer.Start(ctx, "DeviceRepository.Deactivate")
	defer span.End()

	tag, err := r.db.q(ctx).Exec(ctx, `UPDATE user_devices SET active = FALSE WHERE device_token = $1`, token)
	if err != nil {
		return mapError(span, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
