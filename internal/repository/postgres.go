package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/exaring/otelpgx"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"storefront/internal/logging"
)

const uniqueViolation = "23505"

// NewPostgresPool открывает пул соединений с трассировкой запросов
func NewPostgresPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.ConnConfig.Tracer = otelpgx.NewTracer()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create new pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return pool, nil
}

// Migrate накатывает миграции из sourceURL (например file://migrations)
func Migrate(sourceURL, databaseURL string) error {
	m, err := migrate.New(sourceURL, databaseURL)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// NewPostgresRepositories собирает репозитории поверх одного пула
func NewPostgresRepositories(pool *pgxpool.Pool, logger *zap.Logger) Repositories {
	db := &pgStore{pool: pool, logger: logger}
	return Repositories{
		Products:      &pgProducts{db: db, tracer: otel.Tracer("product_repository")},
		Orders:        &pgOrders{db: db, tracer: otel.Tracer("order_repository")},
		Deliveries:    &pgDeliveries{db: db, tracer: otel.Tracer("delivery_repository")},
		Notifications: &pgNotifications{db: db, tracer: otel.Tracer("notification_repository")},
		Users:         &pgUsers{db: db, tracer: otel.Tracer("user_repository")},
		Devices:       &pgDevices{db: db, tracer: otel.Tracer("device_repository")},
		Reviews:       &pgReviews{db: db, tracer: otel.Tracer("review_repository")},
		Wishlists:     &pgWishlists{db: db, tracer: otel.Tracer("wishlist_repository")},
		Promotions:    &pgPromotions{db: db, tracer: otel.Tracer("promotion_repository")},
		Outbox:        &pgOutbox{db: db, tracer: otel.Tracer("outbox_repository")},
		Tx:            NewPostgresTx(pool, logger),
		Ping:          pool.Ping,
	}
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgTxKey struct{}

type pgStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// q возвращает открытую транзакцию из контекста или пул
func (s *pgStore) q(ctx context.Context) querier {
	if tx, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return tx
	}
	return s.pool
}

// PostgresTx кладёт pgx.Tx в контекст, репозитории подхватывают её через q(ctx)
type PostgresTx struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPostgresTx(pool *pgxpool.Pool, logger *zap.Logger) *PostgresTx {
	return &PostgresTx{pool: pool, logger: logger}
}

func (t *PostgresTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(pgTxKey{}).(pgx.Tx); ok {
		return fn(ctx)
	}

	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		cleanupCtx := context.WithoutCancel(ctx)

		if err := tx.Rollback(cleanupCtx); err != nil && !errors.Is(err, pgx.ErrTxClosed) {
			logging.Warn(cleanupCtx, t.logger, "Failed to rollback transaction", zap.Error(err))
		}
	}()

	if err := fn(context.WithValue(ctx, pgTxKey{}, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// mapError переводит ошибки pgx в ошибки репозитория
func mapError(span trace.Span, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	span.RecordError(err)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
	}
	return err
}
