//go:build integration

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"storefront/internal/domain"
)

type PostgresSuite struct {
	suite.Suite
	ctx       context.Context
	container *postgres.PostgresContainer
	pool      *pgxpool.Pool
	repos     Repositories
}

func TestPostgresSuite(t *testing.T) {
	suite.Run(t, new(PostgresSuite))
}

func (s *PostgresSuite) SetupSuite() {
	s.ctx = context.Background()

	var err error
	s.container, err = postgres.Run(
		s.ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("storefront_test"),
		postgres.WithUsername("test_user"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	s.Require().NoError(err)

	connStr, err := s.container.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)

	migrations, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	s.Require().NoError(err)
	s.Require().NoError(Migrate("file://"+migrations, connStr))

	s.pool, err = NewPostgresPool(s.ctx, connStr)
	s.Require().NoError(err)
	s.repos = NewPostgresRepositories(s.pool, zap.NewNop())
}

func (s *PostgresSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
	if s.container != nil {
		if err := s.container.Terminate(s.ctx); err != nil {
			s.T().Logf("terminate postgres container: %v", err)
		}
	}
}

func (s *PostgresSuite) SetupTest() {
	_, err := s.pool.Exec(s.ctx, "TRUNCATE users, user_devices, products, orders, order_items, deliveries, notifications, reviews, wishlists, promotions, outbox CASCADE")
	s.Require().NoError(err)
}

func (s *PostgresSuite) createOrder(ref string) *domain.Order {
	o := &domain.Order{
		UserID: uuid.New(),
		Items: []domain.OrderItem{
			{ProductID: "p1", Quantity: 2, Price: decimal.RequireFromString("10.50")},
			{ProductID: "p2", Quantity: 1, Price: decimal.NewFromInt(4)},
		},
		TotalAmount:    decimal.NewFromInt(25),
		PaymentMethod:  domain.MethodCard,
		PaymentChannel: "visa",
		Address:        "12 Ring Road",
		Status:         domain.OrderStatusAwaitingPayment,
	}
	if ref != "" {
		o.PaymentReference = &ref
	}
	s.Require().NoError(s.repos.Orders.Create(s.ctx, o))
	return o
}

func (s *PostgresSuite) TestOrderRoundTripKeepsItemOrder() {
	o := s.createOrder("ORD-1-1")

	got, err := s.repos.Orders.GetByPaymentReference(s.ctx, "ORD-1-1")
	s.Require().NoError(err)
	s.Equal(o.ID, got.ID)
	s.Require().Len(got.Items, 2)
	s.Equal("p1", got.Items[0].ProductID)
	s.True(got.Items[0].Price.Equal(decimal.RequireFromString("10.50")))
	s.True(got.TotalAmount.Equal(decimal.NewFromInt(25)))

	_, err = s.repos.Orders.GetByPaymentReference(s.ctx, "ORD-missing")
	s.True(errors.Is(err, ErrNotFound))
}

func (s *PostgresSuite) TestDuplicateReferenceRejected() {
	s.createOrder("ORD-2-2")

	dup := &domain.Order{
		UserID:           uuid.New(),
		TotalAmount:      decimal.NewFromInt(1),
		PaymentMethod:    domain.MethodCard,
		PaymentChannel:   "visa",
		PaymentReference: func() *string { r := "ORD-2-2"; return &r }(),
		Status:           domain.OrderStatusAwaitingPayment,
	}
	err := s.repos.Orders.Create(s.ctx, dup)
	s.True(errors.Is(err, ErrDuplicate), "got %v", err)
}

func (s *PostgresSuite) TestConcurrentGetOrCreateYieldsSingleDelivery() {
	o := s.createOrder("ORD-3-3")

	const workers = 16
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = make(map[uuid.UUID]struct{})
	)
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, isNew, err := s.repos.Deliveries.GetOrCreate(s.ctx, &domain.Delivery{
				OrderID: o.ID,
				Address: o.Address,
				Courier: domain.DefaultCourier,
				Status:  domain.DeliveryPending,
			})
			s.NoError(err)
			if err != nil {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[d.ID] = struct{}{}
			if isNew {
				created++
			}
		}()
	}
	wg.Wait()

	s.Equal(1, created)
	s.Len(ids, 1)

	var rows int
	s.Require().NoError(s.pool.QueryRow(s.ctx, "SELECT COUNT(*) FROM deliveries WHERE order_id = $1", o.ID).Scan(&rows))
	s.Equal(1, rows)
}

func (s *PostgresSuite) TestGetOrCreateUnknownOrder() {
	_, _, err := s.repos.Deliveries.GetOrCreate(s.ctx, &domain.Delivery{
		OrderID: uuid.New(),
		Address: domain.AddressNotProvided,
		Status:  domain.DeliveryPending,
	})
	s.True(errors.Is(err, ErrNotFound), "got %v", err)
}

func (s *PostgresSuite) TestTransactionRollsBackEveryWrite() {
	o := s.createOrder("ORD-4-4")
	boom := errors.New("boom")

	err := s.repos.Tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		if _, _, err := s.repos.Deliveries.GetOrCreate(ctx, &domain.Delivery{
			OrderID: o.ID, Address: o.Address, Courier: domain.DefaultCourier, Status: domain.DeliveryPending,
		}); err != nil {
			return err
		}
		if err := s.repos.Orders.UpdateStatus(ctx, o.ID, string(domain.DeliveryShipped)); err != nil {
			return err
		}
		return boom
	})
	s.True(errors.Is(err, boom))

	_, err = s.repos.Deliveries.GetByOrderID(s.ctx, o.ID)
	s.True(errors.Is(err, ErrNotFound))
	got, err := s.repos.Orders.GetByID(s.ctx, o.ID)
	s.Require().NoError(err)
	s.Equal(domain.OrderStatusAwaitingPayment, got.Status)
}

func (s *PostgresSuite) TestDeliveryListJoinsOrderAndCustomer() {
	u := &domain.User{Name: "Ama", Email: "ama@example.com", PasswordHash: "x", Role: domain.RoleCustomer, IsActive: true}
	s.Require().NoError(s.repos.Users.Create(s.ctx, u))

	o := s.createOrder("ORD-5-5")
	_, err := s.pool.Exec(s.ctx, "UPDATE orders SET user_id = $1 WHERE id = $2", u.ID, o.ID)
	s.Require().NoError(err)

	_, _, err = s.repos.Deliveries.GetOrCreate(s.ctx, &domain.Delivery{
		OrderID: o.ID, Address: o.Address, Courier: domain.DefaultCourier, Status: domain.DeliveryPending,
	})
	s.Require().NoError(err)
	_, err = s.repos.Deliveries.UpdateCourier(s.ctx, o.ID, "Kofi Express")
	s.Require().NoError(err)

	views, err := s.repos.Deliveries.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(views, 1)
	s.Equal("Ama", views[0].CustomerName)
	s.Equal("Kofi Express", views[0].Courier)
	s.True(views[0].OrderTotal.Equal(decimal.NewFromInt(25)))

	couriers, err := s.repos.Deliveries.Couriers(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"Kofi Express"}, couriers)
}

func (s *PostgresSuite) TestOutboxLifecycle() {
	payload, err := json.Marshal(domain.OrderPlacedEvent{OrderID: uuid.New()})
	s.Require().NoError(err)

	e := &domain.OutboxEvent{
		AggregateType: domain.AggregateOrder,
		AggregateID:   "a1",
		EventType:     domain.EventOrderPlaced,
		Payload:       payload,
		Topic:         "order-events",
	}
	s.Require().NoError(s.repos.Outbox.Save(s.ctx, e))
	s.NotZero(e.ID)

	var batch []domain.OutboxEvent
	s.Require().NoError(s.repos.Tx.WithTransaction(s.ctx, func(ctx context.Context) error {
		var err error
		batch, err = s.repos.Outbox.FetchUnpublished(ctx, 10)
		if err != nil {
			return err
		}
		return s.repos.Outbox.MarkFailed(ctx, e.ID, "broker down")
	}))
	s.Require().Len(batch, 1)
	s.Equal(domain.EventOrderPlaced, batch[0].EventType)

	s.Require().NoError(s.repos.Outbox.MarkPublished(s.ctx, e.ID))
	left, err := s.repos.Outbox.FetchUnpublished(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(left)
}

func (s *PostgresSuite) TestNotificationsAndDevices() {
	userID := uuid.New()
	n := &domain.Notification{UserID: userID, Title: "Hi", Message: "there", Type: domain.NotificationEmail}
	s.Require().NoError(s.repos.Notifications.Create(s.ctx, n))

	read, err := s.repos.Notifications.MarkRead(s.ctx, n.ID)
	s.Require().NoError(err)
	s.True(read.IsRead)

	list, err := s.repos.Notifications.ListByUser(s.ctx, userID)
	s.Require().NoError(err)
	s.Len(list, 1)

	u := &domain.User{Name: "Kwame", Email: "kwame@example.com", PasswordHash: "x", Role: domain.RoleCustomer, IsActive: true}
	s.Require().NoError(s.repos.Users.Create(s.ctx, u))
	s.Require().NoError(s.repos.Devices.Register(s.ctx, u.ID, "tok-1"))
	s.Require().NoError(s.repos.Devices.Register(s.ctx, u.ID, "tok-1"))
	s.Require().NoError(s.repos.Devices.Deactivate(s.ctx, "tok-1"))

	tokens, err := s.repos.Devices.ActiveTokens(s.ctx, u.ID)
	s.Require().NoError(err)
	s.Empty(tokens)

	err = s.repos.Users.Create(s.ctx, &domain.User{Name: "Dup", Email: "kwame@example.com", PasswordHash: "x", Role: domain.RoleCustomer})
	s.True(errors.Is(err, ErrDuplicate))
}

func (s *PostgresSuite) TestReviewsAndWishlists() {
	u := &domain.User{Name: "Efua", Email: "efua@example.com", PasswordHash: "x", Role: domain.RoleCustomer, IsActive: true}
	s.Require().NoError(s.repos.Users.Create(s.ctx, u))
	p := &domain.Product{Name: "Shea Butter", SKU: "SB-1", Price: decimal.RequireFromString("35.50"), Stock: 3}
	s.Require().NoError(s.repos.Products.Create(s.ctx, p))

	rev := &domain.Review{ProductID: p.ID, UserID: u.ID, Rating: 4, Comment: "Smooth"}
	s.Require().NoError(s.repos.Reviews.Create(s.ctx, rev))
	err := s.repos.Reviews.Create(s.ctx, &domain.Review{ProductID: p.ID, UserID: u.ID, Rating: 5, Comment: "again"})
	s.True(errors.Is(err, ErrDuplicate))

	rev.Rating = 5
	rev.Comment = "Even better"
	s.Require().NoError(s.repos.Reviews.Update(s.ctx, rev))
	s.Equal("Efua", rev.UserName)

	reviews, err := s.repos.Reviews.ListByProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Require().Len(reviews, 1)
	s.Equal(5, reviews[0].Rating)

	item, err := s.repos.Wishlists.Add(s.ctx, u.ID, p.ID)
	s.Require().NoError(err)
	s.Equal("Shea Butter", item.Name)
	s.True(item.Price.Equal(decimal.RequireFromString("35.50")))

	_, err = s.repos.Wishlists.Add(s.ctx, u.ID, p.ID)
	s.True(errors.Is(err, ErrDuplicate))

	all, err := s.repos.Wishlists.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 1)
	s.Equal("Efua", all[0].UserName)

	_, err = s.repos.Wishlists.Remove(s.ctx, u.ID, p.ID)
	s.Require().NoError(err)
	_, err = s.repos.Wishlists.Remove(s.ctx, u.ID, p.ID)
	s.True(errors.Is(err, ErrNotFound))

	s.Require().NoError(s.repos.Products.Delete(s.ctx, p.ID))
	reviews, err = s.repos.Reviews.ListByProduct(s.ctx, p.ID)
	s.Require().NoError(err)
	s.Empty(reviews)
}

func (s *PostgresSuite) TestPromotionLifecycle() {
	limit := int64(10)
	start := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	promo := &domain.Promotion{
		Code:          "AKWAABA10",
		DiscountType:  domain.DiscountPercentage,
		DiscountValue: decimal.NewFromInt(10),
		StartsAt:      start,
		EndsAt:        start.Add(48 * time.Hour),
		Active:        true,
		UsageLimit:    &limit,
	}
	s.Require().NoError(s.repos.Promotions.Create(s.ctx, promo))

	got, err := s.repos.Promotions.GetByCode(s.ctx, "akwaaba10")
	s.Require().NoError(err)
	s.Equal(promo.ID, got.ID)
	s.Require().NotNil(got.UsageLimit)
	s.Equal(int64(10), *got.UsageLimit)

	err = s.repos.Promotions.Create(s.ctx, &domain.Promotion{
		Code: "AKWAABA10", DiscountType: domain.DiscountFixed, DiscountValue: decimal.NewFromInt(5),
		StartsAt: start, EndsAt: start.Add(time.Hour), Active: true,
	})
	s.True(errors.Is(err, ErrDuplicate))

	got.Active = false
	got.UsageLimit = nil
	s.Require().NoError(s.repos.Promotions.Update(s.ctx, got))
	s.False(got.Active)
	s.Nil(got.UsageLimit)

	s.Require().NoError(s.repos.Promotions.Delete(s.ctx, got.ID))
	s.True(errors.Is(s.repos.Promotions.Delete(s.ctx, got.ID), ErrNotFound))
}
