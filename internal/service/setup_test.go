package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/realtime"
	"storefront/internal/repository"
)

const testSecret = "sk_test_secret"

// syncTasks выполняет задачу сразу, чтобы проверки не зависели от планировщика
type syncTasks struct {
	mu    sync.Mutex
	names []string
}

func (r *syncTasks) Enqueue(ctx context.Context, name string, fn func(ctx context.Context) error) bool {
	r.mu.Lock()
	r.names = append(r.names, name)
	r.mu.Unlock()
	_ = fn(ctx)
	return true
}

func (r *syncTasks) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.names)
}

type recordingNotifier struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notify.Message) (*domain.Notification, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.msgs = append(n.msgs, msg)
	return &domain.Notification{ID: uuid.New(), UserID: msg.UserID, Title: msg.Title, Message: msg.Body, Type: msg.Channel}, nil
}

func (n *recordingNotifier) titles() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, len(n.msgs))
	for i, m := range n.msgs {
		out[i] = m.Title
	}
	return out
}

// stubProvider шлюз с управляемым ответом Verify
type stubProvider struct {
	initErr error
	verify  func(reference string) (*payment.Verification, error)
	calls   int
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) Initialize(_ context.Context, req payment.InitializeRequest) (*payment.Authorization, error) {
	if p.initErr != nil {
		return nil, p.initErr
	}
	return &payment.Authorization{AuthorizationURL: "https://pay.test/" + req.Reference, AccessCode: "ac", Reference: req.Reference}, nil
}

func (p *stubProvider) Verify(_ context.Context, reference string) (*payment.Verification, error) {
	p.calls++
	return p.verify(reference)
}

func (p *stubProvider) VerifyWebhookSignature([]byte, string) error { return nil }

type testEnv struct {
	repos      repository.Repositories
	payments   payment.Provider
	hub        *realtime.Hub
	tasks      *syncTasks
	notifier   *recordingNotifier
	deliveries *DeliveryService
	orders     *OrderService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	return newTestEnvWithProvider(t, payment.NewSandbox(testSecret, "http://sandbox.test"))
}

func newTestEnvWithProvider(t *testing.T, provider payment.Provider) *testEnv {
	t.Helper()
	env := &testEnv{
		repos:    repository.NewMemoryRepositories(repository.NewMemoryStore()),
		payments: provider,
		hub:      realtime.NewHub(),
		tasks:    &syncTasks{},
		notifier: &recordingNotifier{},
	}
	m := metrics.New()
	env.deliveries = NewDeliveryService(DeliveryDeps{
		Repos:    env.repos,
		Notifier: env.notifier,
		Broker:   env.hub,
		Tasks:    env.tasks,
		Topic:    "order-events",
		Metrics:  m,
	})
	env.orders = NewOrderService(OrderDeps{
		Repos:      env.repos,
		Payments:   provider,
		Deliveries: env.deliveries,
		Notifier:   env.notifier,
		Tasks:      env.tasks,
		URLs:       config.URLs{Frontend: "http://shop.test", Backend: "http://api.test/"},
		Currency:   "GHS",
		Topic:      "order-events",
		Metrics:    m,
	})
	return env
}

func sampleItems() []domain.OrderItem {
	return []domain.OrderItem{
		{ProductID: "p1", Quantity: 2, Price: decimal.NewFromInt(5)},
		{ProductID: "p2", Quantity: 1, Price: decimal.NewFromInt(10)},
	}
}

func (e *testEnv) placeCOD(t *testing.T, userID uuid.UUID, address string) *PlaceOrderResult {
	t.Helper()
	res, err := e.orders.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:      userID,
		Items:       sampleItems(),
		TotalAmount: decimal.NewFromInt(20),
		Payment:     domain.Cod{},
		Address:     address,
	})
	if err != nil {
		t.Fatalf("place cod order: %v", err)
	}
	return res
}

func (e *testEnv) placeCard(t *testing.T, userID uuid.UUID) *PlaceOrderResult {
	t.Helper()
	res, err := e.orders.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:      userID,
		Items:       sampleItems(),
		TotalAmount: decimal.NewFromInt(20),
		Payment:     domain.Card{Network: "visa"},
		Address:     "5 Oxford Street",
		Email:       "ama@example.com",
	})
	if err != nil {
		t.Fatalf("place card order: %v", err)
	}
	return res
}

func (e *testEnv) outboxTypes(t *testing.T) map[string]int {
	t.Helper()
	events, err := e.repos.Outbox.FetchUnpublished(context.Background(), 1000)
	if err != nil {
		t.Fatalf("fetch outbox: %v", err)
	}
	out := make(map[string]int)
	for _, ev := range events {
		out[ev.EventType]++
	}
	return out
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
}
