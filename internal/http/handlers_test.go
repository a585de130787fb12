package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"storefront/internal/auth"
	"storefront/internal/cache"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/metrics"
	"storefront/internal/notify"
	"storefront/internal/payment"
	"storefront/internal/realtime"
	"storefront/internal/repository"
	"storefront/internal/service"
	"storefront/internal/tasks"
)

const (
	webhookSecret   = "sk_test_secret"
	monitoringToken = "monitor-me"
)

type testServer struct {
	srv    *Server
	repos  repository.Repositories
	issuer *auth.Issuer
	queue  *tasks.Queue
}

type apiResponse struct {
	Success bool              `json:"success"`
	Message string            `json:"message"`
	Data    json.RawMessage   `json:"data"`
	Errors  map[string]string `json:"errors"`
}

func init() {
	gin.SetMode(gin.TestMode)
}

func setupServer(t *testing.T, checks ...HealthCheck) *testServer {
	t.Helper()
	cfg := &config.Config{
		Env:        "test",
		Payment:    config.Payment{SignatureHeader: "x-provider-signature", Currency: "GHS"},
		URLs:       config.URLs{Frontend: "http://shop.test", Backend: "http://api.test"},
		Monitoring: config.Monitoring{Token: monitoringToken},
	}

	repos := repository.NewMemoryRepositories(repository.NewMemoryStore())
	m := metrics.New()
	hub := realtime.NewHub()
	queue := tasks.NewQueue(4, 256, time.Second, m, nil)
	issuer := auth.NewIssuer("test-secret", time.Hour)
	provider := payment.NewSandbox(webhookSecret, "http://sandbox.test")

	dispatcher := notify.NewDispatcher(notify.Deps{
		Notifications: repos.Notifications,
		Users:         repos.Users,
		Devices:       repos.Devices,
		Tasks:         queue,
		Metrics:       m,
	})
	deliveries := service.NewDeliveryService(service.DeliveryDeps{
		Repos:    repos,
		Notifier: dispatcher,
		Broker:   hub,
		Tasks:    queue,
		Topic:    "order-events",
		Metrics:  m,
	})
	orders := service.NewOrderService(service.OrderDeps{
		Repos:      repos,
		Payments:   provider,
		Deliveries: deliveries,
		Notifier:   dispatcher,
		Tasks:      queue,
		URLs:       cfg.URLs,
		Currency:   cfg.Payment.Currency,
		Topic:      "order-events",
		Metrics:    m,
	})
	store := cache.NewMemory(time.Now)

	srv := NewServer(Deps{
		Catalog:       service.NewCachedCatalog(service.NewProductService(repos.Products), store, nil),
		Orders:        orders,
		Deliveries:    deliveries,
		Users:         service.NewUserService(repos.Users, issuer, nil),
		Dashboard:     service.NewDashboardService(repos, store, nil),
		Reviews:       service.NewReviewService(repos, nil),
		Wishlist:      service.NewWishlistService(repos, nil),
		Promotions:    service.NewPromotionService(repos.Promotions, nil),
		Notifications: dispatcher,
		Broker:        hub,
		Issuer:        issuer,
		Metrics:       m,
		Checks:        checks,
		Config:        cfg,
	})
	t.Cleanup(queue.Wait)
	return &testServer{srv: srv, repos: repos, issuer: issuer, queue: queue}
}

func (ts *testServer) user(t *testing.T, role domain.Role) (*domain.User, string) {
	t.Helper()
	u := &domain.User{
		Name:  string(role),
		Email: string(role) + "-" + uuid.NewString() + "@example.com",
		Role:  role,
	}
	if err := ts.repos.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	token, err := ts.issuer.Issue(*u)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return u, token
}

func doRequest(t *testing.T, ts *testServer, method, path, token string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	ts.srv.Engine().ServeHTTP(w, req)
	return w
}

func doJSON(t *testing.T, ts *testServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var raw []byte
	if body != nil {
		var err error
		if raw, err = json.Marshal(body); err != nil {
			t.Fatal(err)
		}
	}
	return doRequest(t, ts, method, path, token, raw, nil)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, data any) apiResponse {
	t.Helper()
	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	if data != nil && len(resp.Data) > 0 {
		if err := json.Unmarshal(resp.Data, data); err != nil {
			t.Fatalf("decode data %s: %v", resp.Data, err)
		}
	}
	return resp
}

func orderBody(method, channel string) map[string]any {
	return map[string]any{
		"items": []map[string]any{
			{"productId": "prod-1", "quantity": 2, "price": 10},
		},
		"totalAmount":    20,
		"paymentMethod":  method,
		"paymentChannel": channel,
		"phone":          "0241234567",
		"address":        "12 Ring Road, Accra",
		"email":          "buyer@example.com",
	}
}

type placedOrder struct {
	Order    domain.Order            `json:"order"`
	Delivery *domain.Delivery        `json:"delivery"`
	Payment  *service.PaymentHandoff `json:"payment"`
	Redirect string                  `json:"redirectUrl"`
}

func (ts *testServer) place(t *testing.T, token, method, channel string) placedOrder {
	t.Helper()
	w := doJSON(t, ts, http.MethodPost, "/api/orders", token, orderBody(method, channel))
	if w.Code != http.StatusCreated {
		t.Fatalf("place %s order: %d %s", method, w.Code, w.Body.String())
	}
	var out placedOrder
	decode(t, w, &out)
	return out
}

func TestAuthFlow(t *testing.T) {
	ts := setupServer(t)

	w := doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ama", "email": "ama@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Ama", "email": "AMA@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "email")

	w = doJSON(t, ts, http.MethodPost, "/api/auth/register", "", map[string]any{
		"name": "Kofi", "email": "not-an-email", "password": "short",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	errs := decode(t, w, nil).Errors
	require.Contains(t, errs, "email")
	require.Contains(t, errs, "password")

	w = doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ama@example.com", "password": "wrong-pass",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, ts, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email": "ama@example.com", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, w.Code)
	var login service.AuthResult
	decode(t, w, &login)
	require.NotEmpty(t, login.Token)

	w = doJSON(t, ts, http.MethodGet, "/api/auth/me", login.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var me domain.User
	decode(t, w, &me)
	require.Equal(t, "ama@example.com", me.Email)
	require.NotContains(t, w.Body.String(), "password")

	require.Equal(t, http.StatusUnauthorized, doJSON(t, ts, http.MethodGet, "/api/auth/me", "", nil).Code)
	require.Equal(t, http.StatusUnauthorized, doJSON(t, ts, http.MethodGet, "/api/auth/me", "garbage", nil).Code)
}

func TestProductFlow(t *testing.T) {
	ts := setupServer(t)
	_, admin := ts.user(t, domain.RoleAdmin)
	_, customer := ts.user(t, domain.RoleCustomer)

	product := map[string]any{"name": "Shea Butter", "sku": "SHEA-1", "price": "12.50", "stock": 5}

	require.Equal(t, http.StatusUnauthorized, doJSON(t, ts, http.MethodPost, "/api/products", "", product).Code)
	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodPost, "/api/products", customer, product).Code)

	w := doJSON(t, ts, http.MethodPost, "/api/products", admin, product)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created domain.Product
	decode(t, w, &created)
	id := created.ID.String()

	w = doJSON(t, ts, http.MethodGet, "/api/products/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, ts, http.MethodPut, "/api/products/"+id, admin, map[string]any{
		"name": "Shea Butter XL", "price": 15, "stock": 7,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, ts, http.MethodGet, "/api/products?q=xl", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Product
	decode(t, w, &list)
	require.Len(t, list, 1)
	require.Equal(t, "SHEA-1", list[0].SKU)

	w = doJSON(t, ts, http.MethodPost, "/api/products", admin, map[string]any{"name": "", "sku": "", "price": -1})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "price")

	require.Equal(t, http.StatusBadRequest, doJSON(t, ts, http.MethodGet, "/api/products/42", "", nil).Code)

	require.Equal(t, http.StatusNoContent, doJSON(t, ts, http.MethodDelete, "/api/products/"+id, admin, nil).Code)
	require.Equal(t, http.StatusNotFound, doJSON(t, ts, http.MethodGet, "/api/products/"+id, "", nil).Code)
}

func TestPlaceOrder_CashOnDelivery(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, domain.RoleCustomer)

	out := ts.place(t, token, "cod", "cod_pickup")
	require.Equal(t, domain.MethodCOD, out.Order.PaymentMethod)
	require.Equal(t, domain.OrderStatusPending, out.Order.Status)
	require.NotNil(t, out.Delivery)
	require.Equal(t, domain.DeliveryPending, out.Delivery.Status)
	require.Equal(t, "12 Ring Road, Accra", out.Delivery.Address)
	require.Nil(t, out.Payment)
	require.Equal(t, "http://shop.test/payment-success?orderId="+out.Order.ID.String(), out.Redirect)

	second := ts.place(t, token, "cod", "cod_pickup")
	require.NotEqual(t, out.Order.ID, second.Order.ID)
}

func TestPlaceOrder_MobileMoney(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, domain.RoleCustomer)

	out := ts.place(t, token, "momo", "mtn")
	require.Equal(t, "20", out.Order.TotalAmount.String())
	require.Equal(t, domain.MethodMomo, out.Order.PaymentMethod)
	require.Nil(t, out.Delivery)
	require.NotNil(t, out.Payment)
	require.NotEmpty(t, out.Payment.AuthorizationURL)
	require.Regexp(t, regexp.MustCompile(`^ORD-\d+-\d+$`), out.Payment.Reference)
	require.Equal(t, "http://api.test/api/orders/paystack/callback", out.Payment.CallbackURL)
}

func TestPlaceOrder_Validation(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, domain.RoleCustomer)

	w := doJSON(t, ts, http.MethodPost, "/api/orders", token, orderBody("card", "amex"))
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "paymentChannel")

	body := orderBody("cod", "cod_pickup")
	body["items"] = []map[string]any{}
	w = doJSON(t, ts, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "items")

	body = orderBody("cod", "cod_pickup")
	body["items"] = []map[string]any{{"productId": "prod-1", "quantity": 0, "price": 10}}
	w = doJSON(t, ts, http.MethodPost, "/api/orders", token, body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "items[0].quantity")

	require.Equal(t, http.StatusUnauthorized, doJSON(t, ts, http.MethodPost, "/api/orders", "", orderBody("cod", "cod_pickup")).Code)
}

func webhookBody(t *testing.T, reference string) []byte {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"event": "charge.success",
		"data":  map[string]any{"reference": reference, "status": "success"},
	})
	require.NoError(t, err)
	return raw
}

func TestWebhook_SignatureGate(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, domain.RoleCustomer)
	out := ts.place(t, token, "card", "visa")
	ctx := context.Background()

	body := webhookBody(t, out.Payment.Reference)
	signature := payment.Sign(webhookSecret, body)

	tampered := bytes.Replace(body, []byte("success"), []byte("SUCCESS"), 1)
	w := doRequest(t, ts, http.MethodPost, "/api/orders/paystack/webhook", "", tampered,
		map[string]string{"x-provider-signature": signature})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	_, err := ts.repos.Deliveries.GetByOrderID(ctx, out.Order.ID)
	require.True(t, errors.Is(err, repository.ErrNotFound))

	w = doRequest(t, ts, http.MethodPost, "/api/orders/paystack/webhook", "", body, nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, ts, http.MethodPost, "/api/orders/paystack/webhook", "", body,
		map[string]string{"x-provider-signature": signature})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	d, err := ts.repos.Deliveries.GetByOrderID(ctx, out.Order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.DeliveryPending, d.Status)

	other, _ := json.Marshal(map[string]any{"event": "transfer.success", "data": map[string]any{}})
	w = doRequest(t, ts, http.MethodPost, "/api/orders/paystack/webhook", "", other,
		map[string]string{"x-provider-signature": payment.Sign(webhookSecret, other)})
	require.Equal(t, http.StatusOK, w.Code)

	unknown := webhookBody(t, "ORD-1-1")
	w = doRequest(t, ts, http.MethodPost, "/api/orders/paystack/webhook", "", unknown,
		map[string]string{"x-provider-signature": payment.Sign(webhookSecret, unknown)})
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVerifyAndCallback(t *testing.T) {
	ts := setupServer(t)
	_, token := ts.user(t, domain.RoleCustomer)
	out := ts.place(t, token, "card", "mastercard")

	w := doJSON(t, ts, http.MethodGet, "/api/orders/paystack/verify/ORD-0-0", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, ts, http.MethodGet, "/api/orders/paystack/verify/"+out.Payment.Reference, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var res service.VerificationResult
	decode(t, w, &res)
	require.True(t, res.Success)
	require.Equal(t, out.Order.ID, res.OrderID)
	require.Equal(t, "http://shop.test/payment-success?orderId="+out.Order.ID.String(), res.RedirectURL)

	w = doJSON(t, ts, http.MethodGet, "/api/orders/paystack/callback?reference="+out.Payment.Reference, "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, res.RedirectURL, w.Header().Get("Location"))

	w = doJSON(t, ts, http.MethodGet, "/api/orders/paystack/callback", "", nil)
	require.Equal(t, http.StatusFound, w.Code)
	require.Equal(t, "http://shop.test/payment-failed", w.Header().Get("Location"))
}

func TestOrderAccess(t *testing.T) {
	ts := setupServer(t)
	_, owner := ts.user(t, domain.RoleCustomer)
	_, stranger := ts.user(t, domain.RoleCustomer)
	_, admin := ts.user(t, domain.RoleAdmin)
	out := ts.place(t, owner, "cod", "cod_pickup")
	id := out.Order.ID.String()

	require.Equal(t, http.StatusOK, doJSON(t, ts, http.MethodGet, "/api/orders/"+id, owner, nil).Code)
	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodGet, "/api/orders/"+id, stranger, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, ts, http.MethodGet, "/api/orders/"+id, admin, nil).Code)

	w := doJSON(t, ts, http.MethodGet, "/api/orders/"+id+"/track", owner, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var info service.TrackingInfo
	decode(t, w, &info)
	require.NotNil(t, info.Delivery)
	require.NotNil(t, info.EstimatedDelivery)

	w = doJSON(t, ts, http.MethodGet, "/api/orders/my-orders", stranger, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []domain.Order
	decode(t, w, &mine)
	require.Empty(t, mine)

	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodGet, "/api/orders", owner, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, ts, http.MethodGet, "/api/orders", admin, nil).Code)
}

func TestDeliveryEndpoints(t *testing.T) {
	ts := setupServer(t)
	_, customer := ts.user(t, domain.RoleCustomer)
	_, stranger := ts.user(t, domain.RoleCustomer)
	_, manager := ts.user(t, domain.RoleManager)
	out := ts.place(t, customer, "card", "visa")
	base := "/api/delivery/" + out.Order.ID.String()

	w := doJSON(t, ts, http.MethodPatch, base+"/status", manager, map[string]any{"status": "teleported"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "status")
	_, err := ts.repos.Deliveries.GetByOrderID(context.Background(), out.Order.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)

	require.Equal(t, http.StatusForbidden,
		doJSON(t, ts, http.MethodPatch, base+"/status", customer, map[string]any{"status": "shipped"}).Code)

	w = doJSON(t, ts, http.MethodPatch, base+"/status", manager, map[string]any{"status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var d domain.Delivery
	decode(t, w, &d)
	require.Equal(t, domain.DeliveryShipped, d.Status)

	order, err := ts.repos.Orders.GetByID(context.Background(), out.Order.ID)
	require.NoError(t, err)
	require.Equal(t, "shipped", order.Status)

	w = doJSON(t, ts, http.MethodPatch, base+"/courier", manager, map[string]any{"courier": "  "})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, ts, http.MethodPatch, base+"/courier", manager, map[string]any{"courier": "Kofi Express"})
	require.Equal(t, http.StatusOK, w.Code)

	require.Equal(t, http.StatusOK, doJSON(t, ts, http.MethodGet, base, customer, nil).Code)
	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodGet, base, stranger, nil).Code)

	w = doJSON(t, ts, http.MethodGet, "/api/delivery/couriers/all", manager, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var couriers []string
	decode(t, w, &couriers)
	require.Contains(t, couriers, "Kofi Express")

	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodGet, "/api/delivery", customer, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, ts, http.MethodGet, "/api/delivery", manager, nil).Code)
}

func TestNotificationEndpoints(t *testing.T) {
	ts := setupServer(t)
	owner, token := ts.user(t, domain.RoleCustomer)
	_, stranger := ts.user(t, domain.RoleCustomer)
	_, admin := ts.user(t, domain.RoleAdmin)

	w := doJSON(t, ts, http.MethodPost, "/api/notifications", admin, map[string]any{
		"userId": owner.ID.String(), "title": "Welcome", "message": "Thanks for joining", "type": "email",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var n domain.Notification
	decode(t, w, &n)

	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodPost, "/api/notifications", token, map[string]any{
		"userId": owner.ID.String(), "title": "x", "message": "y",
	}).Code)

	w = doJSON(t, ts, http.MethodGet, "/api/notifications", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Notification
	decode(t, w, &list)
	require.Len(t, list, 1)

	path := "/api/notifications/" + n.ID.String() + "/read"
	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodPatch, path, stranger, nil).Code)
	require.Equal(t, http.StatusOK, doJSON(t, ts, http.MethodPatch, path, token, nil).Code)

	require.Equal(t, http.StatusBadRequest,
		doJSON(t, ts, http.MethodPost, "/api/notifications/devices", token, map[string]any{"deviceToken": ""}).Code)
	require.Equal(t, http.StatusCreated,
		doJSON(t, ts, http.MethodPost, "/api/notifications/devices", token, map[string]any{"deviceToken": "fcm-token-1"}).Code)
}

func TestDashboardOverview(t *testing.T) {
	ts := setupServer(t)
	_, customer := ts.user(t, domain.RoleCustomer)
	_, admin := ts.user(t, domain.RoleAdmin)
	ts.place(t, customer, "cod", "cod_pickup")

	require.Equal(t, http.StatusForbidden, doJSON(t, ts, http.MethodGet, "/api/admin/dashboard/overview", customer, nil).Code)

	w := doJSON(t, ts, http.MethodGet, "/api/admin/dashboard/overview", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var overview service.DashboardOverview
	decode(t, w, &overview)
	require.EqualValues(t, 2, overview.Users)
	require.EqualValues(t, 1, overview.Orders)
	require.False(t, overview.Partial)
}

func TestHealthAndMetrics(t *testing.T) {
	up := HealthCheck{Name: "store", Ping: func(context.Context) error { return nil }}
	down := HealthCheck{Name: "redis", Ping: func(context.Context) error { return errors.New("connection refused") }}

	ts := setupServer(t, up)
	require.Equal(t, http.StatusUnauthorized, doJSON(t, ts, http.MethodGet, "/health", "", nil).Code)

	w := doRequest(t, ts, http.MethodGet, "/health", "", nil, map[string]string{monitoringHeader: "wrong"})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doRequest(t, ts, http.MethodGet, "/health", "", nil, map[string]string{monitoringHeader: monitoringToken})
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"store":"up"`)

	degraded := setupServer(t, up, down)
	w = doRequest(t, degraded, http.MethodGet, "/health", "", nil, map[string]string{monitoringHeader: monitoringToken})
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), `"redis":"down"`)

	w = doJSON(t, ts, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, strings.Contains(w.Body.String(), "storefront_http_requests_total"), w.Body.String())
}
