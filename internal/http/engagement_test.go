package httpapi

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
)

func (ts *testServer) product(t *testing.T, name, sku string) *domain.Product {
	t.Helper()
	p := domain.Product{Name: name, SKU: sku, Price: decimal.NewFromInt(30), Stock: 5}
	if err := ts.repos.Products.Create(context.Background(), &p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return &p
}

func TestReviewEndpoints(t *testing.T) {
	ts := setupServer(t)
	p := ts.product(t, "Kente Scarf", "KS-1")
	_, author := ts.user(t, domain.RoleCustomer)
	_, stranger := ts.user(t, domain.RoleCustomer)
	_, admin := ts.user(t, domain.RoleAdmin)

	body := map[string]any{"productId": p.ID.String(), "rating": 5, "comment": "Bright colours"}
	w := doJSON(t, ts, http.MethodPost, "/api/reviews", "", body)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, ts, http.MethodPost, "/api/reviews", author, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var review domain.Review
	decode(t, w, &review)

	w = doJSON(t, ts, http.MethodPost, "/api/reviews", author, body)
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())

	w = doJSON(t, ts, http.MethodPost, "/api/reviews", stranger, map[string]any{
		"productId": p.ID.String(), "rating": 9, "comment": "too many stars",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "rating")

	w = doJSON(t, ts, http.MethodGet, "/api/reviews/"+p.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []domain.Review
	decode(t, w, &list)
	require.Len(t, list, 1)
	require.Equal(t, "customer", list[0].UserName)

	path := "/api/reviews/" + review.ID.String()
	w = doJSON(t, ts, http.MethodPut, path, stranger, map[string]any{"rating": 1})
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, ts, http.MethodPut, path, author, map[string]any{"comment": "Faded after a wash"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &review)
	require.Equal(t, 5, review.Rating)
	require.Equal(t, "Faded after a wash", review.Comment)

	w = doJSON(t, ts, http.MethodDelete, path, stranger, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, ts, http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, ts, http.MethodDelete, path, admin, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestWishlistEndpoints(t *testing.T) {
	ts := setupServer(t)
	p := ts.product(t, "Shea Butter", "SB-1")
	_, customer := ts.user(t, domain.RoleCustomer)
	_, admin := ts.user(t, domain.RoleAdmin)

	w := doJSON(t, ts, http.MethodPost, "/api/wishlist", customer, map[string]any{"productId": p.ID.String()})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var item domain.WishlistItem
	decode(t, w, &item)
	require.Equal(t, "Shea Butter", item.Name)

	w = doJSON(t, ts, http.MethodPost, "/api/wishlist", customer, map[string]any{"productId": p.ID.String()})
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, ts, http.MethodGet, "/api/wishlist/all", customer, nil)
	require.Equal(t, http.StatusForbidden, w.Code)
	w = doJSON(t, ts, http.MethodGet, "/api/wishlist/all", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, ts, http.MethodDelete, "/api/wishlist", customer, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "productId")

	w = doJSON(t, ts, http.MethodDelete, "/api/wishlist", customer, map[string]any{"productId": p.ID.String()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = doJSON(t, ts, http.MethodDelete, "/api/wishlist?productId="+p.ID.String(), customer, nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, ts, http.MethodGet, "/api/wishlist", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var mine []domain.WishlistItem
	decode(t, w, &mine)
	require.Empty(t, mine)
}

func TestPromotionEndpoints(t *testing.T) {
	ts := setupServer(t)
	_, customer := ts.user(t, domain.RoleCustomer)
	_, admin := ts.user(t, domain.RoleAdmin)
	now := time.Now().UTC()

	body := map[string]any{
		"code":           "akwaaba15",
		"description":    "Welcome <i>discount</i>",
		"discount_type":  "percentage",
		"discount_value": 15,
		"starts_at":      now.Add(-time.Hour),
		"ends_at":        now.Add(24 * time.Hour),
	}
	w := doJSON(t, ts, http.MethodPost, "/api/promotions", customer, body)
	require.Equal(t, http.StatusForbidden, w.Code)

	w = doJSON(t, ts, http.MethodPost, "/api/promotions", admin, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var promo domain.Promotion
	decode(t, w, &promo)
	require.Equal(t, "AKWAABA15", promo.Code)
	require.Equal(t, "Welcome discount", promo.Description)
	require.True(t, promo.Active)

	w = doJSON(t, ts, http.MethodPost, "/api/promotions", admin, body)
	require.Equal(t, http.StatusConflict, w.Code)

	w = doJSON(t, ts, http.MethodGet, "/api/promotions/validate?code=Akwaaba15&amount=200", customer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var quote struct {
		Discount decimal.Decimal `json:"discount"`
		Total    decimal.Decimal `json:"total"`
	}
	decode(t, w, &quote)
	require.True(t, quote.Discount.Equal(decimal.NewFromInt(30)), "discount %s", quote.Discount)
	require.True(t, quote.Total.Equal(decimal.NewFromInt(170)), "total %s", quote.Total)

	w = doJSON(t, ts, http.MethodGet, "/api/promotions/validate?code=AKWAABA15&amount=lots", customer, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, ts, http.MethodPut, "/api/promotions/"+promo.ID.String(), admin, map[string]any{"active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = doJSON(t, ts, http.MethodGet, "/api/promotions/validate?code=AKWAABA15", customer, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, decode(t, w, nil).Errors, "code")

	w = doJSON(t, ts, http.MethodGet, "/api/promotions/all", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all []domain.Promotion
	decode(t, w, &all)
	require.Len(t, all, 1)

	w = doJSON(t, ts, http.MethodDelete, "/api/promotions/"+promo.ID.String(), admin, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
}
