package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

func seedProduct(t *testing.T, repos Repositories, name, sku string) *domain.Product {
	t.Helper()
	p := domain.Product{Name: name, SKU: sku, Price: decimal.NewFromInt(25), Stock: 1}
	if err := repos.Products.Create(context.Background(), &p); err != nil {
		t.Fatalf("create product: %v", err)
	}
	return &p
}

func TestMemoryReviews_OnePerUserAndCascade(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories(NewMemoryStore())
	p := seedProduct(t, repos, "Kente Scarf", "KS-1")
	u := domain.User{Name: "Yaw", Email: "yaw@example.com", Role: domain.RoleCustomer}
	if err := repos.Users.Create(ctx, &u); err != nil {
		t.Fatalf("create user: %v", err)
	}

	r := domain.Review{ProductID: p.ID, UserID: u.ID, Rating: 4, Comment: "Lovely"}
	if err := repos.Reviews.Create(ctx, &r); err != nil {
		t.Fatalf("create review: %v", err)
	}
	if r.UserName != "Yaw" {
		t.Fatalf("user name = %q", r.UserName)
	}
	if err := repos.Reviews.Create(ctx, &domain.Review{ProductID: p.ID, UserID: u.ID, Rating: 1, Comment: "x"}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if err := repos.Reviews.Create(ctx, &domain.Review{ProductID: uuid.New(), UserID: u.ID, Rating: 1, Comment: "x"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown product, got %v", err)
	}

	upd := domain.Review{ID: r.ID, Rating: 2, Comment: "Faded", ProductID: uuid.New()}
	if err := repos.Reviews.Update(ctx, &upd); err != nil {
		t.Fatalf("update: %v", err)
	}
	if upd.ProductID != p.ID || upd.Rating != 2 {
		t.Fatalf("update touched immutable fields: %+v", upd)
	}

	if err := repos.Products.Delete(ctx, p.ID); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if _, err := repos.Reviews.GetByID(ctx, r.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("review survived product delete")
	}
}

func TestMemoryWishlists_AddRemoveList(t *testing.T) {
	ctx := context.Background()
	repos := NewMemoryRepositories(NewMemoryStore())
	p := seedProduct(t, repos, "Shea Butter", "SB-1")
	userID := uuid.New()

	item, err := repos.Wishlists.Add(ctx, userID, p.ID)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if item.Name != "Shea Butter" || !item.Price.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("product details missing: %+v", item)
	}
	if _, err := repos.Wishlists.Add(ctx, userID, p.ID); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
	if _, err := repos.Wishlists.Add(ctx, userID, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected unknown product, got %v", err)
	}

	mine, _ := repos.Wishlists.ListByUser(ctx, userID)
	others, _ := repos.Wishlists.ListByUser(ctx, uuid.New())
	if len(mine) != 1 || len(others) != 0 {
		t.Fatalf("list by user: %d / %d", len(mine), len(others))
	}

	if _, err := repos.Wishlists.Remove(ctx, userID, p.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := repos.Wishlists.Remove(ctx, userID, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMemoryPromotions_CodeIsUniqueIgnoringCase(t *testing.T) {
	ctx := context.Background()
	promos := NewMemoryPromotions(NewMemoryStore())
	now := time.Now()
	limit := int64(3)

	p := domain.Promotion{
		Code: "HARMATTAN", DiscountType: domain.DiscountFixed, DiscountValue: decimal.NewFromInt(5),
		StartsAt: now, EndsAt: now.Add(time.Hour), Active: true, UsageLimit: &limit,
	}
	if err := promos.Create(ctx, &p); err != nil {
		t.Fatalf("create: %v", err)
	}
	limit = 0
	got, err := promos.GetByCode(ctx, "harmattan")
	if err != nil {
		t.Fatalf("get by code: %v", err)
	}
	if got.UsageLimit == nil || *got.UsageLimit != 3 {
		t.Fatalf("stored limit changed through caller pointer")
	}

	dup := domain.Promotion{Code: "harmattan", DiscountType: domain.DiscountFixed, DiscountValue: decimal.NewFromInt(1)}
	if err := promos.Create(ctx, &dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}
