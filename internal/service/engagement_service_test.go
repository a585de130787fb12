package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"storefront/internal/domain"
	"storefront/internal/repository"
)

func newEngagementRepos(t *testing.T) (repository.Repositories, *domain.Product) {
	t.Helper()
	repos := repository.NewMemoryRepositories(repository.NewMemoryStore())
	p := domain.Product{Name: "Kente Scarf", SKU: "KS-1", Price: decimal.NewFromInt(40), Stock: 3}
	require.NoError(t, repos.Products.Create(context.Background(), &p))
	return repos, &p
}

func TestReview_AddValidatesAndSanitizes(t *testing.T) {
	ctx := context.Background()
	repos, p := newEngagementRepos(t)
	svc := NewReviewService(repos, nil)
	author := Actor{UserID: uuid.New(), Role: domain.RoleCustomer}

	cases := []struct {
		name    string
		rating  int
		comment string
	}{
		{"rating too low", 0, "fine"},
		{"rating too high", 6, "fine"},
		{"empty comment", 4, "   "},
		{"markup only", 4, "<script>alert(1)</script>"},
		{"comment too long", 4, strings.Repeat("a", domain.MaxCommentLength+1)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Add(ctx, author, p.ID, tc.rating, tc.comment)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	r, err := svc.Add(ctx, author, p.ID, 5, "  <b>Great</b> colours ")
	require.NoError(t, err)
	require.Equal(t, "Great colours", r.Comment)

	_, err = svc.Add(ctx, author, p.ID, 3, "again")
	require.ErrorIs(t, err, ErrConflict)

	_, err = svc.Add(ctx, author, uuid.New(), 3, "ghost product")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestReview_OnlyAuthorOrAdminMayChange(t *testing.T) {
	ctx := context.Background()
	repos, p := newEngagementRepos(t)
	svc := NewReviewService(repos, nil)
	author := Actor{UserID: uuid.New(), Role: domain.RoleCustomer}
	stranger := Actor{UserID: uuid.New(), Role: domain.RoleCustomer}
	manager := Actor{UserID: uuid.New(), Role: domain.RoleManager}
	admin := Actor{UserID: uuid.New(), Role: domain.RoleAdmin}

	r, err := svc.Add(ctx, author, p.ID, 4, "Nice")
	require.NoError(t, err)

	two := 2
	_, err = svc.Update(ctx, stranger, r.ID, ReviewPatch{Rating: &two})
	require.ErrorIs(t, err, ErrForbidden)
	_, err = svc.Update(ctx, manager, r.ID, ReviewPatch{Rating: &two})
	require.ErrorIs(t, err, ErrForbidden)

	_, err = svc.Update(ctx, author, r.ID, ReviewPatch{})
	require.ErrorIs(t, err, ErrInvalidInput)

	upd, err := svc.Update(ctx, author, r.ID, ReviewPatch{Rating: &two})
	require.NoError(t, err)
	require.Equal(t, 2, upd.Rating)
	require.Equal(t, "Nice", upd.Comment)

	require.ErrorIs(t, svc.Delete(ctx, stranger, r.ID), ErrForbidden)
	require.NoError(t, svc.Delete(ctx, admin, r.ID))

	list, err := svc.ListByProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestWishlist_AddRemove(t *testing.T) {
	ctx := context.Background()
	repos, p := newEngagementRepos(t)
	svc := NewWishlistService(repos, nil)
	userID := uuid.New()

	item, err := svc.Add(ctx, userID, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Kente Scarf", item.Name)

	_, err = svc.Add(ctx, userID, p.ID)
	require.ErrorIs(t, err, ErrConflict)
	_, err = svc.Add(ctx, userID, uuid.New())
	require.ErrorIs(t, err, repository.ErrNotFound)
	_, err = svc.Add(ctx, userID, uuid.Nil)
	require.ErrorIs(t, err, ErrInvalidInput)

	other := uuid.New()
	_, err = svc.Add(ctx, other, p.ID)
	require.NoError(t, err)

	mine, err := svc.List(ctx, userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	all, err := svc.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	_, err = svc.Remove(ctx, userID, p.ID)
	require.NoError(t, err)
	_, err = svc.Remove(ctx, userID, p.ID)
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func newPromotionService(t *testing.T) *PromotionService {
	t.Helper()
	svc := NewPromotionService(repository.NewMemoryPromotions(repository.NewMemoryStore()), nil)
	svc.now = fixedClock
	return svc
}

func promo(code string, kind domain.DiscountType, value int64) domain.Promotion {
	now := fixedClock()
	return domain.Promotion{
		Code:          code,
		DiscountType:  kind,
		DiscountValue: decimal.NewFromInt(value),
		StartsAt:      now.Add(-time.Hour),
		EndsAt:        now.Add(24 * time.Hour),
		Active:        true,
	}
}

func TestPromotion_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := newPromotionService(t)

	bad := map[string]domain.Promotion{
		"short code":       promo("AB", domain.DiscountFixed, 5),
		"code with spaces": promo("NEW YEAR", domain.DiscountFixed, 5),
		"unknown type":     promo("SAVE5", domain.DiscountType("bogo"), 5),
		"zero value":       promo("SAVE0", domain.DiscountFixed, 0),
		"over 100 percent": promo("ALL", domain.DiscountPercentage, 101),
	}
	reversed := promo("BACKWARDS", domain.DiscountFixed, 5)
	reversed.StartsAt, reversed.EndsAt = reversed.EndsAt, reversed.StartsAt
	bad["end before start"] = reversed

	for name, p := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, p)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	created, err := svc.Create(ctx, promo("harmattan10", domain.DiscountPercentage, 10))
	require.NoError(t, err)
	require.Equal(t, "HARMATTAN10", created.Code)

	_, err = svc.Create(ctx, promo("Harmattan10", domain.DiscountFixed, 3))
	require.ErrorIs(t, err, ErrConflict)
}

func TestPromotion_ValidateQuotesDiscount(t *testing.T) {
	ctx := context.Background()
	svc := newPromotionService(t)

	_, err := svc.Create(ctx, promo("TENOFF", domain.DiscountPercentage, 10))
	require.NoError(t, err)
	_, err = svc.Create(ctx, promo("FIVE", domain.DiscountFixed, 5))
	require.NoError(t, err)

	amount := decimal.RequireFromString("45.50")
	q, err := svc.Validate(ctx, "tenoff", &amount)
	require.NoError(t, err)
	require.True(t, q.Discount.Equal(decimal.RequireFromString("4.55")), "discount %s", q.Discount)
	require.True(t, q.Total.Equal(decimal.RequireFromString("40.95")), "total %s", q.Total)

	small := decimal.NewFromInt(3)
	q, err = svc.Validate(ctx, "FIVE", &small)
	require.NoError(t, err)
	require.True(t, q.Discount.Equal(small), "fixed discount must be capped at total")
	require.True(t, q.Total.IsZero())

	q, err = svc.Validate(ctx, "FIVE", nil)
	require.NoError(t, err)
	require.True(t, q.Discount.IsZero())
}

func TestPromotion_ValidateRejectsUnusableCodes(t *testing.T) {
	ctx := context.Background()
	svc := newPromotionService(t)
	now := fixedClock()

	expired := promo("EXPIRED", domain.DiscountFixed, 5)
	expired.StartsAt, expired.EndsAt = now.Add(-48*time.Hour), now.Add(-time.Hour)
	upcoming := promo("UPCOMING", domain.DiscountFixed, 5)
	upcoming.StartsAt, upcoming.EndsAt = now.Add(time.Hour), now.Add(48*time.Hour)
	inactive := promo("PAUSED", domain.DiscountFixed, 5)
	inactive.Active = false
	zero := int64(0)
	exhausted := promo("USEDUP", domain.DiscountFixed, 5)
	exhausted.UsageLimit = &zero

	for _, p := range []domain.Promotion{expired, upcoming, inactive, exhausted} {
		_, err := svc.Create(ctx, p)
		require.NoError(t, err)
	}

	for _, code := range []string{"EXPIRED", "UPCOMING", "PAUSED", "USEDUP", "NOSUCHCODE"} {
		t.Run(code, func(t *testing.T) {
			_, err := svc.Validate(ctx, code, nil)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected validation error, got %v", err)
			}
			require.Contains(t, verr.Fields, "code")
		})
	}
}

func TestPromotion_UpdatePatchesFields(t *testing.T) {
	ctx := context.Background()
	svc := newPromotionService(t)

	p, err := svc.Create(ctx, promo("SPRING", domain.DiscountFixed, 5))
	require.NoError(t, err)
	_, err = svc.Create(ctx, promo("SUMMER", domain.DiscountFixed, 5))
	require.NoError(t, err)

	inactive := false
	value := decimal.NewFromInt(8)
	upd, err := svc.Update(ctx, p.ID, PromotionPatch{Active: &inactive, DiscountValue: &value})
	require.NoError(t, err)
	require.False(t, upd.Active)
	require.True(t, upd.DiscountValue.Equal(value))
	require.Equal(t, "SPRING", upd.Code)

	taken := "summer"
	_, err = svc.Update(ctx, p.ID, PromotionPatch{Code: &taken})
	require.ErrorIs(t, err, ErrConflict)

	pct := domain.DiscountPercentage
	big := decimal.NewFromInt(150)
	_, err = svc.Update(ctx, p.ID, PromotionPatch{DiscountType: &pct, DiscountValue: &big})
	require.ErrorIs(t, err, ErrInvalidInput)

	require.NoError(t, svc.Delete(ctx, p.ID))
	require.ErrorIs(t, svc.Delete(ctx, p.ID), repository.ErrNotFound)
}
