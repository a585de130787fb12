package repository

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"storefront/internal/domain"
)

// Reviews

type MemoryReviews struct{ store *MemoryStore }

func NewMemoryReviews(store *MemoryStore) *MemoryReviews { return &MemoryReviews{store: store} }

var _ ReviewRepository = (*MemoryReviews)(nil)

func (mr *MemoryReviews) Create(ctx context.Context, r *domain.Review) error {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	if _, ok := mr.store.products[r.ProductID]; !ok {
		return ErrNotFound
	}
	for _, existing := range mr.store.reviews {
		if existing.ProductID == r.ProductID && existing.UserID == r.UserID {
			return ErrDuplicate
		}
	}
	r.ID = uuid.New()
	r.CreatedAt = mr.store.now()
	r.UpdatedAt = r.CreatedAt
	r.UserName = ""
	mr.store.reviews[r.ID] = *r
	r.UserName = mr.store.users[r.UserID].Name
	return nil
}

func (mr *MemoryReviews) GetByID(ctx context.Context, id uuid.UUID) (*domain.Review, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	r, ok := mr.store.reviews[id]
	if !ok {
		return nil, ErrNotFound
	}
	r.UserName = mr.store.users[r.UserID].Name
	return &r, nil
}

func (mr *MemoryReviews) ListByProduct(ctx context.Context, productID uuid.UUID) ([]domain.Review, error) {
	mr.store.rlock(ctx)
	defer mr.store.runlock(ctx)
	out := make([]domain.Review, 0)
	for _, r := range mr.store.reviews {
		if r.ProductID != productID {
			continue
		}
		r.UserName = mr.store.users[r.UserID].Name
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// Update меняет только оценку и комментарий
func (mr *MemoryReviews) Update(ctx context.Context, r *domain.Review) error {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	existing, ok := mr.store.reviews[r.ID]
	if !ok {
		return ErrNotFound
	}
	existing.Rating = r.Rating
	existing.Comment = r.Comment
	existing.UpdatedAt = mr.store.now()
	mr.store.reviews[r.ID] = existing
	*r = existing
	r.UserName = mr.store.users[r.UserID].Name
	return nil
}

func (mr *MemoryReviews) Delete(ctx context.Context, id uuid.UUID) error {
	mr.store.wlock(ctx)
	defer mr.store.wunlock(ctx)
	if _, ok := mr.store.reviews[id]; !ok {
		return ErrNotFound
	}
	delete(mr.store.reviews, id)
	return nil
}

// Wishlists

type MemoryWishlists struct{ store *MemoryStore }

func NewMemoryWishlists(store *MemoryStore) *MemoryWishlists { return &MemoryWishlists{store: store} }

var _ WishlistRepository = (*MemoryWishlists)(nil)

func (mw *MemoryWishlists) Add(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	mw.store.wlock(ctx)
	defer mw.store.wunlock(ctx)
	if _, ok := mw.store.products[productID]; !ok {
		return nil, ErrNotFound
	}
	for _, w := range mw.store.wishlists {
		if w.UserID == userID && w.ProductID == productID {
			return nil, ErrDuplicate
		}
	}
	item := domain.WishlistItem{
		ID:        uuid.New(),
		UserID:    userID,
		ProductID: productID,
		CreatedAt: mw.store.now(),
	}
	mw.store.wishlists[item.ID] = item
	out, _ := mw.withProduct(item)
	return &out, nil
}

func (mw *MemoryWishlists) Remove(ctx context.Context, userID, productID uuid.UUID) (*domain.WishlistItem, error) {
	mw.store.wlock(ctx)
	defer mw.store.wunlock(ctx)
	for id, w := range mw.store.wishlists {
		if w.UserID == userID && w.ProductID == productID {
			delete(mw.store.wishlists, id)
			out, _ := mw.withProduct(w)
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (mw *MemoryWishlists) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.WishlistItem, error) {
	return mw.list(ctx, func(w domain.WishlistItem) bool { return w.UserID == userID })
}

func (mw *MemoryWishlists) List(ctx context.Context) ([]domain.WishlistItem, error) {
	return mw.list(ctx, func(domain.WishlistItem) bool { return true })
}

func (mw *MemoryWishlists) list(ctx context.Context, keep func(domain.WishlistItem) bool) ([]domain.WishlistItem, error) {
	mw.store.rlock(ctx)
	defer mw.store.runlock(ctx)
	out := make([]domain.WishlistItem, 0)
	for _, w := range mw.store.wishlists {
		if !keep(w) {
			continue
		}
		// позиции удалённых товаров не показываем
		if item, ok := mw.withProduct(w); ok {
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// withProduct вызывается под блокировкой store
func (mw *MemoryWishlists) withProduct(w domain.WishlistItem) (domain.WishlistItem, bool) {
	p, ok := mw.store.products[w.ProductID]
	if ok {
		w.Name = p.Name
		w.Price = p.Price
	}
	w.UserName = mw.store.users[w.UserID].Name
	return w, ok
}

// Promotions

type MemoryPromotions struct{ store *MemoryStore }

func NewMemoryPromotions(store *MemoryStore) *MemoryPromotions { return &MemoryPromotions{store: store} }

var _ PromotionRepository = (*MemoryPromotions)(nil)

func clonePromotion(p domain.Promotion) domain.Promotion {
	if p.UsageLimit != nil {
		limit := *p.UsageLimit
		p.UsageLimit = &limit
	}
	return p
}

func (mp *MemoryPromotions) Create(ctx context.Context, p *domain.Promotion) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	for _, existing := range mp.store.promotions {
		if strings.EqualFold(existing.Code, p.Code) {
			return ErrDuplicate
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = mp.store.now()
	p.UpdatedAt = p.CreatedAt
	mp.store.promotions[p.ID] = clonePromotion(*p)
	return nil
}

func (mp *MemoryPromotions) GetByID(ctx context.Context, id uuid.UUID) (*domain.Promotion, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	p, ok := mp.store.promotions[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := clonePromotion(p)
	return &cp, nil
}

func (mp *MemoryPromotions) GetByCode(ctx context.Context, code string) (*domain.Promotion, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	for _, p := range mp.store.promotions {
		if strings.EqualFold(p.Code, code) {
			cp := clonePromotion(p)
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mp *MemoryPromotions) Update(ctx context.Context, p *domain.Promotion) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	existing, ok := mp.store.promotions[p.ID]
	if !ok {
		return ErrNotFound
	}
	for id, other := range mp.store.promotions {
		if id != p.ID && strings.EqualFold(other.Code, p.Code) {
			return ErrDuplicate
		}
	}
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = mp.store.now()
	mp.store.promotions[p.ID] = clonePromotion(*p)
	return nil
}

func (mp *MemoryPromotions) Delete(ctx context.Context, id uuid.UUID) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	if _, ok := mp.store.promotions[id]; !ok {
		return ErrNotFound
	}
	delete(mp.store.promotions, id)
	return nil
}

func (mp *MemoryPromotions) List(ctx context.Context) ([]domain.Promotion, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	out := make([]domain.Promotion, 0, len(mp.store.promotions))
	for _, p := range mp.store.promotions {
		out = append(out, clonePromotion(p))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}
