package repository

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/internal/domain"
)

// MemoryStore объединённое in-memory хранилище для тестов и локального запуска
type MemoryStore struct {
	mu            sync.RWMutex
	products      map[uuid.UUID]domain.Product
	orders        map[uuid.UUID]domain.Order
	deliveries    map[uuid.UUID]domain.Delivery // ключ: order_id
	notifications map[uuid.UUID]domain.Notification
	users         map[uuid.UUID]domain.User
	devices       map[string]domain.Device
	reviews       map[uuid.UUID]domain.Review
	wishlists     map[uuid.UUID]domain.WishlistItem
	promotions    map[uuid.UUID]domain.Promotion
	outbox        []domain.OutboxEvent
	nextEventID   int64
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:      make(map[uuid.UUID]domain.Product),
		orders:        make(map[uuid.UUID]domain.Order),
		deliveries:    make(map[uuid.UUID]domain.Delivery),
		notifications: make(map[uuid.UUID]domain.Notification),
		users:         make(map[uuid.UUID]domain.User),
		devices:       make(map[string]domain.Device),
		reviews:       make(map[uuid.UUID]domain.Review),
		wishlists:     make(map[uuid.UUID]domain.WishlistItem),
		promotions:    make(map[uuid.UUID]domain.Promotion),
		nextEventID:   1,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// NewMemoryRepositories собирает все репозитории поверх одного MemoryStore
func NewMemoryRepositories(store *MemoryStore) Repositories {
	return Repositories{
		Products:      NewMemoryProducts(store),
		Orders:        NewMemoryOrders(store),
		Deliveries:    NewMemoryDeliveries(store),
		Notifications: NewMemoryNotifications(store),
		Users:         NewMemoryUsers(store),
		Devices:       NewMemoryDevices(store),
		Reviews:       NewMemoryReviews(store),
		Wishlists:     NewMemoryWishlists(store),
		Promotions:    NewMemoryPromotions(store),
		Outbox:        NewMemoryOutbox(store),
		Tx:            NewMemoryTx(store),
		Ping:          func(context.Context) error { return nil },
	}
}

// transaction-aware locking helpers
type txKey struct{}

func isTx(ctx context.Context) bool {
	v := ctx.Value(txKey{})
	if v == nil {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

func (m *MemoryStore) rlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RLock()
	}
}
func (m *MemoryStore) runlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.RUnlock()
	}
}
func (m *MemoryStore) wlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Lock()
	}
}
func (m *MemoryStore) wunlock(ctx context.Context) {
	if !isTx(ctx) {
		m.mu.Unlock()
	}
}

type memorySnapshot struct {
	products      map[uuid.UUID]domain.Product
	orders        map[uuid.UUID]domain.Order
	deliveries    map[uuid.UUID]domain.Delivery
	notifications map[uuid.UUID]domain.Notification
	users         map[uuid.UUID]domain.User
	devices       map[string]domain.Device
	reviews       map[uuid.UUID]domain.Review
	wishlists     map[uuid.UUID]domain.WishlistItem
	promotions    map[uuid.UUID]domain.Promotion
	outbox        []domain.OutboxEvent
	nextEventID   int64
}

// snapshot вызывается под write-lock; значения не мутируются на месте, поэтому хватает поверхностной копии
func (m *MemoryStore) snapshot() memorySnapshot {
	return memorySnapshot{
		products:      maps.Clone(m.products),
		orders:        maps.Clone(m.orders),
		deliveries:    maps.Clone(m.deliveries),
		notifications: maps.Clone(m.notifications),
		users:         maps.Clone(m.users),
		devices:       maps.Clone(m.devices),
		reviews:       maps.Clone(m.reviews),
		wishlists:     maps.Clone(m.wishlists),
		promotions:    maps.Clone(m.promotions),
		outbox:        append([]domain.OutboxEvent(nil), m.outbox...),
		nextEventID:   m.nextEventID,
	}
}

func (m *MemoryStore) restore(s memorySnapshot) {
	m.products = s.products
	m.orders = s.orders
	m.deliveries = s.deliveries
	m.notifications = s.notifications
	m.users = s.users
	m.devices = s.devices
	m.reviews = s.reviews
	m.wishlists = s.wishlists
	m.promotions = s.promotions
	m.outbox = s.outbox
	m.nextEventID = s.nextEventID
}

// Products

type MemoryProducts struct{ store *MemoryStore }

func NewMemoryProducts(store *MemoryStore) *MemoryProducts { return &MemoryProducts{store: store} }

var _ ProductRepository = (*MemoryProducts)(nil)

func (mp *MemoryProducts) Create(ctx context.Context, p *domain.Product) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	for _, existing := range mp.store.products {
		if existing.SKU == p.SKU {
			return ErrDuplicate
		}
	}
	p.ID = uuid.New()
	p.CreatedAt = mp.store.now()
	p.UpdatedAt = p.CreatedAt
	mp.store.products[p.ID] = *p
	return nil
}

func (mp *MemoryProducts) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	p, ok := mp.store.products[id]
	if !ok {
		return nil, ErrNotFound
	}
	// return copy
	cp := p
	return &cp, nil
}

func (mp *MemoryProducts) Update(ctx context.Context, p *domain.Product) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	existing, ok := mp.store.products[p.ID]
	if !ok {
		return ErrNotFound
	}
	p.SKU = existing.SKU
	p.CreatedAt = existing.CreatedAt
	p.UpdatedAt = mp.store.now()
	mp.store.products[p.ID] = *p
	return nil
}

func (mp *MemoryProducts) Delete(ctx context.Context, id uuid.UUID) error {
	mp.store.wlock(ctx)
	defer mp.store.wunlock(ctx)
	if _, ok := mp.store.products[id]; !ok {
		return ErrNotFound
	}
	delete(mp.store.products, id)
	// как ON DELETE CASCADE в схеме
	for rid, r := range mp.store.reviews {
		if r.ProductID == id {
			delete(mp.store.reviews, rid)
		}
	}
	for wid, w := range mp.store.wishlists {
		if w.ProductID == id {
			delete(mp.store.wishlists, wid)
		}
	}
	return nil
}

func (mp *MemoryProducts) List(ctx context.Context, f ProductFilter) ([]domain.Product, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	out := make([]domain.Product, 0)
	for _, p := range mp.store.products {
		if !containsIgnoreCase(p.Name, f.NameSubstring) {
			continue
		}
		if f.MinPrice != nil && p.Price.LessThan(*f.MinPrice) {
			continue
		}
		if f.MaxPrice != nil && p.Price.GreaterThan(*f.MaxPrice) {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (mp *MemoryProducts) Count(ctx context.Context) (int64, error) {
	mp.store.rlock(ctx)
	defer mp.store.runlock(ctx)
	return int64(len(mp.store.products)), nil
}

// Orders

type MemoryOrders struct{ store *MemoryStore }

func NewMemoryOrders(store *MemoryStore) *MemoryOrders { return &MemoryOrders{store: store} }

var _ OrderRepository = (*MemoryOrders)(nil)

func (mo *MemoryOrders) Create(ctx context.Context, o *domain.Order) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	if ref := o.Reference(); ref != "" {
		for _, existing := range mo.store.orders {
			if existing.Reference() == ref {
				return ErrDuplicate
			}
		}
	}
	o.ID = uuid.New()
	o.CreatedAt = mo.store.now()
	o.UpdatedAt = o.CreatedAt
	for i := range o.Items {
		o.Items[i].ID = uuid.New()
		o.Items[i].OrderID = o.ID
	}
	mo.store.orders[o.ID] = o.Clone()
	return nil
}

func (mo *MemoryOrders) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := o.Clone()
	return &cp, nil
}

func (mo *MemoryOrders) GetByPaymentReference(ctx context.Context, reference string) (*domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	if reference == "" {
		return nil, ErrNotFound
	}
	for _, o := range mo.store.orders {
		if o.Reference() == reference {
			cp := o.Clone()
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mo *MemoryOrders) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0)
	for _, o := range mo.store.orders {
		if o.UserID == userID {
			out = append(out, o.Clone())
		}
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func (mo *MemoryOrders) List(ctx context.Context) ([]domain.Order, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	out := make([]domain.Order, 0, len(mo.store.orders))
	for _, o := range mo.store.orders {
		out = append(out, o.Clone())
	}
	sortOrdersNewestFirst(out)
	return out, nil
}

func (mo *MemoryOrders) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	mo.store.wlock(ctx)
	defer mo.store.wunlock(ctx)
	o, ok := mo.store.orders[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	o.UpdatedAt = mo.store.now()
	mo.store.orders[id] = o
	return nil
}

func (mo *MemoryOrders) Count(ctx context.Context) (int64, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	return int64(len(mo.store.orders)), nil
}

func (mo *MemoryOrders) TotalSales(ctx context.Context) (decimal.Decimal, error) {
	mo.store.rlock(ctx)
	defer mo.store.runlock(ctx)
	total := decimal.Zero
	for _, o := range mo.store.orders {
		if countsTowardSales(o.Status) {
			total = total.Add(o.TotalAmount)
		}
	}
	return total, nil
}

func sortOrdersNewestFirst(orders []domain.Order) {
	sort.SliceStable(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
}

// Deliveries

type MemoryDeliveries struct{ store *MemoryStore }

func NewMemoryDeliveries(store *MemoryStore) *MemoryDeliveries {
	return &MemoryDeliveries{store: store}
}

var _ DeliveryRepository = (*MemoryDeliveries)(nil)

func (md *MemoryDeliveries) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.Delivery, error) {
	md.store.rlock(ctx)
	defer md.store.runlock(ctx)
	d, ok := md.store.deliveries[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	return &d, nil
}

// GetOrCreate проверка и вставка под одним write-lock, поэтому вторая запись для заказа невозможна
func (md *MemoryDeliveries) GetOrCreate(ctx context.Context, d *domain.Delivery) (*domain.Delivery, bool, error) {
	md.store.wlock(ctx)
	defer md.store.wunlock(ctx)
	if existing, ok := md.store.deliveries[d.OrderID]; ok {
		return &existing, false, nil
	}
	if _, ok := md.store.orders[d.OrderID]; !ok {
		return nil, false, ErrNotFound
	}
	created := *d
	created.ID = uuid.New()
	created.CreatedAt = md.store.now()
	created.UpdatedAt = created.CreatedAt
	md.store.deliveries[d.OrderID] = created
	return &created, true, nil
}

func (md *MemoryDeliveries) UpdateStatus(ctx context.Context, orderID uuid.UUID, status domain.DeliveryStatus) (*domain.Delivery, error) {
	return md.update(ctx, orderID, func(d *domain.Delivery) { d.Status = status })
}

func (md *MemoryDeliveries) UpdateCourier(ctx context.Context, orderID uuid.UUID, courier string) (*domain.Delivery, error) {
	return md.update(ctx, orderID, func(d *domain.Delivery) { d.Courier = courier })
}

func (md *MemoryDeliveries) update(ctx context.Context, orderID uuid.UUID, apply func(d *domain.Delivery)) (*domain.Delivery, error) {
	md.store.wlock(ctx)
	defer md.store.wunlock(ctx)
	d, ok := md.store.deliveries[orderID]
	if !ok {
		return nil, ErrNotFound
	}
	apply(&d)
	d.UpdatedAt = md.store.now()
	md.store.deliveries[orderID] = d
	return &d, nil
}

func (md *MemoryDeliveries) List(ctx context.Context) ([]domain.DeliveryView, error) {
	md.store.rlock(ctx)
	defer md.store.runlock(ctx)
	out := make([]domain.DeliveryView, 0, len(md.store.deliveries))
	for orderID, d := range md.store.deliveries {
		view := domain.DeliveryView{Delivery: d}
		if o, ok := md.store.orders[orderID]; ok {
			view.UserID = o.UserID
			view.OrderTotal = o.TotalAmount
			view.OrderStatus = o.Status
			if u, ok := md.store.users[o.UserID]; ok {
				view.CustomerName = u.Name
				view.CustomerEmail = u.Email
			}
		}
		out = append(out, view)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (md *MemoryDeliveries) Couriers(ctx context.Context) ([]string, error) {
	md.store.rlock(ctx)
	defer md.store.runlock(ctx)
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, d := range md.store.deliveries {
		if d.Courier == "" {
			continue
		}
		if _, ok := seen[d.Courier]; ok {
			continue
		}
		seen[d.Courier] = struct{}{}
		out = append(out, d.Courier)
	}
	sort.Strings(out)
	return out, nil
}

// Notifications

type MemoryNotifications struct{ store *MemoryStore }

func NewMemoryNotifications(store *MemoryStore) *MemoryNotifications {
	return &MemoryNotifications{store: store}
}

var _ NotificationRepository = (*MemoryNotifications)(nil)

func (mn *MemoryNotifications) Create(ctx context.Context, n *domain.Notification) error {
	mn.store.wlock(ctx)
	defer mn.store.wunlock(ctx)
	n.ID = uuid.New()
	n.CreatedAt = mn.store.now()
	n.UpdatedAt = n.CreatedAt
	mn.store.notifications[n.ID] = *n
	return nil
}

func (mn *MemoryNotifications) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	mn.store.rlock(ctx)
	defer mn.store.runlock(ctx)
	n, ok := mn.store.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &n, nil
}

func (mn *MemoryNotifications) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	return mn.list(ctx, func(n domain.Notification) bool { return n.UserID == userID })
}

func (mn *MemoryNotifications) List(ctx context.Context) ([]domain.Notification, error) {
	return mn.list(ctx, func(domain.Notification) bool { return true })
}

func (mn *MemoryNotifications) list(ctx context.Context, keep func(domain.Notification) bool) ([]domain.Notification, error) {
	mn.store.rlock(ctx)
	defer mn.store.runlock(ctx)
	out := make([]domain.Notification, 0)
	for _, n := range mn.store.notifications {
		if keep(n) {
			out = append(out, n)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (mn *MemoryNotifications) MarkRead(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	mn.store.wlock(ctx)
	defer mn.store.wunlock(ctx)
	n, ok := mn.store.notifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	n.IsRead = true
	n.UpdatedAt = mn.store.now()
	mn.store.notifications[id] = n
	return &n, nil
}

// Users

type MemoryUsers struct{ store *MemoryStore }

func NewMemoryUsers(store *MemoryStore) *MemoryUsers { return &MemoryUsers{store: store} }

var _ UserRepository = (*MemoryUsers)(nil)

func (mu *MemoryUsers) Create(ctx context.Context, u *domain.User) error {
	mu.store.wlock(ctx)
	defer mu.store.wunlock(ctx)
	for _, existing := range mu.store.users {
		if existing.Email == u.Email {
			return ErrDuplicate
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = mu.store.now()
	u.UpdatedAt = u.CreatedAt
	mu.store.users[u.ID] = *u
	return nil
}

func (mu *MemoryUsers) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	u, ok := mu.store.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &u, nil
}

func (mu *MemoryUsers) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	for _, u := range mu.store.users {
		if u.Email == email {
			cp := u
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (mu *MemoryUsers) Count(ctx context.Context) (int64, error) {
	mu.store.rlock(ctx)
	defer mu.store.runlock(ctx)
	return int64(len(mu.store.users)), nil
}

// Devices

type MemoryDevices struct{ store *MemoryStore }

func NewMemoryDevices(store *MemoryStore) *MemoryDevices { return &MemoryDevices{store: store} }

var _ DeviceRepository = (*MemoryDevices)(nil)

func (mdv *MemoryDevices) Register(ctx context.Context, userID uuid.UUID, token string) error {
	mdv.store.wlock(ctx)
	defer mdv.store.wunlock(ctx)
	d, ok := mdv.store.devices[token]
	if !ok {
		d = domain.Device{Token: token, CreatedAt: mdv.store.now()}
	}
	d.UserID = userID
	d.Active = true
	mdv.store.devices[token] = d
	return nil
}

func (mdv *MemoryDevices) ActiveTokens(ctx context.Context, userID uuid.UUID) ([]string, error) {
	mdv.store.rlock(ctx)
	defer mdv.store.runlock(ctx)
	out := make([]string, 0)
	for _, d := range mdv.store.devices {
		if d.UserID == userID && d.Active {
			out = append(out, d.Token)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (mdv *MemoryDevices) Deactivate(ctx context.Context, token string) error {
	mdv.store.wlock(ctx)
	defer mdv.store.wunlock(ctx)
	d, ok := mdv.store.devices[token]
	if !ok {
		return ErrNotFound
	}
	d.Active = false
	mdv.store.devices[token] = d
	return nil
}

// Outbox

type MemoryOutbox struct{ store *MemoryStore }

func NewMemoryOutbox(store *MemoryStore) *MemoryOutbox { return &MemoryOutbox{store: store} }

var _ OutboxRepository = (*MemoryOutbox)(nil)

func (mob *MemoryOutbox) Save(ctx context.Context, e *domain.OutboxEvent) error {
	mob.store.wlock(ctx)
	defer mob.store.wunlock(ctx)
	e.ID = mob.store.nextEventID
	mob.store.nextEventID++
	e.CreatedAt = mob.store.now()
	mob.store.outbox = append(mob.store.outbox, *e)
	return nil
}

func (mob *MemoryOutbox) FetchUnpublished(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	mob.store.rlock(ctx)
	defer mob.store.runlock(ctx)
	out := make([]domain.OutboxEvent, 0)
	for _, e := range mob.store.outbox {
		if len(out) == limit {
			break
		}
		if e.PublishedAt == nil && e.Attempts < maxOutboxAttempts {
			out = append(out, e)
		}
	}
	return out, nil
}

func (mob *MemoryOutbox) MarkPublished(ctx context.Context, id int64) error {
	return mob.update(ctx, id, func(e *domain.OutboxEvent) {
		now := mob.store.now()
		e.PublishedAt = &now
		e.LastError = nil
	})
}

func (mob *MemoryOutbox) MarkFailed(ctx context.Context, id int64, reason string) error {
	return mob.update(ctx, id, func(e *domain.OutboxEvent) {
		e.Attempts++
		e.LastError = &reason
	})
}

func (mob *MemoryOutbox) update(ctx context.Context, id int64, apply func(e *domain.OutboxEvent)) error {
	mob.store.wlock(ctx)
	defer mob.store.wunlock(ctx)
	for i := range mob.store.outbox {
		if mob.store.outbox[i].ID == id {
			apply(&mob.store.outbox[i])
			return nil
		}
	}
	return ErrNotFound
}

// Tx manager using write lock to emulate transaction boundary
type MemoryTx struct{ store *MemoryStore }

func NewMemoryTx(store *MemoryStore) *MemoryTx { return &MemoryTx{store: store} }

func (tx *MemoryTx) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	// вложенная транзакция работает в рамках внешней
	if isTx(ctx) {
		return fn(ctx)
	}
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	snap := tx.store.snapshot()
	if err := fn(context.WithValue(ctx, txKey{}, true)); err != nil {
		tx.store.restore(snap)
		return err
	}
	return nil
}
