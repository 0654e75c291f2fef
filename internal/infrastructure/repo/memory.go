package repo

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
)

// In-memory repositories with the same conditional-update semantics as the
// postgres implementation. Used for tests and DSN-less dev runs.

type MemoryProductRepo struct {
	mu sync.RWMutex
	m  map[uuid.UUID]*domain.Product
}

func NewMemoryProductRepo() *MemoryProductRepo {
	return &MemoryProductRepo{m: make(map[uuid.UUID]*domain.Product)}
}

func (r *MemoryProductRepo) GetProduct(_ context.Context, id uuid.UUID) (*domain.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[id]
	if !ok {
		return nil, false
	}
	cp := *p
	return &cp, true
}

func (r *MemoryProductRepo) ListProducts(_ context.Context, activeOnly bool) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.m))
	for _, p := range r.m {
		if activeOnly && !p.Active {
			continue
		}
		out = append(out, *p)
	}
	return out, nil
}

func (r *MemoryProductRepo) PutProduct(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.m[p.ID] = &cp
	return nil
}

type MemoryUserRepo struct {
	mu sync.RWMutex
	m  map[string]*domain.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{m: make(map[string]*domain.User)}
}

func (r *MemoryUserRepo) PutUser(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.m[u.UserID] = &cp
	return nil
}

func (r *MemoryUserRepo) GetUser(_ context.Context, id string) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.m[id]
	if !ok {
		return nil, false
	}
	cp := *u
	return &cp, true
}

func (r *MemoryUserRepo) GetUserByUsername(_ context.Context, username string) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, u := range r.m {
		if u.Username == username {
			cp := *u
			return &cp, true
		}
	}
	return nil, false
}

type MemoryCartRepo struct {
	mu    sync.Mutex
	carts map[uuid.UUID]*domain.Cart
	items map[uuid.UUID]*domain.CartItem
}

func NewMemoryCartRepo() *MemoryCartRepo {
	return &MemoryCartRepo{
		carts: make(map[uuid.UUID]*domain.Cart),
		items: make(map[uuid.UUID]*domain.CartItem),
	}
}

func (r *MemoryCartRepo) GetCartByRef(_ context.Context, ref domain.CartRef) (*domain.Cart, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.carts {
		if (ref.UserID != "" && c.UserID == ref.UserID) ||
			(ref.UserID == "" && ref.SessionKey != "" && c.SessionKey == ref.SessionKey) {
			return r.loadCart(c), true
		}
	}
	return nil, false
}

func (r *MemoryCartRepo) loadCart(c *domain.Cart) *domain.Cart {
	cp := *c
	cp.Items = nil
	for _, it := range r.items {
		if it.CartID == c.ID {
			cp.Items = append(cp.Items, *it)
		}
	}
	return &cp
}

func (r *MemoryCartRepo) CreateCart(_ context.Context, c *domain.Cart) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.Items = nil
	r.carts[c.ID] = &cp
	return nil
}

func (r *MemoryCartRepo) GetCartItem(_ context.Context, itemID uuid.UUID) (*domain.CartItem, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok {
		return nil, false
	}
	cp := *it
	return &cp, true
}

func (r *MemoryCartRepo) PutCartItem(_ context.Context, it *domain.CartItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.items {
		if existing.CartID == it.CartID && existing.ProductID == it.ProductID && existing.Size == it.Size {
			existing.Quantity = it.Quantity
			r.bump(it.CartID)
			return nil
		}
	}
	cp := *it
	r.items[it.ID] = &cp
	r.bump(it.CartID)
	return nil
}

func (r *MemoryCartRepo) DeleteCartItem(_ context.Context, itemID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	it, ok := r.items[itemID]
	if !ok {
		return nil
	}
	delete(r.items, itemID)
	r.bump(it.CartID)
	return nil
}

func (r *MemoryCartRepo) ClearCartItems(_ context.Context, cartID uuid.UUID, version int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.carts[cartID]
	if !ok || c.Version != version {
		return false, nil
	}
	for id, it := range r.items {
		if it.CartID == cartID {
			delete(r.items, id)
		}
	}
	r.bump(cartID)
	return true, nil
}

func (r *MemoryCartRepo) DeleteCart(_ context.Context, cartID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, it := range r.items {
		if it.CartID == cartID {
			delete(r.items, id)
		}
	}
	delete(r.carts, cartID)
	return nil
}

func (r *MemoryCartRepo) bump(cartID uuid.UUID) {
	if c, ok := r.carts[cartID]; ok {
		c.Version++
		c.UpdatedAt = time.Now().UTC()
	}
}

type MemoryOrderRepo struct {
	mu     sync.Mutex
	orders map[uuid.UUID]*domain.Order
	outbox []*OutboxEvent
	nextID int64
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{orders: make(map[uuid.UUID]*domain.Order), nextID: 1}
}

func (r *MemoryOrderRepo) CreateOrder(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	r.orders[o.ID] = &cp
	return nil
}

func (r *MemoryOrderRepo) GetOrder(_ context.Context, id uuid.UUID) (*domain.Order, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, false
	}
	return copyOrder(o), true
}

func (r *MemoryOrderRepo) GetOrderByCheckoutRequestID(_ context.Context, checkoutRequestID string) (*domain.Order, bool) {
	if checkoutRequestID == "" {
		return nil, false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.CheckoutRequestID == checkoutRequestID {
			return copyOrder(o), true
		}
	}
	return nil, false
}

func (r *MemoryOrderRepo) ListOrdersByUser(_ context.Context, userID string) ([]domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Order
	for _, o := range r.orders {
		if o.UserID == userID {
			out = append(out, *copyOrder(o))
		}
	}
	return out, nil
}

func (r *MemoryOrderRepo) SetPaymentRequest(_ context.Context, orderID uuid.UUID, checkoutRequestID, merchantRequestID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[orderID]; ok {
		o.CheckoutRequestID = checkoutRequestID
		o.MerchantRequestID = merchantRequestID
		o.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *MemoryOrderRepo) TransitionOrder(_ context.Context, orderID uuid.UUID, from, to domain.OrderStatus, receipt string) (bool, error) {
	if !domain.CanTransitionTo(from, to) {
		return false, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if receipt != "" {
		o.ReceiptNumber = receipt
	}
	o.UpdatedAt = time.Now().UTC()
	r.outbox = append(r.outbox, &OutboxEvent{
		ID:          r.nextID,
		AggregateID: orderID.String(),
		EventType:   orderEventType(to),
		Payload:     []byte(`{"order_id":"` + orderID.String() + `","status":"` + string(to) + `"}`),
		CreatedAt:   time.Now().UTC(),
	})
	r.nextID++
	return true, nil
}

func (r *MemoryOrderRepo) UnprocessedEvents(_ context.Context, limit int) ([]*OutboxEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*OutboxEvent
	for _, e := range r.outbox {
		if e.ProcessedAt == nil {
			cp := *e
			out = append(out, &cp)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (r *MemoryOrderRepo) MarkEventProcessed(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.outbox {
		if e.ID == id {
			now := time.Now().UTC()
			e.ProcessedAt = &now
		}
	}
	return nil
}

func copyOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}
