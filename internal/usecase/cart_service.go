package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/cache"
	"github.com/kihuni/Hoodie-Hub/internal/logging"
)

type ProductRepo interface {
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, bool)
	ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error)
	PutProduct(ctx context.Context, p *domain.Product) error
}

type CartRepo interface {
	GetCartByRef(ctx context.Context, ref domain.CartRef) (*domain.Cart, bool)
	CreateCart(ctx context.Context, c *domain.Cart) error
	GetCartItem(ctx context.Context, itemID uuid.UUID) (*domain.CartItem, bool)
	PutCartItem(ctx context.Context, it *domain.CartItem) error
	DeleteCartItem(ctx context.Context, itemID uuid.UUID) error
	ClearCartItems(ctx context.Context, cartID uuid.UUID, version int64) (bool, error)
	DeleteCart(ctx context.Context, cartID uuid.UUID) error
}

// CartService owns all cart mutations. Reads go through the cache with
// singleflight collapsing concurrent misses; every mutation writes through
// the repository and invalidates the cached entry.
type CartService struct {
	Repo     CartRepo
	Products ProductRepo
	Cache    cache.CartCache

	group singleflight.Group
}

func NewCartService(repo CartRepo, products ProductRepo, c cache.CartCache) *CartService {
	return &CartService{Repo: repo, Products: products, Cache: c}
}

// GetOrCreate returns the owner's cart, creating an empty one on first touch.
func (s *CartService) GetOrCreate(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	if s.Cache != nil {
		if cart, err := s.Cache.Get(ctx, ref.Key()); err == nil {
			return cart, nil
		}
	}
	v, err, _ := s.group.Do(ref.Key(), func() (any, error) {
		cart, err := s.load(ctx, ref)
		if err != nil {
			return nil, err
		}
		if s.Cache != nil {
			if err := s.Cache.Set(ctx, ref.Key(), cart); err != nil {
				logging.Log(logging.Event{Component: "cart", CartID: cart.ID.String(), Step: "cache_set", Status: "error", Error: err.Error()})
			}
		}
		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Cart), nil
}

// Fresh bypasses the cache, always reading the repository. Checkout uses it
// so the snapshot version reflects current state.
func (s *CartService) Fresh(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	return s.load(ctx, ref)
}

func (s *CartService) load(ctx context.Context, ref domain.CartRef) (*domain.Cart, error) {
	if cart, ok := s.Repo.GetCartByRef(ctx, ref); ok {
		return cart, nil
	}
	now := time.Now().UTC()
	cart := &domain.Cart{
		ID:         uuid.New(),
		UserID:     ref.UserID,
		SessionKey: ref.SessionKey,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.CreateCart(ctx, cart); err != nil {
		return nil, fmt.Errorf("create cart: %w", err)
	}
	return cart, nil
}

// AddItem adds quantity of a (product, size) pair, merging into an existing
// line item. Stock is validated against the combined quantity.
func (s *CartService) AddItem(ctx context.Context, ref domain.CartRef, productID uuid.UUID, size string, quantity int) (*domain.Cart, error) {
	if quantity <= 0 {
		return nil, ErrBadRequest("quantity must be positive")
	}
	product, ok := s.Products.GetProduct(ctx, productID)
	if !ok || !product.Active {
		return nil, ErrProductNotFound
	}
	if !product.HasSize(size) {
		return nil, ErrBadRequest("size not available for this product")
	}
	if product.StockQuantity <= 0 {
		return nil, ErrOutOfStock
	}

	cart, err := s.Fresh(ctx, ref)
	if err != nil {
		return nil, err
	}
	want := quantity
	item := cart.Find(productID, size)
	if item != nil {
		want += item.Quantity
	}
	if want > product.StockQuantity {
		return nil, ErrInsufficientStock
	}

	if item == nil {
		item = &domain.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			ProductID: productID,
			Size:      size,
			CreatedAt: time.Now().UTC(),
		}
	}
	item.Quantity = want
	if err := s.Repo.PutCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("put cart item: %w", err)
	}
	s.invalidate(ctx, ref)
	return s.Fresh(ctx, ref)
}

// UpdateItem replaces a line item's quantity. Zero or negative removes the
// item. Increases are re-validated against current stock.
func (s *CartService) UpdateItem(ctx context.Context, ref domain.CartRef, itemID uuid.UUID, quantity int) (*domain.Cart, error) {
	item, ok := s.Repo.GetCartItem(ctx, itemID)
	if !ok {
		return nil, ErrItemNotFound
	}
	cart, err := s.Fresh(ctx, ref)
	if err != nil {
		return nil, err
	}
	// Items can only be changed through the cart that owns them.
	if item.CartID != cart.ID {
		return nil, ErrItemNotFound
	}
	if quantity <= 0 {
		return s.RemoveItem(ctx, ref, itemID)
	}
	product, ok := s.Products.GetProduct(ctx, item.ProductID)
	if !ok {
		return nil, ErrProductNotFound
	}
	if quantity > product.StockQuantity {
		return nil, ErrInsufficientStock
	}
	item.Quantity = quantity
	if err := s.Repo.PutCartItem(ctx, item); err != nil {
		return nil, fmt.Errorf("put cart item: %w", err)
	}
	s.invalidate(ctx, ref)
	return s.Fresh(ctx, ref)
}

// RemoveItem deletes a line item. Removing an absent item is a no-op;
// removing an item owned by a different cart is refused.
func (s *CartService) RemoveItem(ctx context.Context, ref domain.CartRef, itemID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.Fresh(ctx, ref)
	if err != nil {
		return nil, err
	}
	if item, ok := s.Repo.GetCartItem(ctx, itemID); ok && item.CartID != cart.ID {
		return nil, ErrItemNotFound
	}
	if err := s.Repo.DeleteCartItem(ctx, itemID); err != nil {
		return nil, fmt.Errorf("delete cart item: %w", err)
	}
	s.invalidate(ctx, ref)
	return s.Fresh(ctx, ref)
}

// Snapshot freezes the cart's items against live catalog prices.
func (s *CartService) Snapshot(ctx context.Context, cart *domain.Cart) (*domain.CartSnapshot, error) {
	snap := &domain.CartSnapshot{
		Version:    cart.Version,
		Total:      decimal.Zero,
		CapturedAt: time.Now().UTC(),
	}
	for _, item := range cart.Items {
		product, ok := s.Products.GetProduct(ctx, item.ProductID)
		if !ok {
			return nil, ErrProductNotFound
		}
		subtotal := product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		snap.Items = append(snap.Items, domain.CartSnapshotItem{
			ProductID:   item.ProductID,
			ProductName: product.Name,
			Size:        item.Size,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
			Subtotal:    subtotal,
		})
		snap.Total = snap.Total.Add(subtotal)
	}
	return snap, nil
}

// Total prices the cart at current catalog prices.
func (s *CartService) Total(ctx context.Context, ref domain.CartRef) (decimal.Decimal, error) {
	cart, err := s.GetOrCreate(ctx, ref)
	if err != nil {
		return decimal.Zero, err
	}
	snap, err := s.Snapshot(ctx, cart)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Total, nil
}

// ClearAfterCheckout empties the cart only if it still matches the version
// the checkout snapshotted. Returns false when a concurrent mutation won.
func (s *CartService) ClearAfterCheckout(ctx context.Context, ref domain.CartRef, cartID uuid.UUID, version int64) (bool, error) {
	cleared, err := s.Repo.ClearCartItems(ctx, cartID, version)
	if err != nil {
		return false, fmt.Errorf("clear cart: %w", err)
	}
	s.invalidate(ctx, ref)
	return cleared, nil
}

// MergeInto moves every item of the source cart into the target cart,
// summing quantities for matching (product, size) pairs, then deletes the
// source cart. Used on login (session cart into user cart) and on logout
// (user cart handed to a fresh session).
func (s *CartService) MergeInto(ctx context.Context, target, source domain.CartRef) error {
	src, ok := s.Repo.GetCartByRef(ctx, source)
	if !ok || len(src.Items) == 0 {
		if ok {
			if err := s.Repo.DeleteCart(ctx, src.ID); err != nil {
				return fmt.Errorf("delete source cart: %w", err)
			}
		}
		s.invalidate(ctx, source)
		return nil
	}
	dst, err := s.Fresh(ctx, target)
	if err != nil {
		return err
	}
	for _, item := range src.Items {
		moved := domain.CartItem{
			ID:        uuid.New(),
			CartID:    dst.ID,
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			CreatedAt: item.CreatedAt,
		}
		if existing := dst.Find(item.ProductID, item.Size); existing != nil {
			moved.ID = existing.ID
			moved.Quantity += existing.Quantity
		}
		if err := s.Repo.PutCartItem(ctx, &moved); err != nil {
			return fmt.Errorf("merge cart item: %w", err)
		}
	}
	if err := s.Repo.DeleteCart(ctx, src.ID); err != nil {
		return fmt.Errorf("delete source cart: %w", err)
	}
	s.invalidate(ctx, source)
	s.invalidate(ctx, target)
	return nil
}

func (s *CartService) invalidate(ctx context.Context, ref domain.CartRef) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, ref.Key()); err != nil {
		logging.Log(logging.Event{Component: "cart", Step: "cache_invalidate", Status: "error", Error: err.Error()})
	}
}
