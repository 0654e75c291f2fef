package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartRef identifies the owner of a cart: an authenticated user or an
// anonymous session, exactly one of the two.
type CartRef struct {
	UserID     string `json:"userId,omitempty"`
	SessionKey string `json:"sessionKey,omitempty"`
}

func (r CartRef) Anonymous() bool { return r.UserID == "" }

func (r CartRef) Key() string {
	if r.UserID != "" {
		return "user:" + r.UserID
	}
	return "session:" + r.SessionKey
}

type Cart struct {
	ID         uuid.UUID  `json:"id"`
	UserID     string     `json:"userId,omitempty"`
	SessionKey string     `json:"sessionKey,omitempty"`
	Items      []CartItem `json:"items"`
	// Version is bumped on every item mutation. Checkout clears items with a
	// compare-and-clear against the version it snapshotted.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type CartItem struct {
	ID        uuid.UUID `json:"id"`
	CartID    uuid.UUID `json:"cartId"`
	ProductID uuid.UUID `json:"productId"`
	Size      string    `json:"size"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Find returns the line item for a (product, size) pair, if present.
// At most one such item exists per cart.
func (c *Cart) Find(productID uuid.UUID, size string) *CartItem {
	for i := range c.Items {
		if c.Items[i].ProductID == productID && c.Items[i].Size == size {
			return &c.Items[i]
		}
	}
	return nil
}

func (c *Cart) ItemCount() int {
	n := 0
	for i := range c.Items {
		n += c.Items[i].Quantity
	}
	return n
}

// CartSnapshot is the frozen view of a cart taken at order-creation time.
// Prices are captured here and never recomputed.
type CartSnapshot struct {
	Items      []CartSnapshotItem `json:"items"`
	Total      decimal.Decimal    `json:"total"`
	Version    int64              `json:"version"`
	CapturedAt time.Time          `json:"capturedAt"`
}

type CartSnapshotItem struct {
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}
