package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderPaid      OrderStatus = "PAID"
	OrderFailed    OrderStatus = "FAILED"
	OrderFulfilled OrderStatus = "FULFILLED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// IsTerminal reports whether callbacks for this order are already settled.
// Everything except PENDING short-circuits reconciliation.
func (s OrderStatus) IsTerminal() bool {
	return s != OrderPending
}

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderPending: {OrderPaid, OrderFailed, OrderCancelled, OrderFulfilled},
	OrderPaid:    {OrderFulfilled},
}

func CanTransitionTo(from, to OrderStatus) bool {
	for _, t := range orderTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) String() string {
	return string(s)
}

type Order struct {
	ID               uuid.UUID       `json:"id"`
	UserID           string          `json:"userId,omitempty"`
	CustomerName     string          `json:"customerName"`
	PhoneNumber      string          `json:"phoneNumber"`
	DeliveryLocation string          `json:"deliveryLocation"`
	TotalAmount      decimal.Decimal `json:"totalAmount"`
	Status           OrderStatus     `json:"status"`

	// Gateway correlation fields, opaque strings assigned by the provider.
	// CheckoutRequestID is the sole lookup key for reconciling callbacks.
	CheckoutRequestID string `json:"checkoutRequestId,omitempty"`
	MerchantRequestID string `json:"merchantRequestId,omitempty"`
	ReceiptNumber     string `json:"receiptNumber,omitempty"`

	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// OrderItem is an immutable snapshot of a cart line item. It copies the
// product name and unit price so later catalog changes cannot rewrite
// order history.
type OrderItem struct {
	ID          uuid.UUID       `json:"id"`
	OrderID     uuid.UUID       `json:"orderId"`
	ProductName string          `json:"productName"`
	Size        string          `json:"size"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
}

func (i *OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
