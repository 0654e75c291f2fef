package usecase

import "errors"

var (
	ErrEmptyCart         = errors.New("cart is empty, nothing to checkout")
	ErrProductNotFound   = errors.New("product not found")
	ErrOutOfStock        = errors.New("product is out of stock")
	ErrInsufficientStock = errors.New("requested quantity exceeds available stock")
	ErrItemNotFound      = errors.New("cart item not found")
	ErrOrderNotFound     = errors.New("order not found")
	ErrIllegalTransition = errors.New("illegal transition of order status")
)

// GatewayError carries the provider's message when a push is rejected, or a
// generic transport description when the gateway could not be reached.
type GatewayError struct {
	Message     string
	Unavailable bool
}

func (e *GatewayError) Error() string {
	if e.Message != "" {
		return "payment gateway: " + e.Message
	}
	return "payment gateway unavailable"
}

type ErrNotFound string

func (e ErrNotFound) Error() string { return string(e) + " not found" }

type ErrConflict string

func (e ErrConflict) Error() string { return string(e) }

type ErrBadRequest string

func (e ErrBadRequest) Error() string { return string(e) }
