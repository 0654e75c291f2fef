package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/logging"
)

type OrderStatusView struct {
	OrderID       uuid.UUID          `json:"orderId"`
	Status        domain.OrderStatus `json:"status"`
	ReceiptNumber string             `json:"receiptNumber,omitempty"`
}

type OrderService struct {
	Orders OrderRepo
}

func NewOrderService(orders OrderRepo) *OrderService {
	return &OrderService{Orders: orders}
}

func (s *OrderService) Get(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := s.Orders.GetOrder(ctx, id)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

// Status is the polling view the storefront refreshes while waiting for the
// subscriber to resolve the payment prompt.
func (s *OrderService) Status(ctx context.Context, id uuid.UUID) (*OrderStatusView, error) {
	o, ok := s.Orders.GetOrder(ctx, id)
	if !ok {
		return nil, ErrOrderNotFound
	}
	return &OrderStatusView{OrderID: o.ID, Status: o.Status, ReceiptNumber: o.ReceiptNumber}, nil
}

func (s *OrderService) ListForUser(ctx context.Context, userID string) ([]domain.Order, error) {
	return s.Orders.ListOrdersByUser(ctx, userID)
}

// Cancel aborts an order that is still awaiting payment. A callback that
// lands first wins; the cancel then fails with ErrIllegalTransition.
func (s *OrderService) Cancel(ctx context.Context, id uuid.UUID, userID string) error {
	o, ok := s.Orders.GetOrder(ctx, id)
	if !ok {
		return ErrOrderNotFound
	}
	if userID != "" && o.UserID != userID {
		return ErrOrderNotFound
	}
	won, err := s.Orders.TransitionOrder(ctx, id, domain.OrderPending, domain.OrderCancelled, "")
	if err != nil {
		return err
	}
	if !won {
		return ErrIllegalTransition
	}
	logging.Log(logging.Event{Component: "order", OrderID: id.String(), Step: "cancel", Status: "cancelled"})
	return nil
}

// Fulfill marks a paid order as handed over for delivery.
func (s *OrderService) Fulfill(ctx context.Context, id uuid.UUID) error {
	if _, ok := s.Orders.GetOrder(ctx, id); !ok {
		return ErrOrderNotFound
	}
	won, err := s.Orders.TransitionOrder(ctx, id, domain.OrderPaid, domain.OrderFulfilled, "")
	if err != nil {
		return err
	}
	if !won {
		return ErrIllegalTransition
	}
	logging.Log(logging.Event{Component: "order", OrderID: id.String(), Step: "fulfill", Status: "fulfilled"})
	return nil
}
