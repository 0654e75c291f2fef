package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/mpesa"
	"github.com/kihuni/Hoodie-Hub/internal/logging"
	"github.com/kihuni/Hoodie-Hub/internal/metrics"
)

type OrderRepo interface {
	CreateOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, bool)
	GetOrderByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Order, bool)
	ListOrdersByUser(ctx context.Context, userID string) ([]domain.Order, error)
	SetPaymentRequest(ctx context.Context, orderID uuid.UUID, checkoutRequestID, merchantRequestID string) error
	TransitionOrder(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus, receipt string) (bool, error)
}

// PaymentGateway initiates an STK push. Implementations never return an
// error: every failure mode is folded into the PushResult.
type PaymentGateway interface {
	InitiatePush(ctx context.Context, phone string, amount decimal.Decimal, accountRef, description string) mpesa.PushResult
}

type CustomerInfo struct {
	UserID           string
	Name             string
	PhoneNumber      string
	DeliveryLocation string
}

type CheckoutResult struct {
	OrderID           uuid.UUID `json:"orderId"`
	Total             string    `json:"total"`
	CheckoutRequestID string    `json:"checkoutRequestId"`
	Message           string    `json:"message"`
}

// CheckoutService drives the checkout sequence: snapshot the cart, persist
// a PENDING order, push the payment prompt, then either arm the order for
// reconciliation or fail it immediately.
type CheckoutService struct {
	Carts   *CartService
	Orders  OrderRepo
	Gateway PaymentGateway
	Metrics *metrics.StoreMetrics
}

func NewCheckoutService(carts *CartService, orders OrderRepo, gateway PaymentGateway, m *metrics.StoreMetrics) *CheckoutService {
	return &CheckoutService{Carts: carts, Orders: orders, Gateway: gateway, Metrics: m}
}

func (s *CheckoutService) Checkout(ctx context.Context, ref domain.CartRef, info CustomerInfo) (*CheckoutResult, error) {
	if info.Name == "" || info.PhoneNumber == "" || info.DeliveryLocation == "" {
		return nil, ErrBadRequest("name, phone number and delivery location are required")
	}

	cart, err := s.Carts.Fresh(ctx, ref)
	if err != nil {
		return nil, err
	}
	if len(cart.Items) == 0 {
		s.count("empty_cart")
		return nil, ErrEmptyCart
	}
	snap, err := s.Carts.Snapshot(ctx, cart)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:               uuid.New(),
		UserID:           info.UserID,
		CustomerName:     info.Name,
		PhoneNumber:      info.PhoneNumber,
		DeliveryLocation: info.DeliveryLocation,
		TotalAmount:      snap.Total,
		Status:           domain.OrderPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	for _, it := range snap.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ID:          uuid.New(),
			OrderID:     order.ID,
			ProductName: it.ProductName,
			Size:        it.Size,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
		})
	}
	if err := s.Orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}
	logging.Log(logging.Event{Component: "checkout", OrderID: order.ID.String(), CartID: cart.ID.String(), Step: "order_created", Status: "pending"})

	start := time.Now()
	push := s.Gateway.InitiatePush(ctx, info.PhoneNumber, snap.Total, "HOODIE-"+order.ID.String()[:8], "Hoodie Hub order")
	if s.Metrics != nil {
		s.Metrics.PushLatencyMS.Observe(float64(time.Since(start).Milliseconds()))
	}

	if !push.Accepted() {
		if _, err := s.Orders.TransitionOrder(ctx, order.ID, domain.OrderPending, domain.OrderFailed, ""); err != nil {
			logging.Log(logging.Event{Component: "checkout", OrderID: order.ID.String(), Step: "fail_order", Status: "error", Error: err.Error()})
		}
		outcome := "rejected"
		if push.Status == mpesa.PushUnavailable {
			outcome = "unavailable"
		}
		s.count(outcome)
		logging.Log(logging.Event{Component: "checkout", OrderID: order.ID.String(), Step: "stk_push", Status: outcome, Message: push.Message})
		return nil, &GatewayError{Message: push.Message, Unavailable: push.Status == mpesa.PushUnavailable}
	}

	if err := s.Orders.SetPaymentRequest(ctx, order.ID, push.CheckoutRequestID, push.MerchantRequestID); err != nil {
		return nil, fmt.Errorf("record payment request: %w", err)
	}
	cleared, err := s.Carts.ClearAfterCheckout(ctx, ref, cart.ID, snap.Version)
	if err != nil {
		logging.Log(logging.Event{Component: "checkout", OrderID: order.ID.String(), CartID: cart.ID.String(), Step: "clear_cart", Status: "error", Error: err.Error()})
	} else if !cleared {
		// A concurrent mutation moved the cart past our snapshot. The order
		// stands as priced; the cart keeps its newer contents.
		logging.Log(logging.Event{Component: "checkout", OrderID: order.ID.String(), CartID: cart.ID.String(), Step: "clear_cart", Status: "skipped_version_mismatch"})
	}

	s.count("accepted")
	logging.Log(logging.Event{
		Component:         "checkout",
		OrderID:           order.ID.String(),
		CheckoutRequestID: push.CheckoutRequestID,
		Step:              "stk_push",
		Status:            "accepted",
	})
	return &CheckoutResult{
		OrderID:           order.ID,
		Total:             snap.Total.StringFixed(2),
		CheckoutRequestID: push.CheckoutRequestID,
		Message:           "Payment prompt sent. Complete the payment on your phone.",
	}, nil
}

func (s *CheckoutService) count(outcome string) {
	if s.Metrics != nil {
		s.Metrics.Checkouts.WithLabelValues(outcome).Inc()
	}
}
