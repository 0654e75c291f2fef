package usecase

import (
	"context"

	"github.com/google/uuid"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/mpesa"
	"github.com/kihuni/Hoodie-Hub/internal/logging"
	"github.com/kihuni/Hoodie-Hub/internal/metrics"
)

type ReconcileOutcome string

const (
	ReconciledPaid    ReconcileOutcome = "PAID"
	ReconciledFailed  ReconcileOutcome = "FAILED"
	AlreadyReconciled ReconcileOutcome = "ALREADY_RECONCILED"
	UnknownOrder      ReconcileOutcome = "UNKNOWN_ORDER"
	MalformedCallback ReconcileOutcome = "MALFORMED"
	ReconcileError    ReconcileOutcome = "ERROR"
)

type ReconcileResult struct {
	Outcome       ReconcileOutcome
	OrderID       uuid.UUID
	ReceiptNumber string
}

// Ack maps a reconciliation result to the body returned to the provider.
// Duplicates and unknown orders are acknowledged as accepted so the
// provider stops redelivering; malformed payloads and internal errors are
// rejected so a retry can still land.
func (r ReconcileResult) Ack() mpesa.Ack {
	switch r.Outcome {
	case MalformedCallback:
		return mpesa.Ack{ResultCode: 1, ResultDesc: "Rejected"}
	case ReconcileError:
		return mpesa.Ack{ResultCode: 1, ResultDesc: "Internal error"}
	default:
		return mpesa.Ack{ResultCode: 0, ResultDesc: "Accepted"}
	}
}

// ReconcileService settles orders from gateway callbacks. Exactly one
// delivery of a callback wins; everything else is absorbed without side
// effects.
type ReconcileService struct {
	Orders  OrderRepo
	Metrics *metrics.StoreMetrics
}

func NewReconcileService(orders OrderRepo, m *metrics.StoreMetrics) *ReconcileService {
	return &ReconcileService{Orders: orders, Metrics: m}
}

func (s *ReconcileService) Reconcile(ctx context.Context, raw []byte) ReconcileResult {
	cb, err := mpesa.ParseCallback(raw)
	if err != nil {
		logging.Log(logging.Event{Component: "reconcile", Step: "parse", Status: "malformed", Error: err.Error()})
		return s.done(ReconcileResult{Outcome: MalformedCallback})
	}

	order, ok := s.Orders.GetOrderByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if !ok {
		logging.Log(logging.Event{Component: "reconcile", CheckoutRequestID: cb.CheckoutRequestID, Step: "lookup", Status: "unknown_order"})
		return s.done(ReconcileResult{Outcome: UnknownOrder})
	}
	if order.Status.IsTerminal() {
		logging.Log(logging.Event{Component: "reconcile", OrderID: order.ID.String(), CheckoutRequestID: cb.CheckoutRequestID, Step: "lookup", Status: "already_reconciled", Message: order.Status.String()})
		return s.done(ReconcileResult{Outcome: AlreadyReconciled, OrderID: order.ID, ReceiptNumber: order.ReceiptNumber})
	}

	target := domain.OrderFailed
	receipt := ""
	if cb.Success() {
		target = domain.OrderPaid
		receipt = cb.ReceiptNumber
	}

	won, err := s.Orders.TransitionOrder(ctx, order.ID, domain.OrderPending, target, receipt)
	if err != nil {
		logging.Log(logging.Event{Component: "reconcile", OrderID: order.ID.String(), Step: "transition", Status: "error", Error: err.Error()})
		return s.done(ReconcileResult{Outcome: ReconcileError, OrderID: order.ID})
	}
	if !won {
		// Lost the race against a concurrent delivery or a cancellation.
		logging.Log(logging.Event{Component: "reconcile", OrderID: order.ID.String(), Step: "transition", Status: "already_reconciled"})
		return s.done(ReconcileResult{Outcome: AlreadyReconciled, OrderID: order.ID})
	}

	outcome := ReconciledFailed
	if target == domain.OrderPaid {
		outcome = ReconciledPaid
	}
	logging.Log(logging.Event{
		Component:         "reconcile",
		OrderID:           order.ID.String(),
		CheckoutRequestID: cb.CheckoutRequestID,
		Step:              "transition",
		Status:            string(target),
		Message:           cb.ResultDesc,
	})
	return s.done(ReconcileResult{Outcome: outcome, OrderID: order.ID, ReceiptNumber: receipt})
}

func (s *ReconcileService) done(r ReconcileResult) ReconcileResult {
	if s.Metrics != nil {
		s.Metrics.Callbacks.WithLabelValues(string(r.Outcome)).Inc()
	}
	return r
}
