package usecase

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/repo"
)

func TestOrderStatusPolling(t *testing.T) {
	orders := repo.NewMemoryOrderRepo()
	order := pendingOrder(t, orders, "ws_CO_1")
	svc := NewOrderService(orders)
	ctx := context.Background()

	view, err := svc.Status(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPending, view.Status)
	assert.Empty(t, view.ReceiptNumber)

	won, err := orders.TransitionOrder(ctx, order.ID, domain.OrderPending, domain.OrderPaid, "SAK4XR21QT")
	require.NoError(t, err)
	require.True(t, won)

	view, err = svc.Status(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, view.Status)
	assert.Equal(t, "SAK4XR21QT", view.ReceiptNumber)
}

func TestOrderStatusUnknown(t *testing.T) {
	svc := NewOrderService(repo.NewMemoryOrderRepo())
	_, err := svc.Status(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestCancelPendingOrder(t *testing.T) {
	orders := repo.NewMemoryOrderRepo()
	order := pendingOrder(t, orders, "ws_CO_1")
	svc := NewOrderService(orders)
	ctx := context.Background()

	require.NoError(t, svc.Cancel(ctx, order.ID, ""))

	stored, ok := orders.GetOrder(ctx, order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderCancelled, stored.Status)

	// Second cancel finds the order already settled.
	assert.ErrorIs(t, svc.Cancel(ctx, order.ID, ""), ErrIllegalTransition)
}

func TestCancelOwnershipCheck(t *testing.T) {
	orders := repo.NewMemoryOrderRepo()
	order := pendingOrder(t, orders, "ws_CO_1")
	svc := NewOrderService(orders)

	err := svc.Cancel(context.Background(), order.ID, "someone-else")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestFulfillRequiresPaid(t *testing.T) {
	orders := repo.NewMemoryOrderRepo()
	order := pendingOrder(t, orders, "ws_CO_1")
	svc := NewOrderService(orders)
	ctx := context.Background()

	assert.ErrorIs(t, svc.Fulfill(ctx, order.ID), ErrIllegalTransition)

	won, err := orders.TransitionOrder(ctx, order.ID, domain.OrderPending, domain.OrderPaid, "SAK4XR21QT")
	require.NoError(t, err)
	require.True(t, won)

	require.NoError(t, svc.Fulfill(ctx, order.ID))
	stored, ok := orders.GetOrder(ctx, order.ID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderFulfilled, stored.Status)
}
