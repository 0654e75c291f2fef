package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/mpesa"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/repo"
)

type fakeGateway struct {
	result mpesa.PushResult
	calls  int
	phone  string
	amount decimal.Decimal
	// hook runs before the result is returned, simulating work that happens
	// while the push is in flight.
	hook func()
}

func (g *fakeGateway) InitiatePush(_ context.Context, phone string, amount decimal.Decimal, _, _ string) mpesa.PushResult {
	g.calls++
	g.phone = phone
	g.amount = amount
	if g.hook != nil {
		g.hook()
	}
	return g.result
}

func acceptedPush() mpesa.PushResult {
	return mpesa.PushResult{Status: mpesa.PushAccepted, CheckoutRequestID: "ws_CO_123", MerchantRequestID: "mr_456"}
}

func checkoutFixture(t *testing.T, gw *fakeGateway) (*CheckoutService, *repo.MemoryOrderRepo, *CartService, *repo.MemoryProductRepo) {
	t.Helper()
	carts, products := newCartFixture(t)
	orders := repo.NewMemoryOrderRepo()
	return NewCheckoutService(carts, orders, gw, nil), orders, carts, products
}

var testCustomer = CustomerInfo{
	Name:             "Wanjiku",
	PhoneNumber:      "0712345678",
	DeliveryLocation: "Westlands, Nairobi",
}

func TestCheckoutEmptyCart(t *testing.T) {
	svc, _, _, _ := checkoutFixture(t, &fakeGateway{result: acceptedPush()})
	_, err := svc.Checkout(context.Background(), domain.CartRef{SessionKey: "s"}, testCustomer)
	assert.ErrorIs(t, err, ErrEmptyCart)
}

func TestCheckoutMissingCustomerInfo(t *testing.T) {
	svc, _, _, _ := checkoutFixture(t, &fakeGateway{result: acceptedPush()})
	_, err := svc.Checkout(context.Background(), domain.CartRef{SessionKey: "s"}, CustomerInfo{Name: "Wanjiku"})
	var bad ErrBadRequest
	assert.ErrorAs(t, err, &bad)
}

func TestCheckoutAccepted(t *testing.T) {
	gw := &fakeGateway{result: acceptedPush()}
	svc, orders, carts, products := checkoutFixture(t, gw)
	productID := seedProduct(t, products, 2500, 10)
	ref := domain.CartRef{SessionKey: "sess-1"}
	ctx := context.Background()

	_, err := carts.AddItem(ctx, ref, productID, "M", 2)
	require.NoError(t, err)

	result, err := svc.Checkout(ctx, ref, testCustomer)
	require.NoError(t, err)
	assert.Equal(t, "ws_CO_123", result.CheckoutRequestID)
	assert.Equal(t, "5000.00", result.Total)

	order, ok := orders.GetOrder(ctx, result.OrderID)
	require.True(t, ok)
	assert.Equal(t, domain.OrderPending, order.Status)
	assert.Equal(t, "ws_CO_123", order.CheckoutRequestID)
	assert.Equal(t, "mr_456", order.MerchantRequestID)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Classic Black Hoodie", order.Items[0].ProductName)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(5000)))

	assert.True(t, gw.amount.Equal(decimal.NewFromInt(5000)))

	cart, err := carts.Fresh(ctx, ref)
	require.NoError(t, err)
	assert.Empty(t, cart.Items, "cart is cleared after an accepted push")
}

func TestOrderPricesFrozenAfterCatalogChange(t *testing.T) {
	gw := &fakeGateway{result: acceptedPush()}
	svc, orders, carts, products := checkoutFixture(t, gw)
	productID := seedProduct(t, products, 2500, 10)
	ref := domain.CartRef{SessionKey: "sess-1"}
	ctx := context.Background()

	_, err := carts.AddItem(ctx, ref, productID, "M", 2)
	require.NoError(t, err)
	result, err := svc.Checkout(ctx, ref, testCustomer)
	require.NoError(t, err)

	// Reprice the product after the order was created.
	p, ok := products.GetProduct(ctx, productID)
	require.True(t, ok)
	p.Price = decimal.NewFromInt(9999)
	require.NoError(t, products.PutProduct(ctx, p))

	order, ok := orders.GetOrder(ctx, result.OrderID)
	require.True(t, ok)
	require.Len(t, order.Items, 1)
	assert.True(t, order.Items[0].UnitPrice.Equal(decimal.NewFromInt(2500)),
		"order line items keep the price captured at checkout, got %s", order.Items[0].UnitPrice)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(5000)),
		"stored order total is immutable, got %s", order.TotalAmount)

	// A new cart prices the same product at the new catalog price.
	other := domain.CartRef{SessionKey: "sess-2"}
	_, err = carts.AddItem(ctx, other, productID, "M", 1)
	require.NoError(t, err)
	total, err := carts.Total(ctx, other)
	require.NoError(t, err)
	assert.True(t, total.Equal(decimal.NewFromInt(9999)), "got %s", total)
}

func TestCheckoutRejected(t *testing.T) {
	gw := &fakeGateway{result: mpesa.PushResult{Status: mpesa.PushRejected, Message: "Invalid PhoneNumber"}}
	svc, orders, carts, products := checkoutFixture(t, gw)
	productID := seedProduct(t, products, 2500, 10)
	ref := domain.CartRef{SessionKey: "sess-1"}
	ctx := context.Background()

	_, err := carts.AddItem(ctx, ref, productID, "M", 2)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, ref, testCustomer)
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.False(t, gwErr.Unavailable)
	assert.Contains(t, gwErr.Message, "Invalid PhoneNumber")

	all, err := orders.ListOrdersByUser(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, domain.OrderFailed, all[0].Status)

	cart, err := carts.Fresh(ctx, ref)
	require.NoError(t, err)
	assert.Len(t, cart.Items, 1, "cart survives a failed push so checkout can be retried")
}

func TestCheckoutGatewayUnavailable(t *testing.T) {
	gw := &fakeGateway{result: mpesa.PushResult{Status: mpesa.PushUnavailable, Message: "failed to get access token"}}
	svc, _, carts, products := checkoutFixture(t, gw)
	productID := seedProduct(t, products, 2500, 10)
	ref := domain.CartRef{SessionKey: "sess-1"}
	ctx := context.Background()

	_, err := carts.AddItem(ctx, ref, productID, "M", 1)
	require.NoError(t, err)

	_, err = svc.Checkout(ctx, ref, testCustomer)
	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Unavailable)
}

func TestCheckoutConcurrentCartMutationLosesClear(t *testing.T) {
	carts, products := newCartFixture(t)
	orders := repo.NewMemoryOrderRepo()
	productID := seedProduct(t, products, 2500, 10)
	ref := domain.CartRef{SessionKey: "sess-1"}
	ctx := context.Background()

	gw := &fakeGateway{result: acceptedPush()}
	gw.hook = func() {
		// A second request adds an item while the push is in flight.
		_, err := carts.AddItem(ctx, ref, productID, "L", 1)
		require.NoError(t, err)
	}
	svc := NewCheckoutService(carts, orders, gw, nil)

	_, err := carts.AddItem(ctx, ref, productID, "M", 2)
	require.NoError(t, err)

	result, err := svc.Checkout(ctx, ref, testCustomer)
	require.NoError(t, err)

	// The order prices only what was snapshotted.
	order, ok := orders.GetOrder(ctx, result.OrderID)
	require.True(t, ok)
	assert.True(t, order.TotalAmount.Equal(decimal.NewFromInt(5000)))

	// The concurrently added item survives the checkout.
	cart, err := carts.Fresh(ctx, ref)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
}
