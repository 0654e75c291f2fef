package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kihuni/Hoodie-Hub/internal/config"
	"github.com/kihuni/Hoodie-Hub/internal/domain"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/cache"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/mpesa"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/receipt"
	"github.com/kihuni/Hoodie-Hub/internal/infrastructure/repo"
	"github.com/kihuni/Hoodie-Hub/internal/usecase"
)

type stubGateway struct {
	result mpesa.PushResult
}

func (g *stubGateway) InitiatePush(context.Context, string, decimal.Decimal, string, string) mpesa.PushResult {
	return g.result
}

type testEnv struct {
	server   *httptest.Server
	products *repo.MemoryProductRepo
	orders   *repo.MemoryOrderRepo
	gateway  *stubGateway
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	products := repo.NewMemoryProductRepo()
	users := repo.NewMemoryUserRepo()
	cartsRepo := repo.NewMemoryCartRepo()
	orders := repo.NewMemoryOrderRepo()
	gateway := &stubGateway{result: mpesa.PushResult{
		Status:            mpesa.PushAccepted,
		CheckoutRequestID: "ws_CO_123",
		MerchantRequestID: "mr_456",
	}}

	cartSvc := usecase.NewCartService(cartsRepo, products, cache.NewMemoryCache())
	s := New(config.Default(), Deps{
		Catalog:   usecase.NewCatalogService(products),
		Carts:     cartSvc,
		Checkout:  usecase.NewCheckoutService(cartSvc, orders, gateway, nil),
		Reconcile: usecase.NewReconcileService(orders, nil),
		Orders:    usecase.NewOrderService(orders),
		Auth:      usecase.NewAuthService(users, cartSvc, "test-secret"),
		Receipts:  receipt.NewGenerator("Hoodie Hub"),
	})
	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, products: products, orders: orders, gateway: gateway}
}

func (e *testEnv) seedProduct(t *testing.T, stock int) uuid.UUID {
	t.Helper()
	p := &domain.Product{
		ID:             uuid.New(),
		Name:           "Classic Black Hoodie",
		Price:          decimal.NewFromInt(2500),
		AvailableSizes: "S,M,L,XL",
		StockQuantity:  stock,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}
	require.NoError(t, e.products.PutProduct(context.Background(), p))
	return p.ID
}

func (e *testEnv) do(t *testing.T, method, path, sessionKey string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if sessionKey != "" {
		req.Header.Set(sessionHeader, sessionKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeJSON(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
}

func TestCartSessionAssignment(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodGet, "/api/cart", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(sessionHeader), "anonymous callers get a session key")
}

func TestAddToCartAndCheckoutFlow(t *testing.T) {
	env := newTestEnv(t)
	productID := env.seedProduct(t, 10)
	session := "sess-test-1"

	resp := env.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{
		"productId": productID.String(),
		"size":      "M",
		"quantity":  2,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var cartBody struct {
		ItemCount int `json:"itemCount"`
	}
	decodeJSON(t, resp, &cartBody)
	assert.Equal(t, 2, cartBody.ItemCount)

	resp = env.do(t, http.MethodPost, "/api/checkout", session, map[string]string{
		"name":             "Wanjiku",
		"phoneNumber":      "0712345678",
		"deliveryLocation": "Westlands, Nairobi",
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	var checkoutBody struct {
		Data usecase.CheckoutResult `json:"data"`
	}
	decodeJSON(t, resp, &checkoutBody)
	assert.Equal(t, "ws_CO_123", checkoutBody.Data.CheckoutRequestID)
	assert.Equal(t, "5000.00", checkoutBody.Data.Total)

	resp = env.do(t, http.MethodGet, "/api/orders/"+checkoutBody.Data.OrderID.String()+"/status", session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var statusBody struct {
		Data usecase.OrderStatusView `json:"data"`
	}
	decodeJSON(t, resp, &statusBody)
	assert.Equal(t, domain.OrderPending, statusBody.Data.Status)

	// Cart is cleared after the accepted push.
	resp = env.do(t, http.MethodGet, "/api/cart", session, nil)
	decodeJSON(t, resp, &cartBody)
	assert.Equal(t, 0, cartBody.ItemCount)
}

func TestCheckoutEmptyCartReturns400(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/api/checkout", "sess-empty", map[string]string{
		"name":             "Wanjiku",
		"phoneNumber":      "0712345678",
		"deliveryLocation": "Westlands",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckoutGatewayRejection(t *testing.T) {
	env := newTestEnv(t)
	env.gateway.result = mpesa.PushResult{Status: mpesa.PushRejected, Message: "Invalid PhoneNumber"}
	productID := env.seedProduct(t, 10)
	session := "sess-rej"

	resp := env.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{
		"productId": productID.String(), "size": "M", "quantity": 1,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/checkout", session, map[string]string{
		"name": "Wanjiku", "phoneNumber": "0712345678", "deliveryLocation": "Westlands",
	})
	assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
}

func callbackPayload(checkoutRequestID string, resultCode int) map[string]any {
	stk := map[string]any{
		"CheckoutRequestID": checkoutRequestID,
		"ResultCode":        resultCode,
		"ResultDesc":        "test",
	}
	if resultCode == 0 {
		stk["CallbackMetadata"] = map[string]any{
			"Item": []map[string]any{{"Name": "MpesaReceiptNumber", "Value": "SAK4XR21QT"}},
		}
	}
	return map[string]any{"Body": map[string]any{"stkCallback": stk}}
}

func TestCallbackSettlesOrder(t *testing.T) {
	env := newTestEnv(t)
	productID := env.seedProduct(t, 10)
	session := "sess-cb"

	env.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{
		"productId": productID.String(), "size": "M", "quantity": 1,
	})
	resp := env.do(t, http.MethodPost, "/api/checkout", session, map[string]string{
		"name": "Wanjiku", "phoneNumber": "0712345678", "deliveryLocation": "Westlands",
	})
	var checkoutBody struct {
		Data usecase.CheckoutResult `json:"data"`
	}
	decodeJSON(t, resp, &checkoutBody)

	resp = env.do(t, http.MethodPost, "/api/mpesa/callback", "", callbackPayload("ws_CO_123", 0))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack mpesa.Ack
	decodeJSON(t, resp, &ack)
	assert.Equal(t, 0, ack.ResultCode)

	resp = env.do(t, http.MethodGet, "/api/orders/"+checkoutBody.Data.OrderID.String()+"/status", session, nil)
	var statusBody struct {
		Data usecase.OrderStatusView `json:"data"`
	}
	decodeJSON(t, resp, &statusBody)
	assert.Equal(t, domain.OrderPaid, statusBody.Data.Status)
	assert.Equal(t, "SAK4XR21QT", statusBody.Data.ReceiptNumber)
}

func TestCallbackAlwaysAcks(t *testing.T) {
	env := newTestEnv(t)

	// Unknown order: still a 200 with a success ack.
	resp := env.do(t, http.MethodPost, "/api/mpesa/callback", "", callbackPayload("ws_CO_nope", 0))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ack mpesa.Ack
	decodeJSON(t, resp, &ack)
	assert.Equal(t, 0, ack.ResultCode)

	// Malformed body: still 200, but the ack reports rejection.
	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/mpesa/callback", bytes.NewBufferString("not json"))
	require.NoError(t, err)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer raw.Body.Close()
	require.Equal(t, http.StatusOK, raw.StatusCode)
	require.NoError(t, json.NewDecoder(raw.Body).Decode(&ack))
	assert.Equal(t, 1, ack.ResultCode)
}

func TestOrderReceiptRequiresPaid(t *testing.T) {
	env := newTestEnv(t)
	productID := env.seedProduct(t, 10)
	session := "sess-receipt"

	env.do(t, http.MethodPost, "/api/cart/items", session, map[string]any{
		"productId": productID.String(), "size": "M", "quantity": 1,
	})
	resp := env.do(t, http.MethodPost, "/api/checkout", session, map[string]string{
		"name": "Wanjiku", "phoneNumber": "0712345678", "deliveryLocation": "Westlands",
	})
	var checkoutBody struct {
		Data usecase.CheckoutResult `json:"data"`
	}
	decodeJSON(t, resp, &checkoutBody)
	receiptPath := fmt.Sprintf("/api/orders/%s/receipt", checkoutBody.Data.OrderID)

	resp = env.do(t, http.MethodGet, receiptPath, session, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode, "no receipt while payment is pending")

	env.do(t, http.MethodPost, "/api/mpesa/callback", "", callbackPayload("ws_CO_123", 0))

	resp = env.do(t, http.MethodGet, receiptPath, session, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
}

func TestAuthRegisterLoginFlow(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "wanjiku", "password": "s3cret-pass", "email": "wanjiku@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": "wanjiku", "password": "s3cret-pass",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var loginBody struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	decodeJSON(t, resp, &loginBody)
	require.NotEmpty(t, loginBody.Data.Token)

	req, err := http.NewRequest(http.MethodGet, env.server.URL+"/api/orders", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+loginBody.Data.Token)
	authed, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer authed.Body.Close()
	assert.Equal(t, http.StatusOK, authed.StatusCode)

	// A garbage token is rejected outright.
	req.Header.Set("Authorization", "Bearer garbage")
	denied, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer denied.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, denied.StatusCode)
}

func TestSitemapListsProducts(t *testing.T) {
	env := newTestEnv(t)
	productID := env.seedProduct(t, 10)

	resp := env.do(t, http.MethodGet, "/sitemap.xml", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), productID.String())
	assert.Contains(t, buf.String(), "urlset")
}

func TestStockCheckEndpoint(t *testing.T) {
	env := newTestEnv(t)
	productID := env.seedProduct(t, 3)
	path := "/api/products/" + productID.String() + "/stock"

	resp := env.do(t, http.MethodGet, path+"?quantity=2", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Available bool   `json:"available"`
		Reason    string `json:"reason"`
	}
	decodeJSON(t, resp, &body)
	assert.True(t, body.Available)

	resp = env.do(t, http.MethodGet, path+"?quantity=5", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeJSON(t, resp, &body)
	assert.False(t, body.Available)
	assert.NotEmpty(t, body.Reason)

	resp = env.do(t, http.MethodGet, "/api/products/"+uuid.NewString()+"/stock", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, path+"?quantity=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestProductEndpoints(t *testing.T) {
	env := newTestEnv(t)
	productID := env.seedProduct(t, 10)

	resp := env.do(t, http.MethodGet, "/api/products", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/products/"+productID.String(), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/products/"+uuid.NewString(), "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/products/not-a-uuid", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
