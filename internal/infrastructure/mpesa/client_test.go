package mpesa

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestPassword(t *testing.T) {
	got := RequestPassword("174379", "passkey123", "20240115093000")
	want := base64.StdEncoding.EncodeToString([]byte("174379passkey12320240115093000"))
	assert.Equal(t, want, got)
}

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0712345678", "254712345678"},
		{"+254712345678", "254712345678"},
		{"254712345678", "254712345678"},
		{"712345678", "254712345678"},
		{" 0712345678 ", "254712345678"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizePhoneNumber(tc.in, "254"), "input %q", tc.in)
	}
}

func newTestServer(t *testing.T, pushHandler http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "test-token"})
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", pushHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testClient(srv *httptest.Server) *Client {
	c := NewClient(Config{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		ShortCode:      "174379",
		Passkey:        "passkey123",
		CallbackURL:    "https://example.com/api/mpesa/callback",
		BaseURL:        srv.URL,
	})
	c.now = func() time.Time { return time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC) }
	return c
}

func TestInitiatePushAccepted(t *testing.T) {
	var captured pushRequest
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode":        "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CheckoutRequestID":   "ws_CO_123",
			"MerchantRequestID":   "mr_456",
		})
	})

	res := testClient(srv).InitiatePush(context.Background(), "0712345678", decimal.NewFromFloat(2500.75), "HOODIE-1", "order")
	require.True(t, res.Accepted())
	assert.Equal(t, "ws_CO_123", res.CheckoutRequestID)
	assert.Equal(t, "mr_456", res.MerchantRequestID)

	assert.Equal(t, "254712345678", captured.PhoneNumber)
	assert.Equal(t, "254712345678", captured.PartyA)
	assert.Equal(t, int64(2500), captured.Amount, "sub-unit precision is dropped")
	assert.Equal(t, "20240115093000", captured.Timestamp)
	assert.Equal(t, RequestPassword("174379", "passkey123", "20240115093000"), captured.Password)
	assert.Equal(t, "CustomerPayBillOnline", captured.TransactionType)
}

func TestInitiatePushRejected(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"ResponseCode": "1032",
			"errorMessage": "Request cancelled by user",
		})
	})

	res := testClient(srv).InitiatePush(context.Background(), "0712345678", decimal.NewFromInt(100), "HOODIE-1", "order")
	assert.Equal(t, PushRejected, res.Status)
	assert.Equal(t, "Request cancelled by user", res.Message)
	assert.False(t, res.Accepted())
}

func TestInitiatePushAuthFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("push must not be attempted without a token")
	})
	c := testClient(srv)
	c.cfg.ConsumerSecret = "wrong"

	res := c.InitiatePush(context.Background(), "0712345678", decimal.NewFromInt(100), "HOODIE-1", "order")
	assert.Equal(t, PushUnavailable, res.Status)
	assert.Equal(t, "failed to get access token", res.Message)
}

func TestInitiatePushTransportFailure(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := testClient(srv)
	srv.Close()

	res := c.InitiatePush(context.Background(), "0712345678", decimal.NewFromInt(100), "HOODIE-1", "order")
	assert.Equal(t, PushUnavailable, res.Status)
}

func TestAuthenticate(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	token, err := testClient(srv).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "test-token", token)
}

func TestAuthenticateBadCredentials(t *testing.T) {
	srv := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {})
	c := testClient(srv)
	c.cfg.ConsumerKey = "nope"

	_, err := c.Authenticate(context.Background())
	require.Error(t, err)
	var authErr *AuthError
	assert.ErrorAs(t, err, &authErr)
}
