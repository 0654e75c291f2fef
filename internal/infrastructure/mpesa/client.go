package mpesa

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	sandboxBaseURL    = "https://sandbox.safaricom.co.ke"
	productionBaseURL = "https://api.safaricom.co.ke"

	authPath = "/oauth/v1/generate?grant_type=client_credentials"
	pushPath = "/mpesa/stkpush/v1/processrequest"

	pushTimeout = 30 * time.Second
	// Timestamps in the push password are provider-local wall clock,
	// formatted YYYYMMDDHHMMSS.
	timestampLayout = "20060102150405"
)

type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	Passkey        string
	CallbackURL    string
	Environment    string // "sandbox" (default) or "production"
	CountryCode    string // defaults to "254"
	BaseURL        string // overrides environment selection, used in tests
	HTTP           *http.Client
}

type Client struct {
	cfg     Config
	baseURL string
	http    *http.Client
	now     func() time.Time
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		if cfg.Environment == "production" {
			base = productionBaseURL
		} else {
			base = sandboxBaseURL
		}
	}
	if cfg.CountryCode == "" {
		cfg.CountryCode = "254"
	}
	hc := cfg.HTTP
	if hc == nil {
		hc = &http.Client{Timeout: pushTimeout}
	}
	return &Client{cfg: cfg, baseURL: base, http: hc, now: time.Now}
}

// AuthError wraps any failure to obtain an access token. The client never
// retries authentication internally.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "mpesa auth: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

type authResp struct {
	AccessToken string `json:"access_token"`
}

// Authenticate exchanges the static consumer credentials for a short-lived
// bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+authPath, nil)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)
	resp, err := c.http.Do(req)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &AuthError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &AuthError{Err: fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))}
	}
	var out authResp
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &AuthError{Err: err}
	}
	if out.AccessToken == "" {
		return "", &AuthError{Err: fmt.Errorf("empty access_token in response")}
	}
	return out.AccessToken, nil
}

// RequestPassword derives the push request password. The provider verifies
// this byte for byte: base64(shortcode + passkey + timestamp).
func RequestPassword(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// NormalizePhoneNumber converts a subscriber number to the provider's bare
// international form: leading country code digits, no plus sign.
func NormalizePhoneNumber(raw, countryCode string) string {
	p := strings.TrimSpace(raw)
	p = strings.TrimPrefix(p, "+")
	switch {
	case strings.HasPrefix(p, "0"):
		return countryCode + p[1:]
	case strings.HasPrefix(p, countryCode):
		return p
	default:
		return countryCode + p
	}
}

type PushStatus string

const (
	PushAccepted    PushStatus = "ACCEPTED"
	PushRejected    PushStatus = "REJECTED"
	PushUnavailable PushStatus = "UNAVAILABLE"
)

// PushResult is always returned to callers, whatever happened on the wire.
type PushResult struct {
	Status            PushStatus
	CheckoutRequestID string
	MerchantRequestID string
	Message           string
}

func (r PushResult) Accepted() bool { return r.Status == PushAccepted }

type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

type pushResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	ErrorMessage        string `json:"errorMessage"`
}

// InitiatePush authenticates, signs and issues the STK push request.
// The amount is transmitted as whole units, sub-unit precision is dropped.
func (c *Client) InitiatePush(ctx context.Context, phone string, amount decimal.Decimal, accountRef, description string) PushResult {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return PushResult{Status: PushUnavailable, Message: "failed to get access token"}
	}

	timestamp := c.now().Format(timestampLayout)
	msisdn := NormalizePhoneNumber(phone, c.cfg.CountryCode)
	payload := pushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          RequestPassword(c.cfg.ShortCode, c.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount.IntPart(),
		PartyA:            msisdn,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       msisdn,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountRef,
		TransactionDesc:   description,
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return PushResult{Status: PushUnavailable, Message: err.Error()}
	}

	pushCtx, cancel := context.WithTimeout(ctx, pushTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(pushCtx, http.MethodPost, c.baseURL+pushPath, bytes.NewReader(raw))
	if err != nil {
		return PushResult{Status: PushUnavailable, Message: err.Error()}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return PushResult{Status: PushUnavailable, Message: err.Error()}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return PushResult{Status: PushUnavailable, Message: err.Error()}
	}

	var out pushResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if resp.StatusCode >= 500 {
			return PushResult{Status: PushUnavailable, Message: fmt.Sprintf("status %d", resp.StatusCode)}
		}
		return PushResult{Status: PushUnavailable, Message: err.Error()}
	}

	if out.ResponseCode == "0" {
		return PushResult{
			Status:            PushAccepted,
			CheckoutRequestID: out.CheckoutRequestID,
			MerchantRequestID: out.MerchantRequestID,
			Message:           out.ResponseDescription,
		}
	}

	msg := out.ErrorMessage
	if msg == "" {
		msg = out.ResponseDescription
	}
	if msg == "" {
		msg = fmt.Sprintf("request rejected with status %d", resp.StatusCode)
	}
	return PushResult{Status: PushRejected, Message: msg}
}
