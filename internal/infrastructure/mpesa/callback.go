package mpesa

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Callback is the decoded payment confirmation the provider posts back after
// the subscriber resolves (or abandons) the STK prompt.
type Callback struct {
	MerchantRequestID string
	CheckoutRequestID string
	ResultCode        int
	ResultDesc        string
	ReceiptNumber     string
	Amount            string
	PhoneNumber       string
}

func (c *Callback) Success() bool { return c.ResultCode == 0 }

type callbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        *int   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string `json:"Name"`
					Value any    `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decodes the provider's callback envelope, failing closed on
// any structural surprise: missing stkCallback, missing ResultCode or an
// empty CheckoutRequestID all reject the payload.
func ParseCallback(raw []byte) (*Callback, error) {
	var env callbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("decode callback: %w", err)
	}
	stk := env.Body.StkCallback
	if stk == nil {
		return nil, fmt.Errorf("callback missing Body.stkCallback")
	}
	if stk.ResultCode == nil {
		return nil, fmt.Errorf("callback missing ResultCode")
	}
	if stk.CheckoutRequestID == "" {
		return nil, fmt.Errorf("callback missing CheckoutRequestID")
	}

	cb := &Callback{
		MerchantRequestID: stk.MerchantRequestID,
		CheckoutRequestID: stk.CheckoutRequestID,
		ResultCode:        *stk.ResultCode,
		ResultDesc:        stk.ResultDesc,
	}
	if stk.CallbackMetadata != nil {
		for _, item := range stk.CallbackMetadata.Item {
			switch item.Name {
			case "MpesaReceiptNumber":
				cb.ReceiptNumber = metadataString(item.Value)
			case "Amount":
				cb.Amount = metadataString(item.Value)
			case "PhoneNumber":
				cb.PhoneNumber = metadataString(item.Value)
			}
		}
	}
	return cb, nil
}

// Metadata values arrive as strings or JSON numbers depending on the field
// and the provider's mood.
func metadataString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

// Ack is the acknowledgment body returned to the provider for every
// callback delivery.
type Ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}
