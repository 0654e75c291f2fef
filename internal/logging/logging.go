package logging

import (
	"encoding/json"
	"log"
	"time"
)

// Event is one structured log line. Zero-valued fields are dropped.
type Event struct {
	Component         string `json:"component"`
	OrderID           string `json:"order_id,omitempty"`
	CartID            string `json:"cart_id,omitempty"`
	CheckoutRequestID string `json:"checkout_request_id,omitempty"`
	Step              string `json:"step,omitempty"`
	Status            string `json:"status,omitempty"`
	Message           string `json:"message,omitempty"`
	Error             string `json:"error,omitempty"`
}

func Log(e Event) {
	payload := map[string]any{
		"component": e.Component,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	}
	if e.OrderID != "" {
		payload["order_id"] = e.OrderID
	}
	if e.CartID != "" {
		payload["cart_id"] = e.CartID
	}
	if e.CheckoutRequestID != "" {
		payload["checkout_request_id"] = e.CheckoutRequestID
	}
	if e.Step != "" {
		payload["step"] = e.Step
	}
	if e.Status != "" {
		payload["status"] = e.Status
	}
	if e.Message != "" {
		payload["message"] = e.Message
	}
	if e.Error != "" {
		payload["error"] = e.Error
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("{\"component\":%q,\"status\":\"log_error\",\"error\":%q}", e.Component, err.Error())
		return
	}
	log.Print(string(data))
}
