package domain

import "time"

type User struct {
	UserID           string    `json:"userId"`
	Username         string    `json:"username"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	PhoneNumber      string    `json:"phoneNumber,omitempty"`
	DeliveryLocation string    `json:"deliveryLocation,omitempty"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}
