package models

import (
	"time"
)

// Session lifecycle statuses reported by the provider.
const (
	SessionOpen     = "open"
	SessionComplete = "complete"
	SessionExpired  = "expired"
)

// CheckoutData is the normalized record extracted from a provider checkout
// session. Every field is written on a ticket merge; none are skipped for
// being empty.
type CheckoutData struct {
	SessionID      string    `json:"session_id"`
	Status         string    `json:"status"`
	PaymentStatus  string    `json:"payment_status"`
	PaymentIntent  string    `json:"payment_intent"`
	SessionURL     string    `json:"session_url"`
	SessionCreated time.Time `json:"session_created"`
	TotalAmount    int64     `json:"total_amount"` // minor currency units
	Currency       string    `json:"currency"`
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	PriceID        string    `json:"price_id"`
	AmountShipping int64     `json:"amount_shipping"`
	AmountDiscount int64     `json:"amount_discount"`
	AmountTax      int64     `json:"amount_tax"`
}
