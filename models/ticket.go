package models

import (
	"time"
)

type TicketStatus string

const (
	TicketOpen     TicketStatus = "open"
	TicketComplete TicketStatus = "complete"
	TicketExpired  TicketStatus = "expired"
)

// Payment statuses reported by the provider on a checkout session.
const (
	PaymentPaid              = "paid"
	PaymentUnpaid            = "unpaid"
	PaymentNoPaymentRequired = "no_payment_required"
)

type Ticket struct {
	ID             string       `json:"id"`
	EventID        string       `json:"event_id"`
	UserID         string       `json:"user_id"`
	Quantity       int          `json:"quantity"`
	Type           string       `json:"type"`
	Code           string       `json:"code,omitempty"`
	Status         TicketStatus `json:"status"`
	SessionID      string       `json:"session_id,omitempty"`
	PriceID        string       `json:"price_id,omitempty"`
	SessionURL     string       `json:"session_url,omitempty"`
	SessionCreated *time.Time   `json:"session_created,omitempty"`
	PaymentIntent  string       `json:"payment_intent,omitempty"`
	PaymentStatus  string       `json:"payment_status,omitempty"`
	TotalAmount    int64        `json:"total_amount"` // minor currency units
	Currency       string       `json:"currency,omitempty"`
	AmountShipping int64        `json:"amount_shipping"`
	AmountDiscount int64        `json:"amount_discount"`
	AmountTax      int64        `json:"amount_tax"`
	Created        time.Time    `json:"created"`
	Updated        time.Time    `json:"updated"`
}

// Terminal reports whether no further lifecycle transition is expected.
func (s TicketStatus) Terminal() bool {
	return s == TicketComplete || s == TicketExpired
}
