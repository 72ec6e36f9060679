package stripe

import (
	"encoding/json"
	"time"

	"ticketing/models"
)

// Webhook event types that drive ticket mutation. Anything else is
// acknowledged without side effects.
const (
	EventCheckoutCompleted          = "checkout.session.completed"
	EventCheckoutExpired            = "checkout.session.expired"
	EventCheckoutAsyncPaymentFailed = "checkout.session.async_payment_failed"
)

type Customer struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Deleted bool   `json:"deleted"`
}

type Product struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Price struct {
	ID         string `json:"id"`
	Product    string `json:"product"`
	UnitAmount int64  `json:"unit_amount"`
	Currency   string `json:"currency"`
	Active     bool   `json:"active"`
}

type PriceList struct {
	Data    []Price `json:"data"`
	HasMore bool    `json:"has_more"`
}

type CheckoutSession struct {
	ID              string            `json:"id"`
	Status          string            `json:"status"`
	PaymentStatus   string            `json:"payment_status"`
	PaymentIntent   string            `json:"payment_intent"`
	URL             string            `json:"url"`
	Created         int64             `json:"created"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	Customer        string            `json:"customer"`
	CustomerEmail   string            `json:"customer_email"`
	CustomerDetails *CustomerDetails  `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
	TotalDetails    *TotalDetails     `json:"total_details"`
}

type CustomerDetails struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type TotalDetails struct {
	AmountShipping int64 `json:"amount_shipping"`
	AmountDiscount int64 `json:"amount_discount"`
	AmountTax      int64 `json:"amount_tax"`
}

// Normalize extracts the fields the reconciliation flow cares about from a
// checkout session payload.
func (s *CheckoutSession) Normalize() models.CheckoutData {
	data := models.CheckoutData{
		SessionID:      s.ID,
		Status:         s.Status,
		PaymentStatus:  s.PaymentStatus,
		PaymentIntent:  s.PaymentIntent,
		SessionURL:     s.URL,
		SessionCreated: time.Unix(s.Created, 0).UTC(),
		TotalAmount:    s.AmountTotal,
		Currency:       s.Currency,
		UserID:         s.Customer,
		Email:          s.CustomerEmail,
		PriceID:        s.Metadata["priceId"],
	}

	if data.UserID == "" {
		data.UserID = s.Metadata["customerId"]
	}
	if s.CustomerDetails != nil {
		if data.Email == "" {
			data.Email = s.CustomerDetails.Email
		}
		data.Name = s.CustomerDetails.Name
	}
	if s.TotalDetails != nil {
		data.AmountShipping = s.TotalDetails.AmountShipping
		data.AmountDiscount = s.TotalDetails.AmountDiscount
		data.AmountTax = s.TotalDetails.AmountTax
	}

	return data
}

// Event is a signed webhook delivery from the provider.
type Event struct {
	ID      string    `json:"id"`
	Type    string    `json:"type"`
	Created int64     `json:"created"`
	Data    EventData `json:"data"`
}

type EventData struct {
	Object json.RawMessage `json:"object"`
}

// Session decodes the event's inner object as a checkout session.
func (e *Event) Session() (*CheckoutSession, error) {
	var session CheckoutSession
	if err := json.Unmarshal(e.Data.Object, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
