package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Event struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"` // major currency units
	Currency    string          `json:"currency"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	Location    string          `json:"location"`
	Image       string          `json:"image,omitempty"`
	OrganizerID string          `json:"organizer_id"`
	EventTypeID string          `json:"event_type,omitempty"`

	// Provider-side catalog identifiers. OldPriceIDs keeps every price id
	// ever issued for this event; ids are appended, never removed.
	ProductID   string   `json:"product_id,omitempty"`
	PriceID     string   `json:"price_id,omitempty"`
	OldPriceIDs []string `json:"old_price_ids,omitempty"`

	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`
}

type EventType struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Created     time.Time `json:"created"`
	Updated     time.Time `json:"updated"`
}
