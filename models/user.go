package models

import (
	"time"
)

type User struct {
	ID      string    `json:"id"`
	Email   string    `json:"email"`
	Name    string    `json:"name"`
	Phone   string    `json:"phone,omitempty"`
	Country string    `json:"country,omitempty"`
	Address string    `json:"address,omitempty"`
	ZipCode string    `json:"zip_code,omitempty"`
	IsAdmin bool      `json:"is_admin"`
	Created time.Time `json:"created"`
	Updated time.Time `json:"updated"`

	// CustomerID is the provider-side customer id, assigned after the
	// record is stored.
	CustomerID string `json:"customer_id,omitempty"`
}
