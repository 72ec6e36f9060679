package services

import (
	"strings"
	"time"

	"github.com/pocketbase/dbx"
)

// Filter builders turn structs of optional query fields into a single
// record-store filter expression plus its bound params, instead of the
// field-by-field conditional assembly earlier revisions did inline in the
// handlers. An empty struct yields ok=false and no filter.

type TicketFilter struct {
	EventID        string
	UserID         string
	Status         string
	Type           string
	SessionID      string
	PriceID        string
	PaymentIntent  string
	PaymentStatus  string
	Currency       string
	CreatedBefore  *time.Time // bounds on session_created
	CreatedAfter   *time.Time
	MinTotalAmount *int64
	MaxTotalAmount *int64
}

func (f TicketFilter) Build() (string, dbx.Params, bool) {
	b := newFilterBuilder()
	b.eq("event", f.EventID)
	b.eq("user", f.UserID)
	b.eq("status", f.Status)
	b.eq("type", f.Type)
	b.eq("session_id", f.SessionID)
	b.eq("price_id", f.PriceID)
	b.eq("payment_intent", f.PaymentIntent)
	b.eq("payment_status", f.PaymentStatus)
	b.eq("currency", f.Currency)
	b.before("session_created", f.CreatedBefore)
	b.after("session_created", f.CreatedAfter)
	if f.MinTotalAmount != nil {
		b.add("total_amount >= {:minTotal}", "minTotal", *f.MinTotalAmount)
	}
	if f.MaxTotalAmount != nil {
		b.add("total_amount <= {:maxTotal}", "maxTotal", *f.MaxTotalAmount)
	}
	return b.build()
}

type EventFilter struct {
	Search        string // matched against name and description
	OrganizerID   string
	EventTypeID   string
	Location      string
	CreatedBefore *time.Time
	CreatedAfter  *time.Time
	StartAfter    *time.Time
	EndBefore     *time.Time
}

func (f EventFilter) Build() (string, dbx.Params, bool) {
	b := newFilterBuilder()
	if f.Search != "" {
		b.add("(name ~ {:search} || description ~ {:search})", "search", f.Search)
	}
	b.eq("organizer", f.OrganizerID)
	b.eq("event_type", f.EventTypeID)
	if f.Location != "" {
		b.add("location ~ {:location}", "location", f.Location)
	}
	b.before("created", f.CreatedBefore)
	b.after("created", f.CreatedAfter)
	if f.StartAfter != nil {
		b.add("start_time >= {:startAfter}", "startAfter", f.StartAfter.UTC())
	}
	if f.EndBefore != nil {
		b.add("end_time < {:endBefore}", "endBefore", f.EndBefore.UTC())
	}
	return b.build()
}

type UserFilter struct {
	Name          string // contains
	Email         string // contains
	IsAdmin       *bool
	CreatedBefore *time.Time
	CreatedAfter  *time.Time
}

func (f UserFilter) Build() (string, dbx.Params, bool) {
	b := newFilterBuilder()
	if f.Name != "" {
		b.add("name ~ {:name}", "name", f.Name)
	}
	if f.Email != "" {
		b.add("email ~ {:email}", "email", f.Email)
	}
	if f.IsAdmin != nil {
		b.add("is_admin = {:isAdmin}", "isAdmin", *f.IsAdmin)
	}
	b.before("created", f.CreatedBefore)
	b.after("created", f.CreatedAfter)
	return b.build()
}

type filterBuilder struct {
	conditions []string
	params     dbx.Params
}

func newFilterBuilder() *filterBuilder {
	return &filterBuilder{params: dbx.Params{}}
}

func (b *filterBuilder) add(condition, param string, value any) {
	b.conditions = append(b.conditions, condition)
	b.params[param] = value
}

func (b *filterBuilder) eq(field, value string) {
	if value == "" {
		return
	}
	b.add(field+" = {:"+field+"}", field, value)
}

func (b *filterBuilder) before(field string, t *time.Time) {
	if t == nil {
		return
	}
	b.add(field+" < {:"+field+"Before}", field+"Before", t.UTC())
}

func (b *filterBuilder) after(field string, t *time.Time) {
	if t == nil {
		return
	}
	b.add(field+" >= {:"+field+"After}", field+"After", t.UTC())
}

func (b *filterBuilder) build() (string, dbx.Params, bool) {
	if len(b.conditions) == 0 {
		return "", nil, false
	}
	return strings.Join(b.conditions, " && "), b.params, true
}
