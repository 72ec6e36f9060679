package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pocketbase/dbx"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticketing/internal/status"
	"ticketing/models"
)

// TicketStore is the keyed record store the reconciliation flow runs
// against. Tickets are addressed by id or by their payment-session id.
type TicketStore interface {
	FindByID(ctx context.Context, id string) (*models.Ticket, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Ticket, error)
	FindOpenByEventAndUser(ctx context.Context, eventID, userID string) (*models.Ticket, error)
	List(ctx context.Context, filter TicketFilter, limit, offset int) ([]*models.Ticket, error)
	Create(ctx context.Context, t *models.Ticket) (string, error)
	AttachSession(ctx context.Context, id string, data models.CheckoutData) error
	MergeCheckout(ctx context.Context, sessionID string, data models.CheckoutData, newStatus models.TicketStatus) error
	Delete(ctx context.Context, id string) error
	DeleteBySessionID(ctx context.Context, sessionID string) error
}

// EventStore exposes the event lookups and catalog-reference writes the
// payment flow needs. The reconciliation flow never mutates events.
type EventStore interface {
	FindByID(ctx context.Context, id string) (*models.Event, error)
	List(ctx context.Context, filter EventFilter, limit, offset int) ([]*models.Event, error)
	SetCatalogRefs(ctx context.Context, id, productID, priceID string) error
}

type pbTicketStore struct {
	app core.App
}

func NewTicketStore(app core.App) TicketStore {
	return &pbTicketStore{app: app}
}

func (s *pbTicketStore) FindByID(_ context.Context, id string) (*models.Ticket, error) {
	record, err := s.app.FindRecordById("tickets", id)
	if err != nil {
		return nil, mapStoreErr(err, status.ErrTicketNotFound)
	}
	return ticketFromRecord(record), nil
}

func (s *pbTicketStore) FindBySessionID(_ context.Context, sessionID string) (*models.Ticket, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"session_id = {:sid}",
		dbx.Params{"sid": sessionID},
	)
	if err != nil {
		return nil, mapStoreErr(err, status.ErrTicketNotFound)
	}
	return ticketFromRecord(record), nil
}

func (s *pbTicketStore) FindOpenByEventAndUser(_ context.Context, eventID, userID string) (*models.Ticket, error) {
	record, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"event = {:event} && user = {:user} && status = {:status}",
		dbx.Params{"event": eventID, "user": userID, "status": string(models.TicketOpen)},
	)
	if err != nil {
		return nil, mapStoreErr(err, status.ErrTicketNotFound)
	}
	return ticketFromRecord(record), nil
}

func (s *pbTicketStore) List(_ context.Context, filter TicketFilter, limit, offset int) ([]*models.Ticket, error) {
	expr, params, ok := filter.Build()
	if !ok {
		expr, params = "id != ''", nil
	}

	records, err := s.app.FindRecordsByFilter("tickets", expr, "-created", limit, offset, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	tickets := make([]*models.Ticket, 0, len(records))
	for _, r := range records {
		tickets = append(tickets, ticketFromRecord(r))
	}
	return tickets, nil
}

func (s *pbTicketStore) Create(ctx context.Context, t *models.Ticket) (string, error) {
	collection, err := s.app.FindCollectionByNameOrId("tickets")
	if err != nil {
		return "", fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	record := core.NewRecord(collection)
	record.Set("event", t.EventID)
	record.Set("user", t.UserID)
	record.Set("quantity", t.Quantity)
	record.Set("type", t.Type)
	record.Set("code", t.Code)
	record.Set("status", string(t.Status))

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return "", fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return record.Id, nil
}

func (s *pbTicketStore) AttachSession(ctx context.Context, id string, data models.CheckoutData) error {
	record, err := s.app.FindRecordById("tickets", id)
	if err != nil {
		return mapStoreErr(err, status.ErrTicketNotFound)
	}

	setCheckoutFields(record, data)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

// MergeCheckout overwrites the ticket's payment and session fields with the
// normalized record. All extracted fields are written; empty values are not
// skipped.
func (s *pbTicketStore) MergeCheckout(ctx context.Context, sessionID string, data models.CheckoutData, newStatus models.TicketStatus) error {
	record, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"session_id = {:sid}",
		dbx.Params{"sid": sessionID},
	)
	if err != nil {
		return mapStoreErr(err, status.ErrTicketNotFound)
	}

	setCheckoutFields(record, data)
	record.Set("status", string(newStatus))

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *pbTicketStore) Delete(_ context.Context, id string) error {
	record, err := s.app.FindRecordById("tickets", id)
	if err != nil {
		return mapStoreErr(err, status.ErrTicketNotFound)
	}

	if err := s.app.Delete(record); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func (s *pbTicketStore) DeleteBySessionID(_ context.Context, sessionID string) error {
	record, err := s.app.FindFirstRecordByFilter(
		"tickets",
		"session_id = {:sid}",
		dbx.Params{"sid": sessionID},
	)
	if err != nil {
		return mapStoreErr(err, status.ErrTicketNotFound)
	}

	if err := s.app.Delete(record); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func setCheckoutFields(record *core.Record, data models.CheckoutData) {
	record.Set("session_id", data.SessionID)
	record.Set("price_id", data.PriceID)
	record.Set("session_url", data.SessionURL)
	record.Set("session_created", data.SessionCreated)
	record.Set("payment_intent", data.PaymentIntent)
	record.Set("payment_status", data.PaymentStatus)
	record.Set("total_amount", data.TotalAmount)
	record.Set("currency", data.Currency)
	record.Set("amount_shipping", data.AmountShipping)
	record.Set("amount_discount", data.AmountDiscount)
	record.Set("amount_tax", data.AmountTax)
}

type pbEventStore struct {
	app core.App
}

func NewEventStore(app core.App) EventStore {
	return &pbEventStore{app: app}
}

func (s *pbEventStore) FindByID(_ context.Context, id string) (*models.Event, error) {
	record, err := s.app.FindRecordById("events", id)
	if err != nil {
		return nil, mapStoreErr(err, status.ErrEventNotFound)
	}
	return eventFromRecord(record), nil
}

func (s *pbEventStore) List(_ context.Context, filter EventFilter, limit, offset int) ([]*models.Event, error) {
	expr, params, ok := filter.Build()
	if !ok {
		expr, params = "id != ''", nil
	}

	records, err := s.app.FindRecordsByFilter("events", expr, "-created", limit, offset, params)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}

	events := make([]*models.Event, 0, len(records))
	for _, r := range records {
		events = append(events, eventFromRecord(r))
	}
	return events, nil
}

// SetCatalogRefs stores the provider catalog ids on the event. A replaced
// price id is appended to the history list; history entries are never
// removed.
func (s *pbEventStore) SetCatalogRefs(ctx context.Context, id, productID, priceID string) error {
	record, err := s.app.FindRecordById("events", id)
	if err != nil {
		return mapStoreErr(err, status.ErrEventNotFound)
	}

	prev := record.GetString("price_id")
	if prev != "" && prev != priceID {
		history := jsonStringSlice(record, "old_price_ids")
		seen := false
		for _, old := range history {
			if old == prev {
				seen = true
				break
			}
		}
		if !seen {
			history = append(history, prev)
			record.Set("old_price_ids", history)
		}
	}

	record.Set("product_id", productID)
	record.Set("price_id", priceID)

	if err := s.app.SaveWithContext(ctx, record); err != nil {
		return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
	}
	return nil
}

func ticketFromRecord(r *core.Record) *models.Ticket {
	t := &models.Ticket{
		ID:             r.Id,
		EventID:        r.GetString("event"),
		UserID:         r.GetString("user"),
		Quantity:       r.GetInt("quantity"),
		Type:           r.GetString("type"),
		Code:           r.GetString("code"),
		Status:         models.TicketStatus(r.GetString("status")),
		SessionID:      r.GetString("session_id"),
		PriceID:        r.GetString("price_id"),
		SessionURL:     r.GetString("session_url"),
		PaymentIntent:  r.GetString("payment_intent"),
		PaymentStatus:  r.GetString("payment_status"),
		TotalAmount:    int64(r.GetInt("total_amount")),
		Currency:       r.GetString("currency"),
		AmountShipping: int64(r.GetInt("amount_shipping")),
		AmountDiscount: int64(r.GetInt("amount_discount")),
		AmountTax:      int64(r.GetInt("amount_tax")),
		Created:        r.GetDateTime("created").Time(),
		Updated:        r.GetDateTime("updated").Time(),
	}

	if dt := r.GetDateTime("session_created"); !dt.IsZero() {
		created := dt.Time()
		t.SessionCreated = &created
	}
	return t
}

func eventFromRecord(r *core.Record) *models.Event {
	return &models.Event{
		ID:          r.Id,
		Name:        r.GetString("name"),
		Description: r.GetString("description"),
		Price:       decimal.NewFromFloat(r.GetFloat("price")),
		Currency:    r.GetString("currency"),
		StartTime:   r.GetDateTime("start_time").Time(),
		EndTime:     r.GetDateTime("end_time").Time(),
		Location:    r.GetString("location"),
		Image:       r.GetString("image"),
		OrganizerID: r.GetString("organizer"),
		EventTypeID: r.GetString("event_type"),
		ProductID:   r.GetString("product_id"),
		PriceID:     r.GetString("price_id"),
		OldPriceIDs: jsonStringSlice(r, "old_price_ids"),
		Created:     r.GetDateTime("created").Time(),
		Updated:     r.GetDateTime("updated").Time(),
	}
}

func jsonStringSlice(r *core.Record, key string) []string {
	var out []string
	if raw := r.GetString(key); raw != "" {
		_ = json.Unmarshal([]byte(raw), &out)
	}
	return out
}

func mapStoreErr(err error, notFound error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return fmt.Errorf("%w: %v", status.ErrStoreUnavailable, err)
}
