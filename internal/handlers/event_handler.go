package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"
	"github.com/shopspring/decimal"

	"ticketing/internal/services"
	"ticketing/internal/status"
)

type EventHandler struct {
	app      core.App
	store    services.EventStore
	payments *services.PaymentService
}

func NewEventHandler(app core.App, store services.EventStore, payments *services.PaymentService) *EventHandler {
	return &EventHandler{app: app, store: store, payments: payments}
}

type eventRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Currency    string          `json:"currency"`
	StartTime   time.Time       `json:"start_time"`
	EndTime     time.Time       `json:"end_time"`
	Location    string          `json:"location"`
	Image       string          `json:"image"`
	EventTypeID string          `json:"event_type"`
}

// Create saves the event and then registers it with the payment provider's
// catalog. The catalog step runs after the event is committed so a provider
// outage never loses the event; the refs are filled in once it succeeds.
func (h *EventHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req eventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Name == "" || req.Price.IsNegative() {
		return apis.NewBadRequestError("Name is required and price must not be negative", nil)
	}
	if !req.EndTime.IsZero() && req.EndTime.Before(req.StartTime) {
		return apis.NewBadRequestError("End time must not precede start time", nil)
	}

	collection, err := h.app.FindCollectionByNameOrId("events")
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	record := core.NewRecord(collection)
	applyEventRequest(record, &req)
	record.Set("organizer", e.Auth.Id)

	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Unable to save event", err)
	}

	h.syncCatalog(e, record.Id)

	ev, err := h.store.FindByID(e.Request.Context(), record.Id)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}
	return respond(e, http.StatusCreated, "event created", ev)
}

func (h *EventHandler) Update(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	record, err := h.app.FindRecordById("events", e.Request.PathValue("id"))
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}
	if record.GetString("organizer") != e.Auth.Id && !isAdmin(e) {
		return apis.NewForbiddenError("Only the organizer can modify this event", nil)
	}

	var req eventRequest
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Price.IsNegative() {
		return apis.NewBadRequestError("Price must not be negative", nil)
	}

	priceChanged := !req.Price.IsZero() &&
		!req.Price.Equal(decimal.NewFromFloat(record.GetFloat("price")))

	applyEventPatch(record, &req)
	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Unable to save event", err)
	}

	// a price change needs a fresh provider price; same amount reuses the
	// existing one, so resync is cheap either way
	if priceChanged {
		h.syncCatalog(e, record.Id)
	}

	ev, err := h.store.FindByID(e.Request.Context(), record.Id)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}
	return respond(e, http.StatusOK, "event updated", ev)
}

func (h *EventHandler) Delete(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	record, err := h.app.FindRecordById("events", e.Request.PathValue("id"))
	if err != nil {
		return apis.NewNotFoundError("Event not found", nil)
	}
	if record.GetString("organizer") != e.Auth.Id && !isAdmin(e) {
		return apis.NewForbiddenError("Only the organizer can delete this event", nil)
	}

	if err := h.app.Delete(record); err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}
	return respond(e, http.StatusOK, "event deleted", nil)
}

func (h *EventHandler) Get(e *core.RequestEvent) error {
	ev, err := h.store.FindByID(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		if errors.Is(err, status.ErrEventNotFound) {
			return apis.NewNotFoundError("Event not found", nil)
		}
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}
	return respond(e, http.StatusOK, "ok", ev)
}

func (h *EventHandler) List(e *core.RequestEvent) error {
	q := e.Request.URL.Query()
	filter := services.EventFilter{
		Search:      q.Get("search"),
		OrganizerID: q.Get("organizer"),
		EventTypeID: q.Get("event_type"),
		Location:    q.Get("location"),
		StartAfter:  timeParam(q.Get("start_after")),
		EndBefore:   timeParam(q.Get("end_before")),
	}

	limit, offset := listParams(e)
	events, err := h.store.List(e.Request.Context(), filter, limit, offset)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}
	return respond(e, http.StatusOK, "ok", events)
}

// syncCatalog upserts the provider product and price for the event and
// stores the resulting refs. Failures are logged, not surfaced; the event
// stays usable and the catalog can be retried on the next price change.
func (h *EventHandler) syncCatalog(e *core.RequestEvent, eventID string) {
	ctx := e.Request.Context()

	ev, err := h.store.FindByID(ctx, eventID)
	if err != nil {
		slog.Error("catalog sync: reload failed", "event_id", eventID, "error", err)
		return
	}

	priceID, productID, err := h.payments.EnsureProductAndPrice(ctx, ev)
	if err != nil {
		slog.Error("catalog sync: provider upsert failed", "event_id", eventID, "error", err)
		return
	}

	if err := h.store.SetCatalogRefs(ctx, eventID, productID, priceID); err != nil {
		slog.Error("catalog sync: storing refs failed", "event_id", eventID, "error", err)
	}
}

func applyEventRequest(record *core.Record, req *eventRequest) {
	record.Set("name", req.Name)
	record.Set("description", req.Description)
	price, _ := req.Price.Float64()
	record.Set("price", price)
	record.Set("currency", req.Currency)
	record.Set("start_time", req.StartTime)
	record.Set("end_time", req.EndTime)
	record.Set("location", req.Location)
	record.Set("image", req.Image)
	record.Set("event_type", req.EventTypeID)
}

// applyEventPatch only writes fields present in the request; zero values
// leave the stored value untouched.
func applyEventPatch(record *core.Record, req *eventRequest) {
	if req.Name != "" {
		record.Set("name", req.Name)
	}
	if req.Description != "" {
		record.Set("description", req.Description)
	}
	if !req.Price.IsZero() {
		price, _ := req.Price.Float64()
		record.Set("price", price)
	}
	if req.Currency != "" {
		record.Set("currency", req.Currency)
	}
	if !req.StartTime.IsZero() {
		record.Set("start_time", req.StartTime)
	}
	if !req.EndTime.IsZero() {
		record.Set("end_time", req.EndTime)
	}
	if req.Location != "" {
		record.Set("location", req.Location)
	}
	if req.Image != "" {
		record.Set("image", req.Image)
	}
	if req.EventTypeID != "" {
		record.Set("event_type", req.EventTypeID)
	}
}
