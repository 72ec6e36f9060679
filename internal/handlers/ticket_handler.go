package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/internal/status"
)

type TicketHandler struct {
	tickets *services.TicketService
	store   services.TicketStore
}

func NewTicketHandler(tickets *services.TicketService, store services.TicketStore) *TicketHandler {
	return &TicketHandler{tickets: tickets, store: store}
}

// Create opens a checkout: it creates an open ticket and returns the
// provider session url the buyer must complete payment on.
func (h *TicketHandler) Create(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	var req struct {
		EventID  string `json:"event_id"`
		Quantity int    `json:"quantity"`
		Type     string `json:"type"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.EventID == "" {
		return apis.NewBadRequestError("event_id is required", nil)
	}
	if req.Quantity < 1 {
		req.Quantity = 1
	}

	ticket, err := h.tickets.StartCheckout(e.Request.Context(), req.EventID, e.Auth.Id, req.Type, req.Quantity)
	switch {
	case err == nil:
	case errors.Is(err, status.ErrEventNotFound):
		return apis.NewNotFoundError("Event not found", nil)
	case errors.Is(err, status.ErrDuplicateTicket):
		return apis.NewApiError(http.StatusConflict, "You already have a pending ticket for this event", nil)
	default:
		slog.Error("checkout failed", "event_id", req.EventID, "user_id", e.Auth.Id, "error", err)
		return apis.NewBadRequestError("Unable to start checkout", nil)
	}

	return respond(e, http.StatusCreated, "checkout created", ticket)
}

func (h *TicketHandler) Get(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	ticket, err := h.store.FindByID(e.Request.Context(), e.Request.PathValue("id"))
	if err != nil {
		if errors.Is(err, status.ErrTicketNotFound) {
			return apis.NewNotFoundError("Ticket not found", nil)
		}
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	if ticket.UserID != e.Auth.Id && !isAdmin(e) {
		return apis.NewForbiddenError("Not your ticket", nil)
	}

	return respond(e, http.StatusOK, "ok", ticket)
}

func (h *TicketHandler) List(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	q := e.Request.URL.Query()
	filter := services.TicketFilter{
		EventID:       q.Get("event_id"),
		UserID:        q.Get("user_id"),
		Status:        q.Get("status"),
		Type:          q.Get("type"),
		PaymentStatus: q.Get("payment_status"),
		Currency:      q.Get("currency"),
		CreatedBefore: timeParam(q.Get("created_before")),
		CreatedAfter:  timeParam(q.Get("created_after")),
	}

	// non-admins only ever see their own tickets
	if !isAdmin(e) {
		filter.UserID = e.Auth.Id
	}

	limit, offset := listParams(e)
	tickets, err := h.store.List(e.Request.Context(), filter, limit, offset)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	return respond(e, http.StatusOK, "ok", tickets)
}

func timeParam(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	return &t
}
