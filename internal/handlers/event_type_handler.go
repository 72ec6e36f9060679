package handlers

import (
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketing/models"
)

// EventTypeHandler manages the small admin-curated category list events
// reference.
type EventTypeHandler struct {
	app core.App
}

func NewEventTypeHandler(app core.App) *EventTypeHandler {
	return &EventTypeHandler{app: app}
}

func (h *EventTypeHandler) List(e *core.RequestEvent) error {
	records, err := h.app.FindAllRecords("event_types")
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	types := make([]*models.EventType, 0, len(records))
	for _, r := range records {
		types = append(types, eventTypeFromRecord(r))
	}
	return respond(e, http.StatusOK, "ok", types)
}

func (h *EventTypeHandler) Create(e *core.RequestEvent) error {
	if !isAdmin(e) {
		return apis.NewForbiddenError("Admin only", nil)
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Name == "" {
		return apis.NewBadRequestError("Name is required", nil)
	}

	collection, err := h.app.FindCollectionByNameOrId("event_types")
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	record := core.NewRecord(collection)
	record.Set("name", req.Name)
	record.Set("description", req.Description)

	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Unable to save event type", err)
	}
	return respond(e, http.StatusCreated, "event type created", eventTypeFromRecord(record))
}

func (h *EventTypeHandler) Update(e *core.RequestEvent) error {
	if !isAdmin(e) {
		return apis.NewForbiddenError("Admin only", nil)
	}

	record, err := h.app.FindRecordById("event_types", e.Request.PathValue("id"))
	if err != nil {
		return apis.NewNotFoundError("Event type not found", nil)
	}

	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}

	if req.Name != "" {
		record.Set("name", req.Name)
	}
	if req.Description != "" {
		record.Set("description", req.Description)
	}

	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Unable to save event type", err)
	}
	return respond(e, http.StatusOK, "event type updated", eventTypeFromRecord(record))
}

func (h *EventTypeHandler) Delete(e *core.RequestEvent) error {
	if !isAdmin(e) {
		return apis.NewForbiddenError("Admin only", nil)
	}

	record, err := h.app.FindRecordById("event_types", e.Request.PathValue("id"))
	if err != nil {
		return apis.NewNotFoundError("Event type not found", nil)
	}

	if err := h.app.Delete(record); err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}
	return respond(e, http.StatusOK, "event type deleted", nil)
}

func eventTypeFromRecord(r *core.Record) *models.EventType {
	return &models.EventType{
		ID:          r.Id,
		Name:        r.GetString("name"),
		Description: r.GetString("description"),
		Created:     r.GetDateTime("created").Time(),
		Updated:     r.GetDateTime("updated").Time(),
	}
}
