package handlers

import (
	"log/slog"
	"net/http"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/models"
)

type UserHandler struct {
	app      core.App
	payments *services.PaymentService
}

func NewUserHandler(app core.App, payments *services.PaymentService) *UserHandler {
	return &UserHandler{app: app, payments: payments}
}

// Register creates the account record, then provisions the matching
// provider customer. The customer id lands on the record afterwards; a
// provider outage leaves it empty and is only logged, since the checkout
// flow addresses the customer by the local user id either way.
func (h *UserHandler) Register(e *core.RequestEvent) error {
	var req struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
		Name            string `json:"name"`
		Phone           string `json:"phone"`
		Country         string `json:"country"`
		Address         string `json:"address"`
		ZipCode         string `json:"zip_code"`
	}
	if err := e.BindBody(&req); err != nil {
		return apis.NewBadRequestError("Invalid request", err)
	}
	if req.Email == "" || req.Password == "" {
		return apis.NewBadRequestError("Email and password are required", nil)
	}
	if req.PasswordConfirm != "" && req.PasswordConfirm != req.Password {
		return apis.NewBadRequestError("Passwords do not match", nil)
	}

	collection, err := h.app.FindCollectionByNameOrId("users")
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	record := core.NewRecord(collection)
	record.SetEmail(req.Email)
	record.SetPassword(req.Password)
	record.Set("name", req.Name)
	record.Set("phone", req.Phone)
	record.Set("country", req.Country)
	record.Set("address", req.Address)
	record.Set("zip_code", req.ZipCode)

	if err := h.app.Save(record); err != nil {
		return apis.NewBadRequestError("Unable to create account", err)
	}

	customerID, err := h.payments.ProvisionCustomer(e.Request.Context(), record.Id, req.Email)
	if err != nil {
		slog.Error("customer provisioning failed", "user_id", record.Id, "error", err)
	} else {
		record.Set("customer_id", customerID)
		if err := h.app.Save(record); err != nil {
			slog.Error("storing customer id failed", "user_id", record.Id, "error", err)
		}
	}

	return respond(e, http.StatusCreated, "account created", userFromRecord(record))
}

func (h *UserHandler) Get(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	id := e.Request.PathValue("id")
	if id != e.Auth.Id && !isAdmin(e) {
		return apis.NewForbiddenError("Not your account", nil)
	}

	record, err := h.app.FindRecordById("users", id)
	if err != nil {
		return apis.NewNotFoundError("User not found", nil)
	}
	return respond(e, http.StatusOK, "ok", userFromRecord(record))
}

func (h *UserHandler) List(e *core.RequestEvent) error {
	if !isAdmin(e) {
		return apis.NewForbiddenError("Admin only", nil)
	}

	q := e.Request.URL.Query()
	filter := services.UserFilter{
		Name:          q.Get("name"),
		Email:         q.Get("email"),
		CreatedBefore: timeParam(q.Get("created_before")),
		CreatedAfter:  timeParam(q.Get("created_after")),
	}
	if v := q.Get("is_admin"); v == "true" || v == "false" {
		admin := v == "true"
		filter.IsAdmin = &admin
	}

	limit, offset := listParams(e)
	expr, params, ok := filter.Build()
	if !ok {
		expr, params = "id != ''", nil
	}

	records, err := h.app.FindRecordsByFilter("users", expr, "-created", limit, offset, params)
	if err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	users := make([]*models.User, 0, len(records))
	for _, r := range records {
		users = append(users, userFromRecord(r))
	}
	return respond(e, http.StatusOK, "ok", users)
}

// Delete removes the provider customer first so no dangling customer can
// keep accepting checkouts, then deletes the record.
func (h *UserHandler) Delete(e *core.RequestEvent) error {
	if e.Auth == nil {
		return apis.NewUnauthorizedError("Unauthorized", nil)
	}

	id := e.Request.PathValue("id")
	if id != e.Auth.Id && !isAdmin(e) {
		return apis.NewForbiddenError("Not your account", nil)
	}

	record, err := h.app.FindRecordById("users", id)
	if err != nil {
		return apis.NewNotFoundError("User not found", nil)
	}

	if err := h.payments.RemoveCustomer(e.Request.Context(), record.Id); err != nil {
		slog.Error("customer removal failed", "user_id", record.Id, "error", err)
		return apis.NewApiError(http.StatusServiceUnavailable, "Unable to remove payment account", nil)
	}

	if err := h.app.Delete(record); err != nil {
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}
	return respond(e, http.StatusOK, "account deleted", nil)
}

func userFromRecord(r *core.Record) *models.User {
	return &models.User{
		ID:         r.Id,
		Email:      r.Email(),
		Name:       r.GetString("name"),
		Phone:      r.GetString("phone"),
		Country:    r.GetString("country"),
		Address:    r.GetString("address"),
		ZipCode:    r.GetString("zip_code"),
		IsAdmin:    r.GetBool("is_admin"),
		CustomerID: r.GetString("customer_id"),
		Created:    r.GetDateTime("created").Time(),
		Updated:    r.GetDateTime("updated").Time(),
	}
}
