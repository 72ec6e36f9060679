package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/pocketbase/pocketbase/apis"
	"github.com/pocketbase/pocketbase/core"

	"ticketing/internal/services"
	"ticketing/internal/services/stripe"
	"ticketing/internal/status"
	"ticketing/monitoring"
)

// maxWebhookBody caps provider payload reads. Checkout session events are
// a few KB at most.
const maxWebhookBody = 1 << 20

type WebhookHandler struct {
	tickets       *services.TicketService
	webhookSecret string
	tolerance     time.Duration
}

func NewWebhookHandler(tickets *services.TicketService, webhookSecret string, tolerance time.Duration) *WebhookHandler {
	return &WebhookHandler{
		tickets:       tickets,
		webhookSecret: webhookSecret,
		tolerance:     tolerance,
	}
}

// HandleWebhook receives payment provider deliveries. The signature is
// verified over the raw body before any JSON parsing. A 400 is returned
// only for signature failures; business-level anomalies are acknowledged
// with 200 so the provider stops retrying, and store outages return 503 so
// it retries later.
func (h *WebhookHandler) HandleWebhook(e *core.RequestEvent) error {
	payload, err := io.ReadAll(io.LimitReader(e.Request.Body, maxWebhookBody))
	if err != nil {
		return apis.NewBadRequestError("Webhook Error: unable to read payload", err)
	}

	sig := e.Request.Header.Get(stripe.SignatureHeader)
	event, err := stripe.ConstructWebhookEvent(payload, sig, h.webhookSecret, h.tolerance)
	if err != nil {
		slog.Warn("webhook signature verification failed", "error", err)
		monitoring.WebhookSignatureFailure()
		return apis.NewBadRequestError(fmt.Sprintf("Webhook Error: %v", err), nil)
	}

	if err := h.tickets.HandleProviderEvent(e.Request.Context(), event); err != nil {
		if errors.Is(err, status.ErrStoreUnavailable) {
			slog.Error("webhook processing deferred", "event_id", event.ID, "error", err)
			return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
		}
		if kind, ok := status.KindOf(err); ok && kind == status.KindInvalidInput {
			// unparseable session object inside a correctly signed event;
			// retrying cannot help, acknowledge it
			slog.Error("webhook payload rejected", "event_id", event.ID, "error", err)
			return e.JSON(http.StatusOK, map[string]any{"received": true})
		}
		slog.Error("webhook processing failed", "event_id", event.ID, "error", err)
		return apis.NewApiError(http.StatusServiceUnavailable, "Temporarily unavailable", nil)
	}

	return e.JSON(http.StatusOK, map[string]any{"received": true})
}
