package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"ticketing/internal/services/stripe"
	"ticketing/internal/status"
	"ticketing/models"
	"ticketing/monitoring"
	"ticketing/utils"
)

// processedEventTTL bounds how long delivered provider event ids are
// remembered for duplicate suppression. The provider retries for at most a
// few days; the field merge itself is idempotent, so expiry here is safe.
const processedEventTTL = 72 * time.Hour

type TicketService struct {
	Store    TicketStore
	Events   EventStore
	Payments *PaymentService
	Redis    *redis.Client
	Notifier Notifier
}

func NewTicketService(store TicketStore, events EventStore, payments *PaymentService, redisClient *redis.Client, notifier Notifier) *TicketService {
	return &TicketService{
		Store:    store,
		Events:   events,
		Payments: payments,
		Redis:    redisClient,
		Notifier: notifier,
	}
}

// StartCheckout creates an open ticket for the event and opens a provider
// checkout session for it. At most one open ticket may exist per
// (event, user) pair.
func (s *TicketService) StartCheckout(ctx context.Context, eventID, userID, ticketType string, quantity int) (*models.Ticket, error) {
	ev, err := s.Events.FindByID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if ev.PriceID == "" {
		return nil, status.NewFailure(status.KindProvider, "event has no provider price yet", nil)
	}

	if _, err := s.Store.FindOpenByEventAndUser(ctx, eventID, userID); err == nil {
		return nil, status.ErrDuplicateTicket
	} else if !errors.Is(err, status.ErrTicketNotFound) {
		return nil, err
	}

	code, err := utils.GenerateCode(4)
	if err != nil {
		return nil, fmt.Errorf("generate ticket code: %w", err)
	}

	ticket := &models.Ticket{
		EventID:  eventID,
		UserID:   userID,
		Quantity: quantity,
		Type:     ticketType,
		Code:     code,
		Status:   models.TicketOpen,
	}

	id, err := s.Store.Create(ctx, ticket)
	if err != nil {
		return nil, err
	}
	ticket.ID = id

	session, err := s.Payments.StartCheckout(ctx, ev, userID, quantity)
	if err != nil {
		s.releaseTicket(ctx, id)
		return nil, status.NewFailure(status.KindProvider, "checkout session creation failed", err)
	}

	data := session.Normalize()
	if err := s.Store.AttachSession(ctx, id, data); err != nil {
		s.releaseTicket(ctx, id)
		return nil, err
	}

	monitoring.CheckoutStarted()

	ticket.SessionID = data.SessionID
	ticket.SessionURL = data.SessionURL
	ticket.PriceID = data.PriceID
	ticket.TotalAmount = data.TotalAmount
	ticket.Currency = data.Currency
	return ticket, nil
}

// releaseTicket removes a ticket whose checkout session never materialized.
// No session means no expiry webhook will ever clean it up, and an open
// ticket without one blocks the user from ever retrying that event.
func (s *TicketService) releaseTicket(ctx context.Context, id string) {
	if err := s.Store.Delete(ctx, id); err != nil && !errors.Is(err, status.ErrTicketNotFound) {
		slog.Warn("failed to release ticket after checkout failure", "ticket_id", id, "error", err)
	}
}

// HandleProviderEvent applies a verified webhook event to the matching
// ticket. The caller has already checked the payload signature; everything
// past this point is acknowledged to the provider except store outages,
// which surface as retryable failures.
func (s *TicketService) HandleProviderEvent(ctx context.Context, event *stripe.Event) error {
	switch event.Type {
	case stripe.EventCheckoutCompleted,
		stripe.EventCheckoutExpired,
		stripe.EventCheckoutAsyncPaymentFailed:
	default:
		// forward compatibility: acknowledge provider event types this
		// service does not handle yet
		monitoring.WebhookEvent(event.Type, "ignored")
		return nil
	}

	session, err := event.Session()
	if err != nil {
		monitoring.WebhookEvent(event.Type, "malformed")
		return status.NewFailure(status.KindInvalidInput, "malformed session object", err)
	}
	data := session.Normalize()

	if s.alreadyProcessed(ctx, event.ID) {
		monitoring.WebhookEvent(event.Type, "duplicate")
		return nil
	}

	ticket, err := s.Store.FindBySessionID(ctx, data.SessionID)
	if errors.Is(err, status.ErrTicketNotFound) {
		// The provider will keep redelivering an erroring webhook forever;
		// an orphaned session id can never resolve, so acknowledge it.
		slog.Warn("webhook for unknown session", "session_id", data.SessionID, "event_type", event.Type)
		monitoring.WebhookEvent(event.Type, "orphaned")
		return nil
	}
	if err != nil {
		return err
	}

	if data.Status == models.SessionExpired && data.PaymentStatus == models.PaymentUnpaid {
		if ticket.Status != models.TicketOpen {
			// stale expiry delivered after completion must not regress a
			// paid ticket
			slog.Warn("stale expiry for settled ticket", "session_id", data.SessionID, "ticket_status", ticket.Status)
			monitoring.WebhookEvent(event.Type, "stale")
			s.markProcessed(ctx, event.ID)
			return nil
		}

		if err := s.Store.DeleteBySessionID(ctx, data.SessionID); err != nil && !errors.Is(err, status.ErrTicketNotFound) {
			return err
		}
		monitoring.WebhookEvent(event.Type, "deleted")
		s.markProcessed(ctx, event.ID)
		return nil
	}

	prevStatus := ticket.Status
	newStatus := ticket.Status
	switch {
	case data.Status == models.SessionComplete &&
		(data.PaymentStatus == models.PaymentPaid || data.PaymentStatus == models.PaymentNoPaymentRequired):
		newStatus = models.TicketComplete
	case data.Status == models.SessionExpired && ticket.Status == models.TicketOpen:
		// expired with an unexpected payment state: keep the record but
		// close it out
		newStatus = models.TicketExpired
	}

	if err := s.Store.MergeCheckout(ctx, data.SessionID, data, newStatus); err != nil {
		return err
	}
	monitoring.WebhookEvent(event.Type, "applied")
	s.markProcessed(ctx, event.ID)

	if newStatus == models.TicketComplete && prevStatus != models.TicketComplete {
		s.notifyCompletion(ctx, ticket, data)
	}

	return nil
}

func (s *TicketService) notifyCompletion(ctx context.Context, ticket *models.Ticket, data models.CheckoutData) {
	if s.Notifier == nil {
		return
	}

	err := s.Notifier.Publish(ctx, UserChannel(ticket.UserID), map[string]any{
		"type":       "payment_success",
		"ticket_id":  ticket.ID,
		"code":       ticket.Code,
		"event_id":   ticket.EventID,
		"session_id": data.SessionID,
		"amount":     data.TotalAmount,
		"currency":   data.Currency,
	})
	if err != nil {
		slog.Warn("failed to notify buyer", "ticket_id", ticket.ID, "error", err)
	}
}

// alreadyProcessed reports whether this provider event id was applied
// before. Redis being down only disables duplicate suppression; the merge
// is idempotent without it.
func (s *TicketService) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.Redis == nil || eventID == "" {
		return false
	}

	n, err := s.Redis.Exists(ctx, processedKey(eventID)).Result()
	if err != nil {
		slog.Warn("duplicate check unavailable", "event_id", eventID, "error", err)
		return false
	}
	return n > 0
}

func (s *TicketService) markProcessed(ctx context.Context, eventID string) {
	if s.Redis == nil || eventID == "" {
		return
	}
	if err := s.Redis.Set(ctx, processedKey(eventID), 1, processedEventTTL).Err(); err != nil {
		slog.Warn("failed to mark event processed", "event_id", eventID, "error", err)
	}
}

func processedKey(eventID string) string {
	return fmt.Sprintf("webhook:processed:%s", eventID)
}
