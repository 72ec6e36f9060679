package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ticketing/internal/services/stripe"
	"ticketing/internal/status"
	"ticketing/models"
)

type fakeTicketStore struct {
	tickets map[string]*models.Ticket // keyed by session id

	mergeCalls  []models.TicketStatus
	deleteCalls int
	createdID   string

	findErr error
}

func newFakeTicketStore(tickets ...*models.Ticket) *fakeTicketStore {
	s := &fakeTicketStore{tickets: map[string]*models.Ticket{}}
	for _, t := range tickets {
		s.tickets[t.SessionID] = t
	}
	return s
}

func (s *fakeTicketStore) FindByID(_ context.Context, id string) (*models.Ticket, error) {
	for _, t := range s.tickets {
		if t.ID == id {
			return t, nil
		}
	}
	return nil, status.ErrTicketNotFound
}

func (s *fakeTicketStore) FindBySessionID(_ context.Context, sessionID string) (*models.Ticket, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	if t, ok := s.tickets[sessionID]; ok {
		return t, nil
	}
	return nil, status.ErrTicketNotFound
}

func (s *fakeTicketStore) FindOpenByEventAndUser(_ context.Context, eventID, userID string) (*models.Ticket, error) {
	for _, t := range s.tickets {
		if t.EventID == eventID && t.UserID == userID && t.Status == models.TicketOpen {
			return t, nil
		}
	}
	return nil, status.ErrTicketNotFound
}

func (s *fakeTicketStore) List(_ context.Context, _ TicketFilter, _, _ int) ([]*models.Ticket, error) {
	return nil, nil
}

func (s *fakeTicketStore) Create(_ context.Context, t *models.Ticket) (string, error) {
	s.createdID = "tkt_new"
	t.ID = s.createdID
	s.tickets[t.SessionID] = t
	return s.createdID, nil
}

func (s *fakeTicketStore) AttachSession(_ context.Context, id string, data models.CheckoutData) error {
	for sid, t := range s.tickets {
		if t.ID == id {
			delete(s.tickets, sid)
			t.SessionID = data.SessionID
			t.SessionURL = data.SessionURL
			s.tickets[t.SessionID] = t
			return nil
		}
	}
	return status.ErrTicketNotFound
}

func (s *fakeTicketStore) MergeCheckout(_ context.Context, sessionID string, data models.CheckoutData, newStatus models.TicketStatus) error {
	t, ok := s.tickets[sessionID]
	if !ok {
		return status.ErrTicketNotFound
	}
	s.mergeCalls = append(s.mergeCalls, newStatus)
	t.Status = newStatus
	t.PaymentStatus = data.PaymentStatus
	t.PaymentIntent = data.PaymentIntent
	t.TotalAmount = data.TotalAmount
	return nil
}

func (s *fakeTicketStore) Delete(_ context.Context, id string) error {
	for sid, t := range s.tickets {
		if t.ID == id {
			delete(s.tickets, sid)
			return nil
		}
	}
	return status.ErrTicketNotFound
}

func (s *fakeTicketStore) DeleteBySessionID(_ context.Context, sessionID string) error {
	if _, ok := s.tickets[sessionID]; !ok {
		return status.ErrTicketNotFound
	}
	s.deleteCalls++
	delete(s.tickets, sessionID)
	return nil
}

type fakeEventStore struct {
	events map[string]*models.Event
}

func (s *fakeEventStore) FindByID(_ context.Context, id string) (*models.Event, error) {
	if ev, ok := s.events[id]; ok {
		return ev, nil
	}
	return nil, status.ErrEventNotFound
}

func (s *fakeEventStore) List(_ context.Context, _ EventFilter, _, _ int) ([]*models.Event, error) {
	return nil, nil
}

func (s *fakeEventStore) SetCatalogRefs(_ context.Context, _, _, _ string) error {
	return nil
}

type fakeNotifier struct {
	channels []string
	messages []map[string]any
}

func (n *fakeNotifier) Publish(_ context.Context, channel string, message map[string]any) error {
	n.channels = append(n.channels, channel)
	n.messages = append(n.messages, message)
	return nil
}

func providerEvent(t *testing.T, eventType, eventID string, session stripe.CheckoutSession) *stripe.Event {
	t.Helper()

	raw, err := json.Marshal(session)
	require.NoError(t, err)

	return &stripe.Event{
		ID:   eventID,
		Type: eventType,
		Data: stripe.EventData{Object: raw},
	}
}

func openTicket(sessionID string) *models.Ticket {
	return &models.Ticket{
		ID:        "tkt1",
		EventID:   "evt1",
		UserID:    "user1",
		Quantity:  1,
		Status:    models.TicketOpen,
		SessionID: sessionID,
	}
}

func TestHandleProviderEvent_CompletedPaidMarksTicketComplete(t *testing.T) {
	store := newFakeTicketStore(openTicket("cs_1"))
	notifier := &fakeNotifier{}
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, notifier)

	event := providerEvent(t, stripe.EventCheckoutCompleted, "evt_100", stripe.CheckoutSession{
		ID:            "cs_1",
		Status:        models.SessionComplete,
		PaymentStatus: models.PaymentPaid,
		PaymentIntent: "pi_1",
		AmountTotal:   2550,
		Currency:      "usd",
	})

	require.NoError(t, svc.HandleProviderEvent(context.Background(), event))

	assert.Equal(t, []models.TicketStatus{models.TicketComplete}, store.mergeCalls)
	ticket := store.tickets["cs_1"]
	assert.Equal(t, models.TicketComplete, ticket.Status)
	assert.Equal(t, "pi_1", ticket.PaymentIntent)
	assert.Equal(t, int64(2550), ticket.TotalAmount)

	// buyer got notified on their personal channel
	require.Len(t, notifier.channels, 1)
	assert.Equal(t, "user-user1", notifier.channels[0])
	assert.Equal(t, "payment_success", notifier.messages[0]["type"])
}

func TestHandleProviderEvent_CompletedUnpaidStaysOpen(t *testing.T) {
	store := newFakeTicketStore(openTicket("cs_1"))
	notifier := &fakeNotifier{}
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, notifier)

	event := providerEvent(t, stripe.EventCheckoutCompleted, "evt_101", stripe.CheckoutSession{
		ID:            "cs_1",
		Status:        models.SessionComplete,
		PaymentStatus: models.PaymentUnpaid,
	})

	require.NoError(t, svc.HandleProviderEvent(context.Background(), event))

	assert.Equal(t, models.TicketOpen, store.tickets["cs_1"].Status)
	assert.Empty(t, notifier.channels)
}

func TestHandleProviderEvent_ExpiredUnpaidDeletesOpenTicket(t *testing.T) {
	store := newFakeTicketStore(openTicket("cs_1"))
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, &fakeNotifier{})

	event := providerEvent(t, stripe.EventCheckoutExpired, "evt_102", stripe.CheckoutSession{
		ID:            "cs_1",
		Status:        models.SessionExpired,
		PaymentStatus: models.PaymentUnpaid,
	})

	require.NoError(t, svc.HandleProviderEvent(context.Background(), event))

	assert.Equal(t, 1, store.deleteCalls)
	assert.NotContains(t, store.tickets, "cs_1")
}

func TestHandleProviderEvent_StaleExpiryKeepsCompletedTicket(t *testing.T) {
	ticket := openTicket("cs_1")
	ticket.Status = models.TicketComplete
	store := newFakeTicketStore(ticket)
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, &fakeNotifier{})

	event := providerEvent(t, stripe.EventCheckoutExpired, "evt_103", stripe.CheckoutSession{
		ID:            "cs_1",
		Status:        models.SessionExpired,
		PaymentStatus: models.PaymentUnpaid,
	})

	require.NoError(t, svc.HandleProviderEvent(context.Background(), event))

	assert.Zero(t, store.deleteCalls)
	assert.Equal(t, models.TicketComplete, store.tickets["cs_1"].Status)
}

func TestHandleProviderEvent_OrphanedSessionIsAcknowledged(t *testing.T) {
	store := newFakeTicketStore()
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, &fakeNotifier{})

	event := providerEvent(t, stripe.EventCheckoutCompleted, "evt_104", stripe.CheckoutSession{
		ID:            "cs_unknown",
		Status:        models.SessionComplete,
		PaymentStatus: models.PaymentPaid,
	})

	assert.NoError(t, svc.HandleProviderEvent(context.Background(), event))
	assert.Empty(t, store.mergeCalls)
}

func TestHandleProviderEvent_StoreOutageSurfacesRetryableError(t *testing.T) {
	store := newFakeTicketStore()
	store.findErr = status.ErrStoreUnavailable
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, &fakeNotifier{})

	event := providerEvent(t, stripe.EventCheckoutCompleted, "evt_105", stripe.CheckoutSession{
		ID: "cs_1", Status: models.SessionComplete, PaymentStatus: models.PaymentPaid,
	})

	err := svc.HandleProviderEvent(context.Background(), event)
	assert.ErrorIs(t, err, status.ErrStoreUnavailable)
}

func TestHandleProviderEvent_UnhandledTypeIsIgnored(t *testing.T) {
	store := newFakeTicketStore(openTicket("cs_1"))
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, &fakeNotifier{})

	event := &stripe.Event{ID: "evt_106", Type: "invoice.created"}

	assert.NoError(t, svc.HandleProviderEvent(context.Background(), event))
	assert.Empty(t, store.mergeCalls)
}

func TestHandleProviderEvent_MalformedSessionRejected(t *testing.T) {
	store := newFakeTicketStore()
	svc := NewTicketService(store, &fakeEventStore{}, nil, nil, &fakeNotifier{})

	event := &stripe.Event{
		ID:   "evt_107",
		Type: stripe.EventCheckoutCompleted,
		Data: stripe.EventData{Object: json.RawMessage(`{"id":`)},
	}

	err := svc.HandleProviderEvent(context.Background(), event)
	require.Error(t, err)
	kind, ok := status.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, status.KindInvalidInput, kind)
}

func TestHandleProviderEvent_DuplicateDeliverySkipped(t *testing.T) {
	redisClient, mock := redismock.NewClientMock()
	mock.ExpectExists("webhook:processed:evt_108").SetVal(1)

	store := newFakeTicketStore(openTicket("cs_1"))
	svc := NewTicketService(store, &fakeEventStore{}, nil, redisClient, &fakeNotifier{})

	event := providerEvent(t, stripe.EventCheckoutCompleted, "evt_108", stripe.CheckoutSession{
		ID: "cs_1", Status: models.SessionComplete, PaymentStatus: models.PaymentPaid,
	})

	require.NoError(t, svc.HandleProviderEvent(context.Background(), event))

	assert.Empty(t, store.mergeCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandleProviderEvent_FirstDeliveryMarkedProcessed(t *testing.T) {
	redisClient, mock := redismock.NewClientMock()
	mock.ExpectExists("webhook:processed:evt_109").SetVal(0)
	mock.ExpectSet("webhook:processed:evt_109", 1, processedEventTTL).SetVal("OK")

	store := newFakeTicketStore(openTicket("cs_1"))
	svc := NewTicketService(store, &fakeEventStore{}, nil, redisClient, &fakeNotifier{})

	event := providerEvent(t, stripe.EventCheckoutCompleted, "evt_109", stripe.CheckoutSession{
		ID: "cs_1", Status: models.SessionComplete, PaymentStatus: models.PaymentPaid,
	})

	require.NoError(t, svc.HandleProviderEvent(context.Background(), event))

	assert.Len(t, store.mergeCalls, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStartCheckout_RejectsSecondOpenTicket(t *testing.T) {
	existing := openTicket("cs_existing")
	store := newFakeTicketStore(existing)
	events := &fakeEventStore{events: map[string]*models.Event{
		"evt1": {ID: "evt1", PriceID: "price_1"},
	}}
	svc := NewTicketService(store, events, nil, nil, &fakeNotifier{})

	_, err := svc.StartCheckout(context.Background(), "evt1", "user1", "standard", 1)
	assert.ErrorIs(t, err, status.ErrDuplicateTicket)
}

func TestStartCheckout_UnknownEvent(t *testing.T) {
	svc := NewTicketService(newFakeTicketStore(), &fakeEventStore{}, nil, nil, &fakeNotifier{})

	_, err := svc.StartCheckout(context.Background(), "nope", "user1", "standard", 1)
	assert.ErrorIs(t, err, status.ErrEventNotFound)
}

func TestStartCheckout_ProviderFailureDoesNotLockOutRetry(t *testing.T) {
	store := newFakeTicketStore()
	events := &fakeEventStore{events: map[string]*models.Event{
		"evt1": {ID: "evt1", PriceID: "price_1"},
	}}

	failing := true
	provider := &fakeProvider{
		createSessionFn: func(_ context.Context, _ stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			if failing {
				return nil, errors.New("provider outage")
			}
			return &stripe.CheckoutSession{ID: "cs_retry", Status: models.SessionOpen}, nil
		},
	}
	payments := NewPaymentService(provider, nil, "http://localhost/success", 0, 0)
	svc := NewTicketService(store, events, payments, nil, &fakeNotifier{})

	_, err := svc.StartCheckout(context.Background(), "evt1", "user1", "standard", 1)
	require.Error(t, err)

	// the sessionless ticket from the failed attempt must be gone
	_, err = store.FindOpenByEventAndUser(context.Background(), "evt1", "user1")
	assert.ErrorIs(t, err, status.ErrTicketNotFound)

	failing = false
	ticket, err := svc.StartCheckout(context.Background(), "evt1", "user1", "standard", 1)
	require.NoError(t, err)
	assert.Equal(t, "cs_retry", ticket.SessionID)
}

func TestStartCheckout_CreatesTicketAndSession(t *testing.T) {
	store := newFakeTicketStore()
	events := &fakeEventStore{events: map[string]*models.Event{
		"evt1": {ID: "evt1", PriceID: "price_1"},
	}}

	provider := &fakeProvider{
		createSessionFn: func(_ context.Context, p stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			assert.Equal(t, "price_1", p.PriceID)
			return &stripe.CheckoutSession{
				ID:     "cs_new",
				Status: models.SessionOpen,
				URL:    "https://pay.example/cs_new",
			}, nil
		},
	}
	payments := NewPaymentService(provider, nil, "http://localhost/success", 0, 0)

	svc := NewTicketService(store, events, payments, nil, &fakeNotifier{})

	ticket, err := svc.StartCheckout(context.Background(), "evt1", "user1", "standard", 1)
	require.NoError(t, err)

	assert.Equal(t, models.TicketOpen, ticket.Status)
	assert.Equal(t, "cs_new", ticket.SessionID)
	assert.Equal(t, "https://pay.example/cs_new", ticket.SessionURL)
	assert.NotEmpty(t, ticket.Code)
	assert.Contains(t, store.tickets, "cs_new")
}
