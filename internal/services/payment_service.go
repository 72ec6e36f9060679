package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"ticketing/internal/services/stripe"
	"ticketing/models"
)

// ProviderAPI is the slice of the payment provider this service consumes.
// Any provider with idempotent resource creation and signed event delivery
// can sit behind it.
type ProviderAPI interface {
	CreateCustomer(ctx context.Context, id, email string) (*stripe.Customer, error)
	RetrieveCustomer(ctx context.Context, id string) (*stripe.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
	CreateProduct(ctx context.Context, id, name, description string) (*stripe.Product, error)
	RetrieveProduct(ctx context.Context, id string) (*stripe.Product, error)
	CreatePrice(ctx context.Context, productID string, unitAmount int64, currency string) (*stripe.Price, error)
	ListPrices(ctx context.Context, productID string, limit int) (*stripe.PriceList, error)
	CreateCheckoutSession(ctx context.Context, p stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type PaymentService struct {
	Provider        ProviderAPI
	Redis           *redis.Client
	successURL      string
	cacheTTL        time.Duration
	checkoutTimeout time.Duration
}

func NewPaymentService(provider ProviderAPI, redisClient *redis.Client, successURL string, cacheTTL, checkoutTimeout time.Duration) *PaymentService {
	return &PaymentService{
		Provider:        provider,
		Redis:           redisClient,
		successURL:      successURL,
		cacheTTL:        cacheTTL,
		checkoutTimeout: checkoutTimeout,
	}
}

// ProvisionCustomer makes sure a provider-side customer exists for the
// user, reusing the local user id as the customer id. Called explicitly by
// the registration handler after the user record is stored.
func (s *PaymentService) ProvisionCustomer(ctx context.Context, userID, email string) (string, error) {
	customer, err := s.Provider.RetrieveCustomer(ctx, userID)
	if err == nil && !customer.Deleted {
		return customer.ID, nil
	}
	if err != nil && !errors.Is(err, stripe.ErrNotFound) {
		return "", fmt.Errorf("provisionCustomer %q: %w", userID, err)
	}

	customer, err = s.Provider.CreateCustomer(ctx, userID, email)
	if err != nil {
		return "", fmt.Errorf("provisionCustomer %q: %w", userID, err)
	}
	return customer.ID, nil
}

// RemoveCustomer deletes the provider-side customer. A customer that never
// existed is not an error.
func (s *PaymentService) RemoveCustomer(ctx context.Context, userID string) error {
	if err := s.Provider.DeleteCustomer(ctx, userID); err != nil && !errors.Is(err, stripe.ErrNotFound) {
		return fmt.Errorf("removeCustomer %q: %w", userID, err)
	}
	return nil
}

// ProductIDForEvent derives the stable provider product id for an event.
func ProductIDForEvent(ev *models.Event) string {
	return fmt.Sprintf("ORG_%s_EID_%s_CRTD_%d", ev.OrganizerID, ev.ID, ev.Created.Unix())
}

// EnsureProductAndPrice guarantees a sellable product+price pair for the
// event and returns their ids. The product is looked up by its
// deterministic id; the current price is reused unless the event's price
// point changed, in which case a new price is created. Old prices stay
// retrievable through the event's price history.
func (s *PaymentService) EnsureProductAndPrice(ctx context.Context, ev *models.Event) (priceID, productID string, err error) {
	// the provider counts in minor currency units
	unitAmount := ev.Price.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	currency := ev.Currency
	if currency == "" {
		currency = "usd"
	}

	stableID := ProductIDForEvent(ev)

	product, err := s.Provider.RetrieveProduct(ctx, stableID)
	if errors.Is(err, stripe.ErrNotFound) {
		product, err = s.Provider.CreateProduct(ctx, stableID, ev.Name, ev.Description)
		if err != nil {
			return "", "", fmt.Errorf("ensureProductAndPrice %q: %w", ev.Name, err)
		}

		price, err := s.Provider.CreatePrice(ctx, product.ID, unitAmount, currency)
		if err != nil {
			return "", "", fmt.Errorf("ensureProductAndPrice %q: %w", ev.Name, err)
		}
		return price.ID, product.ID, nil
	}
	if err != nil {
		return "", "", fmt.Errorf("ensureProductAndPrice %q: %w", ev.Name, err)
	}

	list, err := s.Provider.ListPrices(ctx, product.ID, 1)
	if err != nil {
		return "", "", fmt.Errorf("ensureProductAndPrice %q: %w", ev.Name, err)
	}

	if len(list.Data) > 0 && list.Data[0].UnitAmount == unitAmount {
		return list.Data[0].ID, product.ID, nil
	}

	price, err := s.Provider.CreatePrice(ctx, product.ID, unitAmount, currency)
	if err != nil {
		return "", "", fmt.Errorf("ensureProductAndPrice %q: %w", ev.Name, err)
	}
	return price.ID, product.ID, nil
}

// StartCheckout opens a provider checkout session for the event's current
// price and caches a session snapshot for quick status lookups.
func (s *PaymentService) StartCheckout(ctx context.Context, ev *models.Event, userID string, quantity int) (*stripe.CheckoutSession, error) {
	if s.checkoutTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.checkoutTimeout)
		defer cancel()
	}

	session, err := s.Provider.CreateCheckoutSession(ctx, stripe.CheckoutSessionParams{
		PriceID:    ev.PriceID,
		CustomerID: userID,
		Quantity:   quantity,
		SuccessURL: s.successURL,
		Metadata: map[string]string{
			"customerId": userID,
			"priceId":    ev.PriceID,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("startCheckout for event %q: %w", ev.ID, err)
	}

	s.cacheSession(ctx, session, userID, ev.ID)

	return session, nil
}

func (s *PaymentService) cacheSession(ctx context.Context, session *stripe.CheckoutSession, userID, eventID string) {
	if s.Redis == nil {
		return
	}

	key := fmt.Sprintf("checkout:%s", session.ID)
	fields := map[string]any{
		"user_id":  userID,
		"event_id": eventID,
		"status":   session.Status,
		"url":      session.URL,
		"amount":   session.AmountTotal,
		"created":  session.Created,
	}

	if err := s.Redis.HSet(ctx, key, fields).Err(); err != nil {
		slog.Warn("failed to cache checkout session", "session_id", session.ID, "error", err)
		return
	}
	s.Redis.Expire(ctx, key, s.cacheTTL)
}
