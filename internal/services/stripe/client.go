package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"ticketing/monitoring"
	"ticketing/utils"
)

// ErrNotFound is returned when the provider reports the requested resource
// does not exist.
var ErrNotFound = errors.New("stripe: resource not found")

// Client talks to the payment provider's REST API. Requests are
// form-encoded, authenticated with the secret API key.
type Client struct {
	baseURL string
	apiKey  string
	hc      *http.Client
	breaker *utils.CircuitBreaker
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,

		hc: &http.Client{
			Timeout: 10 * time.Second,
		},
		breaker: utils.NewCircuitBreaker("stripe"),
	}
}

// CreateCustomer creates a provider customer with a caller-chosen id so the
// local user id doubles as the provider customer id.
func (c *Client) CreateCustomer(ctx context.Context, id, email string) (*Customer, error) {
	form := url.Values{}
	form.Set("id", id)
	form.Set("email", email)

	var customer Customer
	if err := c.do(ctx, http.MethodPost, "/v1/customers", form, &customer); err != nil {
		return nil, fmt.Errorf("createCustomer %q: %w", id, err)
	}
	return &customer, nil
}

func (c *Client) RetrieveCustomer(ctx context.Context, id string) (*Customer, error) {
	var customer Customer
	if err := c.do(ctx, http.MethodGet, "/v1/customers/"+id, nil, &customer); err != nil {
		return nil, fmt.Errorf("retrieveCustomer %q: %w", id, err)
	}
	return &customer, nil
}

func (c *Client) DeleteCustomer(ctx context.Context, id string) error {
	var customer Customer
	if err := c.do(ctx, http.MethodDelete, "/v1/customers/"+id, nil, &customer); err != nil {
		return fmt.Errorf("deleteCustomer %q: %w", id, err)
	}
	return nil
}

func (c *Client) CreateProduct(ctx context.Context, id, name, description string) (*Product, error) {
	form := url.Values{}
	form.Set("id", id)
	form.Set("name", name)
	form.Set("description", description)

	var product Product
	if err := c.do(ctx, http.MethodPost, "/v1/products", form, &product); err != nil {
		return nil, fmt.Errorf("createProduct %q: %w", name, err)
	}
	return &product, nil
}

func (c *Client) RetrieveProduct(ctx context.Context, id string) (*Product, error) {
	var product Product
	if err := c.do(ctx, http.MethodGet, "/v1/products/"+id, nil, &product); err != nil {
		return nil, fmt.Errorf("retrieveProduct %q: %w", id, err)
	}
	return &product, nil
}

// CreatePrice creates a price for a product. unitAmount is in minor
// currency units.
func (c *Client) CreatePrice(ctx context.Context, productID string, unitAmount int64, currency string) (*Price, error) {
	form := url.Values{}
	form.Set("product", productID)
	form.Set("unit_amount", strconv.FormatInt(unitAmount, 10))
	form.Set("currency", currency)

	var price Price
	if err := c.do(ctx, http.MethodPost, "/v1/prices", form, &price); err != nil {
		return nil, fmt.Errorf("createPrice for product %q: %w", productID, err)
	}
	return &price, nil
}

func (c *Client) ListPrices(ctx context.Context, productID string, limit int) (*PriceList, error) {
	query := url.Values{}
	query.Set("product", productID)
	query.Set("limit", strconv.Itoa(limit))

	var list PriceList
	if err := c.do(ctx, http.MethodGet, "/v1/prices?"+query.Encode(), nil, &list); err != nil {
		return nil, fmt.Errorf("listPrices for product %q: %w", productID, err)
	}
	return &list, nil
}

type CheckoutSessionParams struct {
	PriceID    string
	CustomerID string
	Quantity   int
	SuccessURL string
	Metadata   map[string]string
}

func (c *Client) CreateCheckoutSession(ctx context.Context, p CheckoutSessionParams) (*CheckoutSession, error) {
	if p.Quantity < 1 {
		p.Quantity = 1
	}

	form := url.Values{}
	form.Set("line_items[0][price]", p.PriceID)
	form.Set("line_items[0][quantity]", strconv.Itoa(p.Quantity))
	form.Set("customer", p.CustomerID)
	form.Set("success_url", p.SuccessURL)
	form.Set("mode", "payment")
	for k, v := range p.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/v1/checkout/sessions", form, &session); err != nil {
		return nil, fmt.Errorf("createCheckoutSession: %w", err)
	}
	return &session, nil
}

func (c *Client) do(ctx context.Context, method, path string, form url.Values, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("http.NewRequest: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if err := c.breaker.Allow(); err != nil {
		monitoring.ProviderRequest(method+" "+metricPath(path), "circuit_open")
		return err
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		c.breaker.Failure()
		monitoring.ProviderRequest(method+" "+metricPath(path), "transport_error")
		return fmt.Errorf("http.Do: %w", err)
	}
	defer resp.Body.Close()
	monitoring.ProviderRequest(method+" "+metricPath(path), strconv.Itoa(resp.StatusCode))

	if resp.StatusCode >= 500 {
		c.breaker.Failure()
	} else {
		c.breaker.Success()
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr apiError
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("provider %s: %s", apiErr.Error.Type, apiErr.Error.Message)
		}
		return fmt.Errorf("provider status %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("json.Decode: %w", err)
		}
	}
	return nil
}

// metricPath trims resource ids and query strings from an API path so
// metric labels stay low-cardinality, e.g. "/v1/customers/cus_123" becomes
// "/v1/customers".
func metricPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	parts := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 4)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return "/" + strings.Join(parts, "/")
}
