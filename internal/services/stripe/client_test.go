package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_CreateCustomer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/customers", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "user1", r.PostForm.Get("id"))
		assert.Equal(t, "a@b.c", r.PostForm.Get("email"))

		w.Write([]byte(`{"id": "user1", "email": "a@b.c"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_123")

	customer, err := c.CreateCustomer(context.Background(), "user1", "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "user1", customer.ID)
}

func TestClient_RetrieveProduct_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error": {"type": "invalid_request_error", "message": "No such product"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_123")

	_, err := c.RetrieveProduct(context.Background(), "prod_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClient_CreateCheckoutSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "price_1", r.PostForm.Get("line_items[0][price]"))
		assert.Equal(t, "2", r.PostForm.Get("line_items[0][quantity]"))
		assert.Equal(t, "payment", r.PostForm.Get("mode"))
		assert.Equal(t, "cus_1", r.PostForm.Get("customer"))
		assert.Equal(t, "http://localhost/success", r.PostForm.Get("success_url"))
		assert.Equal(t, "cus_1", r.PostForm.Get("metadata[customerId]"))

		w.Write([]byte(`{
			"id": "cs_1",
			"status": "open",
			"url": "https://pay.example/cs_1",
			"amount_total": 5100
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_123")

	session, err := c.CreateCheckoutSession(context.Background(), CheckoutSessionParams{
		PriceID:    "price_1",
		CustomerID: "cus_1",
		Quantity:   2,
		SuccessURL: "http://localhost/success",
		Metadata:   map[string]string{"customerId": "cus_1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", session.ID)
	assert.Equal(t, int64(5100), session.AmountTotal)
}

func TestClient_APIErrorMessageSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error": {"type": "card_error", "message": "Your card was declined."}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_123")

	_, err := c.CreateCustomer(context.Background(), "user1", "a@b.c")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Your card was declined.")
}
