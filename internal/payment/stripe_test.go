package payment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v83"
)

func TestMinorUnits(t *testing.T) {
	assert.EqualValues(t, 1999, MinorUnits(19.99))
	assert.EqualValues(t, 1000, MinorUnits(10))
}

func TestSessionParams(t *testing.T) {
	params := sessionParams(CheckoutRequest{
		Currency: "thb",
		LineItems: []LineItem{
			{Name: "Tee", UnitAmount: 10000, Quantity: 2},
			{Name: "Delivery Charges", UnitAmount: 1000, Quantity: 1},
		},
		SuccessURL: "http://shop/verify?success=true&orderId=o1",
		CancelURL:  "http://shop/verify?success=false&orderId=o1",
		Reference:  "o1",
	})

	assert.Equal(t, "payment", *params.Mode)
	require.Len(t, params.LineItems, 2)
	assert.Equal(t, "Tee", *params.LineItems[0].PriceData.ProductData.Name)
	assert.EqualValues(t, 10000, *params.LineItems[0].PriceData.UnitAmount)
	assert.EqualValues(t, 2, *params.LineItems[0].Quantity)
	assert.Equal(t, "thb", *params.LineItems[1].PriceData.Currency)
	assert.Equal(t, "o1", *params.ClientReferenceID)
	assert.Contains(t, *params.SuccessURL, "success=true")
}

func newFakeStripe(t *testing.T, handler http.HandlerFunc) *Gateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		HTTPClient:        srv.Client(),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return NewGatewayWithBackend("sk_test_123", "thb", backend)
}

func TestCreateCheckoutSession(t *testing.T) {
	var form url.Values
	g := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_test_1"}`))
	})

	s, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{
		Currency:   "thb",
		LineItems:  []LineItem{{Name: "Tee", UnitAmount: 500, Quantity: 1}},
		SuccessURL: "http://shop/ok",
		CancelURL:  "http://shop/ko",
	})
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", s.ID)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", s.URL)
	assert.Equal(t, "payment", form.Get("mode"))
	assert.Equal(t, "500", form.Get("line_items[0][price_data][unit_amount]"))
}

func TestCreateCheckoutSessionError(t *testing.T) {
	g := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid currency"}}`))
	})

	_, err := g.CreateCheckoutSession(context.Background(), CheckoutRequest{Currency: "xxx"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid currency")
}

func TestAvailableBalance(t *testing.T) {
	g := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/balance", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"balance","available":[{"amount":999,"currency":"usd"},{"amount":123456,"currency":"thb"}],"pending":[]}`))
	})

	got, err := g.AvailableBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1234.56, got)
}

func TestAvailableBalanceOtherCurrencyOnly(t *testing.T) {
	g := newFakeStripe(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"balance","available":[{"amount":500,"currency":"eur"}]}`))
	})

	got, err := g.AvailableBalance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, got)
}
