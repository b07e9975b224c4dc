// Package payment talks to Stripe: hosted checkout sessions and the account balance.
package payment

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/stripe/stripe-go/v83"
	"github.com/stripe/stripe-go/v83/balance"
	"github.com/stripe/stripe-go/v83/checkout/session"
)

type LineItem struct {
	Name string
	// UnitAmount is in the currency's minor unit.
	UnitAmount int64
	Quantity   int64
}

type CheckoutRequest struct {
	Currency   string
	LineItems  []LineItem
	SuccessURL string
	CancelURL  string
	// Reference is stored as client_reference_id on the session.
	Reference string
}

type CheckoutSession struct {
	ID  string
	URL string
}

// MinorUnits converts a decimal amount to the integer minor unit Stripe expects.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Gateway is a Stripe client bound to one secret key and settlement currency.
type Gateway struct {
	sessions session.Client
	balance  balance.Client
	currency string
}

func NewGateway(secretKey, currency string) *Gateway {
	return NewGatewayWithBackend(secretKey, currency, stripe.GetBackend(stripe.APIBackend))
}

func NewGatewayWithBackend(secretKey, currency string, backend stripe.Backend) *Gateway {
	return &Gateway{
		sessions: session.Client{B: backend, Key: secretKey},
		balance:  balance.Client{B: backend, Key: secretKey},
		currency: currency,
	}
}

func sessionParams(req CheckoutRequest) *stripe.CheckoutSessionParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.LineItems))
	for _, li := range req.LineItems {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(req.Currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(li.Name),
				},
				UnitAmount: stripe.Int64(li.UnitAmount),
			},
			Quantity: stripe.Int64(li.Quantity),
		})
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  items,
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
	}
	if req.Reference != "" {
		params.ClientReferenceID = stripe.String(req.Reference)
	}
	return params
}

func (g *Gateway) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	params := sessionParams(req)
	params.Context = ctx

	s, err := g.sessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// AvailableBalance returns the available balance in the gateway currency in major
// units, 0 when Stripe holds none in that currency.
func (g *Gateway) AvailableBalance(ctx context.Context) (float64, error) {
	params := &stripe.BalanceParams{}
	params.Context = ctx

	b, err := g.balance.Get(params)
	if err != nil {
		return 0, fmt.Errorf("retrieve balance: %w", err)
	}
	for _, a := range b.Available {
		if strings.EqualFold(string(a.Currency), g.currency) {
			return float64(a.Amount) / 100, nil
		}
	}
	return 0, nil
}
