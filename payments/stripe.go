// Package payments creates Stripe Checkout sessions and verifies Stripe webhooks.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// ErrNotConfigured is returned when the Stripe keys are missing
var ErrNotConfigured = errors.New("stripe is not configured")

// CheckoutRequest describes a one-off payment for a project
type CheckoutRequest struct {
	ProjectID     string
	Title         string
	Amount        float64
	Currency      string
	CustomerEmail string
	SuccessURL    string
	CancelURL     string
}

// CheckoutSession is the part of a Stripe session the client needs
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// WebhookEvent is a verified Stripe event reduced to what the API acts on
type WebhookEvent struct {
	Type          string
	SessionID     string
	ProjectID     string
	PaymentStatus string
	AmountTotal   int64
}

// Paid reports whether the event completes a paid checkout
func (e WebhookEvent) Paid() bool {
	return e.Type == string(stripe.EventTypeCheckoutSessionCompleted) &&
		e.PaymentStatus == string(stripe.CheckoutSessionPaymentStatusPaid)
}

// Gateway is the payment provider used by the client service
type Gateway interface {
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	ParseWebhook(payload []byte, signature string) (*WebhookEvent, error)
}

// StripeGateway implements Gateway with Stripe Checkout
type StripeGateway struct {
	webhookSecret string
	newSession    func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// NewStripeGateway sets the Stripe API key for the process
func NewStripeGateway(secretKey, webhookSecret string) (*StripeGateway, error) {
	if secretKey == "" {
		return nil, ErrNotConfigured
	}
	stripe.Key = secretKey
	return &StripeGateway{webhookSecret: webhookSecret, newSession: session.New}, nil
}

// ToMinorUnits converts a decimal amount to cents
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateCheckout implements Gateway
func (g *StripeGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error) {
	if req.Amount <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}
	currency := req.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency: stripe.String(currency),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(req.Title),
				},
				UnitAmount: stripe.Int64(ToMinorUnits(req.Amount)),
			},
			Quantity: stripe.Int64(1),
		}},
		ClientReferenceID: stripe.String(req.ProjectID),
		SuccessURL:        stripe.String(req.SuccessURL),
		CancelURL:         stripe.String(req.CancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	params.AddMetadata("projectId", req.ProjectID)
	params.Context = ctx

	s, err := g.newSession(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return &CheckoutSession{ID: s.ID, URL: s.URL}, nil
}

// ParseWebhook implements Gateway. The signature header is verified against the
// webhook secret before the payload is trusted.
func (g *StripeGateway) ParseWebhook(payload []byte, signature string) (*WebhookEvent, error) {
	if g.webhookSecret == "" {
		return nil, ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, err
	}
	out := &WebhookEvent{Type: string(event.Type)}
	if event.Type != stripe.EventTypeCheckoutSessionCompleted {
		return out, nil
	}

	var cs stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &cs); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.SessionID = cs.ID
	out.ProjectID = cs.ClientReferenceID
	if out.ProjectID == "" {
		out.ProjectID = cs.Metadata["projectId"]
	}
	out.PaymentStatus = string(cs.PaymentStatus)
	out.AmountTotal = cs.AmountTotal
	return out, nil
}
