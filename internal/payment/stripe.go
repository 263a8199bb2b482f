package payment

import (
	"context"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
)

const currencyEUR = "eur"

// StripeGateway creates Stripe Checkout sessions.
type StripeGateway struct {
	api                *client.API
	paymentMethodTypes []string
}

// NewStripeGateway builds a gateway for secretKey. An empty backendURL uses
// the public Stripe API.
func NewStripeGateway(secretKey, backendURL string, httpClient *http.Client) *StripeGateway {
	cfg := &stripe.BackendConfig{
		HTTPClient:        httpClient,
		MaxNetworkRetries: stripe.Int64(1),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelError},
	}
	if backendURL != "" {
		cfg.URL = stripe.String(backendURL)
	}

	api := &client.API{}
	api.Init(secretKey, &stripe.Backends{
		API:     stripe.GetBackendWithConfig(stripe.APIBackend, cfg),
		Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, cfg),
		Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, cfg),
	})

	return &StripeGateway{
		api:                api,
		paymentMethodTypes: []string{"card", "ideal"},
	}
}

func (g *StripeGateway) CreateSession(ctx context.Context, req SessionRequest) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice(g.paymentMethodTypes),
		SuccessURL:         stripe.String(req.SuccessURL),
		CancelURL:          stripe.String(req.CancelURL),
		ClientReferenceID:  stripe.String(req.OrderID),
		Metadata:           map[string]string{"order_id": req.OrderID},
	}
	params.Context = ctx

	for _, l := range req.Lines {
		params.LineItems = append(params.LineItems, &stripe.CheckoutSessionLineItemParams{
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(currencyEUR),
				UnitAmount: stripe.Int64(l.AmountMinorUnits),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name:        stripe.String(l.Name),
					Description: stripe.String(l.Description),
				},
			},
			Quantity: stripe.Int64(l.Quantity),
		})
	}

	customerID, err := g.findCustomer(ctx, req.CustomerEmail)
	if err != nil {
		return nil, err
	}
	if customerID != "" {
		params.Customer = stripe.String(customerID)
	} else {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}

	return &Session{ID: s.ID, RedirectURL: s.URL}, nil
}

// findCustomer returns the id of an existing customer with email, or "".
func (g *StripeGateway) findCustomer(ctx context.Context, email string) (string, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Limit = stripe.Int64(1)
	params.Context = ctx

	it := g.api.Customers.List(params)
	if it.Next() {
		return it.Customer().ID, nil
	}
	if err := it.Err(); err != nil {
		return "", fmt.Errorf("list customers: %w", err)
	}
	return "", nil
}
