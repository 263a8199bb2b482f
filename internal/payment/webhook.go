package payment

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

type WebhookEventType string

const (
	EventSessionCompleted WebhookEventType = "checkout.session.completed"
	EventSessionExpired   WebhookEventType = "checkout.session.expired"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	// ErrIgnoredEvent is returned for well-formed events this service does
	// not act on. Callers acknowledge them.
	ErrIgnoredEvent = errors.New("ignored webhook event")
)

type WebhookEvent struct {
	Type      WebhookEventType
	OrderID   string
	SessionID string
}

// ParseWebhook verifies the signature header and extracts the order the
// checkout session belongs to.
func ParseWebhook(payload []byte, signature, secret string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	t := WebhookEventType(event.Type)
	if t != EventSessionCompleted && t != EventSessionExpired {
		return nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}

	orderID := session.Metadata["order_id"]
	if orderID == "" {
		orderID = session.ClientReferenceID
	}
	if orderID == "" {
		return nil, fmt.Errorf("%w: session %s has no order id", ErrIgnoredEvent, session.ID)
	}

	return &WebhookEvent{Type: t, OrderID: orderID, SessionID: session.ID}, nil
}
