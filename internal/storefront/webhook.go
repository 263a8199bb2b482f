package storefront

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/joao-fontenele/rentalflow/internal/domain"
	"github.com/joao-fontenele/rentalflow/internal/payment"
)

const maxWebhookBody = 64 << 10

type webhookResponse struct {
	Status string `json:"status"`
}

// HandleWebhook applies payment provider events to orders. Replays of a
// transition that was already applied are acknowledged so the provider stops
// retrying; a completed payment is published again in that case and the
// worker treats it as a redelivery.
func (s *Server) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	event, err := payment.ParseWebhook(payload, r.Header.Get("Stripe-Signature"), s.deps.WebhookSecret)
	switch {
	case errors.Is(err, payment.ErrIgnoredEvent):
		s.logger.Info("webhook event ignored", "reason", err)
		s.writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	case errors.Is(err, payment.ErrInvalidSignature):
		s.logger.Warn("webhook signature rejected", "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid signature")
		return
	case err != nil:
		s.logger.Error("failed to parse webhook", "error", err)
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	target := domain.OrderStatusPaid
	if event.Type == payment.EventSessionExpired {
		target = domain.OrderStatusCancelled
	}

	order, err := s.deps.Orders.UpdateStatus(r.Context(), event.OrderID, target)
	var transitionErr *domain.InvalidTransitionError
	switch {
	case errors.As(err, &transitionErr) && transitionErr.From == target:
		s.logger.Info("webhook replay acknowledged", "order_id", event.OrderID, "status", target)
		if target != domain.OrderStatusPaid {
			s.writeJSON(w, http.StatusOK, webhookResponse{Status: "already applied"})
			return
		}
		if order, err = s.deps.Orders.GetByID(r.Context(), event.OrderID); err != nil || order == nil {
			s.logger.Error("failed to load replayed order", "error", err, "order_id", event.OrderID)
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	case errors.As(err, &transitionErr):
		s.logger.Warn("webhook transition refused", "order_id", event.OrderID, "from", transitionErr.From, "to", target)
		s.writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	case err != nil:
		s.logger.Error("failed to update order status", "error", err, "order_id", event.OrderID)
		s.writeError(w, http.StatusInternalServerError, "internal error")
		return
	case order == nil:
		s.logger.Warn("webhook for unknown order", "order_id", event.OrderID)
		s.writeJSON(w, http.StatusOK, webhookResponse{Status: "ignored"})
		return
	}

	if target == domain.OrderStatusPaid {
		if err := s.publishPaid(r.Context(), order); err != nil {
			s.logger.Error("failed to publish order paid event", "error", err, "order_id", order.ID)
			s.writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
	}

	s.logger.Info("order status updated from webhook", "order_id", order.ID, "status", target, "session_id", event.SessionID)
	s.writeJSON(w, http.StatusOK, webhookResponse{Status: string(target)})
}

func (s *Server) publishPaid(ctx context.Context, order *domain.Order) error {
	if s.deps.Publisher == nil {
		return nil
	}
	event := domain.OrderPaidEvent{
		OrderID:       order.ID,
		CustomerName:  order.CustomerName,
		CustomerEmail: order.CustomerEmail,
		Items:         order.Items,
		Timestamp:     time.Now().UTC(),
	}
	return s.deps.Publisher.Publish(ctx, domain.TopicOrderPaid, order.ID, event)
}
