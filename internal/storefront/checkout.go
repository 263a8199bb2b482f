package storefront

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/joao-fontenele/rentalflow/internal/cart"
	"github.com/joao-fontenele/rentalflow/internal/domain"
)

type travelEstimateRequest struct {
	Address string `json:"address"`
}

func (s *Server) HandleTravelEstimate(w http.ResponseWriter, r *http.Request) {
	var req travelEstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	quote, err := s.deps.Estimator.Estimate(r.Context(), req.Address)
	if err != nil {
		s.logger.Warn("travel estimate failed", "error", err)
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, quote)
}

// HandleCheckout turns the session cart into a pending order and answers
// with the payment redirect. On success the ordered lines are taken out of
// the cart; lines added while checkout ran are kept.
func (s *Server) HandleCheckout(w http.ResponseWriter, r *http.Request) {
	var customer domain.Customer
	if err := json.NewDecoder(r.Body).Decode(&customer); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sid := sessionID(r.Context())
	store, err := s.deps.Carts.Load(r.Context(), sid)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	ordered := store.Lines()
	result, err := s.deps.Checkout.Checkout(r.Context(), customer, ordered)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := s.removeOrdered(r.Context(), sid, ordered); err != nil {
		s.logger.Error("failed to clear cart after checkout", "error", err, "order_id", result.OrderID)
	}

	s.writeJSON(w, http.StatusCreated, result)
}

const clearAttempts = 3

func (s *Server) removeOrdered(ctx context.Context, sid string, ordered []domain.CartLine) error {
	var err error
	for range clearAttempts {
		_, err = s.deps.Carts.Update(ctx, sid, func(store *cart.Store) error {
			store.Deduct(ordered)
			return nil
		})
		if !errors.Is(err, cart.ErrCartChanged) {
			return err
		}
	}
	return err
}
