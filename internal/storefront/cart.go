package storefront

import (
	"encoding/json"
	"net/http"

	"github.com/joao-fontenele/rentalflow/internal/cart"
	"github.com/joao-fontenele/rentalflow/internal/domain"
	"github.com/joao-fontenele/rentalflow/internal/pricing"
)

type lineRef struct {
	ProductID string      `json:"product_id"`
	StartDate domain.Date `json:"start_date"`
}

type setQuantityRequest struct {
	lineRef
	Quantity int `json:"quantity"`
}

type rescheduleRequest struct {
	lineRef
	NewStartDate domain.Date `json:"new_start_date"`
	NewEndDate   domain.Date `json:"new_end_date"`
}

func (s *Server) quote(store *cart.Store) pricing.Quote {
	return pricing.NewQuote(s.deps.Catalog, store.Lines())
}

func (s *Server) HandleGetCart(w http.ResponseWriter, r *http.Request) {
	store, err := s.deps.Carts.Load(r.Context(), sessionID(r.Context()))
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.quote(store))
}

func (s *Server) HandleClearCart(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Carts.Delete(r.Context(), sessionID(r.Context())); err != nil {
		s.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddLine adds a line after checking the merged quantity against
// inventory. The cart is only written when it did not change meanwhile.
func (s *Server) HandleAddLine(w http.ResponseWriter, r *http.Request) {
	var line domain.CartLine
	if err := json.NewDecoder(r.Body).Decode(&line); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	product, ok := s.deps.Catalog.Product(line.ProductID)
	if !ok || !product.Visible {
		s.respondError(w, r, errUnknownProduct)
		return
	}
	if !product.AcceptsColor(line.Color) {
		s.respondError(w, r, errInvalidColor)
		return
	}

	store, err := s.deps.Carts.Update(r.Context(), sessionID(r.Context()), func(store *cart.Store) error {
		return s.deps.Gate.Add(r.Context(), store, line)
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	s.logger.Info("cart line added", "product_id", line.ProductID, "quantity", line.Quantity)
	s.writeJSON(w, http.StatusCreated, s.quote(store))
}

func (s *Server) HandleSetQuantity(w http.ResponseWriter, r *http.Request) {
	var req setQuantityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, err := s.deps.Carts.Update(r.Context(), sessionID(r.Context()), func(store *cart.Store) error {
		if !store.SetQuantity(req.ProductID, req.StartDate, req.Quantity) {
			return errLineNotFound
		}
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.quote(store))
}

func (s *Server) HandleRemoveLine(w http.ResponseWriter, r *http.Request) {
	start, err := domain.ParseDate(r.URL.Query().Get("start_date"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid start_date")
		return
	}
	productID := r.URL.Query().Get("product_id")

	store, err := s.deps.Carts.Update(r.Context(), sessionID(r.Context()), func(store *cart.Store) error {
		if !store.Remove(productID, start) {
			return errLineNotFound
		}
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.quote(store))
}

func (s *Server) HandleReschedule(w http.ResponseWriter, r *http.Request) {
	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	store, err := s.deps.Carts.Update(r.Context(), sessionID(r.Context()), func(store *cart.Store) error {
		ok, err := s.deps.Gate.Reschedule(r.Context(), store, req.ProductID, req.StartDate, req.NewStartDate, req.NewEndDate)
		if err != nil {
			return err
		}
		if !ok {
			return errLineNotFound
		}
		return nil
	})
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, s.quote(store))
}
