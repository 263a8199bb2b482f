package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

type Store interface {
	ListStock(ctx context.Context) ([]domain.StockLevel, error)
	SetStock(ctx context.Context, productID string, total int) error
	Availability(ctx context.Context, productID string, start, end domain.Date, quantity int) (*domain.Availability, error)
	Book(ctx context.Context, orderID string, items []domain.Booking) error
	Release(ctx context.Context, orderID string) (int64, error)
}

type Handler struct {
	repo   Store
	logger *slog.Logger
}

func NewHandler(repo Store, logger *slog.Logger) *Handler {
	return &Handler{
		repo:   repo,
		logger: logger,
	}
}

func (h *Handler) HandleListStock(w http.ResponseWriter, r *http.Request) {
	items, err := h.repo.ListStock(r.Context())
	if err != nil {
		h.logger.Error("failed to list stock", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("stock listed", "count", len(items))
	h.writeJSON(w, http.StatusOK, items)
}

type setStockRequest struct {
	Total int `json:"total"`
}

func (h *Handler) HandleSetStock(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("productId")

	var req setStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Total < 0 {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.repo.SetStock(r.Context(), productID, req.Total); err != nil {
		h.logger.Error("failed to set stock", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("stock updated", "product_id", productID, "total", req.Total)
	h.writeJSON(w, http.StatusOK, domain.StockLevel{ProductID: productID, Total: req.Total})
}

func (h *Handler) HandleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	productID := q.Get("product_id")
	start, errStart := domain.ParseDate(q.Get("start_date"))
	end, errEnd := domain.ParseDate(q.Get("end_date"))
	quantity, errQty := strconv.Atoi(q.Get("quantity"))
	if productID == "" || errStart != nil || errEnd != nil || errQty != nil || quantity < 1 || end.Before(start) {
		h.writeError(w, http.StatusBadRequest, "product_id, start_date, end_date and a positive quantity are required")
		return
	}

	a, err := h.repo.Availability(r.Context(), productID, start, end, quantity)
	if err != nil {
		h.logger.Error("failed to check availability", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if a == nil {
		h.writeError(w, http.StatusNotFound, "product not found")
		return
	}

	h.logger.Info("availability checked", "product_id", productID, "quantity", quantity, "available", a.Available)
	h.writeJSON(w, http.StatusOK, a)
}

type bookRequest struct {
	OrderID string           `json:"order_id"`
	Items   []domain.Booking `json:"items"`
}

func (h *Handler) HandleBook(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.OrderID == "" || len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "order_id and items are required")
		return
	}
	for _, item := range req.Items {
		if item.Quantity < 1 || item.EndDate.Before(item.StartDate) {
			h.writeError(w, http.StatusBadRequest, "invalid booking item")
			return
		}
	}

	err := h.repo.Book(r.Context(), req.OrderID, req.Items)

	var shortfall *ShortfallError
	switch {
	case errors.As(err, &shortfall):
		h.logger.Warn("booking rejected", "order_id", req.OrderID, "product_id", shortfall.ProductID, "max_available", shortfall.MaxAvailable)
		h.writeJSON(w, http.StatusConflict, map[string]any{
			"error":         shortfall.Error(),
			"product_id":    shortfall.ProductID,
			"max_available": shortfall.MaxAvailable,
		})
		return
	case errors.Is(err, ErrUnknownProduct):
		h.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		h.logger.Error("failed to book order", "error", err, "order_id", req.OrderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("order booked", "order_id", req.OrderID, "items", len(req.Items))
	h.writeJSON(w, http.StatusCreated, map[string]string{"order_id": req.OrderID})
}

func (h *Handler) HandleRelease(w http.ResponseWriter, r *http.Request) {
	orderID := r.PathValue("orderId")
	if orderID == "" {
		h.writeError(w, http.StatusBadRequest, "missing order id")
		return
	}

	released, err := h.repo.Release(r.Context(), orderID)
	if err != nil {
		h.logger.Error("failed to release bookings", "error", err, "order_id", orderID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("bookings released", "order_id", orderID, "count", released)
	h.writeJSON(w, http.StatusOK, map[string]int64{"released": released})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
