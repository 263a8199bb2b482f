package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

var errConflict = errors.New("conflict")

// FulfillmentHandler books inventory for paid orders and moves them to
// confirmed, or cancels them when stock ran out between checkout and payment.
type FulfillmentHandler struct {
	emailServiceURL     string
	ordersServiceURL    string
	inventoryServiceURL string
	httpClient          *http.Client
	logger              *slog.Logger
}

func NewFulfillmentHandler(emailServiceURL, ordersServiceURL, inventoryServiceURL string, client *http.Client, logger *slog.Logger) *FulfillmentHandler {
	return &FulfillmentHandler{
		emailServiceURL:     emailServiceURL,
		ordersServiceURL:    ordersServiceURL,
		inventoryServiceURL: inventoryServiceURL,
		httpClient:          client,
		logger:              logger,
	}
}

// Handle processes one order.paid event. It is safe to run again for the
// same event: booking is idempotent per order and an already confirmed
// order is not released.
func (h *FulfillmentHandler) Handle(ctx context.Context, payload []byte) error {
	var event domain.OrderPaidEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("unmarshal order paid event: %w", err)
	}

	h.logger.Info("processing order paid event", "order_id", event.OrderID, "items", len(event.Items))

	err := h.book(ctx, event)
	if errors.Is(err, errConflict) {
		h.logger.Warn("stock no longer available, cancelling order", "error", err, "order_id", event.OrderID)
		return h.cancel(ctx, event)
	}
	if err != nil {
		return fmt.Errorf("book inventory: %w", err)
	}

	err = h.updateOrderStatus(ctx, event.OrderID, domain.OrderStatusConfirmed)
	if errors.Is(err, errConflict) {
		status, getErr := h.orderStatus(ctx, event.OrderID)
		if getErr != nil {
			return fmt.Errorf("check order after refused confirmation: %w", getErr)
		}
		if status != domain.OrderStatusConfirmed {
			h.logger.Warn("order cannot be confirmed, releasing bookings", "order_id", event.OrderID, "status", status)
			return h.release(ctx, event.OrderID)
		}
		h.logger.Info("order already confirmed", "order_id", event.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("confirm order: %w", err)
	}

	if err := h.sendConfirmationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send confirmation email", "error", err, "order_id", event.OrderID)
	}

	h.logger.Info("order confirmed", "order_id", event.OrderID)
	return nil
}

func (h *FulfillmentHandler) cancel(ctx context.Context, event domain.OrderPaidEvent) error {
	err := h.updateOrderStatus(ctx, event.OrderID, domain.OrderStatusCancelled)
	if errors.Is(err, errConflict) {
		h.logger.Info("order already left the paid state", "order_id", event.OrderID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("cancel order after stock failure: %w", err)
	}

	if err := h.sendCancellationEmail(ctx, event); err != nil {
		h.logger.Error("failed to send cancellation email", "error", err, "order_id", event.OrderID)
	}

	h.logger.Info("order cancelled due to insufficient stock", "order_id", event.OrderID)
	return nil
}

type bookingRequest struct {
	OrderID string           `json:"order_id"`
	Items   []domain.Booking `json:"items"`
}

func (h *FulfillmentHandler) book(ctx context.Context, event domain.OrderPaidEvent) error {
	req := bookingRequest{OrderID: event.OrderID}
	for _, item := range event.Items {
		req.Items = append(req.Items, domain.Booking{
			ProductID: item.ProductID,
			StartDate: item.StartDate,
			EndDate:   item.EndDate,
			Quantity:  item.Quantity,
		})
	}

	return h.call(ctx, http.MethodPost, h.inventoryServiceURL+"/bookings", req, http.StatusCreated)
}

func (h *FulfillmentHandler) release(ctx context.Context, orderID string) error {
	return h.call(ctx, http.MethodDelete, h.inventoryServiceURL+"/bookings/"+orderID, nil, http.StatusOK)
}

func (h *FulfillmentHandler) updateOrderStatus(ctx context.Context, orderID string, status domain.OrderStatus) error {
	body := map[string]string{"status": string(status)}
	return h.call(ctx, http.MethodPatch, fmt.Sprintf("%s/orders/%s/status", h.ordersServiceURL, orderID), body, http.StatusOK)
}

func (h *FulfillmentHandler) orderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/orders/%s", h.ordersServiceURL, orderID), nil)
	if err != nil {
		return "", err
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("orders service returned status %d", resp.StatusCode)
	}

	var order domain.Order
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return "", err
	}
	return order.Status, nil
}

func (h *FulfillmentHandler) sendConfirmationEmail(ctx context.Context, event domain.OrderPaidEvent) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Hi %s,\n\nYour order %s is confirmed:\n", event.CustomerName, event.OrderID)
	for _, item := range event.Items {
		fmt.Fprintf(&b, "- %dx %s, %s to %s\n", item.Quantity, item.ProductName, item.StartDate, item.EndDate)
	}

	return h.sendEmail(ctx, map[string]string{
		"to":      event.CustomerEmail,
		"subject": "Order confirmed: " + event.OrderID,
		"body":    b.String(),
	})
}

func (h *FulfillmentHandler) sendCancellationEmail(ctx context.Context, event domain.OrderPaidEvent) error {
	return h.sendEmail(ctx, map[string]string{
		"to":      event.CustomerEmail,
		"subject": "Order cancelled: " + event.OrderID,
		"body": fmt.Sprintf("Hi %s,\n\nYour order %s has been cancelled because some items are no longer available for the selected dates. You will be reimbursed.",
			event.CustomerName, event.OrderID),
	})
}

func (h *FulfillmentHandler) sendEmail(ctx context.Context, body map[string]string) error {
	return h.call(ctx, http.MethodPost, h.emailServiceURL+"/send", body, http.StatusOK)
}

// call sends body as JSON and maps 409 to errConflict.
func (h *FulfillmentHandler) call(ctx context.Context, method, url string, body any, want int) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case want:
		return nil
	case http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, url, errConflict)
	default:
		return fmt.Errorf("%s %s returned status %d", method, url, resp.StatusCode)
	}
}
