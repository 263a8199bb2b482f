package worker

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

type backend struct {
	mu         sync.Mutex
	calls      []string
	emails     []map[string]string
	bookStatus int
	statuses   map[domain.OrderStatus]int
	current    domain.OrderStatus
}

func newBackend(t *testing.T) (*backend, *httptest.Server) {
	b := &backend{
		bookStatus: http.StatusCreated,
		statuses:   map[domain.OrderStatus]int{},
		current:    domain.OrderStatusPaid,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /bookings", func(w http.ResponseWriter, r *http.Request) {
		b.record("book")
		var req bookingRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OrderID != "o1" || len(req.Items) != 1 {
			t.Errorf("unexpected booking request %+v (%v)", req, err)
		}
		w.WriteHeader(b.bookStatus)
	})
	mux.HandleFunc("DELETE /bookings/{orderId}", func(w http.ResponseWriter, r *http.Request) {
		b.record("release " + r.PathValue("orderId"))
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("PATCH /orders/{id}/status", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		_ = json.NewDecoder(r.Body).Decode(&req)
		status := domain.OrderStatus(req["status"])
		b.record("status " + string(status))
		code, ok := b.statuses[status]
		if !ok {
			code = http.StatusOK
		}
		w.WriteHeader(code)
	})
	mux.HandleFunc("GET /orders/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.record("get order")
		_ = json.NewEncoder(w).Encode(domain.Order{ID: r.PathValue("id"), Status: b.current})
	})
	mux.HandleFunc("POST /send", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.emails = append(b.emails, body)
		b.mu.Unlock()
		b.record("email")
		w.WriteHeader(http.StatusOK)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return b, server
}

func (b *backend) record(call string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, call)
}

func paidEvent(t *testing.T) []byte {
	t.Helper()
	data, err := json.Marshal(domain.OrderPaidEvent{
		OrderID:       "o1",
		CustomerName:  "Jan",
		CustomerEmail: "jan@example.com",
		Items: []domain.OrderItem{{
			ProductID: "1", ProductName: "Statafel wit", Quantity: 4,
			StartDate: domain.NewDate(2025, 6, 1), EndDate: domain.NewDate(2025, 6, 3),
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func newHandler(server *httptest.Server) *FulfillmentHandler {
	return NewFulfillmentHandler(server.URL, server.URL, server.URL, server.Client(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func assertCalls(t *testing.T, b *backend, want ...string) {
	t.Helper()
	if strings.Join(b.calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected calls %v, got %v", want, b.calls)
	}
}

func TestFulfillmentHandler_Handle(t *testing.T) {
	t.Run("books and confirms", func(t *testing.T) {
		b, server := newBackend(t)

		if err := newHandler(server).Handle(context.Background(), paidEvent(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertCalls(t, b, "book", "status confirmed", "email")
		if b.emails[0]["to"] != "jan@example.com" || !strings.Contains(b.emails[0]["body"], "4x Statafel wit") {
			t.Errorf("unexpected email %v", b.emails[0])
		}
	})

	t.Run("cancels when stock ran out", func(t *testing.T) {
		b, server := newBackend(t)
		b.bookStatus = http.StatusConflict

		if err := newHandler(server).Handle(context.Background(), paidEvent(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertCalls(t, b, "book", "status cancelled", "email")
		if !strings.Contains(b.emails[0]["body"], "reimbursed") {
			t.Errorf("expected reimbursement notice, got %q", b.emails[0]["body"])
		}
	})

	t.Run("releases bookings when order was cancelled meanwhile", func(t *testing.T) {
		b, server := newBackend(t)
		b.statuses[domain.OrderStatusConfirmed] = http.StatusConflict
		b.current = domain.OrderStatusCancelled

		if err := newHandler(server).Handle(context.Background(), paidEvent(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertCalls(t, b, "book", "status confirmed", "get order", "release o1")
	})

	t.Run("redelivery of a confirmed order keeps bookings", func(t *testing.T) {
		b, server := newBackend(t)
		b.statuses[domain.OrderStatusConfirmed] = http.StatusConflict
		b.current = domain.OrderStatusConfirmed

		if err := newHandler(server).Handle(context.Background(), paidEvent(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		assertCalls(t, b, "book", "status confirmed", "get order")
	})

	t.Run("inventory failure is retried", func(t *testing.T) {
		b, server := newBackend(t)
		b.bookStatus = http.StatusInternalServerError

		if err := newHandler(server).Handle(context.Background(), paidEvent(t)); err == nil {
			t.Fatal("expected error")
		}
		assertCalls(t, b, "book")
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, server := newBackend(t)

		if err := newHandler(server).Handle(context.Background(), []byte("{")); err == nil {
			t.Fatal("expected error")
		}
	})
}
