package orders

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

type memoryStore struct {
	orders map[string]*domain.Order
	err    error
}

func (m *memoryStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.orders[id], nil
}

func (m *memoryStore) List(_ context.Context, status domain.OrderStatus) ([]domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := []domain.Order{}
	for _, o := range m.orders {
		if status == "" || o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memoryStore) UpdateStatus(_ context.Context, id string, status domain.OrderStatus) (*domain.Order, error) {
	if m.err != nil {
		return nil, m.err
	}
	o, ok := m.orders[id]
	if !ok {
		return nil, nil
	}
	if err := domain.Transition(o.Status, status); err != nil {
		return nil, err
	}
	o.Status = status
	return o, nil
}

func newTestHandler(store *memoryStore) (*Handler, *http.ServeMux) {
	h := NewHandler(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.HandleFunc("GET /orders", h.HandleList)
	mux.HandleFunc("GET /orders/{id}", h.HandleGet)
	mux.HandleFunc("PATCH /orders/{id}/status", h.HandleUpdateStatus)
	return h, mux
}

func seededStore() *memoryStore {
	return &memoryStore{orders: map[string]*domain.Order{
		"o1": {ID: "o1", Status: domain.OrderStatusPaid, Total: 16000},
		"o2": {ID: "o2", Status: domain.OrderStatusDelivered, Total: 4000},
	}}
}

func TestHandler_HandleGet(t *testing.T) {
	_, mux := newTestHandler(seededStore())

	t.Run("found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/o1", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d", rec.Code)
		}
		var got domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.ID != "o1" || got.Total != 16000 {
			t.Errorf("unexpected order %+v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/missing", nil))

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status 404, got %d", rec.Code)
		}
	})
}

func TestHandler_HandleUpdateStatus(t *testing.T) {
	tests := []struct {
		name       string
		id         string
		body       string
		wantStatus int
	}{
		{"allowed transition", "o1", `{"status":"confirmed"}`, http.StatusOK},
		{"terminal order", "o2", `{"status":"cancelled"}`, http.StatusConflict},
		{"unknown status", "o1", `{"status":"shipped"}`, http.StatusBadRequest},
		{"malformed body", "o1", `{`, http.StatusBadRequest},
		{"unknown order", "missing", `{"status":"paid"}`, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, mux := newTestHandler(seededStore())

			req := httptest.NewRequest(http.MethodPatch, "/orders/"+tt.id+"/status", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d (%s)", tt.wantStatus, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHandler_HandleList(t *testing.T) {
	t.Run("filters by status", func(t *testing.T) {
		_, mux := newTestHandler(seededStore())

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?status=paid", nil))

		var got []domain.Order
		if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(got) != 1 || got[0].ID != "o1" {
			t.Errorf("unexpected orders %+v", got)
		}
	})

	t.Run("rejects unknown status filter", func(t *testing.T) {
		_, mux := newTestHandler(seededStore())

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders?status=lost", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected status 400, got %d", rec.Code)
		}
	})

	t.Run("store failure", func(t *testing.T) {
		_, mux := newTestHandler(&memoryStore{err: errors.New("db down")})

		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders", nil))

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected status 500, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"error"`) {
			t.Errorf("expected error body, got %s", rec.Body.String())
		}
	})
}
