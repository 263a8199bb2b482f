package availability

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

func TestHTTPVerifier_CheckAvailability(t *testing.T) {
	var gotQuery map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/availability", r.URL.Path)
		gotQuery = map[string]string{
			"product_id": r.URL.Query().Get("product_id"),
			"start_date": r.URL.Query().Get("start_date"),
			"end_date":   r.URL.Query().Get("end_date"),
			"quantity":   r.URL.Query().Get("quantity"),
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(domain.Availability{Available: false, MaxAvailable: 3})
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, server.Client())
	res, err := v.CheckAvailability(context.Background(), Request{
		ProductID: "4",
		StartDate: june1,
		EndDate:   june3,
		Quantity:  5,
	})

	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, 3, res.MaxAvailable)
	assert.Equal(t, map[string]string{
		"product_id": "4",
		"start_date": "2025-06-01",
		"end_date":   "2025-06-03",
		"quantity":   "5",
	}, gotQuery)
}

func TestHTTPVerifier_FailsClosedOnBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, server.Client())
	_, err := v.CheckAvailability(context.Background(), Request{ProductID: "1", StartDate: june1, EndDate: june1, Quantity: 1})

	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.ErrorContains(t, err, "status 500")
}

func TestHTTPVerifier_OpensCircuit(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	v := NewHTTPVerifier(server.URL, server.Client())
	req := Request{ProductID: "1", StartDate: june1, EndDate: june1, Quantity: 1}
	for range 7 {
		_, err := v.CheckAvailability(context.Background(), req)
		assert.ErrorIs(t, err, ErrCheckFailed)
	}

	assert.Equal(t, 5, calls)
}

func TestHTTPVerifier_CancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(domain.Availability{Available: true, MaxAvailable: 1})
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHTTPVerifier(server.URL, server.Client()).CheckAvailability(ctx, Request{ProductID: "1", StartDate: june1, EndDate: june1, Quantity: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
