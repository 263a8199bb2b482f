// Package availability decides when the inventory service is consulted and
// makes sure a check result is only applied to the cart it was computed for.
package availability

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

// ErrCheckFailed marks verifier failures: transport errors, unexpected
// statuses and an open circuit. Callers must treat them as "not available".
var ErrCheckFailed = errors.New("availability check failed")

type Request struct {
	ProductID string
	StartDate domain.Date
	EndDate   domain.Date
	Quantity  int
}

type Verifier interface {
	CheckAvailability(ctx context.Context, req Request) (domain.Availability, error)
}

// HTTPVerifier queries the inventory service's availability endpoint.
type HTTPVerifier struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[domain.Availability]
}

func NewHTTPVerifier(baseURL string, client *http.Client) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    baseURL,
		httpClient: client,
		breaker: gobreaker.NewCircuitBreaker[domain.Availability](gobreaker.Settings{
			Name:        "inventory-availability",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
		}),
	}
}

func (v *HTTPVerifier) CheckAvailability(ctx context.Context, req Request) (domain.Availability, error) {
	result, err := v.breaker.Execute(func() (domain.Availability, error) {
		return v.fetch(ctx, req)
	})
	if err != nil {
		return domain.Availability{}, fmt.Errorf("%w: %w", ErrCheckFailed, err)
	}
	return result, nil
}

func (v *HTTPVerifier) fetch(ctx context.Context, req Request) (domain.Availability, error) {
	q := url.Values{}
	q.Set("product_id", req.ProductID)
	q.Set("start_date", req.StartDate.String())
	q.Set("end_date", req.EndDate.String())
	q.Set("quantity", strconv.Itoa(req.Quantity))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/availability?"+q.Encode(), nil)
	if err != nil {
		return domain.Availability{}, fmt.Errorf("create availability request: %w", err)
	}

	resp, err := v.httpClient.Do(httpReq)
	if err != nil {
		return domain.Availability{}, fmt.Errorf("check availability for product %s: %w", req.ProductID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return domain.Availability{}, fmt.Errorf("inventory service returned status %d for product %s", resp.StatusCode, req.ProductID)
	}

	var result domain.Availability
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return domain.Availability{}, fmt.Errorf("decode availability response: %w", err)
	}
	return result, nil
}
