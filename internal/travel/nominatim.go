package travel

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
	"golang.org/x/time/rate"
)

// Nominatim geocodes addresses against an OpenStreetMap Nominatim server.
// The public instance allows one request per second and requires a
// descriptive User-Agent.
type Nominatim struct {
	baseURL     string
	userAgent   string
	countryCode string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[Coordinates]
}

func NewNominatim(baseURL, userAgent, countryCode string, client *http.Client) *Nominatim {
	return &Nominatim{
		baseURL:     baseURL,
		userAgent:   userAgent,
		countryCode: countryCode,
		httpClient:  client,
		limiter:     rate.NewLimiter(rate.Every(time.Second), 1),
		breaker: gobreaker.NewCircuitBreaker[Coordinates](gobreaker.Settings{
			Name:        "nominatim",
			MaxRequests: 1,
			Timeout:     time.Minute,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrNotFound)
			},
		}),
	}
}

type nominatimResult struct {
	Lat string `json:"lat"`
	Lon string `json:"lon"`
}

func (n *Nominatim) Geocode(ctx context.Context, address string) (Coordinates, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return Coordinates{}, fmt.Errorf("wait for rate limiter: %w", err)
	}

	return n.breaker.Execute(func() (Coordinates, error) {
		return n.search(ctx, address)
	})
}

func (n *Nominatim) search(ctx context.Context, address string) (Coordinates, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("limit", "1")
	q.Set("q", address)
	if n.countryCode != "" {
		q.Set("countrycodes", n.countryCode)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.baseURL+"/search?"+q.Encode(), nil)
	if err != nil {
		return Coordinates{}, fmt.Errorf("create geocode request: %w", err)
	}
	req.Header.Set("User-Agent", n.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return Coordinates{}, fmt.Errorf("geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Coordinates{}, fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var results []nominatimResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return Coordinates{}, fmt.Errorf("decode geocode response: %w", err)
	}
	if len(results) == 0 {
		return Coordinates{}, ErrNotFound
	}

	lat, err := strconv.ParseFloat(results[0].Lat, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(results[0].Lon, 64)
	if err != nil {
		return Coordinates{}, fmt.Errorf("parse longitude: %w", err)
	}
	return Coordinates{Lat: lat, Lon: lon}, nil
}
