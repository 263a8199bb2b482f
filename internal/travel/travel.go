// Package travel estimates the delivery travel cost for a customer address.
package travel

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotFound is returned by geocoders when an address has no match.
var ErrNotFound = errors.New("address not found")

const earthRadiusKm = 6371.0

type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Zwolle is the default depot location.
var Zwolle = Coordinates{Lat: 52.5168, Lon: 6.0830}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinates, error)
}

// GeocodeNotFoundError means the travel cost could not be resolved for
// Address. Err holds the underlying cause when the lookup itself failed.
type GeocodeNotFoundError struct {
	Address string
	Err     error
}

func (e *GeocodeNotFoundError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("geocode %q: %v", e.Address, e.Err)
	}
	return fmt.Sprintf("geocode %q: not found", e.Address)
}

func (e *GeocodeNotFoundError) Unwrap() error { return e.Err }

// Distance is the great-circle distance between a and b in kilometres.
func Distance(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// Tariff prices a trip: BaseFee up to ThresholdKm, plus PerKm for every
// started kilometre beyond it. Amounts are in euros.
type Tariff struct {
	BaseFee     decimal.Decimal
	ThresholdKm decimal.Decimal
	PerKm       decimal.Decimal
}

func DefaultTariff() Tariff {
	return Tariff{
		BaseFee:     decimal.NewFromInt(100),
		ThresholdKm: decimal.NewFromInt(50),
		PerKm:       decimal.NewFromInt(1),
	}
}

// ParseTariff reads a tariff from decimal strings such as "100", "50" and "1.25".
func ParseTariff(baseFee, thresholdKm, perKm string) (Tariff, error) {
	var t Tariff
	var err error
	if t.BaseFee, err = decimal.NewFromString(baseFee); err != nil {
		return Tariff{}, fmt.Errorf("parse base fee: %w", err)
	}
	if t.ThresholdKm, err = decimal.NewFromString(thresholdKm); err != nil {
		return Tariff{}, fmt.Errorf("parse threshold: %w", err)
	}
	if t.PerKm, err = decimal.NewFromString(perKm); err != nil {
		return Tariff{}, fmt.Errorf("parse per km rate: %w", err)
	}
	if t.BaseFee.IsNegative() || t.ThresholdKm.IsNegative() || t.PerKm.IsNegative() {
		return Tariff{}, errors.New("tariff values must not be negative")
	}
	return t, nil
}

// Cost returns the price in cents for a trip of distanceKm.
func (t Tariff) Cost(distanceKm float64) int64 {
	cost := t.BaseFee
	d := decimal.NewFromFloat(distanceKm)
	if d.GreaterThan(t.ThresholdKm) {
		extra := d.Sub(t.ThresholdKm).Ceil()
		cost = cost.Add(extra.Mul(t.PerKm))
	}
	return cost.Shift(2).Round(0).IntPart()
}

type Quote struct {
	DistanceKm  float64     `json:"distance_km"`
	Cost        int64       `json:"cost"`
	Destination Coordinates `json:"destination"`
}

type Estimator struct {
	geocoder Geocoder
	origin   Coordinates
	tariff   Tariff
}

func NewEstimator(g Geocoder, origin Coordinates, tariff Tariff) *Estimator {
	return &Estimator{geocoder: g, origin: origin, tariff: tariff}
}

// Estimate geocodes address and prices the trip from the origin. Any lookup
// problem yields a nil quote and a *GeocodeNotFoundError.
func (e *Estimator) Estimate(ctx context.Context, address string) (*Quote, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return nil, &GeocodeNotFoundError{Address: address}
	}

	dest, err := e.geocoder.Geocode(ctx, address)
	if errors.Is(err, ErrNotFound) {
		return nil, &GeocodeNotFoundError{Address: address}
	}
	if err != nil {
		return nil, &GeocodeNotFoundError{Address: address, Err: err}
	}

	d := Distance(e.origin, dest)
	return &Quote{
		DistanceKm:  math.Round(d*10) / 10,
		Cost:        e.tariff.Cost(d),
		Destination: dest,
	}, nil
}
