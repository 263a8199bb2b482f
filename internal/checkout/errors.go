package checkout

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/joao-fontenele/rentalflow/internal/availability"
)

var ErrEmptyCart = errors.New("cart is empty")

// ValidationError maps input field names to a human readable problem.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "invalid checkout input: " + strings.Join(names, ", ")
}

// AvailabilityError aborts a checkout whose final recheck failed. Unavailable
// is set when stock is short; otherwise Err holds the verifier failure.
type AvailabilityError struct {
	Unavailable *availability.UnavailableError
	Err         error
}

func (e *AvailabilityError) Error() string {
	if e.Unavailable != nil {
		return "availability changed: " + e.Unavailable.Error()
	}
	return fmt.Sprintf("availability could not be verified: %v", e.Err)
}

func (e *AvailabilityError) Unwrap() error {
	if e.Unavailable != nil {
		return e.Unavailable
	}
	return e.Err
}

// PaymentGatewayError leaves the order pending without a session. A retry
// creates a new order and session.
type PaymentGatewayError struct {
	OrderID string
	Err     error
}

func (e *PaymentGatewayError) Error() string {
	return fmt.Sprintf("payment session for order %s: %v", e.OrderID, e.Err)
}

func (e *PaymentGatewayError) Unwrap() error { return e.Err }

type PersistenceError struct {
	Op      string
	OrderID string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s for order %s: %v", e.Op, e.OrderID, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
