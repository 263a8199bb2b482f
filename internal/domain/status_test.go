package domain

import (
	"errors"
	"testing"
)

func TestTransition(t *testing.T) {
	all := []OrderStatus{
		OrderStatusPending,
		OrderStatusPaid,
		OrderStatusConfirmed,
		OrderStatusDelivered,
		OrderStatusCancelled,
	}

	allowed := map[[2]OrderStatus]bool{
		{OrderStatusPending, OrderStatusPaid}:        true,
		{OrderStatusPending, OrderStatusCancelled}:   true,
		{OrderStatusPaid, OrderStatusConfirmed}:      true,
		{OrderStatusPaid, OrderStatusCancelled}:      true,
		{OrderStatusConfirmed, OrderStatusDelivered}: true,
	}

	for _, from := range all {
		for _, to := range all {
			err := Transition(from, to)
			if allowed[[2]OrderStatus{from, to}] {
				if err != nil {
					t.Errorf("%s -> %s: unexpected error %v", from, to, err)
				}
				continue
			}
			if !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("%s -> %s: expected ErrInvalidTransition, got %v", from, to, err)
			}
			var terr *InvalidTransitionError
			if !errors.As(err, &terr) || terr.From != from || terr.To != to {
				t.Errorf("%s -> %s: expected InvalidTransitionError with both states, got %v", from, to, err)
			}
		}
	}
}

func TestOrderStatus_IsTerminal(t *testing.T) {
	t.Run("delivered and cancelled are terminal", func(t *testing.T) {
		if !OrderStatusDelivered.IsTerminal() || !OrderStatusCancelled.IsTerminal() {
			t.Error("expected delivered and cancelled to be terminal")
		}
	})

	t.Run("terminal states have no outgoing transitions", func(t *testing.T) {
		for _, s := range []OrderStatus{OrderStatusDelivered, OrderStatusCancelled} {
			if len(transitions[s]) != 0 {
				t.Errorf("expected no transitions out of %s", s)
			}
		}
	})

	t.Run("unknown status is invalid", func(t *testing.T) {
		if OrderStatus("shipped").Valid() {
			t.Error("expected shipped to be invalid")
		}
	})
}
