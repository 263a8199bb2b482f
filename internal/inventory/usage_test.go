package inventory

import (
	"testing"
	"time"

	"github.com/joao-fontenele/rentalflow/internal/domain"
)

func d(day int) domain.Date {
	return domain.NewDate(2025, 6, day)
}

func TestPeakUsage(t *testing.T) {
	bookings := []domain.Booking{
		{ProductID: "1", StartDate: d(1), EndDate: d(3), Quantity: 4},
		{ProductID: "1", StartDate: d(3), EndDate: d(5), Quantity: 2},
		{ProductID: "1", StartDate: d(6), EndDate: d(6), Quantity: 5},
	}

	tests := []struct {
		name       string
		start, end domain.Date
		want       int
	}{
		{"single booking days", d(1), d(2), 4},
		{"overlap day counts both", d(2), d(4), 6},
		{"adjacent bookings do not add up", d(5), d(6), 5},
		{"no bookings in range", d(10), d(12), 0},
		{"whole range", d(1), d(6), 6},
		{"range starts inside a booking", d(4), d(4), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PeakUsage(bookings, tt.start, tt.end); got != tt.want {
				t.Errorf("expected %d, got %d", tt.want, got)
			}
		})
	}
}

func TestAvailable(t *testing.T) {
	bookings := []domain.Booking{{ProductID: "1", StartDate: d(1), EndDate: d(3), Quantity: 8}}

	a := Available(10, bookings, d(2), d(2), 2)
	if !a.Available || a.MaxAvailable != 2 {
		t.Errorf("unexpected availability %+v", a)
	}

	a = Available(10, bookings, d(2), d(2), 3)
	if a.Available || a.MaxAvailable != 2 {
		t.Errorf("unexpected availability %+v", a)
	}

	a = Available(5, bookings, d(1), d(1), 1)
	if a.Available || a.MaxAvailable != 0 {
		t.Errorf("overbooked stock should floor at zero, got %+v", a)
	}
}

func TestPeakUsage_WideRange(t *testing.T) {
	bookings := []domain.Booking{
		{ProductID: "1", StartDate: d(1), EndDate: d(3), Quantity: 4},
		{ProductID: "1", StartDate: d(2), EndDate: d(2), Quantity: 1},
	}

	done := make(chan int, 1)
	go func() {
		done <- PeakUsage(bookings, domain.NewDate(1, 1, 1), domain.NewDate(9999, 12, 31))
	}()

	select {
	case got := <-done:
		if got != 5 {
			t.Errorf("expected 5, got %d", got)
		}
	case <-time.After(time.Second):
		t.Fatal("peak usage over a very wide range did not finish")
	}
}
