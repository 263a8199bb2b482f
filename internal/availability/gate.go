package availability

import (
	"context"
	"fmt"

	"github.com/joao-fontenele/rentalflow/internal/cart"
	"github.com/joao-fontenele/rentalflow/internal/domain"
)

// ErrStale is returned when the cart changed while a check was in flight;
// the result is discarded and the caller may retry.
var ErrStale = cart.ErrStale

type UnavailableError struct {
	ProductID    string
	StartDate    domain.Date
	EndDate      domain.Date
	Requested    int
	MaxAvailable int
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %s: %d requested for %s..%s, %d available",
		e.ProductID, e.Requested, e.StartDate, e.EndDate, e.MaxAvailable)
}

// Gate runs availability checks in front of cart mutations. It never
// lowers a quantity on its own; callers get MaxAvailable and decide.
type Gate struct {
	verifier Verifier
}

func NewGate(v Verifier) *Gate {
	return &Gate{verifier: v}
}

func (g *Gate) check(ctx context.Context, req Request) error {
	res, err := g.verifier.CheckAvailability(ctx, req)
	if err != nil {
		return err
	}
	if !res.Available {
		return &UnavailableError{
			ProductID:    req.ProductID,
			StartDate:    req.StartDate,
			EndDate:      req.EndDate,
			Requested:    req.Quantity,
			MaxAvailable: res.MaxAvailable,
		}
	}
	return nil
}

func (g *Gate) checkAll(ctx context.Context, reqs []Request) error {
	for _, req := range reqs {
		if err := g.check(ctx, req); err != nil {
			return err
		}
	}
	return nil
}

// Add checks the cart as it would be with line added, summing the quantities
// of every line of the same product on shared days, and adds line only if
// the store has not changed since.
func (g *Gate) Add(ctx context.Context, store *cart.Store, line domain.CartLine) error {
	if err := cart.ValidateLine(line); err != nil {
		return err
	}

	lines, version := store.Snapshot()
	projected := append(lines, line)
	if err := g.checkAll(ctx, touching(demand(projected), line.ProductID, line.StartDate, line.EndDate)); err != nil {
		return err
	}

	return store.AddIf(version, line)
}

// Reschedule checks the cart as it would be with the matched lines moved to
// the new range before moving them. It reports false when no line matches.
func (g *Gate) Reschedule(ctx context.Context, store *cart.Store, productID string, oldStart, newStart, newEnd domain.Date) (bool, error) {
	if newStart.IsZero() || newEnd.IsZero() || newEnd.Before(newStart) {
		return false, cart.ErrInvalidRange
	}

	projected, version := store.Snapshot()
	matched := false
	for i := range projected {
		if projected[i].ProductID == productID && projected[i].StartDate == oldStart {
			projected[i].StartDate = newStart
			projected[i].EndDate = newEnd
			matched = true
		}
	}
	if !matched {
		return false, nil
	}

	if err := g.checkAll(ctx, touching(demand(projected), productID, newStart, newEnd)); err != nil {
		return false, err
	}

	return store.RescheduleIf(version, productID, oldStart, newStart, newEnd)
}

// Recheck verifies the whole cart again, stopping at the first failure.
// Lines of one product are checked together, so two lines sharing days
// cannot each claim the same stock.
func (g *Gate) Recheck(ctx context.Context, lines []domain.CartLine) error {
	return g.checkAll(ctx, demand(lines))
}
