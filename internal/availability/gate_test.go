package availability

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/rentalflow/internal/cart"
	"github.com/joao-fontenele/rentalflow/internal/domain"
)

type fakeVerifier struct {
	mu       sync.Mutex
	results  []domain.Availability
	err      error
	requests []Request
	// before runs ahead of answering, e.g. to mutate the cart mid-check.
	before func()
}

func (f *fakeVerifier) CheckAvailability(_ context.Context, req Request) (domain.Availability, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return domain.Availability{}, f.err
	}
	if len(f.results) == 0 {
		return domain.Availability{Available: true, MaxAvailable: 100}, nil
	}
	res := f.results[0]
	f.results = f.results[1:]
	return res, nil
}

var (
	june1 = domain.NewDate(2025, 6, 1)
	june2 = domain.NewDate(2025, 6, 2)
	june3 = domain.NewDate(2025, 6, 3)
	june5 = domain.NewDate(2025, 6, 5)
	june7 = domain.NewDate(2025, 6, 7)
)

func cartLine(productID string, qty int, start, end domain.Date) domain.CartLine {
	return domain.CartLine{ProductID: productID, Quantity: qty, StartDate: start, EndDate: end}
}

func TestGate_AddChecksMergedQuantity(t *testing.T) {
	v := &fakeVerifier{}
	g := NewGate(v)
	store := cart.New(cartLine("A", 2, june1, june3))

	require.NoError(t, g.Add(context.Background(), store, cartLine("A", 3, june1, june3)))

	require.Len(t, v.requests, 1)
	assert.Equal(t, 5, v.requests[0].Quantity)
	assert.Equal(t, 5, store.ItemCount())
}

func TestGate_AddUnavailableLeavesCartUnchanged(t *testing.T) {
	v := &fakeVerifier{results: []domain.Availability{{Available: false, MaxAvailable: 2}}}
	g := NewGate(v)
	store := cart.New()

	err := g.Add(context.Background(), store, cartLine("A", 5, june1, june3))

	var unavailable *UnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, 2, unavailable.MaxAvailable)
	assert.Equal(t, 5, unavailable.Requested)
	assert.Equal(t, 0, store.Len())
}

func TestGate_AddFailsClosed(t *testing.T) {
	v := &fakeVerifier{err: ErrCheckFailed}
	g := NewGate(v)
	store := cart.New()

	err := g.Add(context.Background(), store, cartLine("A", 1, june1, june3))

	assert.ErrorIs(t, err, ErrCheckFailed)
	assert.Equal(t, 0, store.Len())
}

func TestGate_AddRejectsInvalidLineWithoutCalling(t *testing.T) {
	v := &fakeVerifier{}
	g := NewGate(v)

	err := g.Add(context.Background(), cart.New(), cartLine("A", 0, june1, june3))

	assert.ErrorIs(t, err, cart.ErrInvalidQuantity)
	assert.Empty(t, v.requests)
}

func TestGate_AddDiscardsStaleResult(t *testing.T) {
	store := cart.New()
	v := &fakeVerifier{}
	v.before = func() {
		_ = store.Add(cartLine("B", 1, june1, june1))
	}
	g := NewGate(v)

	err := g.Add(context.Background(), store, cartLine("A", 1, june1, june3))

	assert.ErrorIs(t, err, ErrStale)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, "B", store.Lines()[0].ProductID)
}

func TestGate_Reschedule(t *testing.T) {
	t.Run("checks new range with current quantity", func(t *testing.T) {
		v := &fakeVerifier{}
		store := cart.New(cartLine("A", 4, june1, june3))

		ok, err := NewGate(v).Reschedule(context.Background(), store, "A", june1, june5, june7)

		require.NoError(t, err)
		assert.True(t, ok)
		require.Len(t, v.requests, 1)
		assert.Equal(t, Request{ProductID: "A", StartDate: june5, EndDate: june7, Quantity: 4}, v.requests[0])
		assert.Equal(t, june5, store.Lines()[0].StartDate)
	})

	t.Run("unavailable keeps old dates", func(t *testing.T) {
		v := &fakeVerifier{results: []domain.Availability{{Available: false, MaxAvailable: 1}}}
		store := cart.New(cartLine("A", 4, june1, june3))

		ok, err := NewGate(v).Reschedule(context.Background(), store, "A", june1, june5, june7)

		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.False(t, ok)
		assert.Equal(t, june1, store.Lines()[0].StartDate)
	})

	t.Run("no match skips the check", func(t *testing.T) {
		v := &fakeVerifier{}
		ok, err := NewGate(v).Reschedule(context.Background(), cart.New(), "A", june1, june5, june7)

		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v.requests)
	})
}

func TestGate_Recheck(t *testing.T) {
	lines := []domain.CartLine{
		cartLine("A", 1, june1, june3),
		cartLine("B", 2, june1, june3),
		cartLine("C", 3, june1, june3),
	}

	t.Run("all available", func(t *testing.T) {
		v := &fakeVerifier{}
		require.NoError(t, NewGate(v).Recheck(context.Background(), lines))
		assert.Len(t, v.requests, 3)
	})

	t.Run("stops at first unavailable line", func(t *testing.T) {
		v := &fakeVerifier{results: []domain.Availability{
			{Available: true, MaxAvailable: 10},
			{Available: false, MaxAvailable: 1},
		}}

		err := NewGate(v).Recheck(context.Background(), lines)

		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, "B", unavailable.ProductID)
		assert.Len(t, v.requests, 2)
	})

	t.Run("verifier failure", func(t *testing.T) {
		v := &fakeVerifier{err: errors.New("connection refused")}
		err := NewGate(v).Recheck(context.Background(), lines)
		assert.ErrorContains(t, err, "connection refused")
	})
}

// stockVerifier answers like an inventory holding total units with nothing booked.
type stockVerifier struct {
	total    int
	requests []Request
}

func (s *stockVerifier) CheckAvailability(_ context.Context, req Request) (domain.Availability, error) {
	s.requests = append(s.requests, req)
	return domain.Availability{Available: req.Quantity <= s.total, MaxAvailable: s.total}, nil
}

func TestGate_SumsLinesOfOneProduct(t *testing.T) {
	t.Run("reschedule onto an occupied range", func(t *testing.T) {
		v := &stockVerifier{total: 5}
		g := NewGate(v)
		store := cart.New()

		require.NoError(t, g.Add(context.Background(), store, cartLine("A", 3, june1, june3)))
		require.NoError(t, g.Add(context.Background(), store, cartLine("A", 3, june5, june7)))

		ok, err := g.Reschedule(context.Background(), store, "A", june5, june1, june3)

		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.False(t, ok)
		assert.Equal(t, 6, unavailable.Requested)
		assert.Equal(t, 5, unavailable.MaxAvailable)
		assert.Equal(t, june5, store.Lines()[1].StartDate)
	})

	t.Run("add overlapping an existing range", func(t *testing.T) {
		v := &stockVerifier{total: 5}
		g := NewGate(v)
		store := cart.New(cartLine("A", 3, june1, june3))

		err := g.Add(context.Background(), store, cartLine("A", 3, june3, june5))

		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, june3, unavailable.StartDate)
		assert.Equal(t, june3, unavailable.EndDate)
		assert.Equal(t, 6, unavailable.Requested)
		assert.Equal(t, 1, store.Len())

		require.NoError(t, g.Add(context.Background(), store, cartLine("A", 2, june3, june5)))
		assert.Equal(t, 2, store.Len())
	})

	t.Run("recheck of colliding lines", func(t *testing.T) {
		v := &stockVerifier{total: 5}
		lines := []domain.CartLine{
			cartLine("A", 3, june1, june3),
			cartLine("A", 3, june1, june3),
		}

		err := NewGate(v).Recheck(context.Background(), lines)

		var unavailable *UnavailableError
		require.ErrorAs(t, err, &unavailable)
		assert.Equal(t, 6, unavailable.Requested)
	})

	t.Run("recheck splits ranges where the total changes", func(t *testing.T) {
		v := &stockVerifier{total: 10}
		lines := []domain.CartLine{
			cartLine("A", 2, june1, june5),
			cartLine("B", 1, june1, june1),
			cartLine("A", 1, june3, june7),
			cartLine("A", 4, june1, june2),
		}

		require.NoError(t, NewGate(v).Recheck(context.Background(), lines))

		june6 := domain.NewDate(2025, 6, 6)
		assert.Equal(t, []Request{
			{ProductID: "A", StartDate: june1, EndDate: june2, Quantity: 6},
			{ProductID: "A", StartDate: june3, EndDate: june5, Quantity: 3},
			{ProductID: "A", StartDate: june6, EndDate: june7, Quantity: 1},
			{ProductID: "B", StartDate: june1, EndDate: june1, Quantity: 1},
		}, v.requests)
	})

	t.Run("disjoint ranges are checked apart", func(t *testing.T) {
		v := &stockVerifier{total: 3}
		lines := []domain.CartLine{
			cartLine("A", 3, june1, june2),
			cartLine("A", 3, june5, june7),
		}

		require.NoError(t, NewGate(v).Recheck(context.Background(), lines))
		assert.Len(t, v.requests, 2)
	})
}
